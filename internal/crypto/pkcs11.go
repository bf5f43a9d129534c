//go:build cgo

package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS11Signer signs with a key that never leaves the HSM. Each Sign
// call borrows a session from the shared pool and returns it after.
type PKCS11Signer struct {
	pool      *PKCS11SessionPool
	keyHandle pkcs11.ObjectHandle
	alg       AlgorithmID
	pub       crypto.PublicKey
	mu        sync.Mutex
	closed    bool
}

var _ Signer = (*PKCS11Signer)(nil)

// NewPKCS11Signer opens the configured token, locates the private
// key, and reads its public half.
func NewPKCS11Signer(cfg PKCS11Config) (*PKCS11Signer, error) {
	if cfg.ModulePath == "" {
		return nil, errors.New("PKCS#11 module path is not set")
	}
	if cfg.KeyLabel == "" && cfg.KeyID == "" {
		return nil, errors.New("key selection needs key_label or key_id")
	}

	slotID, err := resolveSlot(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve slot: %w", err)
	}

	pool, err := GetSessionPool(cfg.ModulePath, slotID, cfg.PIN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session pool: %w", err)
	}

	session, release, err := pool.Acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to borrow session: %w", err)
	}
	defer release()

	keyHandle, err := locatePrivateKey(pool.Context(), session, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to locate private key: %w", err)
	}

	pub, alg, err := publicKeyOf(pool.Context(), session, keyHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	return &PKCS11Signer{pool: pool, keyHandle: keyHandle, alg: alg, pub: pub}, nil
}

// resolveSlot returns the slot for cfg, querying the module through a
// throwaway context when no explicit slot ID is given.
func resolveSlot(cfg PKCS11Config) (uint, error) {
	if cfg.SlotID != nil {
		return *cfg.SlotID, nil
	}

	ctx := pkcs11.New(cfg.ModulePath)
	if ctx == nil {
		return 0, fmt.Errorf("cannot load PKCS#11 module %s", cfg.ModulePath)
	}
	defer ctx.Destroy()

	if err := ctx.Initialize(); err != nil && !isPKCS11Err(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		return 0, fmt.Errorf("failed to initialize module: %w", err)
	}
	// No Finalize here: C_Finalize is process-global and would tear
	// the module down under every other user. Destroying the context
	// is enough.

	return matchSlot(ctx, cfg)
}

// matchSlot scans the slots carrying tokens for one matching the
// configured label or serial. With neither configured, the first
// readable token wins.
func matchSlot(ctx *pkcs11.Ctx, cfg PKCS11Config) (uint, error) {
	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("failed to list slots: %w", err)
	}

	wantAny := cfg.TokenLabel == "" && cfg.TokenSerial == ""
	for _, slot := range slots {
		info, err := ctx.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		switch {
		case wantAny:
			return slot, nil
		case cfg.TokenLabel != "" && info.Label == cfg.TokenLabel:
			return slot, nil
		case cfg.TokenSerial != "" && info.SerialNumber == cfg.TokenSerial:
			return slot, nil
		}
	}

	switch {
	case cfg.TokenLabel != "":
		return 0, fmt.Errorf("no token with label %q", cfg.TokenLabel)
	case cfg.TokenSerial != "":
		return 0, fmt.Errorf("no token with serial %q", cfg.TokenSerial)
	default:
		return 0, errors.New("no readable token in any slot")
	}
}

// findObject runs one FindObjects round for the given template and
// returns up to max handles.
func findObject(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, template []*pkcs11.Attribute, max int) ([]pkcs11.ObjectHandle, error) {
	if err := ctx.FindObjectsInit(session, template); err != nil {
		return nil, fmt.Errorf("failed to start object search: %w", err)
	}
	defer func() { _ = ctx.FindObjectsFinal(session) }()

	objs, _, err := ctx.FindObjects(session, max)
	if err != nil {
		return nil, fmt.Errorf("object search failed: %w", err)
	}
	return objs, nil
}

// readAttrs fetches the named attributes of an object and returns
// their values in request order.
func readAttrs(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, obj pkcs11.ObjectHandle, types ...uint) ([][]byte, error) {
	query := make([]*pkcs11.Attribute, len(types))
	for i, typ := range types {
		query[i] = pkcs11.NewAttribute(typ, nil)
	}
	attrs, err := ctx.GetAttributeValue(session, obj, query)
	if err != nil {
		return nil, err
	}
	vals := make([][]byte, len(attrs))
	for i, attr := range attrs {
		vals[i] = attr.Value
	}
	return vals, nil
}

// locatePrivateKey finds the private key selected by cfg.
func locatePrivateKey(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, cfg PKCS11Config) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY)}
	if cfg.KeyLabel != "" {
		template = append(template, pkcs11.NewAttribute(pkcs11.CKA_LABEL, cfg.KeyLabel))
	}
	if cfg.KeyID != "" {
		id, err := hex.DecodeString(cfg.KeyID)
		if err != nil {
			return 0, fmt.Errorf("key_id is not valid hex: %w", err)
		}
		template = append(template, pkcs11.NewAttribute(pkcs11.CKA_ID, id))
	}

	// Asking for two handles lets an ambiguous selection fail loudly
	// instead of signing with whichever key came back first.
	objs, err := findObject(ctx, session, template, 2)
	if err != nil {
		return 0, err
	}
	switch len(objs) {
	case 0:
		return 0, errors.New("no private key matched the selection")
	case 1:
		return objs[0], nil
	default:
		return 0, errors.New("selection matched several keys; set both key_label and key_id")
	}
}

// matchingPublicKey finds the public half of a private key. ID, label,
// and key type must all match so same-labeled keys of a different
// type do not collide.
func matchingPublicKey(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, privHandle pkcs11.ObjectHandle) (pkcs11.ObjectHandle, error) {
	vals, err := readAttrs(ctx, session, privHandle, pkcs11.CKA_ID, pkcs11.CKA_LABEL, pkcs11.CKA_KEY_TYPE)
	if err != nil {
		return 0, fmt.Errorf("failed to read private key identity: %w", err)
	}

	objs, err := findObject(ctx, session, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_ID, vals[0]),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, vals[1]),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, vals[2]),
	}, 1)
	if err != nil {
		return 0, err
	}
	if len(objs) == 0 {
		return 0, errors.New("no public key object matches the private key")
	}
	return objs[0], nil
}

// publicKeyOf reads the public key belonging to a private key handle.
func publicKeyOf(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, keyHandle pkcs11.ObjectHandle) (crypto.PublicKey, AlgorithmID, error) {
	vals, err := readAttrs(ctx, session, keyHandle, pkcs11.CKA_KEY_TYPE)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read key type: %w", err)
	}

	switch keyType := ckULong(vals[0]); keyType {
	case pkcs11.CKK_EC:
		return ecPublicKey(ctx, session, keyHandle)
	case pkcs11.CKK_RSA:
		return rsaPublicKey(ctx, session, keyHandle)
	default:
		return nil, "", fmt.Errorf("unsupported key type 0x%X", keyType)
	}
}

// ecPublicKey reassembles an ECDSA public key. HSMs disagree on where
// the point lives, so several locations are tried in order: CKA_EC_POINT
// on the private key, CKA_EC_POINT on the public key, then CKA_VALUE
// on the public key (which may hold a SubjectPublicKeyInfo, a raw
// point, or a BIT STRING wrapping one).
func ecPublicKey(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, keyHandle pkcs11.ObjectHandle) (crypto.PublicKey, AlgorithmID, error) {
	vals, err := readAttrs(ctx, session, keyHandle, pkcs11.CKA_EC_PARAMS)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read EC params: %w", err)
	}
	curve, algID, err := curveByOID(vals[0])
	if err != nil {
		return nil, "", err
	}

	if vals, err := readAttrs(ctx, session, keyHandle, pkcs11.CKA_EC_POINT); err == nil && len(vals[0]) > 0 {
		return pointToKey(curve, algID, vals[0])
	}

	pubHandle, err := matchingPublicKey(ctx, session, keyHandle)
	if err != nil {
		return nil, "", fmt.Errorf("CKA_EC_POINT absent on private key and no public key object: %w", err)
	}

	pointVals, pointErr := readAttrs(ctx, session, pubHandle, pkcs11.CKA_EC_POINT)
	if pointErr == nil && len(pointVals[0]) > 0 {
		return pointToKey(curve, algID, pointVals[0])
	}

	valueVals, valueErr := readAttrs(ctx, session, pubHandle, pkcs11.CKA_VALUE)
	if valueErr != nil {
		return nil, "", fmt.Errorf("no usable EC point (CKA_EC_POINT: %v, CKA_VALUE: %w)", pointErr, valueErr)
	}
	raw := valueVals[0]
	if len(raw) == 0 {
		return nil, "", errors.New("EC public key has empty CKA_VALUE")
	}

	// A DER SubjectPublicKeyInfo is self-describing; take it directly
	// when it parses.
	if pubKey, parseErr := x509.ParsePKIXPublicKey(raw); parseErr == nil {
		if ecPub, ok := pubKey.(*ecdsa.PublicKey); ok {
			return ecPub, algID, nil
		}
		return nil, "", errors.New("CKA_VALUE holds a non-EC key")
	}
	return pointToKey(curve, algID, ecPointFromValue(raw, curve))
}

// pointToKey decodes an uncompressed EC point, first stripping the
// OCTET STRING wrapper many HSMs add around CKA_EC_POINT.
func pointToKey(curve elliptic.Curve, algID AlgorithmID, point []byte) (crypto.PublicKey, AlgorithmID, error) {
	//nolint:staticcheck // elliptic.Unmarshal is deprecated for ECDH use; this is ECDSA
	x, y := elliptic.Unmarshal(curve, unwrapOctetString(point))
	if x == nil {
		return nil, "", fmt.Errorf("EC point does not decode on %s", curve.Params().Name)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, algID, nil
}

// ecPointFromValue interprets a CKA_VALUE that did not parse as
// SubjectPublicKeyInfo: either an uncompressed point of the expected
// size, a BIT STRING wrapping one, or raw bytes handed through.
func ecPointFromValue(raw []byte, curve elliptic.Curve) []byte {
	if len(raw) == 1+2*((curve.Params().BitSize+7)/8) && raw[0] == 0x04 {
		return raw
	}
	var bits asn1.BitString
	if rest, err := asn1.Unmarshal(raw, &bits); err == nil && len(rest) == 0 && bits.BitLength%8 == 0 {
		return bits.Bytes
	}
	return raw
}

// unwrapOctetString strips the DER OCTET STRING header many HSMs put
// around CKA_EC_POINT. The tag byte 0x04 collides with the
// uncompressed-point marker, so the wrapper is only stripped when the
// payload itself starts with 0x04.
func unwrapOctetString(point []byte) []byte {
	var inner []byte
	rest, err := asn1.Unmarshal(point, &inner)
	if err == nil && len(rest) == 0 && len(inner) > 0 && inner[0] == 0x04 {
		return inner
	}
	return point
}

// rsaPublicKey reads modulus and exponent from the matching public
// key object.
func rsaPublicKey(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, keyHandle pkcs11.ObjectHandle) (crypto.PublicKey, AlgorithmID, error) {
	pubHandle, err := matchingPublicKey(ctx, session, keyHandle)
	if err != nil {
		return nil, "", err
	}

	vals, err := readAttrs(ctx, session, pubHandle, pkcs11.CKA_MODULUS, pkcs11.CKA_PUBLIC_EXPONENT)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read RSA modulus and exponent: %w", err)
	}

	n := new(big.Int).SetBytes(vals[0])
	// The exponent is a big-endian "Big integer" attribute, not a
	// CK_ULONG.
	e := int(new(big.Int).SetBytes(vals[1]).Int64())

	var algID AlgorithmID
	switch bits := n.BitLen(); {
	case bits <= 2048:
		algID = AlgRSA2048
	case bits <= 3072:
		algID = AlgRSA3072
	default:
		algID = AlgRSA4096
	}

	return &rsa.PublicKey{N: n, E: e}, algID, nil
}

// curvesByOID lists the named curves a token may hold, keyed by the
// OID found in CKA_EC_PARAMS.
var curvesByOID = []struct {
	oid   asn1.ObjectIdentifier
	curve elliptic.Curve
}{
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}, elliptic.P256()},
	{asn1.ObjectIdentifier{1, 3, 132, 0, 34}, elliptic.P384()},
	{asn1.ObjectIdentifier{1, 3, 132, 0, 35}, elliptic.P521()},
}

func curveByOID(params []byte) (elliptic.Curve, AlgorithmID, error) {
	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(params, &oid); err != nil {
		return nil, "", fmt.Errorf("failed to parse EC params: %w", err)
	}
	for _, entry := range curvesByOID {
		if entry.oid.Equal(oid) {
			return entry.curve, curveAlgs[entry.curve], nil
		}
	}
	return nil, "", fmt.Errorf("unsupported EC curve %v", oid)
}

// ckULong decodes a CK_ULONG attribute, which is stored in native
// byte order. Not for "Big integer" attributes; those are big-endian.
func ckULong(b []byte) uint {
	var v uint
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint(b[i])
	}
	return v
}

// Algorithm returns the signing key's algorithm.
func (s *PKCS11Signer) Algorithm() AlgorithmID {
	return s.alg
}

// Public returns the public key.
func (s *PKCS11Signer) Public() crypto.PublicKey {
	return s.pub
}

// Sign signs digest inside the HSM. ECDSA signatures come back as raw
// r||s and are re-encoded as DER; RSA uses PKCS#1 v1.5, which needs
// the DigestInfo structure wrapped around the digest before the token
// pads and signs it.
func (s *PKCS11Signer) Sign(random io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("signer is closed")
	}

	session, release, err := s.pool.Acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to borrow session: %w", err)
	}
	defer release()

	mech, payload := uint(0), digest
	switch s.pub.(type) {
	case *ecdsa.PublicKey:
		mech = pkcs11.CKM_ECDSA
	case *rsa.PublicKey:
		mech, payload = pkcs11.CKM_RSA_PKCS, wrapDigestInfo(digest, opts.HashFunc())
	default:
		return nil, fmt.Errorf("no PKCS#11 signing mechanism for %T keys", s.pub)
	}

	ctx := s.pool.Context()
	if err := ctx.SignInit(session, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, s.keyHandle); err != nil {
		return nil, fmt.Errorf("failed to init signing: %w", err)
	}
	sig, err := ctx.Sign(session, payload)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	if _, ok := s.pub.(*ecdsa.PublicKey); ok {
		return ecdsaSigToDER(sig)
	}
	return sig, nil
}

// Close marks the signer unusable. The session pool itself is shared
// and shut down by CloseAllPools at exit.
func (s *PKCS11Signer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// wrapDigestInfo encloses a digest in the RFC 8017 DigestInfo
// structure CKM_RSA_PKCS expects. A digest outside the registry
// passes through untouched; the signature then fails verification
// rather than signing the wrong structure.
func wrapDigestInfo(digest []byte, hash crypto.Hash) []byte {
	oid, err := DigestOID(hash)
	if err != nil {
		return digest
	}
	der, err := asn1.Marshal(struct {
		Algorithm pkix.AlgorithmIdentifier
		Digest    []byte
	}{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: oid, Parameters: asn1.NullRawValue},
		Digest:    digest,
	})
	if err != nil {
		return digest
	}
	return der
}

// ecdsaSigToDER re-encodes a fixed-width r||s signature as the ASN.1
// SEQUENCE everything outside PKCS#11 expects.
func ecdsaSigToDER(rawSig []byte) ([]byte, error) {
	if len(rawSig)%2 != 0 {
		return nil, fmt.Errorf("raw ECDSA signature has odd length %d", len(rawSig))
	}

	half := len(rawSig) / 2
	return asn1.Marshal(struct {
		R, S *big.Int
	}{
		R: new(big.Int).SetBytes(rawSig[:half]),
		S: new(big.Int).SetBytes(rawSig[half:]),
	})
}

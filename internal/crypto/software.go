// This file implements the software (file-backed) signer.

package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
)

// SoftwareSigner is a Signer backed by an in-memory private key,
// typically loaded from a PEM file on disk.
type SoftwareSigner struct {
	alg     AlgorithmID
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	keyPath string
}

var _ Signer = (*SoftwareSigner)(nil)

// mldsaKey is the narrow surface the three circl ML-DSA parameter sets
// share; it lets one code path handle all of them.
type mldsaKey interface {
	encoding.BinaryUnmarshaler
	Bytes() []byte
	Public() crypto.PublicKey
}

// GenerateSoftwareSigner generates a new key pair for the algorithm and
// wraps it in a SoftwareSigner.
func GenerateSoftwareSigner(alg AlgorithmID) (*SoftwareSigner, error) {
	kp, err := GenerateKeyPair(alg)
	if err != nil {
		return nil, err
	}
	return &SoftwareSigner{alg: kp.Algorithm, priv: kp.PrivateKey, pub: kp.PublicKey}, nil
}

// NewSoftwareSigner wraps an existing private key. The algorithm is derived
// from the corresponding public key.
func NewSoftwareSigner(priv crypto.PrivateKey) (*SoftwareSigner, error) {
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key type %T does not implement crypto.Signer", priv)
	}
	alg, err := PublicKeyAlgorithm(signer.Public())
	if err != nil {
		return nil, err
	}
	return &SoftwareSigner{alg: alg, priv: priv, pub: signer.Public()}, nil
}

// Public returns the public key.
func (s *SoftwareSigner) Public() crypto.PublicKey { return s.pub }

// Algorithm returns the signature algorithm of the key.
func (s *SoftwareSigner) Algorithm() AlgorithmID { return s.alg }

// KeyPath returns the file the key was loaded from or saved to, if any.
func (s *SoftwareSigner) KeyPath() string { return s.keyPath }

// Sign signs digest with the private key. For ECDSA and RSA, digest must be
// the hash of the message; for Ed25519, ML-DSA and SLH-DSA it is the full
// message and opts.HashFunc() must be zero.
func (s *SoftwareSigner) Sign(random io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	switch priv := s.priv.(type) {
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(random, priv, digest)

	case ed25519.PrivateKey:
		return ed25519.Sign(priv, digest), nil

	case *rsa.PrivateKey:
		return signRSA(random, priv, digest, opts)

	case *slhdsa.PrivateKey:
		return priv.Sign(random, digest, nil)

	case *mldsa44.PrivateKey, *mldsa65.PrivateKey, *mldsa87.PrivateKey:
		// The zero hash selects pure ML-DSA over the full message.
		return priv.(crypto.Signer).Sign(random, digest, crypto.Hash(0))

	default:
		return nil, fmt.Errorf("no signing path for key type %T", priv)
	}
}

// signRSA picks PSS when the options ask for it, PKCS#1 v1.5 otherwise.
func signRSA(random io.Reader, priv *rsa.PrivateKey, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if cfg, ok := opts.(*SignerOptsConfig); ok && cfg.UsePSS {
		return rsa.SignPSS(random, priv, cfg.Hash, digest, cfg.PSSOptions)
	}
	if pss, ok := opts.(*rsa.PSSOptions); ok {
		return rsa.SignPSS(random, priv, pss.Hash, digest, pss)
	}
	hash := crypto.SHA256
	if opts != nil && opts.HashFunc() != 0 {
		hash = opts.HashFunc()
	}
	return rsa.SignPKCS1v15(random, priv, hash, digest)
}

// Verify verifies a signature with the default options for the algorithm.
func Verify(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool {
	return VerifyWithOpts(alg, pub, message, signature, nil)
}

// VerifyWithOpts verifies a signature with explicit options. For ECDSA and
// RSA, message must be the digest that was signed.
func VerifyWithOpts(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte, opts *SignerOptsConfig) bool {
	switch alg {
	case AlgECDSAP256, AlgECDSAP384, AlgECDSAP521:
		key, ok := pub.(*ecdsa.PublicKey)
		return ok && ecdsa.VerifyASN1(key, message, signature)

	case AlgEd25519:
		key, ok := pub.(ed25519.PublicKey)
		return ok && ed25519.Verify(key, message, signature)

	case AlgRSA2048, AlgRSA3072, AlgRSA4096:
		return verifyRSA(pub, message, signature, opts)

	case AlgMLDSA44, AlgMLDSA65, AlgMLDSA87:
		return verifyMLDSA(pub, message, signature)

	case AlgSLHDSA128s, AlgSLHDSA128f, AlgSLHDSA192s, AlgSLHDSA192f,
		AlgSLHDSA256s, AlgSLHDSA256f:
		slhPub := slhdsaPublicKey(pub)
		if slhPub == nil {
			return false
		}
		return slhdsa.Verify(slhPub, slhdsa.NewMessage(message), signature, nil)

	default:
		return false
	}
}

func verifyRSA(pub crypto.PublicKey, digest, signature []byte, opts *SignerOptsConfig) bool {
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return false
	}
	if opts != nil && opts.UsePSS {
		return rsa.VerifyPSS(key, opts.Hash, digest, signature, opts.PSSOptions) == nil
	}
	hash := crypto.SHA256
	if opts != nil && opts.Hash != 0 {
		hash = opts.Hash
	}
	return rsa.VerifyPKCS1v15(key, hash, digest, signature) == nil
}

// verifyMLDSA dispatches on the concrete public key type rather than the
// algorithm, so a mismatched alg/key pair fails instead of panicking.
func verifyMLDSA(pub crypto.PublicKey, message, signature []byte) bool {
	switch key := pub.(type) {
	case *mldsa44.PublicKey:
		return mldsa44.Verify(key, message, nil, signature)
	case *mldsa65.PublicKey:
		return mldsa65.Verify(key, message, nil, signature)
	case *mldsa87.PublicKey:
		return mldsa87.Verify(key, message, nil, signature)
	}
	return false
}

func slhdsaPublicKey(pub crypto.PublicKey) *slhdsa.PublicKey {
	switch key := pub.(type) {
	case *slhdsa.PublicKey:
		return key
	case slhdsa.PublicKey:
		return &key
	}
	return nil
}

// SavePrivateKey writes the private key to a PEM file with mode 0600.
// If passphrase is non-empty, the PEM block is encrypted.
func (s *SoftwareSigner) SavePrivateKey(path string, passphrase []byte) error {
	block, err := s.pemBlock()
	if err != nil {
		return err
	}

	if len(passphrase) > 0 {
		block, err = x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, passphrase, x509.PEMCipherAES256) //nolint:staticcheck // no stdlib replacement for encrypted PEM
		if err != nil {
			return fmt.Errorf("failed to encrypt key: %w", err)
		}
	}

	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	s.keyPath = path
	return nil
}

// pemBlock encodes the private key as an unencrypted PEM block.
// Classical keys use PKCS#8; the PQC sets use their raw circl encoding
// under an algorithm-named block type.
func (s *SoftwareSigner) pemBlock() (*pem.Block, error) {
	switch priv := s.priv.(type) {
	case ed25519.PrivateKey, *ecdsa.PrivateKey, *rsa.PrivateKey:
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key to PKCS#8: %w", err)
		}
		return &pem.Block{Type: "PRIVATE KEY", Bytes: der}, nil

	case *mldsa44.PrivateKey, *mldsa65.PrivateKey, *mldsa87.PrivateKey:
		return &pem.Block{
			Type:  strings.ToUpper(string(s.alg)) + " PRIVATE KEY",
			Bytes: priv.(mldsaKey).Bytes(),
		}, nil

	case *slhdsa.PrivateKey:
		raw, err := priv.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal SLH-DSA key: %w", err)
		}
		return &pem.Block{Type: fmt.Sprintf("%s PRIVATE KEY", priv.ID), Bytes: raw}, nil

	default:
		return nil, fmt.Errorf("cannot serialize key type %T", s.priv)
	}
}

// LoadPrivateKey reads a signer back from a PEM key file.
func LoadPrivateKey(path string, passphrase []byte) (*SoftwareSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	keyBytes, err := decodeKeyPEM(block, passphrase)
	if err != nil {
		return nil, err
	}

	signer, err := parsePEMKeyBlock(block.Type, keyBytes)
	if err != nil {
		return nil, err
	}
	signer.keyPath = path
	return signer, nil
}

// decodeKeyPEM returns the DER bytes of block, decrypting legacy
// RFC 1423 encryption when a passphrase is supplied.
func decodeKeyPEM(block *pem.Block, passphrase []byte) ([]byte, error) {
	if !x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy encrypted PEM has no stdlib replacement
		return block.Bytes, nil
	}
	if len(passphrase) == 0 {
		return nil, errors.New("key is encrypted; a passphrase is required")
	}
	der, err := x509.DecryptPEMBlock(block, passphrase) //nolint:staticcheck
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	return der, nil
}

// parsePEMKeyBlock parses one decrypted PEM key block into a SoftwareSigner.
func parsePEMKeyBlock(pemType string, keyBytes []byte) (*SoftwareSigner, error) {
	switch pemType {
	case "PRIVATE KEY", "EC PRIVATE KEY", "RSA PRIVATE KEY":
		priv, err := parseClassicalKey(pemType, keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", strings.ToLower(pemType), err)
		}
		alg, pub, err := classicalKeyInfo(priv)
		if err != nil {
			return nil, err
		}
		return &SoftwareSigner{alg: alg, priv: priv, pub: pub}, nil

	case "ML-DSA-44 PRIVATE KEY":
		return parseMLDSAKey(new(mldsa44.PrivateKey), AlgMLDSA44, keyBytes)
	case "ML-DSA-65 PRIVATE KEY":
		return parseMLDSAKey(new(mldsa65.PrivateKey), AlgMLDSA65, keyBytes)
	case "ML-DSA-87 PRIVATE KEY":
		return parseMLDSAKey(new(mldsa87.PrivateKey), AlgMLDSA87, keyBytes)

	default:
		return parseSLHDSAKey(pemType, keyBytes)
	}
}

// parseClassicalKey decodes the three PEM encodings x509 understands.
func parseClassicalKey(pemType string, der []byte) (crypto.PrivateKey, error) {
	switch pemType {
	case "EC PRIVATE KEY": // SEC 1
		return x509.ParseECPrivateKey(der)
	case "RSA PRIVATE KEY": // PKCS#1
		return x509.ParsePKCS1PrivateKey(der)
	default: // PKCS#8
		return x509.ParsePKCS8PrivateKey(der)
	}
}

func parseMLDSAKey(key mldsaKey, alg AlgorithmID, der []byte) (*SoftwareSigner, error) {
	if err := key.UnmarshalBinary(der); err != nil {
		return nil, fmt.Errorf("failed to decode %s key: %w", strings.ToUpper(string(alg)), err)
	}
	return &SoftwareSigner{alg: alg, priv: key, pub: key.Public()}, nil
}

// slhdsaVariants maps the variant part of an SLH-DSA PEM block type
// ("128s" out of "SLH-DSA-SHA2-128s PRIVATE KEY") to its parameter
// set. Only the SHA2 small/fast family is handled; circl's SHAKE
// variants have no registered AlgorithmID here.
var slhdsaVariants = map[string]struct {
	alg AlgorithmID
	id  slhdsa.ID
}{
	"128s": {AlgSLHDSA128s, slhdsa.SHA2_128s},
	"128f": {AlgSLHDSA128f, slhdsa.SHA2_128f},
	"192s": {AlgSLHDSA192s, slhdsa.SHA2_192s},
	"192f": {AlgSLHDSA192f, slhdsa.SHA2_192f},
	"256s": {AlgSLHDSA256s, slhdsa.SHA2_256s},
	"256f": {AlgSLHDSA256f, slhdsa.SHA2_256f},
}

func parseSLHDSAKey(pemType string, der []byte) (*SoftwareSigner, error) {
	variant, ok := strings.CutSuffix(pemType, " PRIVATE KEY")
	if ok {
		variant, ok = strings.CutPrefix(variant, "SLH-DSA-SHA2-")
	}
	entry, known := slhdsaVariants[variant]
	if !ok || !known {
		return nil, fmt.Errorf("unrecognized PEM type %q", pemType)
	}

	var priv slhdsa.PrivateKey
	priv.ID = entry.id
	if err := priv.UnmarshalBinary(der); err != nil {
		return nil, fmt.Errorf("failed to decode %s key: %w", pemType, err)
	}
	pub := priv.PublicKey()
	return &SoftwareSigner{alg: entry.alg, priv: &priv, pub: &pub}, nil
}

// classicalKeyInfo derives the algorithm and public key of a parsed
// classical private key.
func classicalKeyInfo(priv crypto.PrivateKey) (AlgorithmID, crypto.PublicKey, error) {
	switch key := priv.(type) {
	case *ecdsa.PrivateKey:
		alg, ok := curveAlgs[key.Curve]
		if !ok {
			return "", nil, fmt.Errorf("unsupported ECDSA curve: %s", key.Curve.Params().Name)
		}
		return alg, &key.PublicKey, nil

	case ed25519.PrivateKey:
		return AlgEd25519, key.Public(), nil

	case *rsa.PrivateKey:
		alg, err := PublicKeyAlgorithm(&key.PublicKey)
		if err != nil {
			return "", nil, err
		}
		return alg, &key.PublicKey, nil
	}
	return "", nil, fmt.Errorf("cannot derive algorithm for key type %T", priv)
}

// curveAlgs keys off the elliptic.Curve singletons the stdlib returns.
var curveAlgs = map[elliptic.Curve]AlgorithmID{
	elliptic.P256(): AlgECDSAP256,
	elliptic.P384(): AlgECDSAP384,
	elliptic.P521(): AlgECDSAP521,
}

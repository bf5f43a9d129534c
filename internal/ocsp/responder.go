package ocsp

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/remiblancher/ocspkit/internal/ca"
)

// ResponderConfig wires a Responder to its signing identity and the CA
// index it answers from.
type ResponderConfig struct {
	// ResponderCert identifies the responder and must carry the
	// id-kp-OCSPSigning EKU. Nil selects CA-signed mode, where CACert
	// signs responses directly.
	ResponderCert *x509.Certificate

	// Signer holds the private key matching ResponderCert.
	Signer crypto.Signer

	// CACert issued the certificates whose status is served.
	CACert *x509.Certificate

	// CAStore resolves serial numbers against the certificate index.
	CAStore ca.Store

	// Validity bounds thisUpdate..nextUpdate. One hour when zero.
	Validity time.Duration

	// IncludeCerts embeds the responder certificate in responses.
	IncludeCerts bool

	// Digest selects the CertID hash for answers built from a bare
	// serial number (CheckStatusBySerial, CreateResponseForSerial).
	// Zero means the default digest. Parsed requests carry their own
	// CertID digest and are unaffected.
	Digest crypto.Hash
}

// Responder answers OCSP requests from the CA's certificate index.
type Responder struct {
	config *ResponderConfig
}

// NewResponder creates a new OCSP responder. A delegated responder
// certificate is validated up front: it must chain to the CA and carry
// the id-kp-OCSPSigning extended key usage.
func NewResponder(config *ResponderConfig) (*Responder, error) {
	switch {
	case config.Signer == nil:
		return nil, fmt.Errorf("signer is required")
	case config.CACert == nil:
		return nil, fmt.Errorf("CA certificate is required")
	case config.CAStore == nil:
		return nil, fmt.Errorf("CA store is required")
	}

	if config.ResponderCert == nil {
		config.ResponderCert = config.CACert
	} else if !bytes.Equal(config.ResponderCert.Raw, config.CACert.Raw) {
		if err := VerifyResponderCert(config.ResponderCert, config.CACert); err != nil {
			return nil, fmt.Errorf("responder certificate rejected: %w", err)
		}
	}

	if config.Validity == 0 {
		config.Validity = time.Hour
	}

	return &Responder{config: config}, nil
}

// Validity returns the window for which signed responses are valid.
func (r *Responder) Validity() time.Duration {
	return r.config.Validity
}

// newBuilder returns a builder carrying the responder identity, plus the
// validity window starting now.
func (r *Responder) newBuilder() (b *ResponseBuilder, thisUpdate, nextUpdate time.Time) {
	b = NewResponseBuilder(r.config.ResponderCert, r.config.Signer)
	b.IncludeCerts(r.config.IncludeCerts)
	thisUpdate = time.Now().UTC()
	return b, thisUpdate, thisUpdate.Add(r.config.Validity)
}

// addEntry appends one single response to the builder. Statuses outside
// the three assigned values degrade to unknown.
func addEntry(b *ResponseBuilder, id *CertID, info *StatusInfo, thisUpdate, nextUpdate time.Time) {
	switch info.Status {
	case CertStatusGood:
		b.AddGood(id, thisUpdate, nextUpdate)
	case CertStatusRevoked:
		b.AddRevoked(id, thisUpdate, nextUpdate, info.RevocationTime, info.RevocationReason)
	default:
		b.AddUnknown(id, thisUpdate, nextUpdate)
	}
}

// Respond processes a parsed OCSP request and generates a signed response.
// Certificates that cannot be resolved against the index come back with
// status unknown rather than failing the whole response.
func (r *Responder) Respond(ctx context.Context, req *OCSPRequest) ([]byte, error) {
	if req == nil || len(req.TBSRequest.RequestList) == 0 {
		return NewMalformedResponse()
	}

	builder, thisUpdate, nextUpdate := r.newBuilder()
	for i := range req.TBSRequest.RequestList {
		id := &req.TBSRequest.RequestList[i].ReqCert
		info, err := r.CheckStatus(ctx, id)
		if err != nil {
			info = &StatusInfo{Status: CertStatusUnknown}
		}
		addEntry(builder, id, info, thisUpdate, nextUpdate)
	}

	return builder.Build()
}

// ServeOCSP handles a raw DER request and returns a raw DER response.
// Parse failures produce a malformedRequest response, not an error: the
// transport layer always has something to send back.
func (r *Responder) ServeOCSP(ctx context.Context, reqData []byte) ([]byte, error) {
	req, err := ParseRequest(reqData)
	if err != nil {
		return NewMalformedResponse()
	}
	return r.Respond(ctx, req)
}

// StatusInfo contains information about a certificate's status.
type StatusInfo struct {
	Status           CertStatus
	RevocationTime   time.Time
	RevocationReason RevocationReason
}

// CheckStatus checks the revocation status of a certificate identified by
// CertID. CertIDs naming a different issuer resolve to unknown.
func (r *Responder) CheckStatus(ctx context.Context, certID *CertID) (*StatusInfo, error) {
	// A CertID naming another issuer, or missing its serial, can only
	// ever resolve to unknown.
	if !certID.MatchesIssuer(r.config.CACert) || certID.SerialNumber == nil {
		return &StatusInfo{Status: CertStatusUnknown}, nil
	}

	entries, err := r.config.CAStore.ReadIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate index: %w", err)
	}

	for i := range entries {
		if new(big.Int).SetBytes(entries[i].Serial).Cmp(certID.SerialNumber) == 0 {
			return statusFromEntry(&entries[i]), nil
		}
	}

	// Not in the index: never issued by this CA as far as we know.
	return &StatusInfo{Status: CertStatusUnknown}, nil
}

// statusFromEntry converts an index entry to a StatusInfo.
func statusFromEntry(entry *ca.IndexEntry) *StatusInfo {
	switch entry.Status {
	case ca.StatusRevoked:
		return &StatusInfo{
			Status:           CertStatusRevoked,
			RevocationTime:   entry.Revocation,
			RevocationReason: reasonFromKeyword(entry.RevocationReason),
		}
	case ca.StatusValid, ca.StatusExpired:
		// Expired certificates were never revoked; OCSP answers good
		// and leaves expiry to the dates on the certificate itself.
		return &StatusInfo{Status: CertStatusGood}
	default:
		return &StatusInfo{Status: CertStatusUnknown}
	}
}

// reasonKeywords maps index revocation keywords, lower-cased, to their
// RFC 5280 codes.
var reasonKeywords = map[string]RevocationReason{
	"keycompromise":        ReasonKeyCompromise,
	"cacompromise":         ReasonCACompromise,
	"affiliationchanged":   ReasonAffiliationChanged,
	"superseded":           ReasonSuperseded,
	"cessationofoperation": ReasonCessationOfOperation,
	"certificatehold":      ReasonCertificateHold,
	"removefromcrl":        ReasonRemoveFromCRL,
	"privilegewithdrawn":   ReasonPrivilegeWithdrawn,
	"aacompromise":         ReasonAACompromise,
}

// reasonFromKeyword maps an index reason keyword to its RFC 5280 code.
// Matching is case-insensitive since OpenSSL-style indexes write
// CACompromise where other tools write caCompromise. Unknown or absent
// keywords map to unspecified.
func reasonFromKeyword(keyword string) RevocationReason {
	if reason, ok := reasonKeywords[strings.ToLower(keyword)]; ok {
		return reason
	}
	return ReasonUnspecified
}

// parseHexSerial decodes a hex-encoded serial number.
func parseHexSerial(serialHex string) (*big.Int, error) {
	raw, err := hex.DecodeString(serialHex)
	if err != nil {
		return nil, fmt.Errorf("invalid serial hex: %w", err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// CheckStatusBySerial checks the revocation status by serial number.
func (r *Responder) CheckStatusBySerial(ctx context.Context, serial *big.Int) (*StatusInfo, error) {
	certID, err := NewCertIDFromSerial(r.config.Digest, r.config.CACert, serial)
	if err != nil {
		return nil, err
	}
	return r.CheckStatus(ctx, certID)
}

// CheckStatusBySerialHex checks the revocation status by hex-encoded serial.
func (r *Responder) CheckStatusBySerialHex(ctx context.Context, serialHex string) (*StatusInfo, error) {
	serial, err := parseHexSerial(serialHex)
	if err != nil {
		return nil, err
	}
	return r.CheckStatusBySerial(ctx, serial)
}

// CreateResponseForSerial creates a signed OCSP response asserting the
// given status for a serial number, bypassing the index. Used to pre-sign
// responses for distribution.
func (r *Responder) CreateResponseForSerial(serial *big.Int, status CertStatus, revocationTime time.Time, reason RevocationReason) ([]byte, error) {
	certID, err := NewCertIDFromSerial(r.config.Digest, r.config.CACert, serial)
	if err != nil {
		return nil, err
	}

	builder, thisUpdate, nextUpdate := r.newBuilder()
	info := &StatusInfo{Status: status, RevocationTime: revocationTime, RevocationReason: reason}
	addEntry(builder, certID, info, thisUpdate, nextUpdate)

	return builder.Build()
}

// CreateResponseForSerialHex creates a signed OCSP response for a
// hex-encoded serial.
func (r *Responder) CreateResponseForSerialHex(serialHex string, status CertStatus, revocationTime time.Time, reason RevocationReason) ([]byte, error) {
	serial, err := parseHexSerial(serialHex)
	if err != nil {
		return nil, err
	}
	return r.CreateResponseForSerial(serial, status, revocationTime, reason)
}

// VerifyResponderCert checks that a certificate is usable for OCSP
// response signing on behalf of the given issuer.
func VerifyResponderCert(cert *x509.Certificate, issuer *x509.Certificate) error {
	// The CA may sign its own responses; anything else needs the EKU.
	if !cert.IsCA && !slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageOCSPSigning) {
		return fmt.Errorf("certificate does not have OCSP Signing extended key usage")
	}

	if issuer != nil {
		if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
			return fmt.Errorf("certificate was not issued by the specified CA")
		}
		if err := cert.CheckSignatureFrom(issuer); err != nil {
			// Post-quantum chains cannot be checked with the standard
			// library; the issuer name match above still binds the pair.
			if !errors.Is(err, x509.ErrUnsupportedAlgorithm) {
				return fmt.Errorf("certificate signature verification failed: %w", err)
			}
		}
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid")
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate has expired")
	}

	return nil
}

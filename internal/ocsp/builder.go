package ocsp

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
)

// ResponseBuilder assembles and signs a successful OCSP response.
type ResponseBuilder struct {
	responderCert *x509.Certificate
	signer        crypto.Signer
	producedAt    time.Time
	responses     []SingleResponse
	includeCerts  bool
	err           error
}

// NewResponseBuilder creates a new response builder signing with the given
// responder certificate and key.
func NewResponseBuilder(responderCert *x509.Certificate, signer crypto.Signer) *ResponseBuilder {
	return &ResponseBuilder{
		responderCert: responderCert,
		signer:        signer,
		producedAt:    time.Now().UTC(),
		includeCerts:  true,
	}
}

// SetProducedAt sets the producedAt time.
func (b *ResponseBuilder) SetProducedAt(t time.Time) *ResponseBuilder {
	b.producedAt = t.UTC()
	return b
}

// IncludeCerts sets whether to include the responder certificate.
func (b *ResponseBuilder) IncludeCerts(include bool) *ResponseBuilder {
	b.includeCerts = include
	return b
}

// AddGood adds a "good" status for a certificate.
func (b *ResponseBuilder) AddGood(certID *CertID, thisUpdate, nextUpdate time.Time) *ResponseBuilder {
	// good [0] IMPLICIT NULL
	certStatus := asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: false,
	}
	return b.add(certID, certStatus, thisUpdate, nextUpdate)
}

// AddRevoked adds a "revoked" status for a certificate.
func (b *ResponseBuilder) AddRevoked(certID *CertID, thisUpdate, nextUpdate, revocationTime time.Time, reason RevocationReason) *ResponseBuilder {
	// revoked [1] IMPLICIT RevokedInfo: the context tag replaces the
	// SEQUENCE tag, so the RevokedInfo fields sit directly under [1].
	info := RevokedInfo{
		RevocationTime:   revocationTime.UTC(),
		RevocationReason: asn1.Enumerated(reason),
	}
	der, err := asn1.MarshalWithParams(info, "tag:1")
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("failed to marshal RevokedInfo: %w", err)
		}
		return b
	}
	return b.add(certID, asn1.RawValue{FullBytes: der}, thisUpdate, nextUpdate)
}

// AddUnknown adds an "unknown" status for a certificate.
func (b *ResponseBuilder) AddUnknown(certID *CertID, thisUpdate, nextUpdate time.Time) *ResponseBuilder {
	// unknown [2] IMPLICIT NULL
	certStatus := asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        2,
		IsCompound: false,
	}
	return b.add(certID, certStatus, thisUpdate, nextUpdate)
}

func (b *ResponseBuilder) add(certID *CertID, certStatus asn1.RawValue, thisUpdate, nextUpdate time.Time) *ResponseBuilder {
	b.responses = append(b.responses, SingleResponse{
		CertID:     *certID,
		CertStatus: certStatus,
		ThisUpdate: thisUpdate.UTC(),
		NextUpdate: nextUpdate.UTC(),
	})
	return b
}

// Build creates and signs the OCSP response. Responses keep the order in
// which they were added.
func (b *ResponseBuilder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, NewOCSPError("build", b.err)
	}
	if len(b.responses) == 0 {
		return nil, NewOCSPError("build", fmt.Errorf("no responses added"))
	}

	// ResponderID ::= CHOICE { byName [1] Name, byKey [2] KeyHash }
	// KeyHash ::= OCTET STRING, the SHA-1 hash of the responder's public
	// key BIT STRING content. The digest is pinned by RFC 6960 §4.2.1
	// regardless of the hash used anywhere else in the response. The [2]
	// tag is EXPLICIT, wrapping the full OCTET STRING.
	keyBits, err := publicKeyBits(b.responderCert)
	if err != nil {
		return nil, NewOCSPError("build", err)
	}
	keyHash, err := pkicrypto.ComputeDigest(crypto.SHA1, keyBits)
	if err != nil {
		return nil, NewOCSPError("build", fmt.Errorf("%w: %v", ErrDigest, err))
	}
	octets, err := asn1.Marshal(keyHash)
	if err != nil {
		return nil, NewOCSPError("build", fmt.Errorf("failed to marshal key hash: %w", err))
	}
	responderID := asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        2,
		IsCompound: true,
		Bytes:      octets,
	}

	responseData := ResponseData{
		Version:     0,
		ResponderID: responderID,
		ProducedAt:  b.producedAt,
		Responses:   b.responses,
	}

	tbs, err := asn1.Marshal(responseData)
	if err != nil {
		return nil, NewOCSPError("build", fmt.Errorf("failed to marshal response data: %w", err))
	}

	signature, sigAlg, err := b.sign(tbs)
	if err != nil {
		return nil, NewOCSPError("build", fmt.Errorf("failed to sign response: %w", err))
	}

	basic := BasicOCSPResponse{
		TBSResponseData:    responseData,
		SignatureAlgorithm: sigAlg,
		Signature:          asn1.BitString{Bytes: signature, BitLength: len(signature) * 8},
	}
	if b.includeCerts {
		basic.Certs = []asn1.RawValue{{FullBytes: b.responderCert.Raw}}
	}

	basicDER, err := asn1.Marshal(basic)
	if err != nil {
		return nil, NewOCSPError("build", fmt.Errorf("failed to marshal basic response: %w", err))
	}

	der, err := asn1.Marshal(responseEnvelope{
		Status: asn1.Enumerated(StatusSuccessful),
		ResponseBytes: responseBytes{
			ResponseType: OIDOcspBasic,
			Response:     basicDER,
		},
	})
	if err != nil {
		return nil, NewOCSPError("build", err)
	}
	return der, nil
}

// sign signs the to-be-signed response data with the responder's key. The
// signature algorithm and pre-hashing behavior come from the algorithm
// registry: schemes that hash internally receive the full message.
func (b *ResponseBuilder) sign(tbs []byte) ([]byte, pkix.AlgorithmIdentifier, error) {
	alg, err := pkicrypto.SignerAlgorithm(b.signer)
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, err
	}
	sigOID, err := alg.SignatureOID()
	if err != nil {
		return nil, pkix.AlgorithmIdentifier{}, err
	}

	sigAlg := pkix.AlgorithmIdentifier{Algorithm: sigOID}
	switch alg {
	case pkicrypto.AlgRSA2048, pkicrypto.AlgRSA3072, pkicrypto.AlgRSA4096:
		// RFC 4055: PKCS#1 v1.5 identifiers carry an explicit NULL.
		sigAlg.Parameters = asn1.NullRawValue
	}

	if hash := alg.SignatureHash(); hash != 0 {
		digest, err := pkicrypto.ComputeDigest(hash, tbs)
		if err != nil {
			return nil, pkix.AlgorithmIdentifier{}, fmt.Errorf("%w: %v", ErrDigest, err)
		}
		sig, err := b.signer.Sign(rand.Reader, digest, hash)
		return sig, sigAlg, err
	}

	sig, err := b.signer.Sign(rand.Reader, tbs, crypto.Hash(0))
	return sig, sigAlg, err
}

// NewErrorResponse creates an unsigned error response: the minimal
// envelope with an ENUMERATED status and no responseBytes.
func NewErrorResponse(status ResponseStatus) ([]byte, error) {
	if status == StatusSuccessful {
		return nil, NewOCSPError("build", fmt.Errorf("cannot create error response with successful status"))
	}
	if !status.Valid() {
		return nil, NewOCSPError("build", fmt.Errorf("%w: %d", ErrUnsupportedStatus, int(status)))
	}
	return asn1.Marshal(responseEnvelope{Status: asn1.Enumerated(status)})
}

// NewMalformedResponse creates a malformedRequest response.
func NewMalformedResponse() ([]byte, error) {
	return NewErrorResponse(StatusMalformedRequest)
}

// NewInternalErrorResponse creates an internalError response.
func NewInternalErrorResponse() ([]byte, error) {
	return NewErrorResponse(StatusInternalError)
}

// NewUnauthorizedResponse creates an unauthorized response.
func NewUnauthorizedResponse() ([]byte, error) {
	return NewErrorResponse(StatusUnauthorized)
}

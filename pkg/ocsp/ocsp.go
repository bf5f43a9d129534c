// Package ocsp is the public API of ocspkit.
// It re-exports the RFC 6960 implementation from internal/ocsp so that
// external consumers never depend on internal packages directly.
package ocsp

import (
	"crypto"
	"crypto/x509"
	"math/big"
	"net/http"

	"github.com/remiblancher/ocspkit/internal/ca"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// Re-export OCSP types
type (
	// CertID identifies a certificate for which status is requested.
	CertID = ocsp.CertID

	// OCSPRequest represents a complete OCSP request.
	OCSPRequest = ocsp.OCSPRequest

	// TBSRequest is the to-be-signed portion of an OCSP request.
	TBSRequest = ocsp.TBSRequest

	// Request identifies a single certificate within an OCSP request.
	Request = ocsp.Request

	// Signature is the optional signature over a TBSRequest.
	Signature = ocsp.Signature

	// Response is the decoded envelope of an OCSP response.
	Response = ocsp.Response

	// BasicOCSPResponse is the id-pkix-ocsp-basic response payload.
	BasicOCSPResponse = ocsp.BasicOCSPResponse

	// ResponseData is the signed portion of a basic response.
	ResponseData = ocsp.ResponseData

	// SingleResponse carries the status of a single certificate.
	SingleResponse = ocsp.SingleResponse

	// RevokedInfo describes when and why a certificate was revoked.
	RevokedInfo = ocsp.RevokedInfo

	// ResponseStatus represents the status of an OCSP response.
	ResponseStatus = ocsp.ResponseStatus

	// CertStatus represents the revocation status of a certificate.
	CertStatus = ocsp.CertStatus

	// RevocationReason represents the reason for revocation.
	RevocationReason = ocsp.RevocationReason

	// ResponseBuilder assembles and signs OCSP responses.
	ResponseBuilder = ocsp.ResponseBuilder

	// ResponderConfig holds OCSP responder configuration.
	ResponderConfig = ocsp.ResponderConfig

	// Responder answers OCSP requests from a CA certificate index.
	Responder = ocsp.Responder

	// StatusInfo holds certificate status info.
	StatusInfo = ocsp.StatusInfo

	// Client queries OCSP responders over HTTP.
	Client = ocsp.Client

	// OCSPError wraps an error with the operation that produced it.
	OCSPError = ocsp.OCSPError
)

// Re-export CA store types used by the responder configuration
type (
	// CAStore is the responder's view of the CA certificate index.
	CAStore = ca.Store

	// FileStore is a file-based certificate store.
	FileStore = ca.FileStore

	// IndexEntry represents an entry in the certificate index.
	IndexEntry = ca.IndexEntry

	// CARevocationReason represents revocation reasons as recorded in the
	// CA index, distinct from the OCSP wire-level RevocationReason.
	CARevocationReason = ca.RevocationReason
)

// Certificate status constants.
const (
	CertStatusGood    = ocsp.CertStatusGood
	CertStatusRevoked = ocsp.CertStatusRevoked
	CertStatusUnknown = ocsp.CertStatusUnknown
)

// Response status constants.
const (
	StatusSuccessful       = ocsp.StatusSuccessful
	StatusMalformedRequest = ocsp.StatusMalformedRequest
	StatusInternalError    = ocsp.StatusInternalError
	StatusTryLater         = ocsp.StatusTryLater
	StatusSigRequired      = ocsp.StatusSigRequired
	StatusUnauthorized     = ocsp.StatusUnauthorized
)

// Revocation reason constants.
const (
	ReasonUnspecified          = ocsp.ReasonUnspecified
	ReasonKeyCompromise        = ocsp.ReasonKeyCompromise
	ReasonCACompromise         = ocsp.ReasonCACompromise
	ReasonAffiliationChanged   = ocsp.ReasonAffiliationChanged
	ReasonSuperseded           = ocsp.ReasonSuperseded
	ReasonCessationOfOperation = ocsp.ReasonCessationOfOperation
	ReasonCertificateHold      = ocsp.ReasonCertificateHold
	ReasonRemoveFromCRL        = ocsp.ReasonRemoveFromCRL
	ReasonPrivilegeWithdrawn   = ocsp.ReasonPrivilegeWithdrawn
	ReasonAACompromise         = ocsp.ReasonAACompromise
)

// CA index revocation reason constants, for MarkRevoked on a store.
const (
	CAReasonUnspecified          = ca.ReasonUnspecified
	CAReasonKeyCompromise        = ca.ReasonKeyCompromise
	CAReasonCACompromise         = ca.ReasonCACompromise
	CAReasonAffiliationChanged   = ca.ReasonAffiliationChanged
	CAReasonSuperseded           = ca.ReasonSuperseded
	CAReasonCessationOfOperation = ca.ReasonCessationOfOperation
	CAReasonCertificateHold      = ca.ReasonCertificateHold
	CAReasonRemoveFromCRL        = ca.ReasonRemoveFromCRL
	CAReasonPrivilegeWithdrawn   = ca.ReasonPrivilegeWithdrawn
	CAReasonAACompromise         = ca.ReasonAACompromise
)

// Re-export sentinel errors from internal/ocsp
var (
	ErrMalformedEncoding       = ocsp.ErrMalformedEncoding
	ErrTrailingData            = ocsp.ErrTrailingData
	ErrUnsupportedResponseType = ocsp.ErrUnsupportedResponseType
	ErrUnsupportedStatus       = ocsp.ErrUnsupportedStatus
	ErrUnsupportedDigest       = ocsp.ErrUnsupportedDigest
	ErrNameEncoding            = ocsp.ErrNameEncoding
	ErrDigest                  = ocsp.ErrDigest
)

// OCSP object identifiers per RFC 6960.
var (
	OIDPKIXOcsp    = ocsp.OIDPKIXOcsp
	OIDOcspBasic   = ocsp.OIDOcspBasic
	OIDOcspNoCheck = ocsp.OIDOcspNoCheck
)

// NewCertID creates a CertID for subject, a certificate issued by issuer.
func NewCertID(hash crypto.Hash, subject, issuer *x509.Certificate) (*CertID, error) {
	return ocsp.NewCertID(hash, subject, issuer)
}

// NewCertIDRaw creates a CertID from pre-extracted issuer material.
func NewCertIDRaw(hash crypto.Hash, issuerName, issuerKey []byte, serial *big.Int) (*CertID, error) {
	return ocsp.NewCertIDRaw(hash, issuerName, issuerKey, serial)
}

// NewCertIDFromSerial creates a CertID for a serial number from the given issuer.
func NewCertIDFromSerial(hash crypto.Hash, issuer *x509.Certificate, serial *big.Int) (*CertID, error) {
	return ocsp.NewCertIDFromSerial(hash, issuer, serial)
}

// CreateRequest creates an OCSP request for certificates issued by issuer.
func CreateRequest(issuer *x509.Certificate, certs []*x509.Certificate, hash crypto.Hash) (*OCSPRequest, error) {
	return ocsp.CreateRequest(issuer, certs, hash)
}

// ParseRequest parses a DER-encoded OCSP request.
func ParseRequest(data []byte) (*OCSPRequest, error) {
	return ocsp.ParseRequest(data)
}

// ParseRequestFromHTTP parses an OCSP request from an HTTP GET or POST.
func ParseRequestFromHTTP(r *http.Request) (*OCSPRequest, error) {
	return ocsp.ParseRequestFromHTTP(r)
}

// ParseResponse parses a DER-encoded OCSP response.
func ParseResponse(data []byte) (*Response, error) {
	return ocsp.ParseResponse(data)
}

// GetResponseStatus extracts just the response status from raw DER.
func GetResponseStatus(data []byte) (ResponseStatus, error) {
	return ocsp.GetResponseStatus(data)
}

// NewResponseBuilder creates a new response builder.
func NewResponseBuilder(responderCert *x509.Certificate, signer crypto.Signer) *ResponseBuilder {
	return ocsp.NewResponseBuilder(responderCert, signer)
}

// NewErrorResponse creates an unsigned OCSP error response.
func NewErrorResponse(status ResponseStatus) ([]byte, error) {
	return ocsp.NewErrorResponse(status)
}

// NewMalformedResponse creates a malformedRequest error response.
func NewMalformedResponse() ([]byte, error) {
	return ocsp.NewMalformedResponse()
}

// NewInternalErrorResponse creates an internalError error response.
func NewInternalErrorResponse() ([]byte, error) {
	return ocsp.NewInternalErrorResponse()
}

// NewUnauthorizedResponse creates an unauthorized error response.
func NewUnauthorizedResponse() ([]byte, error) {
	return ocsp.NewUnauthorizedResponse()
}

// NewResponder creates a new OCSP responder.
func NewResponder(config *ResponderConfig) (*Responder, error) {
	return ocsp.NewResponder(config)
}

// VerifyResponderCert checks that a certificate is fit to sign OCSP
// responses on behalf of issuer.
func VerifyResponderCert(cert, issuer *x509.Certificate) error {
	return ocsp.VerifyResponderCert(cert, issuer)
}

// NewClient creates an OCSP client with default settings.
func NewClient() *Client {
	return ocsp.NewClient()
}

// ServerFromCert extracts the OCSP server URL from a certificate.
func ServerFromCert(cert *x509.Certificate) (string, error) {
	return ocsp.ServerFromCert(cert)
}

// NewFileStore creates a new file-based certificate store.
func NewFileStore(dir string) *FileStore {
	return ca.NewFileStore(dir)
}

// ParseRevocationReason parses a revocation reason keyword for the CA index.
func ParseRevocationReason(s string) (CARevocationReason, error) {
	return ca.ParseRevocationReason(s)
}

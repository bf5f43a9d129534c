package ocsp

import (
	"errors"
	"fmt"
)

// OCSPError represents an OCSP operation error with structured context.
// It supports errors.Is() and errors.As() for improved error handling.
type OCSPError struct {
	Op  string // Operation: "cert-id", "parse-request", "parse-response", "build", "respond", "query"
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *OCSPError) Error() string {
	return fmt.Sprintf("ocsp %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OCSPError) Unwrap() error { return e.Err }

// NewOCSPError creates a new OCSPError with the given operation and error.
func NewOCSPError(op string, err error) *OCSPError {
	return &OCSPError{Op: op, Err: err}
}

// Sentinel errors for OCSP operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrMalformedEncoding indicates the DER input could not be decoded.
	ErrMalformedEncoding = errors.New("malformed OCSP encoding")

	// ErrTrailingData indicates bytes remain after the outer DER structure.
	ErrTrailingData = errors.New("trailing data after OCSP structure")

	// ErrUnsupportedResponseType indicates a successful response whose
	// responseType OID is not id-pkix-ocsp-basic.
	ErrUnsupportedResponseType = errors.New("unsupported OCSP response type")

	// ErrUnsupportedStatus indicates a responseStatus value outside the
	// set defined by RFC 6960 (0-3, 5, 6).
	ErrUnsupportedStatus = errors.New("unsupported OCSP response status")

	// ErrUnsupportedDigest indicates a digest algorithm with no known OID mapping.
	ErrUnsupportedDigest = errors.New("unsupported digest algorithm")

	// ErrNameEncoding indicates the issuer name bytes are missing or unusable.
	ErrNameEncoding = errors.New("invalid issuer name encoding")

	// ErrDigest indicates a digest computation failed.
	ErrDigest = errors.New("digest computation failed")
)

// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"

	"github.com/remiblancher/ocspkit/internal/api/dto"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// ErrInvalidInput marks request validation failures. Services wrap it so
// MapError answers 400 instead of 500.
var ErrInvalidInput = errors.New("invalid input")

// Error codes for API responses.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeMalformed      = "MALFORMED_OCSP"
	CodeUnsupported    = "UNSUPPORTED"
	CodeInternal       = "INTERNAL_ERROR"
)

// badRequestClasses groups the sentinels that map to a 400 answer with
// the code each group reports. First match wins.
var badRequestClasses = []struct {
	code      string
	sentinels []error
}{
	{CodeInvalidRequest, []error{ErrInvalidInput}},
	{CodeMalformed, []error{ocsp.ErrMalformedEncoding, ocsp.ErrTrailingData}},
	{CodeUnsupported, []error{ocsp.ErrUnsupportedDigest, ocsp.ErrUnsupportedResponseType, ocsp.ErrUnsupportedStatus}},
}

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	for _, class := range badRequestClasses {
		for _, sentinel := range class.sentinels {
			if errors.Is(err, sentinel) {
				return http.StatusBadRequest, &dto.APIError{Code: class.code, Message: err.Error()}
			}
		}
	}

	// OCSPError carries the failing operation; surface it in the details.
	var ocspErr *ocsp.OCSPError
	if errors.As(err, &ocspErr) {
		return http.StatusInternalServerError, &dto.APIError{
			Code:    CodeInternal,
			Message: ocspErr.Error(),
			Details: map[string]string{"operation": ocspErr.Op},
		}
	}

	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{Code: CodeInvalidRequest, Message: message}
}

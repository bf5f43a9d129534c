package ocsp

import (
	"encoding/asn1"
	"fmt"
)

// Response is the decoded envelope of an OCSP response.
//
// For error responses Basic is nil and only Status carries information.
// For successful responses Basic holds the decoded BasicOCSPResponse.
// The signature over Basic is NOT verified here; callers that need
// authenticity must check it against the responder certificate themselves.
type Response struct {
	Status ResponseStatus
	Basic  *BasicOCSPResponse
}

// ParseResponse parses a DER-encoded OCSP response. The input must contain
// exactly one response structure: trailing bytes after the envelope are
// rejected. A successful response must carry an id-pkix-ocsp-basic payload;
// any other response type is refused rather than guessed at.
func ParseResponse(data []byte) (*Response, error) {
	if len(data) == 0 {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: empty input", ErrMalformedEncoding))
	}

	var envelope responseEnvelope
	rest, err := asn1.Unmarshal(data, &envelope)
	if err != nil {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: %v", ErrMalformedEncoding, err))
	}
	if len(rest) > 0 {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: %d bytes", ErrTrailingData, len(rest)))
	}

	status := ResponseStatus(envelope.Status)
	if !status.Valid() {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: %d", ErrUnsupportedStatus, int(status)))
	}

	// Error responses carry no payload. RFC 6960 forbids responseBytes on
	// them; a payload that slips through anyway is ignored, not decoded.
	if status != StatusSuccessful {
		return &Response{Status: status}, nil
	}

	if len(envelope.ResponseBytes.ResponseType) == 0 {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: successful response without responseBytes", ErrMalformedEncoding))
	}
	if !envelope.ResponseBytes.ResponseType.Equal(OIDOcspBasic) {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: %v", ErrUnsupportedResponseType, envelope.ResponseBytes.ResponseType))
	}

	var basic BasicOCSPResponse
	inner, err := asn1.Unmarshal(envelope.ResponseBytes.Response, &basic)
	if err != nil {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: invalid BasicOCSPResponse: %v", ErrMalformedEncoding, err))
	}
	if len(inner) > 0 {
		return nil, NewOCSPError("parse-response", fmt.Errorf("%w: trailing data inside responseBytes", ErrMalformedEncoding))
	}

	return &Response{Status: status, Basic: &basic}, nil
}

// GetResponseStatus extracts just the response status from raw DER.
func GetResponseStatus(data []byte) (ResponseStatus, error) {
	resp, err := ParseResponse(data)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// FindResponse returns the single response matching the given CertID, or
// nil if the response carries no match.
func (r *Response) FindResponse(id *CertID) *SingleResponse {
	if r == nil || r.Basic == nil || id == nil {
		return nil
	}
	for i := range r.Basic.TBSResponseData.Responses {
		sr := &r.Basic.TBSResponseData.Responses[i]
		if sr.CertID.Equal(id) {
			return sr
		}
	}
	return nil
}

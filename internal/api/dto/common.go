// Package dto defines the JSON bodies of the responder's REST API.
package dto

import (
	"encoding/base64"
	"fmt"
)

// BinaryData is a certificate or other blob in a JSON body. PEM is
// the default since it is already text; base64 carries raw DER.
type BinaryData struct {
	Data     string `json:"data"`
	Encoding string `json:"encoding,omitempty"`
}

// Decode returns the raw bytes according to the declared encoding.
func (b *BinaryData) Decode() ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("no binary data")
	}
	if b.Encoding == "base64" {
		return base64.StdEncoding.DecodeString(b.Data)
	}
	if b.Encoding != "" && b.Encoding != "pem" {
		return nil, fmt.Errorf("unknown encoding %q", b.Encoding)
	}
	// PEM is already text; pass it through.
	return []byte(b.Data), nil
}

// APIError is the error body every endpoint returns on failure. Code
// is machine-readable; Details carries field-level context.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse answers the liveness probe.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse answers the readiness probe, with one entry per
// dependency checked.
type ReadyResponse struct {
	Ready  bool            `json:"ready"`
	Checks map[string]bool `json:"checks,omitempty"`
}

// Package service provides business logic for the responder API.
package service

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/remiblancher/ocspkit/internal/api/dto"
	apierrors "github.com/remiblancher/ocspkit/internal/api/errors"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// OCSPService answers status queries through a configured responder.
type OCSPService struct {
	responder *ocsp.Responder
}

// NewOCSPService creates a new OCSPService.
func NewOCSPService(responder *ocsp.Responder) *OCSPService {
	return &OCSPService{responder: responder}
}

// Respond processes a parsed RFC 6960 request and returns the signed DER
// response.
func (s *OCSPService) Respond(ctx context.Context, req *ocsp.OCSPRequest) ([]byte, error) {
	return s.responder.Respond(ctx, req)
}

// Validity returns the responder's response validity window.
func (s *OCSPService) Validity() time.Duration {
	return s.responder.Validity()
}

// Query checks a certificate's status against the index and returns both
// the decoded status and a signed OCSP response for it.
func (s *OCSPService) Query(ctx context.Context, req *dto.OCSPQueryRequest) (*dto.OCSPQueryResponse, error) {
	serial, err := resolveSerial(req)
	if err != nil {
		return nil, err
	}

	info, err := s.responder.CheckStatusBySerial(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to check certificate status: %w", err)
	}

	respDER, err := s.responder.CreateResponseForSerial(serial, info.Status,
		info.RevocationTime, info.RevocationReason)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCSP response: %w", err)
	}

	return s.queryResponse(info, respDER), nil
}

// queryResponse shapes the wire DTO for a status lookup. The reported
// window mirrors the one CreateResponseForSerial signed into respDER.
func (s *OCSPService) queryResponse(info *ocsp.StatusInfo, respDER []byte) *dto.OCSPQueryResponse {
	now := time.Now().UTC()
	resp := &dto.OCSPQueryResponse{
		Response: dto.BinaryData{
			Data:     base64.StdEncoding.EncodeToString(respDER),
			Encoding: "base64",
		},
		Status:     dto.OCSPStatus{Status: info.Status.String()},
		ProducedAt: now.Format(time.RFC3339),
		ThisUpdate: now.Format(time.RFC3339),
		NextUpdate: now.Add(s.responder.Validity()).Format(time.RFC3339),
	}

	if info.Status == ocsp.CertStatusRevoked {
		resp.Status.RevokedAt = info.RevocationTime.UTC().Format(time.RFC3339)
		resp.Status.RevocationReason = info.RevocationReason.String()
	}
	return resp
}

// resolveSerial determines the serial number to check from the request.
func resolveSerial(req *dto.OCSPQueryRequest) (*big.Int, error) {
	switch {
	case req.Serial != "":
		raw, err := hex.DecodeString(req.Serial)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid serial number hex", apierrors.ErrInvalidInput)
		}
		return new(big.Int).SetBytes(raw), nil

	case req.Certificate != nil:
		raw, err := req.Certificate.Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidInput, err)
		}
		cert, err := parseCertificate(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidInput, err)
		}
		return cert.SerialNumber, nil

	default:
		return nil, fmt.Errorf("%w: serial number or certificate is required", apierrors.ErrInvalidInput)
	}
}

// parseCertificate accepts a certificate in PEM or raw DER form.
func parseCertificate(data []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	return x509.ParseCertificate(data)
}

package ocsp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// =============================================================================
// Test Helpers
// =============================================================================

// generateOCSPTestKey generates an ECDSA key pair for OCSP testing.
func generateOCSPTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return key
}

// generateOCSPTestCA creates a self-signed CA certificate for OCSP testing.
func generateOCSPTestCA(t *testing.T, key *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("Failed to generate serial number: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "OCSP Facade Test CA",
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

// issueOCSPTestLeaf issues a leaf certificate with an OCSP server URL.
func issueOCSPTestLeaf(t *testing.T, caCert *x509.Certificate, caKey *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("Failed to generate serial number: %v", err)
	}

	leafKey := generateOCSPTestKey(t)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "OCSP Facade Test Leaf",
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		OCSPServer:            []string{"http://ocsp.example.com"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

// =============================================================================
// ParseRequest Tests
// =============================================================================

func TestU_Facade_ParseRequest(t *testing.T) {
	t.Run("[Unit] ParseRequest: invalid data", func(t *testing.T) {
		_, err := ParseRequest([]byte("not valid OCSP data"))
		if err == nil {
			t.Error("ParseRequest() should fail for invalid data")
		}
	})

	t.Run("[Unit] ParseRequest: empty data", func(t *testing.T) {
		_, err := ParseRequest([]byte{})
		if err == nil {
			t.Error("ParseRequest() should fail for empty data")
		}
	})
}

// =============================================================================
// ParseResponse Tests
// =============================================================================

func TestU_Facade_ParseResponse(t *testing.T) {
	t.Run("[Unit] ParseResponse: invalid data", func(t *testing.T) {
		_, err := ParseResponse([]byte("not valid OCSP response"))
		if err == nil {
			t.Error("ParseResponse() should fail for invalid data")
		}
	})

	t.Run("[Unit] ParseResponse: empty data", func(t *testing.T) {
		_, err := ParseResponse([]byte{})
		if err == nil {
			t.Error("ParseResponse() should fail for empty data")
		}
	})
}

// =============================================================================
// Error Response Tests
// =============================================================================

func TestU_Facade_ErrorResponses(t *testing.T) {
	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  ResponseStatus
	}{
		{
			name:  "[Unit] NewMalformedResponse: round trips",
			build: NewMalformedResponse,
			want:  StatusMalformedRequest,
		},
		{
			name:  "[Unit] NewInternalErrorResponse: round trips",
			build: NewInternalErrorResponse,
			want:  StatusInternalError,
		},
		{
			name:  "[Unit] NewUnauthorizedResponse: round trips",
			build: NewUnauthorizedResponse,
			want:  StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.build()
			if err != nil {
				t.Fatalf("error response build failed: %v", err)
			}
			status, err := GetResponseStatus(data)
			if err != nil {
				t.Fatalf("GetResponseStatus() error = %v", err)
			}
			if status != tt.want {
				t.Errorf("status = %v, want %v", status, tt.want)
			}
		})
	}

	t.Run("[Unit] NewErrorResponse: successful status rejected", func(t *testing.T) {
		if _, err := NewErrorResponse(StatusSuccessful); err == nil {
			t.Error("NewErrorResponse() should reject the successful status")
		}
	})
}

// =============================================================================
// Constants Tests
// =============================================================================

func TestU_Facade_StatusConstants(t *testing.T) {
	t.Run("[Unit] CertStatus constants: distinct", func(t *testing.T) {
		statuses := []CertStatus{CertStatusGood, CertStatusRevoked, CertStatusUnknown}
		seen := make(map[CertStatus]bool)
		for _, s := range statuses {
			if seen[s] {
				t.Errorf("CertStatus %v is duplicated", s)
			}
			seen[s] = true
		}
	})

	t.Run("[Unit] ResponseStatus constants: valid per RFC 6960", func(t *testing.T) {
		statuses := []ResponseStatus{
			StatusSuccessful,
			StatusMalformedRequest,
			StatusInternalError,
			StatusTryLater,
			StatusSigRequired,
			StatusUnauthorized,
		}
		for _, s := range statuses {
			if !s.Valid() {
				t.Errorf("ResponseStatus %v should be valid", s)
			}
		}
	})

	t.Run("[Unit] RevocationReason constants: keyword strings", func(t *testing.T) {
		reasons := []RevocationReason{
			ReasonUnspecified,
			ReasonKeyCompromise,
			ReasonCACompromise,
			ReasonAffiliationChanged,
			ReasonSuperseded,
			ReasonCessationOfOperation,
			ReasonCertificateHold,
			ReasonRemoveFromCRL,
			ReasonPrivilegeWithdrawn,
			ReasonAACompromise,
		}
		for _, r := range reasons {
			if r.String() == "" {
				t.Errorf("RevocationReason %d has empty keyword", int(r))
			}
		}
	})
}

// =============================================================================
// Re-exported Type Tests
// =============================================================================

func TestU_Facade_Types(t *testing.T) {
	t.Run("[Unit] Types: ResponderConfig can be instantiated", func(t *testing.T) {
		cfg := &ResponderConfig{}
		_ = cfg
	})

	t.Run("[Unit] Types: StatusInfo can be instantiated", func(t *testing.T) {
		info := &StatusInfo{}
		_ = info
	})

	t.Run("[Unit] Types: IndexEntry can be instantiated", func(t *testing.T) {
		entry := &IndexEntry{}
		_ = entry
	})

	t.Run("[Unit] Types: FileStore satisfies CAStore", func(t *testing.T) {
		var store CAStore = NewFileStore(t.TempDir())
		_ = store
	})
}

// =============================================================================
// CertID and Request Construction Tests
// =============================================================================

func TestU_Facade_NewCertID(t *testing.T) {
	caKey := generateOCSPTestKey(t)
	caCert := generateOCSPTestCA(t, caKey)
	leaf := issueOCSPTestLeaf(t, caCert, caKey)

	t.Run("[Unit] NewCertID: default digest", func(t *testing.T) {
		id, err := NewCertID(0, leaf, caCert)
		if err != nil {
			t.Fatalf("NewCertID() error = %v", err)
		}
		if id.SerialNumber.Cmp(leaf.SerialNumber) != 0 {
			t.Error("CertID serial does not match leaf serial")
		}
	})

	t.Run("[Unit] NewCertIDFromSerial: serial only", func(t *testing.T) {
		id, err := NewCertIDFromSerial(0, caCert, big.NewInt(42))
		if err != nil {
			t.Fatalf("NewCertIDFromSerial() error = %v", err)
		}
		if id.SerialNumber.Int64() != 42 {
			t.Errorf("serial = %v, want 42", id.SerialNumber)
		}
	})
}

func TestU_Facade_CreateRequest(t *testing.T) {
	caKey := generateOCSPTestKey(t)
	caCert := generateOCSPTestCA(t, caKey)
	leaf := issueOCSPTestLeaf(t, caCert, caKey)

	t.Run("[Unit] CreateRequest: marshal and reparse", func(t *testing.T) {
		req, err := CreateRequest(caCert, []*x509.Certificate{leaf}, 0)
		if err != nil {
			t.Fatalf("CreateRequest() error = %v", err)
		}
		der, err := req.Marshal()
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		parsed, err := ParseRequest(der)
		if err != nil {
			t.Fatalf("ParseRequest() error = %v", err)
		}
		if len(parsed.TBSRequest.RequestList) != 1 {
			t.Errorf("request list length = %d, want 1", len(parsed.TBSRequest.RequestList))
		}
	})

	t.Run("[Unit] CreateRequest: fails with empty certs", func(t *testing.T) {
		if _, err := CreateRequest(caCert, nil, 0); err == nil {
			t.Error("CreateRequest() should fail with no certificates")
		}
	})
}

// =============================================================================
// ServerFromCert Tests
// =============================================================================

func TestU_Facade_ServerFromCert(t *testing.T) {
	caKey := generateOCSPTestKey(t)
	caCert := generateOCSPTestCA(t, caKey)

	t.Run("[Unit] ServerFromCert: AIA present", func(t *testing.T) {
		leaf := issueOCSPTestLeaf(t, caCert, caKey)
		url, err := ServerFromCert(leaf)
		if err != nil {
			t.Fatalf("ServerFromCert() error = %v", err)
		}
		if url != "http://ocsp.example.com" {
			t.Errorf("url = %q, want http://ocsp.example.com", url)
		}
	})

	t.Run("[Unit] ServerFromCert: AIA absent", func(t *testing.T) {
		if _, err := ServerFromCert(caCert); err == nil {
			t.Error("ServerFromCert() should fail without an OCSP server URL")
		}
	})
}

// =============================================================================
// Revocation Reason Parsing Tests
// =============================================================================

func TestU_Facade_ParseRevocationReason(t *testing.T) {
	t.Run("[Unit] ParseRevocationReason: keyword", func(t *testing.T) {
		reason, err := ParseRevocationReason("keyCompromise")
		if err != nil {
			t.Fatalf("ParseRevocationReason() error = %v", err)
		}
		if reason != CAReasonKeyCompromise {
			t.Errorf("reason = %v, want keyCompromise", reason)
		}
	})

	t.Run("[Unit] ParseRevocationReason: unknown keyword", func(t *testing.T) {
		if _, err := ParseRevocationReason("notAReason"); err == nil {
			t.Error("ParseRevocationReason() should fail for unknown keyword")
		}
	})
}

// =============================================================================
// Responder Round Trip
// =============================================================================

// The exhaustive responder, builder and codec tests live in internal/ocsp.
// This flow only proves the re-exported surface composes end to end.
func TestF_Facade_ResponderRoundTrip(t *testing.T) {
	ctx := context.Background()
	caKey := generateOCSPTestKey(t)
	caCert := generateOCSPTestCA(t, caKey)
	goodCert := issueOCSPTestLeaf(t, caCert, caKey)
	revokedCert := issueOCSPTestLeaf(t, caCert, caKey)

	store := NewFileStore(t.TempDir())
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := store.SaveCACert(ctx, caCert); err != nil {
		t.Fatalf("SaveCACert() error = %v", err)
	}
	for _, cert := range []*x509.Certificate{goodCert, revokedCert} {
		if err := store.SaveCert(ctx, cert); err != nil {
			t.Fatalf("SaveCert() error = %v", err)
		}
	}
	if err := store.MarkRevoked(ctx, revokedCert.SerialNumber.Bytes(), CAReasonKeyCompromise); err != nil {
		t.Fatalf("MarkRevoked() error = %v", err)
	}

	responder, err := NewResponder(&ResponderConfig{
		Signer:  caKey,
		CACert:  caCert,
		CAStore: store,
	})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}

	req, err := CreateRequest(caCert, []*x509.Certificate{goodCert, revokedCert}, 0)
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}

	respDER, err := responder.Respond(ctx, req)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	resp, err := ParseResponse(respDER)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if resp.Status != StatusSuccessful {
		t.Fatalf("response status = %v, want successful", resp.Status)
	}

	t.Run("[Functional] Facade: good certificate", func(t *testing.T) {
		sr := resp.FindResponse(&req.TBSRequest.RequestList[0].ReqCert)
		if sr == nil {
			t.Fatal("good certificate entry missing")
		}
		status, revoked, err := sr.Status()
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status != CertStatusGood {
			t.Errorf("status = %v, want good", status)
		}
		if revoked != nil {
			t.Error("good entry carries revocation info")
		}
	})

	t.Run("[Functional] Facade: revoked certificate", func(t *testing.T) {
		sr := resp.FindResponse(&req.TBSRequest.RequestList[1].ReqCert)
		if sr == nil {
			t.Fatal("revoked certificate entry missing")
		}
		status, revoked, err := sr.Status()
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status != CertStatusRevoked {
			t.Fatalf("status = %v, want revoked", status)
		}
		if revoked == nil {
			t.Fatal("revocation info missing")
		}
	})
}

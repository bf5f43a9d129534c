package ocsp

import (
	"bytes"
	"crypto"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newSingleRequest builds a one-certificate request plus the issuing
// CA and subject certificate, for the parse tests.
func newSingleRequest(t *testing.T) (*OCSPRequest, *x509.Certificate, *x509.Certificate) {
	t.Helper()
	caCert, caKey := generateTestCA(t)
	cert := issueTestCertificate(t, caCert, caKey, generateECDSAKeyPair(t, elliptic.P256()))
	req, err := CreateRequest(caCert, []*x509.Certificate{cert}, crypto.SHA256)
	if err != nil {
		t.Fatalf("CreateRequest(): %v", err)
	}
	return req, cert, caCert
}

// ===== Request creation =====

func TestU_CreateRequest_Basic(t *testing.T) {
	req, _, _ := newSingleRequest(t)

	if req.TBSRequest.Version != 0 {
		t.Errorf("Version = %d, want 0", req.TBSRequest.Version)
	}
	if n := len(req.TBSRequest.RequestList); n != 1 {
		t.Errorf("request list holds %d entries, want 1", n)
	}
}

func TestU_CreateRequest_MultipleCertificates(t *testing.T) {
	caCert, caKey := generateTestCA(t)
	kp := generateECDSAKeyPair(t, elliptic.P256())
	certs := []*x509.Certificate{
		issueTestCertificate(t, caCert, caKey, kp),
		issueTestCertificate(t, caCert, caKey, kp),
		issueTestCertificate(t, caCert, caKey, kp),
	}

	req, err := CreateRequest(caCert, certs, crypto.SHA256)
	if err != nil {
		t.Fatalf("CreateRequest(): %v", err)
	}
	if n := len(req.TBSRequest.RequestList); n != 3 {
		t.Fatalf("request list holds %d entries, want 3", n)
	}

	// Entries follow certificate order.
	for i, cert := range certs {
		if req.TBSRequest.RequestList[i].ReqCert.SerialNumber.Cmp(cert.SerialNumber) != 0 {
			t.Errorf("entry %d does not match certificate %d", i, i)
		}
	}
}

func TestU_CreateRequest_NoCertificates(t *testing.T) {
	caCert, _ := generateTestCA(t)

	if _, err := CreateRequest(caCert, []*x509.Certificate{}, crypto.SHA256); err == nil {
		t.Error("CreateRequest() accepted an empty certificate list")
	}
}

func TestU_CreateRequest_NilIssuer(t *testing.T) {
	caCert, caKey := generateTestCA(t)
	cert := issueTestCertificate(t, caCert, caKey, generateECDSAKeyPair(t, elliptic.P256()))

	if _, err := CreateRequest(nil, []*x509.Certificate{cert}, crypto.SHA256); err == nil {
		t.Error("CreateRequest() accepted a nil issuer")
	}
}

// ===== Request parsing =====

func TestU_ParseRequest_RoundTrip(t *testing.T) {
	req, cert, _ := newSingleRequest(t)

	data, err := req.Marshal()
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}
	parsed, err := ParseRequest(data)
	if err != nil {
		t.Fatalf("ParseRequest(): %v", err)
	}

	if n := len(parsed.TBSRequest.RequestList); n != 1 {
		t.Fatalf("request list holds %d entries, want 1", n)
	}
	reqCert := &parsed.TBSRequest.RequestList[0].ReqCert
	if reqCert.SerialNumber.Cmp(cert.SerialNumber) != 0 {
		t.Error("serial changed across the round trip")
	}
	if !reqCert.Equal(&req.TBSRequest.RequestList[0].ReqCert) {
		t.Error("CertID changed across the round trip")
	}
}

func TestU_ParseRequest_EmptyInput(t *testing.T) {
	_, err := ParseRequest(nil)
	if err == nil {
		t.Fatal("ParseRequest(nil) succeeded")
	}
	if !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("error = %v, want ErrMalformedEncoding", err)
	}
}

func TestU_ParseRequest_Garbage(t *testing.T) {
	_, err := ParseRequest([]byte("not a valid OCSP request"))
	if err == nil {
		t.Fatal("ParseRequest() accepted garbage")
	}
	if !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("error = %v, want ErrMalformedEncoding", err)
	}
}

func TestU_ParseRequest_TrailingData(t *testing.T) {
	req, _, _ := newSingleRequest(t)
	data, err := req.Marshal()
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}

	// One extra byte is already an error.
	_, err = ParseRequest(append(data, 0x00))
	if err == nil {
		t.Fatal("ParseRequest() accepted trailing bytes")
	}
	if !errors.Is(err, ErrTrailingData) {
		t.Errorf("error = %v, want ErrTrailingData", err)
	}
}

func TestU_ParseRequest_NonzeroVersion(t *testing.T) {
	req, _, _ := newSingleRequest(t)
	req.TBSRequest.Version = 1
	data, err := req.Marshal()
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}

	_, err = ParseRequest(data)
	if err == nil {
		t.Fatal("ParseRequest() accepted a version 1 request")
	}
	if !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("error = %v, want ErrMalformedEncoding", err)
	}
}

func TestU_ParseRequest_EmptyRequestList(t *testing.T) {
	data, err := (&OCSPRequest{}).Marshal()
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}

	_, err = ParseRequest(data)
	if err == nil {
		t.Fatal("ParseRequest() accepted an empty request list")
	}
	if !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("error = %v, want ErrMalformedEncoding", err)
	}
}

// ===== HTTP parsing =====

func TestU_ParseRequestFromHTTP_POST(t *testing.T) {
	req, _, _ := newSingleRequest(t)
	data, _ := req.Marshal()

	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", bytes.NewReader(data))
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	parsed, err := ParseRequestFromHTTP(httpReq)
	if err != nil {
		t.Fatalf("ParseRequestFromHTTP(): %v", err)
	}
	if n := len(parsed.TBSRequest.RequestList); n != 1 {
		t.Errorf("request list holds %d entries, want 1", n)
	}
}

func TestU_ParseRequestFromHTTP_GET(t *testing.T) {
	req, _, _ := newSingleRequest(t)
	data, _ := req.Marshal()

	for _, tc := range []struct {
		name string
		enc  *base64.Encoding
	}{
		{"[Unit] GET: standard base64", base64.StdEncoding},
		{"[Unit] GET: URL-safe base64", base64.URLEncoding},
		{"[Unit] GET: unpadded URL-safe base64", base64.RawURLEncoding},
	} {
		t.Run(tc.name, func(t *testing.T) {
			httpReq := httptest.NewRequest(http.MethodGet, "/"+tc.enc.EncodeToString(data), nil)

			parsed, err := ParseRequestFromHTTP(httpReq)
			if err != nil {
				t.Fatalf("ParseRequestFromHTTP(): %v", err)
			}
			if n := len(parsed.TBSRequest.RequestList); n != 1 {
				t.Errorf("request list holds %d entries, want 1", n)
			}
		})
	}
}

func TestU_ParseRequestFromHTTP_UnsupportedMethod(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPut, "/ocsp", nil)

	if _, err := ParseRequestFromHTTP(httpReq); err == nil {
		t.Error("ParseRequestFromHTTP() accepted a PUT")
	}
}

func TestU_ParseRequestFromHTTP_EmptyPOSTBody(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", strings.NewReader(""))
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	_, err := ParseRequestFromHTTP(httpReq)
	if err == nil {
		t.Fatal("ParseRequestFromHTTP() accepted an empty body")
	}
	if !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("error = %v, want ErrMalformedEncoding", err)
	}
}

func TestU_ParseRequestFromHTTP_OversizedPOSTBody(t *testing.T) {
	body := strings.Repeat("A", maxRequestBytes+1)
	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", strings.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	if _, err := ParseRequestFromHTTP(httpReq); err == nil {
		t.Error("ParseRequestFromHTTP() accepted an oversized body")
	}
}

func TestU_ParseRequestFromHTTP_EmptyGETPath(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := ParseRequestFromHTTP(httpReq); err == nil {
		t.Error("ParseRequestFromHTTP() accepted an empty path")
	}
}

func TestU_ParseRequestFromHTTP_OversizedGETPath(t *testing.T) {
	path := "/" + strings.Repeat("A", maxRequestBytes+1)
	httpReq := httptest.NewRequest(http.MethodGet, path, nil)

	if _, err := ParseRequestFromHTTP(httpReq); err == nil {
		t.Error("ParseRequestFromHTTP() accepted an oversized path")
	}
}

func TestU_ParseRequestFromHTTP_BadBase64(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodGet, "/!!!not-valid-base64!!!", nil)

	if _, err := ParseRequestFromHTTP(httpReq); err == nil {
		t.Error("ParseRequestFromHTTP() accepted invalid base64")
	}
}

// ===== OIDs =====

func TestU_OID_Values(t *testing.T) {
	tests := []struct {
		name string
		got  asn1.ObjectIdentifier
		want asn1.ObjectIdentifier
	}{
		{"[Unit] OID: id-pkix-ocsp", OIDPKIXOcsp, asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}},
		{"[Unit] OID: id-pkix-ocsp-basic", OIDOcspBasic, asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}},
		{"[Unit] OID: id-pkix-ocsp-nocheck", OIDOcspNoCheck, asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.got.Equal(tc.want) {
				t.Errorf("OID = %v, want %v", tc.got, tc.want)
			}
		})
	}
}

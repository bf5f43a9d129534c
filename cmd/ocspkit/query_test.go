package main

import (
	"crypto"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// resetQueryFlags resets all query command flags to their default values.
func resetQueryFlags() {
	queryURL = ""
	queryIssuer = ""
	queryCert = ""
	queryHash = ""
	queryGet = false
}

// queryResponderFor builds a signed response for the given CertID and
// serves it from a test HTTP server. The caller must close the server.
func queryResponderFor(t *testing.T, der []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(der)
	}))
}

func TestF_Query_MissingIssuer(t *testing.T) {
	resetQueryFlags()

	_, err := executeCommand(rootCmd, "query",
		"--cert", "server.crt",
	)
	assertError(t, err)
}

func TestF_Query_MissingCert(t *testing.T) {
	resetQueryFlags()

	_, err := executeCommand(rootCmd, "query",
		"--issuer", "ca.crt",
	)
	assertError(t, err)
}

func TestF_Query_IssuerNotFound(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	certPath, _ := tc.setupSigningPair()

	_, err := executeCommand(rootCmd, "query",
		"--issuer", tc.path("nonexistent.crt"),
		"--cert", certPath,
	)
	assertError(t, err)
}

func TestF_Query_CertNotFound(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	certPath, _ := tc.setupSigningPair()

	_, err := executeCommand(rootCmd, "query",
		"--issuer", certPath,
		"--cert", tc.path("nonexistent.crt"),
	)
	assertError(t, err)
}

func TestF_Query_NoResponderURL(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	// The test CA carries no Authority Information Access extension, so
	// without --url there is nowhere to send the request.
	certPath, _ := tc.setupSigningPair()

	_, err := executeCommand(rootCmd, "query",
		"--issuer", certPath,
		"--cert", certPath,
	)
	assertError(t, err)
}

func TestF_Query_InvalidHash(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	certPath, _ := tc.setupSigningPair()

	_, err := executeCommand(rootCmd, "query",
		"--issuer", certPath,
		"--cert", certPath,
		"--url", "http://127.0.0.1:1",
		"--hash", "md5",
	)
	assertError(t, err)
}

func TestF_Query_ServerError(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	certPath, _ := tc.setupSigningPair()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := executeCommand(rootCmd, "query",
		"--issuer", certPath,
		"--cert", certPath,
		"--url", srv.URL,
	)
	assertError(t, err)
}

func TestF_Query_Good(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	caPriv, caPub := generateECDSAKeyPair(t)
	caCert := generateCACert(t, caPriv, caPub)
	leaf := issueLeaf(t, caCert, caPriv)
	caPath := tc.writeCertPEM("ca.crt", caCert)
	leafPath := tc.writeCertPEM("server.crt", leaf)

	id, err := ocsp.NewCertID(0, leaf, caCert)
	assertNoError(t, err)
	der, err := ocsp.NewResponseBuilder(caCert, caPriv).
		AddGood(id, time.Now(), time.Now().Add(time.Hour)).
		Build()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	_, err = executeCommand(rootCmd, "query",
		"--issuer", caPath,
		"--cert", leafPath,
		"--url", srv.URL,
	)
	assertNoError(t, err)
}

func TestF_Query_GetForm(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	caPriv, caPub := generateECDSAKeyPair(t)
	caCert := generateCACert(t, caPriv, caPub)
	leaf := issueLeaf(t, caCert, caPriv)
	caPath := tc.writeCertPEM("ca.crt", caCert)
	leafPath := tc.writeCertPEM("server.crt", leaf)

	id, err := ocsp.NewCertID(0, leaf, caCert)
	assertNoError(t, err)
	der, err := ocsp.NewResponseBuilder(caCert, caPriv).
		AddGood(id, time.Now(), time.Now().Add(time.Hour)).
		Build()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	_, err = executeCommand(rootCmd, "query",
		"--issuer", caPath,
		"--cert", leafPath,
		"--url", srv.URL,
		"--get",
	)
	assertNoError(t, err)
}

func TestF_Query_Revoked(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	caPriv, caPub := generateECDSAKeyPair(t)
	caCert := generateCACert(t, caPriv, caPub)
	leaf := issueLeaf(t, caCert, caPriv)
	caPath := tc.writeCertPEM("ca.crt", caCert)
	leafPath := tc.writeCertPEM("server.crt", leaf)

	id, err := ocsp.NewCertID(0, leaf, caCert)
	assertNoError(t, err)
	der, err := ocsp.NewResponseBuilder(caCert, caPriv).
		AddRevoked(id, time.Now(), time.Now().Add(time.Hour),
			time.Now().Add(-24*time.Hour), ocsp.ReasonKeyCompromise).
		Build()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	_, err = executeCommand(rootCmd, "query",
		"--issuer", caPath,
		"--cert", leafPath,
		"--url", srv.URL,
	)
	assertNoError(t, err)
}

func TestF_Query_Unknown(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	caPriv, caPub := generateECDSAKeyPair(t)
	caCert := generateCACert(t, caPriv, caPub)
	leaf := issueLeaf(t, caCert, caPriv)
	caPath := tc.writeCertPEM("ca.crt", caCert)
	leafPath := tc.writeCertPEM("server.crt", leaf)

	id, err := ocsp.NewCertID(0, leaf, caCert)
	assertNoError(t, err)
	der, err := ocsp.NewResponseBuilder(caCert, caPriv).
		AddUnknown(id, time.Now(), time.Now().Add(time.Hour)).
		Build()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	_, err = executeCommand(rootCmd, "query",
		"--issuer", caPath,
		"--cert", leafPath,
		"--url", srv.URL,
	)
	assertNoError(t, err)
}

func TestF_Query_UnauthorizedStatus(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	certPath, _ := tc.setupSigningPair()

	der, err := ocsp.NewUnauthorizedResponse()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	// A non-successful status is reported, not treated as a failure
	_, err = executeCommand(rootCmd, "query",
		"--issuer", certPath,
		"--cert", certPath,
		"--url", srv.URL,
	)
	assertNoError(t, err)
}

func TestF_Query_ResponseForDifferentSerial(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	caPriv, caPub := generateECDSAKeyPair(t)
	caCert := generateCACert(t, caPriv, caPub)
	leaf := issueLeaf(t, caCert, caPriv)
	caPath := tc.writeCertPEM("ca.crt", caCert)
	leafPath := tc.writeCertPEM("server.crt", leaf)

	// Responder answers for a serial the client never asked about
	otherID, err := ocsp.NewCertIDFromSerial(0, caCert, big.NewInt(424242))
	assertNoError(t, err)
	der, err := ocsp.NewResponseBuilder(caCert, caPriv).
		AddGood(otherID, time.Now(), time.Now().Add(time.Hour)).
		Build()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	_, err = executeCommand(rootCmd, "query",
		"--issuer", caPath,
		"--cert", leafPath,
		"--url", srv.URL,
	)
	assertError(t, err)
}

func TestF_Query_WithHash(t *testing.T) {
	tc := newTestContext(t)
	resetQueryFlags()

	caPriv, caPub := generateECDSAKeyPair(t)
	caCert := generateCACert(t, caPriv, caPub)
	leaf := issueLeaf(t, caCert, caPriv)
	caPath := tc.writeCertPEM("ca.crt", caCert)
	leafPath := tc.writeCertPEM("server.crt", leaf)

	// CertID digests must line up between responder and client
	id, err := ocsp.NewCertID(crypto.SHA256, leaf, caCert)
	assertNoError(t, err)
	der, err := ocsp.NewResponseBuilder(caCert, caPriv).
		AddGood(id, time.Now(), time.Now().Add(time.Hour)).
		Build()
	assertNoError(t, err)

	srv := queryResponderFor(t, der)
	defer srv.Close()

	_, err = executeCommand(rootCmd, "query",
		"--issuer", caPath,
		"--cert", leafPath,
		"--url", srv.URL,
		"--hash", "sha256",
	)
	assertNoError(t, err)
}

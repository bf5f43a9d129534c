//go:build acceptance

// Package acceptance contains black-box CLI acceptance tests (TestA_*).
// Run with: go test -tags=acceptance ./test/acceptance/...
package acceptance

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ocspkitBinary is the path to the ocspkit binary.
// Set via OCSPKIT_BINARY env var or default to ./bin/ocspkit in the repo root.
var ocspkitBinary string

func init() {
	if bin := os.Getenv("OCSPKIT_BINARY"); bin != "" {
		ocspkitBinary = bin
	} else {
		// Default: look for binary in repo root
		ocspkitBinary = "../../bin/ocspkit"
	}
}

// runOCSPKit executes the ocspkit CLI with the given arguments and returns stdout.
// Fails the test if the command returns a non-zero exit code.
func runOCSPKit(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command(ocspkitBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		t.Fatalf("ocspkit %s failed: %v\nstderr: %s\nstdout: %s",
			strings.Join(args, " "), err, stderr.String(), stdout.String())
	}
	return stdout.String()
}

// runOCSPKitExpectError executes ocspkit and expects it to fail.
// Returns the combined output (stdout + stderr).
func runOCSPKitExpectError(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command(ocspkitBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		t.Fatalf("ocspkit %s expected to fail but succeeded\nstdout: %s",
			strings.Join(args, " "), stdout.String())
	}
	return stdout.String() + stderr.String()
}

// =============================================================================
// Test PKI Material
//
// The responder reads a CA directory: ca.crt, private/ca.key, index.txt
// and certs/. The helpers below build that layout from scratch so the
// tests exercise the CLI exactly as a deployment would.
// =============================================================================

// testCA bundles the material of a generated CA directory.
type testCA struct {
	Dir      string
	Cert     *x509.Certificate
	Key      *ecdsa.PrivateKey
	CertPath string
	KeyPath  string
}

// newTestCA generates an EC CA and writes a full CA directory.
func newTestCA(t *testing.T) *testCA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate CA key: %v", err)
	}
	cert := selfSignCA(t, key.Public(), key, "Acceptance Test CA")

	dir := filepath.Join(t.TempDir(), "ca")
	for _, sub := range []string{dir, filepath.Join(dir, "private"), filepath.Join(dir, "certs")} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", sub, err)
		}
	}

	certPath := filepath.Join(dir, "ca.crt")
	writePEM(t, certPath, "CERTIFICATE", cert.Raw, 0644)

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal CA key: %v", err)
	}
	keyPath := filepath.Join(dir, "private", "ca.key")
	writePEM(t, keyPath, "EC PRIVATE KEY", keyDER, 0600)

	if err := os.WriteFile(filepath.Join(dir, "index.txt"), nil, 0644); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	return &testCA{Dir: dir, Cert: cert, Key: key, CertPath: certPath, KeyPath: keyPath}
}

// Issue creates an end-entity certificate, records it in the CA index
// and returns the certificate path and serial (uppercase hex).
func (ca *testCA) Issue(t *testing.T, cn string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("failed to generate serial: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, key.Public(), ca.Key)
	if err != nil {
		t.Fatalf("failed to issue certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse issued certificate: %v", err)
	}

	serialHex := hex.EncodeToString(cert.SerialNumber.Bytes())
	certPath := filepath.Join(ca.Dir, "certs", serialHex+".crt")
	writePEM(t, certPath, "CERTIFICATE", cert.Raw, 0644)

	// Index line: status, expiry, revocation, serial, file, subject
	line := fmt.Sprintf("V\t%s\t\t%s\tunknown\t%s\n",
		cert.NotAfter.UTC().Format("060102150405Z"),
		serialHex,
		cert.Subject.String(),
	)
	f, err := os.OpenFile(filepath.Join(ca.Dir, "index.txt"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("failed to append index entry: %v", err)
	}

	return certPath, strings.ToUpper(serialHex)
}

// selfSignCA builds a self-signed CA certificate.
func selfSignCA(t *testing.T, pub any, priv any, cn string) *x509.Certificate {
	t.Helper()

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("failed to generate serial: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		t.Fatalf("failed to create CA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse CA certificate: %v", err)
	}
	return cert
}

// newRSASigningPair writes a self-signed RSA CA certificate and key to
// the given directory and returns their paths.
func newRSASigningPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	cert := selfSignCA(t, key.Public(), key, "Acceptance Test RSA CA")

	certPath := filepath.Join(dir, "rsa-ca.crt")
	writePEM(t, certPath, "CERTIFICATE", cert.Raw, 0644)
	keyPath := filepath.Join(dir, "rsa-ca.key")
	writePEM(t, keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0600)

	return certPath, keyPath
}

// writePEM writes a single PEM block to path.
func writePEM(t *testing.T, path, blockType string, der []byte, mode os.FileMode) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// =============================================================================
// Server Helpers
// =============================================================================

// freePort reserves an ephemeral TCP port and returns its number.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// startResponder launches `ocspkit serve` in the background and waits
// until its health endpoint answers. The process is killed when the
// test finishes.
func startResponder(t *testing.T, args ...string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, ocspkitBinary, append([]string{"serve"}, args...)...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("failed to start responder: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = cmd.Wait()
	})
}

// waitForServer polls the health endpoint until the responder answers.
func waitForServer(t *testing.T, baseURL string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("responder at %s did not become healthy", baseURL)
}

// =============================================================================
// Assertions
// =============================================================================

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("expected file to exist: %s", path)
	}
}

// assertOutputContains fails if the output does not contain the expected substring.
func assertOutputContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got: %s", expected, output)
	}
}

// getIndexStatus returns the status letter of the index entry for a
// serial (lowercase hex in the file).
func getIndexStatus(t *testing.T, caDir, serialHex string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(caDir, "index.txt"))
	if err != nil {
		t.Fatalf("failed to read index.txt: %v", err)
	}
	want := strings.ToLower(serialHex)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) >= 4 && fields[3] == want {
			return fields[0]
		}
	}
	t.Fatalf("serial %s not found in index.txt", serialHex)
	return ""
}

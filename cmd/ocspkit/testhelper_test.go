package main

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/ca"
)

// executeCommand runs root with args and returns everything it printed.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// testContext bundles a test with its scratch directory.
type testContext struct {
	t       *testing.T
	tempDir string
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path resolves name inside the scratch directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile drops a file with the given content into the scratch
// directory and returns its path.
func (tc *testContext) writeFile(name, content string) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tc.t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ===== Key and certificate fixtures =====

func generateECDSAKeyPair(t *testing.T) (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate P-256 key: %v", err)
	}
	return priv, &priv.PublicKey
}

func generateRSAKeyPair(t *testing.T, bits int) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("generate RSA-%d key: %v", bits, err)
	}
	return priv, &priv.PublicKey
}

func randomSerial(t *testing.T) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}
	return serial
}

// mintCert creates and parses a certificate in one step.
func mintCert(t *testing.T, template, parent *x509.Certificate, pub crypto.PublicKey, signer crypto.Signer) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		t.Fatalf("create certificate %q: %v", template.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate %q: %v", template.Subject.CommonName, err)
	}
	return cert
}

// generateCACert generates a self-signed CA certificate whose key can
// also sign OCSP responses directly.
func generateCACert(t *testing.T, priv crypto.Signer, pub crypto.PublicKey) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber:          randomSerial(t),
		Subject:               pkix.Name{CommonName: "Test CA", Organization: []string{"Test Org"}},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}
	return mintCert(t, template, template, pub, priv)
}

// generateLeafCert generates an end-entity certificate signed by the CA.
func generateLeafCert(t *testing.T, priv crypto.Signer, pub crypto.PublicKey, caCert *x509.Certificate, caKey crypto.Signer) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber:          randomSerial(t),
		Subject:               pkix.Name{CommonName: "Test Leaf", Organization: []string{"Test Org"}},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	return mintCert(t, template, caCert, pub, caKey)
}

// generateResponderCert generates a delegated OCSP responder
// certificate signed by the CA, carrying the id-kp-OCSPSigning
// extended key usage.
func generateResponderCert(t *testing.T, priv crypto.Signer, pub crypto.PublicKey, caCert *x509.Certificate, caKey crypto.Signer) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber:          randomSerial(t),
		Subject:               pkix.Name{CommonName: "Test OCSP Responder", Organization: []string{"Test Org"}},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageOCSPSigning},
		BasicConstraintsValid: true,
	}
	return mintCert(t, template, caCert, pub, caKey)
}

// writeCertPEM writes a certificate to a PEM file in the scratch
// directory.
func (tc *testContext) writeCertPEM(name string, cert *x509.Certificate) string {
	tc.t.Helper()
	path := tc.path(name)
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(path, block, 0644); err != nil {
		tc.t.Fatalf("write certificate %s: %v", name, err)
	}
	return path
}

// writeKeyPEM writes a private key to a PEM file in the scratch
// directory.
func (tc *testContext) writeKeyPEM(name string, key crypto.Signer) string {
	tc.t.Helper()

	var block *pem.Block
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		der, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			tc.t.Fatalf("marshal EC key: %v", err)
		}
		block = &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	case *rsa.PrivateKey:
		block = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}
	default:
		tc.t.Fatalf("unsupported key type %T", key)
	}

	path := tc.path(name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		tc.t.Fatalf("write key %s: %v", name, err)
	}
	return path
}

// setupSigningPair writes a CA certificate and key to disk for signing
// tests.
func (tc *testContext) setupSigningPair() (certPath, keyPath string) {
	tc.t.Helper()
	priv, pub := generateECDSAKeyPair(tc.t)
	cert := generateCACert(tc.t, priv, pub)
	return tc.writeCertPEM("ca.crt", cert), tc.writeKeyPEM("ca.key", priv)
}

// setupCADir builds a CA directory with ca.crt, private/ca.key and an
// index holding the given issued certificates. Returns the directory
// path and the CA certificate and key for issuing more certificates.
func (tc *testContext) setupCADir(leafs ...*x509.Certificate) (string, *x509.Certificate, *ecdsa.PrivateKey) {
	tc.t.Helper()

	caPriv, caPub := generateECDSAKeyPair(tc.t)
	caCert := generateCACert(tc.t, caPriv, caPub)

	caDir := tc.path("ca")
	store := ca.NewFileStore(caDir)
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		tc.t.Fatalf("init CA store: %v", err)
	}
	if err := store.SaveCACert(ctx, caCert); err != nil {
		tc.t.Fatalf("save CA certificate: %v", err)
	}

	der, err := x509.MarshalECPrivateKey(caPriv)
	if err != nil {
		tc.t.Fatalf("marshal CA key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(store.CAKeyPath(), keyPEM, 0600); err != nil {
		tc.t.Fatalf("write CA key: %v", err)
	}

	for _, leaf := range leafs {
		if err := store.SaveCert(ctx, leaf); err != nil {
			tc.t.Fatalf("save certificate %x: %v", leaf.SerialNumber.Bytes(), err)
		}
	}

	return caDir, caCert, caPriv
}

// issueLeaf issues a fresh leaf certificate from the given CA.
func issueLeaf(t *testing.T, caCert *x509.Certificate, caKey crypto.Signer) *x509.Certificate {
	t.Helper()
	priv, pub := generateECDSAKeyPair(t)
	return generateLeafCert(t, priv, pub, caCert, caKey)
}

// ===== Assertions =====

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file at %s: %v", path, err)
	}
}

func assertFileNotEmpty(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(data) == 0 {
		t.Errorf("%s is empty", path)
	}
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

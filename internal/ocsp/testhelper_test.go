package ocsp

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding"
	"encoding/asn1"
	"math/big"
	"strings"
	"testing"
	"time"

	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
)

// testKeyPair bundles a signing key with its public half for the
// certificate fixtures below.
type testKeyPair struct {
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
	Algorithm  string
}

func generateECDSAKeyPair(t *testing.T, curve elliptic.Curve) *testKeyPair {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey: %v", err)
	}
	return &testKeyPair{PrivateKey: priv, PublicKey: &priv.PublicKey, Algorithm: "ECDSA"}
}

func generateRSAKeyPair(t *testing.T, bits int) *testKeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	return &testKeyPair{PrivateKey: priv, PublicKey: &priv.PublicKey, Algorithm: "RSA"}
}

func generateEd25519KeyPair(t *testing.T) *testKeyPair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	return &testKeyPair{PrivateKey: priv, PublicKey: pub, Algorithm: "Ed25519"}
}

// randSerial returns a random 128-bit certificate serial.
func randSerial(t *testing.T) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("rand.Int for serial: %v", err)
	}
	return serial
}

// certTemplate is the base shape every fixture certificate starts
// from: valid since an hour ago, digital signature use only.
func certTemplate(t *testing.T, cn string, lifetime time.Duration) *x509.Certificate {
	t.Helper()
	return &x509.Certificate{
		SerialNumber: randSerial(t),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"OCSPKit"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(lifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
}

// mintCert signs template with the parent key and parses the result.
// Self-signed when parent == template.
func mintCert(t *testing.T, template, parent *x509.Certificate, pub crypto.PublicKey, signingKey crypto.Signer) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signingKey)
	if err != nil {
		t.Fatalf("Failed to create certificate %q: %v", template.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate %q: %v", template.Subject.CommonName, err)
	}
	return cert
}

// generateTestCA creates a self-signed P-256 CA.
func generateTestCA(t *testing.T) (*x509.Certificate, crypto.Signer) {
	t.Helper()
	return generateTestCAWithKey(t, generateECDSAKeyPair(t, elliptic.P256()))
}

// generateTestCAWithKey creates a self-signed CA over the given key.
func generateTestCAWithKey(t *testing.T, kp *testKeyPair) (*x509.Certificate, crypto.Signer) {
	t.Helper()
	tmpl := certTemplate(t, "OCSPKit Test CA", 365*24*time.Hour)
	tmpl.KeyUsage |= x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	tmpl.IsCA = true
	tmpl.MaxPathLen = 1
	return mintCert(t, tmpl, tmpl, kp.PublicKey, kp.PrivateKey), kp.PrivateKey
}

// issueTestCertificate issues an end-entity certificate under the CA.
func issueTestCertificate(t *testing.T, caCert *x509.Certificate, caKey crypto.Signer, kp *testKeyPair) *x509.Certificate {
	t.Helper()
	return mintCert(t, certTemplate(t, "OCSPKit Leaf", 24*time.Hour), caCert, kp.PublicKey, caKey)
}

// generateOCSPResponderCert issues a delegated responder certificate
// carrying the id-kp-OCSPSigning EKU.
func generateOCSPResponderCert(t *testing.T, caCert *x509.Certificate, caKey crypto.Signer, kp *testKeyPair) *x509.Certificate {
	t.Helper()
	tmpl := certTemplate(t, "OCSPKit Responder", 24*time.Hour)
	tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageOCSPSigning}
	return mintCert(t, tmpl, caCert, kp.PublicKey, caKey)
}

// ===== PQC fixtures =====

func pqcKeyPair(t *testing.T, alg pkicrypto.AlgorithmID) *testKeyPair {
	t.Helper()
	pair, err := pkicrypto.GenerateKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateKeyPair(%s): %v", alg, err)
	}
	s, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		t.Fatalf("%s private key does not implement crypto.Signer", alg)
	}
	return &testKeyPair{PrivateKey: s, PublicKey: pair.PublicKey, Algorithm: string(alg)}
}

// pqcSignatureOID returns the ASN.1 OID registered for a PQC algorithm.
func pqcSignatureOID(t *testing.T, alg pkicrypto.AlgorithmID) asn1.ObjectIdentifier {
	t.Helper()
	oid, err := alg.SignatureOID()
	if err != nil {
		t.Fatalf("SignatureOID(%s): %v", alg, err)
	}
	return oid
}

// pqcPublicKeyBytes returns the raw encoding of a PQC public key.
func pqcPublicKeyBytes(t *testing.T, pub crypto.PublicKey) []byte {
	t.Helper()
	m, ok := pub.(encoding.BinaryMarshaler)
	if !ok {
		t.Fatalf("Public key type %T has no binary encoding", pub)
	}
	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary on public key: %v", err)
	}
	return b
}

// pqcTBSCertificate is the subset of TBSCertificate needed to
// hand-build a certificate over an algorithm x509 does not know.
type pqcTBSCertificate struct {
	Version              int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber         *big.Int
	SignatureAlgorithm   pkix.AlgorithmIdentifier
	Issuer               pkix.RDNSequence
	Validity             pqcValidity
	Subject              pkix.RDNSequence
	SubjectPublicKeyInfo asn1.RawValue
}

type pqcValidity struct {
	NotBefore, NotAfter time.Time
}

// generatePQCOCSPResponderCert hand-assembles a responder certificate
// over a PQC key, since x509.CreateCertificate rejects the algorithms.
func generatePQCOCSPResponderCert(t *testing.T, caCert *x509.Certificate, caKey crypto.Signer, kp *testKeyPair, alg pkicrypto.AlgorithmID) *x509.Certificate {
	t.Helper()

	sigAlg := pkix.AlgorithmIdentifier{Algorithm: pqcSignatureOID(t, alg)}
	pubBytes := pqcPublicKeyBytes(t, kp.PublicKey)

	spkiBytes, err := asn1.Marshal(struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}{
		Algorithm: sigAlg,
		PublicKey: asn1.BitString{Bytes: pubBytes, BitLength: len(pubBytes) * 8},
	})
	if err != nil {
		t.Fatalf("SPKI encoding failed: %v", err)
	}

	rdn := func(cn string) pkix.RDNSequence {
		return pkix.RDNSequence{
			pkix.RelativeDistinguishedNameSET{
				pkix.AttributeTypeAndValue{Type: asn1.ObjectIdentifier{2, 5, 4, 3}, Value: cn},
				pkix.AttributeTypeAndValue{Type: asn1.ObjectIdentifier{2, 5, 4, 10}, Value: "OCSPKit"},
			},
		}
	}

	tbsBytes, err := asn1.Marshal(pqcTBSCertificate{
		Version:            2, // x509 v3
		SerialNumber:       randSerial(t),
		SignatureAlgorithm: sigAlg,
		Issuer:             rdn(caCert.Subject.CommonName),
		Validity: pqcValidity{
			NotBefore: time.Now().Add(-time.Hour),
			NotAfter:  time.Now().Add(24 * time.Hour),
		},
		Subject:              rdn("OCSPKit Responder (" + string(alg) + ")"),
		SubjectPublicKeyInfo: asn1.RawValue{FullBytes: spkiBytes},
	})
	if err != nil {
		t.Fatalf("TBSCertificate encoding failed: %v", err)
	}

	// ML-DSA wants an explicit zero hash; SLH-DSA takes nil opts.
	var signOpts crypto.SignerOpts
	if strings.HasPrefix(string(alg), "ml-dsa") {
		signOpts = crypto.Hash(0)
	}

	sig, err := kp.PrivateKey.Sign(rand.Reader, tbsBytes, signOpts)
	if err != nil {
		t.Fatalf("TBSCertificate signing failed: %v", err)
	}

	der, err := asn1.Marshal(struct {
		TBSCertificate     asn1.RawValue
		SignatureAlgorithm pkix.AlgorithmIdentifier
		SignatureValue     asn1.BitString
	}{
		TBSCertificate:     asn1.RawValue{FullBytes: tbsBytes},
		SignatureAlgorithm: sigAlg,
		SignatureValue:     asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	if err != nil {
		t.Fatalf("outer Certificate encoding failed: %v", err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("hand-built certificate does not parse: %v", err)
	}
	return parsed
}

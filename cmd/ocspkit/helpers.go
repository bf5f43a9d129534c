package main

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// loadCertificate reads a PEM-encoded certificate from a file.
func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}

// parseSerialHex parses a certificate serial number in hex form.
// Accepts 0x prefixes, colon separators and odd-length strings as
// produced by openssl and certificate viewers.
func parseSerialHex(s string) (*big.Int, error) {
	normalized := strings.TrimSpace(s)
	normalized = strings.TrimPrefix(normalized, "0x")
	normalized = strings.TrimPrefix(normalized, "0X")
	normalized = strings.ReplaceAll(normalized, ":", "")
	if normalized == "" {
		return nil, fmt.Errorf("empty serial number")
	}
	if len(normalized)%2 == 1 {
		normalized = "0" + normalized
	}

	serialBytes, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid serial number %q: %w", s, err)
	}
	return new(big.Int).SetBytes(serialBytes), nil
}

// parseCertStatus parses a status string to CertStatus.
func parseCertStatus(status string) (ocsp.CertStatus, error) {
	switch strings.ToLower(status) {
	case "good":
		return ocsp.CertStatusGood, nil
	case "revoked":
		return ocsp.CertStatusRevoked, nil
	case "unknown":
		return ocsp.CertStatusUnknown, nil
	default:
		return 0, fmt.Errorf("invalid status: %s (must be good, revoked, or unknown)", status)
	}
}

// parseRevocationTime parses a revocation time string (RFC3339).
// Returns current time if timeStr is empty.
func parseRevocationTime(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid revocation time: %w", err)
	}
	return t, nil
}

// loadSigner loads the response signing key from HSM or software.
func loadSigner(hsmConfig, keyPath, passphrase, keyLabel, keyID string) (crypto.Signer, error) {
	if hsmConfig != "" {
		// HSM mode
		if keyLabel == "" && keyID == "" {
			return nil, fmt.Errorf("--key-label or --key-id required with --hsm-config")
		}
		km, keyCfg, err := pkicrypto.NewKeyProviderFromHSMConfig(hsmConfig, keyLabel, keyID)
		if err != nil {
			return nil, err
		}
		signer, err := km.Load(keyCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load HSM key: %w", err)
		}
		return signer, nil
	}

	// Software mode
	if keyPath == "" {
		return nil, fmt.Errorf("--key required for software mode (or use --hsm-config for HSM)")
	}
	keyCfg := pkicrypto.KeyStorageConfig{
		Type:       pkicrypto.KeyProviderTypeSoftware,
		KeyPath:    keyPath,
		Passphrase: passphrase,
	}
	km := pkicrypto.NewKeyProvider(keyCfg)
	signer, err := km.Load(keyCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return signer, nil
}

// signatureAlgName maps a signature algorithm OID to its usual name,
// falling back to the dotted OID for unknown algorithms.
func signatureAlgName(oid asn1.ObjectIdentifier) string {
	for _, alg := range pkicrypto.AllAlgorithms() {
		algOID, err := alg.SignatureOID()
		if err != nil {
			continue
		}
		if algOID.Equal(oid) {
			return alg.Description()
		}
	}
	return oid.String()
}

// certIDDigestName returns the digest name for a CertID hash algorithm OID.
func certIDDigestName(oid asn1.ObjectIdentifier) string {
	h := pkicrypto.DigestByOID(oid)
	if h == 0 {
		return oid.String()
	}
	return pkicrypto.DigestName(h)
}

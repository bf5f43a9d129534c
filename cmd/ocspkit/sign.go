package main

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/audit"
	"github.com/remiblancher/ocspkit/internal/ca"
	"github.com/remiblancher/ocspkit/internal/config"
	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Create a signed OCSP response for a certificate",
	Long: `Create a signed OCSP response for a certificate identified by serial
number, without consulting a CA index. Useful for pre-signing
responses for distribution.

The response is signed by the responder's private key. If no
responder certificate is provided, the CA certificate is used
directly (CA-signed mode). A delegated responder certificate must
chain to the CA and carry the id-kp-OCSPSigning extended key usage.

Examples:
  # Good status, CA-signed
  ocspkit sign --serial 0A1B2C --status good --ca ca.crt --key ca.key --out response.der

  # Revoked status with reason, delegated responder
  ocspkit sign --serial 0A1B2C --status revoked --revocation-time 2026-01-15T10:00:00Z \
    --revocation-reason keyCompromise --ca ca.crt --cert responder.crt --key responder.key \
    --out response.der

  # Signing key in an HSM
  ocspkit sign --serial 0A1B2C --status good --ca ca.crt \
    --hsm-config hsm.yaml --key-label ocsp-responder --out response.der`,
	RunE: runSign,
}

var (
	signSerial           string
	signStatus           string
	signRevocationTime   string
	signRevocationReason string
	signCA               string
	signCert             string
	signKey              string
	signPassphrase       string
	signOutput           string
	signValidity         string
	signHash             string
	signHSMConfig        string
	signKeyLabel         string
	signKeyID            string
)

func init() {
	signCmd.Flags().StringVar(&signSerial, "serial", "", "Certificate serial number (hex)")
	signCmd.Flags().StringVar(&signStatus, "status", "good", "Certificate status (good, revoked, unknown)")
	signCmd.Flags().StringVar(&signRevocationTime, "revocation-time", "", "Revocation time (RFC3339 format, default now)")
	signCmd.Flags().StringVar(&signRevocationReason, "revocation-reason", "", "Revocation reason (keyCompromise, caCompromise, affiliationChanged, superseded, cessationOfOperation, certificateHold, removeFromCRL, privilegeWithdrawn, aaCompromise)")
	signCmd.Flags().StringVar(&signCA, "ca", "", "CA certificate (PEM)")
	signCmd.Flags().StringVar(&signCert, "cert", "", "Responder certificate (PEM, optional)")
	signCmd.Flags().StringVar(&signKey, "key", "", "Responder private key (PEM, required unless --hsm-config)")
	signCmd.Flags().StringVar(&signPassphrase, "passphrase", "", "Key passphrase (or env:VAR_NAME)")
	signCmd.Flags().StringVarP(&signOutput, "out", "o", "", "Output file")
	signCmd.Flags().StringVar(&signValidity, "validity", "1h", "Response validity period")
	signCmd.Flags().StringVar(&signHash, "hash", "", "CertID digest (sha1, sha256, sha384, sha512; default sha1)")
	signCmd.Flags().StringVar(&signHSMConfig, "hsm-config", "", "HSM configuration file (YAML)")
	signCmd.Flags().StringVar(&signKeyLabel, "key-label", "", "HSM key label (CKA_LABEL)")
	signCmd.Flags().StringVar(&signKeyID, "key-id", "", "HSM key ID (CKA_ID, hex)")

	_ = signCmd.MarkFlagRequired("serial")
	_ = signCmd.MarkFlagRequired("ca")
	_ = signCmd.MarkFlagRequired("out")
}

func runSign(cmd *cobra.Command, args []string) error {
	// Parse inputs
	serial, err := parseSerialHex(signSerial)
	if err != nil {
		return err
	}

	certStatus, err := parseCertStatus(signStatus)
	if err != nil {
		return err
	}

	var revocationTime time.Time
	var reason ocsp.RevocationReason
	if certStatus == ocsp.CertStatusRevoked {
		revocationTime, err = parseRevocationTime(signRevocationTime)
		if err != nil {
			return err
		}
		caReason, err := ca.ParseRevocationReason(signRevocationReason)
		if err != nil {
			return err
		}
		reason = ocsp.RevocationReason(caReason)
	}

	validity, err := config.ParseDuration(signValidity)
	if err != nil {
		return fmt.Errorf("invalid validity duration: %w", err)
	}

	var hash crypto.Hash
	if signHash != "" {
		hash, err = pkicrypto.ParseDigest(signHash)
		if err != nil {
			return err
		}
	}

	// Load CA certificate
	caCert, err := loadCertificate(signCA)
	if err != nil {
		return fmt.Errorf("failed to load CA certificate: %w", err)
	}

	// Load responder certificate and key
	var responderCert *x509.Certificate
	if signCert != "" {
		// Delegated responder mode
		responderCert, err = loadCertificate(signCert)
		if err != nil {
			return fmt.Errorf("failed to load responder certificate: %w", err)
		}
		if err := ocsp.VerifyResponderCert(responderCert, caCert); err != nil {
			return fmt.Errorf("responder certificate rejected: %w", err)
		}
	} else {
		// CA-signed mode
		responderCert = caCert
	}

	signer, err := loadSigner(signHSMConfig, signKey, signPassphrase, signKeyLabel, signKeyID)
	if err != nil {
		return err
	}

	// Build the single-entry response
	certID, err := ocsp.NewCertIDFromSerial(hash, caCert, serial)
	if err != nil {
		return fmt.Errorf("failed to create CertID: %w", err)
	}

	now := time.Now().UTC()
	builder := ocsp.NewResponseBuilder(responderCert, signer)

	switch certStatus {
	case ocsp.CertStatusGood:
		builder.AddGood(certID, now, now.Add(validity))
	case ocsp.CertStatusRevoked:
		builder.AddRevoked(certID, now, now.Add(validity), revocationTime, reason)
	case ocsp.CertStatusUnknown:
		builder.AddUnknown(certID, now, now.Add(validity))
	}

	responseData, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build OCSP response: %w", err)
	}

	serialHex := fmt.Sprintf("%X", serial.Bytes())
	algName := ""
	if s, ok := signer.(pkicrypto.Signer); ok {
		algName = string(s.Algorithm())
	}

	// Write output
	if err := os.WriteFile(signOutput, responseData, 0644); err != nil {
		_ = audit.LogOCSPSign(signCA, serialHex, signStatus, algName, false)
		return fmt.Errorf("failed to write response: %w", err)
	}

	_ = audit.LogOCSPSign(signCA, serialHex, signStatus, algName, true)

	fmt.Printf("OCSP response written to %s\n", signOutput)
	fmt.Printf("  Serial:     %s\n", serialHex)
	fmt.Printf("  Status:     %s\n", certStatus)
	if certStatus == ocsp.CertStatusRevoked {
		fmt.Printf("  Revoked:    %s\n", revocationTime.Format(time.RFC3339))
		if signRevocationReason != "" {
			fmt.Printf("  Reason:     %s\n", reason)
		}
	}
	fmt.Printf("  Valid For:  %s\n", validity)

	return nil
}

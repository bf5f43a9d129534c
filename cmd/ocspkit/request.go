package main

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/audit"
	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Create an OCSP request",
	Long: `Create a DER-encoded OCSP request for one or more certificates.

All certificates must share the same issuer. The request carries one
CertID per certificate, in the order given.

Examples:
  # Request for a single certificate
  ocspkit request --issuer ca.crt --cert server.crt --out request.der

  # Request with SHA-256 CertIDs
  ocspkit request --issuer ca.crt --cert server.crt --hash sha256 --out request.der

  # Batch request for several certificates
  ocspkit request --issuer ca.crt --cert a.crt --cert b.crt --out request.der`,
	RunE: runRequest,
}

var (
	requestIssuer string
	requestCerts  []string
	requestHash   string
	requestOutput string
)

func init() {
	requestCmd.Flags().StringVar(&requestIssuer, "issuer", "", "Issuer certificate (PEM)")
	requestCmd.Flags().StringArrayVar(&requestCerts, "cert", nil, "Certificate to check (PEM, repeatable)")
	requestCmd.Flags().StringVar(&requestHash, "hash", "", "CertID digest (sha1, sha256, sha384, sha512; default sha1)")
	requestCmd.Flags().StringVarP(&requestOutput, "out", "o", "", "Output file")

	_ = requestCmd.MarkFlagRequired("issuer")
	_ = requestCmd.MarkFlagRequired("cert")
	_ = requestCmd.MarkFlagRequired("out")
}

func runRequest(cmd *cobra.Command, args []string) error {
	// Load issuer certificate
	issuer, err := loadCertificate(requestIssuer)
	if err != nil {
		return fmt.Errorf("failed to load issuer certificate: %w", err)
	}

	// Load certificates to check
	var certs []*x509.Certificate
	var serials []string
	for _, path := range requestCerts {
		cert, err := loadCertificate(path)
		if err != nil {
			return fmt.Errorf("failed to load certificate %s: %w", path, err)
		}
		certs = append(certs, cert)
		serials = append(serials, fmt.Sprintf("%X", cert.SerialNumber.Bytes()))
	}

	// Parse digest
	var hash crypto.Hash
	if requestHash != "" {
		hash, err = pkicrypto.ParseDigest(requestHash)
		if err != nil {
			return err
		}
	}

	// Create request
	req, err := ocsp.CreateRequest(issuer, certs, hash)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	data, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// Write output
	if err := os.WriteFile(requestOutput, data, 0644); err != nil {
		_ = audit.LogOCSPRequest(strings.Join(serials, ","), requestOutput, false)
		return fmt.Errorf("failed to write request: %w", err)
	}

	_ = audit.LogOCSPRequest(strings.Join(serials, ","), requestOutput, true)

	fmt.Printf("OCSP request written to %s\n", requestOutput)
	fmt.Printf("  Issuer:   %s\n", issuer.Subject.CommonName)
	fmt.Printf("  Requests: %d\n", len(req.TBSRequest.RequestList))
	for i := range req.TBSRequest.RequestList {
		id := &req.TBSRequest.RequestList[i].ReqCert
		fmt.Printf("\n  [%d] Serial:         %X\n", i+1, id.SerialNumber.Bytes())
		fmt.Printf("      Digest:         %s\n", certIDDigestName(id.HashAlgorithm.Algorithm))
		fmt.Printf("      IssuerNameHash: %X\n", id.IssuerNameHash)
		fmt.Printf("      IssuerKeyHash:  %X\n", id.IssuerKeyHash)
	}

	return nil
}

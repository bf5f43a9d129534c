package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/audit"
	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// queryCmd queries a live OCSP responder for a certificate's status.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query an OCSP responder for a certificate's status",
	Long: `Query an OCSP responder over HTTP for a certificate's status.

The responder URL defaults to the one in the certificate's Authority
Information Access extension. The response is decoded but its
signature is not verified.

Examples:
  # Query the responder named in the certificate
  ocspkit query --issuer ca.crt --cert server.crt

  # Query an explicit responder
  ocspkit query --issuer ca.crt --cert server.crt --url http://ocsp.example.com

  # Query using the GET form of the protocol
  ocspkit query --issuer ca.crt --cert server.crt --url http://ocsp.example.com --get`,
	RunE: runQuery,
}

var (
	queryURL    string
	queryIssuer string
	queryCert   string
	queryHash   string
	queryGet    bool
)

func init() {
	queryCmd.Flags().StringVar(&queryURL, "url", "", "Responder URL (default: from the certificate's AIA extension)")
	queryCmd.Flags().StringVar(&queryIssuer, "issuer", "", "Issuer certificate (PEM)")
	queryCmd.Flags().StringVar(&queryCert, "cert", "", "Certificate to check (PEM)")
	queryCmd.Flags().StringVar(&queryHash, "hash", "", "CertID digest: sha1, sha256, sha384, sha512")
	queryCmd.Flags().BoolVar(&queryGet, "get", false, "Use the GET form of the protocol")

	_ = queryCmd.MarkFlagRequired("issuer")
	_ = queryCmd.MarkFlagRequired("cert")
}

func runQuery(cmd *cobra.Command, args []string) error {
	issuer, err := loadCertificate(queryIssuer)
	if err != nil {
		return fmt.Errorf("failed to load issuer certificate: %w", err)
	}
	cert, err := loadCertificate(queryCert)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}

	serverURL := queryURL
	if serverURL == "" {
		serverURL, err = ocsp.ServerFromCert(cert)
		if err != nil {
			return err
		}
	}

	client := ocsp.NewClient()
	if queryHash != "" {
		hash, err := pkicrypto.ParseDigest(queryHash)
		if err != nil {
			return err
		}
		client.Hash = hash
	}

	serialHex := fmt.Sprintf("%X", cert.SerialNumber.Bytes())

	var resp *ocsp.Response
	if queryGet {
		resp, err = client.QueryGet(cmd.Context(), cert, issuer, serverURL)
	} else {
		resp, err = client.Query(cmd.Context(), cert, issuer, serverURL)
	}
	if err != nil {
		_ = audit.LogOCSPQuery(serverURL, serialHex, "", false)
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Printf("OCSP Query Result\n")
	fmt.Printf("=================\n\n")
	fmt.Printf("  Responder:          %s\n", serverURL)
	fmt.Printf("  Response Status:    %s\n", resp.Status)

	if resp.Status != ocsp.StatusSuccessful {
		_ = audit.LogOCSPQuery(serverURL, serialHex, resp.Status.String(), true)
		return nil
	}

	// Locate the answer for the queried certificate
	id, err := ocsp.NewCertID(client.Hash, cert, issuer)
	if err != nil {
		return err
	}
	sr := resp.FindResponse(id)
	if sr == nil {
		_ = audit.LogOCSPQuery(serverURL, serialHex, "", false)
		return fmt.Errorf("response carries no status for serial %s", serialHex)
	}

	status, revoked, err := sr.Status()
	if err != nil {
		_ = audit.LogOCSPQuery(serverURL, serialHex, "", false)
		return fmt.Errorf("failed to decode certificate status: %w", err)
	}

	_ = audit.LogOCSPQuery(serverURL, serialHex, status.String(), true)

	fmt.Printf("  Certificate Status: %s\n", status)
	fmt.Printf("  Serial Number:      %s\n", serialHex)
	fmt.Printf("  Produced At:        %s\n", resp.Basic.TBSResponseData.ProducedAt.Format(time.RFC3339))
	fmt.Printf("  This Update:        %s\n", sr.ThisUpdate.Format(time.RFC3339))
	if !sr.NextUpdate.IsZero() {
		fmt.Printf("  Next Update:        %s\n", sr.NextUpdate.Format(time.RFC3339))
	}
	if status == ocsp.CertStatusRevoked && revoked != nil {
		fmt.Printf("  Revocation Time:    %s\n", revoked.RevocationTime.Format(time.RFC3339))
		fmt.Printf("  Revocation Reason:  %s\n", ocsp.RevocationReason(revoked.RevocationReason))
	}
	if certs := resp.Basic.Certificates(); len(certs) > 0 {
		fmt.Printf("  Responder Cert:     %s\n", certs[0].Subject.CommonName)
	}

	return nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/audit"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Display the contents of an OCSP request or response",
	Long: `Parse a DER-encoded OCSP request or response file and print its
contents. The file type is detected automatically. Signatures are
decoded but not verified.

Examples:
  ocspkit info request.der
  ocspkit info response.der`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if resp, err := ocsp.ParseResponse(data); err == nil {
		_ = audit.LogOCSPInfo(path, resp.Status.String(), true)
		return printResponseInfo(resp)
	}

	req, err := ocsp.ParseRequest(data)
	if err != nil {
		_ = audit.LogOCSPInfo(path, "", false)
		return fmt.Errorf("file is neither an OCSP response nor an OCSP request")
	}
	_ = audit.LogOCSPInfo(path, "request", true)
	return printRequestInfo(req)
}

func printResponseInfo(resp *ocsp.Response) error {
	fmt.Printf("OCSP Response Information\n")
	fmt.Printf("=========================\n\n")
	fmt.Printf("Response Status: %s\n", resp.Status)

	if resp.Status != ocsp.StatusSuccessful {
		return nil
	}

	basic := resp.Basic
	rd := &basic.TBSResponseData
	fmt.Printf("Produced At:     %s\n", rd.ProducedAt.Format(time.RFC3339))
	fmt.Printf("Signature Alg:   %s\n", signatureAlgName(basic.SignatureAlgorithm.Algorithm))
	if keyHash := rd.ResponderKeyHash(); keyHash != nil {
		fmt.Printf("Responder Key:   %X\n", keyHash)
	}

	if certs := basic.Certificates(); len(certs) > 0 {
		fmt.Printf("\nResponder Certificate:\n")
		cert := certs[0]
		fmt.Printf("  Subject:  %s\n", cert.Subject.CommonName)
		fmt.Printf("  Issuer:   %s\n", cert.Issuer.CommonName)
		fmt.Printf("  Serial:   %X\n", cert.SerialNumber.Bytes())
	}

	fmt.Printf("\nCertificate Statuses:\n")
	for i := range rd.Responses {
		sr := &rd.Responses[i]
		status, revoked, err := sr.Status()
		if err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}

		fmt.Printf("\n  [%d] Serial: %X\n", i+1, sr.CertID.SerialNumber.Bytes())
		fmt.Printf("      Status:      %s\n", status)
		fmt.Printf("      This Update: %s\n", sr.ThisUpdate.Format(time.RFC3339))
		if !sr.NextUpdate.IsZero() {
			fmt.Printf("      Next Update: %s\n", sr.NextUpdate.Format(time.RFC3339))
		}
		if status == ocsp.CertStatusRevoked && revoked != nil {
			fmt.Printf("      Revoked At:  %s\n", revoked.RevocationTime.Format(time.RFC3339))
			fmt.Printf("      Reason:      %s\n", ocsp.RevocationReason(revoked.RevocationReason))
		}
	}

	return nil
}

func printRequestInfo(req *ocsp.OCSPRequest) error {
	fmt.Printf("OCSP Request Information\n")
	fmt.Printf("========================\n\n")
	fmt.Printf("Version:  %d\n", req.TBSRequest.Version+1)
	fmt.Printf("Requests: %d\n", len(req.TBSRequest.RequestList))

	for i := range req.TBSRequest.RequestList {
		id := &req.TBSRequest.RequestList[i].ReqCert
		fmt.Printf("\n  [%d] Serial:         %X\n", i+1, id.SerialNumber.Bytes())
		fmt.Printf("      Digest:         %s\n", certIDDigestName(id.HashAlgorithm.Algorithm))
		fmt.Printf("      IssuerNameHash: %X\n", id.IssuerNameHash)
		fmt.Printf("      IssuerKeyHash:  %X\n", id.IssuerKeyHash)
	}

	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/audit"
	"github.com/remiblancher/ocspkit/internal/ca"
)

// revokeCmd marks a certificate revoked in the CA index.
var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Mark a certificate revoked in the CA index",
	Long: `Mark a certificate revoked in the CA index file.

The index entry's status changes to R and the revocation time is
recorded. A running responder answers "revoked" for the certificate on
its next index read.

Examples:
  # Revoke a certificate
  ocspkit revoke --ca-dir ./ca --serial 1A2B3C

  # Revoke with a reason
  ocspkit revoke --ca-dir ./ca --serial 1A2B3C --reason key-compromise`,
	RunE: runRevoke,
}

var (
	revokeCADir  string
	revokeSerial string
	revokeReason string
)

func init() {
	revokeCmd.Flags().StringVar(&revokeCADir, "ca-dir", "", "CA directory (must contain index.txt)")
	revokeCmd.Flags().StringVar(&revokeSerial, "serial", "", "Certificate serial number (hex)")
	revokeCmd.Flags().StringVarP(&revokeReason, "reason", "r", "unspecified", "Revocation reason")

	_ = revokeCmd.MarkFlagRequired("ca-dir")
	_ = revokeCmd.MarkFlagRequired("serial")
}

func runRevoke(cmd *cobra.Command, args []string) error {
	serial, err := parseSerialHex(revokeSerial)
	if err != nil {
		return err
	}

	reason, err := ca.ParseRevocationReason(revokeReason)
	if err != nil {
		return err
	}

	serialHex := fmt.Sprintf("%X", serial.Bytes())

	store := ca.NewFileStore(revokeCADir)
	if err := store.MarkRevoked(cmd.Context(), serial.Bytes(), reason); err != nil {
		_ = audit.LogCertRevoked(revokeCADir, serialHex, "", reason.String(), false)
		return fmt.Errorf("failed to revoke certificate: %w", err)
	}

	_ = audit.LogCertRevoked(revokeCADir, serialHex, "", reason.String(), true)

	fmt.Printf("Certificate %s revoked\n", serialHex)
	fmt.Printf("  CA dir:  %s\n", revokeCADir)
	fmt.Printf("  Reason:  %s\n", reason)
	return nil
}

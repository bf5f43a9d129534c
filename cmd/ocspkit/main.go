// Command ocspkit is the CLI tool for the OCSP toolkit.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/audit"
	"github.com/remiblancher/ocspkit/internal/crypto"
)

// Injected by GoReleaser.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var auditLogPath string

func main() {
	// PKCS#11 sessions must be torn down before the process exits, or
	// some HSM libraries crash inside their atexit handlers.
	shutdownPoolsOnSignal()

	err := rootCmd.Execute()
	crypto.CloseAllPools()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// shutdownPoolsOnSignal closes the PKCS#11 session pools when the
// process is interrupted, then exits.
func shutdownPoolsOnSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		crypto.CloseAllPools()
		os.Exit(0)
	}()
}

var rootCmd = &cobra.Command{
	Use:   "ocspkit",
	Short: "OCSP toolkit (RFC 6960)",
	Long: `ocspkit is a command-line toolkit for the Online Certificate Status
Protocol (RFC 6960).

It builds and parses OCSP requests, creates signed OCSP responses,
serves an HTTP responder backed by a CA index, and queries remote
responders. Response signing keys can live in PEM files or behind
PKCS#11 (HSM).

Examples:
  # Build a request for a certificate
  ocspkit request --issuer ca.crt --cert server.crt --out request.der

  # Sign a one-shot response for a serial number
  ocspkit sign --serial 0A1B2C --status good --ca ca.crt --key ca.key --out response.der

  # Serve an HTTP responder from a CA directory
  ocspkit serve --ca-dir ./ca --listen :8080

  # Query a responder for a certificate's status
  ocspkit query --url http://ocsp.example.com --issuer ca.crt --cert server.crt`,
	Version:            fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE:  openAuditLog,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return audit.Close() },
}

// openAuditLog starts the audit trail when --audit-log or the
// OCSPKIT_AUDIT_LOG environment variable names a destination.
func openAuditLog(cmd *cobra.Command, args []string) error {
	if auditLogPath == "" {
		auditLogPath = os.Getenv("OCSPKIT_AUDIT_LOG")
	}
	if auditLogPath == "" {
		return nil
	}
	if err := audit.InitFile(auditLogPath); err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file; a .cbor extension selects the hash-chained binary format (or set OCSPKIT_AUDIT_LOG env var)")

	rootCmd.AddCommand(
		// Request side
		requestCmd,
		infoCmd,
		queryCmd,
		// Response side
		signCmd,
		serveCmd,
		stopCmd,
		// CA index maintenance
		revokeCmd,
		// Configuration files
		configCmd,
	)
}

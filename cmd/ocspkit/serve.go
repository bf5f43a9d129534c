package main

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/internal/api/server"
	"github.com/remiblancher/ocspkit/internal/audit"
	"github.com/remiblancher/ocspkit/internal/ca"
	"github.com/remiblancher/ocspkit/internal/config"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// serveCmd runs the HTTP OCSP responder.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an HTTP OCSP responder",
	Long: `Run an HTTP OCSP responder answering from a CA directory.

The responder reads certificate statuses from the CA index file
(index.txt) and signs responses with the CA key, a delegated responder
key, or a PKCS#11 key.

Settings resolve with a fixed precedence: command-line flag, then
OCSPKIT_* environment variable, then the configuration file, then the
built-in default.

Examples:
  # Serve with CA-signed responses
  ocspkit serve --ca-dir ./ca --listen :8080

  # Serve from a configuration file
  ocspkit serve --config responder.yaml

  # Serve with a delegated responder certificate
  ocspkit serve --ca-dir ./ca --cert ocsp.crt --key ocsp.key

  # Serve with a PKCS#11 key
  ocspkit serve --ca-dir ./ca --cert ocsp.crt --hsm-config hsm.yaml --key-label ocsp-key`,
	RunE: runServe,
}

var (
	serveConfigFile   string
	serveListen       string
	serveCADir        string
	serveCert         string
	serveKey          string
	servePassphrase   string
	serveValidity     string
	serveHash         string
	serveIncludeCerts bool
	serveMaxConns     int
	serveTLSCert      string
	serveTLSKey       string
	serveHSMConfig    string
	serveKeyLabel     string
	serveKeyID        string
	servePIDFile      string
)

func init() {
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "Configuration file (YAML)")
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "Listen address (host:port)")
	serveCmd.Flags().StringVar(&serveCADir, "ca-dir", "", "CA directory (must contain ca.crt and index.txt)")
	serveCmd.Flags().StringVar(&serveCert, "cert", "", "Delegated responder certificate (PEM)")
	serveCmd.Flags().StringVar(&serveKey, "key", "", "Delegated responder private key (PEM)")
	serveCmd.Flags().StringVar(&servePassphrase, "passphrase", "", "Key passphrase (or env:VAR_NAME)")
	serveCmd.Flags().StringVar(&serveValidity, "validity", "24h", "Response validity window (e.g. 1h, 24h, 7d)")
	serveCmd.Flags().StringVar(&serveHash, "hash", "", "Digest for serial lookups: sha1, sha256, sha384, sha512")
	serveCmd.Flags().BoolVar(&serveIncludeCerts, "include-certs", true, "Embed the responder certificate in responses")
	serveCmd.Flags().IntVar(&serveMaxConns, "max-conns", 512, "Maximum concurrent connections (0 = unlimited)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate for HTTPS (PEM)")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key for HTTPS (PEM)")
	serveCmd.Flags().StringVar(&serveHSMConfig, "hsm-config", "", "HSM configuration file (enables PKCS#11 signing)")
	serveCmd.Flags().StringVar(&serveKeyLabel, "key-label", "", "PKCS#11 key label")
	serveCmd.Flags().StringVar(&serveKeyID, "key-id", "", "PKCS#11 key ID (hex)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file path (default: /tmp/ocspkit-{port}.pid)")
}

// resolveServeConfig layers the configuration sources: file, then
// environment, then any flag the user set explicitly.
func resolveServeConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if serveConfigFile != "" {
		cfg, err = config.Load(serveConfigFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	cfg.ApplyEnv()

	if cmd.Flags().Changed("listen") {
		cfg.Listen = serveListen
	}
	if cmd.Flags().Changed("ca-dir") {
		cfg.CADir = serveCADir
	}
	if cmd.Flags().Changed("cert") {
		cfg.ResponderCert = serveCert
	}
	if cmd.Flags().Changed("key") {
		cfg.ResponderKey = serveKey
	}
	if cmd.Flags().Changed("validity") {
		cfg.Validity = serveValidity
	}
	if cmd.Flags().Changed("hash") {
		cfg.Hash = serveHash
	}
	if cmd.Flags().Changed("include-certs") {
		cfg.IncludeCerts = serveIncludeCerts
	}
	if cmd.Flags().Changed("max-conns") {
		cfg.MaxConns = serveMaxConns
	}
	if cmd.Flags().Changed("tls-cert") {
		cfg.TLSCert = serveTLSCert
	}
	if cmd.Flags().Changed("tls-key") {
		cfg.TLSKey = serveTLSKey
	}
	if cmd.Flags().Changed("hsm-config") {
		cfg.HSM = &config.HSMKeyRef{
			Config:   serveHSMConfig,
			KeyLabel: serveKeyLabel,
			KeyID:    serveKeyID,
		}
	} else if cfg.HSM != nil {
		if cmd.Flags().Changed("key-label") {
			cfg.HSM.KeyLabel = serveKeyLabel
		}
		if cmd.Flags().Changed("key-id") {
			cfg.HSM.KeyID = serveKeyID
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveServeConfig(cmd)
	if err != nil {
		return err
	}

	// Load CA store and certificate
	store := ca.NewFileStore(cfg.CADir)
	caCert, err := loadCertificate(store.CACertPath())
	if err != nil {
		return fmt.Errorf("failed to load CA certificate: %w", err)
	}

	// Load responder certificate and key
	var responderCert *x509.Certificate
	var signer crypto.Signer

	if cfg.ResponderCert != "" {
		// Delegated responder mode
		responderCert, err = loadCertificate(cfg.ResponderCert)
		if err != nil {
			return fmt.Errorf("failed to load responder certificate: %w", err)
		}
	} else {
		// CA-signed mode
		responderCert = caCert
	}

	switch {
	case cfg.HSM != nil:
		signer, err = loadSigner(cfg.HSM.Config, "", "", cfg.HSM.KeyLabel, cfg.HSM.KeyID)
	case cfg.ResponderKey != "":
		signer, err = loadSigner("", cfg.ResponderKey, servePassphrase, "", "")
	default:
		signer, err = loadSigner("", store.CAKeyPath(), servePassphrase, "", "")
	}
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	validity, err := cfg.ValidityWindow()
	if err != nil {
		return err
	}
	digest, err := cfg.Digest()
	if err != nil {
		return err
	}

	// Create responder
	responder, err := ocsp.NewResponder(&ocsp.ResponderConfig{
		ResponderCert: responderCert,
		Signer:        signer,
		CACert:        caCert,
		CAStore:       store,
		Validity:      validity,
		IncludeCerts:  cfg.IncludeCerts,
		Digest:        digest,
	})
	if err != nil {
		return fmt.Errorf("failed to create responder: %w", err)
	}

	host, port, err := cfg.HostPort()
	if err != nil {
		return err
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srvCfg.CADir = cfg.CADir
	srvCfg.TLSCert = cfg.TLSCert
	srvCfg.TLSKey = cfg.TLSKey
	srvCfg.MaxConns = cfg.MaxConns

	// Determine PID file path
	pidFile := servePIDFile
	if pidFile == "" {
		pidFile = fmt.Sprintf("/tmp/ocspkit-%d.pid", port)
	}

	// Write PID file
	if err := writePIDFile(pidFile); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer removePIDFile(pidFile)

	_ = audit.LogOCSPServe(cfg.CADir, port, true)

	fmt.Printf("PID file: %s\n", pidFile)
	fmt.Printf("Use 'ocspkit stop --port %d' or Ctrl+C to stop\n", port)

	srv := server.New(srvCfg, version, responder, store)
	if err := srv.Start(); err != nil {
		return err
	}

	_ = audit.LogOCSPStop(cfg.CADir)
	return nil
}

// stopCmd stops a running OCSP responder.
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running OCSP responder",
	Long: `Stop a running OCSP responder server.

The command reads the PID from the PID file and sends a SIGTERM signal.

Examples:
  # Stop responder on default port
  ocspkit stop --port 8080

  # Stop using custom PID file
  ocspkit stop --pid-file /var/run/ocsp.pid`,
	RunE: runStop,
}

var (
	stopPort    int
	stopPIDFile string
)

func init() {
	stopCmd.Flags().IntVar(&stopPort, "port", 8080, "Port to derive default PID file path")
	stopCmd.Flags().StringVar(&stopPIDFile, "pid-file", "", "PID file path (default: /tmp/ocspkit-{port}.pid)")
}

func runStop(cmd *cobra.Command, args []string) error {
	// Determine PID file path
	pidFile := stopPIDFile
	if pidFile == "" {
		pidFile = fmt.Sprintf("/tmp/ocspkit-%d.pid", stopPort)
	}

	// Read PID from file
	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("OCSP responder not running (PID file not found: %s)", pidFile)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %w", err)
	}

	// Find the process
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	// Send SIGTERM
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal to process %d: %w", pid, err)
	}

	fmt.Printf("Sent stop signal to OCSP responder (PID %d)\n", pid)
	return nil
}

// writePIDFile writes the current process PID to the specified file.
func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644)
}

// removePIDFile removes the PID file if it exists.
func removePIDFile(path string) {
	_ = os.Remove(path)
}

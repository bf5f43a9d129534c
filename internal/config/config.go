// Package config loads the responder configuration file.
//
// Settings resolve with a fixed precedence: command-line flag, then
// OCSPKIT_* environment variable, then the file value, then the
// built-in default. Load applies the file over the defaults and
// ApplyEnv applies the environment on top; flag overrides are the
// caller's job, so Validate runs only after all layers are applied.
package config

import (
	"crypto"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
)

// Config is the responder configuration. The zero value is not
// usable; start from Default.
type Config struct {
	// Listen is the host:port the HTTP responder binds to.
	Listen string `yaml:"listen"`

	// CADir is the CA directory the responder answers from. It must
	// contain ca.crt and index.txt.
	CADir string `yaml:"ca_dir"`

	// ResponderCert and ResponderKey select delegated-responder mode:
	// responses are signed by this certificate's key instead of the CA
	// key. The certificate must chain to the CA and carry the
	// id-kp-OCSPSigning extended key usage.
	ResponderCert string `yaml:"responder_cert"`
	ResponderKey  string `yaml:"responder_key"`

	// Validity is the response validity window (thisUpdate to
	// nextUpdate) as a duration string. Extended units d, w and y are
	// accepted ("24h", "7d").
	Validity string `yaml:"validity"`

	// Hash names the digest used to build certificate identifiers
	// from bare serial numbers (sha1, sha256, sha384, sha512).
	// Incoming requests carry their own CertID digest.
	Hash string `yaml:"hash"`

	// IncludeCerts embeds the responder certificate in responses.
	IncludeCerts bool `yaml:"include_certs"`

	// MaxConns caps concurrent HTTP connections. Zero means no limit.
	MaxConns int `yaml:"max_conns"`

	// TLSCert and TLSKey enable HTTPS. OCSP normally runs over plain
	// HTTP so that status checks do not depend on the certificates
	// being checked.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	// HSM selects a PKCS#11 key for response signing instead of
	// ResponderKey.
	HSM *HSMKeyRef `yaml:"hsm"`
}

// HSMKeyRef points at a PKCS#11 key described by an HSM configuration
// file (see crypto.LoadHSMConfig for the file format).
type HSMKeyRef struct {
	// Config is the path to the HSM configuration file.
	Config string `yaml:"config"`

	// KeyLabel and KeyID locate the key on the token. At least one
	// is required.
	KeyLabel string `yaml:"key_label"`
	KeyID    string `yaml:"key_id"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Listen:       ":8080",
		Validity:     "24h",
		IncludeCerts: true,
		MaxConns:     512,
	}
}

// Load reads a YAML configuration file and applies it over the
// defaults. It does not validate: required values may still arrive
// from the environment or flags. Call Validate once all layers are
// applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides configuration values from OCSPKIT_* environment
// variables. Unset or empty variables leave the current value alone;
// unparseable numeric or boolean values are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OCSPKIT_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("OCSPKIT_CA_DIR"); v != "" {
		c.CADir = v
	}
	if v := os.Getenv("OCSPKIT_RESPONDER_CERT"); v != "" {
		c.ResponderCert = v
	}
	if v := os.Getenv("OCSPKIT_RESPONDER_KEY"); v != "" {
		c.ResponderKey = v
	}
	if v := os.Getenv("OCSPKIT_VALIDITY"); v != "" {
		c.Validity = v
	}
	if v := os.Getenv("OCSPKIT_HASH"); v != "" {
		c.Hash = v
	}
	if v := os.Getenv("OCSPKIT_INCLUDE_CERTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.IncludeCerts = b
		}
	}
	if v := os.Getenv("OCSPKIT_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConns = n
		}
	}
	if v := os.Getenv("OCSPKIT_TLS_CERT"); v != "" {
		c.TLSCert = v
	}
	if v := os.Getenv("OCSPKIT_TLS_KEY"); v != "" {
		c.TLSKey = v
	}
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.CADir == "" {
		return fmt.Errorf("ca_dir is required")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if _, _, err := c.HostPort(); err != nil {
		return err
	}
	if _, err := c.ValidityWindow(); err != nil {
		return err
	}
	if _, err := c.Digest(); err != nil {
		return err
	}

	if c.ResponderKey != "" && c.HSM != nil {
		return fmt.Errorf("responder_key and hsm are mutually exclusive")
	}
	if c.ResponderCert != "" && c.ResponderKey == "" && c.HSM == nil {
		return fmt.Errorf("responder_key or hsm is required when responder_cert is set")
	}
	if c.ResponderCert == "" && c.ResponderKey != "" {
		return fmt.Errorf("responder_cert is required when responder_key is set")
	}

	if c.HSM != nil {
		if err := c.HSM.Validate(); err != nil {
			return err
		}
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}

	return nil
}

// Validate checks the HSM key reference.
func (h *HSMKeyRef) Validate() error {
	if h.Config == "" {
		return fmt.Errorf("hsm.config is required")
	}
	if h.KeyLabel == "" && h.KeyID == "" {
		return fmt.Errorf("at least one of hsm.key_label or hsm.key_id is required")
	}
	return nil
}

// HostPort splits Listen into its host and numeric port.
func (c *Config) HostPort() (string, int, error) {
	host, portStr, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen port %q", portStr)
	}
	return host, port, nil
}

// ValidityWindow returns the parsed response validity duration.
func (c *Config) ValidityWindow() (time.Duration, error) {
	d, err := ParseDuration(c.Validity)
	if err != nil {
		return 0, fmt.Errorf("invalid validity: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("validity must be positive, got %q", c.Validity)
	}
	return d, nil
}

// Digest returns the parsed serial-lookup digest. An empty Hash means
// the default digest.
func (c *Config) Digest() (crypto.Hash, error) {
	if c.Hash == "" {
		return pkicrypto.DefaultDigest, nil
	}
	return pkicrypto.ParseDigest(c.Hash)
}

// ParseDuration parses a duration string with extended format.
// Supports Go duration format plus: d (days), w (weeks), y (years).
// Examples: "1h30m", "365d", "1y", "2w", "30d12h"
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	// First, try standard Go duration
	if dur, err := time.ParseDuration(s); err == nil {
		return dur, nil
	}

	// Handle extended format with d, w, y
	var total time.Duration
	var current string
	for _, r := range s {
		switch r {
		case 'y', 'Y':
			n, err := strconv.ParseFloat(current, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid year value: %s", current)
			}
			total += time.Duration(n * 365 * 24 * float64(time.Hour))
			current = ""
		case 'w', 'W':
			n, err := strconv.ParseFloat(current, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid week value: %s", current)
			}
			total += time.Duration(n * 7 * 24 * float64(time.Hour))
			current = ""
		case 'd', 'D':
			n, err := strconv.ParseFloat(current, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid day value: %s", current)
			}
			total += time.Duration(n * 24 * float64(time.Hour))
			current = ""
		default:
			current += string(r)
		}
	}

	// Parse remaining as Go duration
	if current != "" {
		dur, err := time.ParseDuration(current)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", current)
		}
		total += dur
	}

	if total == 0 && s != "0" && s != "0s" {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	return total, nil
}

package crypto

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HSMConfig is the YAML configuration for an HSM backend. Only
// PKCS#11 modules are supported.
type HSMConfig struct {
	Type   string         `yaml:"type"`
	PKCS11 PKCS11Settings `yaml:"pkcs11"`
}

// PKCS11Settings locates a PKCS#11 module and token. The token can
// be picked by label, serial number, or slot ID; at least one must be
// set. The PIN never appears in the file itself, only the name of the
// environment variable that carries it.
type PKCS11Settings struct {
	Lib         string `yaml:"lib"`
	Token       string `yaml:"token"`
	TokenSerial string `yaml:"token_serial"`
	Slot        *uint  `yaml:"slot"`
	PinEnv      string `yaml:"pin_env"`
}

// PKCS11Config locates a signing key inside a PKCS#11 token at
// runtime. The token is picked by label, serial, or explicit slot;
// the key by CKA_LABEL and/or hex-encoded CKA_ID. Unlike HSMConfig
// it carries the resolved PIN and is never written to disk.
type PKCS11Config struct {
	ModulePath  string
	TokenLabel  string
	TokenSerial string
	PIN         string
	KeyLabel    string
	KeyID       string
	SlotID      *uint
}

// LoadHSMConfig reads and validates an HSM configuration file.
func LoadHSMConfig(path string) (*HSMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HSM config: %w", err)
	}
	cfg := new(HSMConfig)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse HSM config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid HSM config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c *HSMConfig) Validate() error {
	if c.Type != "pkcs11" {
		return fmt.Errorf("unsupported HSM type %q (only pkcs11 tokens are handled)", c.Type)
	}
	p := c.PKCS11
	switch {
	case p.Lib == "":
		return errors.New("pkcs11.lib is required")
	case p.Token == "" && p.TokenSerial == "" && p.Slot == nil:
		return errors.New("one of pkcs11.token, pkcs11.token_serial or pkcs11.slot must identify the token")
	case p.PinEnv == "":
		return errors.New("pkcs11.pin_env is required; the PIN itself never goes in the file")
	}
	return nil
}

// GetPIN reads the PIN from the configured environment variable.
func (c *HSMConfig) GetPIN() (string, error) {
	if pin := os.Getenv(c.PKCS11.PinEnv); pin != "" {
		return pin, nil
	}
	return "", fmt.Errorf("PIN environment variable %s is unset or empty", c.PKCS11.PinEnv)
}

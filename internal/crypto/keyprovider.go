package crypto

import (
	"fmt"
	"os"
	"strings"
)

// KeyProviderType names a key storage backend.
type KeyProviderType string

const (
	KeyProviderTypeSoftware KeyProviderType = "software"
	KeyProviderTypePKCS11   KeyProviderType = "pkcs11"
)

// KeyStorageConfig tells a KeyProvider where a key lives. Software
// keys are PEM files on disk; PKCS#11 keys are located inside a token
// by label or CKA_ID. Secrets (passphrase, PIN) are never serialized.
type KeyStorageConfig struct {
	Type KeyProviderType `json:"type" yaml:"type"`

	// Software backend
	KeyPath    string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	Passphrase string `json:"-" yaml:"-"`

	// PKCS#11 backend
	PKCS11Lib         string `json:"pkcs11_lib,omitempty" yaml:"pkcs11_lib,omitempty"`
	PKCS11Token       string `json:"pkcs11_token,omitempty" yaml:"pkcs11_token,omitempty"`
	PKCS11TokenSerial string `json:"pkcs11_token_serial,omitempty" yaml:"pkcs11_token_serial,omitempty"`
	PKCS11Slot        *uint  `json:"pkcs11_slot,omitempty" yaml:"pkcs11_slot,omitempty"`
	PKCS11Pin         string `json:"-" yaml:"-"`
	PKCS11KeyLabel    string `json:"pkcs11_key_label,omitempty" yaml:"pkcs11_key_label,omitempty"`
	PKCS11KeyID       string `json:"pkcs11_key_id,omitempty" yaml:"pkcs11_key_id,omitempty"`
}

// KeyProvider hides the difference between disk and HSM keys behind
// two operations. Load opens an existing key; Generate creates one
// and stores it. Both hand back a Signer ready for use.
type KeyProvider interface {
	Load(cfg KeyStorageConfig) (Signer, error)
	Generate(alg AlgorithmID, cfg KeyStorageConfig) (Signer, error)
}

// NewKeyProvider picks the provider for cfg.Type. An empty type means
// software keys.
func NewKeyProvider(cfg KeyStorageConfig) KeyProvider {
	if cfg.Type == KeyProviderTypePKCS11 {
		return &PKCS11KeyProvider{}
	}
	return &SoftwareKeyProvider{}
}

// NewKeyProviderFromHSMConfig builds a PKCS#11 provider and its
// storage config from an HSM configuration file. keyLabel and keyID
// select the signing key inside the token; at least one of the two is
// expected by Load.
func NewKeyProviderFromHSMConfig(hsmConfigPath, keyLabel, keyID string) (KeyProvider, KeyStorageConfig, error) {
	hsmCfg, err := LoadHSMConfig(hsmConfigPath)
	if err != nil {
		return nil, KeyStorageConfig{}, fmt.Errorf("failed to load HSM config: %w", err)
	}

	pin, err := hsmCfg.GetPIN()
	if err != nil {
		return nil, KeyStorageConfig{}, err
	}

	cfg := KeyStorageConfig{
		Type:              KeyProviderTypePKCS11,
		PKCS11Lib:         hsmCfg.PKCS11.Lib,
		PKCS11Token:       hsmCfg.PKCS11.Token,
		PKCS11TokenSerial: hsmCfg.PKCS11.TokenSerial,
		PKCS11Slot:        hsmCfg.PKCS11.Slot,
		PKCS11Pin:         pin,
		PKCS11KeyLabel:    keyLabel,
		PKCS11KeyID:       keyID,
	}
	return NewKeyProvider(cfg), cfg, nil
}

// ResolvePassphrase turns a passphrase flag value into key material.
// The "env:VAR" form reads VAR from the environment; anything else is
// taken literally. Empty input means no passphrase.
func ResolvePassphrase(passphrase string) []byte {
	if passphrase == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(passphrase, "env:"); ok {
		return []byte(os.Getenv(name))
	}
	return []byte(passphrase)
}

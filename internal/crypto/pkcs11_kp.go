//go:build cgo

package crypto

import (
	"errors"
	"fmt"
)

// PKCS11KeyProvider hands out signers whose private key never leaves
// the HSM.
type PKCS11KeyProvider struct{}

var _ KeyProvider = (*PKCS11KeyProvider)(nil)

// NewPKCS11KeyProvider returns a provider for PKCS#11 tokens.
func NewPKCS11KeyProvider() *PKCS11KeyProvider {
	return &PKCS11KeyProvider{}
}

// Load opens the token described by cfg and locates the signing key
// by label and/or CKA_ID.
func (p *PKCS11KeyProvider) Load(cfg KeyStorageConfig) (Signer, error) {
	switch {
	case cfg.Type != KeyProviderTypePKCS11:
		return nil, fmt.Errorf("storage type %q is not a PKCS#11 token", cfg.Type)
	case cfg.PKCS11Lib == "":
		return nil, errors.New("pkcs11_lib is required to reach the token")
	case cfg.PKCS11KeyLabel == "" && cfg.PKCS11KeyID == "":
		return nil, errors.New("set pkcs11_key_label or pkcs11_key_id to select the key")
	}

	return NewPKCS11Signer(PKCS11Config{
		ModulePath:  cfg.PKCS11Lib,
		TokenLabel:  cfg.PKCS11Token,
		TokenSerial: cfg.PKCS11TokenSerial,
		SlotID:      cfg.PKCS11Slot,
		PIN:         cfg.PKCS11Pin,
		KeyLabel:    cfg.PKCS11KeyLabel,
		KeyID:       cfg.PKCS11KeyID,
	})
}

// Generate is not supported: responder keys are created with the HSM
// vendor tooling, then loaded by label or ID.
func (p *PKCS11KeyProvider) Generate(AlgorithmID, KeyStorageConfig) (Signer, error) {
	return nil, errors.New("in-HSM key generation is not handled: create the key with the vendor tooling, then load it by label or id")
}

package crypto

import (
	"errors"
	"fmt"
)

// SoftwareKeyProvider stores keys as PEM files on disk, optionally
// encrypted with a passphrase.
type SoftwareKeyProvider struct{}

var _ KeyProvider = (*SoftwareKeyProvider)(nil)

// NewSoftwareKeyProvider returns a provider for on-disk keys.
func NewSoftwareKeyProvider() *SoftwareKeyProvider {
	return &SoftwareKeyProvider{}
}

func checkSoftwareStorage(cfg KeyStorageConfig) error {
	if cfg.Type != KeyProviderTypeSoftware && cfg.Type != "" {
		return fmt.Errorf("storage type %q is not a software key", cfg.Type)
	}
	if cfg.KeyPath == "" {
		return errors.New("key_path must point at the key file")
	}
	return nil
}

// Load reads the key file at cfg.KeyPath.
func (p *SoftwareKeyProvider) Load(cfg KeyStorageConfig) (Signer, error) {
	if err := checkSoftwareStorage(cfg); err != nil {
		return nil, err
	}
	return LoadPrivateKey(cfg.KeyPath, ResolvePassphrase(cfg.Passphrase))
}

// Generate creates a fresh key pair and writes it to cfg.KeyPath
// before returning the signer.
func (p *SoftwareKeyProvider) Generate(alg AlgorithmID, cfg KeyStorageConfig) (Signer, error) {
	if err := checkSoftwareStorage(cfg); err != nil {
		return nil, err
	}

	s, err := GenerateSoftwareSigner(alg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a fresh %s key: %w", alg, err)
	}
	if err := s.SavePrivateKey(cfg.KeyPath, ResolvePassphrase(cfg.Passphrase)); err != nil {
		return nil, fmt.Errorf("failed to write the new key to %s: %w", cfg.KeyPath, err)
	}
	return s, nil
}

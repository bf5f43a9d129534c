package crypto

import (
	"crypto"
	"crypto/rsa"
)

// SignerOptsConfig selects the hash and, for RSA, the padding scheme used
// by a signing operation.
type SignerOptsConfig struct {
	// Hash is the digest fed to Sign. Zero for schemes that hash
	// internally (Ed25519, ML-DSA, SLH-DSA).
	Hash crypto.Hash

	// UsePSS switches RSA signing from PKCS#1 v1.5 to RSA-PSS.
	UsePSS bool

	// PSSOptions applies when UsePSS is set.
	PSSOptions *rsa.PSSOptions
}

// HashFunc implements crypto.SignerOpts.
func (o *SignerOptsConfig) HashFunc() crypto.Hash { return o.Hash }

// DefaultSignerOpts returns the signing options the registry prescribes
// for an algorithm.
func DefaultSignerOpts(alg AlgorithmID) *SignerOptsConfig {
	return &SignerOptsConfig{Hash: alg.SignatureHash()}
}

// RSAPSSSignerOpts returns RSA-PSS options with the given salt length.
func RSAPSSSignerOpts(hash crypto.Hash, saltLength int) *SignerOptsConfig {
	pss := &rsa.PSSOptions{SaltLength: saltLength, Hash: hash}
	return &SignerOptsConfig{Hash: hash, UsePSS: true, PSSOptions: pss}
}

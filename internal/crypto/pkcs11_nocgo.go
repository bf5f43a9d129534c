//go:build !cgo

package crypto

import (
	"crypto"
	"errors"
	"io"
)

// Builds without cgo cannot dlopen PKCS#11 modules, so every HSM
// entry point reports errNoCGO instead.
var errNoCGO = errors.New("HSM support requires CGO (build with CGO_ENABLED=1)")

// PKCS11Signer stands in for the HSM-backed signer in non-cgo builds.
type PKCS11Signer struct{}

var _ Signer = (*PKCS11Signer)(nil)

// NewPKCS11Signer always fails without cgo.
func NewPKCS11Signer(PKCS11Config) (*PKCS11Signer, error) { return nil, errNoCGO }

func (*PKCS11Signer) Algorithm() AlgorithmID { return "" }

func (*PKCS11Signer) Public() crypto.PublicKey { return nil }

func (*PKCS11Signer) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, errNoCGO
}

func (*PKCS11Signer) Close() error { return nil }

// CloseAllPools is a no-op here; session pools only exist with cgo.
func CloseAllPools() {}

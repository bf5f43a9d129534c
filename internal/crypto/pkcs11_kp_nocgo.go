//go:build !cgo

package crypto

// PKCS11KeyProvider without cgo can only report that HSM support is
// missing from this build.
type PKCS11KeyProvider struct{}

var _ KeyProvider = (*PKCS11KeyProvider)(nil)

// NewPKCS11KeyProvider returns a provider for PKCS#11 tokens.
func NewPKCS11KeyProvider() *PKCS11KeyProvider { return &PKCS11KeyProvider{} }

func (*PKCS11KeyProvider) Load(KeyStorageConfig) (Signer, error) { return nil, errNoCGO }

func (*PKCS11KeyProvider) Generate(AlgorithmID, KeyStorageConfig) (Signer, error) {
	return nil, errNoCGO
}

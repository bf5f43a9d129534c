// This file implements key pair generation for every registered
// algorithm.

package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
)

// KeyPair holds a freshly generated private/public key pair.
type KeyPair struct {
	Algorithm  AlgorithmID
	PrivateKey crypto.PrivateKey
	PublicKey  crypto.PublicKey
}

// GenerateKeyPair generates a key pair for the given algorithm using
// the system random source.
func GenerateKeyPair(alg AlgorithmID) (*KeyPair, error) {
	return GenerateKeyPairWithRand(rand.Reader, alg)
}

// GenerateKeyPairWithRand generates a key pair from the provided
// random source. Pass crypto/rand.Reader outside of tests.
func GenerateKeyPairWithRand(random io.Reader, alg AlgorithmID) (*KeyPair, error) {
	priv, pub, err := newKeys(random, alg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key pair: %w", alg, err)
	}
	return &KeyPair{Algorithm: alg, PrivateKey: priv, PublicKey: pub}, nil
}

func newKeys(random io.Reader, alg AlgorithmID) (crypto.PrivateKey, crypto.PublicKey, error) {
	switch alg {
	case AlgECDSAP256:
		return ecdsaKeys(random, elliptic.P256())
	case AlgECDSAP384:
		return ecdsaKeys(random, elliptic.P384())
	case AlgECDSAP521:
		return ecdsaKeys(random, elliptic.P521())
	case AlgEd25519:
		pub, priv, err := ed25519.GenerateKey(random)
		return priv, pub, err
	case AlgRSA2048:
		return rsaKeys(random, 2048)
	case AlgRSA3072:
		return rsaKeys(random, 3072)
	case AlgRSA4096:
		return rsaKeys(random, 4096)
	case AlgMLDSA44:
		pub, priv, err := mldsa44.GenerateKey(random)
		return priv, pub, err
	case AlgMLDSA65:
		pub, priv, err := mldsa65.GenerateKey(random)
		return priv, pub, err
	case AlgMLDSA87:
		pub, priv, err := mldsa87.GenerateKey(random)
		return priv, pub, err
	case AlgSLHDSA128s, AlgSLHDSA128f, AlgSLHDSA192s, AlgSLHDSA192f, AlgSLHDSA256s, AlgSLHDSA256f:
		return slhdsaKeys(random, alg)
	default:
		return nil, nil, fmt.Errorf("unsupported algorithm")
	}
}

func ecdsaKeys(random io.Reader, curve elliptic.Curve) (crypto.PrivateKey, crypto.PublicKey, error) {
	priv, err := ecdsa.GenerateKey(curve, random)
	if err != nil {
		return nil, nil, err
	}
	return priv, &priv.PublicKey, nil
}

func rsaKeys(random io.Reader, bits int) (crypto.PrivateKey, crypto.PublicKey, error) {
	priv, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, nil, err
	}
	return priv, &priv.PublicKey, nil
}

func slhdsaKeys(random io.Reader, alg AlgorithmID) (crypto.PrivateKey, crypto.PublicKey, error) {
	id, err := SLHDSAParamID(alg)
	if err != nil {
		return nil, nil, err
	}
	// slhdsa hands back values; the signer layer expects pointers.
	pub, priv, err := slhdsa.GenerateKey(random, id)
	if err != nil {
		return nil, nil, err
	}
	return &priv, &pub, nil
}

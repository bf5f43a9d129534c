// This file defines the signature algorithm registry.

package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/asn1"
	"fmt"
	"sort"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
)

// AlgorithmID identifies a signature algorithm supported for responder keys.
type AlgorithmID string

// Classical signature algorithms.
const (
	AlgECDSAP256 AlgorithmID = "ecdsa-p256"
	AlgECDSAP384 AlgorithmID = "ecdsa-p384"
	AlgECDSAP521 AlgorithmID = "ecdsa-p521"
	AlgEd25519   AlgorithmID = "ed25519"
	AlgRSA2048   AlgorithmID = "rsa-2048"
	AlgRSA3072   AlgorithmID = "rsa-3072"
	AlgRSA4096   AlgorithmID = "rsa-4096"
)

// Post-quantum signature algorithms (FIPS 204 and FIPS 205).
const (
	AlgMLDSA44    AlgorithmID = "ml-dsa-44"
	AlgMLDSA65    AlgorithmID = "ml-dsa-65"
	AlgMLDSA87    AlgorithmID = "ml-dsa-87"
	AlgSLHDSA128s AlgorithmID = "slh-dsa-sha2-128s"
	AlgSLHDSA128f AlgorithmID = "slh-dsa-sha2-128f"
	AlgSLHDSA192s AlgorithmID = "slh-dsa-sha2-192s"
	AlgSLHDSA192f AlgorithmID = "slh-dsa-sha2-192f"
	AlgSLHDSA256s AlgorithmID = "slh-dsa-sha2-256s"
	AlgSLHDSA256f AlgorithmID = "slh-dsa-sha2-256f"
)

// AlgorithmType classifies an algorithm family.
type AlgorithmType string

const (
	// TypeClassicalSignature covers ECDSA, Ed25519 and RSA.
	TypeClassicalSignature AlgorithmType = "classical-signature"

	// TypePQCSignature covers ML-DSA and SLH-DSA.
	TypePQCSignature AlgorithmType = "pqc-signature"
)

// algorithmInfo holds the registry metadata for one algorithm.
type algorithmInfo struct {
	Type        AlgorithmType
	SigOID      asn1.ObjectIdentifier
	Hash        crypto.Hash
	KeySizeBits int
	Description string
}

// algorithms is the process-wide registry. Initialized once, never mutated.
//
// SigOID is the signature AlgorithmIdentifier emitted when a key of this
// type signs a response. Hash is the digest fed to the signer; zero means
// the scheme hashes internally (Ed25519, ML-DSA, SLH-DSA).
var algorithms = map[AlgorithmID]algorithmInfo{
	AlgECDSAP256: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2},
		Hash:        crypto.SHA256,
		KeySizeBits: 256,
		Description: "ECDSA over NIST P-256 with SHA-256",
	},
	AlgECDSAP384: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3},
		Hash:        crypto.SHA384,
		KeySizeBits: 384,
		Description: "ECDSA over NIST P-384 with SHA-384",
	},
	AlgECDSAP521: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4},
		Hash:        crypto.SHA512,
		KeySizeBits: 521,
		Description: "ECDSA over NIST P-521 with SHA-512",
	},
	AlgEd25519: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 3, 101, 112},
		Hash:        0,
		KeySizeBits: 256,
		Description: "Ed25519 (RFC 8410)",
	},
	AlgRSA2048: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11},
		Hash:        crypto.SHA256,
		KeySizeBits: 2048,
		Description: "RSA 2048 with SHA-256 (PKCS#1 v1.5)",
	},
	AlgRSA3072: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11},
		Hash:        crypto.SHA256,
		KeySizeBits: 3072,
		Description: "RSA 3072 with SHA-256 (PKCS#1 v1.5)",
	},
	AlgRSA4096: {
		Type:        TypeClassicalSignature,
		SigOID:      asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11},
		Hash:        crypto.SHA256,
		KeySizeBits: 4096,
		Description: "RSA 4096 with SHA-256 (PKCS#1 v1.5)",
	},
	AlgMLDSA44: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17},
		Hash:        0,
		KeySizeBits: 0,
		Description: "ML-DSA-44 (FIPS 204)",
	},
	AlgMLDSA65: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18},
		Hash:        0,
		KeySizeBits: 0,
		Description: "ML-DSA-65 (FIPS 204)",
	},
	AlgMLDSA87: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19},
		Hash:        0,
		KeySizeBits: 0,
		Description: "ML-DSA-87 (FIPS 204)",
	},
	AlgSLHDSA128s: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 20},
		Hash:        0,
		KeySizeBits: 0,
		Description: "SLH-DSA-SHA2-128s (FIPS 205)",
	},
	AlgSLHDSA128f: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 21},
		Hash:        0,
		KeySizeBits: 0,
		Description: "SLH-DSA-SHA2-128f (FIPS 205)",
	},
	AlgSLHDSA192s: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 22},
		Hash:        0,
		KeySizeBits: 0,
		Description: "SLH-DSA-SHA2-192s (FIPS 205)",
	},
	AlgSLHDSA192f: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 23},
		Hash:        0,
		KeySizeBits: 0,
		Description: "SLH-DSA-SHA2-192f (FIPS 205)",
	},
	AlgSLHDSA256s: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 24},
		Hash:        0,
		KeySizeBits: 0,
		Description: "SLH-DSA-SHA2-256s (FIPS 205)",
	},
	AlgSLHDSA256f: {
		Type:        TypePQCSignature,
		SigOID:      asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 25},
		Hash:        0,
		KeySizeBits: 0,
		Description: "SLH-DSA-SHA2-256f (FIPS 205)",
	},
}

// IsValid reports whether the algorithm is registered.
func (a AlgorithmID) IsValid() bool {
	_, ok := algorithms[a]
	return ok
}

// Type returns the algorithm family, or empty for unknown algorithms.
func (a AlgorithmID) Type() AlgorithmType {
	return algorithms[a].Type
}

// IsClassical reports whether the algorithm is a classical (pre-quantum) scheme.
func (a AlgorithmID) IsClassical() bool {
	return algorithms[a].Type == TypeClassicalSignature
}

// IsPQC reports whether the algorithm is post-quantum.
func (a AlgorithmID) IsPQC() bool {
	return algorithms[a].Type == TypePQCSignature
}

// SignatureOID returns the signature AlgorithmIdentifier OID emitted when
// a key of this type signs.
func (a AlgorithmID) SignatureOID() (asn1.ObjectIdentifier, error) {
	info, ok := algorithms[a]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm: %s", a)
	}
	return info.SigOID, nil
}

// SignatureHash returns the digest fed to Sign for this algorithm.
// Zero means the scheme takes the full message.
func (a AlgorithmID) SignatureHash() crypto.Hash {
	return algorithms[a].Hash
}

// Description returns a human-readable description.
func (a AlgorithmID) Description() string {
	if info, ok := algorithms[a]; ok {
		return info.Description
	}
	return "unknown algorithm"
}

// String implements fmt.Stringer.
func (a AlgorithmID) String() string {
	return string(a)
}

// ParseAlgorithm validates a string as a registered AlgorithmID.
func ParseAlgorithm(s string) (AlgorithmID, error) {
	a := AlgorithmID(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown algorithm: %q", s)
	}
	return a, nil
}

// AllAlgorithms returns every registered algorithm, sorted by name.
func AllAlgorithms() []AlgorithmID {
	ids := make([]AlgorithmID, 0, len(algorithms))
	for id := range algorithms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PublicKeyAlgorithm derives the AlgorithmID from a public key value.
func PublicKeyAlgorithm(pub crypto.PublicKey) (AlgorithmID, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		switch key.Curve {
		case elliptic.P256():
			return AlgECDSAP256, nil
		case elliptic.P384():
			return AlgECDSAP384, nil
		case elliptic.P521():
			return AlgECDSAP521, nil
		}
		return "", fmt.Errorf("unsupported ECDSA curve: %s", key.Curve.Params().Name)

	case ed25519.PublicKey:
		return AlgEd25519, nil

	case *rsa.PublicKey:
		switch bits := key.N.BitLen(); {
		case bits <= 2048:
			return AlgRSA2048, nil
		case bits <= 3072:
			return AlgRSA3072, nil
		default:
			return AlgRSA4096, nil
		}

	case *mldsa44.PublicKey:
		return AlgMLDSA44, nil
	case *mldsa65.PublicKey:
		return AlgMLDSA65, nil
	case *mldsa87.PublicKey:
		return AlgMLDSA87, nil

	case *slhdsa.PublicKey:
		return slhdsaAlgorithm(key.ID)
	case slhdsa.PublicKey:
		return slhdsaAlgorithm(key.ID)
	}
	return "", fmt.Errorf("unsupported public key type: %T", pub)
}

// SignerAlgorithm derives the AlgorithmID from a signer's public key.
func SignerAlgorithm(signer crypto.Signer) (AlgorithmID, error) {
	return PublicKeyAlgorithm(signer.Public())
}

func slhdsaAlgorithm(id slhdsa.ID) (AlgorithmID, error) {
	switch id {
	case slhdsa.SHA2_128s:
		return AlgSLHDSA128s, nil
	case slhdsa.SHA2_128f:
		return AlgSLHDSA128f, nil
	case slhdsa.SHA2_192s:
		return AlgSLHDSA192s, nil
	case slhdsa.SHA2_192f:
		return AlgSLHDSA192f, nil
	case slhdsa.SHA2_256s:
		return AlgSLHDSA256s, nil
	case slhdsa.SHA2_256f:
		return AlgSLHDSA256f, nil
	}
	return "", fmt.Errorf("unsupported SLH-DSA parameter set: %v", id)
}

// SLHDSAParamID returns the circl parameter set for an SLH-DSA AlgorithmID.
func SLHDSAParamID(a AlgorithmID) (slhdsa.ID, error) {
	switch a {
	case AlgSLHDSA128s:
		return slhdsa.SHA2_128s, nil
	case AlgSLHDSA128f:
		return slhdsa.SHA2_128f, nil
	case AlgSLHDSA192s:
		return slhdsa.SHA2_192s, nil
	case AlgSLHDSA192f:
		return slhdsa.SHA2_192f, nil
	case AlgSLHDSA256s:
		return slhdsa.SHA2_256s, nil
	case AlgSLHDSA256f:
		return slhdsa.SHA2_256f, nil
	}
	return 0, fmt.Errorf("not an SLH-DSA algorithm: %s", a)
}

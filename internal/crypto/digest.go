// Package crypto provides the cryptographic building blocks of the OCSP
// toolkit: the digest registry used for certificate identifiers, the
// signature algorithm registry, and software and PKCS#11 signer backends.
package crypto

import (
	"crypto"
	"crypto/sha1" //nolint:gosec // SHA-1 is the RFC 6960 legacy default for CertID hashing
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DefaultDigest is the digest used for CertID construction when the caller
// does not specify one. SHA-1 remains the interoperable default expected by
// deployed responders; callers wanting a stronger digest pass it per call.
const DefaultDigest = crypto.SHA1

// digestInfo describes one supported digest algorithm.
type digestInfo struct {
	oid  asn1.ObjectIdentifier
	size int
	name string
}

// digests is the process-wide table of supported digest algorithms.
// Initialized once, never mutated.
var digests = map[crypto.Hash]digestInfo{
	crypto.SHA1:     {oid: asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, size: 20, name: "sha1"},
	crypto.SHA256:   {oid: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, size: 32, name: "sha256"},
	crypto.SHA384:   {oid: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, size: 48, name: "sha384"},
	crypto.SHA512:   {oid: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, size: 64, name: "sha512"},
	crypto.SHA3_256: {oid: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 8}, size: 32, name: "sha3-256"},
	crypto.SHA3_384: {oid: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 9}, size: 48, name: "sha3-384"},
	crypto.SHA3_512: {oid: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 10}, size: 64, name: "sha3-512"},
}

// DigestSupported reports whether h is a registered digest algorithm.
func DigestSupported(h crypto.Hash) bool {
	_, ok := digests[h]
	return ok
}

// DigestOID returns the DER object identifier for a digest algorithm.
func DigestOID(h crypto.Hash) (asn1.ObjectIdentifier, error) {
	info, ok := digests[h]
	if !ok {
		return nil, fmt.Errorf("no object identifier registered for digest %v", h)
	}
	return info.oid, nil
}

// DigestByOID returns the digest algorithm registered under the given
// object identifier, or 0 if none is.
func DigestByOID(oid asn1.ObjectIdentifier) crypto.Hash {
	for h, info := range digests {
		if info.oid.Equal(oid) {
			return h
		}
	}
	return 0
}

// DigestSize returns the output length in bytes of a digest algorithm.
func DigestSize(h crypto.Hash) (int, error) {
	info, ok := digests[h]
	if !ok {
		return 0, fmt.Errorf("unsupported digest %v", h)
	}
	return info.size, nil
}

// DigestName returns the lowercase name of a digest algorithm, or a
// numeric placeholder for digests outside the registry.
func DigestName(h crypto.Hash) string {
	if info, ok := digests[h]; ok {
		return info.name
	}
	return fmt.Sprintf("hash(%d)", h)
}

// ParseDigest maps a digest name (as used in CLI flags and config files)
// to its crypto.Hash. Accepts "sha1", "sha256", "sha384", "sha512",
// "sha3-256", "sha3-384", "sha3-512"; dashes after "sha" are optional.
func ParseDigest(name string) (crypto.Hash, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.Replace(normalized, "sha-", "sha", 1)
	for h, info := range digests {
		if info.name == normalized {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown digest %q (supported: %s)", name, strings.Join(SupportedDigestNames(), ", "))
}

// SupportedDigestNames returns the names of all registered digests, sorted.
func SupportedDigestNames() []string {
	names := make([]string, 0, len(digests))
	for _, info := range digests {
		names = append(names, info.name)
	}
	sort.Strings(names)
	return names
}

// NewDigest returns a fresh hash.Hash for the given algorithm.
func NewDigest(h crypto.Hash) (hash.Hash, error) {
	switch h {
	case crypto.SHA1:
		return sha1.New(), nil //nolint:gosec
	case crypto.SHA256:
		return sha256.New(), nil
	case crypto.SHA384:
		return sha512.New384(), nil
	case crypto.SHA512:
		return sha512.New(), nil
	case crypto.SHA3_256:
		return sha3.New256(), nil
	case crypto.SHA3_384:
		return sha3.New384(), nil
	case crypto.SHA3_512:
		return sha3.New512(), nil
	default:
		return nil, fmt.Errorf("unsupported digest %v", h)
	}
}

// ComputeDigest hashes data with the given algorithm.
func ComputeDigest(h crypto.Hash, data []byte) ([]byte, error) {
	hasher, err := NewDigest(h)
	if err != nil {
		return nil, err
	}
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("digest computation failed: %w", err)
	}
	return hasher.Sum(nil), nil
}

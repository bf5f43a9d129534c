package ocsp

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"

	pkicrypto "github.com/remiblancher/ocspkit/internal/crypto"
)

// CertID identifies a certificate for which status is requested.
// CertID ::= SEQUENCE {
//
//	hashAlgorithm       AlgorithmIdentifier,
//	issuerNameHash      OCTET STRING,
//	issuerKeyHash       OCTET STRING,
//	serialNumber        CertificateSerialNumber }
type CertID struct {
	HashAlgorithm  pkix.AlgorithmIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

// NewCertID creates a CertID for subject, a certificate issued by issuer.
//
// The name hash covers the DER-encoded issuer name as carried in subject,
// and the key hash covers the value octets of the subjectPublicKey BIT
// STRING in issuer, excluding tag, length and the unused-bits octet.
//
// Subject may be nil. In that case the name hash is computed over issuer's
// own subject name, the serial number is left unset, and the resulting
// CertID is usable only as a lookup key: marshaling it into a request
// requires a serial number.
//
// A zero hash selects the interoperable default digest.
func NewCertID(hash crypto.Hash, subject, issuer *x509.Certificate) (*CertID, error) {
	if issuer == nil {
		return nil, NewOCSPError("cert-id", fmt.Errorf("issuer certificate is required"))
	}

	var name []byte
	var serial *big.Int
	if subject != nil {
		name = subject.RawIssuer
		serial = subject.SerialNumber
	} else {
		name = issuer.RawSubject
	}

	keyBits, err := publicKeyBits(issuer)
	if err != nil {
		return nil, NewOCSPError("cert-id", err)
	}

	id, err := NewCertIDRaw(hash, name, keyBits, serial)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// NewCertIDRaw creates a CertID from pre-extracted issuer material: the
// DER-encoded issuer name and the content octets of the issuer's
// subjectPublicKey BIT STRING. Serial may be nil for lookup-only IDs.
func NewCertIDRaw(hash crypto.Hash, issuerName, issuerKey []byte, serial *big.Int) (*CertID, error) {
	if hash == 0 {
		hash = pkicrypto.DefaultDigest
	}
	if !pkicrypto.DigestSupported(hash) {
		return nil, NewOCSPError("cert-id", fmt.Errorf("%w: %s", ErrUnsupportedDigest, pkicrypto.DigestName(hash)))
	}
	if len(issuerName) == 0 {
		return nil, NewOCSPError("cert-id", fmt.Errorf("%w: empty issuer name", ErrNameEncoding))
	}

	hashOID, err := pkicrypto.DigestOID(hash)
	if err != nil {
		return nil, NewOCSPError("cert-id", fmt.Errorf("%w: %v", ErrUnsupportedDigest, err))
	}

	nameHash, err := pkicrypto.ComputeDigest(hash, issuerName)
	if err != nil {
		return nil, NewOCSPError("cert-id", fmt.Errorf("%w: %v", ErrDigest, err))
	}
	keyHash, err := pkicrypto.ComputeDigest(hash, issuerKey)
	if err != nil {
		return nil, NewOCSPError("cert-id", fmt.Errorf("%w: %v", ErrDigest, err))
	}

	return &CertID{
		HashAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  hashOID,
			Parameters: asn1.NullRawValue,
		},
		IssuerNameHash: nameHash,
		IssuerKeyHash:  keyHash,
		SerialNumber:   serial,
	}, nil
}

// NewCertIDFromSerial creates a CertID for a serial number from the given
// issuer. The name hash covers issuer's own subject name.
func NewCertIDFromSerial(hash crypto.Hash, issuer *x509.Certificate, serial *big.Int) (*CertID, error) {
	if issuer == nil {
		return nil, NewOCSPError("cert-id", fmt.Errorf("issuer certificate is required"))
	}
	keyBits, err := publicKeyBits(issuer)
	if err != nil {
		return nil, NewOCSPError("cert-id", err)
	}
	return NewCertIDRaw(hash, issuer.RawSubject, keyBits, serial)
}

// Equal reports whether two CertIDs identify the same certificate: same
// hash algorithm, same issuer hashes and same serial number. Algorithm
// parameters are ignored, so IDs built with and without the explicit NULL
// compare equal.
func (id *CertID) Equal(other *CertID) bool {
	if id == nil || other == nil {
		return id == other
	}
	if !id.HashAlgorithm.Algorithm.Equal(other.HashAlgorithm.Algorithm) {
		return false
	}
	if !bytes.Equal(id.IssuerNameHash, other.IssuerNameHash) ||
		!bytes.Equal(id.IssuerKeyHash, other.IssuerKeyHash) {
		return false
	}
	if id.SerialNumber == nil || other.SerialNumber == nil {
		return id.SerialNumber == nil && other.SerialNumber == nil
	}
	return id.SerialNumber.Cmp(other.SerialNumber) == 0
}

// MatchesCertID checks if the CertID matches a certificate with the given
// serial number from the given issuer.
func (id *CertID) MatchesCertID(issuer *x509.Certificate, serial *big.Int) bool {
	if !id.MatchesIssuer(issuer) {
		return false
	}
	return id.SerialNumber != nil && serial != nil && id.SerialNumber.Cmp(serial) == 0
}

// MatchesIssuer checks if the CertID's issuer hashes match the given
// issuer, recomputed under the CertID's own hash algorithm.
func (id *CertID) MatchesIssuer(issuer *x509.Certificate) bool {
	hash := pkicrypto.DigestByOID(id.HashAlgorithm.Algorithm)
	if hash == 0 || issuer == nil {
		return false
	}
	expected, err := NewCertIDFromSerial(hash, issuer, nil)
	if err != nil {
		return false
	}
	return bytes.Equal(id.IssuerNameHash, expected.IssuerNameHash) &&
		bytes.Equal(id.IssuerKeyHash, expected.IssuerKeyHash)
}

// publicKeyBits returns the content octets of the subjectPublicKey BIT
// STRING from the certificate's SubjectPublicKeyInfo.
//
// SubjectPublicKeyInfo ::= SEQUENCE {
//
//	algorithm            AlgorithmIdentifier,
//	subjectPublicKey     BIT STRING }
func publicKeyBits(cert *x509.Certificate) ([]byte, error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return nil, fmt.Errorf("%w: invalid SubjectPublicKeyInfo: %v", ErrMalformedEncoding, err)
	}
	return spki.PublicKey.Bytes, nil
}

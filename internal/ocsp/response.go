package ocsp

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"
)

// ResponseStatus is the OCSPResponseStatus enumeration (RFC 6960
// section 4.2.1). Value 4 is unassigned.
type ResponseStatus int

const (
	StatusSuccessful       ResponseStatus = iota // 0
	StatusMalformedRequest                       // 1
	StatusInternalError                          // 2
	StatusTryLater                               // 3
	_                                            // 4 unassigned
	StatusSigRequired                            // 5
	StatusUnauthorized                           // 6
)

var responseStatusNames = map[ResponseStatus]string{
	StatusSuccessful:       "successful",
	StatusMalformedRequest: "malformedRequest",
	StatusInternalError:    "internalError",
	StatusTryLater:         "tryLater",
	StatusSigRequired:      "sigRequired",
	StatusUnauthorized:     "unauthorized",
}

// Valid reports whether the value is a status RFC 6960 assigns.
func (s ResponseStatus) Valid() bool {
	_, ok := responseStatusNames[s]
	return ok
}

// String returns the RFC 6960 status keyword.
func (s ResponseStatus) String() string {
	if name, ok := responseStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// CertStatus is the decoded certStatus CHOICE of a single response.
type CertStatus int

const (
	CertStatusGood    CertStatus = iota // tag [0]
	CertStatusRevoked                   // tag [1]
	CertStatusUnknown                   // tag [2]
)

var certStatusNames = map[CertStatus]string{
	CertStatusGood:    "good",
	CertStatusRevoked: "revoked",
	CertStatusUnknown: "unknown",
}

// String returns the lower-case status keyword.
func (s CertStatus) String() string {
	if name, ok := certStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// RevocationReason is a CRLReason code (RFC 5280 section 5.3.1).
// Value 7 is unassigned.
type RevocationReason int

const (
	ReasonUnspecified RevocationReason = iota
	ReasonKeyCompromise
	ReasonCACompromise
	ReasonAffiliationChanged
	ReasonSuperseded
	ReasonCessationOfOperation
	ReasonCertificateHold
	_ // 7 unassigned
	ReasonRemoveFromCRL
	ReasonPrivilegeWithdrawn
	ReasonAACompromise
)

var revocationReasonNames = map[RevocationReason]string{
	ReasonUnspecified:          "unspecified",
	ReasonKeyCompromise:        "keyCompromise",
	ReasonCACompromise:         "caCompromise",
	ReasonAffiliationChanged:   "affiliationChanged",
	ReasonSuperseded:           "superseded",
	ReasonCessationOfOperation: "cessationOfOperation",
	ReasonCertificateHold:      "certificateHold",
	ReasonRemoveFromCRL:        "removeFromCRL",
	ReasonPrivilegeWithdrawn:   "privilegeWithdrawn",
	ReasonAACompromise:         "aaCompromise",
}

// String returns the RFC 5280 reason keyword.
func (r RevocationReason) String() string {
	if name, ok := revocationReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// responseEnvelope is the outer response (RFC 6960 section 4.2.1):
//
//	OCSPResponse ::= SEQUENCE {
//	    responseStatus    OCSPResponseStatus,
//	    responseBytes     [0] EXPLICIT ResponseBytes OPTIONAL }
type responseEnvelope struct {
	Status        asn1.Enumerated
	ResponseBytes responseBytes `asn1:"optional,explicit,tag:0"`
}

// responseBytes wraps the DER of the actual response:
//
//	ResponseBytes ::= SEQUENCE {
//	    responseType    OBJECT IDENTIFIER,
//	    response        OCTET STRING }
type responseBytes struct {
	ResponseType asn1.ObjectIdentifier
	Response     []byte
}

// BasicOCSPResponse is the id-pkix-ocsp-basic response type every
// conforming responder must support:
//
//	BasicOCSPResponse ::= SEQUENCE {
//	    tbsResponseData      ResponseData,
//	    signatureAlgorithm   AlgorithmIdentifier,
//	    signature            BIT STRING,
//	    certs                [0] EXPLICIT SEQUENCE OF Certificate OPTIONAL }
type BasicOCSPResponse struct {
	TBSResponseData    ResponseData
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
	Certs              []asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// ResponseData is the portion covered by the signature:
//
//	ResponseData ::= SEQUENCE {
//	    version              [0] EXPLICIT Version DEFAULT v1,
//	    responderID          ResponderID,
//	    producedAt           GeneralizedTime,
//	    responses            SEQUENCE OF SingleResponse,
//	    responseExtensions   [1] EXPLICIT Extensions OPTIONAL }
type ResponseData struct {
	Version            int              `asn1:"optional,explicit,tag:0,default:0"`
	ResponderID        asn1.RawValue    // CHOICE: byName [1] or byKey [2]
	ProducedAt         time.Time        `asn1:"generalized"`
	Responses          []SingleResponse
	ResponseExtensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

// SingleResponse carries the status of one certificate:
//
//	SingleResponse ::= SEQUENCE {
//	    certID             CertID,
//	    certStatus         CertStatus,
//	    thisUpdate         GeneralizedTime,
//	    nextUpdate         [0] EXPLICIT GeneralizedTime OPTIONAL,
//	    singleExtensions   [1] EXPLICIT Extensions OPTIONAL }
type SingleResponse struct {
	CertID           CertID
	CertStatus       asn1.RawValue
	ThisUpdate       time.Time        `asn1:"generalized"`
	NextUpdate       time.Time        `asn1:"optional,explicit,tag:0,generalized"`
	SingleExtensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

// RevokedInfo is the content of a revoked [1] certStatus:
//
//	RevokedInfo ::= SEQUENCE {
//	    revocationTime     GeneralizedTime,
//	    revocationReason   [0] EXPLICIT CRLReason OPTIONAL }
type RevokedInfo struct {
	RevocationTime   time.Time       `asn1:"generalized"`
	RevocationReason asn1.Enumerated `asn1:"optional,explicit,tag:0"`
}

// Status decodes the certStatus CHOICE of a single response. For revoked
// certificates the returned RevokedInfo carries the revocation time and
// reason; it is nil otherwise.
func (sr *SingleResponse) Status() (CertStatus, *RevokedInfo, error) {
	raw := sr.CertStatus
	if raw.Class != asn1.ClassContextSpecific {
		return 0, nil, fmt.Errorf("%w: certStatus class %d", ErrMalformedEncoding, raw.Class)
	}

	// good [0] and unknown [2] are IMPLICIT NULL, so their content must
	// be empty. revoked [1] is IMPLICIT RevokedInfo.
	switch raw.Tag {
	case 0, 2:
		if len(raw.Bytes) != 0 {
			return 0, nil, fmt.Errorf("%w: %s status with content", ErrMalformedEncoding, CertStatus(raw.Tag))
		}
		return CertStatus(raw.Tag), nil, nil

	case 1:
		var info RevokedInfo
		rest, err := asn1.UnmarshalWithParams(raw.FullBytes, &info, "tag:1")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: invalid RevokedInfo: %v", ErrMalformedEncoding, err)
		}
		if len(rest) > 0 {
			return 0, nil, fmt.Errorf("%w: trailing data after RevokedInfo", ErrMalformedEncoding)
		}
		return CertStatusRevoked, &info, nil

	default:
		return 0, nil, fmt.Errorf("%w: certStatus tag %d", ErrMalformedEncoding, raw.Tag)
	}
}

// Certificates parses the certificates embedded in the response, usually
// the responder certificate chain. Entries that fail to parse are skipped.
func (b *BasicOCSPResponse) Certificates() []*x509.Certificate {
	var certs []*x509.Certificate
	for _, raw := range b.Certs {
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			continue
		}
		certs = append(certs, cert)
	}
	return certs
}

// ResponderKeyHash returns the key hash when the responder identifies
// itself byKey, or nil when it identifies byName.
func (rd *ResponseData) ResponderKeyHash() []byte {
	if rd.ResponderID.Class != asn1.ClassContextSpecific || rd.ResponderID.Tag != 2 {
		return nil
	}
	var hash []byte
	if _, err := asn1.Unmarshal(rd.ResponderID.Bytes, &hash); err != nil {
		return nil
	}
	return hash
}

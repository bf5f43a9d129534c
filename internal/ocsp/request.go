package ocsp

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxRequestBytes caps the size of an OCSP request read from HTTP.
// Real requests are a few hundred bytes; anything larger is abuse.
const maxRequestBytes = 10 * 1024

// OCSPRequest is the outer request envelope (RFC 6960 section 4.1.1):
//
//	OCSPRequest ::= SEQUENCE {
//	    tbsRequest              TBSRequest,
//	    optionalSignature   [0] EXPLICIT Signature OPTIONAL }
type OCSPRequest struct {
	TBSRequest        TBSRequest
	OptionalSignature Signature `asn1:"optional,explicit,tag:0"`
}

// TBSRequest is the to-be-signed part of an OCSP request:
//
//	TBSRequest ::= SEQUENCE {
//	    version             [0] EXPLICIT Version DEFAULT v1,
//	    requestorName       [1] EXPLICIT GeneralName OPTIONAL,
//	    requestList             SEQUENCE OF Request,
//	    requestExtensions   [2] EXPLICIT Extensions OPTIONAL }
type TBSRequest struct {
	Version           int              `asn1:"optional,explicit,tag:0,default:0"`
	RequestorName     asn1.RawValue    `asn1:"optional,explicit,tag:1"`
	RequestList       []Request
	RequestExtensions []pkix.Extension `asn1:"optional,explicit,tag:2"`
}

// Request asks for the status of one certificate:
//
//	Request ::= SEQUENCE {
//	    reqCert                     CertID,
//	    singleRequestExtensions [0] EXPLICIT Extensions OPTIONAL }
type Request struct {
	ReqCert                 CertID
	SingleRequestExtensions []pkix.Extension `asn1:"optional,explicit,tag:0"`
}

// Signature is the optional signature over a request:
//
//	Signature ::= SEQUENCE {
//	    signatureAlgorithm      AlgorithmIdentifier,
//	    signature               BIT STRING,
//	    certs               [0] EXPLICIT SEQUENCE OF Certificate OPTIONAL }
type Signature struct {
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
	Certs              []asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// CreateRequest creates an OCSP request covering the given certificates,
// all issued by issuer. A zero hash selects the default digest.
func CreateRequest(issuer *x509.Certificate, certs []*x509.Certificate, hash crypto.Hash) (*OCSPRequest, error) {
	if len(certs) == 0 {
		return nil, NewOCSPError("create-request", fmt.Errorf("no certificates provided"))
	}

	requests := make([]Request, len(certs))
	for i, cert := range certs {
		certID, err := NewCertID(hash, cert, issuer)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", i, err)
		}
		requests[i] = Request{ReqCert: *certID}
	}

	return &OCSPRequest{
		TBSRequest: TBSRequest{
			Version:     0,
			RequestList: requests,
		},
	}, nil
}

// Marshal encodes the OCSP request to DER.
func (req *OCSPRequest) Marshal() ([]byte, error) {
	der, err := asn1.Marshal(*req)
	if err != nil {
		return nil, NewOCSPError("encode-request", err)
	}
	return der, nil
}

// ParseRequest parses a DER-encoded OCSP request. The input must contain
// exactly one request structure: trailing bytes are rejected.
func ParseRequest(data []byte) (*OCSPRequest, error) {
	if len(data) == 0 {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: empty input", ErrMalformedEncoding))
	}

	var req OCSPRequest
	rest, err := asn1.Unmarshal(data, &req)
	if err != nil {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: %v", ErrMalformedEncoding, err))
	}
	if len(rest) > 0 {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: %d bytes", ErrTrailingData, len(rest)))
	}

	if req.TBSRequest.Version != 0 {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: unsupported version %d", ErrMalformedEncoding, req.TBSRequest.Version))
	}
	if len(req.TBSRequest.RequestList) == 0 {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: empty request list", ErrMalformedEncoding))
	}

	return &req, nil
}

// ParseRequestFromHTTP parses an OCSP request from an HTTP request.
// Supports both GET (base64-encoded in the path, RFC 6960 appendix A.1)
// and POST (binary body).
func ParseRequestFromHTTP(r *http.Request) (*OCSPRequest, error) {
	switch r.Method {
	case http.MethodGet:
		return parseRequestFromGET(r)
	case http.MethodPost:
		return parseRequestFromPOST(r)
	default:
		return nil, NewOCSPError("parse-request", fmt.Errorf("unsupported HTTP method: %s", r.Method))
	}
}

// base64Variants are the encodings seen in GET request paths. Clients
// disagree on which one appendix A.1 means.
var base64Variants = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// parseRequestFromGET parses an OCSP request base64-encoded in the URL path.
func parseRequestFromGET(r *http.Request) (*OCSPRequest, error) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: empty request path", ErrMalformedEncoding))
	}
	if len(path) > maxRequestBytes {
		return nil, NewOCSPError("parse-request", fmt.Errorf("request exceeds %d bytes", maxRequestBytes))
	}

	decoded, err := url.PathUnescape(path)
	if err != nil {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: %v", ErrMalformedEncoding, err))
	}

	var data []byte
	for _, enc := range base64Variants {
		if data, err = enc.DecodeString(decoded); err == nil {
			break
		}
	}
	if err != nil {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: invalid base64: %v", ErrMalformedEncoding, err))
	}

	return ParseRequest(data)
}

// parseRequestFromPOST parses an OCSP request from a POST body.
func parseRequestFromPOST(r *http.Request) (*OCSPRequest, error) {
	// Some clients omit the media type entirely; reject only an
	// explicit non-application type.
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/") {
		return nil, NewOCSPError("parse-request", fmt.Errorf("invalid content type: %s", ct))
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		return nil, NewOCSPError("parse-request", fmt.Errorf("failed to read request body: %w", err))
	}
	if len(data) == 0 {
		return nil, NewOCSPError("parse-request", fmt.Errorf("%w: empty request body", ErrMalformedEncoding))
	}
	if len(data) > maxRequestBytes {
		return nil, NewOCSPError("parse-request", fmt.Errorf("request exceeds %d bytes", maxRequestBytes))
	}

	return ParseRequest(data)
}

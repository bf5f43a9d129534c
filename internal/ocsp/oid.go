// Package ocsp implements the Online Certificate Status Protocol per
// RFC 6960: certificate identifier construction, request and response
// encoding, a signing response builder, a responder backed by the CA
// certificate index, and a minimal HTTP client.
//
// Digest and signature algorithm identifiers come from the crypto
// package registry; only the OCSP arc itself is defined here.
package ocsp

import "encoding/asn1"

// The RFC 6960 arc and its children.
var (
	// id-pkix-ocsp ::= { id-ad-ocsp }, i.e. { iso(1)
	// identified-organization(3) dod(6) internet(1) security(5)
	// mechanisms(5) pkix(7) ad(48) 1 }
	OIDPKIXOcsp = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}

	OIDOcspBasic   = ocspArc(1) // id-pkix-ocsp-basic
	OIDOcspNoCheck = ocspArc(5) // id-pkix-ocsp-nocheck
)

// ocspArc derives a child identifier under id-pkix-ocsp.
func ocspArc(n int) asn1.ObjectIdentifier {
	return append(OIDPKIXOcsp[:len(OIDPKIXOcsp):len(OIDPKIXOcsp)], n)
}

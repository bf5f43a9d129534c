package dto

// OCSPQueryRequest asks for a certificate's status. The certificate
// is named either by hex serial or by the certificate itself.
type OCSPQueryRequest struct {
	Serial      string      `json:"serial,omitempty"`
	Certificate *BinaryData `json:"certificate,omitempty"`
}

// OCSPQueryResponse carries the signed DER response together with the
// decoded status, so JSON clients don't have to parse ASN.1 to read
// the verdict. Timestamps are RFC3339.
type OCSPQueryResponse struct {
	Response   BinaryData `json:"response"`
	Status     OCSPStatus `json:"status"`
	ProducedAt string     `json:"produced_at"`
	ThisUpdate string     `json:"this_update"`
	NextUpdate string     `json:"next_update,omitempty"`
}

// OCSPStatus is the decoded certificate status. The revocation
// fields are present only when Status is "revoked".
type OCSPStatus struct {
	Status           string `json:"status"`
	RevokedAt        string `json:"revoked_at,omitempty"`
	RevocationReason string `json:"revocation_reason,omitempty"`
}

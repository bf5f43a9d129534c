package ca

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// RevocationReason is an RFC 5280 CRLReason code. Value 7 is
// unassigned in the RFC, which is why it is missing here.
type RevocationReason int

const (
	ReasonUnspecified          RevocationReason = 0
	ReasonKeyCompromise        RevocationReason = 1
	ReasonCACompromise         RevocationReason = 2
	ReasonAffiliationChanged   RevocationReason = 3
	ReasonSuperseded           RevocationReason = 4
	ReasonCessationOfOperation RevocationReason = 5
	ReasonCertificateHold      RevocationReason = 6
	ReasonRemoveFromCRL        RevocationReason = 8
	ReasonPrivilegeWithdrawn   RevocationReason = 9
	ReasonAACompromise         RevocationReason = 10
)

// reasonNames holds the camel-case keywords the index file stores.
var reasonNames = map[RevocationReason]string{
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

// String returns the reason keyword as stored in index files.
func (r RevocationReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", r)
}

// reasonAliases maps every accepted spelling, lowercased, to its
// code. Both the index keywords and the friendlier hyphenated CLI
// forms are accepted.
var reasonAliases = map[string]RevocationReason{
	"":                     ReasonUnspecified,
	"unspecified":          ReasonUnspecified,
	"keycompromise":        ReasonKeyCompromise,
	"key-compromise":       ReasonKeyCompromise,
	"cacompromise":         ReasonCACompromise,
	"ca-compromise":        ReasonCACompromise,
	"affiliationchanged":   ReasonAffiliationChanged,
	"affiliation-changed":  ReasonAffiliationChanged,
	"superseded":           ReasonSuperseded,
	"cessationofoperation": ReasonCessationOfOperation,
	"cessation":            ReasonCessationOfOperation,
	"certificatehold":      ReasonCertificateHold,
	"hold":                 ReasonCertificateHold,
	"removefromcrl":        ReasonRemoveFromCRL,
	"remove-from-crl":      ReasonRemoveFromCRL,
	"privilegewithdrawn":   ReasonPrivilegeWithdrawn,
	"privilege-withdrawn":  ReasonPrivilegeWithdrawn,
	"aacompromise":         ReasonAACompromise,
	"aa-compromise":        ReasonAACompromise,
}

// ParseRevocationReason parses a reason keyword as found in index
// files or on the command line. Matching is case-insensitive.
func ParseRevocationReason(s string) (RevocationReason, error) {
	reason, ok := reasonAliases[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown revocation reason: %s", s)
	}
	return reason, nil
}

// RevokedCertificate is one revoked entry from the index.
type RevokedCertificate struct {
	Serial    []byte
	RevokedAt time.Time
	Reason    RevocationReason
	Subject   string
}

// MarkRevoked flips a certificate's index entry to revoked, recording
// the current time and, unless unspecified, the reason keyword after
// a comma in the revocation field.
func (s *FileStore) MarkRevoked(ctx context.Context, serial []byte, reason RevocationReason) error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return fmt.Errorf("failed to read index file: %w", err)
	}

	serialHex := hex.EncodeToString(serial)
	found := false

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) >= 4 && parts[3] == serialHex {
			parts[0] = StatusRevoked
			revocation := time.Now().UTC().Format(indexTimeLayout)
			if reason != ReasonUnspecified {
				revocation += "," + reason.String()
			}
			parts[2] = revocation
			line = strings.Join(parts, "\t")
			found = true
		}
		out = append(out, line)
	}

	if !found {
		return fmt.Errorf("certificate with serial %s not found", serialHex)
	}

	content := strings.Join(out, "\n") + "\n"
	if err := os.WriteFile(s.indexPath(), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// ListRevoked returns the revoked entries of the index.
func (s *FileStore) ListRevoked(ctx context.Context) ([]RevokedCertificate, error) {
	entries, err := s.ReadIndex(ctx)
	if err != nil {
		return nil, err
	}

	var revoked []RevokedCertificate
	for _, e := range entries {
		if e.Status != StatusRevoked {
			continue
		}
		reason, _ := ParseRevocationReason(e.RevocationReason)
		revoked = append(revoked, RevokedCertificate{
			Serial:    e.Serial,
			RevokedAt: e.Revocation,
			Reason:    reason,
			Subject:   e.Subject,
		})
	}
	return revoked, nil
}

// IsRevoked reports whether the certificate with the given serial is
// revoked. Unknown serials are an error, not "not revoked".
func (s *FileStore) IsRevoked(ctx context.Context, serial []byte) (bool, error) {
	entries, err := s.ReadIndex(ctx)
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		if bytes.Equal(e.Serial, serial) {
			return e.Status == StatusRevoked, nil
		}
	}
	return false, fmt.Errorf("certificate not found")
}

// Package ca provides access to the CA directory an OCSP responder
// answers from: the CA certificate, issued certificates, and the
// OpenSSL-style index recording each certificate's status.
package ca

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Certificate index statuses, the first field of an index line.
const (
	StatusValid   = "V"
	StatusRevoked = "R"
	StatusExpired = "E"
)

// Store provides access to a CA directory. Implementations must be safe
// for concurrent readers; a responder re-reads the index on every
// request so revocations take effect without a restart.
type Store interface {
	// Init creates the store directory structure.
	Init(ctx context.Context) error

	// Exists reports whether the store holds a CA certificate.
	Exists() bool

	// BasePath returns the base path of the store.
	BasePath() string

	// SaveCACert saves the CA certificate to the store.
	SaveCACert(ctx context.Context, cert *x509.Certificate) error

	// LoadCACert loads the CA certificate from the store.
	LoadCACert(ctx context.Context) (*x509.Certificate, error)

	// SaveCert saves an issued certificate and records it in the index.
	SaveCert(ctx context.Context, cert *x509.Certificate) error

	// LoadCert loads a certificate by serial number.
	LoadCert(ctx context.Context, serial []byte) (*x509.Certificate, error)

	// ReadIndex reads all entries from the certificate index.
	ReadIndex(ctx context.Context) ([]IndexEntry, error)

	// MarkRevoked marks a certificate as revoked in the index.
	MarkRevoked(ctx context.Context, serial []byte, reason RevocationReason) error
}

// FileStore keeps a CA directory on the filesystem:
//
//	{base}/
//	  ├── ca.crt           # CA certificate
//	  ├── certs/           # Issued certificates
//	  │   └── {serial}.crt
//	  ├── private/         # CA private key
//	  │   └── ca.key
//	  └── index.txt        # Certificate database (OpenSSL-like)
type FileStore struct {
	basePath string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a certificate store rooted at the given path.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

// Init creates the directory layout and an empty index.
func (s *FileStore) Init(ctx context.Context) error {
	for _, dir := range []string{
		s.basePath,
		filepath.Join(s.basePath, "certs"),
		filepath.Join(s.basePath, "private"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		if err := os.WriteFile(s.indexPath(), nil, 0644); err != nil {
			return fmt.Errorf("failed to create index file: %w", err)
		}
	}
	return nil
}

// Exists checks if the store is already initialized.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.CACertPath())
	return err == nil
}

// BasePath returns the base path of the store.
func (s *FileStore) BasePath() string {
	return s.basePath
}

// CACertPath returns the path to the CA certificate.
func (s *FileStore) CACertPath() string {
	return filepath.Join(s.basePath, "ca.crt")
}

// CAKeyPath returns the path to the CA private key.
func (s *FileStore) CAKeyPath() string {
	return filepath.Join(s.basePath, "private", "ca.key")
}

// CertPath returns the path for a certificate with the given serial.
func (s *FileStore) CertPath(serial []byte) string {
	return filepath.Join(s.basePath, "certs", hex.EncodeToString(serial)+".crt")
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.basePath, "index.txt")
}

// SaveCACert saves the CA certificate to the store.
func (s *FileStore) SaveCACert(ctx context.Context, cert *x509.Certificate) error {
	return writeCertPEM(s.CACertPath(), cert)
}

// LoadCACert loads the CA certificate from the store.
func (s *FileStore) LoadCACert(ctx context.Context) (*x509.Certificate, error) {
	return readCertPEM(s.CACertPath())
}

// SaveCert saves an issued certificate and appends it to the index.
func (s *FileStore) SaveCert(ctx context.Context, cert *x509.Certificate) error {
	if err := writeCertPEM(s.CertPath(cert.SerialNumber.Bytes()), cert); err != nil {
		return err
	}
	return s.appendIndex(cert)
}

// LoadCert loads a certificate by serial number.
func (s *FileStore) LoadCert(ctx context.Context, serial []byte) (*x509.Certificate, error) {
	return readCertPEM(s.CertPath(serial))
}

func writeCertPEM(path string, cert *x509.Certificate) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create certificate file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	return nil
}

func readCertPEM(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// appendIndex records a freshly issued certificate as valid. Line
// format: status\texpiry\trevocation\tserial\tfilename\tsubject. The
// revocation field stays empty until MarkRevoked fills it.
func (s *FileStore) appendIndex(cert *x509.Certificate) error {
	f, err := os.OpenFile(s.indexPath(), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("V\t%s\t\t%s\tunknown\t%s\n",
		cert.NotAfter.UTC().Format(indexTimeLayout),
		hex.EncodeToString(cert.SerialNumber.Bytes()),
		cert.Subject.String(),
	)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write index entry: %w", err)
	}
	return nil
}

// indexTimeLayout is the OpenSSL index timestamp form, UTC with a
// two-digit year.
const indexTimeLayout = "060102150405Z"

// IndexEntry is one parsed line of the certificate index.
type IndexEntry struct {
	Status           string
	Expiry           time.Time
	Revocation       time.Time
	RevocationReason string
	Serial           []byte
	Subject          string
}

// ReadIndex parses the whole index. Malformed lines are skipped, not
// fatal: one corrupt entry must not take the responder down.
func (s *FileStore) ReadIndex(ctx context.Context) ([]IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var entries []IndexEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		entry, err := decodeIndexLine(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeIndexLine(line string) (IndexEntry, error) {
	var entry IndexEntry

	parts := strings.Split(line, "\t")
	if len(parts) < 6 {
		return entry, fmt.Errorf("malformed index line")
	}

	entry.Status = parts[0]

	if parts[1] != "" {
		if t, err := time.Parse(indexTimeLayout, parts[1]); err == nil {
			entry.Expiry = t
		}
	}

	// The revocation field is "time" or "time,reason".
	if parts[2] != "" {
		stamp, reason, hasReason := strings.Cut(parts[2], ",")
		if hasReason {
			entry.RevocationReason = reason
		}
		if t, err := time.Parse(indexTimeLayout, stamp); err == nil {
			entry.Revocation = t
		}
	}

	serial, err := hex.DecodeString(parts[3])
	if err != nil {
		return entry, fmt.Errorf("invalid serial: %w", err)
	}
	entry.Serial = serial
	entry.Subject = parts[5]

	return entry, nil
}

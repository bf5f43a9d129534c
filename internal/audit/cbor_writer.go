package audit

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// maxCBOREventBytes caps the size of a single CBOR audit record. A log
// with a larger length prefix is corrupt.
const maxCBOREventBytes = 1 << 20

// CBORWriter writes audit events as length-prefixed CBOR records with
// the same hash chain as FileWriter. CBOR logs are smaller than JSONL
// and suit long-term archival; the chain hashes are computed over the
// canonical JSON form, so a converted log still verifies.
//
// Record layout: 4-byte big-endian length, then the canonically encoded
// event.
type CBORWriter struct {
	mu       sync.Mutex
	file     *os.File
	encMode  cbor.EncMode
	lastHash string
	path     string
}

var _ Writer = (*CBORWriter)(nil)

// NewCBORWriter creates a CBOR audit writer. If the file exists, the
// last record's hash is read for chain continuity.
func NewCBORWriter(path string) (*CBORWriter, error) {
	// Use canonical encoding for deterministic output
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	lastHash := GenesisHash
	if existingData, err := os.ReadFile(path); err == nil && len(existingData) > 0 {
		hash, err := readLastHashCBOR(existingData)
		if err != nil {
			return nil, fmt.Errorf("failed to read last hash from existing log: %w", err)
		}
		lastHash = hash
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &CBORWriter{
		file:     file,
		encMode:  em,
		lastHash: lastHash,
		path:     path,
	}, nil
}

// readLastHashCBOR walks the records of a CBOR log and returns the hash
// of the final event.
func readLastHashCBOR(data []byte) (string, error) {
	var lastRecord []byte
	for len(data) > 0 {
		record, rest, err := splitRecord(data)
		if err != nil {
			return "", err
		}
		lastRecord = record
		data = rest
	}

	if lastRecord == nil {
		return GenesisHash, nil
	}

	var event struct {
		Hash string `json:"hash"`
	}
	if err := cbor.Unmarshal(lastRecord, &event); err != nil {
		return "", fmt.Errorf("failed to parse last event: %w", err)
	}
	if event.Hash == "" {
		return "", fmt.Errorf("last event has no hash")
	}
	return event.Hash, nil
}

// splitRecord slices one length-prefixed record off the front of data.
func splitRecord(data []byte) (record, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated record length")
	}
	length := binary.BigEndian.Uint32(data[:4])
	if length > maxCBOREventBytes {
		return nil, nil, fmt.Errorf("record exceeds %d bytes", maxCBOREventBytes)
	}
	if uint32(len(data)-4) < length {
		return nil, nil, fmt.Errorf("truncated record: want %d bytes, have %d", length, len(data)-4)
	}
	return data[4 : 4+length], data[4+length:], nil
}

// Write logs an audit event with hash chaining.
func (w *CBORWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	event.HashPrev = w.lastHash

	// The hash covers the canonical JSON form, not the CBOR bytes
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	hash := calculateHash(canonical, w.lastHash)
	event.Hash = hash

	encoded, err := w.encMode.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	record := make([]byte, 4+len(encoded))
	binary.BigEndian.PutUint32(record[:4], uint32(len(encoded)))
	copy(record[4:], encoded)

	if _, err := w.file.Write(record); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	w.lastHash = hash
	return nil
}

// Close closes the audit log file.
func (w *CBORWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return err
		}
		return w.file.Close()
	}
	return nil
}

// LastHash returns the hash of the last written event.
func (w *CBORWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Path returns the file path of the audit log.
func (w *CBORWriter) Path() string {
	return w.path
}

// ReadCBORLog decodes all events from a CBOR audit log.
func ReadCBORLog(path string) ([]*Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	var events []*Event
	for len(data) > 0 {
		record, rest, err := splitRecord(data)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(events)+1, err)
		}

		var event Event
		if err := cbor.Unmarshal(record, &event); err != nil {
			return nil, fmt.Errorf("record %d: invalid CBOR: %w", len(events)+1, err)
		}
		events = append(events, &event)
		data = rest
	}

	return events, nil
}

// VerifyCBORChain verifies the hash chain integrity of a CBOR audit log.
// Returns the number of valid events and any error encountered.
func VerifyCBORChain(path string) (int, error) {
	events, err := ReadCBORLog(path)
	if err != nil {
		return 0, err
	}

	expectedPrevHash := GenesisHash
	for i, event := range events {
		if err := verifyEventChain(event, expectedPrevHash, i+1); err != nil {
			return i, err
		}
		expectedPrevHash = event.Hash
	}

	return len(events), nil
}

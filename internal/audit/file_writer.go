package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	// GenesisHash anchors the chain before the first event.
	GenesisHash = "sha256:genesis"

	// HashPrefix names the digest in stored hash values.
	HashPrefix = "sha256:"
)

// FileWriter appends events to a JSONL file. Each line carries the
// hash of its predecessor, so truncation or edits anywhere but the
// tail are detectable with VerifyChain.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	lastHash string
	path     string
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens path for appending, creating it if needed. An
// existing log keeps its chain: the new writer continues from the
// hash of its last line.
func NewFileWriter(path string) (*FileWriter, error) {
	head, err := chainHead(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &FileWriter{file: file, lastHash: head, path: path}, nil
}

// chainHead returns the hash of the last event in an existing log, or
// the genesis hash for a missing or empty file.
func chainHead(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenesisHash, nil
		}
		return "", fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read audit log: %w", err)
	}
	if last == "" {
		return GenesisHash, nil
	}

	var tail struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal([]byte(last), &tail); err != nil {
		return "", fmt.Errorf("failed to parse last event: %w", err)
	}
	if tail.Hash == "" {
		return "", fmt.Errorf("last event has no hash")
	}
	return tail.Hash, nil
}

// Write chains and appends one event. The file is synced before
// returning: an unsynced audit record is no record.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	event.HashPrev = w.lastHash
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	event.Hash = calculateHash(canonical, w.lastHash)

	line, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	w.lastHash = event.Hash
	return nil
}

// Close syncs and closes the log file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

// LastHash returns the chain head.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Path returns the log file path.
func (w *FileWriter) Path() string {
	return w.path
}

// calculateHash computes SHA256(data || prevHash) in stored form.
func calculateHash(data []byte, prevHash string) string {
	h := sha256.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte(prevHash))
	return HashPrefix + hex.EncodeToString(h.Sum(nil))
}

// VerifyChain walks a JSONL audit log and checks every link. It
// returns the number of events verified before the first defect, so a
// tampered line reports how much of the log is still trustworthy.
func VerifyChain(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	verified := 0
	prev := GenesisHash

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return verified, fmt.Errorf("event %d: invalid JSON: %w", verified+1, err)
		}
		if err := verifyEventChain(&event, prev, verified+1); err != nil {
			return verified, err
		}

		prev = event.Hash
		verified++
	}
	if err := scanner.Err(); err != nil {
		return verified, fmt.Errorf("scan error: %w", err)
	}

	return verified, nil
}

// verifyEventChain checks one event's link and recomputes its hash.
func verifyEventChain(event *Event, expectedPrev string, pos int) error {
	if event.HashPrev != expectedPrev {
		return fmt.Errorf("event %d: hash chain broken: expected prev=%s, got prev=%s",
			pos, expectedPrev, event.HashPrev)
	}

	canonical, err := event.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("event %d: failed to serialize: %w", pos, err)
	}
	if want := calculateHash(canonical, event.HashPrev); event.Hash != want {
		return fmt.Errorf("event %d: hash mismatch: expected=%s, got=%s", pos, want, event.Hash)
	}
	return nil
}

package audit

import "errors"

// Writer persists audit events. A failed write must surface as an
// error: the operation being audited is expected to fail with it.
// Implementations link events with the hash chain (HashPrev, Hash),
// sync to stable storage before returning, and never record key
// material or passphrases.
type Writer interface {
	// Write validates, chains and persists one event.
	Write(event *Event) error

	// Close flushes pending writes and releases the log.
	Close() error

	// LastHash returns the hash of the most recent event, or the
	// genesis hash when the log is empty.
	LastHash() string
}

var (
	_ Writer = NopWriter{}
	_ Writer = (*MultiWriter)(nil)
)

// NopWriter discards all events. It backs the global logger while
// auditing is disabled, so Log stays callable unconditionally.
type NopWriter struct{}

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }
func (NopWriter) LastHash() string   { return GenesisHash }

// MultiWriter fans events out to several logs, e.g. a JSONL file for
// operators next to a CBOR file for archival. The first failing
// writer aborts the write.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a writer that writes to all given writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(event *Event) error {
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every underlying writer, joining their errors so one
// failed log does not leak the others' descriptors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// LastHash reports the first writer's chain head; the writers advance
// in lockstep since every Write goes to all of them.
func (m *MultiWriter) LastHash() string {
	if len(m.writers) == 0 {
		return GenesisHash
	}
	return m.writers[0].LastHash()
}

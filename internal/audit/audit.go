package audit

import (
	"fmt"
	"strings"
	"sync"
)

// The process-wide logger. Commands install a writer once at startup,
// everything below logs through Log/MustLog, and main closes the
// writer on the way out.
var (
	globalMu     sync.RWMutex
	globalWriter Writer = NopWriter{}
	enabled      bool
)

// Init installs w as the global audit writer. A nil writer disables
// auditing; Log keeps working and discards events.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if w == nil {
		globalWriter, enabled = NopWriter{}, false
		return nil
	}
	globalWriter, enabled = w, true
	return nil
}

// InitFile opens an audit log at path and installs it globally. A
// ".cbor" suffix selects the binary container; any other path gets
// JSON lines. The empty path disables auditing.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}
	var (
		w   Writer
		err error
	)
	if strings.HasSuffix(path, ".cbor") {
		w, err = NewCBORWriter(path)
	} else {
		w, err = NewFileWriter(path)
	}
	if err != nil {
		return err
	}
	return Init(w)
}

// Close flushes and closes the installed writer and disables auditing.
// Safe to call repeatedly.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	err := globalWriter.Close()
	globalWriter, enabled = NopWriter{}, false
	return err
}

// Enabled reports whether a real writer is installed.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes one event through the installed writer. While auditing is
// enabled, a non-nil error means the event is not on disk; callers on
// security-relevant paths should fail their operation with it.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()
	return w.Write(event)
}

// MustLog is Log with the error wrapped for returning straight to the
// caller:
//
//	if err := audit.MustLog(ev); err != nil {
//	    return nil, err
//	}
func MustLog(event *Event) error {
	if err := Log(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

func resultOf(success bool) Result {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// LogCALoaded records that a CA directory was opened, or that opening
// it failed.
func LogCALoaded(caPath, subject string, success bool) error {
	return MustLog(NewEvent(EventCALoaded, resultOf(success)).
		WithObject(Object{Type: "ca", Path: caPath, Subject: subject}))
}

// LogKeyAccessed records an access to the responder signing key.
func LogKeyAccessed(keyPath string, success bool, reason string) error {
	return MustLog(NewEvent(EventKeyAccessed, resultOf(success)).
		WithObject(Object{Type: "key", Path: keyPath}).
		WithContext(Context{Reason: reason}))
}

// LogCertRevoked records a certificate revocation.
func LogCertRevoked(caPath, serial, subject, reason string, success bool) error {
	return MustLog(NewEvent(EventCertRevoked, resultOf(success)).
		WithObject(Object{Type: "certificate", Serial: serial, Subject: subject}).
		WithContext(Context{CA: caPath, Reason: reason}))
}

// LogOCSPRequest records the construction of an OCSP request.
func LogOCSPRequest(serial, path string, success bool) error {
	return MustLog(NewEvent(EventOCSPRequest, resultOf(success)).
		WithObject(Object{Type: "ocsp-request", Serial: serial, Path: path}))
}

// LogOCSPSign records the signing of an OCSP response.
func LogOCSPSign(caPath, serial, status, algorithm string, success bool) error {
	return MustLog(NewEvent(EventOCSPSign, resultOf(success)).
		WithObject(Object{Type: "ocsp-response", Serial: serial}).
		WithContext(Context{CA: caPath, Status: status, Algorithm: algorithm}))
}

// LogOCSPServe records a responder startup, successful or not.
func LogOCSPServe(caPath string, port int, success bool) error {
	return MustLog(NewEvent(EventOCSPServe, resultOf(success)).
		WithObject(Object{Type: "ocsp-responder", Path: caPath}).
		WithContext(Context{CA: caPath, Port: port}))
}

// LogOCSPStop records a responder shutdown.
func LogOCSPStop(caPath string) error {
	return MustLog(NewEvent(EventOCSPStop, ResultSuccess).
		WithObject(Object{Type: "ocsp-responder", Path: caPath}).
		WithContext(Context{CA: caPath}))
}

// LogOCSPInfo records the decode of a stored OCSP request or response.
func LogOCSPInfo(path, status string, success bool) error {
	return MustLog(NewEvent(EventOCSPInfo, resultOf(success)).
		WithObject(Object{Type: "ocsp-response", Path: path}).
		WithContext(Context{Status: status}))
}

// LogOCSPQuery records a client-side query against a responder.
func LogOCSPQuery(url, serial, status string, success bool) error {
	return MustLog(NewEvent(EventOCSPQuery, resultOf(success)).
		WithObject(Object{Type: "ocsp-request", Serial: serial}).
		WithContext(Context{URL: url, Status: status}))
}

// LogAuthFailed records a failed authentication, typically a wrong key
// passphrase or HSM PIN.
func LogAuthFailed(caPath, reason string) error {
	return MustLog(NewEvent(EventAuthFailed, ResultFailure).
		WithObject(Object{Type: "ca", Path: caPath}).
		WithContext(Context{CA: caPath, Reason: reason}))
}

// Package audit records who did what to which certificate, separately
// from technical logs. Records are hash-chained for tamper evidence
// and meant to feed compliance reviews and SIEM pipelines. Two rules
// hold everywhere: a failed audit write fails the audited operation,
// and secrets never reach the log.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventCALoaded    EventType = "CA_LOADED"
	EventKeyAccessed EventType = "KEY_ACCESSED"
	EventCertRevoked EventType = "CERT_REVOKED"
	EventAuthFailed  EventType = "AUTH_FAILED"

	EventOCSPSign    EventType = "OCSP_SIGN"
	EventOCSPServe   EventType = "OCSP_SERVE"
	EventOCSPStop    EventType = "OCSP_STOP"
	EventOCSPRequest EventType = "OCSP_REQUEST"
	EventOCSPQuery   EventType = "OCSP_QUERY"
	EventOCSPInfo    EventType = "OCSP_INFO"
)

// Result is the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor identifies who performed the action: a user, the system, or a
// service such as the responder.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
}

// Object identifies what was acted upon.
type Object struct {
	Type    string `json:"type"`
	Serial  string `json:"serial,omitempty"`
	Subject string `json:"subject,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Context carries operation details that don't identify the object:
// the CA involved, algorithms, revocation reasons, and the transport
// particulars of OCSP exchanges.
type Context struct {
	CA        string `json:"ca,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Serial    string `json:"serial,omitempty"`
	Status    string `json:"status,omitempty"`
	Port      int    `json:"port,omitempty"`
	Method    string `json:"method,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Event is one audit log entry. Timestamps are RFC3339 UTC. HashPrev
// and Hash link the entry into the chain; both use SHA-256.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"`
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash"`
}

// NewEvent builds an event stamped with the current time and the
// local user as actor.
func NewEvent(eventType EventType, result Result) *Event {
	return &Event{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     localActor(),
		Result:    result,
	}
}

// localActor describes the invoking OS user.
func localActor() Actor {
	host, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME") // Windows
	}
	if user == "" {
		user = "unknown"
	}
	return Actor{Type: "user", ID: user, Host: host}
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks the fields every entry must carry.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return fmt.Errorf("event_type is required")
	case e.Timestamp == "":
		return fmt.Errorf("timestamp is required")
	case e.Actor.Type == "" || e.Actor.ID == "":
		return fmt.Errorf("actor type and id are required")
	case e.Result == "":
		return fmt.Errorf("result is required")
	}
	return nil
}

// CanonicalJSON serializes the event for hashing, without the Hash
// field itself. The canonical form is independent of the container a
// writer stores events in, so a chain survives conversion between the
// JSONL and CBOR log formats.
func (e *Event) CanonicalJSON() ([]byte, error) {
	canonical := struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	}
	return json.Marshal(canonical)
}

// JSON returns the full event, hash fields included.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

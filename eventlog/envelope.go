package eventlog

import (
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var ErrEmptyEventType = errors.New("empty event type supplied")
var ErrEmptyStreamID = errors.New("empty stream id supplied")
var ErrEmptyAuditor = errors.New("empty auditor supplied")
var ErrInvalidPayloadJSON = errors.New("payload json is not valid")

// Envelopes is an alias type for a slice of Envelope.
type Envelopes = []Envelope

// DeletedState marks the redaction status of an event.
// The zero value means the event has not been redacted.
type DeletedState string

const (
	NotDeleted DeletedState = ""
	Deleted    DeletedState = "deleted"
	Destroyed  DeletedState = "destroyed"
)

// Meta carries the audit trail of an event.
type Meta struct {
	// Auditor is the identity responsible for the event. If this is an
	// impersonated event the impersonated identity goes here and the acting
	// administrator goes into Impersonator.
	Auditor string `json:"auditor"`

	// Impersonator tracks an administrator creating the event on behalf of
	// another identity. Empty when the auditor acted directly.
	Impersonator string `json:"impersonator,omitempty"`

	// Created is the UNIX timestamp (seconds) of when the event was created.
	// It defines the sort order of the event stream. Defaults to the time of
	// construction when not supplied.
	Created int64 `json:"created"`

	// Deleted marks redaction performed on this event.
	Deleted DeletedState `json:"deleted,omitempty"`
}

// Envelope is the persisted form of a single event. It is immutable once
// built; the only sanctioned rewrite is the redaction path on Store.Mutate.
//
// While its fields are exported for storage engines, it should only be
// constructed with BuildEnvelope or rebuilt from stored attributes.
type Envelope struct {
	// ID uniquely identifies the envelope, used to address redactions.
	ID string

	// Type is the event type identifier, past tense pascal case, e.g. "FooCreated".
	// It selects the reducer, projector and sagas for the event.
	Type string

	// Stream identifies the owning aggregate instance.
	Stream string

	// Data is the JSON payload, shape defined per event type.
	Data []byte

	// Meta is the audit trail.
	Meta Meta
}

// BuildEnvelope is the factory method for Envelope.
//
// It validates the payload JSON, assigns a fresh ID and defaults Meta.Created
// to the current time when the caller left it zero.
func BuildEnvelope(eventType string, streamID string, dataJSON []byte, meta Meta) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, ErrEmptyEventType
	}

	if streamID == "" {
		return Envelope{}, ErrEmptyStreamID
	}

	if meta.Auditor == "" {
		return Envelope{}, ErrEmptyAuditor
	}

	if len(dataJSON) == 0 {
		dataJSON = []byte("{}")
	}

	if !jsoniter.Valid(dataJSON) {
		return Envelope{}, ErrInvalidPayloadJSON
	}

	if meta.Created == 0 {
		meta.Created = time.Now().Unix()
	}

	return Envelope{
		ID:     uuid.New().String(),
		Type:   eventType,
		Stream: streamID,
		Data:   dataJSON,
		Meta:   meta,
	}, nil
}

// UnmarshalData decodes the payload into the supplied target.
func (e Envelope) UnmarshalData(target any) error {
	return jsoniter.ConfigFastest.Unmarshal(e.Data, target)
}

// envelopeJSON is the wire shape of an envelope; Data is embedded as raw JSON
// rather than a quoted string.
type envelopeJSON struct {
	ID     string              `json:"id"`
	Type   string              `json:"type"`
	Stream string              `json:"stream"`
	Data   jsoniter.RawMessage `json:"data"`
	Meta   Meta                `json:"meta"`
}

// MarshalJSON renders the envelope for transport and logging.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(envelopeJSON{
		ID:     e.ID,
		Type:   e.Type,
		Stream: e.Stream,
		Data:   jsoniter.RawMessage(e.Data),
		Meta:   e.Meta,
	})
}

// UnmarshalJSON rebuilds an envelope from its transport form.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeJSON
	if err := jsoniter.ConfigFastest.Unmarshal(data, &wire); err != nil {
		return err
	}

	e.ID = wire.ID
	e.Type = wire.Type
	e.Stream = wire.Stream
	e.Data = []byte(wire.Data)
	e.Meta = wire.Meta

	return nil
}

// Redacted returns a copy of the envelope with its payload replaced and the
// deleted marker set. ID, Type, Stream and Meta.Created are preserved so the
// event keeps its position in the stream ordering.
func (e Envelope) Redacted(dataJSON []byte, state DeletedState) (Envelope, error) {
	if len(dataJSON) == 0 {
		dataJSON = []byte("{}")
	}

	if !jsoniter.Valid(dataJSON) {
		return Envelope{}, ErrInvalidPayloadJSON
	}

	redacted := e
	redacted.Data = dataJSON
	redacted.Meta.Deleted = state

	return redacted, nil
}

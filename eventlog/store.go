package eventlog

import (
	"context"
	"errors"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyEventsTableName = errors.New("empty events table name supplied")
var ErrCommittingEventFailed = errors.New("committing event to the event log failed")
var ErrMutatingEventFailed = errors.New("mutating event in the event log failed")
var ErrEventNotFound = errors.New("event not found in the event log")
var ErrReadingStreamFailed = errors.New("reading event stream failed")

// Store is the append-only event log consumed by the write-side engine.
//
// Implementations must return stream events ascending by Meta.Created with
// ties broken by insertion order, and must never rewrite an event except
// through Mutate, which exists for personal-data redaction only.
type Store interface {
	// Commit appends the envelope to the log.
	Commit(ctx context.Context, envelope Envelope) error

	// Mutate replaces the stored payload and meta of the event with the given
	// id. Type, stream and ordering position are preserved.
	Mutate(ctx context.Context, id string, envelope Envelope) error

	// Stream returns the full ordered history of the given stream.
	Stream(ctx context.Context, streamID string) (Envelopes, error)
}

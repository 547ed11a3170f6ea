// Package memoryengine implements the eventlog.Store contract in process
// memory. It exists for tests and for embedded single-process deployments
// where the engine runs without a database.
package memoryengine

import (
	"context"
	"sort"
	"sync"

	"github.com/conduitkit/conduit/eventlog"
)

type storedEvent struct {
	envelope eventlog.Envelope
	seq      int
}

// Store implements eventlog.Store with a mutex-guarded slice per stream.
type Store struct {
	mu      sync.RWMutex
	streams map[string][]storedEvent
	nextSeq int
}

// NewStore creates an empty in-memory event log.
func NewStore() *Store {
	return &Store{streams: make(map[string][]storedEvent)}
}

// Commit implements eventlog.Store.
func (s *Store) Commit(_ context.Context, envelope eventlog.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	s.streams[envelope.Stream] = append(s.streams[envelope.Stream], storedEvent{
		envelope: envelope,
		seq:      s.nextSeq,
	})

	return nil
}

// Mutate implements eventlog.Store. The stored event keeps its creation
// timestamp and insertion order; only payload and audit meta are replaced.
func (s *Store) Mutate(_ context.Context, id string, envelope eventlog.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for streamID, events := range s.streams {
		for i, stored := range events {
			if stored.envelope.ID != id {
				continue
			}

			replacement := stored.envelope
			replacement.Data = envelope.Data
			replacement.Meta.Auditor = envelope.Meta.Auditor
			replacement.Meta.Impersonator = envelope.Meta.Impersonator
			replacement.Meta.Deleted = envelope.Meta.Deleted

			s.streams[streamID][i].envelope = replacement

			return nil
		}
	}

	return eventlog.ErrEventNotFound
}

// Stream implements eventlog.Store, ascending by Meta.Created with ties
// broken by insertion order.
func (s *Store) Stream(_ context.Context, streamID string) (eventlog.Envelopes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.streams[streamID]

	ordered := make([]storedEvent, len(events))
	copy(ordered, events)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].envelope.Meta.Created != ordered[j].envelope.Meta.Created {
			return ordered[i].envelope.Meta.Created < ordered[j].envelope.Meta.Created
		}

		return ordered[i].seq < ordered[j].seq
	})

	history := make(eventlog.Envelopes, 0, len(ordered))
	for _, stored := range ordered {
		history = append(history, stored.envelope)
	}

	return history, nil
}

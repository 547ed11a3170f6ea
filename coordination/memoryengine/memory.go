// Package memoryengine implements the coordination.Store contract in process
// memory. It exists for tests and for embedded single-process deployments
// where the engine runs without a Redis instance.
package memoryengine

import (
	"context"
	"sync"
	"time"
)

type expiringValue struct {
	value     string
	expiresAt time.Time
}

// Store implements coordination.Store with mutex-guarded maps.
// Expired lock keys are treated as absent and reclaimed lazily on access.
type Store struct {
	mu   sync.Mutex
	keys map[string]expiringValue
	sets map[string]map[string]struct{}
	now  func() time.Time
}

// Option defines a functional option for configuring the Store.
type Option func(*Store)

// WithClock injects the time source, used by tests to force TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty in-memory coordination store.
func NewStore(options ...Option) *Store {
	store := &Store{
		keys: make(map[string]expiringValue),
		sets: make(map[string]map[string]struct{}),
		now:  time.Now,
	}

	for _, option := range options {
		option(store)
	}

	return store
}

// SetIfAbsent implements coordination.Store.
func (s *Store) SetIfAbsent(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.keys[key]
	if found && (existing.expiresAt.IsZero() || existing.expiresAt.After(s.now())) {
		return false, nil
	}

	record := expiringValue{value: value}
	if ttl > 0 {
		record.expiresAt = s.now().Add(ttl)
	}

	s.keys[key] = record

	return true, nil
}

// Delete implements coordination.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)

	return nil
}

// AddMember implements coordination.Store.
func (s *Store) AddMember(_ context.Context, setKey string, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, found := s.sets[setKey]
	if !found {
		members = make(map[string]struct{})
		s.sets[setKey] = members
	}

	if _, isMember := members[value]; isMember {
		return false, nil
	}

	members[value] = struct{}{}

	return true, nil
}

// RemoveMember implements coordination.Store.
func (s *Store) RemoveMember(_ context.Context, setKey string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if members, found := s.sets[setKey]; found {
		delete(members, value)
	}

	return nil
}

// IsMember reports current membership, a test convenience not part of the
// coordination.Store contract.
func (s *Store) IsMember(setKey string, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, found := s.sets[setKey]
	if !found {
		return false
	}

	_, isMember := members[value]

	return isMember
}

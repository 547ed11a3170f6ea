// Package coordination defines the shared coordination store consumed by the
// bus and the registrar. The store offers atomic conditional-set-with-expiry
// for locks and atomic set membership for uniqueness reservations; all
// atomicity is delegated to the backing store, no compare-and-swap loops are
// layered on top.
package coordination

import (
	"context"
	"time"
)

// Store is the shared coordination state backend.
type Store interface {
	// SetIfAbsent atomically creates the key with the given value and TTL.
	// It reports false when the key already existed, leaving it untouched.
	SetIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// AddMember atomically adds the value to the set stored at setKey.
	// It reports false when the value was already a member.
	AddMember(ctx context.Context, setKey string, value string) (bool, error)

	// RemoveMember removes the value from the set stored at setKey.
	// Removing a non-member is not an error.
	RemoveMember(ctx context.Context, setKey string, value string) error
}

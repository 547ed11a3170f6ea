// Package registrar provides uniqueness reservations on top of the
// coordination store. A registered key/value pair blocks every later attempt
// to register the same pair until it is explicitly released.
package registrar

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduitkit/conduit/coordination"
)

// ErrDuplicateReservation is the sentinel matched by errors.Is for any
// DuplicateError returned by Register.
var ErrDuplicateReservation = errors.New("registrar key value pair already exists")

const reservationKeyspace = "registrar:"

// DuplicateError reports a reservation conflict including the offending pair.
type DuplicateError struct {
	Key   string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("registrar key value pair already exists: %s=%s", e.Key, e.Value)
}

// Is makes the error match ErrDuplicateReservation.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateReservation
}

// Registrar reserves unique values per key in the coordination store.
// Each key owns an independent value set; there is no ordering across keys.
type Registrar struct {
	store coordination.Store
}

// New creates a Registrar on top of the given coordination store.
func New(store coordination.Store) *Registrar {
	return &Registrar{store: store}
}

// Register atomically claims the value under the key. The membership add is
// a single atomic store operation, so two concurrent claims of the same pair
// can never both succeed.
func (r *Registrar) Register(ctx context.Context, key string, value string) error {
	added, err := r.store.AddMember(ctx, reservationKeyspace+key, value)
	if err != nil {
		return err
	}

	if !added {
		return &DuplicateError{Key: key, Value: value}
	}

	return nil
}

// Release gives the value under the key back. It is idempotent: releasing a
// value that was never registered is a no-op, never an error.
func (r *Registrar) Release(ctx context.Context, key string, value string) error {
	return r.store.RemoveMember(ctx, reservationKeyspace+key, value)
}

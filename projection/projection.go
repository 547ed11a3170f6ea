// Package projection dispatches committed events to synchronous read-model
// projectors. Dispatch runs on the commit path but is best effort: a failing
// projector is logged by the caller and never fails the write.
package projection

import (
	"context"

	"github.com/conduitkit/conduit/eventlog"
)

// Projector updates a read model from one committed event.
type Projector func(ctx context.Context, event eventlog.Envelope) error

// Registry maps event types to their projectors. Populated at startup,
// read-only during request processing.
type Registry struct {
	projectors map[string]Projector
}

// NewRegistry creates an empty projector registry.
func NewRegistry() *Registry {
	return &Registry{projectors: make(map[string]Projector)}
}

// Register binds the projector to the event type, replacing any previous binding.
func (r *Registry) Register(eventType string, projector Projector) {
	r.projectors[eventType] = projector
}

// Dispatch runs the projector registered for the event's type, if any.
// An event type without a projector is not an error; unlike reducers,
// projections are opt-in per event type.
func (r *Registry) Dispatch(ctx context.Context, event eventlog.Envelope) error {
	projector, found := r.projectors[event.Type]
	if !found {
		return nil
	}

	return projector(ctx, event)
}

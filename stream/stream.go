// Package stream reconstructs aggregate state by left-folding a stream's
// event history through registered per-event-type reducers. State is never
// persisted; it is rederived from the event log on every command, so
// reducers must stay pure for replay to be deterministic.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduitkit/conduit/eventlog"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrStreamAlreadyExists = errors.New("stream already exists, genesis state cannot be created")
	ErrStreamNotFound      = errors.New("stream does not exist, use a genesis command to create it")
	ErrUnknownEventType    = errors.New("event type does not have a registered reducer")
)

// AlreadyExistsError reports a genesis command against a stream with history.
type AlreadyExistsError struct {
	StreamID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("stream %q already exists, genesis state cannot be created", e.StreamID)
}

// Is makes the error match ErrStreamAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrStreamAlreadyExists
}

// NotFoundError reports a non-genesis command against an empty stream.
type NotFoundError struct {
	StreamID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stream %q does not exist, use a genesis command to create it", e.StreamID)
}

// Is makes the error match ErrStreamNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrStreamNotFound
}

// UnknownEventTypeError reports a replayed event with no registered reducer.
// This is a configuration fault (deployment/version mismatch): replay cannot
// proceed safely past an event it does not understand.
type UnknownEventTypeError struct {
	EventType string
	StreamID  string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("event %q in stream %q does not have a registered reducer, aborting operation", e.EventType, e.StreamID)
}

// Is makes the error match ErrUnknownEventType.
func (e *UnknownEventTypeError) Is(target error) bool {
	return target == ErrUnknownEventType
}

// State is the folded aggregate state. Every state carries its stream id
// under the "id" key; all other fields are produced by reducers.
type State map[string]any

// ID returns the stream id the state belongs to.
func (s State) ID() string {
	id, _ := s["id"].(string)
	return id
}

// Reducer folds one event onto the state and returns the next state.
// Reducers must be pure functions of state and event only.
type Reducer func(state State, event eventlog.Envelope) State

// Registry maps event types to their reducers. It is populated at startup
// and passed into the Engine by value of reference, replacing ambient global
// registration so tests can run with scoped registries.
type Registry struct {
	reducers map[string]Reducer
}

// NewRegistry creates an empty reducer registry.
func NewRegistry() *Registry {
	return &Registry{reducers: make(map[string]Reducer)}
}

// Register binds the reducer to the event type, replacing any previous binding.
func (r *Registry) Register(eventType string, reducer Reducer) {
	r.reducers[eventType] = reducer
}

// Reducer returns the reducer registered for the event type.
func (r *Registry) Reducer(eventType string) (Reducer, bool) {
	reducer, found := r.reducers[eventType]
	return reducer, found
}

// Engine folds event histories read from the event log into State.
type Engine struct {
	store    eventlog.Store
	registry *Registry
}

// NewEngine creates a fold engine reading from the given store and resolving
// reducers through the given registry.
func NewEngine(store eventlog.Store, registry *Registry) *Engine {
	return &Engine{store: store, registry: registry}
}

// GetState loads the full ordered history of the stream and folds it.
//
// With isGenesis true the stream must be empty and the minimal state
// {id: streamID} is returned without folding. With isGenesis false the
// stream must have history, which is folded left to right from empty state.
func (e *Engine) GetState(ctx context.Context, streamID string, isGenesis bool) (State, error) {
	history, err := e.store.Stream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	if isGenesis {
		if len(history) > 0 {
			return nil, &AlreadyExistsError{StreamID: streamID}
		}

		return State{"id": streamID}, nil
	}

	if len(history) == 0 {
		return nil, &NotFoundError{StreamID: streamID}
	}

	return e.Fold(State{}, history)
}

// Fold applies the history onto the state in order. An event without a
// registered reducer aborts the fold.
func (e *Engine) Fold(state State, history eventlog.Envelopes) (State, error) {
	for _, event := range history {
		reducer, found := e.registry.Reducer(event.Type)
		if !found {
			return nil, &UnknownEventTypeError{EventType: event.Type, StreamID: event.Stream}
		}

		state = reducer(state, event)
	}

	return state, nil
}

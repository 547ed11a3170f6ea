// Package command orchestrates the write-side pipeline: policy evaluation,
// uniqueness reservation, bus-guarded execution, state folding and handler
// invocation appending new events.
package command

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/stream"
)

// ErrMissingReservationKey is the sentinel matched by errors.Is for any
// MissingKeyError returned from Resolve.
var ErrMissingReservationKey = errors.New("missing required reservation key in data object")

const (
	logMsgReservationReleaseFailed = "reservation release failed during rollback"
	logAttrError                   = "error"
	logAttrKey                     = "key"
	logAttrCommandType             = "command_type"
)

// MissingKeyError reports a declared reserve field that is absent from the
// request payload.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required reservation key %q in data object", e.Key)
}

// Is makes the error match ErrMissingReservationKey.
func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissingReservationKey
}

// Request is the inbound command submitted by a caller.
type Request struct {
	// Type is the command type identifier.
	Type string

	// Stream is the id of the aggregate instance the command targets.
	Stream string

	// Data is the command payload. Declared reserve fields are read out of
	// it by name; handlers decode it into their own typed structures.
	Data map[string]any

	// Auditor is the identity responsible for resulting events.
	Auditor string

	// Impersonator is the identity acting on behalf of the auditor, if any.
	Impersonator string
}

// Locker serializes execution per stream id.
type Locker interface {
	Queue(ctx context.Context, streamID string, body func(ctx context.Context) error) error
}

// Reserver claims and releases unique key/value pairs.
type Reserver interface {
	Register(ctx context.Context, key string, value string) error
	Release(ctx context.Context, key string, value string) error
}

// StateLoader folds current aggregate state from the event log.
type StateLoader interface {
	GetState(ctx context.Context, streamID string, isGenesis bool) (stream.State, error)
}

// EventRecorder commits event envelopes and fans them out.
type EventRecorder interface {
	Record(ctx context.Context, envelope eventlog.Envelope, isRehydrating bool) error
}

// Logger interface for reservation rollback logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ApplyFunc commits one new event bound to the request's stream. A handler
// may call it zero or more times; each call commits independently, there is
// no batching across calls.
type ApplyFunc func(ctx context.Context, eventType string, data any, options ...ApplyOption) error

// ApplyOption adjusts the envelope built by an ApplyFunc call.
type ApplyOption func(*eventlog.Meta)

// WithCreated overrides the event's creation timestamp (UNIX seconds).
func WithCreated(created int64) ApplyOption {
	return func(meta *eventlog.Meta) {
		meta.Created = created
	}
}

// Handler is the business logic of a command. It receives the folded state
// of the target stream, the originating request and an apply capability
// appending new events to the stream.
type Handler func(ctx context.Context, state stream.State, req Request, apply ApplyFunc) error

// Options configures a Command.
type Options struct {
	// Type is the command type identifier.
	Type string

	// Genesis marks a command that must create a new stream; it fails when
	// the stream already has history.
	Genesis bool

	// Reserve lists data-field names whose values must be globally unique.
	// Reservations are made in the listed order before the lock is taken.
	Reserve []string

	// Policies run in order; the first rejection aborts the pipeline.
	Policies []Policy

	// Handler is invoked under the stream lock with folded state.
	Handler Handler
}

// Command executes one command type against event streams.
type Command struct {
	commandType string
	genesis     bool
	reserve     []string
	policies    []Policy
	handler     Handler

	bus       Locker
	registrar Reserver
	states    StateLoader
	recorder  EventRecorder
	logger    Logger
}

// Option defines a functional option for configuring a Command.
type Option func(*Command)

// WithLogger sets the logger for the Command.
func WithLogger(logger Logger) Option {
	return func(c *Command) {
		c.logger = logger
	}
}

// New creates a Command from its options and collaborators.
func New(
	opts Options,
	locker Locker,
	reserver Reserver,
	states StateLoader,
	recorder EventRecorder,
	options ...Option,
) *Command {

	cmd := &Command{
		commandType: opts.Type,
		genesis:     opts.Genesis,
		reserve:     opts.Reserve,
		policies:    opts.Policies,
		handler:     opts.Handler,
		bus:         locker,
		registrar:   reserver,
		states:      states,
		recorder:    recorder,
	}

	for _, option := range options {
		option(cmd)
	}

	return cmd
}

// Type returns the command type identifier.
func (c *Command) Type() string {
	return c.commandType
}

// Resolve runs the pipeline for one request, in strict order: policies,
// reservations, then the bus-guarded fold and handler invocation.
//
// Every error after the first successful reservation releases all
// reservations made so far before propagating; on full success the
// reservations remain held permanently, that is the uniqueness guarantee.
// The stream lock itself is always released by the bus.
func (c *Command) Resolve(ctx context.Context, req Request) error {
	for _, policy := range c.policies {
		if result := policy(ctx, req); result.rejection != nil {
			return result.rejection
		}
	}

	reserved, err := c.reserveKeys(ctx, req)
	if err != nil {
		c.rollback(ctx, req, reserved)
		return err
	}

	queueErr := c.bus.Queue(ctx, req.Stream, func(ctx context.Context) error {
		state, stateErr := c.states.GetState(ctx, req.Stream, c.genesis)
		if stateErr != nil {
			return stateErr
		}

		return c.handler(ctx, state, req, c.applyFunc(req))
	})

	if queueErr != nil {
		c.rollback(ctx, req, reserved)
		return queueErr
	}

	return nil
}

// reserveKeys registers every declared reserve field and returns the keys
// registered so far, including on error so the caller can roll them back.
func (c *Command) reserveKeys(ctx context.Context, req Request) ([]string, error) {
	reserved := make([]string, 0, len(c.reserve))

	for _, key := range c.reserve {
		value, found := req.Data[key].(string)
		if !found || value == "" {
			return reserved, &MissingKeyError{Key: key}
		}

		if err := c.registrar.Register(ctx, key, value); err != nil {
			return reserved, err
		}

		reserved = append(reserved, key)
	}

	return reserved, nil
}

// rollback releases the reserved keys in registration order.
func (c *Command) rollback(ctx context.Context, req Request, reserved []string) {
	for _, key := range reserved {
		value, _ := req.Data[key].(string)

		if err := c.registrar.Release(context.WithoutCancel(ctx), key, value); err != nil {
			if c.logger != nil {
				c.logger.Error(logMsgReservationReleaseFailed,
					logAttrError, err.Error(),
					logAttrKey, key,
					logAttrCommandType, c.commandType)
			}
		}
	}
}

// applyFunc binds an ApplyFunc to the request's stream and identity.
func (c *Command) applyFunc(req Request) ApplyFunc {
	return func(ctx context.Context, eventType string, data any, options ...ApplyOption) error {
		dataJSON, err := marshalPayload(data)
		if err != nil {
			return err
		}

		meta := eventlog.Meta{
			Auditor:      req.Auditor,
			Impersonator: req.Impersonator,
		}

		for _, option := range options {
			option(&meta)
		}

		envelope, err := eventlog.BuildEnvelope(eventType, req.Stream, dataJSON, meta)
		if err != nil {
			return err
		}

		return c.recorder.Record(ctx, envelope, false)
	}
}

func marshalPayload(data any) ([]byte, error) {
	switch payload := data.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return payload, nil
	default:
		return jsoniter.ConfigFastest.Marshal(data)
	}
}

package eventlog

import (
	"context"
)

const (
	logMsgProjectionFailed = "projection dispatch failed"
	logAttrError           = "error"
	logAttrEventType       = "event_type"
	logAttrEventID         = "event_id"
	logAttrStream          = "stream"
)

// Logger interface for operational logging of the commit path.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ProjectionDispatcher updates read models for a committed event.
// Dispatch errors are fully contained by the Recorder.
type ProjectionDispatcher interface {
	Dispatch(ctx context.Context, envelope Envelope) error
}

// SagaNotifier hands a newly committed event off to asynchronous side effects.
type SagaNotifier interface {
	Process(envelope Envelope)
}

// Recorder owns the commit and redact lifecycle of event envelopes:
// persist to the Store, then fan out to projections and sagas.
type Recorder struct {
	store       Store
	projections ProjectionDispatcher
	sagas       SagaNotifier
	logger      Logger
}

// RecorderOption defines a functional option for configuring a Recorder.
type RecorderOption func(*Recorder)

// WithProjections sets the projection dispatcher invoked on every commit.
func WithProjections(projections ProjectionDispatcher) RecorderOption {
	return func(r *Recorder) {
		r.projections = projections
	}
}

// WithSagas sets the saga notifier invoked on non-rehydrating commits.
func WithSagas(sagas SagaNotifier) RecorderOption {
	return func(r *Recorder) {
		r.sagas = sagas
	}
}

// WithLogger sets the logger for the Recorder.
func WithLogger(logger Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a Recorder persisting to the given Store.
// Projections and sagas are optional; without them a commit is persistence only.
func NewRecorder(store Store, options ...RecorderOption) *Recorder {
	recorder := &Recorder{store: store}

	for _, option := range options {
		option(recorder)
	}

	return recorder
}

// Record persists the envelope and fans it out.
//
// The projection dispatch is synchronous and its failure is logged but never
// propagated: a broken read-model update must not fail the write. The saga
// notification is skipped when isRehydrating is true, so replaying history
// for state reconstruction never re-triggers side effects.
func (r *Recorder) Record(ctx context.Context, envelope Envelope, isRehydrating bool) error {
	if err := r.store.Commit(ctx, envelope); err != nil {
		return err
	}

	r.project(ctx, envelope)

	if !isRehydrating && r.sagas != nil {
		r.sagas.Process(envelope)
	}

	return nil
}

// Redact rewrites the stored event identified by id with the replacement
// envelope and re-runs the projection dispatch so read models drop the
// redacted data. Sagas are not notified: a redaction is not a new business fact.
func (r *Recorder) Redact(ctx context.Context, id string, envelope Envelope) error {
	if err := r.store.Mutate(ctx, id, envelope); err != nil {
		return err
	}

	r.project(ctx, envelope)

	return nil
}

func (r *Recorder) project(ctx context.Context, envelope Envelope) {
	if r.projections == nil {
		return
	}

	if err := r.projections.Dispatch(ctx, envelope); err != nil {
		if r.logger != nil {
			r.logger.Error(logMsgProjectionFailed,
				logAttrError, err.Error(),
				logAttrEventType, envelope.Type,
				logAttrEventID, envelope.ID,
				logAttrStream, envelope.Stream)
		}
	}
}

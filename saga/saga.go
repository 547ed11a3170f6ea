// Package saga dispatches newly committed events to asynchronous side
// effects. The handoff is a buffered channel drained by a worker goroutine,
// keeping saga failures and latency off the commit path entirely.
package saga

import (
	"context"
	"sync"

	"github.com/conduitkit/conduit/eventlog"
)

const (
	defaultQueueSize = 256

	logMsgSagaFailed  = "saga execution failed"
	logMsgQueueFull   = "saga queue full, dropping event"
	logMsgQueueClosed = "saga dispatcher closed, dropping event"
	logAttrError     = "error"
	logAttrEventType = "event_type"
	logAttrEventID   = "event_id"
	logAttrStream    = "stream"
)

// Logger interface for saga failure and overflow logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Saga performs one asynchronous side effect for a committed event.
type Saga func(ctx context.Context, event eventlog.Envelope) error

// Dispatcher fans newly committed events out to registered sagas on a
// dedicated worker goroutine. Registration happens at startup, before Start;
// the listener map is read-only once the worker runs.
type Dispatcher struct {
	sagas     map[string][]Saga
	queue     chan eventlog.Envelope
	logger    Logger
	startOnce sync.Once
	closeOnce sync.Once
	drained   chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// Option defines a functional option for configuring the Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize overrides the handoff buffer size.
func WithQueueSize(size int) Option {
	return func(d *Dispatcher) {
		d.queue = make(chan eventlog.Envelope, size)
	}
}

// WithLogger sets the logger for the Dispatcher.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher. Call Start before committing events.
func NewDispatcher(options ...Option) *Dispatcher {
	dispatcher := &Dispatcher{
		sagas:   make(map[string][]Saga),
		queue:   make(chan eventlog.Envelope, defaultQueueSize),
		drained: make(chan struct{}),
	}

	for _, option := range options {
		option(dispatcher)
	}

	return dispatcher
}

// Register appends a saga listener for the event type.
func (d *Dispatcher) Register(eventType string, saga Saga) {
	d.sagas[eventType] = append(d.sagas[eventType], saga)
}

// Start launches the worker goroutine draining the queue. The ctx bounds
// every saga invocation; canceling it does not stop the worker, Close does.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.closed {
			return
		}

		d.started = true
		go d.work(ctx)
	})
}

// Process enqueues the event for asynchronous processing. It never blocks
// or fails the commit path: when the queue is full, or the dispatcher has
// been closed, the event is dropped with a log entry instead of stalling or
// panicking the writer.
func (d *Dispatcher) Process(event eventlog.Envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		if d.logger != nil {
			d.logger.Warn(logMsgQueueClosed,
				logAttrEventType, event.Type,
				logAttrEventID, event.ID,
				logAttrStream, event.Stream)
		}

		return
	}

	select {
	case d.queue <- event:
	default:
		if d.logger != nil {
			d.logger.Warn(logMsgQueueFull,
				logAttrEventType, event.Type,
				logAttrEventID, event.ID,
				logAttrStream, event.Stream)
		}
	}
}

// Close stops accepting events and waits for the queue to drain. Events
// handed to Process afterwards are dropped. Close returns immediately when
// Start was never called.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		started := d.started
		close(d.queue)
		d.mu.Unlock()

		if !started {
			close(d.drained)
		}
	})

	<-d.drained
}

func (d *Dispatcher) work(ctx context.Context) {
	defer close(d.drained)

	for event := range d.queue {
		for _, saga := range d.sagas[event.Type] {
			if err := saga(ctx, event); err != nil {
				if d.logger != nil {
					d.logger.Error(logMsgSagaFailed,
						logAttrError, err.Error(),
						logAttrEventType, event.Type,
						logAttrEventID, event.ID,
						logAttrStream, event.Stream)
				}
			}
		}
	}
}

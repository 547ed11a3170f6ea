// Package bus serializes command execution per stream across process
// boundaries. The lock is a conditional create in the coordination store
// with a short TTL as crash-safety backstop; acquisition retries with
// randomized backoff and surfaces ErrBusy once the attempt cap is exceeded.
package bus

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/conduitkit/conduit/coordination"
)

// ErrBusy signals lock contention that outlasted the retry budget.
// It is transient; callers may retry the whole command later.
var ErrBusy = errors.New("server is busy, please wait a few moments and try again")

const (
	lockKeyspace      = "bus:"
	lockSentinel      = "reserved"
	defaultTTL        = 10 * time.Second
	defaultRetries    = 10
	defaultBackoffMin = 1000 * time.Millisecond
	defaultBackoffMax = 3500 * time.Millisecond

	logMsgLockContended     = "stream lock contended, backing off"
	logMsgLockReleaseFailed = "stream lock release failed, ttl will reclaim it"
	logAttrError            = "error"
	logAttrStream           = "stream"
	logAttrAttempt          = "attempt"
)

// Logger interface for lock contention and release logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SleepFunc waits for the given duration or until the context is done.
// Tests inject it to run contention scenarios without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Body is the critical section run under the stream lock.
type Body func(ctx context.Context) error

// Bus is the per-stream mutual exclusion lock. Two different stream ids
// never contend; executions against the same stream id are serialized.
type Bus struct {
	store      coordination.Store
	ttl        time.Duration
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration
	sleep      SleepFunc
	logger     Logger
}

// Option defines a functional option for configuring the Bus.
type Option func(*Bus)

// WithLockTTL overrides the lock record TTL. The TTL exists purely as a
// crash-safety backstop; a held lock outliving it may be reacquired.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *Bus) {
		b.ttl = ttl
	}
}

// WithMaxRetries overrides how many contended attempts are retried before
// Queue gives up with ErrBusy.
func WithMaxRetries(retries int) Option {
	return func(b *Bus) {
		b.maxRetries = retries
	}
}

// WithBackoffWindow overrides the [min, max) window the randomized
// per-attempt backoff delay is drawn from.
func WithBackoffWindow(minDelay time.Duration, maxDelay time.Duration) Option {
	return func(b *Bus) {
		b.backoffMin = minDelay
		b.backoffMax = maxDelay
	}
}

// WithSleep injects the wait function used between attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(b *Bus) {
		b.sleep = sleep
	}
}

// WithLogger sets the logger for the Bus.
func WithLogger(logger Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates a Bus locking through the given coordination store.
func New(store coordination.Store, options ...Option) *Bus {
	bus := &Bus{
		store:      store,
		ttl:        defaultTTL,
		maxRetries: defaultRetries,
		backoffMin: defaultBackoffMin,
		backoffMax: defaultBackoffMax,
		sleep:      contextSleep,
	}

	for _, option := range options {
		option(bus)
	}

	return bus
}

// Queue runs body with exclusive ownership of the stream id.
//
// The lock record is deleted after body returns, on success and on failure
// alike; only a process crash leaves it behind, and then the TTL reclaims it.
func (b *Bus) Queue(ctx context.Context, streamID string, body func(ctx context.Context) error) error {
	lockKey := lockKeyspace + streamID

	if err := b.acquire(ctx, lockKey, streamID); err != nil {
		return err
	}

	defer func() {
		if err := b.store.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
			if b.logger != nil {
				b.logger.Warn(logMsgLockReleaseFailed, logAttrError, err.Error(), logAttrStream, streamID)
			}
		}
	}()

	return body(ctx)
}

func (b *Bus) acquire(ctx context.Context, lockKey string, streamID string) error {
	for attempt := 0; ; attempt++ {
		created, err := b.store.SetIfAbsent(ctx, lockKey, lockSentinel, b.ttl)
		if err != nil {
			return err
		}

		if created {
			return nil
		}

		if attempt >= b.maxRetries {
			return ErrBusy
		}

		if b.logger != nil {
			b.logger.Debug(logMsgLockContended, logAttrStream, streamID, logAttrAttempt, attempt+1)
		}

		if err := b.sleep(ctx, b.backoffDelay()); err != nil {
			return err
		}
	}
}

// backoffDelay draws a delay uniformly from [backoffMin, backoffMax).
func (b *Bus) backoffDelay() time.Duration {
	window := b.backoffMax - b.backoffMin
	if window <= 0 {
		return b.backoffMin
	}

	return b.backoffMin + time.Duration(rand.Int63n(int64(window)))
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

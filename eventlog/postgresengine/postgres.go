package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/eventlog/postgresengine/internal/adapters"
)

const (
	defaultEventTableName = "events"

	logMsgBuildQueryFailed   = "failed to build sql query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgEventCommitted     = "event committed"
	logMsgEventMutated       = "event mutated"
	logMsgStreamRead         = "stream read"
	logMsgSQLExecuted        = "executed sql"
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrEventType         = "event_type"
	logAttrEventID           = "event_id"
	logAttrStream            = "stream"
	logAttrEventCount        = "event_count"
	logAttrDurationMS        = "duration_ms"

	colID           = "id"
	colStream       = "stream"
	colEventType    = "event_type"
	colPayload      = "payload"
	colAuditor      = "auditor"
	colImpersonator = "impersonator"
	colCreatedAt    = "created_at"
	colDeleted      = "deleted"
	colSeq          = "seq"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
)

// Logger interface for SQL query logging, operational metrics, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store implements eventlog.Store on PostgreSQL.
//
// The events table is append-only; the single sanctioned update is the
// redaction path (Mutate), which rewrites payload and audit meta in place
// while keeping the row's stream position (created_at, seq) untouched.
type Store struct {
	db             adapters.DBAdapter
	eventTableName string
	logger         Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithTableName sets the events table name for the Store.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return eventlog.ErrEmptyEventsTableName
		}

		s.eventTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
//
// Debug level: SQL queries with execution timing (development use)
// Info level: event counts and durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStoreFromPGXPool creates a new Store using a pgx pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	store := &Store{
		db:             db,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(store); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Commit appends the envelope to the events table.
func (s *Store) Commit(ctx context.Context, envelope eventlog.Envelope) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(s.eventTableName).
		Rows(goqu.Record{
			colID:           envelope.ID,
			colStream:       envelope.Stream,
			colEventType:    envelope.Type,
			colPayload:      goqu.L(castJsonb, string(envelope.Data)),
			colAuditor:      envelope.Meta.Auditor,
			colImpersonator: envelope.Meta.Impersonator,
			colCreatedAt:    envelope.Meta.Created,
			colDeleted:      string(envelope.Meta.Deleted),
		}).
		ToSQL()

	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrEventType, envelope.Type)
		return errors.Join(eventlog.ErrCommittingEventFailed, buildErr)
	}

	start := time.Now()
	_, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, duration)

	if execErr != nil {
		s.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return errors.Join(eventlog.ErrCommittingEventFailed, execErr)
	}

	s.logOperation(logMsgEventCommitted,
		logAttrEventType, envelope.Type,
		logAttrStream, envelope.Stream,
		logAttrDurationMS, durationToMilliseconds(duration))

	return nil
}

// Mutate rewrites payload and audit meta of the event with the given id.
// Type, stream, created_at and seq are left untouched so the event keeps its
// position in the stream ordering.
func (s *Store) Mutate(ctx context.Context, id string, envelope eventlog.Envelope) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(s.eventTableName).
		Set(goqu.Record{
			colPayload:      goqu.L(castJsonb, string(envelope.Data)),
			colAuditor:      envelope.Meta.Auditor,
			colImpersonator: envelope.Meta.Impersonator,
			colDeleted:      string(envelope.Meta.Deleted),
		}).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()

	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrEventID, id)
		return errors.Join(eventlog.ErrMutatingEventFailed, buildErr)
	}

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, duration)

	if execErr != nil {
		s.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return errors.Join(eventlog.ErrMutatingEventFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(logMsgRowsAffectedFailed, rowsAffectedErr)
		return errors.Join(eventlog.ErrMutatingEventFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		return eventlog.ErrEventNotFound
	}

	s.logOperation(logMsgEventMutated,
		logAttrEventID, id,
		logAttrDurationMS, durationToMilliseconds(duration))

	return nil
}

// Stream returns the full history of the stream ascending by created_at,
// ties broken by insertion order.
func (s *Store) Stream(ctx context.Context, streamID string) (eventlog.Envelopes, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.eventTableName).
		Select(colID, colEventType, colStream, colPayload, colAuditor, colImpersonator, colCreatedAt, colDeleted).
		Where(goqu.C(colStream).Eq(streamID)).
		Order(goqu.C(colCreatedAt).Asc(), goqu.C(colSeq).Asc()).
		ToSQL()

	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrStream, streamID)
		return nil, errors.Join(eventlog.ErrReadingStreamFailed, buildErr)
	}

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, duration)

	if queryErr != nil {
		s.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(eventlog.ErrReadingStreamFailed, queryErr)
	}
	defer s.closeRows(rows)

	history := make(eventlog.Envelopes, 0)

	for rows.Next() {
		var envelope eventlog.Envelope
		var deleted string

		scanErr := rows.Scan(
			&envelope.ID,
			&envelope.Type,
			&envelope.Stream,
			&envelope.Data,
			&envelope.Meta.Auditor,
			&envelope.Meta.Impersonator,
			&envelope.Meta.Created,
			&deleted,
		)
		if scanErr != nil {
			s.logError(logMsgScanRowFailed, scanErr)
			return nil, errors.Join(eventlog.ErrReadingStreamFailed, scanErr)
		}

		envelope.Meta.Deleted = eventlog.DeletedState(deleted)
		history = append(history, envelope)
	}

	s.logOperation(logMsgStreamRead,
		logAttrStream, streamID,
		logAttrEventCount, len(history),
		logAttrDurationMS, durationToMilliseconds(duration))

	return history, nil
}

func (s *Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (s *Store) logError(msg string, err error, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, append([]any{logAttrError, err.Error()}, args...)...)
	}
}

func (s *Store) logOperation(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) logQueryWithDuration(sqlQuery string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted, logAttrQuery, sqlQuery, logAttrDurationMS, durationToMilliseconds(duration))
	}
}

func durationToMilliseconds(duration time.Duration) float64 {
	return float64(duration.Nanoseconds()) / float64(time.Millisecond)
}

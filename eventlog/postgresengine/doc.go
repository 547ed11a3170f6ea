// Package postgresengine implements the eventlog.Store contract on
// PostgreSQL, working with pgxpool.Pool, sql.DB or sqlx.DB connections
// through a thin adapter layer.
//
// Expected schema:
//
//	CREATE TABLE events (
//	    seq          BIGSERIAL PRIMARY KEY,
//	    id           UUID      NOT NULL UNIQUE,
//	    stream       TEXT      NOT NULL,
//	    event_type   TEXT      NOT NULL,
//	    payload      JSONB     NOT NULL,
//	    auditor      TEXT      NOT NULL,
//	    impersonator TEXT      NOT NULL DEFAULT '',
//	    created_at   BIGINT    NOT NULL,
//	    deleted      TEXT      NOT NULL DEFAULT ''
//	);
//
//	CREATE INDEX events_stream_idx ON events (stream, created_at, seq);
//
// created_at holds UNIX seconds and defines the stream order; seq breaks
// ties by insertion order.
package postgresengine

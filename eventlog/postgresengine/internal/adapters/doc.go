// Package adapters provides database adapter implementations for the
// PostgreSQL event log engine.
//
// The adapter pattern supports multiple PostgreSQL database libraries:
// pgxpool.Pool, sql.DB and sqlx.DB. All adapters provide equivalent
// functionality through a common DBAdapter interface, so the engine works
// with any supported connection type.
package adapters

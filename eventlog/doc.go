// Package eventlog defines the event envelope, the append-only Store
// contract and the Recorder that owns the commit/redact lifecycle of the
// write side.
//
// Envelopes are built once and never change; the single exception is the
// redaction path (Store.Mutate) used to erase personal data while keeping
// the event's type, stream and ordering position intact.
package eventlog

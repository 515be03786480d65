// Package models defines the domain types shared by every layer of
// draftsmith: books, chapters, blocks, chapter histories, change events,
// and the error taxonomy returned across the public boundary.
//
// # Typed IDs
//
// Entity identifiers are small structs wrapping [github.com/google/uuid.UUID]
// rather than raw strings. This prevents accidentally passing a chapter id
// where a book id is expected, at zero runtime cost. Each ID implements
// JSON and CBOR (un)marshaling plus driver.Valuer/sql.Scanner so the same
// value flows unchanged through HTTP payloads, in-memory clones, and
// database columns.
//
// # Timestamps
//
// CreatedAt doubles as the last-modified stamp on books and chapters and is
// the reference value for staleness checks; LastSyncedAt is stamped together
// with it on every save and handed back to clients as their sync token. Both
// are monotonically non-decreasing per entity across all writers.
//
// # History entries
//
// A chapter history is an append-only diff chain. [Entry] is a tagged union:
// histories written before commits became structured records contain bare
// patch strings ([Entry.Legacy]), newer ones contain [Commit] records. The
// custom (un)marshalers keep both forms readable and writable so old data
// never needs a bulk migration; legacy entries are upgraded in place the
// first time their message is edited.
//
// # Errors
//
// The four error types here ([StaleWriteError], [NotFoundError],
// [LimitExceededError], [ValidationError]) are returned as values, never
// panics, and their messages are written to double as user-facing
// diagnostics.
package models

// Package draftsmith wires the synchronization and versioning engine of a
// personal book-writing editor into a runnable HTTP application.
//
// The engine keeps multiple browser tabs and devices of one account
// consistent without true multi-writer merge. Every save carries the
// timestamp its session last synchronized against; the staleness guard in
// [github.com/draftsmith/draftsmith/pkg/staleness] rejects writes based on
// state that is too old, the repository in
// [github.com/draftsmith/draftsmith/pkg/repo] persists books and chapters
// and cascades soft-deletes, the history service in
// [github.com/draftsmith/draftsmith/pkg/history] maintains a replayable
// diff chain per chapter, and the broadcaster in
// [github.com/draftsmith/draftsmith/pkg/broadcast] pushes every successful
// mutation to the owner's other live sessions over websockets.
//
// This package owns the outer layer only: configuration parsing, the
// command pattern ([Command], [RunCommand], [MigrateCommand]), the mux
// router, the JSON handlers, and the websocket bridge from broadcaster
// channels to connections. All synchronization semantics live in the inner
// packages.
package draftsmith

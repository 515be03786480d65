package draftsmith

// Command represents a discrete application operation with its configuration.
//
// Each command implementation carries the parameters of its operation; the
// application layer routes execution through [App]. Current implementations:
//
//   - [RunCommand]: HTTP server startup and operation
//   - [MigrateCommand]: database schema migration
type Command interface {
	// Name returns the command identifier used for routing. It must match
	// the CLI sub-command name.
	Name() string
}

// MigrateCommand initializes or updates the database schema to match the
// current data model. It is safe to run repeatedly: only missing tables,
// columns, and indexes are added, data is never dropped. Running it against
// the in-memory store is a no-op.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}

// RunCommand starts the HTTP server serving the sync and versioning API:
// guarded book/chapter saves and deletes, chapter history commits and
// replay, the staleness probe, and the websocket live-updates stream.
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}

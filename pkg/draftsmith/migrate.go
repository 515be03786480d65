package draftsmith

import (
	"context"

	"github.com/draftsmith/draftsmith/pkg/store/postgres"
)

// Migrate runs schema migration on the configured store. The in-memory
// store has no schema, so memory mode is a logged no-op.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	pg, ok := a.store.(*postgres.PostgresStore)
	if !ok {
		a.log.Info().Msg("store has no schema to migrate")
		return nil
	}
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	a.log.Info().Msg("schema migration complete")
	return nil
}

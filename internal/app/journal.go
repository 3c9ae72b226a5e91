package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/journal"
	"github.com/streetside/panoview/internal/journal/gormjournal"
)

// OpenJournal creates the journal backend selected by cfg.Type. The caller
// calls Init on the result.
func OpenJournal(cfg config.JournalConfig, log zerolog.Logger) (journal.Backend, error) {
	switch cfg.Type {
	case "", "memory":
		log.Info().Int("capacity", cfg.Capacity).Msg("Memory journal initialized")
		return journal.NewMemory(cfg.Capacity), nil

	case "sqlite":
		db, err := gormjournal.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite journal: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("SQLite journal initialized")
		return gormjournal.New(db, gormjournal.Config{FlushInterval: cfg.FlushInterval}, log), nil

	case "postgres":
		db, err := gormjournal.OpenPostgres(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres journal: %w", err)
		}
		log.Info().Str("host", cfg.Postgres.Host).Str("database", cfg.Postgres.Database).Msg("Postgres journal initialized")
		return gormjournal.New(db, gormjournal.Config{FlushInterval: cfg.FlushInterval}, log), nil

	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}

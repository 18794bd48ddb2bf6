package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/config"
)

// Open creates the backend selected by cfg.Backend.
func Open(cfg *config.AuditConfig, logger *slog.Logger) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		return NewSQLiteStorage(SQLiteConfig{
			Driver:      cfg.SQLite.Driver,
			Path:        cfg.SQLite.Path,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}

package main

import (
	"fmt"
	"os"

	"monogest/backend/internal/config"
	sqlstore "monogest/backend/internal/storage/sql"
)

// main creates or updates the conversation tables against the configured
// database. The API server also migrates on startup; this binary exists
// for deploy pipelines that run migrations separately.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Type == "" {
		fmt.Fprintln(os.Stderr, "database.type is not configured; nothing to migrate")
		os.Exit(1)
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Println("migration completed")
}

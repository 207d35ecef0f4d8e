// Package database connects to the Postgres instance backing the durable
// queue (C4). Persistence for every other component lives in the KV tier;
// Postgres here is reassigned from the row-store role to a durable message
// queue's storage.
package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"thewire/internal/config"
)

// Connect opens the queue database and verifies connectivity.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Connected to queue database successfully")
	return db, nil
}

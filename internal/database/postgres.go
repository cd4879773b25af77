package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/AnshRaj112/empowerment-backend/internal/database/migrations"
)

// ConnectPostgres opens the pool and verifies the connection.
func ConnectPostgres(ctx context.Context, postgresURI string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func useMigrations() error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.SetDialect("postgres")
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := useMigrations(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// MigrationStatus logs which embedded migrations have been applied.
func MigrationStatus(ctx context.Context, db *sql.DB) error {
	if err := useMigrations(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, ".")
}

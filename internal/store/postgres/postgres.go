package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS communications (
			id              TEXT PRIMARY KEY,
			campaign_id     TEXT NOT NULL,
			customer_id     TEXT NOT NULL,
			customer_email  TEXT NOT NULL,
			customer_name   TEXT NOT NULL DEFAULT '',
			message_text    TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'PENDING'
			                CHECK (status IN ('PENDING', 'PROCESSING', 'DELIVERED', 'FAILED')),
			attempts        INT NOT NULL DEFAULT 0,
			max_attempts    INT NOT NULL DEFAULT 3,
			last_attempt_at TIMESTAMPTZ,
			delivered_at    TIMESTAMPTZ,
			vendor_ref      TEXT NOT NULL DEFAULT '',
			last_error      TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS receipts (
			id               TEXT PRIMARY KEY,
			communication_id TEXT NOT NULL REFERENCES communications(id),
			campaign_id      TEXT NOT NULL,
			attempt_number   INT NOT NULL,
			status           TEXT NOT NULL,
			vendor_ref       TEXT NOT NULL DEFAULT '',
			error_code       TEXT NOT NULL DEFAULT '',
			error_message    TEXT NOT NULL DEFAULT '',
			cost             NUMERIC(10,4) NOT NULL DEFAULT 0,
			received_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (communication_id, attempt_number)
		);

		CREATE TABLE IF NOT EXISTS campaign_counters (
			campaign_id TEXT PRIMARY KEY,
			sent        BIGINT NOT NULL DEFAULT 0,
			delivered   BIGINT NOT NULL DEFAULT 0,
			failed      BIGINT NOT NULL DEFAULT 0,
			pending     BIGINT NOT NULL DEFAULT 0,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_communications_due
			ON communications(created_at) WHERE status = 'PENDING';
		CREATE INDEX IF NOT EXISTS idx_communications_campaign_id ON communications(campaign_id);
		CREATE INDEX IF NOT EXISTS idx_communications_status ON communications(status);
		CREATE INDEX IF NOT EXISTS idx_receipts_communication_id ON receipts(communication_id);
		CREATE INDEX IF NOT EXISTS idx_receipts_received_at ON receipts(received_at);
	`

	_, err := db.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

/**
 * @description
 * This file bootstraps the database schema. Statements are idempotent
 * (CREATE TABLE IF NOT EXISTS) so the service can run them unconditionally on
 * startup against a fresh or an existing database.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: Connection pool used to run the DDL.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		wallet_number BIGINT NOT NULL UNIQUE,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_id ON wallets(user_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		reference TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		authorization_url TEXT,
		wallet_id UUID NOT NULL REFERENCES wallets(id),
		user_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		secret_hash TEXT NOT NULL,
		permissions TEXT[] NOT NULL,
		expires_at TIMESTAMPTZ,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id)`,
}

// EnsureSchema applies the schema statements in order.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

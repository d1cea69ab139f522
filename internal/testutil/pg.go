// README: Postgres helpers for DB-backed tests; skipped unless LIFELINE_TEST_DSN is set.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/infra"
)

const dsnEnv = "LIFELINE_TEST_DSN"

// DB connects to LIFELINE_TEST_DSN, applies the migrations and empties every
// table. Tests sharing the database must not run in parallel.
func DB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skip(dsnEnv + " not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := infra.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE bed_reservations, beds, facilities"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// SeedBed inserts a facility (if missing) and an AVAILABLE bed with the given ids.
func SeedBed(t *testing.T, db *pgxpool.Pool, facilityID, bedID, kind string) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.Exec(ctx, `
		INSERT INTO facilities (id, name) VALUES ($1, $1)
		ON CONFLICT (id) DO NOTHING`, facilityID); err != nil {
		t.Fatalf("seed facility: %v", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO beds (id, facility_id, bed_number, kind, status)
		VALUES ($1, $2, $1, $3, 'AVAILABLE')`, bedID, facilityID, kind); err != nil {
		t.Fatalf("seed bed: %v", err)
	}
}

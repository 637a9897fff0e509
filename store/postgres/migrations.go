package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Conduit store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("conduit")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_conduit_routes",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS conduit_routes (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    enabled      BOOLEAN NOT NULL DEFAULT TRUE,
    source_event TEXT NOT NULL DEFAULT '',
    spec         JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_conduit_routes_created ON conduit_routes (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS conduit_routes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_conduit_runs",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS conduit_runs (
    id              TEXT PRIMARY KEY,
    route_id        TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'RUNNING',
    source_payload  JSONB,
    mapped_payload  JSONB,
    response_status INT NOT NULL DEFAULT 0,
    response_body   JSONB,
    attempts        INT NOT NULL DEFAULT 0,
    error           TEXT NOT NULL DEFAULT '',
    correlation_id  TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL DEFAULT '',
    started_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    finished_at     TIMESTAMPTZ,
    duration_ms     BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conduit_runs_route ON conduit_runs (route_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_conduit_runs_status ON conduit_runs (status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_conduit_runs_idempotency ON conduit_runs (route_id, idempotency_key) WHERE idempotency_key != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS conduit_runs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_conduit_dead_letters",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS conduit_dead_letters (
    id               TEXT PRIMARY KEY,
    route_id         TEXT NOT NULL,
    run_id           TEXT NOT NULL,
    source_payload   JSONB,
    mapped_payload   JSONB,
    error            TEXT NOT NULL DEFAULT '',
    attempts         INT NOT NULL DEFAULT 0,
    last_status_code INT NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'PENDING',
    replay_count     INT NOT NULL DEFAULT 0,
    last_replayed_at TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_conduit_dead_letters_status ON conduit_dead_letters (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conduit_dead_letters_route ON conduit_dead_letters (route_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS conduit_dead_letters`)
				return err
			},
		},
	)
}

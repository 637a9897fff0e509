package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Conduit store (SQLite).
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
    enabled      INTEGER NOT NULL DEFAULT 1,
    source_event TEXT NOT NULL DEFAULT '',
    spec         TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
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
    source_payload  TEXT,
    mapped_payload  TEXT,
    response_status INTEGER NOT NULL DEFAULT 0,
    response_body   TEXT,
    attempts        INTEGER NOT NULL DEFAULT 0,
    error           TEXT NOT NULL DEFAULT '',
    correlation_id  TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL DEFAULT '',
    started_at      TEXT NOT NULL DEFAULT (datetime('now')),
    finished_at     TEXT,
    duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conduit_runs_route ON conduit_runs (route_id, started_at);
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
    source_payload   TEXT,
    mapped_payload   TEXT,
    error            TEXT NOT NULL DEFAULT '',
    attempts         INTEGER NOT NULL DEFAULT 0,
    last_status_code INTEGER NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'PENDING',
    replay_count     INTEGER NOT NULL DEFAULT 0,
    last_replayed_at TEXT,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_conduit_dead_letters_status ON conduit_dead_letters (status, created_at);
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

package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the hume queue (SQLite).
var Migrations = migrate.NewGroup("hume")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_hume_queue",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hume_queue (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    hume_id     TEXT NOT NULL,
    received_at TEXT NOT NULL,
    sent        INTEGER NOT NULL DEFAULT 0,
    sent_at     TEXT,
    payload     TEXT NOT NULL
)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hume_queue`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "add_hume_queue_attempts",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				if _, err := exec.Exec(ctx,
					`ALTER TABLE hume_queue ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`); err != nil {
					return err
				}
				_, err := exec.Exec(ctx,
					`ALTER TABLE hume_queue ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				if _, err := exec.Exec(ctx, `ALTER TABLE hume_queue DROP COLUMN last_error`); err != nil {
					return err
				}
				_, err := exec.Exec(ctx, `ALTER TABLE hume_queue DROP COLUMN attempts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "index_hume_queue",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_hume_queue_pending ON hume_queue (sent, id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_hume_queue_hume_id ON hume_queue (hume_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP INDEX IF EXISTS idx_hume_queue_hume_id;
DROP INDEX IF EXISTS idx_hume_queue_pending;
`)
				return err
			},
		},
	)
}

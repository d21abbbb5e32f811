// Package sqlite implements the durable queue on an embedded SQLite database
// through the grove ORM.
//
// Open runs the database in WAL mode with synchronous=FULL, so a record is on
// disk when Enqueue returns. A single connection serializes every writer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/hume"
	"github.com/xraph/hume/id"
	"github.com/xraph/hume/message"
	"github.com/xraph/hume/queue"
	humestore "github.com/xraph/hume/store"
)

// compile-time interface check
var _ humestore.Store = (*Store)(nil)

// pragmas are applied by the driver on every new connection.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("hume/sqlite: create db directory: %w", err)
		}
	}

	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, DSN(path), driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("hume/sqlite: open %s: %w", path, err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("hume/sqlite: open %s: %w", path, err)
	}
	return New(db), nil
}

// DSN returns the driver DSN for a database file with the durability pragmas.
func DSN(path string) string {
	return path + "?" + pragmas
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the queue table and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("hume/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("hume/sqlite: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Queue Store ====================

func (s *Store) Enqueue(ctx context.Context, msg *message.EventMessage) (int64, error) {
	payload, err := msg.Encode()
	if err != nil {
		return 0, fmt.Errorf("hume/sqlite: encode message: %w", err)
	}

	m := &queueModel{
		HumeID:     id.NewHumeID().String(),
		ReceivedAt: formatTime(now()),
		Payload:    string(payload),
	}
	res, err := s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListPending(ctx context.Context) ([]*queue.Record, error) {
	var models []queueModel
	if err := s.sdb.NewSelect(&models).
		Where("sent = 0").
		OrderExpr("id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*queue.Record, len(models))
	for i := range models {
		r, err := fromQueueModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) MarkSent(ctx context.Context, recordID int64) error {
	res, err := s.sdb.NewUpdate((*queueModel)(nil)).
		Set("sent = ?", true).
		Set("sent_at = ?", formatTime(now())).
		Where("id = ?", recordID).
		Where("sent = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.exists(ctx, recordID)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, recordID int64, reason string) error {
	res, err := s.sdb.NewUpdate((*queueModel)(nil)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", reason).
		Where("id = ?", recordID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hume.ErrRecordNotFound
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, recordID int64) (*queue.Record, error) {
	m := new(queueModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", recordID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hume.ErrRecordNotFound
		}
		return nil, err
	}
	return fromQueueModel(m)
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	return s.sdb.NewSelect((*queueModel)(nil)).
		Where("sent = 0").
		Count(ctx)
}

func (s *Store) PruneSent(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*queueModel)(nil)).
		Where("sent = 1").
		Where("received_at < ?", formatTime(before)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) exists(ctx context.Context, recordID int64) error {
	n, err := s.sdb.NewSelect((*queueModel)(nil)).
		Where("id = ?", recordID).
		Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return hume.ErrRecordNotFound
	}
	return nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Package postgres inserts humes into a PostgreSQL table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "postgres"

// Plugin keeps one pool per DSN and remembers which tables exist.
type Plugin struct {
	mu     sync.Mutex
	pools  map[string]*pgxpool.Pool
	tables map[string]bool
}

// New creates the postgres plugin.
func New() *Plugin {
	return &Plugin{
		pools:  make(map[string]*pgxpool.Pool),
		tables: make(map[string]bool),
	}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"dsn":     "postgres://localhost:5432/hume?sslmode=disable",
		"table":   "humes",
		"timeout": 5,
	}
}

// CreateTableSQL returns the DDL for the hume table.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    hume_id     TEXT PRIMARY KEY,
    received_at TIMESTAMPTZ NOT NULL,
    relay       TEXT NOT NULL DEFAULT '',
    hostname    TEXT NOT NULL,
    task        TEXT NOT NULL DEFAULT '',
    level       TEXT NOT NULL,
    msg         TEXT NOT NULL DEFAULT '',
    tags        TEXT[] NOT NULL DEFAULT '{}',
    payload     JSONB NOT NULL
)`, pgx.Identifier{table}.Sanitize())
}

// InsertSQL returns the insert statement. Redelivery of a hume is a no-op.
func InsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (hume_id, received_at, relay, hostname, task, level, msg, tags, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (hume_id) DO NOTHING`, pgx.Identifier{table}.Sanitize())
}

func (p *Plugin) pool(ctx context.Context, dsn, table string) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[dsn]
	if !ok {
		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse dsn: %w", err)
		}
		cfg.MaxConns = 4
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: connect: %w", err)
		}
		p.pools[dsn] = pool
	}

	key := dsn + "|" + table
	if !p.tables[key] {
		if _, err := pool.Exec(ctx, CreateTableSQL(table)); err != nil {
			return nil, fmt.Errorf("postgres: create table: %w", err)
		}
		p.tables[key] = true
	}
	return pool, nil
}

// Send inserts one row per hume.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	table := cfg.String("table")
	pool, err := p.pool(ctx, cfg.String("dsn"), table)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(pkt.Message)
	if err != nil {
		return fmt.Errorf("postgres: marshal: %w", err)
	}
	m := pkt.Message
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err = pool.Exec(ctx, InsertSQL(table),
		pkt.HumeID, pkt.ReceivedAt, pkt.Relay, m.Hostname, m.Task, string(m.Level), m.Msg, tags, payload)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

// Close closes every pool.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for dsn, pool := range p.pools {
		pool.Close()
		delete(p.pools, dsn)
	}
	clear(p.tables)
	return nil
}

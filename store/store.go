// Package store defines the aggregate Store interface for hume persistence.
package store

import (
	"context"

	"github.com/xraph/hume/queue"
)

// Store is the aggregate persistence interface.
type Store interface {
	queue.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

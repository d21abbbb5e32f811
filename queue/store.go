package queue

import (
	"context"
	"time"

	"github.com/xraph/hume/message"
)

// Store is the durable queue contract.
//
// Enqueue must not return until the record is committed. Implementations
// serialize writers so the listener and the delivery worker never observe a
// torn write.
type Store interface {
	// Enqueue appends msg and returns its record ID.
	Enqueue(ctx context.Context, msg *message.EventMessage) (int64, error)

	// ListPending returns every unsent record in insertion order.
	ListPending(ctx context.Context) ([]*Record, error)

	// MarkSent flags a record as delivered. Marking twice is a no-op.
	MarkSent(ctx context.Context, recordID int64) error

	// MarkFailed records a failed delivery pass. The record stays pending.
	MarkFailed(ctx context.Context, recordID int64, reason string) error

	// GetRecord returns a single record.
	GetRecord(ctx context.Context, recordID int64) (*Record, error)

	// CountPending returns the number of unsent records.
	CountPending(ctx context.Context) (int64, error)

	// PruneSent deletes sent records received before the cutoff.
	PruneSent(ctx context.Context, before time.Time) (int64, error)
}

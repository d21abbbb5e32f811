// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/xraph/hume"
	"github.com/xraph/hume/id"
	"github.com/xraph/hume/message"
	"github.com/xraph/hume/queue"
	humestore "github.com/xraph/hume/store"
)

// compile-time interface check.
var _ humestore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
// Nothing survives process exit.
type Store struct {
	mu sync.RWMutex

	records []*queue.Record // insertion order
	byID    map[int64]*queue.Record
	nextID  int64

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		byID:   make(map[int64]*queue.Record),
		nextID: 1,
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hume.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// queue.Store
// ──────────────────────────────────────────────────

// Enqueue appends msg.
func (s *Store) Enqueue(_ context.Context, msg *message.EventMessage) (int64, error) {
	payload, err := msg.Encode()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, hume.ErrStoreClosed
	}

	r := &queue.Record{
		ID:         s.nextID,
		HumeID:     id.NewHumeID(),
		ReceivedAt: time.Now().UTC(),
		Payload:    json.RawMessage(payload),
	}
	s.nextID++
	s.records = append(s.records, r)
	s.byID[r.ID] = r
	return r.ID, nil
}

// ListPending returns unsent records in insertion order.
func (s *Store) ListPending(_ context.Context) ([]*queue.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hume.ErrStoreClosed
	}

	var out []*queue.Record
	for _, r := range s.records {
		if !r.Sent {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

// MarkSent flags a record as delivered. The first SentAt is kept.
func (s *Store) MarkSent(_ context.Context, recordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hume.ErrStoreClosed
	}

	r, ok := s.byID[recordID]
	if !ok {
		return hume.ErrRecordNotFound
	}
	if r.Sent {
		return nil
	}
	now := time.Now().UTC()
	r.Sent = true
	r.SentAt = &now
	return nil
}

// MarkFailed bumps the attempt counter.
func (s *Store) MarkFailed(_ context.Context, recordID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hume.ErrStoreClosed
	}

	r, ok := s.byID[recordID]
	if !ok {
		return hume.ErrRecordNotFound
	}
	r.Attempts++
	r.LastError = reason
	return nil
}

// GetRecord returns a copy of a record.
func (s *Store) GetRecord(_ context.Context, recordID int64) (*queue.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hume.ErrStoreClosed
	}

	r, ok := s.byID[recordID]
	if !ok {
		return nil, hume.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

// CountPending returns the number of unsent records.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, hume.ErrStoreClosed
	}

	var n int64
	for _, r := range s.records {
		if !r.Sent {
			n++
		}
	}
	return n, nil
}

// PruneSent removes sent records received before the cutoff.
func (s *Store) PruneSent(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, hume.ErrStoreClosed
	}

	kept := s.records[:0]
	var pruned int64
	for _, r := range s.records {
		if r.Sent && r.ReceivedAt.Before(before) {
			delete(s.byID, r.ID)
			pruned++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return pruned, nil
}

func copyRecord(r *queue.Record) *queue.Record {
	cp := *r
	cp.Payload = append(json.RawMessage(nil), r.Payload...)
	if r.SentAt != nil {
		t := *r.SentAt
		cp.SentAt = &t
	}
	return &cp
}

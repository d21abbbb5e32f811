// Package status tracks the last hume seen per (hostname, task).
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/xraph/hume/message"
)

// Key identifies a task on a host.
type Key struct {
	Hostname string `json:"hostname"`
	Task     string `json:"task"`
}

// Entry is the in-memory status of one key. It lives for the process
// lifetime only.
type Entry struct {
	Key
	LastTimestamp time.Time     `json:"last_timestamp"`
	LastLevel     message.Level `json:"last_level"`
	Count         uint64        `json:"count"`
}

// Board holds one Entry per key. Fields of an entry change together under
// the write lock.
type Board struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{entries: make(map[Key]*Entry)}
}

// Update records an accepted hume. The message's own timestamp is used when
// it parses; otherwise receivedAt.
func (b *Board) Update(msg *message.EventMessage, receivedAt time.Time) Entry {
	ts := receivedAt
	if t, ok := msg.Time(); ok {
		ts = t
	}
	k := Key{Hostname: msg.Hostname, Task: msg.Task}

	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[k]
	if !ok {
		e = &Entry{Key: k}
		b.entries[k] = e
	}
	e.LastTimestamp = ts
	e.LastLevel = msg.Level
	e.Count++
	return *e
}

// Get returns the entry for a key.
func (b *Board) Get(hostname, task string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[Key{Hostname: hostname, Task: task}]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns every entry sorted by hostname then task.
func (b *Board) Snapshot() []Entry {
	b.mu.RLock()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Hostname != out[j].Hostname {
			return out[i].Hostname < out[j].Hostname
		}
		return out[i].Task < out[j].Task
	})
	return out
}

// Len returns the number of keys.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

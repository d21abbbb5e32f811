// Package queue defines the durable queue of accepted humes.
package queue

import (
	"encoding/json"
	"time"

	"github.com/xraph/hume/id"
	"github.com/xraph/hume/message"
)

// Record is a persisted hume awaiting or past delivery.
type Record struct {
	// ID is assigned by the store and increases with insertion order.
	ID int64 `json:"id"`

	// HumeID is the external identifier handed to sinks for de-duplication.
	HumeID id.ID `json:"hume_id"`

	// ReceivedAt is when the daemon accepted the message.
	ReceivedAt time.Time `json:"received_at"`

	Sent   bool       `json:"sent"`
	SentAt *time.Time `json:"sent_at,omitempty"`

	// Attempts counts failed delivery passes.
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`

	// Payload is the serialized EventMessage.
	Payload json.RawMessage `json:"payload"`
}

// Message decodes the payload.
func (r *Record) Message() (*message.EventMessage, error) {
	return message.Decode(r.Payload)
}

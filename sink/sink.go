// Package sink defines the transfer plugin contract and its registry.
//
// A plugin is a named delivery backend with a documented default
// configuration. Send returns nil once the backend has accepted the packet.
// It must not panic on transient failures and must not retry internally:
// the delivery worker owns retries and may call Send again with the same
// packet.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xraph/hume/message"
)

// Plugin is a transfer method.
type Plugin interface {
	// Name is the stable identity used in configuration.
	Name() string

	// DefaultConfig documents every option and its default value.
	DefaultConfig() Config

	// Send delivers one packet.
	Send(ctx context.Context, pkt Packet, cfg Config) error
}

// Packet is what a plugin receives for one queue record.
type Packet struct {
	RecordID   int64
	HumeID     string
	ReceivedAt time.Time

	// Relay is the hostname of the daemon that accepted the hume.
	Relay string

	Message *message.EventMessage

	// Payload is the persisted encoding of Message.
	Payload json.RawMessage
}

// Envelope is the JSON document network sinks transmit.
type Envelope struct {
	HumeID     string                `json:"hume_id"`
	ReceivedAt time.Time             `json:"received_at"`
	Relay      string                `json:"relay,omitempty"`
	Hume       *message.EventMessage `json:"hume"`
}

// Envelope wraps the message with its delivery metadata.
func (p Packet) Envelope() Envelope {
	return Envelope{
		HumeID:     p.HumeID,
		ReceivedAt: p.ReceivedAt,
		Relay:      p.Relay,
		Hume:       p.Message,
	}
}

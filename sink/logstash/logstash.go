// Package logstash ships humes to a Logstash json_lines input.
package logstash

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/xraph/hume/message"
	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "logstash"

// Plugin writes one JSON document per line over TCP or UDP.
type Plugin struct{}

// New creates the logstash plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"host":    "localhost",
		"port":    5959,
		"proto":   "tcp",
		"timeout": 5,
	}
}

// Event is the document sent to Logstash.
type Event struct {
	Timestamp     time.Time        `json:"@timestamp"`
	Version       string           `json:"@version"`
	Message       string           `json:"message"`
	Level         string           `json:"level"`
	Host          string           `json:"host"`
	HumeID        string           `json:"hume_id"`
	Hostname      string           `json:"hostname"`
	Task          string           `json:"task"`
	Tags          []string         `json:"tags"`
	HumeLevel     message.Level    `json:"humelevel"`
	HumeCmd       message.Command  `json:"humecmd"`
	HumeTimestamp string           `json:"timestamp,omitempty"`
	Process       *message.Process `json:"process,omitempty"`
	Extra         map[string]any   `json:"extra,omitempty"`
}

var levelNames = map[int]string{2: "CRITICAL", 3: "ERROR", 4: "WARNING", 6: "INFO", 7: "DEBUG"}

// NewEvent builds the Logstash document for pkt.
func NewEvent(pkt sink.Packet) Event {
	m := pkt.Message
	return Event{
		Timestamp:     pkt.ReceivedAt.UTC(),
		Version:       "1",
		Message:       fmt.Sprintf("hume(%s): %s", pkt.Relay, m.Msg),
		Level:         levelNames[m.Level.Severity()],
		Host:          pkt.Relay,
		HumeID:        pkt.HumeID,
		Hostname:      m.Hostname,
		Task:          m.Task,
		Tags:          m.Tags,
		HumeLevel:     m.Level,
		HumeCmd:       m.Command,
		HumeTimestamp: m.Timestamp,
		Process:       m.Process,
		Extra:         m.Extra,
	}
}

// Send dials, writes the line and closes. Success means the write completed.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	line, err := json.Marshal(NewEvent(pkt))
	if err != nil {
		return fmt.Errorf("logstash: encode: %w", err)
	}
	line = append(line, '\n')

	timeout := cfg.Duration("timeout")
	addr := net.JoinHostPort(cfg.String("host"), strconv.Itoa(cfg.Int("port")))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, cfg.String("proto"), addr)
	if err != nil {
		return fmt.Errorf("logstash: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("logstash: write: %w", err)
	}
	return nil
}

// Package message defines the hume wire format and its validator.
//
// A hume is a small structured event emitted by scripts and tools. The
// daemon accepts it over the network, validates it, and persists the
// re-encoded message (without the sender's auth token) in the queue.
package message

import (
	"encoding/json"
	"strings"
	"time"
)

// SupportedVersions lists the schema versions the daemon accepts.
var SupportedVersions = []int{1}

// CurrentVersion is the schema version produced by current clients.
const CurrentVersion = 1

// Level is the severity of a hume.
type Level string

// Levels understood by the daemon.
const (
	LevelOK       Level = "ok"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
	LevelDebug    Level = "debug"
)

// Levels returns every valid level in severity order.
func Levels() []Level {
	return []Level{LevelOK, LevelInfo, LevelWarning, LevelError, LevelCritical, LevelDebug}
}

// ParseLevel resolves a level name. The legacy "warn" spelling maps to warning.
func ParseLevel(s string) (Level, bool) {
	if s == "warn" {
		return LevelWarning, true
	}
	l := Level(s)
	return l, l.Valid()
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelOK, LevelInfo, LevelWarning, LevelError, LevelCritical, LevelDebug:
		return true
	}
	return false
}

// Severity maps the level to an RFC 5424 severity (2 crit .. 7 debug).
// ok and info both map to informational.
func (l Level) Severity() int {
	switch l {
	case LevelWarning:
		return 4
	case LevelError:
		return 3
	case LevelCritical:
		return 2
	case LevelDebug:
		return 7
	default:
		return 6
	}
}

// Command is a control instruction for downstream aggregators.
type Command string

// Commands understood by the daemon. CommandNone is the default.
const (
	CommandNone         Command = ""
	CommandCounterStart Command = "counter-start"
	CommandCounterPause Command = "counter-pause"
	CommandCounterStop  Command = "counter-stop"
	CommandCounterReset Command = "counter-reset"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CommandNone, CommandCounterStart, CommandCounterPause, CommandCounterStop, CommandCounterReset:
		return true
	}
	return false
}

// ProcessEntry is one ancestor in the sender's process tree.
type ProcessEntry struct {
	PID     int      `json:"pid"`
	Cmdline []string `json:"cmdline"`
	Order   int      `json:"order"`
}

// Process carries the optional call-stack of the sender.
type Process struct {
	Tree       []ProcessEntry `json:"tree,omitempty"`
	LineNumber int            `json:"line_number,omitempty"`
}

// EventMessage is a validated hume.
type EventMessage struct {
	SchemaVersion int            `json:"schema_version"`
	Hostname      string         `json:"hostname"`
	Level         Level          `json:"level"`
	Msg           string         `json:"msg"`
	Task          string         `json:"task"`
	Tags          []string       `json:"tags"`
	Command       Command        `json:"command"`
	Timestamp     string         `json:"timestamp,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
	Process       *Process       `json:"process,omitempty"`
}

// FillDefaults resolves every optional field to its documented default.
func (m *EventMessage) FillDefaults() {
	if m.Level == "" {
		m.Level = LevelInfo
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
}

// Encode serializes the message for persistence.
func (m *EventMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a persisted message.
func Decode(data []byte) (*EventMessage, error) {
	var m EventMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.FillDefaults()
	return &m, nil
}

// TagString joins tags with commas, or returns "None" when there are none.
func (m *EventMessage) TagString() string {
	if len(m.Tags) == 0 {
		return "None"
	}
	return strings.Join(m.Tags, ",")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Time parses the client timestamp. Timestamps without a zone are local time.
func (m *EventMessage) Time() (time.Time, bool) {
	if m.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, m.Timestamp, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

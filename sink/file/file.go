// Package file appends humes as JSON lines to a local file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "file"

// Plugin writes one JSON line per packet.
type Plugin struct {
	mu sync.Mutex
}

// New creates the file plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{"path": "humed.log"}
}

// Send appends the message to the configured path, creating parent
// directories as needed.
func (p *Plugin) Send(_ context.Context, pkt sink.Packet, cfg sink.Config) error {
	path := cfg.String("path")
	if path == "" {
		return fmt.Errorf("file: path is not configured")
	}

	line, err := json.Marshal(pkt.Message)
	if err != nil {
		return fmt.Errorf("file: encode: %w", err)
	}
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("file: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("file: open %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("file: write %s: %w", path, err)
	}
	return f.Close()
}

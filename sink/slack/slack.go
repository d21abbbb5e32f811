// Package slack posts humes to Slack incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/xraph/hume/message"
	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "slack"

// Plugin renders a Slack message and posts it to a level-specific webhook.
type Plugin struct {
	client *http.Client
}

// New creates the slack plugin.
func New() *Plugin {
	return &Plugin{client: &http.Client{}}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"webhook_default":  "",
		"webhook_warning":  "",
		"webhook_error":    "",
		"webhook_critical": "",
		"webhook_debug":    "",
		"template_base":    "default",
		"templates_dir":    "/etc/humed/templates",
		"timeout":          10,
	}
}

// Webhook picks webhook_<level>, falling back to webhook_default.
// ok and info always use the default hook.
func Webhook(cfg sink.Config, level message.Level) string {
	if level != message.LevelOK && level != message.LevelInfo {
		if hook := cfg.String("webhook_" + string(level)); hook != "" {
			return hook
		}
	}
	return cfg.String("webhook_default")
}

// Send succeeds only on HTTP 200.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	hook := Webhook(cfg, pkt.Message.Level)
	if hook == "" {
		return fmt.Errorf("slack: no webhook configured for level %s", pkt.Message.Level)
	}

	var dir string
	if base := cfg.String("templates_dir"); base != "" {
		dir = filepath.Join(base, Name)
	}
	body, _ := NewRenderer(dir).Render(cfg.String("template_base"), templateData{
		Hume:       pkt.Message,
		Humed:      relayInfo{Hostname: pkt.Relay},
		HumeID:     pkt.HumeID,
		ReceivedAt: pkt.ReceivedAt,
		Summary:    pkt.Summary(),
	})

	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req) //nolint:gosec // G704: webhook URL is operator-configured.
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Package httppost delivers humes to an HTTP endpoint as JSON.
package httppost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/hume/signature"
	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "http"

const maxResponseBody = 1024

// Plugin POSTs the packet envelope to a configured URL.
type Plugin struct {
	client *http.Client
}

// New creates the http plugin.
func New() *Plugin {
	return &Plugin{client: &http.Client{}}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"url":     "http://localhost:8000/events",
		"timeout": 5,
		"secret":  "",
		"headers": map[string]any{},
	}
}

// Send succeeds on 200, 201 or 202. Any transport error or other status is a
// failure; retrying is left to the caller.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	body, err := json.Marshal(pkt.Envelope())
	if err != nil {
		return fmt.Errorf("http: marshal payload: %w", err)
	}

	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.String("url"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "humed/1.0")
	req.Header.Set("X-Hume-ID", pkt.HumeID)
	if secret := cfg.String("secret"); secret != "" {
		signature.Apply(req.Header, body, secret, time.Now())
	}
	if headers, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprint(v))
		}
	}

	resp, err := p.client.Do(req) //nolint:gosec // G704: URL is operator-configured.
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return fmt.Errorf("http: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}

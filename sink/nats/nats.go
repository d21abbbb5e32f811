// Package nats publishes humes on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "nats"

// Plugin keeps one connection per server URL.
type Plugin struct {
	mu    sync.Mutex
	conns map[string]*nats.Conn
}

// New creates the nats plugin.
func New() *Plugin {
	return &Plugin{conns: make(map[string]*nats.Conn)}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"url":              nats.DefaultURL,
		"subject":          "hume.events",
		"subject_by_level": false,
		"timeout":          5,
	}
}

// Subject returns the publish subject, optionally suffixed with the level.
func Subject(cfg sink.Config, pkt sink.Packet) string {
	subject := cfg.String("subject")
	if cfg.Bool("subject_by_level") && pkt.Message != nil {
		subject += "." + strings.ToLower(string(pkt.Message.Level))
	}
	return subject
}

func (p *Plugin) conn(cfg sink.Config) (*nats.Conn, error) {
	url := cfg.String("url")

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[url]; ok && !c.IsClosed() {
		return c, nil
	}
	c, err := nats.Connect(url,
		nats.Name("humed"),
		nats.Timeout(cfg.Duration("timeout")),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	p.conns[url] = c
	return c, nil
}

// Send publishes the envelope and flushes so the server has it on return.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	body, err := json.Marshal(pkt.Envelope())
	if err != nil {
		return fmt.Errorf("nats: marshal: %w", err)
	}
	c, err := p.conn(cfg)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(cfg, pkt))
	msg.Header.Set("Hume-Id", pkt.HumeID)
	msg.Data = body
	if err := c.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}

	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := c.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	return nil
}

// Close drains and closes every connection.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, c := range p.conns {
		c.Close()
		delete(p.conns, url)
	}
	return nil
}

// Package redis pushes humes onto a Redis list or publishes them on a channel.
package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "redis"

// Plugin keeps one client per configured URL.
type Plugin struct {
	mu      sync.Mutex
	clients map[string]*redis.Client
}

// New creates the redis plugin.
func New() *Plugin {
	return &Plugin{clients: make(map[string]*redis.Client)}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"url":      "redis://localhost:6379/0",
		"key":      "humes",
		"mode":     "list",
		"encoding": "json",
		"timeout":  5,
	}
}

func (p *Plugin) client(url string) (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[url]; ok {
		return c, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	p.clients[url] = c
	return c, nil
}

// Encode serializes the envelope as JSON or MessagePack.
func Encode(env sink.Envelope, encoding string) ([]byte, error) {
	switch encoding {
	case "", "json":
		return json.Marshal(env)
	case "msgpack":
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(env); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown encoding %q", encoding)
}

// Send RPUSHes (mode "list") or PUBLISHes (mode "publish") the envelope.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	c, err := p.client(cfg.String("url"))
	if err != nil {
		return err
	}
	body, err := Encode(pkt.Envelope(), cfg.String("encoding"))
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	key := cfg.String("key")
	switch cfg.String("mode") {
	case "", "list":
		err = c.RPush(ctx, key, body).Err()
	case "publish":
		err = c.Publish(ctx, key, body).Err()
	default:
		return fmt.Errorf("redis: unknown mode %q", cfg.String("mode"))
	}
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close closes every cached client.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for url, c := range p.clients {
		errs = append(errs, c.Close())
		delete(p.clients, url)
	}
	return errors.Join(errs...)
}

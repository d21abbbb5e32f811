// Package mongo stores humes as MongoDB documents keyed by hume id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "mongo"

// Document is the stored shape of a hume.
type Document struct {
	ID         string    `bson:"_id"`
	ReceivedAt time.Time `bson:"received_at"`
	Relay      string    `bson:"relay,omitempty"`
	Hostname   string    `bson:"hostname"`
	Task       string    `bson:"task"`
	Level      string    `bson:"level"`
	Hume       bson.M    `bson:"hume"`
}

// NewDocument converts a packet into its stored document.
func NewDocument(pkt sink.Packet) (*Document, error) {
	raw, err := json.Marshal(pkt.Message)
	if err != nil {
		return nil, err
	}
	var hume bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &hume); err != nil {
		return nil, err
	}
	return &Document{
		ID:         pkt.HumeID,
		ReceivedAt: pkt.ReceivedAt.UTC(),
		Relay:      pkt.Relay,
		Hostname:   pkt.Message.Hostname,
		Task:       pkt.Message.Task,
		Level:      string(pkt.Message.Level),
		Hume:       hume,
	}, nil
}

// Plugin keeps one client per URI.
type Plugin struct {
	mu      sync.Mutex
	clients map[string]*mongo.Client
}

// New creates the mongo plugin.
func New() *Plugin {
	return &Plugin{clients: make(map[string]*mongo.Client)}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"uri":        "mongodb://localhost:27017",
		"database":   "hume",
		"collection": "humes",
		"timeout":    5,
	}
}

func (p *Plugin) client(uri string) (*mongo.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[uri]; ok {
		return c, nil
	}
	c, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	p.clients[uri] = c
	return c, nil
}

// Send inserts the document. A duplicate hume id counts as delivered.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	doc, err := NewDocument(pkt)
	if err != nil {
		return fmt.Errorf("mongo: encode: %w", err)
	}
	c, err := p.client(cfg.String("uri"))
	if err != nil {
		return err
	}

	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	coll := c.Database(cfg.String("database")).Collection(cfg.String("collection"))
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("mongo: insert: %w", err)
	}
	return nil
}

// Close disconnects every client.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for uri, c := range p.clients {
		errs = append(errs, c.Disconnect(ctx))
		delete(p.clients, uri)
	}
	return errors.Join(errs...)
}

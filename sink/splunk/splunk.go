// Package splunk forwards humes to a Splunk HTTP Event Collector.
package splunk

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mosajjal/Go-Splunk-HTTP/splunk/v2"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "splunk"

const collectorPath = "/services/collector"

// Plugin sends one HEC event per packet.
type Plugin struct {
	channel string
}

// New creates the splunk plugin with a fresh HEC channel ID.
func New() *Plugin {
	return &Plugin{channel: uuid.New().String()}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"url":             "https://localhost:8088",
		"token":           "",
		"index":           "",
		"source":          "humed",
		"sourcetype":      "hume",
		"channel":         "",
		"timeout":         5,
		"tls_skip_verify": false,
	}
}

// Endpoint appends the collector path when it is missing.
func Endpoint(base string) string {
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, collectorPath) {
		return base
	}
	return base + collectorPath
}

// Send posts the packet envelope as the event body.
func (p *Plugin) Send(_ context.Context, pkt sink.Packet, cfg sink.Config) error {
	token := cfg.String("token")
	if token == "" {
		return fmt.Errorf("splunk: token is not configured")
	}

	channel := cfg.String("channel")
	if _, err := uuid.Parse(channel); err != nil {
		channel = p.channel
	}

	httpClient := &http.Client{
		Timeout: cfg.Duration("timeout"),
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Bool("tls_skip_verify")}, //nolint:gosec // operator opt-in
		},
	}
	client := splunk.NewClient(
		httpClient,
		Endpoint(cfg.String("url")),
		token,
		channel,
		cfg.String("source"),
		cfg.String("sourcetype"),
		cfg.String("index"),
	)

	event := &splunk.Event{
		Time:       splunk.EventTime{Time: pkt.ReceivedAt},
		Host:       pkt.Message.Hostname,
		Source:     cfg.String("source"),
		SourceType: cfg.String("sourcetype"),
		Index:      cfg.String("index"),
		Event:      pkt.Envelope(),
	}
	if err := client.LogEvents([]*splunk.Event{event}); err != nil {
		return fmt.Errorf("splunk: %w", err)
	}
	return nil
}

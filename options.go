package hume

import (
	"log/slog"
	"time"

	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/store"
)

// Option configures a Daemon instance.
type Option func(*Daemon) error

// WithConfig replaces the whole configuration. Apply it before finer options.
func WithConfig(cfg Config) Option {
	return func(d *Daemon) error {
		if cfg.Sinks == nil {
			cfg.Sinks = map[string]map[string]any{}
		}
		d.config = cfg
		return nil
	}
}

// WithStore sets the durable queue.
func WithStore(s store.Store) Option {
	return func(d *Daemon) error {
		d.store = s
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) error {
		d.logger = logger
		return nil
	}
}

// WithRegistry replaces the built-in sink registry.
func WithRegistry(r *sink.Registry) Option {
	return func(d *Daemon) error {
		d.registry = r
		return nil
	}
}

// WithEndpoint sets the ZeroMQ bind address.
func WithEndpoint(endpoint string) Option {
	return func(d *Daemon) error {
		d.config.Endpoint = endpoint
		return nil
	}
}

// WithAuthToken requires senders to present token.
func WithAuthToken(token string) Option {
	return func(d *Daemon) error {
		d.config.AuthToken = token
		return nil
	}
}

// WithSinks sets the active transfer methods, in delivery order.
func WithSinks(names ...string) Option {
	return func(d *Daemon) error {
		d.config.TransferMethods = names
		return nil
	}
}

// WithSinkConfig overrides options for one transfer method.
func WithSinkConfig(name string, opts map[string]any) Option {
	return func(d *Daemon) error {
		d.config.Sinks[name] = opts
		return nil
	}
}

// WithPollInterval sets how often the delivery worker drains without a wakeup.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Daemon) error {
		d.config.PollInterval = Duration(interval)
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for the in-flight drain on shutdown.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(d *Daemon) error {
		d.config.ShutdownTimeout = Duration(timeout)
		return nil
	}
}

// WithMetrics enables the HTTP endpoint on addr, guarded by token if non-empty.
func WithMetrics(addr, token string) Option {
	return func(d *Daemon) error {
		d.config.Metrics = MetricsConfig{Listen: addr, Token: token}
		return nil
	}
}

// WithHostname sets the relay name stamped on packets.
func WithHostname(hostname string) Option {
	return func(d *Daemon) error {
		d.config.Hostname = hostname
		return nil
	}
}

// WithAnnounceStartup enqueues a debug hume once the listener is bound.
func WithAnnounceStartup() Option {
	return func(d *Daemon) error {
		d.config.AnnounceStartup = true
		return nil
	}
}

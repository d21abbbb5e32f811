package hume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/hume/api"
	"github.com/xraph/hume/delivery"
	"github.com/xraph/hume/id"
	"github.com/xraph/hume/listener"
	"github.com/xraph/hume/message"
	"github.com/xraph/hume/observability"
	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/sink/builtin"
	"github.com/xraph/hume/status"
	"github.com/xraph/hume/store"
)

// Daemon is the hume relay: listener, durable queue, delivery worker and
// metrics endpoint.
type Daemon struct {
	config    Config
	store     store.Store
	registry  *sink.Registry
	targets   []sink.Target
	validator *message.Validator
	board     *status.Board
	engine    *delivery.Engine
	listener  *listener.Listener
	handler   *api.Handler
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	promReg   *prometheus.Registry
	hostname  string
	instance  id.ID
	logger    *slog.Logger

	mu          sync.Mutex
	metricsAddr net.Addr
}

// New creates a Daemon with the given options.
func New(opts ...Option) (*Daemon, error) {
	d := &Daemon{
		config:   DefaultConfig(),
		instance: id.NewInstanceID(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.store == nil {
		return nil, ErrNoStore
	}
	if d.registry == nil {
		r, err := builtin.NewRegistry()
		if err != nil {
			return nil, err
		}
		d.registry = r
	}
	if len(d.config.TransferMethods) == 0 {
		return nil, ErrNoSinks
	}
	targets, err := d.registry.Resolve(d.config.TransferMethods, d.sinkOverrides())
	if err != nil {
		return nil, err
	}
	d.targets = targets

	d.hostname = d.config.Hostname
	if d.hostname == "" {
		d.hostname, _ = os.Hostname()
	}

	d.wireServices()
	return d, nil
}

// sinkOverrides returns the per-sink options with the daemon-wide
// templates_dir filled in where a sink understands it.
func (d *Daemon) sinkOverrides() map[string]map[string]any {
	out := make(map[string]map[string]any, len(d.config.Sinks))
	for _, name := range d.config.TransferMethods {
		opts := maps.Clone(d.config.Sinks[name])
		if opts == nil {
			opts = map[string]any{}
		}
		if p, ok := d.registry.Get(name); ok && d.config.TemplatesDir != "" {
			if _, understands := p.DefaultConfig()["templates_dir"]; understands {
				if _, set := opts["templates_dir"]; !set {
					opts["templates_dir"] = d.config.TemplatesDir
				}
			}
		}
		out[name] = opts
	}
	return out
}

// wireServices initializes the internal services after options have been applied.
func (d *Daemon) wireServices() {
	d.validator = message.NewValidator(d.config.AuthToken)
	d.board = status.NewBoard()

	d.promReg = prometheus.NewRegistry()
	d.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		status.NewCollector(d.board),
	)
	d.metrics = observability.NewMetrics(d.promReg)
	d.tracer = observability.NewTracer()

	d.engine = delivery.NewEngine(d.store, d.targets, delivery.EngineConfig{
		PollInterval: d.config.PollInterval.D(),
		Retention:    d.config.Retention.D(),
		Relay:        d.hostname,
		Metrics:      d.metrics,
		Tracer:       d.tracer,
	}, d.logger)

	d.listener = listener.New(d.config.Endpoint, d, d.logger)
	d.handler = api.NewHandler(d.store, d.board, d.promReg, d.config.Metrics.Token, d.logger)
}

// Submit is the accept path: validate, persist, update status, wake the
// worker. It returns nil only once the hume is committed.
func (d *Daemon) Submit(ctx context.Context, raw []byte) (err error) {
	ctx, span := d.tracer.StartAcceptSpan(ctx, len(raw))
	start := time.Now()
	defer func() { d.tracer.EndSpan(span, time.Since(start).Milliseconds(), err) }()

	msg, err := d.validator.Validate(raw)
	if err != nil {
		d.metrics.RecordRejected(message.Reason(err))
		return err
	}

	recordID, err := d.store.Enqueue(ctx, msg)
	if err != nil {
		d.metrics.RecordRejected("storage_failure")
		d.logger.ErrorContext(ctx, "enqueue failed", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	d.board.Update(msg, time.Now().UTC())
	d.metrics.RecordAccepted()
	d.engine.Notify()

	d.logger.DebugContext(ctx, "hume accepted",
		"record_id", recordID,
		"hostname", msg.Hostname,
		"task", msg.Task,
		"level", msg.Level,
	)
	return nil
}

// Run migrates the store, then serves until ctx is cancelled. On return the
// worker has finished its in-flight drain (bounded by ShutdownTimeout) and
// the sinks and the store are closed.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	d.engine.Start(ctx)
	defer d.shutdown()

	d.logger.InfoContext(ctx, "humed starting",
		"instance", d.instance.String(),
		"endpoint", d.config.Endpoint,
		"transfer_methods", d.config.TransferMethods,
	)

	g, gctx := errgroup.WithContext(ctx)

	if addr := d.config.Metrics.Listen; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("hume: metrics listen %s: %w", addr, err)
		}
		d.mu.Lock()
		d.metricsAddr = ln.Addr()
		d.mu.Unlock()

		srv := &http.Server{Handler: d.handler, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			d.logger.InfoContext(gctx, "metrics endpoint listening", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("hume: metrics serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error { return d.listener.Run(gctx) })

	if d.config.AnnounceStartup {
		g.Go(func() error {
			select {
			case <-d.listener.Ready():
				d.announce(gctx)
			case <-gctx.Done():
			}
			return nil
		})
	}

	return g.Wait()
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout.D())
	defer cancel()

	if err := d.engine.Stop(ctx); err != nil {
		d.logger.Warn("delivery worker did not finish before shutdown timeout", "error", err)
	}
	if err := d.registry.Close(); err != nil {
		d.logger.Warn("closing sinks", "error", err)
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn("closing store", "error", err)
	}
	d.logger.Info("humed stopped")
}

// announce enqueues the startup hume on the debug level.
func (d *Daemon) announce(ctx context.Context) {
	msg := &message.EventMessage{
		SchemaVersion: message.CurrentVersion,
		Hostname:      d.hostname,
		Level:         message.LevelDebug,
		Msg:           "Humed is ready to serve",
		Task:          "HUMED_STARTUP",
		Timestamp:     time.Now().Format("2006-01-02T15:04:05.000000"),
	}
	msg.FillDefaults()
	if !message.ValidHostname(msg.Hostname) {
		msg.Hostname = "localhost"
	}
	if _, err := d.store.Enqueue(ctx, msg); err != nil {
		d.logger.WarnContext(ctx, "startup announcement failed", "error", err)
		return
	}
	d.board.Update(msg, time.Now().UTC())
	d.engine.Notify()
}

// Drain runs one delivery pass immediately.
func (d *Daemon) Drain(ctx context.Context) (delivery.DrainStats, error) {
	return d.engine.Drain(ctx)
}

// Instance returns the identifier of this daemon run.
func (d *Daemon) Instance() id.ID { return d.instance }

// Board returns the per-task status board.
func (d *Daemon) Board() *status.Board { return d.board }

// Handler returns the HTTP API handler.
func (d *Daemon) Handler() http.Handler { return d.handler }

// Targets returns the resolved transfer methods in delivery order.
func (d *Daemon) Targets() []sink.Target { return d.targets }

// Ready is closed once the listener socket is bound.
func (d *Daemon) Ready() <-chan struct{} { return d.listener.Ready() }

// ListenAddr returns the bound listener address.
func (d *Daemon) ListenAddr() net.Addr { return d.listener.Addr() }

// MetricsAddr returns the bound metrics address, or nil when disabled.
func (d *Daemon) MetricsAddr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metricsAddr
}

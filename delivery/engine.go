// Package delivery implements the worker that drains the queue into sinks.
package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/hume/observability"
	"github.com/xraph/hume/queue"
	"github.com/xraph/hume/ratelimit"
	"github.com/xraph/hume/sink"
)

// EngineConfig holds engine configuration.
type EngineConfig struct {
	// PollInterval is the safety-net timer between drains.
	PollInterval time.Duration

	// Retention prunes sent records older than this. Zero keeps them.
	Retention time.Duration

	// PruneInterval is how often pruning runs when Retention is set.
	PruneInterval time.Duration

	// Relay is the hostname stamped on every packet.
	Relay string

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// DrainStats summarizes one drain.
type DrainStats struct {
	Records   int
	Delivered int
	Failed    int
}

// Engine is the single delivery worker. At most one drain runs at a time,
// so a record is never handed to a sink by two drains concurrently.
type Engine struct {
	store   queue.Store
	targets []sink.Target
	limiter *ratelimit.Limiter
	config  EngineConfig
	logger  *slog.Logger

	wake    chan struct{}
	drainMu sync.Mutex

	lastPrune time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine for the given sink targets.
func NewEngine(store queue.Store, targets []sink.Target, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = time.Hour
	}
	return &Engine{
		store:   store,
		targets: targets,
		limiter: ratelimit.New(),
		config:  cfg,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Start begins the drain loop. The first drain runs immediately so records
// left over from a previous run are picked up.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight drain, or until ctx is done.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify wakes the worker. It never blocks; wakeups coalesce.
func (e *Engine) Notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	e.runDrain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-ticker.C:
			e.prune(ctx)
		}
		// A wake or tick can win the select against cancellation.
		if ctx.Err() != nil {
			return
		}
		e.runDrain(ctx)
	}
}

// runDrain drains on a context detached from cancellation so shutdown waits
// for the pass to finish.
func (e *Engine) runDrain(ctx context.Context) {
	stats, err := e.Drain(context.WithoutCancel(ctx))
	if err != nil {
		e.logger.ErrorContext(ctx, "drain failed", "error", err)
		return
	}
	if stats.Records > 0 {
		e.logger.DebugContext(ctx, "drain complete",
			"records", stats.Records, "delivered", stats.Delivered, "failed", stats.Failed)
	}
}

// Drain makes one pass over every pending record in insertion order.
// Records enqueued during the pass wait for the next one.
func (e *Engine) Drain(ctx context.Context) (DrainStats, error) {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	var stats DrainStats
	records, err := e.store.ListPending(ctx)
	if err != nil {
		return stats, err
	}

	for _, rec := range records {
		stats.Records++
		if e.process(ctx, rec) {
			stats.Delivered++
		} else {
			stats.Failed++
		}
	}

	if e.config.Metrics != nil {
		if n, err := e.store.CountPending(ctx); err == nil {
			e.config.Metrics.SetPending(n)
		}
	}
	return stats, nil
}

func (e *Engine) prune(ctx context.Context) {
	if e.config.Retention <= 0 || time.Since(e.lastPrune) < e.config.PruneInterval {
		return
	}
	e.lastPrune = time.Now()

	n, err := e.store.PruneSent(ctx, time.Now().UTC().Add(-e.config.Retention))
	if err != nil {
		e.logger.ErrorContext(ctx, "prune failed", "error", err)
		return
	}
	if n > 0 {
		e.logger.InfoContext(ctx, "pruned sent records", "count", n)
	}
}

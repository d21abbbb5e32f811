package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/hume/queue"
	"github.com/xraph/hume/sink"
)

// Delivery outcomes, used as the status metric label.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// process delivers one record to every target and reports whether the
// record was marked sent.
func (e *Engine) process(ctx context.Context, rec *queue.Record) bool {
	msg, err := rec.Message()
	if err != nil {
		e.logger.ErrorContext(ctx, "decode record failed", "record_id", rec.ID, "error", err)
		e.markFailed(ctx, rec, err.Error())
		return false
	}

	pkt := sink.Packet{
		RecordID:   rec.ID,
		HumeID:     rec.HumeID.String(),
		ReceivedAt: rec.ReceivedAt,
		Relay:      e.config.Relay,
		Message:    msg,
		Payload:    rec.Payload,
	}

	var failures []string
	for _, t := range e.targets {
		if err := e.deliver(ctx, t, pkt); err != nil {
			e.logger.WarnContext(ctx, "sink failed",
				"record_id", rec.ID, "hume_id", pkt.HumeID, "sink", t.Name(),
				"attempt", rec.Attempts+1, "error", err)
			failures = append(failures, t.Name()+": "+err.Error())
		}
	}

	if len(failures) > 0 {
		e.markFailed(ctx, rec, strings.Join(failures, "; "))
		return false
	}

	if err := e.store.MarkSent(ctx, rec.ID); err != nil {
		// The record stays pending and is delivered again next pass.
		e.logger.ErrorContext(ctx, "mark sent failed", "record_id", rec.ID, "error", err)
		return false
	}
	e.logger.DebugContext(ctx, "delivered", "record_id", rec.ID, "hume_id", pkt.HumeID)
	return true
}

func (e *Engine) markFailed(ctx context.Context, rec *queue.Record, reason string) {
	if err := e.store.MarkFailed(ctx, rec.ID, reason); err != nil {
		e.logger.ErrorContext(ctx, "mark failed failed", "record_id", rec.ID, "error", err)
	}
}

// deliver sends one packet to one target, honouring its rate limit.
func (e *Engine) deliver(ctx context.Context, t sink.Target, pkt sink.Packet) (err error) {
	if err := e.limiter.Wait(ctx, t.Name(), t.Config.Float("rate_limit")); err != nil {
		return err
	}

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, pkt.RecordID, pkt.HumeID, t.Name())
	}

	start := time.Now()
	defer func() {
		latency := time.Since(start)
		status := StatusDelivered
		if err != nil {
			status = StatusFailed
		}
		e.config.Metrics.RecordDelivery(t.Name(), status, latency.Seconds())
		if span != nil {
			e.config.Tracer.EndSpan(span, latency.Milliseconds(), err)
		}
	}()

	return send(ctx, t, pkt)
}

var errPanic = errors.New("sink panicked")

// send calls the plugin, turning a panic into an error.
func send(ctx context.Context, t sink.Target, pkt sink.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return t.Plugin.Send(ctx, pkt, t.Config)
}

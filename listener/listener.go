// Package listener accepts humes on a ZeroMQ REP socket.
//
// Each request carries one JSON-encoded hume. The reply is "OK" once the
// hume is persisted, or "ERROR: <reason>" otherwise. Exactly one reply is
// sent per request.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// ReplyOK acknowledges a persisted hume.
const ReplyOK = "OK"

// ErrReply is returned by Run when a reply cannot be sent. The peer is left
// waiting, so the loop stops.
var ErrReply = errors.New("listener: reply failed")

// Acceptor validates and persists one raw request.
type Acceptor interface {
	Submit(ctx context.Context, raw []byte) error
}

// Listener owns the REP socket's receive/reply loop.
type Listener struct {
	endpoint string
	acceptor Acceptor
	logger   *slog.Logger

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// New creates a listener bound to endpoint, e.g. "tcp://127.0.0.1:1984".
func New(endpoint string, acceptor Acceptor, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		endpoint: endpoint,
		acceptor: acceptor,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the socket is bound.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Addr returns the bound address, or nil before Ready.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Reply formats the response for a Submit result.
func Reply(err error) string {
	if err == nil {
		return ReplyOK
	}
	return "ERROR: " + err.Error()
}

// Run binds the socket and serves until ctx is cancelled. Cancellation
// unblocks a pending receive.
func (l *Listener) Run(ctx context.Context) error {
	sock := zmq4.NewRep(ctx)
	defer sock.Close()

	if err := sock.Listen(l.endpoint); err != nil {
		return fmt.Errorf("listener: bind %s: %w", l.endpoint, err)
	}
	l.mu.Lock()
	l.addr = sock.Addr()
	l.mu.Unlock()
	close(l.ready)
	l.logger.InfoContext(ctx, "listening", "endpoint", l.endpoint)

	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A malformed envelope from one peer has no reply slot; drop it.
			l.logger.WarnContext(ctx, "receive failed", "error", err)
			continue
		}

		reply := l.handle(ctx, msg.Bytes())
		if err := sock.Send(zmq4.NewMsgString(reply)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrReply, err)
		}
	}
}

func (l *Listener) handle(ctx context.Context, raw []byte) string {
	err := l.acceptor.Submit(ctx, raw)
	if err != nil {
		l.logger.WarnContext(ctx, "hume rejected", "bytes", len(raw), "error", err)
	}
	return Reply(err)
}

package listener_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume/listener"
)

type fakeAcceptor struct {
	mu   sync.Mutex
	got  [][]byte
	fail error
}

func (f *fakeAcceptor) Submit(_ context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, append([]byte(nil), raw...))
	return f.fail
}

func start(t *testing.T, acc listener.Acceptor) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := listener.New("tcp://127.0.0.1:0", acc, nil)

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	select {
	case <-l.Ready():
	case err := <-errc:
		cancel()
		t.Fatalf("listener exited early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("listener never became ready")
	}
	return "tcp://" + l.Addr().String(), cancel, errc
}

func request(t *testing.T, endpoint, body string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := zmq4.NewReq(ctx)
	defer req.Close()
	require.NoError(t, req.Dial(endpoint))
	require.NoError(t, req.Send(zmq4.NewMsgString(body)))

	reply, err := req.Recv()
	require.NoError(t, err)
	return string(reply.Bytes())
}

func TestListenerRepliesOK(t *testing.T) {
	acc := &fakeAcceptor{}
	endpoint, cancel, errc := start(t, acc)

	reply := request(t, endpoint, `{"schema_version":1,"hostname":"example.com"}`)
	assert.Equal(t, listener.ReplyOK, reply)

	reply = request(t, endpoint, `{"schema_version":1,"hostname":"example.org"}`)
	assert.Equal(t, listener.ReplyOK, reply)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop on cancel")
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	require.Len(t, acc.got, 2)
	assert.JSONEq(t, `{"schema_version":1,"hostname":"example.com"}`, string(acc.got[0]))
}

func TestListenerRepliesError(t *testing.T) {
	acc := &fakeAcceptor{fail: errors.New("unsupported schema version: 999")}
	endpoint, cancel, _ := start(t, acc)
	defer cancel()

	reply := request(t, endpoint, `{"schema_version":999}`)
	assert.Equal(t, "ERROR: unsupported schema version: 999", reply)
}

func TestReply(t *testing.T) {
	assert.Equal(t, "OK", listener.Reply(nil))
	assert.Equal(t, "ERROR: storage failure", listener.Reply(errors.New("storage failure")))
}

func TestListenerBindFailure(t *testing.T) {
	l := listener.New("bogus://nowhere", &fakeAcceptor{}, nil)
	err := l.Run(context.Background())
	assert.Error(t, err)
}

func TestListenerSurvivesMalformedEnvelope(t *testing.T) {
	acc := &fakeAcceptor{}
	endpoint, cancel, errc := start(t, acc)
	defer cancel()

	ctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	dealer := zmq4.NewDealer(ctx)
	defer dealer.Close()
	require.NoError(t, dealer.Dial(endpoint))

	// A DEALER frame has no empty delimiter, so the REP socket cannot route a reply.
	require.NoError(t, dealer.Send(zmq4.NewMsgString(`{"schema_version":1}`)))

	select {
	case err := <-errc:
		t.Fatalf("listener stopped after malformed envelope: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	reply := request(t, endpoint, `{"schema_version":1,"hostname":"example.com"}`)
	assert.Equal(t, listener.ReplyOK, reply)

	select {
	case err := <-errc:
		t.Fatalf("listener stopped: %v", err)
	default:
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	require.Len(t, acc.got, 1)
	assert.JSONEq(t, `{"schema_version":1,"hostname":"example.com"}`, string(acc.got[0]))
}

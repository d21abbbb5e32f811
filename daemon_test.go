package hume_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume"
	"github.com/xraph/hume/id"
	"github.com/xraph/hume/listener"
	"github.com/xraph/hume/message"
	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/store/memory"
)

const diskFull = `{"schema_version":1,"hostname":"example.com","level":"warning","msg":"disk full","task":"BACKUP","tags":["ops"]}`

const diskFullStored = `{"schema_version":1,"hostname":"example.com","level":"warning","msg":"disk full","task":"BACKUP","tags":["ops"],"command":""}`

func newDaemon(t *testing.T, opts ...hume.Option) (*hume.Daemon, *memory.Store, string) {
	t.Helper()
	st := memory.New()
	path := filepath.Join(t.TempDir(), "sink", "humes.log")
	base := []hume.Option{
		hume.WithStore(st),
		hume.WithHostname("relay.example.com"),
		hume.WithSinks("file"),
		hume.WithSinkConfig("file", map[string]any{"path": path}),
	}
	d, err := hume.New(append(base, opts...)...)
	require.NoError(t, err)
	return d, st, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestAcceptAndDeliverToFile(t *testing.T) {
	ctx := context.Background()
	d, st, path := newDaemon(t)

	err := d.Submit(ctx, []byte(diskFull))
	assert.Equal(t, "OK", listener.Reply(err))

	pending, err := st.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Sent)
	assert.JSONEq(t, diskFullStored, string(pending[0].Payload))

	stats, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Delivered)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.JSONEq(t, diskFullStored, lines[0])

	rec, err := st.GetRecord(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.True(t, rec.Sent)
}

func TestMetricsBearerToken(t *testing.T) {
	d, _, _ := newDaemon(t, hume.WithMetrics("127.0.0.1:0", "secret"))
	require.NoError(t, d.Submit(context.Background(), []byte(diskFull)))

	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hostname="example.com"`)
	assert.Contains(t, string(body), `task="BACKUP"`)
	assert.Contains(t, string(body), "hume_messages_accepted_total 1")
}

func TestRejectedHumesAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	d, st, _ := newDaemon(t)

	cases := []struct {
		raw  string
		want error
	}{
		{`not json`, message.ErrMalformedPayload},
		{`{"schema_version":999,"hostname":"example.com"}`, message.ErrUnsupportedVersion},
		{`{"schema_version":1,"hostname":"-bad.example.com"}`, message.ErrInvalidHostname},
		{`{"schema_version":1,"hostname":"example.com","tags":5}`, message.ErrTypeMismatch},
	}
	for _, tc := range cases {
		err := d.Submit(ctx, []byte(tc.raw))
		assert.ErrorIs(t, err, tc.want, tc.raw)
		assert.True(t, strings.HasPrefix(listener.Reply(err), "ERROR: "))
	}

	n, err := st.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, d.Board().Len())
}

func TestAuthToken(t *testing.T) {
	ctx := context.Background()
	d, st, _ := newDaemon(t, hume.WithAuthToken("s3cr3t"))

	assert.ErrorIs(t, d.Submit(ctx, []byte(diskFull)), message.ErrAuthFailed)

	withToken := strings.Replace(diskFull, `{`, `{"token":"s3cr3t",`, 1)
	require.NoError(t, d.Submit(ctx, []byte(withToken)))

	pending, err := st.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotContains(t, string(pending[0].Payload), "s3cr3t")
}

func TestStorageFailureIsReported(t *testing.T) {
	d, st, _ := newDaemon(t)
	require.NoError(t, st.Close())

	err := d.Submit(context.Background(), []byte(diskFull))
	assert.ErrorIs(t, err, hume.ErrStorageFailure)
	assert.NotEqual(t, "OK", listener.Reply(err))
	assert.Zero(t, d.Board().Len())
}

func TestStatusBoardUpdatedOnAccept(t *testing.T) {
	d, _, _ := newDaemon(t)
	require.NoError(t, d.Submit(context.Background(), []byte(diskFull)))
	require.NoError(t, d.Submit(context.Background(), []byte(diskFull)))

	e, ok := d.Board().Get("example.com", "BACKUP")
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.Count)
	assert.Equal(t, message.LevelWarning, e.LastLevel)
}

func TestNewErrors(t *testing.T) {
	_, err := hume.New()
	assert.ErrorIs(t, err, hume.ErrNoStore)

	_, err = hume.New(hume.WithStore(memory.New()), hume.WithSinks())
	assert.ErrorIs(t, err, hume.ErrNoSinks)

	_, err = hume.New(hume.WithStore(memory.New()), hume.WithSinks("pigeon"))
	assert.ErrorIs(t, err, sink.ErrUnknownSink)
}

func TestInstanceID(t *testing.T) {
	a, _, _ := newDaemon(t)
	b, _, _ := newDaemon(t)

	assert.Equal(t, id.PrefixInstance, a.Instance().Prefix())
	assert.NotEqual(t, a.Instance().String(), b.Instance().String())
}

func TestTemplatesDirReachesSlack(t *testing.T) {
	cfg := hume.DefaultConfig()
	cfg.TemplatesDir = "/srv/humed/templates"
	cfg.TransferMethods = hume.StringList{"slack", "file"}

	d, err := hume.New(hume.WithConfig(cfg), hume.WithStore(memory.New()))
	require.NoError(t, err)

	targets := d.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "slack", targets[0].Name())
	assert.Equal(t, "/srv/humed/templates", targets[0].Config.String("templates_dir"))
	_, has := targets[1].Config["templates_dir"]
	assert.False(t, has)
}

func TestRunServesZeroMQ(t *testing.T) {
	d, st, path := newDaemon(t,
		hume.WithEndpoint("tcp://127.0.0.1:0"),
		hume.WithMetrics("127.0.0.1:0", ""),
		hume.WithPollInterval(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-errc:
		cancel()
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon never became ready")
	}

	rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer rcancel()
	req := zmq4.NewReq(rctx)
	defer req.Close()
	require.NoError(t, req.Dial("tcp://"+d.ListenAddr().String()))

	require.NoError(t, req.Send(zmq4.NewMsgString(diskFull)))
	reply, err := req.Recv()
	require.NoError(t, err)
	assert.Equal(t, "OK", string(reply.Bytes()))

	require.NoError(t, req.Send(zmq4.NewMsgString(`{"schema_version":2,"hostname":"example.com"}`)))
	reply, err = req.Recv()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(reply.Bytes()), "ERROR: unsupported schema version"))

	deadline := time.Now().Add(5 * time.Second)
	for len(readLines(t, path)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for file delivery")
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp, err := http.Get("http://" + d.MetricsAddr().String() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `hume_task_messages_total{hostname="example.com",task="BACKUP"} 1`)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// Run closes the store on the way out.
	_, err = st.CountPending(context.Background())
	assert.ErrorIs(t, err, hume.ErrStoreClosed)
}

func TestRunAnnouncesStartup(t *testing.T) {
	d, _, path := newDaemon(t,
		hume.WithEndpoint("tcp://127.0.0.1:0"),
		hume.WithPollInterval(50*time.Millisecond),
		hume.WithAnnounceStartup(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	var lines []string
	for {
		lines = readLines(t, path)
		if len(lines) > 0 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("timeout waiting for startup hume")
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Contains(t, lines[0], `"task":"HUMED_STARTUP"`)
	assert.Contains(t, lines[0], `"level":"debug"`)

	e, ok := d.Board().Get("relay.example.com", "HUMED_STARTUP")
	require.True(t, ok)
	assert.Equal(t, uint64(1), e.Count)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

package splunk_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume/message"
	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/sink/splunk"
)

func packet() sink.Packet {
	m := &message.EventMessage{Hostname: "example.com", Task: "BACKUP", Level: message.LevelWarning, Msg: "disk full"}
	m.FillDefaults()
	return sink.Packet{HumeID: "hume_01", ReceivedAt: time.Now(), Message: m}
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://hec:8088/services/collector", splunk.Endpoint("https://hec:8088"))
	assert.Equal(t, "https://hec:8088/services/collector", splunk.Endpoint("https://hec:8088/"))
	assert.Equal(t, "https://hec:8088/services/collector", splunk.Endpoint("https://hec:8088/services/collector"))
}

func TestSendPostsEvent(t *testing.T) {
	var (
		path, auth string
		body       []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"text":"Success","code":0}`))
	}))
	defer srv.Close()

	p := splunk.New()
	cfg := p.DefaultConfig().Merge(map[string]any{"url": srv.URL, "token": "hec-token", "index": "ops"})
	require.NoError(t, p.Send(context.Background(), packet(), cfg))

	assert.Equal(t, "/services/collector", path)
	assert.Contains(t, auth, "hec-token")
	assert.Contains(t, string(body), "disk full")
	assert.Contains(t, string(body), "hume_01")
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"text":"Invalid token","code":4}`))
	}))
	defer srv.Close()

	p := splunk.New()
	cfg := p.DefaultConfig().Merge(map[string]any{"url": srv.URL, "token": "bad"})
	assert.Error(t, p.Send(context.Background(), packet(), cfg))
}

func TestSendWithoutToken(t *testing.T) {
	p := splunk.New()
	assert.Error(t, p.Send(context.Background(), packet(), p.DefaultConfig()))
}

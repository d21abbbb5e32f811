//go:build integration

package nats_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/hume/message"
	"github.com/xraph/hume/sink"
	humenats "github.com/xraph/hume/sink/nats"
)

func startNATS(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForLog("Server is ready"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return container, fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestIntegration_SendPublishes(t *testing.T) {
	ctx := context.Background()
	container, url := startNATS(t, ctx)
	defer container.Terminate(ctx)

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	sub, err := nc.SubscribeSync("hume.events.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	p := humenats.New()
	defer p.Close()
	cfg := p.DefaultConfig().Merge(map[string]any{"url": url, "subject_by_level": true})

	pkt := sink.Packet{
		HumeID:     "hume_01",
		ReceivedAt: time.Now().UTC(),
		Message:    &message.EventMessage{Hostname: "example.com", Task: "BACKUP", Level: message.LevelWarning, Tags: []string{}},
	}
	require.NoError(t, p.Send(ctx, pkt, cfg))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hume.events.warning", msg.Subject)
	assert.Equal(t, "hume_01", msg.Header.Get("Hume-Id"))

	var env sink.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, "BACKUP", env.Hume.Task)
}

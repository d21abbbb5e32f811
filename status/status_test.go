package status_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume/message"
	"github.com/xraph/hume/status"
)

func msg(host, task string, level message.Level) *message.EventMessage {
	return &message.EventMessage{Hostname: host, Task: task, Level: level, Tags: []string{}}
}

func TestBoardUpdate(t *testing.T) {
	b := status.NewBoard()
	at := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	e := b.Update(msg("example.com", "BACKUP", message.LevelInfo), at)
	assert.Equal(t, uint64(1), e.Count)

	e = b.Update(msg("example.com", "BACKUP", message.LevelError), at.Add(time.Minute))
	assert.Equal(t, uint64(2), e.Count)

	got, ok := b.Get("example.com", "BACKUP")
	require.True(t, ok)
	assert.Equal(t, message.LevelError, got.LastLevel)
	assert.Equal(t, at.Add(time.Minute), got.LastTimestamp)

	_, ok = b.Get("example.com", "OTHER")
	assert.False(t, ok)
}

func TestBoardUsesMessageTimestamp(t *testing.T) {
	b := status.NewBoard()
	m := msg("example.com", "BACKUP", message.LevelInfo)
	m.Timestamp = "2020-01-01T00:00:00.000000Z"

	e := b.Update(m, time.Now())
	assert.Equal(t, int64(1577836800), e.LastTimestamp.Unix())
}

func TestBoardSnapshotSorted(t *testing.T) {
	b := status.NewBoard()
	now := time.Now()
	b.Update(msg("b.example", "X", message.LevelInfo), now)
	b.Update(msg("a.example", "Z", message.LevelInfo), now)
	b.Update(msg("a.example", "Y", message.LevelInfo), now)

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, status.Key{Hostname: "a.example", Task: "Y"}, snap[0].Key)
	assert.Equal(t, status.Key{Hostname: "a.example", Task: "Z"}, snap[1].Key)
	assert.Equal(t, status.Key{Hostname: "b.example", Task: "X"}, snap[2].Key)
	assert.Equal(t, 3, b.Len())
}

func TestBoardConcurrentUpdates(t *testing.T) {
	b := status.NewBoard()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b.Update(msg("example.com", fmt.Sprintf("T%d", i%2), message.LevelInfo), time.Now())
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()

	t0, _ := b.Get("example.com", "T0")
	t1, _ := b.Get("example.com", "T1")
	assert.Equal(t, uint64(800), t0.Count+t1.Count)
}

func TestCollector(t *testing.T) {
	b := status.NewBoard()
	at := time.Unix(1700000000, 0)
	b.Update(msg("example.com", "BACKUP", message.LevelWarning), at)
	b.Update(msg("example.com", "BACKUP", message.LevelWarning), at)

	reg := prometheus.NewRegistry()
	reg.MustRegister(status.NewCollector(b))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		require.Len(t, f.GetMetric(), 1)
		m := f.GetMetric()[0]
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		assert.Equal(t, "example.com", labels["hostname"])
		assert.Equal(t, "BACKUP", labels["task"])

		switch f.GetName() {
		case "hume_task_last_ts_seconds":
			assert.Equal(t, float64(1700000000), m.GetGauge().GetValue())
		case "hume_task_messages_total":
			assert.Equal(t, float64(2), m.GetCounter().GetValue())
		case "hume_task_last_level":
			assert.Equal(t, "warning", labels["level"])
		}
		found[f.GetName()] = true
	}
	assert.Len(t, found, 3)
}

package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume/message"
	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/sink/file"
)

func packet(text string) sink.Packet {
	m := &message.EventMessage{
		SchemaVersion: 1,
		Hostname:      "example.com",
		Level:         message.LevelWarning,
		Msg:           text,
		Task:          "BACKUP",
		Tags:          []string{"ops"},
	}
	m.FillDefaults()
	return sink.Packet{RecordID: 1, Message: m}
}

func TestSendAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "dir", "humes.log")
	p := file.New()
	cfg := p.DefaultConfig().Merge(map[string]any{"path": path})

	require.NoError(t, p.Send(context.Background(), packet("first"), cfg))
	require.NoError(t, p.Send(context.Background(), packet("second"), cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var got message.EventMessage
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "second", got.Msg)
	assert.Equal(t, "example.com", got.Hostname)
	assert.Equal(t, []string{"ops"}, got.Tags)
}

func TestSendFailsOnUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	p := file.New()
	cfg := sink.Config{"path": filepath.Join(blocker, "humes.log")}
	assert.Error(t, p.Send(context.Background(), packet("nope"), cfg))
}

func TestDefaultConfig(t *testing.T) {
	p := file.New()
	assert.Equal(t, "file", p.Name())
	assert.Equal(t, "humed.log", p.DefaultConfig().String("path"))
}

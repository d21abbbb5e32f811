//go:build !windows && !plan9

package builtin

import (
	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/sink/syslog"
)

func platformPlugins() []sink.Plugin {
	return []sink.Plugin{syslog.NewLocal(), syslog.NewRemote()}
}

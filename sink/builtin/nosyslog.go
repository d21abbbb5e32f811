//go:build windows || plan9

package builtin

import "github.com/xraph/hume/sink"

func platformPlugins() []sink.Plugin { return nil }

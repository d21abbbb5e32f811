// Package builtin registers the transfer methods shipped with humed.
package builtin

import (
	"github.com/xraph/hume/sink"
	"github.com/xraph/hume/sink/file"
	"github.com/xraph/hume/sink/httppost"
	"github.com/xraph/hume/sink/logstash"
	"github.com/xraph/hume/sink/mongo"
	"github.com/xraph/hume/sink/nats"
	"github.com/xraph/hume/sink/postgres"
	"github.com/xraph/hume/sink/redis"
	"github.com/xraph/hume/sink/s3"
	"github.com/xraph/hume/sink/slack"
	"github.com/xraph/hume/sink/splunk"
)

// Plugins returns a fresh instance of every built-in transfer method
// available on this platform.
func Plugins() []sink.Plugin {
	plugins := []sink.Plugin{
		file.New(),
		httppost.New(),
		slack.New(),
		logstash.New(),
		splunk.New(),
		redis.New(),
		s3.New(),
		postgres.New(),
		mongo.New(),
		nats.New(),
	}
	return append(plugins, platformPlugins()...)
}

// Register adds every built-in plugin to r.
func Register(r *sink.Registry) error {
	for _, p := range Plugins() {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every built-in plugin.
func NewRegistry() (*sink.Registry, error) {
	r := sink.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

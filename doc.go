// Package hume is the relay daemon behind humed.
//
// Scripts and tools send small structured events ("humes") to the daemon
// over a ZeroMQ request/reply socket. The daemon validates each hume,
// commits it to a durable SQLite queue and only then replies "OK". A single
// delivery worker drains the queue into the configured transfer methods
// (file, http, syslog, slack, logstash, splunk, redis, s3, postgres, mongo,
// nats) and marks a record sent once every method has accepted it.
// Delivery is at-least-once: failed records stay pending and are retried on
// the next drain.
//
// Quick start:
//
//	st, err := sqlite.Open(ctx, "/var/log/humed.sqlite3")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d, err := hume.New(
//	    hume.WithStore(st),
//	    hume.WithSinks("file", "slack"),
//	    hume.WithSinkConfig("slack", map[string]any{"webhook_default": url}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(d.Run(ctx))
package hume

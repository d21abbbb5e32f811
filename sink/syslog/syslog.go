//go:build !windows && !plan9

// Package syslog forwards humes to the local syslog daemon or a remote
// rsyslog server.
package syslog

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/RackSec/srslog"

	"github.com/xraph/hume/sink"
)

// Transfer method identities.
const (
	NameLocal  = "syslog"
	NameRemote = "rsyslog"
)

var facilities = map[string]srslog.Priority{
	"kern":   srslog.LOG_KERN,
	"user":   srslog.LOG_USER,
	"daemon": srslog.LOG_DAEMON,
	"local0": srslog.LOG_LOCAL0,
	"local1": srslog.LOG_LOCAL1,
	"local2": srslog.LOG_LOCAL2,
	"local3": srslog.LOG_LOCAL3,
	"local4": srslog.LOG_LOCAL4,
	"local5": srslog.LOG_LOCAL5,
	"local6": srslog.LOG_LOCAL6,
	"local7": srslog.LOG_LOCAL7,
}

// Plugin writes one syslog line per packet.
type Plugin struct {
	name   string
	remote bool
}

// NewLocal returns the plugin writing to the local syslog socket.
func NewLocal() *Plugin { return &Plugin{name: NameLocal} }

// NewRemote returns the plugin writing to a remote syslog server.
func NewRemote() *Plugin { return &Plugin{name: NameRemote, remote: true} }

func (p *Plugin) Name() string { return p.name }

func (p *Plugin) DefaultConfig() sink.Config {
	cfg := sink.Config{"tag": "humed", "facility": "user"}
	if p.remote {
		cfg["server"] = "localhost"
		cfg["port"] = 514
		cfg["proto"] = "udp"
		cfg["timeout"] = 5
	}
	return cfg
}

// Send maps the hume level onto the syslog severity and writes the line.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	facility, ok := facilities[cfg.String("facility")]
	if !ok {
		return fmt.Errorf("%s: unknown facility %q", p.name, cfg.String("facility"))
	}

	w, err := p.dial(ctx, facility|srslog.LOG_INFO, cfg)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", p.name, err)
	}
	defer w.Close()

	line := pkt.Line()
	switch pkt.Message.Level.Severity() {
	case 2:
		err = w.Crit(line)
	case 3:
		err = w.Err(line)
	case 4:
		err = w.Warning(line)
	case 7:
		err = w.Debug(line)
	default:
		err = w.Info(line)
	}
	if err != nil {
		return fmt.Errorf("%s: write: %w", p.name, err)
	}
	return nil
}

func (p *Plugin) dial(ctx context.Context, priority srslog.Priority, cfg sink.Config) (*srslog.Writer, error) {
	tag := cfg.String("tag")
	if !p.remote {
		return srslog.Dial("", "", priority, tag)
	}

	proto := cfg.String("proto")
	addr := net.JoinHostPort(cfg.String("server"), strconv.Itoa(cfg.Int("port")))
	timeout := cfg.Duration("timeout")

	// The writer redials through this func on a failed write, so each
	// connection gets its own deadline.
	dialFn := func(string, string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, proto, addr)
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(timeout))
		}
		return conn, nil
	}

	w, err := srslog.DialWithCustomDialer("custom", addr, priority, tag, dialFn)
	if err != nil {
		return nil, err
	}
	w.SetFormatter(srslog.RFC3164Formatter)
	if proto == "tcp" {
		w.SetFramer(srslog.RFC5425MessageLengthFramer)
	}
	return w, nil
}

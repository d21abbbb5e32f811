package sink

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Line renders the single-line text form used by syslog-style sinks:
//
//	hume(relay): host task level [msg] | TAGS=a,b CMD=None PROC=None
func (p Packet) Line() string {
	m := p.Message
	cmd := "None"
	if m.Command != "" {
		cmd = string(m.Command)
	}
	proc := "None"
	if m.Process != nil {
		if b, err := json.Marshal(m.Process); err == nil {
			proc = string(b)
		}
	}
	return fmt.Sprintf("hume(%s): %s %s %s [%s] | TAGS=%s CMD=%s PROC=%s",
		p.Relay, m.Hostname, m.Task, m.Level, m.Msg, m.TagString(), cmd, proc)
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Summary renders a short human readable sentence with Slack control
// characters escaped.
func (p Packet) Summary() string {
	m := p.Message
	tags := ""
	if len(m.Tags) > 0 {
		tags = " " + strings.Join(m.Tags, ",")
	}
	ts := m.Timestamp
	if ts == "" {
		ts = p.ReceivedAt.Format("2006-01-02T15:04:05.000000")
	}
	return slackEscaper.Replace(fmt.Sprintf("%s [%s] - %s %s: '%s'%s",
		m.Hostname, ts, m.Level, m.Task, m.Msg, tags))
}

package slack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/xraph/hume/message"
)

// templateData is the value templates are executed against.
type templateData struct {
	Hume       *message.EventMessage
	Humed      relayInfo
	HumeID     string
	ReceivedAt time.Time
	Summary    string
}

type relayInfo struct {
	Hostname string
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"hashtags": func(tags []string) string {
		out := make([]string, len(tags))
		for i, t := range tags {
			out[i] = "#" + t
		}
		return strings.Join(out, " ")
	},
	"keys": func(m map[string]any) []string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return keys
	},
}

const builtinTemplate = `{
  "text": {{json .Summary}},
  "blocks": [
    {"type": "divider"},
    {"type": "section", "text": {"type": "mrkdwn", "text": {{json (printf "*Priority Level:* %s\n%s" .Hume.Level .Hume.Msg)}}}},
    {"type": "section", "fields": [
      {"type": "mrkdwn", "text": {{json (printf "*Sender:*\n%s via %s" .Hume.Hostname .Humed.Hostname)}}},
      {"type": "mrkdwn", "text": {{json (printf "*Task:*\n%s" .Hume.Task)}}},
      {"type": "mrkdwn", "text": {{json (printf "*Timestamp*\n%s" .Hume.Timestamp)}}},
      {"type": "mrkdwn", "text": {{json (printf "*Tags:*\n%s" (hashtags .Hume.Tags))}}}
    ]},
{{- if .Hume.Extra}}
    {"type": "section", "text": {"type": "mrkdwn", "text": "*Extra fields:*"}, "fields": [
{{- range $i, $k := keys .Hume.Extra}}{{if $i}},{{end}}
      {"type": "mrkdwn", "text": {{json (printf "*%s:*\n%v" $k (index $.Hume.Extra $k))}}}
{{- end}}
    ]},
{{- end}}
    {"type": "divider"}
  ]
}`

var builtin = template.Must(template.New("builtin").Funcs(funcs).Parse(builtinTemplate))

// Renderer resolves templates with the cascade
//
//	<base>_<level>.tpl, <base>_default.tpl, default_<level>.tpl, default_default.tpl
//
// under dir, then the built-in block layout, then plain text.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer reading templates from dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Candidates lists the file names tried for base and level, in order.
func Candidates(base string, level message.Level) []string {
	if base == "" {
		base = "default"
	}
	return []string{
		fmt.Sprintf("%s_%s.tpl", base, level),
		fmt.Sprintf("%s_default.tpl", base),
		fmt.Sprintf("default_%s.tpl", level),
		"default_default.tpl",
	}
}

// Render returns the request body and the template that produced it
// ("builtin" or "text" for the fallbacks).
func (r *Renderer) Render(base string, data templateData) ([]byte, string) {
	if r.dir != "" {
		for _, name := range Candidates(base, data.Hume.Level) {
			out, err := r.renderFile(name, data)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err == nil {
				return out, name
			}
		}
	}

	var buf bytes.Buffer
	if err := builtin.Execute(&buf, data); err == nil && json.Valid(buf.Bytes()) {
		return buf.Bytes(), "builtin"
	}

	text, _ := json.Marshal(map[string]string{"text": data.Summary})
	return text, "text"
}

func (r *Renderer) renderFile(name string, data templateData) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(name).Funcs(funcs).Parse(string(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

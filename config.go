package hume

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where humed looks for its configuration file.
const DefaultConfigPath = "/etc/humed/config.yaml"

// Config holds the configuration for a Daemon. It is read once at startup.
type Config struct {
	// Endpoint is the ZeroMQ REP bind address.
	Endpoint string `yaml:"endpoint"`

	// DBPath is the SQLite queue location.
	DBPath string `yaml:"db_path"`

	// Pidfile enforces a single instance.
	Pidfile string `yaml:"pidfile"`

	// AuthToken, when set, must be presented by every sender.
	AuthToken string `yaml:"auth_token"`

	// TransferMethods lists the active sinks, in delivery order. The YAML
	// key accepts a single name or a list.
	TransferMethods StringList `yaml:"transfer_method"`

	// PollInterval is the delivery worker's safety-net timer.
	PollInterval Duration `yaml:"poll_interval"`

	// ShutdownTimeout bounds how long shutdown waits for the in-flight drain.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// Retention prunes delivered records older than this. Zero keeps them.
	Retention Duration `yaml:"retention"`

	// TemplatesDir is the root of per-sink template directories.
	TemplatesDir string `yaml:"templates_dir"`

	// Hostname identifies this relay in packets. Empty means os.Hostname.
	Hostname string `yaml:"hostname"`

	// AnnounceStartup enqueues a debug hume once the daemon is serving.
	AnnounceStartup bool `yaml:"announce_startup"`

	Metrics MetricsConfig `yaml:"metrics"`

	// Sinks holds per-transfer-method options keyed by method name. In YAML
	// they are top-level mappings named after the method.
	Sinks map[string]map[string]any `yaml:"-"`
}

// MetricsConfig configures the HTTP metrics endpoint.
type MetricsConfig struct {
	// Listen is the HTTP address, e.g. "127.0.0.1:9198". Empty disables it.
	Listen string `yaml:"listen"`

	// Token, when set, is required as "Authorization: Bearer <token>".
	Token string `yaml:"token"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:        "tcp://127.0.0.1:198",
		DBPath:          "/var/log/humed.sqlite3",
		Pidfile:         "/run/humed.pid",
		TransferMethods: StringList{"file"},
		PollInterval:    Duration(5 * time.Second),
		ShutdownTimeout: Duration(30 * time.Second),
		TemplatesDir:    "/etc/humed/templates",
		Sinks:           map[string]map[string]any{},
	}
}

// knownKeys are the top-level YAML keys that are not sink sections.
var knownKeys = map[string]bool{
	"endpoint": true, "db_path": true, "pidfile": true, "auth_token": true,
	"transfer_method": true, "poll_interval": true, "shutdown_timeout": true,
	"retention": true, "templates_dir": true, "hostname": true,
	"announce_startup": true, "metrics": true, "debug": true,
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hume: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig. Top-level mappings that are
// not daemon settings become sink options.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("hume: parse config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("hume: parse config: %w", err)
	}
	for key, v := range raw {
		if knownKeys[key] {
			continue
		}
		section, ok := v.(map[string]any)
		if !ok {
			return Config{}, fmt.Errorf("hume: parse config: %q must be a mapping of sink options", key)
		}
		cfg.Sinks[key] = section
	}
	return cfg, nil
}

// StringList decodes from a YAML scalar or sequence.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

// Duration decodes from a number of seconds or a Go duration string.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", node.Line)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML renders the duration as a Go duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

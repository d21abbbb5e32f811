package sink

import (
	"fmt"
	"maps"
	"strconv"
	"time"
)

// Config is a plugin's option bag, decoded from the daemon configuration.
type Config map[string]any

// Merge returns a copy of c overlaid with override.
func (c Config) Merge(override map[string]any) Config {
	out := make(Config, len(c)+len(override))
	maps.Copy(out, c)
	maps.Copy(out, override)
	return out
}

// String returns the option as a string.
func (c Config) String(key string) string {
	switch v := c[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the option as an int, or 0.
func (c Config) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Float returns the option as a float64, or 0.
func (c Config) Float(key string) float64 {
	switch v := c[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Bool returns the option as a bool.
func (c Config) Bool(key string) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Duration accepts a number of seconds or a Go duration string.
func (c Config) Duration(key string) time.Duration {
	switch v := c[key].(type) {
	case time.Duration:
		return v
	case int, int64, float64:
		return time.Duration(c.Float(key) * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return 0
}

// Strings returns a list option. A single string becomes a one-element list.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Package config handles Lookout configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (LOOKOUT_*)
//  2. Config file (<user config dir>/lookout/config.yaml)
//  3. Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/musher-dev/lookout/internal/paths"
)

// Keys.
const (
	KeyAPIURL             = "api.url"
	KeyStreamURL          = "stream.url"
	KeyClientTimeout      = "client.timeout"
	KeyClientRetryDelay   = "client.retry_delay"
	KeyClientLongRunning  = "client.long_running"
	KeyProbeInterval      = "probe.interval"
	KeyStreamMaxAttempts  = "stream.max_attempts"
	KeyStreamBackoffFloor = "stream.backoff_floor"
	KeyStreamBackoffCap   = "stream.backoff_cap"
	KeyCanarySymbol       = "readiness.canary_symbol"
)

const (
	// DefaultAPIURL is the default backend endpoint.
	DefaultAPIURL = "http://localhost:8000"
	// DefaultClientTimeout is the default per-request deadline.
	DefaultClientTimeout = 15 * time.Second
	// DefaultRetryDelay is the default wait before the single connection retry.
	DefaultRetryDelay = time.Second
	// DefaultProbeInterval is the default health probe interval.
	DefaultProbeInterval = 30 * time.Second
	// DefaultStreamMaxAttempts is the default reconnect ceiling.
	DefaultStreamMaxAttempts = 5
	// DefaultStreamBackoffFloor is the default first reconnect delay.
	DefaultStreamBackoffFloor = time.Second
	// DefaultStreamBackoffCap is the default maximum reconnect delay.
	DefaultStreamBackoffCap = 30 * time.Second
	// DefaultCanarySymbol is the default readiness canary symbol.
	DefaultCanarySymbol = "AAPL"
)

// DefaultLongRunning is the default long-running path allow-list.
var DefaultLongRunning = []string{
	"/tools/predict",
	"/tools/scan_all",
	"/tools/analyze",
	"/tools/train_rl",
	"/tools/fetch_data",
}

// Setting describes one known configuration key.
type Setting struct {
	Key         string
	Description string
	Default     any
}

// Settings lists every known key in display order.
var Settings = []Setting{
	{KeyAPIURL, "Backend API URL", DefaultAPIURL},
	{KeyStreamURL, "Push channel URL (derived from api.url when empty)", ""},
	{KeyClientTimeout, "Per-request deadline", DefaultClientTimeout},
	{KeyClientRetryDelay, "Delay before the single retry after a connection failure", DefaultRetryDelay},
	{KeyClientLongRunning, "Path substrings of long-running endpoints", DefaultLongRunning},
	{KeyProbeInterval, "Health probe interval", DefaultProbeInterval},
	{KeyStreamMaxAttempts, "Consecutive push channel failures before giving up", DefaultStreamMaxAttempts},
	{KeyStreamBackoffFloor, "First reconnect delay", DefaultStreamBackoffFloor},
	{KeyStreamBackoffCap, "Maximum reconnect delay", DefaultStreamBackoffCap},
	{KeyCanarySymbol, "Symbol used for the readiness canary call", DefaultCanarySymbol},
}

// Config holds the Lookout configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	for _, s := range Settings {
		if s.Default != "" {
			v.SetDefault(s.Key, s.Default)
		}
	}

	if configFile, err := paths.ConfigFile(); err == nil {
		v.AddConfigPath(filepath.Dir(configFile))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LOOKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetDuration returns a configuration value as a duration. Bare integers
// are read as seconds.
func (c *Config) GetDuration(key string) time.Duration {
	if raw := strings.TrimSpace(c.v.GetString(key)); raw != "" && isDigits(raw) {
		return time.Duration(c.v.GetInt64(key)) * time.Second
	}

	return c.v.GetDuration(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value any) error {
	c.v.Set(key, value)

	configFile, err := paths.ConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return err
	}

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]any {
	return c.v.AllSettings()
}

// APIURL returns the configured API URL.
func (c *Config) APIURL() string {
	return strings.TrimRight(c.GetString(KeyAPIURL), "/")
}

// StreamURL returns the explicit push channel URL, or "" to derive it.
func (c *Config) StreamURL() string {
	return c.GetString(KeyStreamURL)
}

// ClientTimeout returns the per-request deadline.
func (c *Config) ClientTimeout() time.Duration {
	return c.positiveDuration(KeyClientTimeout, DefaultClientTimeout)
}

// RetryDelay returns the delay before the single connection retry.
func (c *Config) RetryDelay() time.Duration {
	if d := c.GetDuration(KeyClientRetryDelay); d >= 0 {
		return d
	}

	return DefaultRetryDelay
}

// LongRunning returns the long-running path allow-list. A comma-separated
// string is accepted so the list can be set from the environment.
func (c *Config) LongRunning() []string {
	raw := c.v.GetStringSlice(KeyClientLongRunning)
	if len(raw) == 1 && strings.Contains(raw[0], ",") {
		raw = strings.Split(raw[0], ",")
	}

	patterns := make([]string, 0, len(raw))

	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}

	if len(patterns) == 0 {
		return append([]string(nil), DefaultLongRunning...)
	}

	return patterns
}

// ProbeInterval returns the health probe interval.
func (c *Config) ProbeInterval() time.Duration {
	return c.positiveDuration(KeyProbeInterval, DefaultProbeInterval)
}

// StreamMaxAttempts returns the reconnect ceiling.
func (c *Config) StreamMaxAttempts() int {
	if n := c.GetInt(KeyStreamMaxAttempts); n > 0 {
		return n
	}

	return DefaultStreamMaxAttempts
}

// StreamBackoff returns the reconnect floor and cap.
func (c *Config) StreamBackoff() (floor, ceiling time.Duration) {
	floor = c.positiveDuration(KeyStreamBackoffFloor, DefaultStreamBackoffFloor)
	ceiling = c.positiveDuration(KeyStreamBackoffCap, DefaultStreamBackoffCap)

	if ceiling < floor {
		ceiling = floor
	}

	return floor, ceiling
}

// CanarySymbol returns the readiness canary symbol.
func (c *Config) CanarySymbol() string {
	if s := strings.TrimSpace(c.GetString(KeyCanarySymbol)); s != "" {
		return strings.ToUpper(s)
	}

	return DefaultCanarySymbol
}

func (c *Config) positiveDuration(key string, fallback time.Duration) time.Duration {
	if d := c.GetDuration(key); d > 0 {
		return d
	}

	return fallback
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// Render formats settings as yaml, toml or json. Durations are rendered as strings.
func Render(settings map[string]any, format string) ([]byte, error) {
	normalized := normalize(settings)

	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(normalized)
	case "toml":
		return toml.Marshal(normalized)
	case "json":
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")

		if err := enc.Encode(normalized); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use yaml, toml or json)", format)
	}
}

// SortedKeys returns the flattened dotted keys of settings in order.
func SortedKeys(settings map[string]any) []string {
	var keys []string

	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}

			if nested, ok := v.(map[string]any); ok {
				walk(key, nested)
				continue
			}

			keys = append(keys, key)
		}
	}
	walk("", settings)

	sort.Strings(keys)

	return keys
}

func normalize(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = normalize(inner)
		}

		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = normalize(inner)
		}

		return out
	case time.Duration:
		return value.String()
	default:
		return value
	}
}

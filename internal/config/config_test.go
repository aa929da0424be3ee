package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/musher-dev/lookout/internal/testutil"
)

// unsetEnvForTest unsets an environment variable and registers cleanup to
// restore its original state.
func unsetEnvForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func isolate(t *testing.T) {
	t.Helper()

	testutil.IsolateUserDirs(t)

	for _, s := range Settings {
		unsetEnvForTest(t, "LOOKOUT_"+strings.ToUpper(strings.ReplaceAll(s.Key, ".", "_")))
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg := Load()
	floor, ceiling := cfg.StreamBackoff()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "api url", got: cfg.APIURL(), want: DefaultAPIURL},
		{name: "stream url", got: cfg.StreamURL(), want: ""},
		{name: "client timeout", got: cfg.ClientTimeout(), want: DefaultClientTimeout},
		{name: "retry delay", got: cfg.RetryDelay(), want: DefaultRetryDelay},
		{name: "probe interval", got: cfg.ProbeInterval(), want: DefaultProbeInterval},
		{name: "max attempts", got: cfg.StreamMaxAttempts(), want: DefaultStreamMaxAttempts},
		{name: "backoff floor", got: floor, want: DefaultStreamBackoffFloor},
		{name: "backoff cap", got: ceiling, want: DefaultStreamBackoffCap},
		{name: "canary", got: cfg.CanarySymbol(), want: DefaultCanarySymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if got := cfg.LongRunning(); !reflect.DeepEqual(got, DefaultLongRunning) {
		t.Errorf("LongRunning() = %v, want %v", got, DefaultLongRunning)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		envVal string
		check  func(*Config) any
		want   any
	}{
		{
			name:   "api url trims slash",
			envVar: "LOOKOUT_API_URL",
			envVal: "https://api.example.com/",
			check:  func(c *Config) any { return c.APIURL() },
			want:   "https://api.example.com",
		},
		{
			name:   "timeout with unit",
			envVar: "LOOKOUT_CLIENT_TIMEOUT",
			envVal: "90s",
			check:  func(c *Config) any { return c.ClientTimeout() },
			want:   90 * time.Second,
		},
		{
			name:   "bare seconds",
			envVar: "LOOKOUT_PROBE_INTERVAL",
			envVal: "45",
			check:  func(c *Config) any { return c.ProbeInterval() },
			want:   45 * time.Second,
		},
		{
			name:   "zero retry delay",
			envVar: "LOOKOUT_CLIENT_RETRY_DELAY",
			envVal: "0s",
			check:  func(c *Config) any { return c.RetryDelay() },
			want:   time.Duration(0),
		},
		{
			name:   "invalid timeout falls back",
			envVar: "LOOKOUT_CLIENT_TIMEOUT",
			envVal: "-5s",
			check:  func(c *Config) any { return c.ClientTimeout() },
			want:   DefaultClientTimeout,
		},
		{
			name:   "max attempts",
			envVar: "LOOKOUT_STREAM_MAX_ATTEMPTS",
			envVal: "8",
			check:  func(c *Config) any { return c.StreamMaxAttempts() },
			want:   8,
		},
		{
			name:   "canary uppercased",
			envVar: "LOOKOUT_READINESS_CANARY_SYMBOL",
			envVal: "msft",
			check:  func(c *Config) any { return c.CanarySymbol() },
			want:   "MSFT",
		},
		{
			name:   "long running list",
			envVar: "LOOKOUT_CLIENT_LONG_RUNNING",
			envVal: "/tools/predict, /tools/backtest",
			check:  func(c *Config) any { return strings.Join(c.LongRunning(), "|") },
			want:   "/tools/predict|/tools/backtest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.envVar, tt.envVal)

			if got := tt.check(Load()); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStreamBackoff_CapNotBelowFloor(t *testing.T) {
	isolate(t)
	t.Setenv("LOOKOUT_STREAM_BACKOFF_FLOOR", "10s")
	t.Setenv("LOOKOUT_STREAM_BACKOFF_CAP", "2s")

	floor, ceiling := Load().StreamBackoff()
	if floor != 10*time.Second || ceiling != 10*time.Second {
		t.Errorf("StreamBackoff() = (%s, %s), want (10s, 10s)", floor, ceiling)
	}
}

func TestConfig_SetPersists(t *testing.T) {
	isolate(t)

	if err := Load().Set(KeyAPIURL, "https://persisted.example.com"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got := Load().APIURL(); got != "https://persisted.example.com" {
		t.Errorf("APIURL() after reload = %q", got)
	}
}

func TestRender(t *testing.T) {
	settings := map[string]any{
		"api":    map[string]any{"url": "http://localhost:8000"},
		"client": map[string]any{"timeout": 15 * time.Second},
	}

	tests := []struct {
		format string
		want   []string
	}{
		{format: "yaml", want: []string{"api:", "url: http://localhost:8000", "timeout: 15s"}},
		{format: "toml", want: []string{"[api]", "[client]", "http://localhost:8000", "15s"}},
		{format: "json", want: []string{`"url": "http://localhost:8000"`, `"timeout": "15s"`}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := Render(settings, tt.format)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			for _, want := range tt.want {
				if !strings.Contains(string(out), want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}

	if _, err := Render(settings, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]any{
		"stream": map[string]any{"url": "", "max_attempts": 5},
		"api":    map[string]any{"url": "x"},
	})

	want := []string{"api.url", "stream.max_attempts", "stream.url"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("SortedKeys() = %v, want %v", keys, want)
	}
}

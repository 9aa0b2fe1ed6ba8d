package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/japaniel/bookdeck/pkg/filter"
)

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "bookdeck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

// chdir moves into an empty directory so DefaultPath is never found.
func chdir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

const validYAML = `
output_path: "outputs/deck"
min_length: 4
exclude_up_to: "b1"
max_concurrent: 8
data_dir: "/var/lib/bookdeck"

cache:
  backend: "bolt"
  flush_interval: "1s"

dictionary:
  provider: "oald"
  base_url: "https://dict.example/definition/english/"
  timeout: "10s"
  rate_limit: 20

retry:
  max_retries: 2
  initial_interval: "100ms"
  max_interval: "2s"
  attempt_timeout: "5s"

media:
  enabled: true

log:
  level: "debug"
  format: "json"
`

func TestLoad_ValidYAML(t *testing.T) {
	chdir(t)
	path := writeYAML(t, t.TempDir(), validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OutputPath != "outputs/deck" {
		t.Errorf("output_path = %q", cfg.OutputPath)
	}
	if cfg.MinLength != 4 {
		t.Errorf("min_length = %d, want 4", cfg.MinLength)
	}
	if cfg.Level() != filter.B1 {
		t.Errorf("exclude_up_to = %v, want B1", cfg.Level())
	}
	if cfg.MaxConcurrent != 8 {
		t.Errorf("max_concurrent = %d, want 8", cfg.MaxConcurrent)
	}
	if cfg.Cache.Backend != "bolt" {
		t.Errorf("cache.backend = %q, want bolt", cfg.Cache.Backend)
	}
	if cfg.Cache.FlushInterval != time.Second {
		t.Errorf("cache.flush_interval = %v, want 1s", cfg.Cache.FlushInterval)
	}
	if cfg.Dictionary.Provider != "oald" || cfg.Dictionary.RateLimit != 20 {
		t.Errorf("dictionary = %+v", cfg.Dictionary)
	}
	if cfg.Retry.InitialInterval != 100*time.Millisecond || cfg.Retry.MaxRetries != 2 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if !cfg.Media.Enabled {
		t.Error("media.enabled should be true")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}

	// Paths derived from data_dir.
	if cfg.DBPath != filepath.Join("/var/lib/bookdeck", "bookdeck.db") {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.Cache.BoltPath != filepath.Join("/var/lib/bookdeck", "cache.bolt") {
		t.Errorf("cache.bolt_path = %q", cfg.Cache.BoltPath)
	}
	if cfg.Media.Dir != filepath.Join("/var/lib/bookdeck", "media") {
		t.Errorf("media.dir = %q", cfg.Media.Dir)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MinLength != 3 {
		t.Errorf("min_length = %d, want 3", cfg.MinLength)
	}
	if cfg.Level() != filter.LevelNone {
		t.Errorf("exclude_up_to = %v, want none", cfg.Level())
	}
	if cfg.MaxConcurrent != 20 {
		t.Errorf("max_concurrent = %d, want 20", cfg.MaxConcurrent)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("cache.backend = %q, want sqlite", cfg.Cache.Backend)
	}
	if cfg.Dictionary.Provider != "freedict" {
		t.Errorf("dictionary.provider = %q, want freedict", cfg.Dictionary.Provider)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialInterval != 500*time.Millisecond ||
		cfg.Retry.MaxInterval != 5*time.Second || cfg.Retry.AttemptTimeout != 15*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Media.Enabled {
		t.Error("media.enabled should default to false")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.DBPath != filepath.Join("data", "bookdeck.db") {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdir(t)
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("BOOKDECK_CONFIG", path)
	t.Setenv("BOOKDECK_MIN_LENGTH", "6")
	t.Setenv("BOOKDECK_LOG_FORMAT", "text")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinLength != 6 {
		t.Errorf("min_length = %d, want 6 from env", cfg.MinLength)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log.format = %q, want text from env", cfg.Log.Format)
	}
	if cfg.MaxConcurrent != 8 {
		t.Errorf("max_concurrent = %d, want 8 from yaml", cfg.MaxConcurrent)
	}
}

func TestLoad_DefaultPathInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeYAML(t, dir, "min_length: 5\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinLength != 5 {
		t.Errorf("min_length = %d, want 5", cfg.MinLength)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestValidate_FieldRules(t *testing.T) {
	chdir(t)

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"min length", "min_length: -1\n", "min_length must be >= 1"},
		{"concurrency", "max_concurrent: 500\n", "max_concurrent must be <= 200"},
		{"cache backend", "cache:\n  backend: redis\n", "cache.backend must be one of [sqlite bolt]"},
		{"provider", "dictionary:\n  provider: wiktionary\n", "dictionary.provider must be one of"},
		{"base url", "dictionary:\n  base_url: not a url\n", "dictionary.base_url must be a URL"},
		{"log format", "log:\n  format: xml\n", "log.format must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, t.TempDir(), tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_CrossFieldRules(t *testing.T) {
	chdir(t)

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"level", "exclude_up_to: C2\n", "exclude_up_to"},
		{"offline path", "dictionary:\n  provider: offline\n", "dictionary.offline_path is required"},
		{"retry intervals", "retry:\n  initial_interval: 10s\n  max_interval: 1s\n", "retry.max_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, t.TempDir(), tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_AfterFlagOverride(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.MinLength = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error after overriding min_length to 0")
	}
	cfg.MinLength = 3
	cfg.DataDir = "elsewhere"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Already-derived paths are kept.
	if cfg.DBPath != filepath.Join("data", "bookdeck.db") {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
}

func TestUsage(t *testing.T) {
	text, err := Usage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, env := range []string{"BOOKDECK_MIN_LENGTH", "BOOKDECK_CACHE_BACKEND", "BOOKDECK_LOG_LEVEL"} {
		if !strings.Contains(text, env) {
			t.Errorf("usage is missing %s", env)
		}
	}
}

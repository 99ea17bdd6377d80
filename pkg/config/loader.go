package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read by Load
const DefaultConfigFile = "lspbridge.yaml"

// Load reads DefaultConfigFile. See LoadFrom.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom starts from Defaults, applies the YAML file at path if there is
// one, then the LSPBRIDGE_* environment, and validates the result
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if err := overlayYAML(&cfg, path); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := overlayEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// envBinding applies one environment variable to a Config field
type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"LSPBRIDGE_NAME", func(c *Config, v string) error { c.Name = v; return nil }},
	{"LSPBRIDGE_GRAMMAR_SCOPES", func(c *Config, v string) error { c.GrammarScopes = splitList(v); return nil }},
	{"LSPBRIDGE_SERVER_COMMAND", func(c *Config, v string) error { c.Server.Command = v; return nil }},
	{"LSPBRIDGE_SERVER_DIR", func(c *Config, v string) error { c.Server.Dir = v; return nil }},
	{"LSPBRIDGE_REQUEST_TIMEOUT", durationField(func(c *Config) *time.Duration { return &c.RequestTimeout })},
	{"LSPBRIDGE_SHUTDOWN_TIMEOUT", durationField(func(c *Config) *time.Duration { return &c.ShutdownTimeout })},
	{"LSPBRIDGE_LOG_DEVELOPMENT", boolField(func(c *Config) *bool { return &c.Log.Development })},
	{"LSPBRIDGE_WATCH_ENABLED", boolField(func(c *Config) *bool { return &c.Watch.Enabled })},
	{"LSPBRIDGE_WATCH_DEBOUNCE", durationField(func(c *Config) *time.Duration { return &c.Watch.Debounce })},
	{"LSPBRIDGE_DIAGNOSTICS_DB", func(c *Config, v string) error { c.DiagnosticsDB = v; return nil }},
}

// overlayEnv applies every set, non-empty binding. Malformed values are errors.
func overlayEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
	}
	return nil
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// splitList splits a comma-separated list, dropping blank items
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate checks that required fields are set
func validate(cfg *Config) error {
	if cfg.Name == "" {
		return errors.New("name is required")
	}
	if len(cfg.GrammarScopes) == 0 {
		return errors.New("grammar_scopes must not be empty")
	}
	for _, scope := range cfg.GrammarScopes {
		if strings.TrimSpace(scope) == "" {
			return errors.New("grammar_scopes must not contain empty scopes")
		}
	}
	if cfg.Server.Command == "" {
		return errors.New("server.command is required")
	}
	if cfg.RequestTimeout < 0 {
		return errors.New("request_timeout must be >= 0")
	}
	if cfg.ShutdownTimeout < 0 {
		return errors.New("shutdown_timeout must be >= 0")
	}
	if cfg.Editor.TabLength < 1 {
		return errors.New("editor.tab_length must be >= 1")
	}
	if cfg.Watch.Debounce < 0 {
		return errors.New("watch.debounce must be >= 0")
	}
	return nil
}

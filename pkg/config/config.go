// Package config loads lspbridge configuration.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"path/filepath"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

// Config describes one language server integration
type Config struct {
	Name          string            `yaml:"name" jsonschema:"required,description=Integration name used for commands and logs"`
	GrammarScopes []string          `yaml:"grammar_scopes" jsonschema:"required,minItems=1,description=Grammar scopes handled by the server"`
	Extensions    map[string]string `yaml:"extensions,omitempty" jsonschema:"description=File extension to grammar scope; files with unknown extensions get the first grammar scope"`

	Server          Server        `yaml:"server" jsonschema:"required"`
	RequestTimeout  time.Duration `yaml:"request_timeout" jsonschema:"description=Per-request timeout; 0 disables it"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Editor        Editor `yaml:"editor"`
	Log           Log    `yaml:"log"`
	Watch         Watch  `yaml:"watch"`
	DiagnosticsDB string `yaml:"diagnostics_db,omitempty" jsonschema:"description=bbolt file for diagnostics; empty keeps them in memory"`
}

// Server is the language server command line
type Server struct {
	Command string            `yaml:"command" jsonschema:"required"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
}

// Editor holds the buffer settings sent with formatting requests
type Editor struct {
	TabLength int  `yaml:"tab_length" jsonschema:"minimum=1"`
	SoftTabs  bool `yaml:"soft_tabs"`
}

// Log configures the zap logger
type Log struct {
	Development bool `yaml:"development"`
}

// Watch configures workspace/didChangeWatchedFiles reporting
type Watch struct {
	Enabled  bool          `yaml:"enabled"`
	Ignore   []string      `yaml:"ignore,omitempty"`
	Debounce time.Duration `yaml:"debounce"`
}

// Defaults returns the configuration used before any file or environment overrides
func Defaults() Config {
	return Config{
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Editor: Editor{
			TabLength: 4,
			SoftTabs:  true,
		},
		Watch: Watch{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// ScopeFor returns the grammar scope for path
func (c *Config) ScopeFor(path string) string {
	if scope, ok := c.Extensions[filepath.Ext(path)]; ok {
		return scope
	}
	if len(c.Extensions) > 0 || len(c.GrammarScopes) == 0 {
		return ""
	}
	return c.GrammarScopes[0]
}

// Schema returns the JSON schema of the configuration file
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration such as 500ms or 30s",
				}
			}
			return nil
		},
	}
	return reflector.Reflect(&Config{})
}

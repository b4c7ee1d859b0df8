// Package config loads the keyturn.yaml configuration.
package config

import (
	"fmt"
	"os"

	kterrors "github.com/systmms/keyturn/internal/errors"
	"github.com/systmms/keyturn/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultKeyringService is the OS keyring service name used when the
// config does not override it.
const DefaultKeyringService = "keyturn"

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition

	loaded bool
}

// Definition represents the keyturn.yaml structure
type Definition struct {
	Version int `yaml:"version"`

	// DefaultVault is used when a command is invoked without a vault
	// path argument.
	DefaultVault string `yaml:"default_vault,omitempty"`

	// KeyringService is the OS keyring service name under which
	// remembered passwords are stored, keyed by vault path.
	KeyringService string `yaml:"keyring_service,omitempty"`

	// NonInteractive disables all prompting; acquisition then reads
	// from stdin or the keyring only.
	NonInteractive bool `yaml:"non_interactive,omitempty"`
}

// Load reads and validates the config file. A missing file is not an
// error: every field has a usable default. Load is idempotent.
func (c *Config) Load() error {
	if c.loaded {
		return nil
	}

	def := &Definition{Version: 1, KeyringService: DefaultKeyringService}

	if c.Path != "" {
		data, err := os.ReadFile(c.Path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return fmt.Errorf("reading config %s: %w", c.Path, err)
		default:
			if err := yaml.Unmarshal(data, def); err != nil {
				return kterrors.ConfigError{
					Field:      c.Path,
					Message:    fmt.Sprintf("invalid YAML: %v", err),
					Suggestion: "Check for indentation errors and missing quotes",
				}
			}
			if def.KeyringService == "" {
				def.KeyringService = DefaultKeyringService
			}
		}
	}

	if err := def.Validate(); err != nil {
		return err
	}

	if def.NonInteractive {
		c.NonInteractive = true
	}
	c.Definition = def
	c.loaded = true
	return nil
}

// Validate checks the definition for values that cannot work.
func (d *Definition) Validate() error {
	if d.Version != 0 && d.Version != 1 {
		return kterrors.ConfigError{
			Field:      "version",
			Value:      d.Version,
			Message:    "unsupported config version",
			Suggestion: "This keyturn understands version 1",
		}
	}
	return nil
}

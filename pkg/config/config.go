package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dbnest/dbnest/pkg/engine"
	"github.com/dbnest/dbnest/pkg/ports"
)

// EngineSettings holds the per-engine tool configuration, currently just
// where its binaries live when they are not on PATH.
type EngineSettings struct {
	BinDir string `mapstructure:"bin_dir" yaml:"bin_dir,omitempty"`
}

// Config is the persisted tool configuration. It is an explicit value with a
// load/persist lifecycle, passed to the components that need it; there is no
// process-wide config singleton.
type Config struct {
	// DataDir is the root directory holding per-container data.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`

	// StorePath is the container metadata database file.
	StorePath string `mapstructure:"store_path" yaml:"store_path" validate:"required"`

	// LogLevel controls console logging.
	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	// PortRangeStart and PortRangeEnd bound automatic port allocation.
	PortRangeStart int `mapstructure:"port_range_start" yaml:"port_range_start" validate:"min=1,max=65535"`
	PortRangeEnd   int `mapstructure:"port_range_end" yaml:"port_range_end" validate:"min=1,max=65535,gtefield=PortRangeStart"`

	// Engines keys per-engine settings by engine kind.
	Engines map[string]EngineSettings `mapstructure:"engines" yaml:"engines,omitempty"`
}

// Default returns the built-in configuration rooted under the user home.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".dbnest")
	return &Config{
		DataDir:        filepath.Join(root, "data"),
		StorePath:      filepath.Join(root, "dbnest.db"),
		LogLevel:       "info",
		PortRangeStart: ports.DefaultRangeStart,
		PortRangeEnd:   ports.DefaultRangeEnd,
		Engines:        map[string]EngineSettings{},
	}
}

// Path returns the config file location, honoring DBNEST_CONFIG.
func Path() string {
	if p := os.Getenv("DBNEST_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".dbnest", "config.yaml")
}

// Load reads the config file, layering it over the defaults. Environment
// variables prefixed DBNEST_ override file values. A missing file is not an
// error; the defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(Path())
	v.SetConfigType("yaml")
	v.SetEnvPrefix("dbnest")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file %s: %w", Path(), err)
			}
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Engines == nil {
		cfg.Engines = map[string]EngineSettings{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return engine.NewValidationError("invalid configuration", err)
	}
	for kind := range c.Engines {
		if _, err := engine.ParseKind(kind); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the config to the config file as YAML, creating the parent
// directory if needed.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Render returns the config as YAML for display.
func (c *Config) Render() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}

// BinDirFor returns the configured binary directory for an engine kind,
// empty when the engine resolves through PATH.
func (c *Config) BinDirFor(kind engine.Kind) string {
	return c.Engines[string(kind)].BinDir
}

// Set assigns a configuration key from its string form. Engine settings use
// dotted keys, e.g. "engines.postgres.bin_dir".
func (c *Config) Set(key, value string) error {
	switch key {
	case "data_dir":
		c.DataDir = value
	case "store_path":
		c.StorePath = value
	case "log_level":
		c.LogLevel = value
	case "port_range_start":
		n, err := strconv.Atoi(value)
		if err != nil {
			return engine.NewValidationError(fmt.Sprintf("%s must be a number", key), err)
		}
		c.PortRangeStart = n
	case "port_range_end":
		n, err := strconv.Atoi(value)
		if err != nil {
			return engine.NewValidationError(fmt.Sprintf("%s must be a number", key), err)
		}
		c.PortRangeEnd = n
	default:
		kind, field, ok := engineKey(key)
		if !ok {
			return engine.NewValidationError(fmt.Sprintf("unknown config key %q", key), nil)
		}
		if field != "bin_dir" {
			return engine.NewValidationError(fmt.Sprintf("unknown engine setting %q", field), nil)
		}
		s := c.Engines[string(kind)]
		s.BinDir = value
		c.Engines[string(kind)] = s
	}
	return c.Validate()
}

// Unset restores a configuration key to its default.
func (c *Config) Unset(key string) error {
	def := Default()
	switch key {
	case "data_dir":
		c.DataDir = def.DataDir
	case "store_path":
		c.StorePath = def.StorePath
	case "log_level":
		c.LogLevel = def.LogLevel
	case "port_range_start":
		c.PortRangeStart = def.PortRangeStart
	case "port_range_end":
		c.PortRangeEnd = def.PortRangeEnd
	default:
		kind, field, ok := engineKey(key)
		if !ok {
			return engine.NewValidationError(fmt.Sprintf("unknown config key %q", key), nil)
		}
		if field != "bin_dir" {
			return engine.NewValidationError(fmt.Sprintf("unknown engine setting %q", field), nil)
		}
		delete(c.Engines, string(kind))
	}
	return nil
}

// engineKey splits "engines.<kind>.<field>" and validates the kind.
func engineKey(key string) (engine.Kind, string, bool) {
	parts := strings.SplitN(key, ".", 3)
	if len(parts) != 3 || parts[0] != "engines" {
		return "", "", false
	}
	kind, err := engine.ParseKind(parts[1])
	if err != nil {
		return "", "", false
	}
	return kind, parts[2], true
}

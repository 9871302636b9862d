// Package config loads aggscope settings.
//
// Precedence (highest to lowest): explicitly set flags > AGGSCOPE_* environment
// variables > config file > defaults. The config file is the --config path,
// or aggscope.yaml / aggscope.yml in the working directory.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultJournal = ".aggscope/journal.db"
	DefaultSuffix  = "Aggregate"
	DefaultFormat  = "text"
	EnvPrefix      = "AGGSCOPE_"
)

// Config holds all CLI configuration options.
type Config struct {
	MongoURI string        `koanf:"mongo_uri"`
	Database string        `koanf:"database"`
	Journal  string        `koanf:"journal"`
	Suffix   string        `koanf:"suffix"`
	Format   string        `koanf:"format"`
	Verbose  bool          `koanf:"verbose"`
	MaxTime  time.Duration `koanf:"max_time"`

	// File is the config file that was read, empty if none.
	File string `koanf:"-"`
}

// Validate checks values that cannot be checked by type.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	if c.Suffix == "" {
		return fmt.Errorf("suffix must not be empty")
	}
	if c.MaxTime < 0 {
		return fmt.Errorf("max_time must not be negative, got %s", c.MaxTime)
	}
	if c.MongoURI != "" && c.Database == "" {
		return fmt.Errorf("database is required with mongo_uri")
	}
	return nil
}

// findConfigFile returns explicit, or the first default file that exists.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"aggscope.yaml", "aggscope.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds a Config. flags may be nil; only flags that were explicitly set
// are applied, with kebab-case names mapped to snake_case keys.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"journal": DefaultJournal,
		"suffix":  DefaultSuffix,
		"format":  DefaultFormat,
		"verbose": false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// AGGSCOPE_MONGO_URI -> mongo_uri
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

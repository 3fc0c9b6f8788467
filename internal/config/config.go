package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/atlekbai/sqlcraft/internal/dialect"
)

// EnvPrefix is prepended to every environment variable: SQLCRAFT_PORT, ...
const EnvPrefix = "SQLCRAFT"

type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	// CatalogSchemas limits the Postgres catalog load to these schemas.
	CatalogSchemas []string `mapstructure:"catalog_schemas"`
	CatalogFile    string   `mapstructure:"catalog_file"`
	Dialect        string   `mapstructure:"dialect"`
	LogLevel       string   `mapstructure:"log_level"`

	OnlyRegisteredFunctions bool `mapstructure:"only_registered_functions"`
	InlineParameters        bool `mapstructure:"inline_parameters"`
}

// Load reads configuration with precedence env > file > defaults. An empty
// path looks for sqlcraft.yaml in the working directory and tolerates its
// absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sqlcraft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if _, err := cfg.DialectOptions(); err != nil {
		return nil, err
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("catalog_schemas", []string{"public"})
	v.SetDefault("catalog_file", "")
	v.SetDefault("dialect", "postgres")
	v.SetDefault("log_level", "info")
	v.SetDefault("only_registered_functions", false)
	v.SetDefault("inline_parameters", false)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// DialectOptions returns the configured preset with the overrides applied.
func (c *Config) DialectOptions() (dialect.Options, error) {
	return c.DialectOptionsFor(c.Dialect)
}

// DialectOptionsFor returns the named preset with the configured overrides.
func (c *Config) DialectOptionsFor(name string) (dialect.Options, error) {
	opts, err := dialect.Lookup(name)
	if err != nil {
		return dialect.Options{}, fmt.Errorf("config: %w", err)
	}
	opts.OnlyRegisteredFunctions = c.OnlyRegisteredFunctions
	opts.InlineParameters = c.InlineParameters
	return opts, nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full service configuration. Values come from a yaml file
// plus environment variable overrides (OPENPOST_DATABASE_TYPE and friends).
type Config struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	StaticDir   string `mapstructure:"staticDir"`

	Database struct {
		Type            string `mapstructure:"type"`
		Path            string `mapstructure:"path"`
		Host            string `mapstructure:"host"`
		Port            string `mapstructure:"port"`
		Name            string `mapstructure:"name"`
		User            string `mapstructure:"user"`
		Password        string `mapstructure:"password"`
		SSLMode         string `mapstructure:"sslmode"`
		MaxConns        int    `mapstructure:"maxConns"`
		MaxIdle         int    `mapstructure:"maxIdle"`
		ConnMaxLifetime string `mapstructure:"connMaxLifetime"`
	} `mapstructure:"database"`
}

// Load reads the configuration from the given file and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("OPENPOST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Printf("Warning: config file %s not found, using defaults and environment", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "./static"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/openpost.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MaxIdle == 0 {
		cfg.Database.MaxIdle = 5
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs in production mode. It
// controls the Secure flag on session cookies and the CORS origin policy.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ballee/dbsync/internal/models"
)

// Config carries everything the engine reads from the environment.
// Flags override these values, these values override the defaults.
type Config struct {
	ProdHost    string `env:"PROD_DB_HOST"`
	ProdPort    int    `env:"PROD_DB_PORT"`
	StagingHost string `env:"STAGING_DB_HOST"`
	StagingPort int    `env:"STAGING_DB_PORT"`
	LocalHost   string `env:"LOCAL_DB_HOST"`
	LocalPort   int    `env:"LOCAL_DB_PORT"`

	Schema          string `env:"DBSYNC_SCHEMA" envDefault:"public"`
	CredentialsFile string `env:"DBSYNC_CREDENTIALS_FILE" envDefault:".dbsync.credentials"`
	DumpBin         string `env:"DBSYNC_PG_DUMP" envDefault:"pg_dump"`
	RestoreBin      string `env:"DBSYNC_PG_RESTORE" envDefault:"pg_restore"`

	Debug   bool `env:"DBSYNC_DEBUG" envDefault:"false"`
	JSONLog bool `env:"DBSYNC_JSON_LOG" envDefault:"false"`
}

// Load reads .env (when present) and parses the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// Apply overlays configured connection parameters onto a registry
// descriptor. Identity and protection level are never overridable.
func (c *Config) Apply(e models.Environment) models.Environment {
	host, port := "", 0
	switch e.ID {
	case "production":
		host, port = c.ProdHost, c.ProdPort
	case "staging":
		host, port = c.StagingHost, c.StagingPort
	case "local":
		host, port = c.LocalHost, c.LocalPort
	}
	if host != "" {
		e.Host = host
	}
	if port != 0 {
		e.Port = port
	}
	return e
}

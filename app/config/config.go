package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   HTTPServerConfig
	Upstream UpstreamConfig
	Mongo    MongoConfig
	Export   ExportConfig
	Kinds    KindsConfig
}

type HTTPServerConfig struct {
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"120s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"300s"`
}

// UpstreamConfig — генерационный сервис, в который уходят live-запросы.
type UpstreamConfig struct {
	BaseURL string        `env:"UPSTREAM_BASE_URL" envDefault:"http://localhost:9090/api"`
	APIKey  string        `env:"UPSTREAM_API_KEY"`
	Timeout time.Duration `env:"UPSTREAM_CLIENT_TIMEOUT" envDefault:"5m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DB" envDefault:"cardforge"`
}

type ExportConfig struct {
	Dir string `env:"EXPORT_DIR" envDefault:"./exports"`
}

type KindsConfig struct {
	// File points to an HCL kind registry; empty means built-in defaults.
	File     string `env:"KINDS_FILE"`
	Tutorial bool   `env:"TUTORIAL_MODE" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

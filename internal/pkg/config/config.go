package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr      string        `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr       string        `env:"ADMIN_ADDR" envDefault:":9091"`
	PostgresURL     string        `env:"POSTGRES_URL,required"`
	RedisAddr       string        `env:"REDIS_ADDR,required"`
	JobStream       string        `env:"JOB_STREAM" envDefault:"jobs:submitted"`
	JobGroup        string        `env:"JOB_GROUP" envDefault:"trackers"`
	WorkerCount     int           `env:"WORKER_COUNT" envDefault:"5"`
	JobTimeout      time.Duration `env:"JOB_TIMEOUT" envDefault:"300s"`
	InputDir        string        `env:"INPUT_DIR" envDefault:"./data/input"`
	ArtifactDir     string        `env:"ARTIFACT_DIR" envDefault:"./data/artifacts"`
	WALDir          string        `env:"WAL_DIR" envDefault:"./data/wal"`
	ContactCacheTTL time.Duration `env:"CONTACT_CACHE_TTL" envDefault:"5m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

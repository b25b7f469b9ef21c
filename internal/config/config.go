// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	Database Database
	SMTP     SMTP
	Delivery Delivery

	AMQPURL       string `env:"AMQP_URL"`
	CampaignQueue string `env:"CAMPAIGN_QUEUE" envDefault:"campaign_runs"`

	RedisAddr        string        `env:"REDIS_ADDR"`
	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"5m"`
}

type Database struct {
	URL      string `env:"DATABASE_URL"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME"`
}

// DSN prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type SMTP struct {
	Host          string `env:"SMTP_HOST"`
	Port          int    `env:"SMTP_PORT" envDefault:"587"`
	User          string `env:"SMTP_USER"`
	Pass          string `env:"SMTP_PASS"`
	From          string `env:"SMTP_FROM"` // e.g. "Innovation Portal <no-reply@city.gov>"
	SkipTLSVerify bool   `env:"SMTP_SKIP_TLS_VERIFY"`
}

type Delivery struct {
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"50"`
	BatchDelay       time.Duration `env:"BATCH_DELAY" envDefault:"1s"`
	BatchWorkers     int           `env:"BATCH_WORKERS" envDefault:"5"`
	TransportTimeout time.Duration `env:"TRANSPORT_TIMEOUT" envDefault:"15s"`
	DefaultLanguage  string        `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	RunLeaseTTL      time.Duration `env:"RUN_LEASE_TTL" envDefault:"5m"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Delivery.BatchSize < 1 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.Delivery.BatchSize)
	}
	if cfg.Delivery.BatchWorkers < 1 {
		cfg.Delivery.BatchWorkers = 1
	}
	return &cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}

// Package config loads process configuration from the environment. Missing
// required values abort startup so a misconfigured instance never serves
// traffic with a half-working auth flow.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":3000"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	// RedisAddr switches the handshake transaction store to Redis when set.
	// Empty means the in-process store, which is only correct for a single
	// instance.
	RedisAddr string `env:"REDIS_ADDR"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"720h"`

	// AuthLogPath is the SQLite file for the handshake audit log.
	AuthLogPath string `env:"AUTH_LOG_PATH" envDefault:"./data/authlog.db"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`

	SMTPAddr string `env:"SMTP_ADDR"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"Sizzle <no-reply@sizzle-mail.lat>"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

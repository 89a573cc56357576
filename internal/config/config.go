// Package config loads the server process configuration from the
// environment, after reading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Revocation backends accepted in REVOCATION_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiresIn  time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`
	JWTMethod     string        `env:"JWT_SIGNING_METHOD" envDefault:"hs256"`
	JWTIssuer     string        `env:"JWT_ISSUER"`
	JWTAudience   string        `env:"JWT_AUDIENCE"`
	JWTLeeway     time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`
	UnifyFailures bool          `env:"LOGIN_UNIFY_FAILURES" envDefault:"false"`

	HTTPHost        string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RevocationBackend string        `env:"REVOCATION_BACKEND" envDefault:"memory"`
	LookupTimeout     time.Duration `env:"REVOCATION_LOOKUP_TIMEOUT" envDefault:"500ms"`
	WriteTimeout      time.Duration `env:"REVOCATION_WRITE_TIMEOUT" envDefault:"2s"`
	PruneInterval     time.Duration `env:"REVOCATION_PRUNE_INTERVAL" envDefault:"10m"`
	RevocationGrace   time.Duration `env:"REVOCATION_GRACE" envDefault:"1m"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"tg"`

	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/tokengate.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`
	LogEnv     string `env:"LOG_ENV" envDefault:"production"`
}

// Load reads envFile when it exists, then parses the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	if c.RevocationGrace < 0 {
		return errors.New("REVOCATION_GRACE must not be negative")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTPPort)
	}
	switch c.RevocationBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR required for redis backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown REVOCATION_BACKEND %q", c.RevocationBackend)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

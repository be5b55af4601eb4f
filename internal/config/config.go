package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "gochat"

const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Config is read from GOCHAT_* environment variables, optionally seeded
// from a .env file.
type Config struct {
	ServerAddr     string        `envconfig:"ADDR" default:":8000"`
	Store          string        `envconfig:"STORE" default:"badger"`
	DatabaseDSN    string        `envconfig:"DATABASE_DSN"`
	BadgerPath     string        `envconfig:"BADGER_PATH" default:"data"`
	SigningSecret  string        `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	Rooms          []string      `envconfig:"ROOMS" default:"general,tech,random"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	MessageRate    float64       `envconfig:"MESSAGE_RATE" default:"5"`
	MessageBurst   int           `envconfig:"MESSAGE_BURST" default:"10"`

	SigningKey []byte `ignored:"true"`
}

// Load reads envFiles (a missing file is not an error) and then the
// environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, errors.New("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func (c *Config) validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database DSN cannot be empty")
		}
	case StoreBadger:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = signingKey

	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.MessageBurst < 0 {
		return fmt.Errorf("message burst cannot be negative")
	}

	return nil
}

package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/gochat-hub/internal/logging"
)

// RateLimitConfig defines the per-session token bucket for inbound items.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"5" validate:"gte=0"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s" validate:"gte=0"`
}

// Config holds the server settings. Every field can be set from the
// environment; see DefaultConfig for the values used otherwise.
type Config struct {
	Host           string   `env:"CHAT_HOST" envDefault:"127.0.0.1"`
	Port           int      `env:"CHAT_PORT" envDefault:"1234" validate:"gte=0,lte=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:1234,http://127.0.0.1:1234"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE" envDefault:"512" validate:"gt=0"`
	RateLimit      RateLimitConfig

	HubCapacity     int           `env:"HUB_CAPACITY" envDefault:"65536" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`

	Log logging.Options
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the configuration used when nothing is set in the
// environment.
func DefaultConfig() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("server: invalid config defaults: %v", err))
	}
	return cfg
}

// LoadConfig reads the given dotenv files, if present, and then the process
// environment. Variables already set in the environment win over the files.
func LoadConfig(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PingPeriod is how often keepalive pings are sent. It stays below the pong
// timeout so a healthy peer always answers in time.
func (c Config) PingPeriod() time.Duration {
	return c.PongTimeout * 9 / 10
}

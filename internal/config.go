package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the codec tools.
type Config struct {
	// ImageDB is the sqlite file holding stored portraits. Empty disables
	// the image store.
	ImageDB string `env:"CODEC_IMAGE_DB"`

	FetchTimeout      time.Duration `env:"CODEC_FETCH_TIMEOUT" envDefault:"15s"`
	FetchMaxBytes     int64         `env:"CODEC_FETCH_MAX_BYTES" envDefault:"20971520"`
	MaxPortraitHeight int           `env:"CODEC_MAX_PORTRAIT_HEIGHT" envDefault:"2000"`
	PortraitQuality   int           `env:"CODEC_PORTRAIT_QUALITY" envDefault:"85"`
	HTTPAddr          string        `env:"CODEC_HTTP_ADDR" envDefault:":8080"`
	LogLevel          string        `env:"CODEC_LOG_LEVEL" envDefault:"info"`
	Verbose           bool          `env:"CODEC_VERBOSE"`
}

// Level resolves the configured log level. Verbose forces debug output.
func (c *Config) Level() LogLevel {
	if c.Verbose {
		return LogLevelDebug
	}
	return ParseLogLevel(c.LogLevel)
}

// LoadConfig reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges that the environment parser cannot express.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("CODEC_FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.FetchMaxBytes <= 0 {
		return fmt.Errorf("CODEC_FETCH_MAX_BYTES must be positive, got %d", c.FetchMaxBytes)
	}
	if c.MaxPortraitHeight <= 0 {
		return fmt.Errorf("CODEC_MAX_PORTRAIT_HEIGHT must be positive, got %d", c.MaxPortraitHeight)
	}
	if c.PortraitQuality < 1 || c.PortraitQuality > 100 {
		return fmt.Errorf("CODEC_PORTRAIT_QUALITY must be within 1-100, got %d", c.PortraitQuality)
	}
	return nil
}

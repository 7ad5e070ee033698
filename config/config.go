package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "visitstats"

type Config struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	DBFile       string        `envconfig:"DB_FILE" default:"./stats.db"`
	TemplatesDir string        `envconfig:"TEMPLATES_DIR" default:"./templates"`
	Env          string        `envconfig:"ENV" default:"development"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"LOG_FORMAT" default:"json"`
	RateLimit    uint          `envconfig:"RATE_LIMIT" default:"100"`
	OnlineWindow time.Duration `envconfig:"ONLINE_WINDOW" default:"30s"`
	// 0 leaves eviction to request handling only.
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"0"`
	StatsPushInterval time.Duration `envconfig:"STATS_PUSH_INTERVAL" default:"5s"`
}

// Load reads an optional .env file and then decodes VISITSTATS_* variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port must not be empty")
	}
	if strings.TrimSpace(c.DBFile) == "" {
		return errors.New("db file must not be empty")
	}
	if c.RateLimit == 0 {
		return errors.New("rate limit must be positive")
	}
	if c.OnlineWindow < time.Second {
		return fmt.Errorf("online window must be at least 1s, got %s", c.OnlineWindow)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep interval must not be negative, got %s", c.SweepInterval)
	}
	if c.StatsPushInterval <= 0 {
		return fmt.Errorf("stats push interval must be positive, got %s", c.StatsPushInterval)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/playpcd/pcdtrainer/internal/engine"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/pcd.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile  string     `env:"LOG_FILE"`
	SPADir   string     `env:"SPA_DIR"`

	// Optional collaborators. An empty URL disables the component.
	RedisURL string `env:"REDIS_URL"`
	NATSURL  string `env:"NATS_URL"`

	GameTimeout           time.Duration `env:"GAME_TIMEOUT" envDefault:"30s"`
	GameRule              engine.Rule   `env:"GAME_RULE" envDefault:"deferred"`
	LabelDensityThreshold int           `env:"LABEL_DENSITY_THRESHOLD" envDefault:"200"`
	SessionTTL            time.Duration `env:"SESSION_TTL" envDefault:"10m"`
	ScenarioCacheTTL      time.Duration `env:"SCENARIO_CACHE_TTL" envDefault:"1h"`
	SeedDemo              bool          `env:"SEED_DEMO" envDefault:"true"`

	// First admin account, created only while no admin exists.
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@playpcd.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"changeme"`
}

// Load reads an optional .env file from the working directory and then
// parses the environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if _, err := engine.ParseRule(string(cfg.GameRule)); err != nil {
		return nil, err
	}
	if cfg.GameTimeout <= 0 {
		return nil, fmt.Errorf("GAME_TIMEOUT must be positive, got %s", cfg.GameTimeout)
	}
	if cfg.SessionTTL <= cfg.GameTimeout {
		return nil, fmt.Errorf("SESSION_TTL (%s) must be longer than GAME_TIMEOUT (%s)", cfg.SessionTTL, cfg.GameTimeout)
	}
	if cfg.LabelDensityThreshold < 1 {
		return nil, fmt.Errorf("LABEL_DENSITY_THRESHOLD must be at least 1, got %d", cfg.LabelDensityThreshold)
	}
	return &cfg, nil
}

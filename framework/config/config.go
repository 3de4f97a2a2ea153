package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the framework's typed configuration. Applications read their own
// keys with Get or embed Config in a larger struct parsed with Parse.
type Config struct {
	App     AppConfig     `envPrefix:"APP_"`
	Log     LogConfig     `envPrefix:"LOG_"`
	HTTP    HTTPConfig    `envPrefix:"HTTP_"`
	Upload  UploadConfig  `envPrefix:"UPLOAD_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name  string `env:"NAME" envDefault:"NestSource"`
	Env   string `env:"ENV" envDefault:"local"` // local | production | testing
	Debug bool   `env:"DEBUG" envDefault:"true"`
	Port  string `env:"PORT" envDefault:"3000"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	GlobalPrefix string   `env:"GLOBAL_PREFIX"`
	CORSEnabled  bool     `env:"CORS_ENABLED" envDefault:"false"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

type UploadConfig struct {
	Dest        string `env:"DEST"`
	MaxFileSize int64  `env:"MAX_FILE_SIZE" envDefault:"0"`
	MaxMemory   int64  `env:"MAX_MEMORY" envDefault:"33554432"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// Addr is the listen address derived from APP_PORT.
func (c *Config) Addr() string { return ":" + c.App.Port }

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse fills any env-tagged struct from the environment.
func Parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

// Package config loads engine and CLI settings.
//
// Precedence, lowest first: built-in defaults, the optional YAML file, a .env
// file in the working directory, then the process environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rawblock/coref-scorer/internal/logger"
)

// ErrMissingEnv is returned by RequireEnv for an unset variable.
var ErrMissingEnv = errors.New("config: required environment variable not set")

// Scoring holds the evaluator defaults shared by the CLI and the engine.
type Scoring struct {
	Reconcile bool     `yaml:"reconcile"`
	Parallel  bool     `yaml:"parallel"`
	Metrics   []string `yaml:"metrics"`
	Workers   int      `yaml:"workers"`
}

// Config is the full settings tree.
type Config struct {
	Port           string  `yaml:"port"`
	DatabaseURL    string  `yaml:"databaseUrl"`
	LogLevel       string  `yaml:"logLevel"`
	AllowedOrigins string  `yaml:"allowedOrigins"`
	BatchRoot      string  `yaml:"batchRoot"`
	RatePerMinute  int     `yaml:"ratePerMinute"`
	RateBurst      int     `yaml:"rateBurst"`
	Scoring        Scoring `yaml:"scoring"`

	// Secrets are read from the environment only.
	AuthToken string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:          "5339",
		LogLevel:      "info",
		RatePerMinute: 120,
		RateBurst:     20,
		Scoring: Scoring{
			Reconcile: true,
			Workers:   1,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	LoadEnv()
	cfg.applyEnv()
	return cfg, nil
}

// Decode reads YAML into cfg, rejecting unknown keys. Fields absent from the
// document keep their current values.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("[Config] No .env file found, using system environment variables")
	}
}

func (c *Config) applyEnv() {
	c.Port = GetEnvOrDefault("PORT", c.Port)
	c.DatabaseURL = GetEnvOrDefault("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = GetEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.AllowedOrigins = GetEnvOrDefault("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.BatchRoot = GetEnvOrDefault("BATCH_ROOT", c.BatchRoot)
	c.RatePerMinute = GetEnvInt("RATE_LIMIT_PER_MINUTE", c.RatePerMinute)
	c.RateBurst = GetEnvInt("RATE_LIMIT_BURST", c.RateBurst)
	c.AuthToken = os.Getenv("API_AUTH_TOKEN")

	c.Scoring.Reconcile = GetEnvBool("SCORING_RECONCILE", c.Scoring.Reconcile)
	c.Scoring.Parallel = GetEnvBool("SCORING_PARALLEL", c.Scoring.Parallel)
	c.Scoring.Workers = GetEnvInt("SCORING_WORKERS", c.Scoring.Workers)
	if v := os.Getenv("SCORING_METRICS"); v != "" {
		c.Scoring.Metrics = splitList(v)
	}
}

// RequireEnv reads a required environment variable.
func RequireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%w: %s (copy .env.example to .env and fill in your values)", ErrMissingEnv, key)
	}
	return val, nil
}

// GetEnvOrDefault returns the env var value or a default for non-secret settings.
func GetEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// GetEnvInt parses an integer variable, keeping fallback when unset or invalid.
func GetEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		logger.Warn("[Config] Ignoring invalid integer", "key", key, "value", val)
		return fallback
	}
	return n
}

// GetEnvBool parses a boolean variable, keeping fallback when unset or invalid.
func GetEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		logger.Warn("[Config] Ignoring invalid boolean", "key", key, "value", val)
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

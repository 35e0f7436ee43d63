// Package config loads gateway configuration from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// HTTP listener
	Addr string

	// Access gate
	JWTSecret     string
	JWTExpiration time.Duration
	APIUsername   string
	APIPassword   string

	// Scoring backend. An empty ScorerURL selects the built-in linear model.
	ScorerURL    string
	ScorerAPIKey string

	// Batch-policy runner
	RunnerMaxBatchSize int
	RunnerMaxWait      time.Duration

	// Job store and orchestration pool
	MaxBatchItems int
	Workers       int
	QueueCapacity int
	JobRetention  time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; missing files are ignored.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr: getEnv("PREDICTGATE_ADDR", ":3000"),

		JWTSecret:     getEnv("JWT_SECRET_KEY", "default_secret"),
		JWTExpiration: time.Duration(getEnvInt("JWT_EXPIRATION_MINUTES", 30)) * time.Minute,
		APIUsername:   getEnv("API_USERNAME", "admin"),
		APIPassword:   getEnv("API_PASSWORD", "secret123"),

		ScorerURL:    getEnv("PREDICTGATE_SCORER_URL", ""),
		ScorerAPIKey: getEnv("PREDICTGATE_SCORER_API_KEY", ""),

		RunnerMaxBatchSize: getEnvInt("PREDICTGATE_RUNNER_BATCH_SIZE", 64),
		RunnerMaxWait:      getEnvDuration("PREDICTGATE_RUNNER_MAX_WAIT", 5*time.Millisecond),

		MaxBatchItems: getEnvInt("PREDICTGATE_MAX_BATCH_ITEMS", 1000),
		Workers:       getEnvInt("PREDICTGATE_WORKERS", 4),
		QueueCapacity: getEnvInt("PREDICTGATE_QUEUE_CAPACITY", 4096),
		JobRetention:  getEnvDuration("PREDICTGATE_JOB_RETENTION", time.Hour),

		LogFile:  getEnv("PREDICTGATE_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("PREDICTGATE_LOG_LEVEL", "INFO")),
	}
}

// fileOverlay is the YAML shape of the optional config file. Durations are
// strings ("5ms", "1h") so the file reads like the environment variables do.
type fileOverlay struct {
	Addr               string `yaml:"addr"`
	JWTSecret          string `yaml:"jwt_secret"`
	JWTExpiration      string `yaml:"jwt_expiration"`
	APIUsername        string `yaml:"api_username"`
	APIPassword        string `yaml:"api_password"`
	ScorerURL          string `yaml:"scorer_url"`
	ScorerAPIKey       string `yaml:"scorer_api_key"`
	RunnerMaxBatchSize int    `yaml:"runner_max_batch_size"`
	RunnerMaxWait      string `yaml:"runner_max_wait"`
	MaxBatchItems      int    `yaml:"max_batch_items"`
	Workers            int    `yaml:"workers"`
	QueueCapacity      int    `yaml:"queue_capacity"`
	JobRetention       string `yaml:"job_retention"`
	LogFile            string `yaml:"log_file"`
	LogLevel           string `yaml:"log_level"`
}

// ApplyFile overlays values from a YAML file onto the config. Fields absent
// from the file are left untouched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.JWTSecret != "" {
		c.JWTSecret = overlay.JWTSecret
	}
	if err := applyDuration(&c.JWTExpiration, overlay.JWTExpiration); err != nil {
		return fmt.Errorf("jwt_expiration: %w", err)
	}
	if overlay.APIUsername != "" {
		c.APIUsername = overlay.APIUsername
	}
	if overlay.APIPassword != "" {
		c.APIPassword = overlay.APIPassword
	}
	if overlay.ScorerURL != "" {
		c.ScorerURL = overlay.ScorerURL
	}
	if overlay.ScorerAPIKey != "" {
		c.ScorerAPIKey = overlay.ScorerAPIKey
	}
	if overlay.RunnerMaxBatchSize != 0 {
		c.RunnerMaxBatchSize = overlay.RunnerMaxBatchSize
	}
	if err := applyDuration(&c.RunnerMaxWait, overlay.RunnerMaxWait); err != nil {
		return fmt.Errorf("runner_max_wait: %w", err)
	}
	if overlay.MaxBatchItems != 0 {
		c.MaxBatchItems = overlay.MaxBatchItems
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueCapacity != 0 {
		c.QueueCapacity = overlay.QueueCapacity
	}
	if err := applyDuration(&c.JobRetention, overlay.JobRetention); err != nil {
		return fmt.Errorf("job_retention: %w", err)
	}
	if overlay.LogFile != "" {
		c.LogFile = overlay.LogFile
	}
	if overlay.LogLevel != "" {
		c.LogLevel = parseLogLevel(overlay.LogLevel)
	}
	return nil
}

func applyDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

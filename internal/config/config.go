// Package config loads process configuration from an optional .env file, an optional
// per-environment YAML settings file, and environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is everything the binaries need besides API credentials, which are read
// per run by an enrich.CredentialProvider.
type Config struct {
	Env string

	ZoomInfoBaseURL string
	ZoomInfoCAPath  string
	// SecretsFile, when set, is read for credentials instead of the environment.
	SecretsFile string

	RequestTimeout time.Duration
	MaxRetries     int
	RateLimitRPS   float64

	LogLevel  string
	LogFormat string

	Port      string
	UploadDir string

	// EventStore selects where event objects live: "s3" or "local".
	EventStore     string
	EventStoreRoot string

	AWSRegion            string
	SQSQueueURL          string
	SQSWaitTime          time.Duration
	SQSVisibilityTimeout time.Duration
	SQSMaxMessages       int
}

// Settings are the per-environment values a settings file may carry.
type Settings struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	UploadDir string `yaml:"upload_dir"`
}

func defaults() Config {
	return Config{
		Env:            "local",
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
		Port:           "8000",
		UploadDir:      "uploads",
		EventStore:     "s3",
		SQSWaitTime:    20 * time.Second,
		SQSMaxMessages: 1,
	}
}

// Load reads .env (ENV_PATH, default ".env"), then the settings file named by
// APP_CONFIG for the APP_ENV environment, then the environment itself.
func Load() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := defaults()
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		cfg.Env = v
	}

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG")); path != "" {
		s, err := LoadSettings(path, cfg.Env)
		if err != nil {
			return Config{}, err
		}
		cfg.apply(s)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads ENV_PATH, or .env when unset. Variables already in the
// environment win. A missing default file is not an error; a missing explicit one is.
func LoadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("ENV_PATH"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if explicit {
			return fmt.Errorf("load ENV_PATH=%q: %w", path, err)
		}
		slog.Debug("skipping .env", "path", path, "error", err)
	}
	return nil
}

// LoadSettings reads a YAML file keyed by environment name and returns the entry
// for env. An environment missing from the file yields zero Settings.
func LoadSettings(path, env string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	var all map[string]Settings
	if err := yaml.Unmarshal(b, &all); err != nil {
		return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return all[env], nil
}

func (c *Config) apply(s Settings) {
	if v := strings.TrimSpace(s.LogLevel); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(s.LogFormat); v != "" {
		c.LogFormat = v
	}
	if v := strings.TrimSpace(s.UploadDir); v != "" {
		c.UploadDir = v
	}
}

func (c *Config) applyEnv() error {
	envString(&c.ZoomInfoBaseURL, "ZOOMINFO_BASE_URL")
	envString(&c.ZoomInfoCAPath, "ZOOMINFO_CA_PATH")
	envString(&c.SecretsFile, "ZOOMINFO_SECRETS_FILE")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFormat, "LOG_FORMAT")
	envString(&c.Port, "PORT")
	envString(&c.UploadDir, "UPLOAD_DIR")
	envString(&c.EventStore, "EVENT_STORE")
	envString(&c.EventStoreRoot, "EVENT_STORE_ROOT")
	envString(&c.AWSRegion, "AWS_REGION")
	envString(&c.SQSQueueURL, "SQS_QUEUE_URL")

	var err error
	if c.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.MaxRetries, err = envInt("MAX_RETRIES", c.MaxRetries); err != nil {
		return err
	}
	if c.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", c.RateLimitRPS); err != nil {
		return err
	}
	if c.SQSWaitTime, err = envDuration("SQS_WAIT_TIME", c.SQSWaitTime); err != nil {
		return err
	}
	if c.SQSVisibilityTimeout, err = envDuration("SQS_VISIBILITY_TIMEOUT", c.SQSVisibilityTimeout); err != nil {
		return err
	}
	if c.SQSMaxMessages, err = envInt("SQS_MAX_MESSAGES", c.SQSMaxMessages); err != nil {
		return err
	}
	return nil
}

func (c Config) validate() error {
	if err := validatePort(c.Port); err != nil {
		return fmt.Errorf("invalid PORT=%q: %w", c.Port, err)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid MAX_RETRIES=%d: must be >= 0", c.MaxRetries)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("invalid RATE_LIMIT_RPS=%g: must be >= 0", c.RateLimitRPS)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid REQUEST_TIMEOUT=%s: must be > 0", c.RequestTimeout)
	}
	switch c.EventStore {
	case "s3", "local":
	default:
		return fmt.Errorf("invalid EVENT_STORE=%q: want s3 or local", c.EventStore)
	}
	if c.SQSMaxMessages < 1 || c.SQSMaxMessages > 10 {
		return fmt.Errorf("invalid SQS_MAX_MESSAGES=%d: must be between 1 and 10", c.SQSMaxMessages)
	}
	return nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return errors.New("port must be a number")
	}
	if n < 1 || n > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func envString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

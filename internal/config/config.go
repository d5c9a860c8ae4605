// Package config loads service configuration from an optional YAML file with
// environment overrides. Secrets (API keys, tokens) come from the environment
// only and are never written to the YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   string `yaml:"port"`
		APIKey string `yaml:"-"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"-"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"-"`
	} `yaml:"redis"`
	Generator struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"-"`
	} `yaml:"generator"`
	Submission struct {
		Endpoint       string        `yaml:"endpoint"`
		APIKey         string        `yaml:"-"`
		Timeout        time.Duration `yaml:"timeout"`
		BaseRetryDelay time.Duration `yaml:"base_retry_delay"`
		MaxRetryDelay  time.Duration `yaml:"max_retry_delay"`
		MaxRetries     int           `yaml:"max_retries"`
	} `yaml:"submission"`
	Worker struct {
		Concurrency   int           `yaml:"concurrency"`
		PollInterval  time.Duration `yaml:"poll_interval"`
		LeaseDuration time.Duration `yaml:"lease_duration"`
		BatchSize     int           `yaml:"batch_size"`
	} `yaml:"worker"`
	Telegram struct {
		ChatID int64  `yaml:"chat_id"`
		Token  string `yaml:"-"`
	} `yaml:"telegram"`
	Notion struct {
		DatabaseID string `yaml:"database_id"`
		APIKey     string `yaml:"-"`
	} `yaml:"notion"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional
	cfg := defaultConfig()
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Generator.Provider = "template"
	cfg.Generator.Model = "gemini-1.5-flash"
	cfg.Submission.Timeout = 30 * time.Second
	cfg.Submission.BaseRetryDelay = time.Minute
	cfg.Submission.MaxRetryDelay = time.Hour
	cfg.Submission.MaxRetries = 3
	cfg.Worker.Concurrency = 4
	cfg.Worker.PollInterval = 15 * time.Second
	cfg.Worker.LeaseDuration = 2 * time.Minute
	cfg.Worker.BatchSize = 10
	cfg.Logging.Level = "info"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	cfg.Server.APIKey = os.Getenv("AUTOAPPLY_API_KEY")
	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("GENERATOR_PROVIDER"); v != "" {
		cfg.Generator.Provider = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
	cfg.Generator.APIKey = os.Getenv("GEMINI_API_KEY")
	if v := os.Getenv("SUBMISSION_ENDPOINT"); v != "" {
		cfg.Submission.Endpoint = v
	}
	cfg.Submission.APIKey = os.Getenv("SUBMISSION_API_KEY")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Notion.APIKey = os.Getenv("NOTION_API_KEY")
	if v := os.Getenv("AUTOAPPLY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Generator.Provider == "gemini" && cfg.Generator.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required in env when generator.provider is gemini")
	}
	if cfg.Submission.MaxRetries < 0 {
		return errors.New("submission.max_retries must be >= 0")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be > 0")
	}
	if cfg.Submission.BaseRetryDelay <= 0 || cfg.Submission.MaxRetryDelay < cfg.Submission.BaseRetryDelay {
		return errors.New("submission retry delays must satisfy 0 < base <= max")
	}
	return nil
}

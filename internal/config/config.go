package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env               string        `yaml:"env"`
	LogLevel          string        `yaml:"log_level"`
	DatabaseURL       string        `yaml:"database_url"`
	JWTSecret         string        `yaml:"jwt_secret"`
	Port              string        `yaml:"port"`
	FCMServiceAccount string        `yaml:"fcm_service_account"`
	RedisURL          string        `yaml:"redis_url"`
	UploadDir         string        `yaml:"upload_dir"`
	UploadURLPrefix   string        `yaml:"upload_url_prefix"`
	DraftsDir         string        `yaml:"drafts_dir"`
	BoardCacheTTL     time.Duration `yaml:"board_cache_ttl"`
	Fetch             FetchConfig   `yaml:"fetch"`
	Retry             RetryConfig   `yaml:"retry"`
}

type FetchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	ChunkSize    int `yaml:"chunk_size"`
}

type RetryConfig struct {
	ReadAttempts  int           `yaml:"read_attempts"`
	ChunkAttempts int           `yaml:"chunk_attempts"`
	WriteAttempts int           `yaml:"write_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
}

func Default() *Config {
	return &Config{
		Env:             "development",
		LogLevel:        "info",
		DatabaseURL:     "memories.db",
		JWTSecret:       "your-secret-key-change-in-production",
		Port:            "8080",
		UploadDir:       "./uploads",
		UploadURLPrefix: "/uploads",
		DraftsDir:       "./data/drafts",
		BoardCacheTTL:   30 * time.Second,
		Fetch: FetchConfig{
			DefaultLimit: 100,
			ChunkSize:    5,
		},
		Retry: RetryConfig{
			ReadAttempts:  3,
			ChunkAttempts: 2,
			WriteAttempts: 3,
			InitialDelay:  200 * time.Millisecond,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (configs/config.yaml when unset), then environment variables.
// Call LoadDotEnv first to pick up .env files.
func Load() (*Config, error) {
	cfg := Default()

	path := getEnv("CONFIG_FILE", "configs/config.yaml")
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.Port = getEnv("PORT", c.Port)
	c.FCMServiceAccount = getEnv("FCM_SERVICE_ACCOUNT", c.FCMServiceAccount)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.UploadURLPrefix = getEnv("UPLOAD_URL_PREFIX", c.UploadURLPrefix)
	c.DraftsDir = getEnv("DRAFTS_DIR", c.DraftsDir)

	var err error
	if c.BoardCacheTTL, err = getDuration("BOARD_CACHE_TTL", c.BoardCacheTTL); err != nil {
		return err
	}
	if c.Fetch.DefaultLimit, err = getInt("FETCH_DEFAULT_LIMIT", c.Fetch.DefaultLimit); err != nil {
		return err
	}
	if c.Fetch.ChunkSize, err = getInt("FETCH_CHUNK_SIZE", c.Fetch.ChunkSize); err != nil {
		return err
	}
	if c.Retry.InitialDelay, err = getDuration("RETRY_INITIAL_DELAY", c.Retry.InitialDelay); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	switch c.Env {
	case "development", "dev", "local":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working dir.
var ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string `yaml:"port"`
	LogLevel                string `yaml:"logLevel"`
	DatabaseURL             string `yaml:"databaseURL"`
	BatchSize               int    `yaml:"batchSize"`
	Concurrency             int    `yaml:"concurrency"`
	IdleWaitSeconds         int    `yaml:"idleWaitSeconds"`
	CooldownSeconds         int    `yaml:"cooldownSeconds"`
	ThrottleUnitSeconds     int    `yaml:"throttleUnitSeconds"`
	FetchTimeoutSeconds     int    `yaml:"fetchTimeoutSeconds"`
	PlatformBaseURL         string `yaml:"platformBaseURL"`
	UserAgent               string `yaml:"userAgent"`
	AcceptLanguage          string `yaml:"acceptLanguage"`
	RequestsPerMinute       int    `yaml:"requestsPerMinute"`
	RedisAddr               string `yaml:"redisAddr"`
	RedisPassword           string `yaml:"redisPassword"`
	RedisPrefix             string `yaml:"redisPrefix"`
	SharedRequestsPerMinute int    `yaml:"sharedRequestsPerMinute"`
	MinioEndpoint           string `yaml:"minioEndpoint"`
	MinioAccessKey          string `yaml:"minioAccessKey"`
	MinioSecretKey          string `yaml:"minioSecretKey"`
	MinioBucket             string `yaml:"minioBucket"`
	MinioUseSSL             bool   `yaml:"minioUseSSL"`
}

// Load reads config from path (defaults to ConfigPath). A missing file is
// allowed when the environment supplies the required values.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URI", "DATABASE_URL")
	setInt(&cfg.BatchSize, "WORKER_BATCH_SIZE")
	setInt(&cfg.Concurrency, "WORKER_CONCURRENCY")
	setInt(&cfg.IdleWaitSeconds, "WORKER_IDLE_WAIT_SECONDS")
	setInt(&cfg.CooldownSeconds, "WORKER_COOLDOWN_SECONDS")
	setInt(&cfg.ThrottleUnitSeconds, "WORKER_THROTTLE_UNIT_SECONDS")
	setInt(&cfg.FetchTimeoutSeconds, "WORKER_FETCH_TIMEOUT_SECONDS")
	setString(&cfg.PlatformBaseURL, "WORKER_PLATFORM_BASE_URL")
	setString(&cfg.UserAgent, "WORKER_USER_AGENT")
	setInt(&cfg.RequestsPerMinute, "WORKER_REQUESTS_PER_MINUTE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.SharedRequestsPerMinute, "WORKER_SHARED_REQUESTS_PER_MINUTE")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = enabled
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URI)")
	}
	if cfg.BatchSize < 0 {
		return errors.New("config: batchSize must be >= 0")
	}
	if cfg.Concurrency < 0 {
		return errors.New("config: concurrency must be >= 0")
	}
	if cfg.IdleWaitSeconds < 0 || cfg.CooldownSeconds < 0 || cfg.ThrottleUnitSeconds < 0 || cfg.FetchTimeoutSeconds < 0 {
		return errors.New("config: durations must be >= 0")
	}
	if cfg.RequestsPerMinute < 0 || cfg.SharedRequestsPerMinute < 0 {
		return errors.New("config: request rates must be >= 0")
	}
	if cfg.SharedRequestsPerMinute > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: sharedRequestsPerMinute requires redisAddr (set in config.yaml or REDIS_ADDR)")
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" && strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	return nil
}

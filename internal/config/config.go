// Package config loads server settings: built-in defaults, then an optional
// YAML file, then environment variables. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when Load is given an empty path. A missing default
// file is not an error; a missing explicit file is.
const DefaultPath = "config.yaml"

// Config is the full server configuration.
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // "text" or "json"

	DBPath string `yaml:"dbPath"`

	JWTSecret    string        `yaml:"jwtSecret"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	SecureCookie bool          `yaml:"secureCookie"`

	GitHubClientID     string `yaml:"githubClientID"`
	GitHubClientSecret string `yaml:"githubClientSecret"`
	GitHubCallbackURL  string `yaml:"githubCallbackURL"`

	// MediaDir holds attachments when MinIO is not configured.
	MediaDir       string `yaml:"mediaDir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	MaxImageBytes  int64  `yaml:"maxImageBytes"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioRegion    string `yaml:"minioRegion"`

	// RedisAddr enables rate limiting on /login and /register. Empty disables it.
	RedisAddr             string `yaml:"redisAddr"`
	RedisPassword         string `yaml:"redisPassword"`
	LoginRateLimitPerMin  int    `yaml:"loginRateLimitPerMinute"`
	SignupRateLimitPerMin int    `yaml:"signupRateLimitPerMinute"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:                  8080,
		LogLevel:              "info",
		LogFormat:             "text",
		DBPath:                "data/blog.db",
		TokenTTL:              24 * time.Hour,
		MediaDir:              "media",
		MaxUploadBytes:        20 << 20,
		MaxImageBytes:         5 << 20,
		MinioBucket:           "blog",
		LoginRateLimitPerMin:  10,
		SignupRateLimitPerMin: 5,
	}
}

// Load builds the configuration and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid TOKEN_TTL %q: %w", v, err)
		}
		cfg.TokenTTL = d
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid MAX_UPLOAD_BYTES %q", v)
		}
		cfg.MaxUploadBytes = n
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setBool(&cfg.SecureCookie, "SECURE_COOKIE")
	setString(&cfg.GitHubClientID, "GITHUB_CLIENT_ID")
	setString(&cfg.GitHubClientSecret, "GITHUB_CLIENT_SECRET")
	setString(&cfg.GitHubCallbackURL, "GITHUB_CALLBACK_URL")
	setString(&cfg.MediaDir, "MEDIA_DIR")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")
	setString(&cfg.MinioRegion, "MINIO_REGION")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.LoginRateLimitPerMin, "LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.SignupRateLimitPerMin, "SIGNUP_RATE_LIMIT_PER_MINUTE")
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = b
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = n
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: dbPath is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: jwtSecret must be at least 16 characters (set JWT_SECRET)")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: tokenTTL must be positive")
	}
	if c.MaxUploadBytes <= 0 || c.MaxImageBytes <= 0 {
		return errors.New("config: upload limits must be positive")
	}
	if c.UseMinio() {
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
			return errors.New("config: minioEndpoint needs minioAccessKey, minioSecretKey and minioBucket")
		}
	} else if c.MediaDir == "" {
		return errors.New("config: mediaDir is required when MinIO is not configured")
	}
	if c.LoginRateLimitPerMin < 0 || c.SignupRateLimitPerMin < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		return errors.New("config: githubClientID and githubClientSecret must be set together")
	}
	return nil
}

// UseMinio reports whether attachments go to object storage.
func (c Config) UseMinio() bool {
	return c.MinioEndpoint != ""
}

// GitHubEnabled reports whether GitHub sign-in routes should be mounted.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Upload    UploadConfig
	Session   SessionConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Port        string `validate:"required,numeric"`
	Env         string
	LogLevel    string `validate:"omitempty,oneof=debug info warn error"`
	BodyLimitMB int    `validate:"min=1"`
}

// BackendConfig points at the enhancement/shorts service. Timeouts are seconds.
type BackendConfig struct {
	BaseURL        string `validate:"required,url"`
	EnhanceTimeout int    `validate:"min=1"`
	ShortsTimeout  int    `validate:"min=1"`
	MaxResponseMB  int    `validate:"min=1"`
}

type UploadConfig struct {
	MaxFiles           int `validate:"min=1"`
	MaxSizeMB          int `validate:"min=1"`
	AcceptedExtensions []string
}

type SessionConfig struct {
	Secret      string `validate:"required"`
	CookieName  string `validate:"required"`
	IdleTimeout int    `validate:"min=1"` // minutes
}

type RedisConfig struct {
	Enabled  bool
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int
}

type RateLimitConfig struct {
	EnhancePerHour int
	ShortsPerHour  int
}

type StorageConfig struct {
	Driver       string `validate:"oneof=memory r2"`
	SignedURLTTL int    // minutes
	R2           R2Config
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("SESSION_SECRET")
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = v.BindEnv("backend.base_url", "BACKEND_URL")
	_ = v.BindEnv("backend.enhance_timeout", "BACKEND_ENHANCE_TIMEOUT")
	_ = v.BindEnv("backend.shorts_timeout", "BACKEND_SHORTS_TIMEOUT")
	_ = v.BindEnv("backend.max_response_mb", "BACKEND_MAX_RESPONSE_MB")
	_ = v.BindEnv("upload.max_files", "UPLOAD_MAX_FILES")
	_ = v.BindEnv("upload.max_size_mb", "UPLOAD_MAX_SIZE_MB")
	_ = v.BindEnv("session.secret", "SESSION_SECRET")
	_ = v.BindEnv("session.cookie_name", "SESSION_COOKIE_NAME")
	_ = v.BindEnv("session.idle_timeout", "SESSION_IDLE_TIMEOUT")
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("ratelimit.enhance_per_hour", "RATELIMIT_ENHANCE_PER_HOUR")
	_ = v.BindEnv("ratelimit.shorts_per_hour", "RATELIMIT_SHORTS_PER_HOUR")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.signed_url_ttl", "STORAGE_SIGNED_URL_TTL")
	_ = v.BindEnv("storage.r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("storage.r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.r2.bucket_name", "R2_BUCKET_NAME")

	// Defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit_mb", 64)
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.enhance_timeout", 300)
	v.SetDefault("backend.shorts_timeout", 600)
	v.SetDefault("backend.max_response_mb", 200)
	v.SetDefault("upload.max_files", 1)
	v.SetDefault("upload.max_size_mb", 50)
	v.SetDefault("upload.accepted_extensions", []string{".wav", ".mp3", ".m4a", ".aac"})
	v.SetDefault("session.secret", "change-me-in-production")
	v.SetDefault("session.cookie_name", "ce_session")
	v.SetDefault("session.idle_timeout", 60)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.enhance_per_hour", 30)
	v.SetDefault("ratelimit.shorts_per_hour", 10)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.signed_url_ttl", 60)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    strings.ToLower(v.GetString("server.log_level")),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Backend: BackendConfig{
			BaseURL:        strings.TrimRight(v.GetString("backend.base_url"), "/"),
			EnhanceTimeout: v.GetInt("backend.enhance_timeout"),
			ShortsTimeout:  v.GetInt("backend.shorts_timeout"),
			MaxResponseMB:  v.GetInt("backend.max_response_mb"),
		},
		Upload: UploadConfig{
			MaxFiles:           v.GetInt("upload.max_files"),
			MaxSizeMB:          v.GetInt("upload.max_size_mb"),
			AcceptedExtensions: v.GetStringSlice("upload.accepted_extensions"),
		},
		Session: SessionConfig{
			Secret:      v.GetString("session.secret"),
			CookieName:  v.GetString("session.cookie_name"),
			IdleTimeout: v.GetInt("session.idle_timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			EnhancePerHour: v.GetInt("ratelimit.enhance_per_hour"),
			ShortsPerHour:  v.GetInt("ratelimit.shorts_per_hour"),
		},
		Storage: StorageConfig{
			Driver:       v.GetString("storage.driver"),
			SignedURLTTL: v.GetInt("storage.signed_url_ttl"),
			R2: R2Config{
				AccountID:       v.GetString("storage.r2.account_id"),
				AccessKeyID:     v.GetString("storage.r2.access_key_id"),
				SecretAccessKey: v.GetString("storage.r2.secret_access_key"),
				BucketName:      v.GetString("storage.r2.bucket_name"),
			},
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags on the loaded configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

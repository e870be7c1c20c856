// Package config loads service configuration from a file, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Session store kinds.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// AllowedOrigin is echoed in CORS responses; "*" allows any origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"min=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type LLMConfig struct {
	Provider      string        `mapstructure:"provider" validate:"oneof=gemini openai"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxConcurrent int64         `mapstructure:"max_concurrent" validate:"min=1"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type GitHubConfig struct {
	Token   string        `mapstructure:"token"`
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type UploadConfig struct {
	Dir      string `mapstructure:"dir" validate:"required"`
	MaxBytes int64  `mapstructure:"max_bytes" validate:"gt=0"`
}

type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DefaultLimit int           `mapstructure:"default_limit" validate:"min=0"`
	Window       time.Duration `mapstructure:"window" validate:"gt=0"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// envAliases binds conventional variable names in addition to the derived
// ones (llm.api_key is also read from LLM_API_KEY).
var envAliases = map[string][]string{
	"server.port":  {"PORT"},
	"llm.api_key":  {"GEMINI_API_KEY", "OPENAI_API_KEY"},
	"github.token": {"GITHUB_TOKEN"},
	"database.url": {"DATABASE_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", DefaultCookieName)
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "career-session:")

	v.SetDefault("database.url", "")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_concurrent", 4)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.timeout", 15*time.Second)

	v.SetDefault("upload.dir", "uploads/resumes")
	v.SetDefault("upload.max_bytes", 5<<20)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default_limit", 100)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// Load reads configuration. path may be empty, in which case an optional
// config.yaml in the working directory is used. Environment variables
// override file values, e.g. SESSION_SECRET for session.secret.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and the settings each session store needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return err
	}

	switch c.Session.Store {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config error: 'redis.addr' is required for the redis session store")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("config error: 'database.url' is required for the postgres session store")
		}
	}
	return nil
}

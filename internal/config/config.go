package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// ChatConfig holds the conversation pacing used by the respondent flow
type ChatConfig struct {
	WelcomeDelay          time.Duration `yaml:"welcome_delay"`
	StepDelay             time.Duration `yaml:"step_delay"`
	SurveyStartDelay      time.Duration `yaml:"survey_start_delay"`
	SuccessRedirectDelay  time.Duration `yaml:"success_redirect_delay"`
	ConflictRedirectDelay time.Duration `yaml:"conflict_redirect_delay"`
	SubmitTimeout         time.Duration `yaml:"submit_timeout"`
}

// AuthConfig holds token signing and the single author account
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
}

// SMTPConfig configures confirmation and invitation mail. Empty Host logs
// mail instead of sending it.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// RateLimitConfig bounds public submit/check traffic per client address
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CacheConfig holds Redis key lifetimes
type CacheConfig struct {
	SurveyTTL     time.Duration `yaml:"survey_ttl"`
	SubmissionTTL time.Duration `yaml:"submission_ttl"`
}

type Config struct {
	// Store selects persistence: "mongo" (Mongo + Redis) or "memory"
	Store          string          `yaml:"store"`
	MongoURI       string          `yaml:"mongo_uri"`
	MongoDatabase  string          `yaml:"mongo_database"`
	RedisAddr      string          `yaml:"redis_addr"`
	HTTPPort       string          `yaml:"http_port"`
	FrontendURL    string          `yaml:"frontend_url"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	LogLevel       string          `yaml:"log_level"`
	LogFormat      string          `yaml:"log_format"`
	Auth           AuthConfig      `yaml:"auth"`
	SMTP           SMTPConfig      `yaml:"smtp"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Cache          CacheConfig     `yaml:"cache"`
	Chat           ChatConfig      `yaml:"chat"`
}

// DefaultChat returns the pacing the respondent UI has always used
func DefaultChat() ChatConfig {
	return ChatConfig{
		WelcomeDelay:          1500 * time.Millisecond,
		StepDelay:             500 * time.Millisecond,
		SurveyStartDelay:      1000 * time.Millisecond,
		SuccessRedirectDelay:  2000 * time.Millisecond,
		ConflictRedirectDelay: 3000 * time.Millisecond,
		SubmitTimeout:         15 * time.Second,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Store:          StoreMongo,
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "surveychat",
		RedisAddr:      "localhost:6379",
		HTTPPort:       "8080",
		FrontendURL:    "http://localhost:3000",
		AllowedOrigins: []string{"http://localhost:3000"},
		LogLevel:       "info",
		LogFormat:      "json",
		Auth: AuthConfig{
			JWTSecret:       "dev-secret-change-in-production",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			Username:        "admin",
			Password:        "admin",
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "noreply@surveychat.local",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Cache: CacheConfig{
			SurveyTTL:     5 * time.Minute,
			SubmissionTTL: 10 * time.Minute,
		},
		Chat: DefaultChat(),
	}
}

// Load builds the config from defaults, then the YAML file named by
// SURVEYCHAT_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("SURVEYCHAT_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Store = getEnv("STORE", c.Store)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DATABASE", c.MongoDatabase)
	c.RedisAddr = strings.TrimPrefix(getEnv("REDIS_ADDR", c.RedisAddr), "redis://")
	c.HTTPPort = getEnv("PORT", c.HTTPPort)
	c.FrontendURL = strings.TrimRight(getEnv("FRONTEND_URL", c.FrontendURL), "/")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Username = getEnv("AUTHOR_USERNAME", c.Auth.Username)
	c.Auth.Password = getEnv("AUTHOR_PASSWORD", c.Auth.Password)
	c.Auth.AccessTokenTTL = getDuration("ACCESS_TOKEN_TTL", c.Auth.AccessTokenTTL)
	c.Auth.RefreshTokenTTL = getDuration("REFRESH_TOKEN_TTL", c.Auth.RefreshTokenTTL)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getEnv("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.From = getEnv("SMTP_FROM", c.SMTP.From)

	c.Chat.SubmitTimeout = getDuration("SUBMIT_TIMEOUT", c.Chat.SubmitTimeout)
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("mongo_uri is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token ttls must be positive")
	}
	if c.Chat.SubmitTimeout <= 0 {
		return fmt.Errorf("chat.submit_timeout must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

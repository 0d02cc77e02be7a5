package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and the
// grading pipeline.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	OpenAIAPIKey string
	GradingModel string

	WorkerCount       int
	PollInterval      time.Duration
	JobDeadline       time.Duration
	MaxAttempts       int
	VisibilityTimeout time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration

	InlineLimitBytes int64
	InitialBudget    int
	EscalatedBudget  int
	Temperature      float32
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("OKU")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Oku API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "oku/submissions")
	v.SetDefault("grading.model", "gpt-4o-mini")
	v.SetDefault("grading.workers", 4)
	v.SetDefault("grading.poll_interval", "1s")
	v.SetDefault("grading.job_deadline", "60s")
	v.SetDefault("grading.max_attempts", 3)
	v.SetDefault("grading.visibility_timeout", "2m")
	v.SetDefault("grading.backoff_base", "5s")
	v.SetDefault("grading.backoff_max", "5m")
	v.SetDefault("grading.inline_limit_bytes", 300*1024)
	v.SetDefault("grading.initial_budget", 1024)
	v.SetDefault("grading.escalated_budget", 4096)
	v.SetDefault("grading.temperature", 0.2)

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		GradingModel:           v.GetString("grading.model"),
		WorkerCount:            v.GetInt("grading.workers"),
		MaxAttempts:            v.GetInt("grading.max_attempts"),
		InlineLimitBytes:       v.GetInt64("grading.inline_limit_bytes"),
		InitialBudget:          v.GetInt("grading.initial_budget"),
		EscalatedBudget:        v.GetInt("grading.escalated_budget"),
		Temperature:            float32(v.GetFloat64("grading.temperature")),
	}

	var err error
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"grading.poll_interval", &cfg.PollInterval},
		{"grading.job_deadline", &cfg.JobDeadline},
		{"grading.visibility_timeout", &cfg.VisibilityTimeout},
		{"grading.backoff_base", &cfg.BackoffBase},
		{"grading.backoff_max", &cfg.BackoffMax},
	}
	for _, d := range durations {
		*d.target, err = time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.EscalatedBudget <= cfg.InitialBudget {
		return Config{}, fmt.Errorf("escalated token budget must exceed the initial budget")
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return cfg, nil
}

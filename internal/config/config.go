package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Grader providers.
const (
	GraderBackboard = "backboard"
	GraderOpenAI    = "openai"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string
	ChannelBase string

	BackboardBaseURL     string
	BackboardAPIKey      string
	BackboardLLMProvider string
	BackboardModel       string
	BackboardMemory      string
	BackboardTimeout     time.Duration

	PollMaxAttempts   int
	PollDelay         time.Duration
	UploadConcurrency int
	PipelineTimeout   time.Duration
	RequireAllIndexed bool
	ThreadDeleteTTL   time.Duration

	AssistantCacheTTL time.Duration
	GenerateRateLimit int

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	MaxUploadMB            int

	AIProvider   string
	OpenAIAPIKey string
	OpenAIModel  string
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
	v.SetEnvPrefix("TESTEM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Testem API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel_base", "testem")
	v.SetDefault("backboard.base_url", "https://app.backboard.io/api")
	v.SetDefault("backboard.llm_provider", "openai")
	v.SetDefault("backboard.model", "gpt-4o")
	v.SetDefault("backboard.memory", "Auto")
	v.SetDefault("backboard.timeout", "60s")
	v.SetDefault("pipeline.poll_max_attempts", 50)
	v.SetDefault("pipeline.poll_delay", "1s")
	v.SetDefault("pipeline.upload_concurrency", 4)
	v.SetDefault("pipeline.timeout", "5m")
	v.SetDefault("pipeline.require_all_indexed", false)
	v.SetDefault("pipeline.thread_delete_timeout", "15s")
	v.SetDefault("assistant.cache_ttl", "24h")
	v.SetDefault("exams.rate_limit_per_minute", 5)
	v.SetDefault("cloudinary.folder", "testem/documents")
	v.SetDefault("upload.max_mb", 20)
	v.SetDefault("ai.provider", GraderBackboard)
	v.SetDefault("openai.model", "gpt-4o")

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		JWTSecret:   v.GetString("jwt.secret"),
		ChannelBase: v.GetString("events.channel_base"),

		BackboardBaseURL:     v.GetString("backboard.base_url"),
		BackboardAPIKey:      v.GetString("backboard.api_key"),
		BackboardLLMProvider: v.GetString("backboard.llm_provider"),
		BackboardModel:       v.GetString("backboard.model"),
		BackboardMemory:      v.GetString("backboard.memory"),

		PollMaxAttempts:   v.GetInt("pipeline.poll_max_attempts"),
		UploadConcurrency: v.GetInt("pipeline.upload_concurrency"),
		RequireAllIndexed: v.GetBool("pipeline.require_all_indexed"),
		GenerateRateLimit: v.GetInt("exams.rate_limit_per_minute"),

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		MaxUploadMB:            v.GetInt("upload.max_mb"),

		AIProvider:   strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey: v.GetString("openai.api_key"),
		OpenAIModel:  v.GetString("openai.model"),
	}

	durations["backboard.timeout"] = &cfg.BackboardTimeout
	durations["pipeline.poll_delay"] = &cfg.PollDelay
	durations["pipeline.timeout"] = &cfg.PipelineTimeout
	durations["pipeline.thread_delete_timeout"] = &cfg.ThreadDeleteTTL
	durations["assistant.cache_ttl"] = &cfg.AssistantCacheTTL
	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.BackboardAPIKey == "" {
		return Config{}, fmt.Errorf("backboard api key must be provided")
	}

	switch cfg.AIProvider {
	case "", GraderBackboard:
		cfg.AIProvider = GraderBackboard
	case GraderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("openai api key must be provided when ai provider is openai")
		}
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 50
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}

	return cfg, nil
}

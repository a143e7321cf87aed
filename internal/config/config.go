package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	RealtimeKeepAlive      time.Duration
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	ReportCacheTTL         time.Duration
	AIProvider             string
	AIModel                string
	GeminiAPIKey           string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	EvaluationMaxTokens    int
	GenerationMaxTokens    int
	GenerationTimeout      time.Duration
	MeiliHost              string
	MeiliAPIKey            string
	AIRateLimit            int
	AIRateWindow           time.Duration
	ApproveRateLimit       int
	ApproveRateWindow      time.Duration
	HealthCheckTimeout     time.Duration
	CORSAllowOrigins       []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UploadMaxBytes converts the configured upload limit to bytes.
func (c Config) UploadMaxBytes() int64 {
	if c.UploadMaxSizeMB <= 0 {
		return 10 << 20
	}
	return int64(c.UploadMaxSizeMB) << 20
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PROMPTLAB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "PromptLab API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "promptlab/projects")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("report.cache_ttl", "5m")
	v.SetDefault("realtime.channel", "promptlab")
	v.SetDefault("realtime.keepalive", "30s")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.evaluation_max_tokens", 1024)
	v.SetDefault("ai.generation_max_tokens", 8192)
	v.SetDefault("ai.generation_timeout", "120s")
	v.SetDefault("ai.rate_limit", 30)
	v.SetDefault("ai.rate_window", "1m")
	v.SetDefault("approve.rate_limit", 10)
	v.SetDefault("approve.rate_window", "1m")
	v.SetDefault("health.check_timeout", "2s")
	v.SetDefault("cors.origins", "*")

	reportTTL, err := parseDuration(v.GetString("report.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid report cache ttl: %w", err)
	}

	keepAlive, err := parseDuration(v.GetString("realtime.keepalive"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid realtime keepalive: %w", err)
	}

	generationTimeout, err := parseDuration(v.GetString("ai.generation_timeout"), 120*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai generation timeout: %w", err)
	}

	aiRateWindow, err := parseDuration(v.GetString("ai.rate_window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai rate window: %w", err)
	}

	approveRateWindow, err := parseDuration(v.GetString("approve.rate_window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid approve rate window: %w", err)
	}

	healthTimeout, err := parseDuration(v.GetString("health.check_timeout"), 2*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid health check timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		RealtimeKeepAlive:      keepAlive,
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		ReportCacheTTL:         reportTTL,
		AIProvider:             strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		AIModel:                v.GetString("ai.model"),
		GeminiAPIKey:           v.GetString("gemini_api_key"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		EvaluationMaxTokens:    v.GetInt("ai.evaluation_max_tokens"),
		GenerationMaxTokens:    v.GetInt("ai.generation_max_tokens"),
		GenerationTimeout:      generationTimeout,
		MeiliHost:              v.GetString("meili.host"),
		MeiliAPIKey:            v.GetString("meili.api_key"),
		AIRateLimit:            v.GetInt("ai.rate_limit"),
		AIRateWindow:           aiRateWindow,
		ApproveRateLimit:       v.GetInt("approve.rate_limit"),
		ApproveRateWindow:      approveRateWindow,
		HealthCheckTimeout:     healthTimeout,
		CORSAllowOrigins:       splitList(v.GetString("cors.origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.AIProvider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.AIRateLimit <= 0 || cfg.ApproveRateLimit <= 0 {
		return Config{}, fmt.Errorf("rate limits must be positive")
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

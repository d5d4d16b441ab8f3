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
	JWTSecret              string
	AccessTokenTTL         time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	GradingWebhookURL      string
	GradingSecret          string
	DispatchTimeout        time.Duration
	DispatchWorkers        int
	DispatchQueueSize      int
	FrontendURL            string
	PasswordResetTTL       time.Duration
	StartingCoins          int
	ThemeCacheTTL          time.Duration
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	SMTPFrom               string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether file uploads can be stored.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Essay Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.access_ttl", "24h")
	v.SetDefault("cloudinary.folder", "essays/uploads")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("grading.webhook_url", "https://funpar.app.n8n.cloud/webhook/corrigir-redacao")
	v.SetDefault("grading.dispatch_timeout", "10s")
	v.SetDefault("grading.workers", 4)
	v.SetDefault("grading.queue_size", 128)
	v.SetDefault("frontend.url", "http://localhost:3000")
	v.SetDefault("password_reset.ttl", "72h")
	v.SetDefault("accounts.starting_coins", 10)
	v.SetDefault("themes.cache_ttl", "5m")
	v.SetDefault("smtp.port", 587)

	accessTTL, err := parseDuration(v, "jwt.access_ttl", "24h")
	if err != nil {
		return Config{}, err
	}
	dispatchTimeout, err := parseDuration(v, "grading.dispatch_timeout", "10s")
	if err != nil {
		return Config{}, err
	}
	resetTTL, err := parseDuration(v, "password_reset.ttl", "72h")
	if err != nil {
		return Config{}, err
	}
	themeTTL, err := parseDuration(v, "themes.cache_ttl", "5m")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		AccessTokenTTL:         accessTTL,
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		GradingWebhookURL:      v.GetString("grading.webhook_url"),
		GradingSecret:          v.GetString("grading.secret"),
		DispatchTimeout:        dispatchTimeout,
		DispatchWorkers:        v.GetInt("grading.workers"),
		DispatchQueueSize:      v.GetInt("grading.queue_size"),
		FrontendURL:            strings.TrimRight(v.GetString("frontend.url"), "/"),
		PasswordResetTTL:       resetTTL,
		StartingCoins:          v.GetInt("accounts.starting_coins"),
		ThemeCacheTTL:          themeTTL,
		SMTPHost:               v.GetString("smtp.host"),
		SMTPPort:               v.GetInt("smtp.port"),
		SMTPUsername:           v.GetString("smtp.username"),
		SMTPPassword:           v.GetString("smtp.password"),
		SMTPFrom:               v.GetString("smtp.from"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.GradingSecret == "" {
		return Config{}, fmt.Errorf("grading webhook secret must be provided")
	}

	if cfg.DispatchWorkers <= 0 {
		cfg.DispatchWorkers = 4
	}

	if cfg.DispatchQueueSize <= 0 {
		cfg.DispatchQueueSize = 128
	}

	if cfg.StartingCoins < 0 {
		cfg.StartingCoins = 0
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

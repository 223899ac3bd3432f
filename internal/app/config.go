package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/occhealth/pcmso-backend/internal/data/db"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type Config struct {
	LogMode  string
	HTTPAddr string

	DB db.Config

	JWTSecretKey string
	JWTIssuer    string
	CORSOrigins  []string

	RedisAddr            string
	RedisChannel         string
	EventsWebhookURL     string
	EventsWebhookTimeout time.Duration

	ComplianceRulesPath string

	Otel observability.OtelConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("DB_DRIVER", db.DriverPostgres)
	v.SetDefault("SQLITE_PATH", "pcmso.db")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "pcmso")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET_KEY", "defaultsecret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_CHANNEL", "pcmso.events")
	v.SetDefault("EVENTS_WEBHOOK_URL", "")
	v.SetDefault("EVENTS_WEBHOOK_TIMEOUT_SECONDS", 5)
	v.SetDefault("COMPLIANCE_RULES_PATH", "")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "pcmso-backend")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_SERVICE_VERSION", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 1.0)
}

// LoadConfig reads the environment, optionally layered over the YAML file
// named by PCMSO_CONFIG_FILE. Environment values win.
func LoadConfig(log *logger.Logger) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("PCMSO_CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}

	get := func(key string) string {
		val := strings.TrimSpace(v.GetString(key))
		shown := val
		if isSecretKey(key) && val != "" {
			shown = "[redacted]"
		}
		log.Debug("Config", "key", key, "value", shown)
		return val
	}

	cfg := Config{
		LogMode:  get("LOG_MODE"),
		HTTPAddr: get("HTTP_ADDR"),
		DB: db.Config{
			Driver:           get("DB_DRIVER"),
			PostgresHost:     get("POSTGRES_HOST"),
			PostgresPort:     get("POSTGRES_PORT"),
			PostgresUser:     get("POSTGRES_USER"),
			PostgresPassword: get("POSTGRES_PASSWORD"),
			PostgresName:     get("POSTGRES_NAME"),
			PostgresSSLMode:  get("POSTGRES_SSLMODE"),
			SQLitePath:       get("SQLITE_PATH"),
		},
		JWTSecretKey:         get("JWT_SECRET_KEY"),
		JWTIssuer:            get("JWT_ISSUER"),
		CORSOrigins:          splitList(get("CORS_ALLOWED_ORIGINS")),
		RedisAddr:            get("REDIS_ADDR"),
		RedisChannel:         get("REDIS_CHANNEL"),
		EventsWebhookURL:     get("EVENTS_WEBHOOK_URL"),
		EventsWebhookTimeout: time.Duration(v.GetInt("EVENTS_WEBHOOK_TIMEOUT_SECONDS")) * time.Second,
		ComplianceRulesPath:  get("COMPLIANCE_RULES_PATH"),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: get("OTEL_SERVICE_NAME"),
			Environment: get("OTEL_ENVIRONMENT"),
			Version:     get("OTEL_SERVICE_VERSION"),
			Endpoint:    get("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:     get("OTEL_EXPORTER_OTLP_HEADERS"),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLER_RATIO"),
		},
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
		if port := get("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		}
	}
	return cfg, nil
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "secret") || strings.Contains(k, "password")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

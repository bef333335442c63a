// README: Config loader with env defaults for HTTP, DB, Redis, Firebase, realtime and telemetry settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type RealtimeConfig struct {
	TicketSecret string
	TicketTTL    time.Duration
	SendQueue    int
	Channel      string
	// AllowedOrigins lists browser origins allowed to open /ws besides the
	// API's own host.
	AllowedOrigins []string
}

type Config struct {
	Env  string
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN              string
		StatementTimeout time.Duration
	}
	Redis struct {
		Addr string
	}
	Firebase struct {
		ProjectID   string
		Credentials string
	}
	Realtime RealtimeConfig
	Push     struct {
		Enabled bool
	}
	Telemetry struct {
		ServiceName  string
		OTLPEndpoint string
		LogLevel     string
	}
	AdminEmails []string
	EmitTimeout time.Duration
}

func Load() (Config, error) {
	var cfg Config
	var err error
	cfg.Env = envOrDefault("UNIEATS_ENV", "local")
	cfg.HTTP.Addr = envOrDefault("UNIEATS_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("UNIEATS_DB_DSN")
	if cfg.DB.StatementTimeout, err = envOrDefaultDuration("UNIEATS_DB_STATEMENT_TIMEOUT", 3*time.Second); err != nil {
		return cfg, err
	}
	cfg.Redis.Addr = os.Getenv("UNIEATS_REDIS_ADDR")
	cfg.Firebase.ProjectID = os.Getenv("UNIEATS_FIREBASE_PROJECT_ID")
	cfg.Firebase.Credentials = os.Getenv("UNIEATS_FIREBASE_CREDENTIALS")

	cfg.Realtime.TicketSecret = os.Getenv("UNIEATS_REALTIME_TICKET_SECRET")
	if cfg.Realtime.TicketTTL, err = envOrDefaultDuration("UNIEATS_REALTIME_TICKET_TTL", time.Minute); err != nil {
		return cfg, err
	}
	cfg.Realtime.SendQueue = envOrDefaultInt("UNIEATS_REALTIME_SEND_QUEUE", 64)
	cfg.Realtime.Channel = envOrDefault("UNIEATS_REALTIME_CHANNEL", "unieats:events")
	cfg.Realtime.AllowedOrigins = splitList(os.Getenv("UNIEATS_WS_ALLOWED_ORIGINS"))
	if cfg.EmitTimeout, err = envOrDefaultDuration("UNIEATS_EMIT_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}

	cfg.Push.Enabled = envOrDefaultBool("UNIEATS_PUSH_ENABLED", false)
	cfg.Telemetry.ServiceName = envOrDefault("UNIEATS_SERVICE_NAME", "unieats-api")
	cfg.Telemetry.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Telemetry.LogLevel = envOrDefault("UNIEATS_LOG_LEVEL", "info")
	cfg.AdminEmails = splitList(os.Getenv("UNIEATS_ADMIN_EMAILS"))

	if cfg.Env == "production" {
		if cfg.DB.DSN == "" {
			return cfg, fmt.Errorf("UNIEATS_DB_DSN is required in production")
		}
		if cfg.Firebase.ProjectID == "" {
			return cfg, fmt.Errorf("UNIEATS_FIREBASE_PROJECT_ID is required in production")
		}
		if cfg.Realtime.TicketSecret == "" {
			return cfg, fmt.Errorf("UNIEATS_REALTIME_TICKET_SECRET is required in production")
		}
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

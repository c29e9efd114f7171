// Package config loads per-binary settings from the environment, after an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Telemetry struct {
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

type Store struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	PostgresURL  string        `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
	OrderTopic   string        `envconfig:"ORDER_TOPIC" default:"order.placed"`
	MailerURL    string        `envconfig:"MAILER_URL" default:"http://localhost:8084"`
	AdminEmail   string        `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	JWTSecret    string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"120h"`
	CookieSecure bool          `envconfig:"COOKIE_SECURE" default:"false"`
	UploadDir    string        `envconfig:"UPLOAD_DIR" default:"uploads"`
	PublicURL    string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	ResetURL     string        `envconfig:"RESET_URL" default:"http://localhost:3000/resetpassword"`
	KeepAliveURL string        `envconfig:"KEEPALIVE_URL"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	Telemetry    Telemetry     `envconfig:"OTEL"`
}

type Worker struct {
	KafkaBrokers []string  `envconfig:"KAFKA_BROKERS" required:"true"`
	OrderTopic   string    `envconfig:"ORDER_TOPIC" default:"order.placed"`
	GroupID      string    `envconfig:"GROUP_ID" default:"notification-worker"`
	MailerURL    string    `envconfig:"MAILER_URL" required:"true"`
	AdminEmail   string    `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	LogLevel     string    `envconfig:"LOG_LEVEL" default:"info"`
	Telemetry    Telemetry `envconfig:"OTEL"`
}

type Mailer struct {
	Port     string `envconfig:"PORT" default:"8084"`
	Capacity int    `envconfig:"MAILBOX_CAPACITY" default:"500"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

// Load fills spec from the environment. A missing .env file is not an error.
func Load(spec any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process("", spec); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	return nil
}

// Level parses LOG_LEVEL values, falling back to info.
func Level(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

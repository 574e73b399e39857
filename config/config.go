package config

import (
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/tracing"
)

type AppConfig struct {
	APIPort               string `env:"PORT" envDefault:"8080"`
	Environment           string `env:"ENVIRONMENT" envDefault:"development"`
	PasswordEncryptionKey string `env:"PASSWORD_ENCRYPTION_KEY"`
	RabbitMQURL           string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host        string `env:"DATABASE_HOST" envDefault:"localhost"`
	Port        string `env:"DATABASE_PORT" envDefault:"5432"`
	User        string `env:"DATABASE_USER" envDefault:"postgres"`
	Password    string `env:"DATABASE_PASSWORD"`
	Name        string `env:"DATABASE_NAME" envDefault:"nolas"`
	MinPoolSize int    `env:"DATABASE_MIN_POOL_SIZE" envDefault:"5"`
	MaxPoolSize int    `env:"DATABASE_MAX_POOL_SIZE" envDefault:"20"`
	SSLMode     string `env:"DATABASE_SSL_MODE" envDefault:"disable"`
	LogLevel    string `env:"DATABASE_LOG_LEVEL" envDefault:"WARN"`
}

type IMAPConfig struct {
	// Timeout is the per-operation IMAP timeout in seconds.
	Timeout      int               `env:"IMAP_TIMEOUT" envDefault:"300"`
	PollInterval int               `env:"IMAP_POLL_INTERVAL" envDefault:"60"`
	PollJitter   int               `env:"IMAP_POLL_JITTER" envDefault:"30"`
	IdleTimeout  int               `env:"IMAP_IDLE_TIMEOUT" envDefault:"1740"`
	ListenerMode enum.ListenerMode `env:"IMAP_LISTENER_MODE" envDefault:"single"`
}

type WorkerConfig struct {
	Num                       int `env:"WORKERS_NUM" envDefault:"2"`
	MaxConnectionsPerProvider int `env:"WORKER_MAX_CONNECTIONS_PER_PROVIDER" envDefault:"50"`
}

type WebhookConfig struct {
	MaxRetries int `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	// Timeout is the per-attempt HTTP timeout in seconds.
	Timeout int `env:"WEBHOOK_TIMEOUT" envDefault:"10"`
}

// StorageConfig enables the optional raw-message archive when Bucket and
// credentials are set.
type StorageConfig struct {
	Bucket          string `env:"STORAGE_BUCKET"`
	Region          string `env:"STORAGE_REGION" envDefault:"auto"`
	Endpoint        string `env:"STORAGE_ENDPOINT"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"STORAGE_ACCESS_KEY_SECRET"`
}

func (s *StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.AccessKeySecret != ""
}

type Config struct {
	AppConfig *AppConfig
	Database  *DatabaseConfig
	IMAP      *IMAPConfig
	Worker    *WorkerConfig
	Webhook   *WebhookConfig
	Storage   *StorageConfig
	Logger    *logger.Config
	Tracing   *tracing.JaegerConfig
}

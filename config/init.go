package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig: &AppConfig{},
		Database:  &DatabaseConfig{},
		IMAP:      &IMAPConfig{},
		Worker:    &WorkerConfig{},
		Webhook:   &WebhookConfig{},
		Storage:   &StorageConfig{},
		Logger:    &logger.Config{},
		Tracing:   &tracing.JaegerConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading nolas config: %v", err)
	}

	return config, nil
}

package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL string `env:"DERMASCAN_SERVER_URL" envDefault:"http://localhost:3000"`
	Token     string `env:"DERMASCAN_TOKEN,required"`
	UserID    string `env:"DERMASCAN_USER_ID,required"`

	// Azure Blob Storage. Images are sent inline as data URLs when unset.
	StorageAccount   string        `env:"AZURE_STORAGE_ACCOUNT"`
	StorageKey       string        `env:"AZURE_STORAGE_KEY"`
	StorageContainer string        `env:"AZURE_STORAGE_CONTAINER" envDefault:"skin-images"`
	SignedURLTTL     time.Duration `env:"SIGNED_URL_TTL" envDefault:"1h"`

	// Offline keeps analyses in memory instead of saving them on the server.
	Offline bool `env:"DERMASCAN_OFFLINE" envDefault:"false"`

	// CameraFrame is a still image served as the camera feed.
	CameraFrame string `env:"DERMASCAN_CAMERA_FRAME"`

	LogFilePath    string        `env:"DERMASCAN_LOG_FILE" envDefault:"logs/dermascan.log"`
	RequestTimeout time.Duration `env:"DERMASCAN_REQUEST_TIMEOUT" envDefault:"2m"`
}

func (c *Config) UsesBlobStorage() bool {
	return c.StorageAccount != "" && c.StorageKey != ""
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

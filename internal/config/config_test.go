package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "relay",
			Password: "secret",
			DBName:   "social_relay",
		},
		Webhook: WebhookConfig{
			VerifyToken:     "verify-me",
			DefaultClientID: "default",
		},
		Scheduler: SchedulerConfig{
			DrainInterval:       30 * time.Second,
			CleanupInterval:     time.Hour,
			ContentSyncInterval: 6 * time.Hour,
			BatchSize:           20,
			MaxAttempts:         3,
			Retention:           720 * time.Hour,
			CollaboratorTimeout: time.Minute,
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Server.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Database.User = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Webhook.VerifyToken = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scheduler.DrainInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scheduler.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scheduler.MaxAttempts = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scheduler.Retention = 0
	assert.Error(t, cfg.Validate())
}

func TestGetDSN(t *testing.T) {
	cfg := validConfig()
	dsn := cfg.Database.GetDSN()
	assert.Equal(t, "relay:secret@tcp(localhost:3306)/social_relay?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Instagram InstagramConfig `mapstructure:"instagram"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// WebhookConfig holds inbound webhook configuration
type WebhookConfig struct {
	VerifyToken     string `mapstructure:"verify_token"`
	DefaultClientID string `mapstructure:"default_client_id"`
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	DrainInterval       time.Duration `mapstructure:"drain_interval"`
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
	ContentSyncInterval time.Duration `mapstructure:"content_sync_interval"`
	BatchSize           int           `mapstructure:"batch_size"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	Retention           time.Duration `mapstructure:"retention"`
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"`
}

// OpenAIConfig holds AI collaborator configuration
type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// InstagramConfig holds Instagram Graph API configuration
type InstagramConfig struct {
	AccessToken string `mapstructure:"access_token"`
	PageID      string `mapstructure:"page_id"`
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	SecretToken string `mapstructure:"secret_token"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("webhook.default_client_id", "default")

	viper.SetDefault("scheduler.drain_interval", "30s")
	viper.SetDefault("scheduler.cleanup_interval", "1h")
	viper.SetDefault("scheduler.content_sync_interval", "6h")
	viper.SetDefault("scheduler.batch_size", 20)
	viper.SetDefault("scheduler.max_attempts", 3)
	viper.SetDefault("scheduler.retention", "720h")
	viper.SetDefault("scheduler.collaborator_timeout", "60s")

	viper.SetDefault("openai.model", "gpt-4o-mini")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Webhook
	viper.BindEnv("webhook.verify_token", "VERIFY_TOKEN")
	viper.BindEnv("webhook.default_client_id", "WEBHOOK_DEFAULT_CLIENT_ID")

	// Scheduler
	viper.BindEnv("scheduler.drain_interval", "SCHEDULER_DRAIN_INTERVAL")
	viper.BindEnv("scheduler.cleanup_interval", "SCHEDULER_CLEANUP_INTERVAL")
	viper.BindEnv("scheduler.content_sync_interval", "SCHEDULER_CONTENT_SYNC_INTERVAL")
	viper.BindEnv("scheduler.batch_size", "SCHEDULER_BATCH_SIZE")
	viper.BindEnv("scheduler.max_attempts", "SCHEDULER_MAX_ATTEMPTS")
	viper.BindEnv("scheduler.retention", "SCHEDULER_RETENTION")
	viper.BindEnv("scheduler.collaborator_timeout", "SCHEDULER_COLLABORATOR_TIMEOUT")

	// OpenAI
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.model", "OPENAI_MODEL")
	viper.BindEnv("openai.system_prompt", "OPENAI_SYSTEM_PROMPT")

	// Instagram
	viper.BindEnv("instagram.access_token", "PAGE_ACCESS_TOKEN")
	viper.BindEnv("instagram.page_id", "PAGE_ID")

	// Telegram
	viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("telegram.secret_token", "TELEGRAM_SECRET_TOKEN")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Webhook.VerifyToken == "" {
		return fmt.Errorf("webhook verify token is required")
	}

	if c.Scheduler.DrainInterval <= 0 || c.Scheduler.CleanupInterval <= 0 || c.Scheduler.ContentSyncInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be greater than 0")
	}

	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler batch size must be greater than 0")
	}

	if c.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("scheduler max attempts must be greater than 0")
	}

	if c.Scheduler.Retention <= 0 {
		return fmt.Errorf("scheduler retention must be greater than 0")
	}

	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Graph       GraphConfig       `mapstructure:"graph"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Encryption  EncryptionConfig  `mapstructure:"encryption"`
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

// GraphConfig holds the Microsoft identity and Graph API configuration
// shared by all registered accounts.
type GraphConfig struct {
	TenantID     string        `mapstructure:"tenant_id"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURI  string        `mapstructure:"redirect_uri"`
	Authority    string        `mapstructure:"authority"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ExternalAPIConfig holds the downstream forwarding endpoint configuration.
type ExternalAPIConfig struct {
	EndpointURL string        `mapstructure:"endpoint_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// SchedulerConfig holds the background sweep intervals.
type SchedulerConfig struct {
	TokenRefreshInterval   time.Duration `mapstructure:"token_refresh_interval"`
	WebhookRenewalInterval time.Duration `mapstructure:"webhook_renewal_interval"`
	FailedCallInterval     time.Duration `mapstructure:"failed_call_interval"`
	CleanupInterval        time.Duration `mapstructure:"cleanup_interval"`

	TokenRefreshWindow   time.Duration `mapstructure:"token_refresh_window"`
	WebhookRenewalWindow time.Duration `mapstructure:"webhook_renewal_window"`

	TokenRetentionDays   int `mapstructure:"token_retention_days"`
	LogRetentionDays     int `mapstructure:"log_retention_days"`
	WebhookRetentionDays int `mapstructure:"webhook_retention_days"`
}

// EncryptionConfig holds the token-at-rest encryption material.
type EncryptionConfig struct {
	Secret string `mapstructure:"secret"`
	Salt   string `mapstructure:"salt"`
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

	viper.SetDefault("graph.authority", "https://login.microsoftonline.com")
	viper.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	viper.SetDefault("graph.timeout", "30s")

	viper.SetDefault("external_api.timeout", "30s")
	viper.SetDefault("external_api.max_retries", 5)

	viper.SetDefault("scheduler.token_refresh_interval", "60s")
	viper.SetDefault("scheduler.webhook_renewal_interval", "5m")
	viper.SetDefault("scheduler.failed_call_interval", "2m")
	viper.SetDefault("scheduler.cleanup_interval", "1h")
	viper.SetDefault("scheduler.token_refresh_window", "5m")
	viper.SetDefault("scheduler.webhook_renewal_window", "30m")
	viper.SetDefault("scheduler.token_retention_days", 30)
	viper.SetDefault("scheduler.log_retention_days", 90)
	viper.SetDefault("scheduler.webhook_retention_days", 7)
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

	// Microsoft Graph
	viper.BindEnv("graph.tenant_id", "GRAPH_TENANT_ID")
	viper.BindEnv("graph.client_id", "GRAPH_CLIENT_ID")
	viper.BindEnv("graph.client_secret", "GRAPH_CLIENT_SECRET")
	viper.BindEnv("graph.redirect_uri", "GRAPH_REDIRECT_URI")
	viper.BindEnv("graph.authority", "GRAPH_AUTHORITY")
	viper.BindEnv("graph.base_url", "GRAPH_BASE_URL")

	// External API
	viper.BindEnv("external_api.endpoint_url", "EXTERNAL_API_ENDPOINT_URL")
	viper.BindEnv("external_api.timeout", "EXTERNAL_API_TIMEOUT")
	viper.BindEnv("external_api.max_retries", "EXTERNAL_API_MAX_RETRIES")

	// Scheduler
	viper.BindEnv("scheduler.token_refresh_interval", "SCHEDULER_TOKEN_REFRESH_INTERVAL")
	viper.BindEnv("scheduler.webhook_renewal_interval", "SCHEDULER_WEBHOOK_RENEWAL_INTERVAL")
	viper.BindEnv("scheduler.failed_call_interval", "SCHEDULER_FAILED_CALL_INTERVAL")
	viper.BindEnv("scheduler.cleanup_interval", "SCHEDULER_CLEANUP_INTERVAL")

	// Encryption
	viper.BindEnv("encryption.secret", "ENCRYPTION_SECRET")
	viper.BindEnv("encryption.salt", "ENCRYPTION_SALT")
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

	if c.Graph.TenantID == "" || c.Graph.ClientID == "" {
		return fmt.Errorf("graph tenant_id and client_id are required")
	}

	if c.Encryption.Secret == "" || c.Encryption.Salt == "" {
		return fmt.Errorf("encryption secret and salt are required")
	}

	if c.ExternalAPI.MaxRetries <= 0 {
		return fmt.Errorf("external_api max_retries must be greater than 0")
	}

	if c.Scheduler.TokenRefreshInterval <= 0 || c.Scheduler.WebhookRenewalInterval <= 0 ||
		c.Scheduler.FailedCallInterval <= 0 || c.Scheduler.CleanupInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be greater than 0")
	}

	return nil
}

package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Linear    LinearConfig    `mapstructure:"linear"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Target    TargetConfig    `mapstructure:"target"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	InternalAPIKey string        `mapstructure:"internal_api_key"`
}

// QueueConfig controls how many browser sessions run at once and how long
// finished runs stay visible
type QueueConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	Secret         string        `mapstructure:"secret"`
	TriggerStates  []string      `mapstructure:"trigger_states"`
	TriggerLabels  []string      `mapstructure:"trigger_labels"`
	MaxClockSkew   time.Duration `mapstructure:"max_clock_skew"`
	DeliveryWindow time.Duration `mapstructure:"delivery_window"`
}

// LinearConfig holds issue tracker API settings
type LinearConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

// AgentConfig holds browser agent service settings
type AgentConfig struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Consecutive agent outages before calls fail fast, and how long they do
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerReset    time.Duration `mapstructure:"breaker_reset"`
}

// TargetConfig holds the application under test
type TargetConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds result cache settings
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RateLimitConfig holds outbound retry and inbound rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	MaxRetries        int `mapstructure:"max_retries"`
	InitialBackoffMs  int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int `mapstructure:"max_backoff_ms"`
	WebhookRPS        int `mapstructure:"webhook_rps"`
	WebhookBurst      int `mapstructure:"webhook_burst"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
}

// RetentionConfig controls pruning of run history and stored artifacts
type RetentionConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	HistoryDays  int           `mapstructure:"history_days"`
	ArtifactDays int           `mapstructure:"artifact_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// TelemetryConfig holds OpenTelemetry exporter settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("STAGEHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configPath == "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configPath != "" {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	var problems []string
	if c.Webhook.Secret == "" {
		problems = append(problems, "webhook.secret (LINEAR_WEBHOOK_SECRET) is required")
	}
	if c.Agent.URL == "" {
		problems = append(problems, "agent.url (AGENT_URL) is required")
	}
	if c.Target.URL == "" {
		problems = append(problems, "target.url (TARGET_URL) is required")
	}
	if c.Queue.Concurrency < 1 {
		problems = append(problems, "queue.concurrency must be at least 1")
	}
	if c.Retention.HistoryDays < 0 || c.Retention.ArtifactDays < 0 {
		problems = append(problems, "retention days cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// loadEnvFile loads the first .env file found in the known locations
func loadEnvFile() error {
	envPaths := []string{
		".",
		"./config",
	}

	for _, path := range envPaths {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadDotEnvFile(envFile); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads KEY=VALUE lines and exports them unless already set
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			if _, exists := os.LookupEnv(key); !exists {
				os.Setenv(key, value)
			}
		}
	}
	return scanner.Err()
}

// bindEnvVars binds the conventional unprefixed environment variables
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.internal_api_key", "INTERNAL_API_KEY")

	// Queue
	v.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")

	// Webhook and tracker
	v.BindEnv("webhook.secret", "LINEAR_WEBHOOK_SECRET")
	v.BindEnv("linear.api_key", "LINEAR_API_KEY")

	// Agent and target
	v.BindEnv("agent.url", "AGENT_URL")
	v.BindEnv("agent.model", "AGENT_MODEL")
	v.BindEnv("target.url", "TARGET_URL")

	// Backends
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("storage.base_path", "STORAGE_PATH")
	v.BindEnv("retention.history_days", "RETENTION_HISTORY_DAYS")
	v.BindEnv("retention.artifact_days", "RETENTION_ARTIFACT_DAYS")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")

	// Telemetry
	v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.service_name", "OTEL_SERVICE_NAME")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Queue defaults
	v.SetDefault("queue.concurrency", 3)
	v.SetDefault("queue.retention", 1*time.Hour)
	v.SetDefault("queue.sweep_interval", 5*time.Minute)
	v.SetDefault("queue.run_timeout", 15*time.Minute)

	// Webhook defaults
	v.SetDefault("webhook.trigger_states", []string{"In Review", "Ready for QA"})
	v.SetDefault("webhook.trigger_labels", []string{})
	v.SetDefault("webhook.max_clock_skew", 60*time.Second)
	v.SetDefault("webhook.delivery_window", 1*time.Hour)

	// Linear defaults
	v.SetDefault("linear.api_url", "https://api.linear.app/graphql")

	// Agent defaults
	v.SetDefault("agent.model", "claude-sonnet-4")
	v.SetDefault("agent.timeout", 3*time.Minute)
	v.SetDefault("agent.breaker_failures", 3)
	v.SetDefault("agent.breaker_reset", 1*time.Minute)

	// Redis defaults
	v.SetDefault("redis.result_ttl", 7*24*time.Hour)

	// Database defaults
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	// Rate limit defaults
	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.max_retries", 3)
	v.SetDefault("rate_limit.initial_backoff_ms", 500)
	v.SetDefault("rate_limit.max_backoff_ms", 30000)
	v.SetDefault("rate_limit.webhook_rps", 10)
	v.SetDefault("rate_limit.webhook_burst", 20)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/results")

	// Retention defaults
	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.interval", 24*time.Hour)
	v.SetDefault("retention.history_days", 90)
	v.SetDefault("retention.artifact_days", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "opentelemetry-collector:4317")
	v.SetDefault("telemetry.service_name", "linear-stagehand-tests")
	v.SetDefault("telemetry.environment", "production")
}

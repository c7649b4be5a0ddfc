package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Processing modes. Historical replays are bounded and end via the idle
// timeout; live feeds run until signalled.
const (
	ModeLive       = "live"
	ModeHistorical = "historical"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// KafkaConfig holds broker and topic configuration
type KafkaConfig struct {
	Brokers       []string
	InputTopic    string
	OutputTopic   string
	ConsumerGroup string
}

// PipelineConfig holds feature engine configuration
type PipelineConfig struct {
	Mode              string
	MaxWindowSize     int
	IdleTimeout       time.Duration
	PollInterval      time.Duration
	DefaultDemand     float64
	SinkBatchSize     int
	SinkFlushInterval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// LoadConfig loads configuration from the environment, honoring a local
// .env file when present.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; real deployments use the process environment.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "demand_features"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKER_ADDRESS", "localhost:9092"), ","),
			InputTopic:    getEnv("KAFKA_INPUT_TOPIC", "demand-readings"),
			OutputTopic:   getEnv("KAFKA_OUTPUT_TOPIC", "demand-features"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "demand-features"),
		},
		Pipeline: PipelineConfig{
			Mode:              getEnv("PIPELINE_MODE", ModeHistorical),
			MaxWindowSize:     getEnvInt("PIPELINE_MAX_WINDOW_SIZE", 168),
			IdleTimeout:       getEnvDuration("PIPELINE_IDLE_TIMEOUT", 10*time.Second),
			PollInterval:      getEnvDuration("PIPELINE_POLL_INTERVAL", 5*time.Second),
			DefaultDemand:     getEnvFloat("PIPELINE_DEFAULT_DEMAND", 0.0),
			SinkBatchSize:     getEnvInt("PIPELINE_SINK_BATCH_SIZE", 100),
			SinkFlushInterval: getEnvDuration("PIPELINE_SINK_FLUSH_INTERVAL", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
		return fmt.Errorf("at least one Kafka broker is required")
	}

	if c.Kafka.InputTopic == "" || c.Kafka.OutputTopic == "" {
		return fmt.Errorf("Kafka input and output topics are required")
	}

	if c.Pipeline.Mode != ModeLive && c.Pipeline.Mode != ModeHistorical {
		return fmt.Errorf("invalid pipeline mode: %q (must be %q or %q)", c.Pipeline.Mode, ModeLive, ModeHistorical)
	}

	if c.Pipeline.MaxWindowSize <= 0 {
		return fmt.Errorf("pipeline max window size must be positive: %d", c.Pipeline.MaxWindowSize)
	}

	if c.Pipeline.IdleTimeout <= 0 || c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline idle timeout and poll interval must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

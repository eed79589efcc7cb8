// Package config loads the service TOML configuration with environment
// variable overrides and schema validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/slpk/loandocs/pkg/logger"
)

// Config is the root configuration for the document service.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// Environment: dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP     HTTPConfig      `mapstructure:"http"`
	Mongo    MongoConfig     `mapstructure:"mongo"`
	Blob     BlobConfig      `mapstructure:"blob"`
	Kafka    KafkaConfig     `mapstructure:"kafka"`
	OCR      OCRConfig       `mapstructure:"ocr"`
	Term     TermConfig      `mapstructure:"term"`
	Logger   logger.Config   `mapstructure:"logger"`
}

// HTTPConfig configures the gin server.
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// MongoConfig configures the document store connection.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	// OpTimeout bounds each store operation, in seconds.
	OpTimeout int `mapstructure:"op_timeout"`
}

// BlobConfig configures the S3-compatible object store.
type BlobConfig struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint string `mapstructure:"endpoint"`
	// OpTimeout bounds each blob operation, in seconds.
	OpTimeout int `mapstructure:"op_timeout"`
}

// KafkaConfig configures the domain event producer.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	MaxRetries   int      `mapstructure:"max_retries"`
	RetryBackoff int      `mapstructure:"retry_backoff"`
	// Enabled turns event publishing off entirely when false.
	Enabled bool `mapstructure:"enabled"`
}

// OCRConfig configures the verification collaborator.
type OCRConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// TermConfig holds the fallback term used when the live service
// configuration document is unreachable.
type TermConfig struct {
	DefaultAcademicYear string `mapstructure:"default_academic_year"`
	DefaultTerm         string `mapstructure:"default_term"`
}

// Load reads the TOML file at configPath, applies APP_-prefixed environment
// overrides and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for the fields without sane defaults.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Blob.Bucket == "" {
		return fmt.Errorf("blob.bucket is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// MongoOpTimeout returns the per-operation deadline for the document store.
func (c *Config) MongoOpTimeout() time.Duration {
	if c.Mongo.OpTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Mongo.OpTimeout) * time.Second
}

// BlobOpTimeout returns the per-operation deadline for the object store.
func (c *Config) BlobOpTimeout() time.Duration {
	if c.Blob.OpTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Blob.OpTimeout) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("mongo.database", "loandocs")
	v.SetDefault("mongo.op_timeout", 10)

	v.SetDefault("blob.region", "ap-southeast-1")
	v.SetDefault("blob.op_timeout", 30)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("ocr.timeout", 15)

	v.SetDefault("term.default_academic_year", "2568")
	v.SetDefault("term.default_term", "1")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/loandocs.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)
}

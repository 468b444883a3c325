// Package config loads the explorer configuration from the environment, an
// optional .env file and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/dataset"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/pipeline"
)

var validate = validator.New()

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host           string `validate:"required"`
	Port           int    `validate:"min=1,max=65535"`
	TemplateFolder string
	StaticFolder   string
	Debug          bool
	AllowedOrigins []string

	Store    StoreConfig
	Dataset  DatasetConfig
	Pipeline PipelineConfig
	Breaker  BreakerConfig

	// InitialTissue is loaded before serving. Empty skips the startup load.
	InitialTissue string
}

// StoreConfig locates the graph store.
type StoreConfig struct {
	URI           string `validate:"required"`
	Username      string
	Password      string
	Database      string
	QueryTimeout  time.Duration `validate:"gt=0"`
	RetryInterval time.Duration `validate:"gt=0"`
}

// DatasetConfig selects where tissue datasets are read from.
type DatasetConfig struct {
	Driver      string `validate:"oneof=fs s3"`
	Dir         string `validate:"required_if=Driver fs"`
	S3Bucket    string `validate:"required_if=Driver s3"`
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// PipelineConfig tunes the reload pipeline.
type PipelineConfig struct {
	Timeout              time.Duration `validate:"gt=0"`
	BatchSize            int           `validate:"min=1"`
	CentralityDirected   bool
	CentralityNormalized bool
}

// BreakerConfig tunes the circuit breaker in front of the store.
type BreakerConfig struct {
	FailureRatio float64       `validate:"gt=0,lte=1"`
	OpenTimeout  time.Duration `validate:"gt=0"`
}

// Load reads the configuration. args are the command-line arguments without
// the program name. A .env file (or the file named by ENV_FILE) is read first
// and never overrides variables already set in the environment.
func Load(args []string) (*Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:           getEnv("APP_HOST", "0.0.0.0"),
		Port:           getEnvInt("APP_PORT", 5000),
		TemplateFolder: getEnv("TEMPLATE_FOLDER", "public/template"),
		StaticFolder:   getEnv("STATIC_FOLDER", "public"),
		Debug:          getEnvBool("DEBUG", false),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		Store: StoreConfig{
			URI:           getEnv("STORE_URI", "bolt://localhost:7687"),
			Username:      getEnv("STORE_USERNAME", ""),
			Password:      getEnv("STORE_PASSWORD", ""),
			Database:      getEnv("STORE_DATABASE", ""),
			QueryTimeout:  getEnvDuration("STORE_QUERY_TIMEOUT", 30*time.Second),
			RetryInterval: getEnvDuration("STORE_RETRY_INTERVAL", 4*time.Second),
		},
		Dataset: DatasetConfig{
			Driver:      getEnv("DATASET_DRIVER", string(dataset.DriverFilesystem)),
			Dir:         getEnv("DATASET_DIR", "/usr/lib/memgraph/import-data"),
			S3Bucket:    getEnv("DATASET_S3_BUCKET", ""),
			S3Prefix:    getEnv("DATASET_S3_PREFIX", ""),
			S3Region:    getEnv("DATASET_S3_REGION", ""),
			S3Endpoint:  getEnv("DATASET_S3_ENDPOINT", ""),
			S3PathStyle: getEnvBool("DATASET_S3_PATH_STYLE", false),
		},
		Pipeline: PipelineConfig{
			Timeout:              getEnvDuration("PIPELINE_TIMEOUT", 10*time.Minute),
			BatchSize:            getEnvInt("LOAD_BATCH_SIZE", pipeline.DefaultBatchSize),
			CentralityDirected:   getEnvBool("CENTRALITY_DIRECTED", true),
			CentralityNormalized: getEnvBool("CENTRALITY_NORMALIZED", false),
		},
		Breaker: BreakerConfig{
			FailureRatio: getEnvFloat("BREAKER_FAILURE_RATIO", graphstore.DefaultBreakerConfig("").FailureThreshold),
			OpenTimeout:  getEnvDuration("BREAKER_OPEN_TIMEOUT", graphstore.DefaultBreakerConfig("").Timeout),
		},
		InitialTissue: getEnv("INITIAL_TISSUE", "cochlea"),
	}

	fs := flag.NewFlagSet("explorer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Host address.")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "App port.")
	fs.StringVar(&cfg.TemplateFolder, "template-folder", cfg.TemplateFolder, "Path to the directory with the index.html template.")
	fs.StringVar(&cfg.StaticFolder, "static-folder", cfg.StaticFolder, "Path to the directory with static files.")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Run with development logging.")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.InitialTissue != "" {
		if err := dataset.ValidateTissue(c.InitialTissue); err != nil {
			return fmt.Errorf("initial tissue: %w", err)
		}
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatasetSource converts the dataset settings for dataset.NewSource.
func (c *Config) DatasetSource() dataset.Config {
	return dataset.Config{
		Driver:      dataset.Driver(c.Dataset.Driver),
		Dir:         c.Dataset.Dir,
		S3Bucket:    c.Dataset.S3Bucket,
		S3Prefix:    c.Dataset.S3Prefix,
		S3Region:    c.Dataset.S3Region,
		S3Endpoint:  c.Dataset.S3Endpoint,
		S3PathStyle: c.Dataset.S3PathStyle,
	}
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Namespace()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", e.Namespace(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s=%s)", e.Namespace(), e.Tag(), e.Param()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

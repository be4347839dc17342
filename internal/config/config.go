package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"bondtape/internal/errors"
	"bondtape/pkg/contracts/domain"
)

// Config is the complete application configuration.
type Config struct {
	Feed        FeedConfig        `yaml:"feed" envconfig:"FEED"`
	Cleaning    CleaningConfig    `yaml:"cleaning" envconfig:"CLEANING"`
	Aggregation AggregationConfig `yaml:"aggregation" envconfig:"AGGREGATION"`
	Runner      RunnerConfig      `yaml:"runner" envconfig:"RUNNER"`
	Export      ExportConfig      `yaml:"export" envconfig:"EXPORT"`
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
}

// FeedConfig selects and paces the upstream feed source.
type FeedConfig struct {
	Type string `yaml:"type" envconfig:"TYPE" default:"standard" validate:"oneof=standard rule144a"`
	// ChunkSize is how many CUSIPs go into one feed query.
	ChunkSize int `yaml:"chunk_size" envconfig:"CHUNK_SIZE" default:"500" validate:"gt=0"`
	// SegmentBoundary is the date at which the 144A feed takes over from the
	// standard feed for private-placement issues.
	SegmentBoundary string      `yaml:"segment_boundary" envconfig:"SEGMENT_BOUNDARY" default:"2014-06-30"`
	Retry           RetryConfig `yaml:"retry" envconfig:"RETRY"`
	// RateLimit caps feed queries per second across all workers; 0 disables.
	RateLimit float64 `yaml:"rate_limit" envconfig:"RATE_LIMIT" default:"5"`
	RateBurst int     `yaml:"rate_burst" envconfig:"RATE_BURST" default:"1" validate:"gte=0"`
}

// RetryConfig controls retries of a feed fetch.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3" validate:"gt=0"`
	Delay         time.Duration `yaml:"delay" envconfig:"DELAY" default:"2s"`
	BackoffFactor float64       `yaml:"backoff_factor" envconfig:"BACKOFF_FACTOR" default:"2" validate:"gte=1"`
}

// CleaningConfig tunes the reconciliation engine.
type CleaningConfig struct {
	// MinVolume drops reports below this par volume before reconciliation.
	MinVolume float64 `yaml:"min_volume" envconfig:"MIN_VOLUME" default:"10000" validate:"gte=0"`
	// PassthroughMax is the near-empty batch threshold: batches with at most
	// this many raw records bypass reconciliation unchanged.
	PassthroughMax int `yaml:"passthrough_max" envconfig:"PASSTHROUGH_MAX" default:"100" validate:"gte=0"`
}

// AggregationConfig selects the summary bucket width.
type AggregationConfig struct {
	Granularity string `yaml:"granularity" envconfig:"GRANULARITY" default:"daily" validate:"oneof=daily hourly"`
}

// RunnerConfig sizes the batch worker pool.
type RunnerConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"4" validate:"gt=0"`
}

// ExportConfig controls result output.
type ExportConfig struct {
	OutDir    string `yaml:"out_dir" envconfig:"OUT_DIR" default:"data/reports"`
	WriteXLSX bool   `yaml:"write_xlsx" envconfig:"WRITE_XLSX" default:"true"`
}

// ServerConfig contains the results API server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/bondtape.log"`
}

// FeedType returns the configured feed type as a domain value.
func (c *Config) FeedType() domain.FeedType {
	return domain.FeedType(c.Feed.Type)
}

// Granularity returns the configured granularity as a domain value.
func (c *Config) Granularity() domain.Granularity {
	return domain.Granularity(c.Aggregation.Granularity)
}

// SegmentBoundary parses the configured feed segment boundary date.
func (c *Config) SegmentBoundary() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Feed.SegmentBoundary)
	if err != nil {
		return time.Time{}, errors.NewConfigError("parse feed segment boundary", err)
	}
	return t, nil
}

// Load builds the configuration in three layers: envconfig defaults, then
// the optional YAML file, then explicitly set environment variables on top.
// The result is validated; invalid run parameters reject the whole run
// before any feed access.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("BONDTAPE", &cfg); err != nil {
		return nil, errors.NewConfigError("load config from env", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, errors.NewConfigError("load config from file", err)
			}
			overlayFile(&cfg, fileCfg)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the run parameters. Failures are validation errors and
// fail fast.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return errors.NewValidationError(
				fmt.Sprintf("invalid configuration: %s", verrs.Error()))
		}
		return errors.NewValidationError(err.Error())
	}
	if _, err := c.SegmentBoundary(); err != nil {
		return err
	}
	return nil
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlayFile applies the file config over the env-derived config. Every
// field here carries an envconfig default, so a zero check against cfg would
// never fire; instead a file value wins unless its environment variable was
// explicitly set. Fields the file leaves at zero keep their current value.
func overlayFile(cfg *Config, file *Config) {
	if file.Feed.Type != "" && !envSet("BONDTAPE_FEED_TYPE") {
		cfg.Feed.Type = file.Feed.Type
	}
	if file.Feed.ChunkSize != 0 && !envSet("BONDTAPE_FEED_CHUNK_SIZE") {
		cfg.Feed.ChunkSize = file.Feed.ChunkSize
	}
	if file.Feed.SegmentBoundary != "" && !envSet("BONDTAPE_FEED_SEGMENT_BOUNDARY") {
		cfg.Feed.SegmentBoundary = file.Feed.SegmentBoundary
	}
	if file.Feed.Retry.MaxAttempts != 0 && !envSet("BONDTAPE_FEED_RETRY_MAX_ATTEMPTS") {
		cfg.Feed.Retry.MaxAttempts = file.Feed.Retry.MaxAttempts
	}
	if file.Feed.Retry.Delay != 0 && !envSet("BONDTAPE_FEED_RETRY_DELAY") {
		cfg.Feed.Retry.Delay = file.Feed.Retry.Delay
	}
	if file.Feed.Retry.BackoffFactor != 0 && !envSet("BONDTAPE_FEED_RETRY_BACKOFF_FACTOR") {
		cfg.Feed.Retry.BackoffFactor = file.Feed.Retry.BackoffFactor
	}
	if file.Feed.RateLimit != 0 && !envSet("BONDTAPE_FEED_RATE_LIMIT") {
		cfg.Feed.RateLimit = file.Feed.RateLimit
	}
	if file.Feed.RateBurst != 0 && !envSet("BONDTAPE_FEED_RATE_BURST") {
		cfg.Feed.RateBurst = file.Feed.RateBurst
	}
	if file.Cleaning.MinVolume != 0 && !envSet("BONDTAPE_CLEANING_MIN_VOLUME") {
		cfg.Cleaning.MinVolume = file.Cleaning.MinVolume
	}
	if file.Cleaning.PassthroughMax != 0 && !envSet("BONDTAPE_CLEANING_PASSTHROUGH_MAX") {
		cfg.Cleaning.PassthroughMax = file.Cleaning.PassthroughMax
	}
	if file.Aggregation.Granularity != "" && !envSet("BONDTAPE_AGGREGATION_GRANULARITY") {
		cfg.Aggregation.Granularity = file.Aggregation.Granularity
	}
	if file.Runner.Workers != 0 && !envSet("BONDTAPE_RUNNER_WORKERS") {
		cfg.Runner.Workers = file.Runner.Workers
	}
	if file.Export.OutDir != "" && !envSet("BONDTAPE_EXPORT_OUT_DIR") {
		cfg.Export.OutDir = file.Export.OutDir
	}
	// Export.WriteXLSX is a plain bool, so a file "false" is
	// indistinguishable from unset; only BONDTAPE_EXPORT_WRITE_XLSX can
	// disable it.
	if file.Export.WriteXLSX && !envSet("BONDTAPE_EXPORT_WRITE_XLSX") {
		cfg.Export.WriteXLSX = true
	}
	if file.Server.Port != 0 && !envSet("BONDTAPE_SERVER_PORT") {
		cfg.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 && !envSet("BONDTAPE_SERVER_READ_TIMEOUT") {
		cfg.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 && !envSet("BONDTAPE_SERVER_WRITE_TIMEOUT") {
		cfg.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.IdleTimeout != 0 && !envSet("BONDTAPE_SERVER_IDLE_TIMEOUT") {
		cfg.Server.IdleTimeout = file.Server.IdleTimeout
	}
	if file.Server.ShutdownTimeout != 0 && !envSet("BONDTAPE_SERVER_SHUTDOWN_TIMEOUT") {
		cfg.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}
	if file.Logging.Level != "" && !envSet("BONDTAPE_LOGGING_LEVEL") {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Output != "" && !envSet("BONDTAPE_LOGGING_OUTPUT") {
		cfg.Logging.Output = file.Logging.Output
	}
	if file.Logging.FilePath != "" && !envSet("BONDTAPE_LOGGING_FILE_PATH") {
		cfg.Logging.FilePath = file.Logging.FilePath
	}
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

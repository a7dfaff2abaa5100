package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/aematch/internal/dataset"
	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/neighbors"
	"github.com/23skdu/aematch/internal/normalize"
	"github.com/23skdu/aematch/internal/pipeline"
	"github.com/23skdu/aematch/internal/visualize"
)

// EnvPrefix prefixes every environment variable read into Config.
const EnvPrefix = "AEMATCH"

// Config is the run configuration. Defaults come from DefaultConfig, then an
// optional .env file, then AEMATCH_* variables, then command-line flags.
type Config struct {
	Folders    []string `envconfig:"FOLDERS"`
	AEPath     string   `envconfig:"AE_PATH"`
	AEMaskPath string   `envconfig:"AE_MASK_PATH"`
	ImageExt   string   `envconfig:"IMAGE_EXT"`

	NSamples  int   `envconfig:"N_SAMPLES"`
	Seed      int64 `envconfig:"SEED"`
	BatchRows int   `envconfig:"BATCH_ROWS"`

	Normalize  bool    `envconfig:"NORMALIZE"`
	WeightAE   float64 `envconfig:"WEIGHT_AE"`
	WeightMask float64 `envconfig:"WEIGHT_MASK"`
	WeightCTE  float64 `envconfig:"WEIGHT_CTE"`

	Neighbors int    `envconfig:"NEIGHBORS"`
	Index     string `envconfig:"INDEX"`

	ImageCache int `envconfig:"IMAGE_CACHE"`

	GridPath    string `envconfig:"GRID_PATH"`
	Viewer      string `envconfig:"VIEWER"`
	MetricsFile string `envconfig:"METRICS_FILE"`

	LogFormat string `envconfig:"LOG_FORMAT"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
}

// Config validation errors
var (
	ErrNoFolders        = errors.New("at least one folder is required")
	ErrInvalidAEPath    = errors.New("ae_path cannot be empty")
	ErrInvalidNSamples  = errors.New("n_samples must be positive")
	ErrInvalidNeighbors = errors.New("neighbors must be positive")
	ErrInvalidBatchRows = errors.New("batch_rows must be positive")
	ErrInvalidIndex     = errors.New("index must be kdtree or brute")
	ErrInvalidWeight    = errors.New("weights cannot be negative")
	ErrInvalidImageExt  = errors.New("image_ext cannot be empty")
	ErrInvalidCacheSize = errors.New("image_cache cannot be negative")
	ErrInvalidLogFormat = errors.New("log_format must be 'json', 'console', or 'text'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
)

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if len(cfg.Folders) == 0 {
		return ErrNoFolders
	}
	if cfg.AEPath == "" {
		return ErrInvalidAEPath
	}
	if cfg.NSamples <= 0 {
		return ErrInvalidNSamples
	}
	if cfg.Neighbors <= 0 {
		return ErrInvalidNeighbors
	}
	if cfg.BatchRows <= 0 {
		return ErrInvalidBatchRows
	}
	if !validIndex(cfg.Index) {
		return ErrInvalidIndex
	}
	if cfg.WeightAE < 0 || cfg.WeightMask < 0 || cfg.WeightCTE < 0 {
		return ErrInvalidWeight
	}
	if cfg.ImageExt == "" {
		return ErrInvalidImageExt
	}
	if cfg.ImageCache < 0 {
		return ErrInvalidCacheSize
	}
	return validateLogging(cfg)
}

func validateLogging(cfg *Config) error {
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" && cfg.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}

func validIndex(kind string) bool {
	for _, k := range neighbors.Kinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	weights := normalize.DefaultWeights()
	return Config{
		ImageExt:   dataset.DefaultImageExt,
		NSamples:   20,
		Seed:       0,
		BatchRows:  visualize.DefaultBatchRows,
		Normalize:  false,
		WeightAE:   weights.Autoencoder,
		WeightMask: weights.Mask,
		WeightCTE:  weights.CTE,
		Neighbors:  2,
		Index:      string(neighbors.KindKDTree),
		ImageCache: 64,
		GridPath:   visualize.DefaultGridPath(),
		LogFormat:  "console",
		LogLevel:   "info",
	}
}

// LoadConfig layers envFile (skipped when missing) and AEMATCH_* variables
// over the defaults. Variables already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	cfg := DefaultConfig()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, aeerrors.WrapConfigurationError(err, "load_env_file", "cannot read env file").
				WithContext("path", envFile)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, aeerrors.WrapConfigurationError(err, "load_environment", "invalid environment variable")
	}
	return cfg, nil
}

// Pipeline converts the configuration for pipeline.Run.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Folders:    c.Folders,
		AEPath:     c.AEPath,
		AEMaskPath: c.AEMaskPath,
		ImageExt:   c.ImageExt,
		Normalize:  c.Normalize,
		Weights: normalize.Weights{
			Autoencoder: c.WeightAE,
			Mask:        c.WeightMask,
			CTE:         c.WeightCTE,
		},
		Index:     neighbors.Kind(c.Index),
		Neighbors: c.Neighbors,
		NSamples:  c.NSamples,
		Seed:      c.Seed,
		BatchRows: c.BatchRows,

		ImageCache: c.ImageCache,
	}
}

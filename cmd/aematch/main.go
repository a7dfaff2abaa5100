package main

import (
	"context"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/23skdu/aematch/internal/encoder"
	"github.com/23skdu/aematch/internal/logging"
	"github.com/23skdu/aematch/internal/metrics"
	"github.com/23skdu/aematch/internal/pipeline"
	"github.com/23skdu/aematch/internal/visualize"
)

// envFileVar names the variable that overrides the .env location.
const envFileVar = EnvPrefix + "_ENV_FILE"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries the state shared by the commands of one invocation.
type app struct {
	cfg    Config
	logger zerolog.Logger
	stdin  *os.File
	stderr io.Writer
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdin *os.File, stderr io.Writer) int {
	envFile := os.Getenv(envFileVar)
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := LoadConfig(envFile)
	if err != nil {
		logger := fallbackLogger(stderr)
		logger.Error().Err(err).Str("env_file", envFile).Msg("invalid configuration")
		return 1
	}

	// replaced by the configured logger once flags are parsed
	a := &app{cfg: cfg, logger: fallbackLogger(stderr), stdin: stdin, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	runErr := root.ExecuteContext(ctx)
	if runErr != nil {
		a.logger.Error().Err(runErr).Msg("aematch failed")
	}

	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Error().Err(err).Str("path", a.cfg.MetricsFile).Msg("cannot write metrics file")
			return 1
		}
	}
	if runErr != nil {
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	cfg := &a.cfg
	root := &cobra.Command{
		Use:   "aematch",
		Short: "Compare autoencoder representations of driving image folders",
		Long: "aematch encodes every image of the given folders, indexes the first folder and " +
			"shows random samples of the second next to their nearest neighbors in the first.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := validateLogging(cfg); err != nil {
				return err
			}
			logger, err := logging.NewLogger(logging.Config{
				Format: cfg.LogFormat,
				Level:  cfg.LogLevel,
				Output: a.stderr,
			})
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ValidateConfig(cfg); err != nil {
				return err
			}
			return a.compare(cmd.Context())
		},
	}

	flags := root.Flags()
	flags.StringArrayVarP(&cfg.Folders, "folder", "f", cfg.Folders, "image folder, repeat for each; the first is the reference")
	flags.StringVar(&cfg.AEPath, "ae-path", cfg.AEPath, "encoder weights file (Arrow IPC)")
	flags.StringVar(&cfg.AEMaskPath, "ae-mask-path", cfg.AEMaskPath, "optional mask encoder weights file")
	flags.IntVarP(&cfg.NSamples, "n-samples", "n", cfg.NSamples, "number of query samples to show")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed for sample selection")
	flags.Float64Var(&cfg.WeightCTE, "weight-cte", cfg.WeightCTE, "weight of the cross-track error column")
	flags.Float64Var(&cfg.WeightAE, "weight-ae", cfg.WeightAE, "weight of the encoder columns")
	flags.Float64Var(&cfg.WeightMask, "weight-mask", cfg.WeightMask, "weight of the mask encoder columns")
	flags.BoolVar(&cfg.Normalize, "normalize", cfg.Normalize, "standardize columns with statistics of the first folder")
	flags.IntVarP(&cfg.Neighbors, "neighbors", "k", cfg.Neighbors, "neighbors shown per sample")
	flags.StringVar(&cfg.Index, "index", cfg.Index, "neighbor index: kdtree or brute")
	flags.IntVar(&cfg.BatchRows, "batch-rows", cfg.BatchRows, "rows per displayed grid")
	flags.StringVar(&cfg.ImageExt, "image-ext", cfg.ImageExt, "image file extension")
	flags.IntVar(&cfg.ImageCache, "image-cache", cfg.ImageCache, "decoded images kept in memory while paging, 0 disables")
	flags.StringVar(&cfg.GridPath, "grid-path", cfg.GridPath, "PNG file the grid is written to")
	flags.StringVar(&cfg.Viewer, "viewer", cfg.Viewer, "command that opens the grid file, launched once")

	persistent := root.PersistentFlags()
	persistent.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this file on exit")
	persistent.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json, console, or text")
	persistent.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, or error")

	root.AddCommand(newInitEncoderCmd(a))
	return root
}

// compare runs the interactive comparison.
func (a *app) compare(ctx context.Context) error {
	renderer := &visualize.FileRenderer{
		Path:   a.cfg.GridPath,
		Viewer: a.cfg.Viewer,
		Logger: logging.Component(a.logger, "renderer"),
	}
	deps := pipeline.Deps{
		Renderer: renderer,
		Keys:     visualize.NewTerminalKeys(a.stdin),
		Logger:   a.logger,
	}

	a.logger.Info().
		Strs("folders", a.cfg.Folders).
		Str("ae_path", a.cfg.AEPath).
		Str("ae_mask_path", a.cfg.AEMaskPath).
		Int("n_samples", a.cfg.NSamples).
		Int64("seed", a.cfg.Seed).
		Str("index", a.cfg.Index).
		Bool("normalize", a.cfg.Normalize).
		Msg("starting comparison")

	_, err := pipeline.Run(ctx, a.cfg.Pipeline(), deps)
	return err
}

func newInitEncoderCmd(a *app) *cobra.Command {
	var (
		name     string
		zSize    int
		width    int
		height   int
		channels int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "init-encoder OUTPUT",
		Short: "Write a seeded random-projection encoder weights file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := encoder.NewRandomLinear(rand.New(rand.NewSource(seed)), name, zSize, width, height, channels)
			if err != nil {
				return err
			}
			if err := encoder.WriteLinear(args[0], enc); err != nil {
				return err
			}
			a.logger.Info().
				Str("path", args[0]).
				Str("name", name).
				Int("z_size", zSize).
				Int("input_dim", enc.InputDim()).
				Msg("encoder written")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "random", "encoder name stored in the file")
	flags.IntVar(&zSize, "z-size", 32, "latent size")
	flags.IntVar(&width, "width", 64, "input width the image is resized to")
	flags.IntVar(&height, "height", 32, "input height the image is resized to")
	flags.IntVar(&channels, "channels", 1, "input channels: 1 (luma) or 3 (RGB)")
	flags.Int64Var(&seed, "seed", 0, "weight seed")
	return cmd
}

// fallbackLogger reports errors raised before the configured logger exists.
func fallbackLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
}

// Package pipeline wires the loader, normalizer, neighbor index and
// visualizer into one run.
package pipeline

import (
	"context"
	"image"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/23skdu/aematch/internal/cache"
	"github.com/23skdu/aematch/internal/dataset"
	"github.com/23skdu/aematch/internal/encoder"
	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/metrics"
	"github.com/23skdu/aematch/internal/neighbors"
	"github.com/23skdu/aematch/internal/normalize"
	"github.com/23skdu/aematch/internal/visualize"
)

// Config describes one run.
type Config struct {
	// Folders are loaded in order; the first is the reference, the second
	// is queried. With a single folder the reference queries itself.
	Folders    []string
	AEPath     string
	AEMaskPath string
	ImageExt   string

	Normalize bool
	Weights   normalize.Weights

	Index     neighbors.Kind
	Neighbors int

	NSamples  int
	Seed      int64
	BatchRows int

	// ImageCache bounds the decoded images kept between grid rows; 0 disables it.
	ImageCache int
}

// Deps are the interactive collaborators of a run.
type Deps struct {
	Renderer visualize.Renderer
	Keys     visualize.KeySource
	Logger   zerolog.Logger
}

// Summary reports what a run did.
type Summary struct {
	Datasets []int
	Samples  []int
	Matches  []Match
	Session  visualize.Result
}

// LoadLayout loads the encoder weights named by cfg. The mask encoder block
// is only present when AEMaskPath is set.
func LoadLayout(cfg Config) (dataset.Layout, error) {
	ae, err := encoder.Load(cfg.AEPath)
	if err != nil {
		return dataset.Layout{}, err
	}
	layout := dataset.NewLayout(ae)

	if cfg.AEMaskPath != "" {
		mask, err := encoder.Load(cfg.AEMaskPath)
		if err != nil {
			return dataset.Layout{}, err
		}
		layout = layout.With(dataset.RoleMask, mask)
	}
	return layout, nil
}

// Prepare encodes every folder and applies the normalizer.
func Prepare(ctx context.Context, cfg Config, layout dataset.Layout, logger zerolog.Logger) ([]*dataset.Dataset, error) {
	if len(cfg.Folders) == 0 {
		return nil, aeerrors.NewConfigurationError("prepare", "at least one folder is required")
	}

	start := time.Now()
	loader := dataset.NewLoader(layout, cfg.ImageExt, logger)
	datasets, err := loader.LoadAll(ctx, cfg.Folders)
	if err != nil {
		return nil, err
	}
	metrics.StageDurationSeconds.WithLabelValues("load").Observe(time.Since(start).Seconds())
	for i, ds := range datasets {
		metrics.DatasetRows.WithLabelValues(strconv.Itoa(i)).Set(float64(ds.Len()))
	}

	start = time.Now()
	if err := normalize.Apply(datasets, cfg.Normalize, cfg.Weights); err != nil {
		return nil, err
	}
	metrics.StageDurationSeconds.WithLabelValues("normalize").Observe(time.Since(start).Seconds())
	return datasets, nil
}

// Run executes the whole comparison: encode, normalize, index the
// reference, then page through matches of a seeded sample of the query
// folder.
func Run(ctx context.Context, cfg Config, deps Deps) (Summary, error) {
	logger := deps.Logger.With().Str("component", "pipeline").Logger()

	layout, err := LoadLayout(cfg)
	if err != nil {
		return Summary{}, err
	}
	logger.Info().Int("width", layout.Width()).Int("blocks", len(layout.Blocks())).Msg("encoders loaded")

	datasets, err := Prepare(ctx, cfg, layout, deps.Logger)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Datasets: make([]int, len(datasets))}
	for i, ds := range datasets {
		summary.Datasets[i] = ds.Len()
	}

	ref := datasets[0]
	query := ref
	if len(datasets) > 1 {
		query = datasets[1]
	}

	start := time.Now()
	index, err := neighbors.Build(cfg.Index, ref.Features)
	if err != nil {
		return summary, err
	}
	metrics.StageDurationSeconds.WithLabelValues("index").Observe(time.Since(start).Seconds())
	logger.Info().Str("index", string(index.Kind())).Int("rows", index.Len()).Int("dims", index.Dims()).
		Msg("reference index built")

	rng := rand.New(rand.NewSource(cfg.Seed))
	summary.Samples = visualize.SampleIndices(rng, query.Len(), cfg.NSamples)

	source := &matchSource{
		ref:     ref,
		query:   query,
		index:   index,
		samples: summary.Samples,
		k:       cfg.Neighbors,
		images:  cache.NewLRU[image.Image](cfg.ImageCache, "images"),
		logger:  logger,
	}
	session := &visualize.Session{
		Source:    source,
		Renderer:  deps.Renderer,
		Keys:      deps.Keys,
		BatchRows: cfg.BatchRows,
		Logger:    logger,
	}

	start = time.Now()
	res, err := session.Run(ctx)
	summary.Session = res
	summary.Matches = source.matches
	metrics.StageDurationSeconds.WithLabelValues("visualize").Observe(time.Since(start).Seconds())
	if err != nil {
		return summary, err
	}

	logger.Info().Int("rows", res.Rows).Int("renders", res.Renders).Bool("stopped", res.Stopped).
		Msg("comparison finished")
	return summary, nil
}

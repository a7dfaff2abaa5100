package dataset

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/imaging"
	"github.com/23skdu/aematch/internal/metrics"
)

// DefaultImageExt is the extension appended to sample names.
const DefaultImageExt = ".jpg"

// Loader encodes folders into datasets sharing one layout.
type Loader struct {
	layout   Layout
	imageExt string
	logger   zerolog.Logger
}

// NewLoader creates a loader. An empty imageExt selects DefaultImageExt.
func NewLoader(layout Layout, imageExt string, logger zerolog.Logger) *Loader {
	if imageExt == "" {
		imageExt = DefaultImageExt
	}
	return &Loader{
		layout:   layout,
		imageExt: imageExt,
		logger:   logger.With().Str("component", "loader").Logger(),
	}
}

// LoadAll loads folders in order.
func (l *Loader) LoadAll(ctx context.Context, folders []string) ([]*Dataset, error) {
	datasets := make([]*Dataset, 0, len(folders))
	for _, folder := range folders {
		ds, err := l.Load(ctx, folder)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// Load reads the metadata of folder and encodes every listed image.
func (l *Loader) Load(ctx context.Context, folder string) (*Dataset, error) {
	start := time.Now()
	md, err := ReadMetadata(folder)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Folder:   folder,
		Names:    md.Names(),
		CTE:      make([]float64, len(md)),
		Layout:   l.layout,
		imageExt: l.imageExt,
	}

	width := l.layout.Width()
	ranges := l.layout.Ranges()
	blocks := l.layout.Blocks()
	data := make([]float64, len(md)*width)

	for i, sample := range md {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := imaging.Load(ds.ImagePath(i))
		if err != nil {
			return nil, err
		}

		row := data[i*width : (i+1)*width]
		for j, block := range blocks {
			r := ranges[j]
			encodeStart := time.Now()
			z, err := block.Encoder.Encode(img)
			if err != nil {
				return nil, aeerrors.WrapEncodingError(err, "load_dataset", "encoder failed").
					WithContext("encoder", block.Encoder.Name()).
					WithContext("path", ds.ImagePath(i))
			}
			metrics.EncodeDurationSeconds.WithLabelValues(string(block.Role)).Observe(time.Since(encodeStart).Seconds())
			metrics.ImagesEncodedTotal.WithLabelValues(string(block.Role)).Inc()

			if len(z) != r.Len() {
				return nil, aeerrors.NewEncodingError("load_dataset", "latent size mismatch").
					WithContext("encoder", block.Encoder.Name()).
					WithContext("got", len(z)).
					WithContext("want", r.Len())
			}
			copy(row[r.Start:r.End], z)
		}
		row[width-1] = sample.CTE
		ds.CTE[i] = sample.CTE
	}

	ds.Features = mat.NewDense(len(md), width, data)

	l.logger.Info().
		Str("folder", folder).
		Int("samples", ds.Len()).
		Int("width", width).
		Dur("elapsed", time.Since(start)).
		Msg("dataset encoded")
	return ds, nil
}

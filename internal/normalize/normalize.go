// Package normalize standardizes feature matrices and re-weights their
// column blocks.
package normalize

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/23skdu/aematch/internal/dataset"
	aeerrors "github.com/23skdu/aematch/internal/errors"
)

// constantScale is the standard deviation below which a column is treated as
// constant and only centred.
const constantScale = 10 * 2.220446049250313e-16

// Weights multiply the columns of each feature block.
type Weights struct {
	Autoencoder float64
	Mask        float64
	CTE         float64
}

// DefaultWeights amplify the CTE column so track position dominates the
// distance over visual similarity.
func DefaultWeights() Weights {
	return Weights{Autoencoder: 1, Mask: 1, CTE: 10}
}

// For returns the multiplier of a block role.
func (w Weights) For(role dataset.Role) float64 {
	switch role {
	case dataset.RoleAutoencoder:
		return w.Autoencoder
	case dataset.RoleMask:
		return w.Mask
	case dataset.RoleCTE:
		return w.CTE
	default:
		return 1
	}
}

// Scaler holds per column mean and scale.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// Fit computes the mean and population standard deviation of every column of m.
func Fit(m mat.Matrix) *Scaler {
	rows, cols := m.Dims()
	s := &Scaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < constantScale {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s
}

// Transform standardizes m in place.
func (s *Scaler) Transform(m *mat.Dense) error {
	rows, cols := m.Dims()
	if cols != len(s.Mean) {
		return aeerrors.NewInputError("transform", "feature width does not match fitted width").
			WithContext("got", cols).WithContext("want", len(s.Mean))
	}
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = (row[j] - s.Mean[j]) / s.Scale[j]
		}
	}
	return nil
}

// Reweight multiplies each layout block of ds by its weight, in place.
func Reweight(ds *dataset.Dataset, w Weights) {
	for _, r := range ds.Layout.Ranges() {
		factor := w.For(r.Role)
		if factor == 1 {
			continue
		}
		block := ds.Features.Slice(0, ds.Len(), r.Start, r.End).(*mat.Dense)
		block.Scale(factor, block)
	}
}

// Apply optionally standardizes every dataset using statistics of the first
// one, then re-weights every dataset. Columns keep their position.
func Apply(datasets []*dataset.Dataset, standardize bool, w Weights) error {
	if len(datasets) == 0 {
		return nil
	}

	if standardize {
		scaler := Fit(datasets[0].Features)
		for _, ds := range datasets {
			if err := scaler.Transform(ds.Features); err != nil {
				return aeerrors.WrapInputError(err, "normalize", "cannot standardize dataset").
					WithContext("folder", ds.Folder)
			}
		}
	}

	for _, ds := range datasets {
		Reweight(ds, w)
	}
	return nil
}

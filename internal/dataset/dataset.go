// Package dataset turns a folder of images and their metadata into a
// feature matrix.
package dataset

import (
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// Dataset is the feature matrix of one folder. Row i belongs to Names[i].
type Dataset struct {
	Folder   string
	Names    []string
	CTE      []float64
	Features *mat.Dense
	Layout   Layout

	imageExt string
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Names)
}

// Width returns the feature vector length.
func (d *Dataset) Width() int {
	_, c := d.Features.Dims()
	return c
}

// Row returns a view of the feature vector of sample i. Writes through the
// slice modify the dataset.
func (d *Dataset) Row(i int) []float64 {
	return d.Features.RawRowView(i)
}

// ImagePath returns the image file of sample i.
func (d *Dataset) ImagePath(i int) string {
	return filepath.Join(d.Folder, d.Names[i]+d.imageExt)
}

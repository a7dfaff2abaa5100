// Package neighbors answers k nearest neighbor queries over a reference
// feature matrix using Euclidean distance.
package neighbors

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/metrics"
)

// Kind selects the index implementation.
type Kind string

const (
	// KindKDTree is an exact k-d tree search.
	KindKDTree Kind = "kdtree"
	// KindBrute is an exact linear scan.
	KindBrute Kind = "brute"
)

// Kinds lists every supported index kind.
var Kinds = []Kind{KindKDTree, KindBrute}

// Neighbor is a reference row and its distance to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is a read only nearest neighbor structure.
type Index interface {
	// Query returns the k rows closest to q, nearest first. Ties are ordered
	// by row index.
	Query(q []float64, k int) ([]Neighbor, error)
	// Len is the number of indexed rows.
	Len() int
	// Dims is the dimensionality every query must match.
	Dims() int
	// Kind reports the implementation.
	Kind() Kind
}

// Build indexes the rows of m.
func Build(kind Kind, m mat.Matrix) (Index, error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, aeerrors.NewIndexError("build_index", "reference matrix is empty")
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, m)
	}

	var idx Index
	switch kind {
	case KindKDTree, "":
		idx = newKDTree(data)
	case KindBrute:
		idx = newBrute(data)
	default:
		return nil, aeerrors.NewIndexError("build_index", "unknown index kind").WithContext("kind", string(kind))
	}
	return instrumented{Index: idx}, nil
}

// instrumented records query metrics around an index.
type instrumented struct {
	Index
}

func (i instrumented) Query(q []float64, k int) ([]Neighbor, error) {
	res, err := i.Index.Query(q, k)
	if err != nil {
		metrics.NeighborQueriesTotal.WithLabelValues(string(i.Kind()), "error").Inc()
		return nil, err
	}
	metrics.NeighborQueriesTotal.WithLabelValues(string(i.Kind()), "ok").Inc()
	for _, n := range res {
		metrics.NeighborDistance.Observe(n.Distance)
	}
	return res, nil
}

// checkQuery validates q against the index shape and clamps k to the row count.
func checkQuery(idx Index, q []float64, k int) (int, error) {
	if len(q) != idx.Dims() {
		return 0, aeerrors.NewIndexError("query", "query dimensionality does not match index").
			WithContext("got", len(q)).WithContext("want", idx.Dims())
	}
	if k < 1 {
		return 0, aeerrors.NewIndexError("query", "k must be at least 1").WithContext("k", k)
	}
	return min(k, idx.Len()), nil
}

func sortNeighbors(ns []Neighbor) {
	slices.SortFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

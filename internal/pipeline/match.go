package pipeline

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"github.com/23skdu/aematch/internal/cache"
	"github.com/23skdu/aematch/internal/dataset"
	"github.com/23skdu/aematch/internal/imaging"
	"github.com/23skdu/aematch/internal/neighbors"
)

// Match is one query sample and its nearest reference samples.
type Match struct {
	Query     string
	QueryCTE  float64
	Neighbors []MatchedNeighbor
}

// MatchedNeighbor is a reference sample returned for a query.
type MatchedNeighbor struct {
	Name     string
	CTE      float64
	Distance float64
}

// matchSource renders row i as the query image followed by its neighbors.
type matchSource struct {
	ref     *dataset.Dataset
	query   *dataset.Dataset
	index   neighbors.Index
	samples []int
	k       int
	images  *cache.LRU[image.Image]
	logger  zerolog.Logger

	matches []Match
}

func (m *matchSource) Len() int {
	return len(m.samples)
}

func (m *matchSource) Row(_ context.Context, i int) (image.Image, error) {
	sample := m.samples[i]
	found, err := m.index.Query(m.query.Row(sample), m.k)
	if err != nil {
		return nil, err
	}

	match := Match{
		Query:     m.query.Names[sample],
		QueryCTE:  m.query.CTE[sample],
		Neighbors: make([]MatchedNeighbor, len(found)),
	}

	queryImg, err := m.load(m.query.ImagePath(sample))
	if err != nil {
		return nil, err
	}
	imgs := make([]image.Image, 0, len(found)+1)
	imgs = append(imgs, queryImg)

	for j, n := range found {
		img, err := m.load(m.ref.ImagePath(n.Index))
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
		match.Neighbors[j] = MatchedNeighbor{
			Name:     m.ref.Names[n.Index],
			CTE:      m.ref.CTE[n.Index],
			Distance: n.Distance,
		}
	}
	m.matches = append(m.matches, match)

	names := make([]string, len(match.Neighbors))
	ctes := make([]float64, len(match.Neighbors))
	dists := make([]float64, len(match.Neighbors))
	for j, n := range match.Neighbors {
		names[j], ctes[j], dists[j] = n.Name, n.CTE, n.Distance
	}
	m.logger.Debug().
		Str("query", match.Query).
		Float64("query_cte", match.QueryCTE).
		Strs("neighbors", names).
		Floats64("neighbor_cte", ctes).
		Floats64("distances", dists).
		Msg("matched")

	return imaging.HStack(imgs...), nil
}

func (m *matchSource) load(path string) (image.Image, error) {
	return m.images.GetOrLoad(path, func() (image.Image, error) {
		return imaging.Load(path)
	})
}

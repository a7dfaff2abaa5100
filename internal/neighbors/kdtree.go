package neighbors

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// point is a reference row that remembers its position in the dataset, since
// tree construction reorders the slice.
type point struct {
	vec []float64
	idx int
}

// Compare returns the signed distance of p from the plane through c
// perpendicular to dimension d.
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	return p.vec[d] - q.vec[d]
}

func (p point) Dims() int { return len(p.vec) }

// Distance is the squared Euclidean distance, as kdtree expects.
func (p point) Distance(c kdtree.Comparable) float64 {
	return squaredDistance(p.vec, c.(point).vec)
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{Dim: d, points: p}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts points along one dimension for pivot selection.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool { return p.points[i].vec[p.Dim] < p.points[j].vec[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }

type kdTree struct {
	tree *kdtree.Tree
	n    int
	dims int
}

func newKDTree(rows [][]float64) *kdTree {
	pts := make(points, len(rows))
	for i, row := range rows {
		pts[i] = point{vec: row, idx: i}
	}
	return &kdTree{
		tree: kdtree.New(pts, false),
		n:    len(rows),
		dims: len(rows[0]),
	}
}

func (t *kdTree) Len() int   { return t.n }
func (t *kdTree) Dims() int  { return t.dims }
func (t *kdTree) Kind() Kind { return KindKDTree }

// Query runs two searches: the first finds the k-th distance, the second
// collects every row within it so rows tied at that distance are ranked by
// index, as in the linear scan.
func (t *kdTree) Query(q []float64, k int) ([]Neighbor, error) {
	k, err := checkQuery(t, q, k)
	if err != nil {
		return nil, err
	}
	query := point{vec: q, idx: -1}

	nearest := kdtree.NewNKeeper(k)
	t.tree.NearestSet(nearest, query)
	kth := 0.0
	for _, cd := range nearest.Heap {
		if _, ok := cd.Comparable.(point); ok {
			kth = math.Max(kth, cd.Dist)
		}
	}

	within := kdtree.NewDistKeeper(kth)
	t.tree.NearestSet(within, query)

	res := make([]Neighbor, 0, len(within.Heap))
	for _, cd := range within.Heap {
		p, ok := cd.Comparable.(point)
		if !ok {
			// sentinel holding the distance bound
			continue
		}
		res = append(res, Neighbor{Index: p.idx, Distance: math.Sqrt(cd.Dist)})
	}
	sortNeighbors(res)
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

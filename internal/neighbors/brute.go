package neighbors

// brute scans every row.
type brute struct {
	rows [][]float64
}

func newBrute(rows [][]float64) *brute {
	return &brute{rows: rows}
}

func (b *brute) Len() int   { return len(b.rows) }
func (b *brute) Dims() int  { return len(b.rows[0]) }
func (b *brute) Kind() Kind { return KindBrute }

func (b *brute) Query(q []float64, k int) ([]Neighbor, error) {
	k, err := checkQuery(b, q, k)
	if err != nil {
		return nil, err
	}

	all := make([]Neighbor, len(b.rows))
	for i, row := range b.rows {
		all[i] = Neighbor{Index: i, Distance: euclidean(q, row)}
	}
	sortNeighbors(all)
	return all[:k], nil
}

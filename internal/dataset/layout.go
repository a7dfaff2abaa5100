package dataset

import (
	"github.com/23skdu/aematch/internal/encoder"
)

// Role names the part of the feature vector a block fills.
type Role string

const (
	RoleAutoencoder Role = "autoencoder"
	RoleMask        Role = "ae_mask"
	RoleCTE         Role = "cte"
)

// Block is one encoder contributing a contiguous run of feature columns.
type Block struct {
	Role    Role
	Encoder encoder.Encoder
}

// Range is a half open column range [Start, End).
type Range struct {
	Role  Role
	Start int
	End   int
}

// Len returns the number of columns in the range.
func (r Range) Len() int { return r.End - r.Start }

// Layout describes the feature vector: the encoder blocks in order followed
// by a single CTE column. Optional encoders are simply absent blocks.
type Layout struct {
	blocks []Block
}

// NewLayout starts a layout with the primary autoencoder block.
func NewLayout(autoencoder encoder.Encoder) Layout {
	return Layout{blocks: []Block{{Role: RoleAutoencoder, Encoder: autoencoder}}}
}

// With returns a copy of the layout with an extra block appended before the
// CTE column.
func (l Layout) With(role Role, enc encoder.Encoder) Layout {
	blocks := make([]Block, len(l.blocks), len(l.blocks)+1)
	copy(blocks, l.blocks)
	return Layout{blocks: append(blocks, Block{Role: role, Encoder: enc})}
}

// Blocks returns the encoder blocks in column order.
func (l Layout) Blocks() []Block {
	return l.blocks
}

// Ranges returns the column range of every block, CTE last.
func (l Layout) Ranges() []Range {
	ranges := make([]Range, 0, len(l.blocks)+1)
	start := 0
	for _, b := range l.blocks {
		end := start + b.Encoder.LatentSize()
		ranges = append(ranges, Range{Role: b.Role, Start: start, End: end})
		start = end
	}
	return append(ranges, Range{Role: RoleCTE, Start: start, End: start + 1})
}

// Width is the total feature vector length: Z1 + Z2 + ... + 1.
func (l Layout) Width() int {
	w := 1
	for _, b := range l.blocks {
		w += b.Encoder.LatentSize()
	}
	return w
}

// CTEColumn is the index of the CTE column.
func (l Layout) CTEColumn() int {
	return l.Width() - 1
}

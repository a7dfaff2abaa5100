// Package visualize pages query/neighbor image rows through a renderer,
// one batch at a time, under keyboard control.
package visualize

import (
	"context"
	"errors"
	"image"
	"io"
	"math/rand"

	"github.com/rs/zerolog"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/imaging"
)

// DefaultBatchRows is the number of rows shown per grid.
const DefaultBatchRows = 5

// State of the paging loop.
type State int

const (
	Accumulating State = iota
	Rendering
	AwaitingInput
	Done
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Rendering:
		return "rendering"
	case AwaitingInput:
		return "awaiting_input"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// SampleIndices returns the first limit entries of a permutation of 0..n-1
// drawn from rng. The selection depends only on the state of rng.
func SampleIndices(rng *rand.Rand, n, limit int) []int {
	perm := rng.Perm(n)
	if limit < len(perm) {
		perm = perm[:max(limit, 0)]
	}
	return perm
}

// RowSource produces the composite image of row i.
type RowSource interface {
	Len() int
	Row(ctx context.Context, i int) (image.Image, error)
}

// Renderer displays a grid.
type Renderer interface {
	Render(ctx context.Context, grid image.Image) error
}

// KeySource blocks until the operator presses a key.
type KeySource interface {
	ReadKey() (byte, error)
}

// Result summarizes a session.
type Result struct {
	Rows    int
	Renders int
	// Stopped is set when the operator stopped before every row was shown.
	Stopped bool
}

// Session drives Source through Renderer in batches of BatchRows rows.
type Session struct {
	Source    RowSource
	Renderer  Renderer
	Keys      KeySource
	BatchRows int
	Logger    zerolog.Logger

	// OnState, when set, observes every state entered.
	OnState func(State)
}

// Run executes the loop until every row was shown or the operator stops.
// A trailing partial batch is shown as well.
func (s *Session) Run(ctx context.Context) (Result, error) {
	batchRows := s.BatchRows
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}

	var (
		res   Result
		batch []image.Image
		next  int
		total = s.Source.Len()
		state = Accumulating
	)

	for {
		if s.OnState != nil {
			s.OnState(state)
		}

		switch state {
		case Accumulating:
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if next >= total {
				if len(batch) == 0 {
					state = Done
				} else {
					state = Rendering
				}
				continue
			}

			row, err := s.Source.Row(ctx, next)
			if err != nil {
				return res, err
			}
			next++
			res.Rows++
			batch = append(batch, row)
			if len(batch) == batchRows {
				state = Rendering
			}

		case Rendering:
			if err := s.Renderer.Render(ctx, imaging.VStack(batch...)); err != nil {
				return res, err
			}
			res.Renders++
			s.Logger.Debug().Int("rows", len(batch)).Int("shown", next).Int("total", total).Msg("grid rendered")
			state = AwaitingInput

		case AwaitingInput:
			key, err := s.Keys.ReadKey()
			if errors.Is(err, io.EOF) {
				key, err = KeyEscape, nil
			}
			if err != nil {
				return res, aeerrors.WrapDisplayError(err, "await_input", "cannot read key")
			}

			batch = batch[:0]
			switch {
			case IsStop(key):
				res.Stopped = next < total
				state = Done
			case next >= total:
				state = Done
			default:
				state = Accumulating
			}

		case Done:
			return res, nil
		}
	}
}

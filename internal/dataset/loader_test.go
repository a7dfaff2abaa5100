package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/imaging/imagingtest"
)

// brightnessEncoder fills every latent element with the mean red level of
// the image, scaled by factor.
type brightnessEncoder struct {
	name   string
	size   int
	factor float64
	err    error
	short  bool
}

func (e *brightnessEncoder) Name() string    { return e.name }
func (e *brightnessEncoder) LatentSize() int { return e.size }

func (e *brightnessEncoder) Encode(img image.Image) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	n := e.size
	if e.short {
		n--
	}
	z := make([]float64, n)
	for i := range z {
		z[i] = float64(r>>8) / 255 * e.factor
	}
	return z, nil
}

// writeFolder creates n red-tinted JPEGs named 000..n-1 with cte = i/(n-1).
func writeFolder(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	yaml := ""
	for i := n - 1; i >= 0; i-- { // reverse order to check it is preserved
		name := fmt.Sprintf("%03d", i)
		require.NoError(t, imagingtest.WriteSolidJPEG(filepath.Join(dir, name+".jpg"), 8, 6,
			color.RGBA{R: uint8(40 * i), A: 255}))
		yaml += fmt.Sprintf("%q: {cte: %g}\n", name, float64(i)/float64(n-1))
	}
	writeFile(t, dir, "infos.yaml", yaml)
	return dir
}

func TestLayout(t *testing.T) {
	ae := &brightnessEncoder{name: "ae", size: 32}
	layout := NewLayout(ae)
	assert.Equal(t, 33, layout.Width())
	assert.Equal(t, 32, layout.CTEColumn())
	assert.Equal(t, []Range{
		{Role: RoleAutoencoder, Start: 0, End: 32},
		{Role: RoleCTE, Start: 32, End: 33},
	}, layout.Ranges())

	withMask := layout.With(RoleMask, &brightnessEncoder{name: "mask", size: 8})
	assert.Equal(t, 41, withMask.Width())
	assert.Equal(t, Range{Role: RoleMask, Start: 32, End: 40}, withMask.Ranges()[1])
	assert.Equal(t, 8, withMask.Ranges()[1].Len())
	// the original layout is untouched
	assert.Len(t, layout.Blocks(), 1)
}

func TestLoader_Load(t *testing.T) {
	dir := writeFolder(t, 5)
	loader := NewLoader(NewLayout(&brightnessEncoder{name: "ae", size: 32, factor: 1}), "", zerolog.Nop())

	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 33, ds.Width())
	rows, cols := ds.Features.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 33, cols)
	assert.Equal(t, []string{"004", "003", "002", "001", "000"}, ds.Names)

	for i, name := range ds.Names {
		row := ds.Row(i)
		var idx int
		_, err := fmt.Sscanf(name, "%d", &idx)
		require.NoError(t, err)
		assert.InDelta(t, float64(idx)/4, row[32], 1e-12, "cte of %s", name)
		assert.InDelta(t, float64(idx)/4, ds.CTE[i], 1e-12)
		assert.InDelta(t, float64(40*idx)/255, row[0], 0.03, "latent of %s", name)
	}
	assert.Equal(t, filepath.Join(dir, "004.jpg"), ds.ImagePath(0))
}

func TestLoader_WithMask(t *testing.T) {
	dir := writeFolder(t, 3)
	layout := NewLayout(&brightnessEncoder{name: "ae", size: 4, factor: 1}).
		With(RoleMask, &brightnessEncoder{name: "mask", size: 2, factor: -1})
	loader := NewLoader(layout, ".jpg", zerolog.Nop())

	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 7, ds.Width())

	row := ds.Row(0) // "002", red = 80
	assert.InDelta(t, 80.0/255, row[3], 0.03)
	assert.InDelta(t, -80.0/255, row[4], 0.03)
	assert.InDelta(t, -80.0/255, row[5], 0.03)
	assert.Equal(t, 1.0, row[6])
}

func TestLoader_LoadAll(t *testing.T) {
	a, b := writeFolder(t, 2), writeFolder(t, 4)
	loader := NewLoader(NewLayout(&brightnessEncoder{name: "ae", size: 3}), "", zerolog.Nop())

	datasets, err := loader.LoadAll(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, 2, datasets[0].Len())
	assert.Equal(t, 4, datasets[1].Len())
	assert.Equal(t, b, datasets[1].Folder)
}

func TestLoader_MissingImage(t *testing.T) {
	dir := writeFolder(t, 2)
	writeFile(t, dir, "infos.yaml", "\"000\": {cte: 0}\n\"999\": {cte: 1}\n")
	loader := NewLoader(NewLayout(&brightnessEncoder{name: "ae", size: 3}), "", zerolog.Nop())

	_, err := loader.Load(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, aeerrors.Is(err, aeerrors.ErrorTypeInput))
	assert.Contains(t, err.Error(), "cannot open image")
}

func TestLoader_EncoderFailure(t *testing.T) {
	dir := writeFolder(t, 2)
	boom := errors.New("boom")
	loader := NewLoader(NewLayout(&brightnessEncoder{name: "ae", size: 3, err: boom}), "", zerolog.Nop())

	_, err := loader.Load(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, aeerrors.Is(err, aeerrors.ErrorTypeEncoding))
	assert.ErrorIs(t, err, boom)
}

func TestLoader_LatentSizeMismatch(t *testing.T) {
	dir := writeFolder(t, 2)
	loader := NewLoader(NewLayout(&brightnessEncoder{name: "ae", size: 3, short: true}), "", zerolog.Nop())

	_, err := loader.Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latent size mismatch")
}

func TestLoader_Cancelled(t *testing.T) {
	dir := writeFolder(t, 2)
	loader := NewLoader(NewLayout(&brightnessEncoder{name: "ae", size: 3}), "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loader.Load(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

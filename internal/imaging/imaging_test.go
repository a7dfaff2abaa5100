package imaging

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/imaging/imagingtest"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001.jpg")
	require.NoError(t, imagingtest.WriteSolidJPEG(path, 16, 8, color.RGBA{R: 200, A: 255}))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	r, g, _, _ := img.At(4, 4).RGBA()
	assert.InDelta(t, 200, r>>8, 6)
	assert.Less(t, g>>8, uint32(20))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	assert.True(t, aeerrors.Is(err, aeerrors.ErrorTypeInput))
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, aeerrors.Is(err, aeerrors.ErrorTypeInput))
	assert.Contains(t, err.Error(), "cannot decode image")
}

func TestResize(t *testing.T) {
	out := Resize(solid(40, 30, color.White), 8, 6)
	assert.Equal(t, image.Rect(0, 0, 8, 6), out.Bounds())

	r, g, b, _ := out.At(3, 3).RGBA()
	assert.InDelta(t, 0xffff, r, 0x101)
	assert.InDelta(t, 0xffff, g, 0x101)
	assert.InDelta(t, 0xffff, b, 0x101)
}

func TestHStack(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	out := HStack(solid(4, 2, red), solid(3, 5, blue))
	assert.Equal(t, image.Rect(0, 0, 7, 5), out.Bounds())
	assert.Equal(t, red, out.RGBAAt(0, 0))
	assert.Equal(t, blue, out.RGBAAt(4, 4))
	// below the shorter image stays empty
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 4))
}

func TestVStack(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}

	out := VStack(solid(4, 2, red), solid(6, 3, green))
	assert.Equal(t, image.Rect(0, 0, 6, 5), out.Bounds())
	assert.Equal(t, red, out.RGBAAt(3, 1))
	assert.Equal(t, green, out.RGBAAt(5, 4))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(5, 0))
}

func TestStack_OffsetBounds(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}
	src := solid(10, 10, green).(*image.RGBA).SubImage(image.Rect(5, 5, 8, 7))

	out := HStack(src)
	assert.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds())
	assert.Equal(t, green, out.RGBAAt(0, 0))
}

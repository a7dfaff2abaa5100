// Package imaging decodes sample images and composes them into grids.
package imaging

import (
	"image"
	_ "image/jpeg" // registers JPEG, the default sample format
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	aeerrors "github.com/23skdu/aematch/internal/errors"
)

// Load decodes the image file at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "load_image", "cannot open image").
			WithContext("path", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "load_image", "cannot decode image").
			WithContext("path", path)
	}
	return img, nil
}

// Resize scales img to exactly w x h pixels using bilinear interpolation.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// HStack places images left to right, top aligned. The canvas is as tall as
// the tallest image; uncovered pixels stay transparent black.
func HStack(imgs ...image.Image) *image.RGBA {
	width, height := 0, 0
	for _, img := range imgs {
		b := img.Bounds()
		width += b.Dx()
		height = max(height, b.Dy())
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	x := 0
	for _, img := range imgs {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(x, 0, x+b.Dx(), b.Dy()), img, b.Min, draw.Src)
		x += b.Dx()
	}
	return canvas
}

// VStack places images top to bottom, left aligned.
func VStack(imgs ...image.Image) *image.RGBA {
	width, height := 0, 0
	for _, img := range imgs {
		b := img.Bounds()
		height += b.Dy()
		width = max(width, b.Dx())
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, img := range imgs {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
		y += b.Dy()
	}
	return canvas
}

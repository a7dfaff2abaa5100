// Package imagingtest writes image fixtures for tests.
package imagingtest

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
)

// WriteSolidJPEG writes a w x h JPEG filled with c.
func WriteSolidJPEG(path string, w, h int, c color.Color) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

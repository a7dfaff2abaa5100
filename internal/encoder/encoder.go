// Package encoder provides the image → latent vector capability consumed by
// the dataset loader.
package encoder

import (
	"image"
)

// Encoder maps a raw image onto a fixed-length latent vector.
type Encoder interface {
	// Encode returns a latent vector of exactly LatentSize elements.
	Encode(img image.Image) ([]float64, error)
	// LatentSize is the length of every vector returned by Encode.
	LatentSize() int
	// Name identifies the encoder in logs and metrics.
	Name() string
}

package encoder

import (
	"image"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/imaging"
)

// Linear projects a preprocessed image onto its latent space: z = W·x + b.
//
// x is the image resized to InputWidth × InputHeight, reduced to Channels
// (1 = luma, 3 = RGB), scaled to [0,1] and flattened row-major with channels
// interleaved.
type Linear struct {
	name     string
	width    int
	height   int
	channels int
	weights  *mat.Dense // LatentSize × InputDim
	bias     *mat.VecDense
}

// NewLinear builds a linear encoder. weights holds one row of length
// width*height*channels per latent dimension; bias may be nil.
func NewLinear(name string, width, height, channels int, weights [][]float64, bias []float64) (*Linear, error) {
	if width <= 0 || height <= 0 {
		return nil, aeerrors.NewEncodingError("new_linear", "input size must be positive").
			WithContext("width", width).WithContext("height", height)
	}
	if channels != 1 && channels != 3 {
		return nil, aeerrors.NewEncodingError("new_linear", "channels must be 1 or 3").
			WithContext("channels", channels)
	}
	if len(weights) == 0 {
		return nil, aeerrors.NewEncodingError("new_linear", "encoder has no latent dimensions")
	}
	if bias != nil && len(bias) != len(weights) {
		return nil, aeerrors.NewEncodingError("new_linear", "bias length does not match latent size").
			WithContext("bias", len(bias)).WithContext("latent", len(weights))
	}

	dim := width * height * channels
	data := make([]float64, 0, len(weights)*dim)
	for i, row := range weights {
		if len(row) != dim {
			return nil, aeerrors.NewEncodingError("new_linear", "weight row width does not match input size").
				WithContext("row", i).WithContext("got", len(row)).WithContext("want", dim)
		}
		data = append(data, row...)
	}

	b := make([]float64, len(weights))
	copy(b, bias)

	return &Linear{
		name:     name,
		width:    width,
		height:   height,
		channels: channels,
		weights:  mat.NewDense(len(weights), dim, data),
		bias:     mat.NewVecDense(len(b), b),
	}, nil
}

// NewRandomLinear builds a random projection encoder with Gaussian weights
// scaled by 1/sqrt(InputDim) and zero bias. The result only depends on rng.
func NewRandomLinear(rng *rand.Rand, name string, latent, width, height, channels int) (*Linear, error) {
	dim := width * height * channels
	if latent <= 0 || dim <= 0 {
		return nil, aeerrors.NewEncodingError("new_random_linear", "latent and input sizes must be positive").
			WithContext("latent", latent).WithContext("input_dim", dim)
	}

	scale := 1 / math.Sqrt(float64(dim))
	weights := make([][]float64, latent)
	for i := range weights {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64() * scale
		}
		weights[i] = row
	}
	return NewLinear(name, width, height, channels, weights, nil)
}

// Name implements Encoder.
func (l *Linear) Name() string { return l.name }

// LatentSize implements Encoder.
func (l *Linear) LatentSize() int {
	r, _ := l.weights.Dims()
	return r
}

// InputSize returns the preprocessing geometry.
func (l *Linear) InputSize() (width, height, channels int) {
	return l.width, l.height, l.channels
}

// InputDim is the length of the flattened preprocessed image.
func (l *Linear) InputDim() int {
	return l.width * l.height * l.channels
}

// Row returns a copy of the weights of latent dimension i.
func (l *Linear) Row(i int) []float64 {
	return mat.Row(nil, i, l.weights)
}

// Bias returns a copy of the bias vector.
func (l *Linear) Bias() []float64 {
	out := make([]float64, l.bias.Len())
	copy(out, l.bias.RawVector().Data)
	return out
}

// Encode implements Encoder.
func (l *Linear) Encode(img image.Image) ([]float64, error) {
	if img == nil {
		return nil, aeerrors.NewEncodingError("encode", "nil image").WithContext("encoder", l.name)
	}
	if img.Bounds().Empty() {
		return nil, aeerrors.NewEncodingError("encode", "empty image").WithContext("encoder", l.name)
	}

	x := mat.NewVecDense(l.InputDim(), l.preprocess(img))
	z := mat.NewVecDense(l.LatentSize(), nil)
	z.MulVec(l.weights, x)
	z.AddVec(z, l.bias)

	out := make([]float64, z.Len())
	copy(out, z.RawVector().Data)
	return out, nil
}

func (l *Linear) preprocess(img image.Image) []float64 {
	resized := imaging.Resize(img, l.width, l.height)
	out := make([]float64, 0, l.InputDim())
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			c := resized.RGBAAt(x, y)
			r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
			if l.channels == 1 {
				out = append(out, 0.299*r+0.587*g+0.114*b)
				continue
			}
			out = append(out, r, g, b)
		}
	}
	return out
}

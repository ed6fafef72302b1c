// Package imaging prepares photographed bills for text recognition.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"
)

// DefaultTargetWidth is the length the longer side of a bill is scaled to
const DefaultTargetWidth = 2000

const (
	sharpenSigma   = 1.5
	contrastGain   = 1.2
	binaryCutoff   = 128
	normalizeLowQ  = 0.01
	normalizeHighQ = 0.99
)

// Normalizer converts photographs into high-contrast black and white PNGs that
// OCR engines read reliably
type Normalizer struct {
	targetWidth int
}

// NewNormalizer creates a Normalizer. A non-positive width selects
// DefaultTargetWidth.
func NewNormalizer(targetWidth int) *Normalizer {
	if targetWidth <= 0 {
		targetWidth = DefaultTargetWidth
	}
	return &Normalizer{targetWidth: targetWidth}
}

// Normalize never fails: if any step cannot process the input, the original
// bytes are returned unchanged so recognition can still be attempted.
func (n *Normalizer) Normalize(data []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Image normalization panicked, using original image", "panic", r, "size", len(data))
			out = data
		}
	}()

	normalized, err := n.normalize(data)
	if err != nil {
		slog.Warn("Image normalization failed, using original image", "error", err, "size", len(data))
		return data
	}
	return normalized
}

func (n *Normalizer) normalize(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	var (
		gray = imaging.Grayscale(img)
		b    = gray.Bounds()
	)
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// Scale the longer side to the target, upscaling small photos so
	// characters get enough pixels
	if b.Dx() >= b.Dy() {
		gray = imaging.Resize(gray, n.targetWidth, 0, imaging.Lanczos)
	} else {
		gray = imaging.Resize(gray, 0, n.targetWidth, imaging.Lanczos)
	}

	gray = stretchHistogram(gray)
	gray = imaging.Sharpen(gray, sharpenSigma)
	gray = imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		v := clamp(contrastGain*float64(c.R) - binaryCutoff*contrastGain + binaryCutoff)
		if v >= binaryCutoff {
			v = 255
		} else {
			v = 0
		}
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, median3(gray), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// stretchHistogram maps the 1st..99th percentile of luminance onto 0..255
func stretchHistogram(img *image.NRGBA) *image.NRGBA {
	var hist [256]int
	total := 0
	for i := 0; i < len(img.Pix); i += 4 {
		hist[img.Pix[i]]++
		total++
	}

	lo, hi := percentile(hist, total, normalizeLowQ), percentile(hist, total, normalizeHighQ)
	if hi <= lo {
		return img
	}
	scale := 255 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := clamp(float64(int(c.R)-lo) * scale)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func percentile(hist [256]int, total int, q float64) int {
	target := int(q * float64(total))
	seen := 0
	for v, count := range hist {
		seen += count
		if seen > target {
			return v
		}
	}
	return 255
}

// median3 applies a 3x3 median filter, removing isolated speckles left by
// binarization. Edge pixels use the clamped neighbourhood.
func median3(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	at := func(x, y int) uint8 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return img.Pix[y*img.Stride+x*4]
	}

	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[k] = at(x+dx, y+dy)
					k++
				}
			}
			out.Pix[y*out.Stride+x] = medianOf9(window)
		}
	}
	return out
}

func medianOf9(w [9]uint8) uint8 {
	// Insertion sort: nine elements, called once per pixel
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j-1] > w[j]; j-- {
			w[j-1], w[j] = w[j], w[j-1]
		}
	}
	return w[4]
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// ABOUTME: Local colour-histogram embedder that needs no model or network
// ABOUTME: Global plus per-quadrant RGB histograms, deterministic and non-negative
package embed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/harper/artmatch/internal/models"
)

const (
	binsPerChannel = 4
	binsPerRegion  = binsPerChannel * binsPerChannel * binsPerChannel
	// global histogram followed by the four quadrants
	histogramRegions = 5
	// HistogramDimension is the length of vectors from HistogramEmbedder
	HistogramDimension = binsPerRegion * histogramRegions
	// maxSamplesPerAxis bounds the work done on large photos
	maxSamplesPerAxis = 256
)

// HistogramEmbedder embeds images as normalized colour histograms
type HistogramEmbedder struct{}

// NewHistogramEmbedder creates a HistogramEmbedder
func NewHistogramEmbedder() *HistogramEmbedder {
	return &HistogramEmbedder{}
}

// Model implements Embedder
func (h *HistogramEmbedder) Model() string {
	return "histogram-rgb444-q2"
}

// Dimension implements Embedder
func (h *HistogramEmbedder) Dimension() int {
	return HistogramDimension
}

// Embed implements Embedder
func (h *HistogramEmbedder) Embed(ctx context.Context, data []byte) (models.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return HistogramOf(img)
}

// HistogramOf computes the feature vector for a decoded image
func HistogramOf(img image.Image) (models.FeatureVector, error) {
	b := img.Bounds()
	w, hgt := b.Dx(), b.Dy()
	if w == 0 || hgt == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	stepX := max(1, w/maxSamplesPerAxis)
	stepY := max(1, hgt/maxSamplesPerAxis)
	midX := b.Min.X + w/2
	midY := b.Min.Y + hgt/2

	vec := make(models.FeatureVector, HistogramDimension)
	var counts [histogramRegions]float64

	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			bin := colourBin(r, g, bl)

			quadrant := 1
			if x >= midX {
				quadrant++
			}
			if y >= midY {
				quadrant += 2
			}

			vec[bin]++
			vec[quadrant*binsPerRegion+bin]++
			counts[0]++
			counts[quadrant]++
		}
	}

	for region := 0; region < histogramRegions; region++ {
		if counts[region] == 0 {
			continue
		}
		off := region * binsPerRegion
		for i := off; i < off+binsPerRegion; i++ {
			vec[i] /= counts[region]
		}
	}

	return vec, nil
}

// colourBin maps 16-bit RGBA channels to a joint bin index
func colourBin(r, g, b uint32) int {
	const shift = 16 - 2 // 4 bins = top 2 bits of each 16-bit channel
	return int(r>>shift)*binsPerChannel*binsPerChannel + int(g>>shift)*binsPerChannel + int(b>>shift)
}

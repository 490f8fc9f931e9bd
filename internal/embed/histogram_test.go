// ABOUTME: Tests for the colour-histogram embedder
// ABOUTME: Builds images in memory and checks vector shape and similarity behaviour
package embed

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/harper/artmatch/internal/matcher"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// split paints the left half with left and the right half with right
func split(w, h int, left, right color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestHistogramEmbedderDimension(t *testing.T) {
	h := NewHistogramEmbedder()
	if h.Dimension() != 320 {
		t.Errorf("expected dimension 320, got %d", h.Dimension())
	}

	vec, err := h.Embed(context.Background(), encodePNG(t, solid(8, 8, red)))
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != h.Dimension() {
		t.Errorf("expected %d values, got %d", h.Dimension(), len(vec))
	}
	for i, v := range vec {
		if v < 0 {
			t.Fatalf("value %d is negative: %f", i, v)
		}
	}
}

func TestHistogramRegionsSumToOne(t *testing.T) {
	vec, err := HistogramOf(split(10, 6, red, blue))
	if err != nil {
		t.Fatalf("HistogramOf failed: %v", err)
	}

	for region := 0; region < histogramRegions; region++ {
		var sum float64
		for _, v := range vec[region*binsPerRegion : (region+1)*binsPerRegion] {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("region %d sums to %f, expected 1", region, sum)
		}
	}
}

func TestHistogramSimilarity(t *testing.T) {
	ctx := context.Background()
	h := NewHistogramEmbedder()

	embed := func(img image.Image) []float64 {
		vec, err := h.Embed(ctx, encodePNG(t, img))
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		return vec
	}

	tests := []struct {
		name    string
		a, b    image.Image
		minimum float64
		maximum float64
	}{
		{"same colour different size", solid(8, 8, red), solid(20, 12, red), 1 - 1e-9, 1},
		{"disjoint colours", solid(8, 8, red), solid(8, 8, blue), 0, 1e-9},
		{"mirrored layout", split(8, 8, red, blue), split(8, 8, blue, red), 0, 0.5},
		{"identical layout", split(8, 8, red, blue), split(8, 8, red, blue), 1 - 1e-9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := matcher.CosineSimilarity(embed(tt.a), embed(tt.b))
			if err != nil {
				t.Fatalf("CosineSimilarity failed: %v", err)
			}
			if score < tt.minimum || score > tt.maximum {
				t.Errorf("score %f outside [%f, %f]", score, tt.minimum, tt.maximum)
			}
		})
	}
}

func TestHistogramDecodesJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(16, 16, blue), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}

	h := NewHistogramEmbedder()
	vec, err := h.Embed(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	blueOnly, _ := HistogramOf(solid(16, 16, blue))
	score, err := matcher.CosineSimilarity(vec, blueOnly)
	if err != nil {
		t.Fatalf("CosineSimilarity failed: %v", err)
	}
	if score < 0.99 {
		t.Errorf("expected near-identical score for re-encoded image, got %f", score)
	}
}

func TestHistogramRejectsBadInput(t *testing.T) {
	h := NewHistogramEmbedder()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, solid(4, 4, red))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Embed(context.Background(), tt.data)
			if !errors.Is(err, ErrUnsupportedImage) {
				t.Errorf("expected ErrUnsupportedImage, got %v", err)
			}
		})
	}

	if _, err := HistogramOf(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage for empty image, got %v", err)
	}
}

func TestHistogramHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHistogramEmbedder().Embed(ctx, encodePNG(t, solid(4, 4, red)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHistogramDeterministic(t *testing.T) {
	data := encodePNG(t, split(33, 17, red, blue))
	h := NewHistogramEmbedder()

	a, err := h.Embed(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Embed(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("value %d differs between runs: %f vs %f", i, a[i], b[i])
		}
	}
}

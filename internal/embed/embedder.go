// ABOUTME: Image embedding interface and constructor from configuration
// ABOUTME: Turns raw image bytes into feature vectors for matching
package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/config"
	"github.com/harper/artmatch/internal/models"
)

// ErrUnsupportedImage is returned when the bytes cannot be decoded as an image
var ErrUnsupportedImage = errors.New("unsupported image")

// Embedder generates feature vectors from encoded images.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns a feature vector for the encoded image.
	Embed(ctx context.Context, image []byte) (models.FeatureVector, error)

	// Dimension returns the length of produced vectors, 0 if not known up front.
	Dimension() int

	// Model identifies the embedding so reference sets from different
	// embedders are never compared.
	Model() string
}

// New builds the embedder selected by cfg.Embedder
func New(cfg *config.Config, log zerolog.Logger) (Embedder, error) {
	switch cfg.Embedder {
	case config.EmbedderHistogram, "":
		return NewHistogramEmbedder(), nil
	case config.EmbedderOpenAI:
		return NewOpenAIEmbedder(&OpenAIConfig{
			APIKey:         cfg.OpenAIKey,
			VisionModel:    cfg.VisionModel,
			EmbeddingModel: cfg.EmbeddingModel,
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			Timeout:        cfg.HTTPTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

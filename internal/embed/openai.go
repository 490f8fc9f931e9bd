// ABOUTME: OpenAI-backed embedder: vision caption followed by a text embedding
// ABOUTME: Uses gpt-4o-mini to describe the artwork and text-embedding-3-small to embed it (configurable)
package embed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/util"
)

const (
	// DefaultVisionModel describes images
	DefaultVisionModel = "gpt-4o-mini"
	// DefaultEmbeddingModel embeds the descriptions
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

const describePrompt = `Describe this artwork for identification. Cover the subject, composition, ` +
	`dominant colours, medium and style. Ignore the frame, wall, lighting and any people ` +
	`in front of the piece. Answer in one dense paragraph with no preamble.`

var knownDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// OpenAIConfig holds configuration for the OpenAI embedder
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	VisionModel    string
	EmbeddingModel string
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
}

// OpenAIEmbedder wraps the OpenAI API client with retry logic
type OpenAIEmbedder struct {
	client         *openai.Client
	visionModel    string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	log            zerolog.Logger
}

// NewOpenAIEmbedder creates an embedder from cfg; missing models fall back to defaults
func NewOpenAIEmbedder(cfg *OpenAIConfig, log zerolog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	e := &OpenAIEmbedder{
		client:         openai.NewClientWithConfig(clientCfg),
		visionModel:    cfg.VisionModel,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		timeout:        cfg.Timeout,
		log:            log,
	}
	if e.visionModel == "" {
		e.visionModel = DefaultVisionModel
	}
	if e.embeddingModel == "" {
		e.embeddingModel = DefaultEmbeddingModel
	}
	if e.timeout <= 0 {
		e.timeout = 60 * time.Second
	}
	return e, nil
}

// Model implements Embedder
func (e *OpenAIEmbedder) Model() string {
	return "openai:" + e.visionModel + "+" + e.embeddingModel
}

// Dimension implements Embedder
func (e *OpenAIEmbedder) Dimension() int {
	return knownDimensions[e.embeddingModel]
}

// Embed implements Embedder
func (e *OpenAIEmbedder) Embed(ctx context.Context, image []byte) (models.FeatureVector, error) {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedImage, mime)
	}

	description, err := e.Describe(ctx, image, mime)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("description", description).Msg("described image")

	return e.EmbedText(ctx, description)
}

// Describe asks the vision model for a textual description of the image
func (e *OpenAIEmbedder) Describe(ctx context.Context, image []byte, mime string) (string, error) {
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	var description string
	err := util.Retry(ctx, e.maxRetries, e.retryDelay, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.visionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: describePrompt},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailLow,
							},
						},
					},
				},
			},
			Temperature: 0,
		})
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion returned")
		}
		description = strings.TrimSpace(resp.Choices[0].Message.Content)
		if description == "" {
			return fmt.Errorf("empty description returned")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("describing image: %w", err)
	}
	return description, nil
}

// EmbedText embeds a description with the configured embedding model
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) (models.FeatureVector, error) {
	var vec models.FeatureVector
	err := util.Retry(ctx, e.maxRetries, e.retryDelay, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.embeddingModel),
		})
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("no embeddings returned")
		}

		// Convert []float32 to []float64
		embedding32 := resp.Data[0].Embedding
		vec = make(models.FeatureVector, len(embedding32))
		for i, v := range embedding32 {
			vec[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	return vec, nil
}

// classifyAPIError stops retrying on client errors other than rate limits
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
			apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return util.Permanent(err)
		}
	}
	return err
}

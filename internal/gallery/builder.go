// ABOUTME: Builds the reference set from the gallery catalog
// ABOUTME: Downloads and embeds every artwork image in parallel, then swaps the stored set
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/harper/artmatch/internal/catalog"
	"github.com/harper/artmatch/internal/embed"
	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/storage"
)

// ErrNothingEmbedded is returned when no catalog image could be embedded
var ErrNothingEmbedded = errors.New("no reference images could be embedded")

// Catalog is the part of the catalog client the builder needs
type Catalog interface {
	ListArtworks(ctx context.Context) ([]models.Artwork, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

var _ Catalog = (*catalog.Client)(nil)

// BuildReport summarizes one build
type BuildReport struct {
	Model    string        `json:"model" yaml:"model"`
	Artworks int           `json:"artworks" yaml:"artworks"`
	Images   int           `json:"images" yaml:"images"`
	Embedded int           `json:"embedded" yaml:"embedded"`
	Failed   int           `json:"failed" yaml:"failed"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Builder turns catalog artworks into a stored reference set
type Builder struct {
	catalog     Catalog
	embedder    embed.Embedder
	store       storage.ReferenceStore
	concurrency int
	log         zerolog.Logger
	progress    func(done, total int)
}

// Option configures a Builder
type Option func(*Builder)

// WithConcurrency bounds the number of images processed at once
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// WithProgress registers a callback invoked after each image, from worker goroutines
func WithProgress(fn func(done, total int)) Option {
	return func(b *Builder) { b.progress = fn }
}

// NewBuilder creates a Builder
func NewBuilder(c Catalog, e embed.Embedder, s storage.ReferenceStore, opts ...Option) *Builder {
	b := &Builder{
		catalog:     c,
		embedder:    e,
		store:       s,
		concurrency: 4,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type job struct {
	artwork *models.Artwork
	url     string
}

// Build fetches the catalog, embeds every image and replaces the stored set
// for the embedder's model. Individual image failures are counted, not fatal.
// If ctx ends or nothing could be embedded, the stored set is left untouched.
func (b *Builder) Build(ctx context.Context) (*BuildReport, error) {
	start := time.Now()
	report := &BuildReport{Model: b.embedder.Model()}

	artworks, err := b.catalog.ListArtworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	report.Artworks = len(artworks)

	var jobs []job
	for i := range artworks {
		art := &artworks[i]
		if art.Label() == "" {
			b.log.Warn().Str("artwork_id", art.ID).Msg("skipping artwork without slug or title")
			continue
		}
		if len(art.Images) == 0 {
			b.log.Debug().Str("artwork", art.Label()).Msg("artwork has no images")
			continue
		}
		for _, img := range art.Images {
			jobs = append(jobs, job{artwork: art, url: img.URL})
		}
	}
	report.Images = len(jobs)
	if len(jobs) == 0 {
		return report, fmt.Errorf("%w: catalog has no artwork images", ErrNothingEmbedded)
	}

	b.log.Info().
		Int("artworks", report.Artworks).
		Int("images", report.Images).
		Str("model", report.Model).
		Msg("building reference set")

	results := make([]*models.ReferenceEntry, len(jobs))
	var done, failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			vec, err := b.embedOne(gctx, j.url)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				b.log.Warn().Err(err).Str("artwork", j.artwork.Label()).Str("url", j.url).Msg("failed to embed reference image")
			} else {
				results[i] = &models.ReferenceEntry{
					ID:        uuid.New().String(),
					Label:     j.artwork.Label(),
					ArtworkID: j.artwork.ID,
					Slug:      j.artwork.Slug,
					ImageURL:  j.url,
					Model:     report.Model,
					Vector:    vec,
					CreatedAt: time.Now().UTC(),
				}
			}

			if b.progress != nil {
				b.progress(int(done.Add(1)), len(jobs))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build cancelled, keeping previous references: %w", err)
	}

	entries := make([]models.ReferenceEntry, 0, len(jobs))
	for _, r := range results {
		if r == nil {
			continue
		}
		r.Position = len(entries)
		entries = append(entries, *r)
	}
	report.Embedded = len(entries)
	report.Failed = int(failed.Load())
	report.Duration = time.Since(start)

	if len(entries) == 0 {
		return report, fmt.Errorf("%w: all %d images failed", ErrNothingEmbedded, report.Images)
	}

	if err := b.store.ReplaceReferences(ctx, report.Model, entries); err != nil {
		return report, fmt.Errorf("failed to store references: %w", err)
	}

	b.log.Info().
		Int("embedded", report.Embedded).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("reference set stored")

	return report, nil
}

func (b *Builder) embedOne(ctx context.Context, url string) (models.FeatureVector, error) {
	data, err := b.catalog.DownloadImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	vec, err := b.embedder.Embed(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

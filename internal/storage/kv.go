// ABOUTME: Reference store on a key-value backend such as Charm KV
// ABOUTME: Writes each rebuild under a new generation and flips a manifest to publish it
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/charm"
	"github.com/harper/artmatch/internal/models"
)

// KV is the subset of charm.Client the reference store needs.
// GetJSON must wrap charm.ErrKeyNotFound for missing keys.
type KV interface {
	SetJSON(key string, value any) error
	GetJSON(key string, dest any) error
	ListKeys(prefix string) ([]string, error)
	Delete(key string) error
}

var _ KV = (*charm.Client)(nil)

// manifest is stored under charm.ReferenceMetaKey and names the live generation
type manifest struct {
	Model      string    `json:"model"`
	Generation string    `json:"generation"`
	Entries    int       `json:"entries"`
	Artworks   int       `json:"artworks"`
	Dimension  int       `json:"dimension"`
	BuiltAt    time.Time `json:"built_at"`
}

// KVReferenceStore manages reference sets in a KV backend
type KVReferenceStore struct {
	kv  KV
	log zerolog.Logger
}

// KVOption configures a KVReferenceStore
type KVOption func(*KVReferenceStore)

// WithKVLogger sets the logger used for cleanup warnings
func WithKVLogger(log zerolog.Logger) KVOption {
	return func(s *KVReferenceStore) { s.log = log }
}

// NewKVReferenceStore creates a new KVReferenceStore
func NewKVReferenceStore(kv KV, opts ...KVOption) *KVReferenceStore {
	s := &KVReferenceStore{kv: kv, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceReferences writes entries under a fresh generation, publishes it,
// then removes every older generation of the model
func (s *KVReferenceStore) ReplaceReferences(ctx context.Context, model string, entries []models.ReferenceEntry) error {
	if model == "" {
		return fmt.Errorf("model is required")
	}
	if len(entries) == 0 {
		return fmt.Errorf("refusing to store an empty reference set for %s", model)
	}

	dim := len(entries[0].Vector)
	artworks := make(map[string]struct{})
	for i, e := range entries {
		if err := e.Vector.ValidateDimension(dim); err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, e.Label, err)
		}
		if e.Label == "" {
			return fmt.Errorf("entry %d has no label", i)
		}
		if e.ArtworkID != "" {
			artworks[e.ArtworkID] = struct{}{}
		} else {
			artworks[e.Label] = struct{}{}
		}
	}

	generation := uuid.New().String()
	now := time.Now().UTC()

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			s.dropGeneration(model, generation)
			return err
		}
		e.Model = model
		e.Position = i
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s:%d", model, i)
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if err := s.kv.SetJSON(charm.ReferenceKey(model, generation, i), e); err != nil {
			s.dropGeneration(model, generation)
			return fmt.Errorf("failed to store reference %q: %w", e.Label, err)
		}
	}

	m := manifest{
		Model:      model,
		Generation: generation,
		Entries:    len(entries),
		Artworks:   len(artworks),
		Dimension:  dim,
		BuiltAt:    now,
	}
	if err := s.kv.SetJSON(charm.ReferenceMetaKey(model), m); err != nil {
		s.dropGeneration(model, generation)
		return fmt.Errorf("failed to publish reference set: %w", err)
	}

	// Older generations are no longer named by the manifest
	s.deleteEntries(model, func(gen string) bool { return gen != generation })
	return nil
}

// Snapshot returns the live generation of model ordered by position
func (s *KVReferenceStore) Snapshot(ctx context.Context, model string) ([]models.ReferenceEntry, error) {
	m, err := s.manifest(model)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ReferenceEntry, 0, m.Entries)
	for i := 0; i < m.Entries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e models.ReferenceEntry
		if err := s.kv.GetJSON(charm.ReferenceKey(model, m.Generation, i), &e); err != nil {
			return nil, fmt.Errorf("reference %d of %s: %w", i, model, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stats returns one summary per model with a published manifest
func (s *KVReferenceStore) Stats(ctx context.Context) ([]models.ReferenceStats, error) {
	keys, err := s.kv.ListKeys(charm.ReferenceMetaPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	sort.Strings(keys)

	var stats []models.ReferenceStats
	for _, key := range keys {
		var m manifest
		if err := s.kv.GetJSON(key, &m); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		stats = append(stats, models.ReferenceStats{
			Model:     m.Model,
			Entries:   m.Entries,
			Artworks:  m.Artworks,
			Dimension: m.Dimension,
			BuiltAt:   m.BuiltAt,
		})
	}
	return stats, nil
}

// Close closes the backend when it supports closing
func (s *KVReferenceStore) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *KVReferenceStore) manifest(model string) (*manifest, error) {
	var m manifest
	if err := s.kv.GetJSON(charm.ReferenceMetaKey(model), &m); err != nil {
		if errors.Is(err, charm.ErrKeyNotFound) {
			return nil, ErrNoReferences
		}
		return nil, fmt.Errorf("failed to read manifest for %s: %w", model, err)
	}
	if m.Entries == 0 {
		return nil, ErrNoReferences
	}
	return &m, nil
}

// dropGeneration removes a partially written generation
func (s *KVReferenceStore) dropGeneration(model, generation string) {
	s.deleteEntries(model, func(gen string) bool { return gen == generation })
}

// deleteEntries removes the entry keys of model whose generation matches.
// Keys are parsed exactly so models sharing a name prefix are left alone.
func (s *KVReferenceStore) deleteEntries(model string, match func(generation string) bool) {
	keys, err := s.kv.ListKeys(charm.ReferenceModelPrefix(model))
	if err != nil {
		s.log.Warn().Err(err).Str("model", model).Msg("failed to list reference keys for cleanup")
		return
	}

	deleted, failed := 0, 0
	for _, key := range keys {
		gen, _, ok := charm.ParseReferenceKey(model, key)
		if !ok || !match(gen) {
			continue
		}
		if err := s.kv.Delete(key); err != nil {
			failed++
			s.log.Warn().Err(err).Str("key", key).Msg("failed to delete reference key")
			continue
		}
		deleted++
	}
	s.log.Debug().Str("model", model).Int("deleted", deleted).Int("failed", failed).Msg("cleaned up reference keys")
}

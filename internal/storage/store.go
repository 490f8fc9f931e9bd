// ABOUTME: Reference store abstraction shared by the builder, scanner and CLI
// ABOUTME: Opens the SQLite or Charm KV backend selected in configuration
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/charm"
	"github.com/harper/artmatch/internal/config"
	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/storage/sqlite"
)

// ErrNoReferences is returned by Snapshot when no set has been built for a model
var ErrNoReferences = sqlite.ErrEmptySet

// ReferenceStore persists reference sets, one per embedding model
type ReferenceStore interface {
	// ReplaceReferences swaps the whole set for model. On error the previous set is kept.
	ReplaceReferences(ctx context.Context, model string, entries []models.ReferenceEntry) error
	// Snapshot returns a copy of the set ordered by position.
	Snapshot(ctx context.Context, model string) ([]models.ReferenceEntry, error)
	Stats(ctx context.Context) ([]models.ReferenceStats, error)
	Close() error
}

var (
	_ ReferenceStore = (*sqlite.ReferenceStore)(nil)
	_ ReferenceStore = (*KVReferenceStore)(nil)
)

// Open returns the backend named by cfg.Store
func Open(cfg *config.Config, log zerolog.Logger) (ReferenceStore, error) {
	switch cfg.Store {
	case config.StoreSQLite, "":
		log.Debug().Str("path", cfg.DBPath).Msg("opening sqlite reference store")
		store, err := sqlite.OpenReferenceStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open reference store: %w", err)
		}
		return store, nil

	case config.StoreCharm:
		log.Debug().Str("host", cfg.CharmHost).Str("db", cfg.CharmDBName).Msg("opening charm reference store")
		client, err := charm.NewClient(charm.ConfigFrom(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Charm: %w", err)
		}
		return NewKVReferenceStore(client, WithKVLogger(log)), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// ABOUTME: Reference vector persistence for SQLite
// ABOUTME: Stores vectors as BLOBs and swaps whole reference sets per model in one transaction
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/harper/artmatch/internal/models"
)

// ErrEmptySet is returned by Snapshot when a model has no stored references
var ErrEmptySet = errors.New("no references stored for model")

// ErrCorruptVector is returned when a stored vector cannot be decoded
var ErrCorruptVector = errors.New("corrupt vector")

// ReferenceStore handles reference set persistence
type ReferenceStore struct {
	db *DB
}

// NewReferenceStore creates a new ReferenceStore
func NewReferenceStore(db *DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

// OpenReferenceStore opens the database at path and wraps it in a ReferenceStore
func OpenReferenceStore(path string) (*ReferenceStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewReferenceStore(db), nil
}

// ReplaceReferences atomically replaces every entry stored for model.
// Entries must share one dimension; positions are taken from the slice order.
func (s *ReferenceStore) ReplaceReferences(ctx context.Context, model string, entries []models.ReferenceEntry) error {
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
		artworks[artworkKey(e)] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM reference_entries WHERE model = ?", model); err != nil {
		return fmt.Errorf("failed to clear references: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reference_entries (id, model, position, label, artwork_id, slug, image_url, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i, e := range entries {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("%s:%d", model, i)
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, id, model, i, e.Label,
			nullString(e.ArtworkID), nullString(e.Slug), nullString(e.ImageURL),
			dim, vectorToBlob(e.Vector), createdAt); err != nil {
			return fmt.Errorf("failed to insert reference %q: %w", e.Label, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reference_builds (model, entries, artworks, dimension, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model) DO UPDATE SET
			entries = excluded.entries,
			artworks = excluded.artworks,
			dimension = excluded.dimension,
			built_at = excluded.built_at
	`, model, len(entries), len(artworks), dim, now); err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}

	return tx.Commit()
}

// entryRow is one reference_entries row
type entryRow struct {
	ID        string         `db:"id"`
	Position  int            `db:"position"`
	Label     string         `db:"label"`
	ArtworkID sql.NullString `db:"artwork_id"`
	Slug      sql.NullString `db:"slug"`
	ImageURL  sql.NullString `db:"image_url"`
	Vector    []byte         `db:"vector"`
	CreatedAt time.Time      `db:"created_at"`
}

// buildRow is one reference_builds row
type buildRow struct {
	Model     string    `db:"model"`
	Entries   int       `db:"entries"`
	Artworks  int       `db:"artworks"`
	Dimension int       `db:"dimension"`
	BuiltAt   time.Time `db:"built_at"`
}

// Snapshot returns every entry for model ordered by position
func (s *ReferenceStore) Snapshot(ctx context.Context, model string) ([]models.ReferenceEntry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, position, label, artwork_id, slug, image_url, vector, created_at
		FROM reference_entries
		WHERE model = ?
		ORDER BY position ASC
	`, model); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrEmptySet
	}

	entries := make([]models.ReferenceEntry, len(rows))
	for i, r := range rows {
		vector, err := blobToVector(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("reference %s (%s): %w", r.ID, r.Label, err)
		}
		entries[i] = models.ReferenceEntry{
			ID:        r.ID,
			Label:     r.Label,
			ArtworkID: r.ArtworkID.String,
			Slug:      r.Slug.String,
			ImageURL:  r.ImageURL.String,
			Model:     model,
			Position:  r.Position,
			Vector:    vector,
			CreatedAt: r.CreatedAt,
		}
	}
	return entries, nil
}

// Stats returns one summary per stored model
func (s *ReferenceStore) Stats(ctx context.Context) ([]models.ReferenceStats, error) {
	var rows []buildRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT model, entries, artworks, dimension, built_at
		FROM reference_builds
		ORDER BY model ASC
	`); err != nil {
		return nil, err
	}

	stats := make([]models.ReferenceStats, len(rows))
	for i, r := range rows {
		stats[i] = models.ReferenceStats(r)
	}
	return stats, nil
}

// Close closes the underlying database
func (s *ReferenceStore) Close() error {
	return s.db.Close()
}

func artworkKey(e models.ReferenceEntry) string {
	if e.ArtworkID != "" {
		return e.ArtworkID
	}
	return e.Label
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) (models.FeatureVector, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes is not a multiple of 8", ErrCorruptVector, len(blob))
	}
	count := len(blob) / 8
	vector := make(models.FeatureVector, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector, nil
}

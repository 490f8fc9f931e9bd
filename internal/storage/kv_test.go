// ABOUTME: Tests for the KV-backed reference store using an in-memory KV
// ABOUTME: Verifies generation swaps, cleanup of stale keys and failure handling
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/charm"
	"github.com/harper/artmatch/internal/models"
)

// memKV is an in-memory KV with optional write failures
type memKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	failAfter  int // fail SetJSON once this many writes succeeded; 0 disables
	writes     int
	failDelete bool
	failList   bool
	closed     bool
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) SetJSON(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && m.writes >= m.failAfter {
		return fmt.Errorf("disk full")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = data
	m.writes++
	return nil
}

func (m *memKV) GetJSON(key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return fmt.Errorf("%w: %s", charm.ErrKeyNotFound, key)
	}
	return json.Unmarshal(data, dest)
}

func (m *memKV) ListKeys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, fmt.Errorf("connection reset")
	}
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return fmt.Errorf("read-only")
	}
	delete(m.data, key)
	return nil
}

func (m *memKV) Close() error {
	m.closed = true
	return nil
}

func refs(labels ...string) []models.ReferenceEntry {
	entries := make([]models.ReferenceEntry, len(labels))
	for i, l := range labels {
		entries[i] = models.ReferenceEntry{
			Label:     l,
			ArtworkID: "art-" + l,
			Vector:    models.FeatureVector{float64(i + 1), 1, 0},
		}
	}
	return entries
}

func TestKVReplaceAndSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	store := NewKVReferenceStore(kv)

	if err := store.ReplaceReferences(ctx, "hist", refs("a", "b", "c")); err != nil {
		t.Fatalf("ReplaceReferences() error = %v", err)
	}

	got, err := store.Snapshot(ctx, "hist")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, e := range got {
		if e.Position != i {
			t.Errorf("entry %d has position %d", i, e.Position)
		}
		if e.Model != "hist" {
			t.Errorf("entry %d has model %q", i, e.Model)
		}
		if e.Vector[0] != float64(i+1) {
			t.Errorf("entry %d vector not preserved: %v", i, e.Vector)
		}
	}
}

func TestKVReplaceRemovesOldGeneration(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	store := NewKVReferenceStore(kv)

	if err := store.ReplaceReferences(ctx, "hist", refs("a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceReferences(ctx, "hist", refs("d")); err != nil {
		t.Fatal(err)
	}

	keys, _ := kv.ListKeys(charm.ReferenceModelPrefix("hist"))
	if len(keys) != 1 {
		t.Errorf("expected 1 entry key after replacement, got %v", keys)
	}

	got, err := store.Snapshot(ctx, "hist")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Label != "d" {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestKVFailedReplaceKeepsPreviousSet(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	store := NewKVReferenceStore(kv)

	if err := store.ReplaceReferences(ctx, "hist", refs("a", "b")); err != nil {
		t.Fatal(err)
	}

	// 2 entries + 1 manifest written so far; allow two more writes then fail
	kv.failAfter = kv.writes + 2
	if err := store.ReplaceReferences(ctx, "hist", refs("x", "y", "z")); err == nil {
		t.Fatal("expected write failure")
	}
	kv.failAfter = 0

	got, err := store.Snapshot(ctx, "hist")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Label != "a" {
		t.Errorf("previous set should be intact, got %+v", got)
	}

	keys, _ := kv.ListKeys(charm.ReferenceModelPrefix("hist"))
	if len(keys) != 2 {
		t.Errorf("partial generation should be cleaned up, keys: %v", keys)
	}
}

func TestKVCancelledReplaceKeepsPreviousSet(t *testing.T) {
	kv := newMemKV()
	store := NewKVReferenceStore(kv)

	if err := store.ReplaceReferences(context.Background(), "hist", refs("a")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.ReplaceReferences(ctx, "hist", refs("b", "c")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	got, err := store.Snapshot(context.Background(), "hist")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Label != "a" {
		t.Errorf("previous set should be intact, got %+v", got)
	}
}

func TestKVReplaceLeavesPrefixSharingModelAlone(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	store := NewKVReferenceStore(kv)

	if err := store.ReplaceReferences(ctx, "m:x", refs("long")); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceReferences(ctx, "m", refs("a")); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceReferences(ctx, "m", refs("b")); err != nil {
		t.Fatal(err)
	}

	got, err := store.Snapshot(ctx, "m:x")
	if err != nil {
		t.Fatalf("Snapshot(m:x) error = %v", err)
	}
	if len(got) != 1 || got[0].Label != "long" {
		t.Errorf("m:x set should survive rebuilds of m, got %+v", got)
	}

	got, err = store.Snapshot(ctx, "m")
	if err != nil || len(got) != 1 || got[0].Label != "b" {
		t.Errorf("Snapshot(m) = %+v, %v", got, err)
	}
}

func TestKVCleanupFailuresAreLogged(t *testing.T) {
	ctx := context.Background()

	t.Run("delete", func(t *testing.T) {
		var buf bytes.Buffer
		kv := newMemKV()
		store := NewKVReferenceStore(kv, WithKVLogger(zerolog.New(&buf)))

		if err := store.ReplaceReferences(ctx, "hist", refs("a")); err != nil {
			t.Fatal(err)
		}
		kv.failDelete = true
		if err := store.ReplaceReferences(ctx, "hist", refs("b")); err != nil {
			t.Fatalf("cleanup failure should not fail the rebuild: %v", err)
		}
		if !strings.Contains(buf.String(), "failed to delete reference key") {
			t.Errorf("expected delete warning, log: %s", buf.String())
		}

		got, err := store.Snapshot(ctx, "hist")
		if err != nil || len(got) != 1 || got[0].Label != "b" {
			t.Errorf("new set should be live, got %+v, %v", got, err)
		}
	})

	t.Run("list", func(t *testing.T) {
		var buf bytes.Buffer
		kv := newMemKV()
		store := NewKVReferenceStore(kv, WithKVLogger(zerolog.New(&buf)))

		if err := store.ReplaceReferences(ctx, "hist", refs("a")); err != nil {
			t.Fatal(err)
		}
		kv.failList = true
		if err := store.ReplaceReferences(ctx, "hist", refs("b")); err != nil {
			t.Fatalf("cleanup failure should not fail the rebuild: %v", err)
		}
		if !strings.Contains(buf.String(), "failed to list reference keys") {
			t.Errorf("expected list warning, log: %s", buf.String())
		}
	})
}

func TestKVValidation(t *testing.T) {
	store := NewKVReferenceStore(newMemKV())
	ctx := context.Background()

	mixed := refs("a", "b")
	mixed[1].Vector = models.FeatureVector{1}

	tests := []struct {
		name    string
		model   string
		entries []models.ReferenceEntry
	}{
		{"no model", "", refs("a")},
		{"empty", "hist", nil},
		{"mixed dimensions", "hist", mixed},
		{"missing label", "hist", []models.ReferenceEntry{{Vector: models.FeatureVector{1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.ReplaceReferences(ctx, tt.model, tt.entries); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestKVSnapshotMissing(t *testing.T) {
	store := NewKVReferenceStore(newMemKV())

	_, err := store.Snapshot(context.Background(), "hist")
	if !errors.Is(err, ErrNoReferences) {
		t.Errorf("expected ErrNoReferences, got %v", err)
	}
}

func TestKVStats(t *testing.T) {
	ctx := context.Background()
	store := NewKVReferenceStore(newMemKV())

	if err := store.ReplaceReferences(ctx, "zeta", refs("a")); err != nil {
		t.Fatal(err)
	}
	entries := refs("b", "c", "d")
	entries[2].ArtworkID = entries[1].ArtworkID
	if err := store.ReplaceReferences(ctx, "alpha", entries); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 models, got %d", len(stats))
	}
	if stats[0].Model != "alpha" {
		t.Errorf("expected sorted models, got %s first", stats[0].Model)
	}
	if stats[0].Entries != 3 || stats[0].Artworks != 2 || stats[0].Dimension != 3 {
		t.Errorf("unexpected alpha stats %+v", stats[0])
	}
}

func TestKVClose(t *testing.T) {
	kv := newMemKV()
	if err := NewKVReferenceStore(kv).Close(); err != nil {
		t.Fatal(err)
	}
	if !kv.closed {
		t.Error("Close should close the backend")
	}
}

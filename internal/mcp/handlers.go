// ABOUTME: MCP tool handler implementations for the artmatch server
// ABOUTME: Identifies artwork photos, browses the catalog and manages the reference set
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/catalog"
	"github.com/harper/artmatch/internal/embed"
	"github.com/harper/artmatch/internal/gallery"
	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/scan"
	"github.com/harper/artmatch/internal/storage"
)

// Catalog is the catalog surface the tools use
type Catalog interface {
	gallery.Catalog
	scan.ArtworkResolver
	ListExhibitions(ctx context.Context) ([]models.Exhibition, error)
}

var _ Catalog = (*catalog.Client)(nil)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	catalog  Catalog
	embedder embed.Embedder
	store    storage.ReferenceStore
	policy   scan.Policy
	builder  *gallery.Builder
	log      zerolog.Logger

	mu   sync.RWMutex
	refs []models.ReferenceEntry // cached snapshot, nil until loaded

	rebuilding sync.Mutex
}

// NewHandlers wires the tool handlers
func NewHandlers(c Catalog, e embed.Embedder, s storage.ReferenceStore, policy scan.Policy, b *gallery.Builder, log zerolog.Logger) *Handlers {
	return &Handlers{
		catalog:  c,
		embedder: e,
		store:    s,
		policy:   policy,
		builder:  b,
		log:      log,
	}
}

// IdentifyArtwork handles the identify_artwork tool
func (h *Handlers) IdentifyArtwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	url := request.GetString("url", "")
	if (path == "") == (url == "") {
		return mcp.NewToolResultError("exactly one of path or url is required"), nil
	}

	policy := h.policy
	policy.Threshold = request.GetFloat("threshold", h.policy.Threshold)
	if policy.Threshold < -1 || policy.Threshold > 1 {
		return mcp.NewToolResultError("threshold must be between -1 and 1"), nil
	}
	top := request.GetInt("top", 0)

	var (
		image []byte
		err   error
	)
	if path != "" {
		image, err = os.ReadFile(path)
	} else {
		image, err = h.catalog.DownloadImage(ctx, url)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load image: %v", err)), nil
	}

	refs, err := h.references(ctx)
	if errors.Is(err, storage.ErrNoReferences) {
		return mcp.NewToolResultError("no reference set has been built yet, call rebuild_references first"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load references: %v", err)), nil
	}

	session := scan.NewSession(refs, h.embedder, policy,
		scan.WithResolver(h.catalog), scan.WithCandidates(top), scan.WithLogger(h.log))
	id, err := session.Identify(ctx, image)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("identification failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"accepted":       id.Accepted,
		"threshold":      policy.Threshold,
		"match":          id.Match,
		"artwork":        id.Artwork,
		"candidates":     id.Candidates,
		"resolve_error":  id.Resolution,
		"reference_size": len(refs),
	})
}

// ListArtworks handles the list_artworks tool
func (h *Handlers) ListArtworks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	status := models.SaleStatus(strings.ToLower(request.GetString("sale_status", "")))
	if status != "" && !status.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown sale_status %q", status)), nil
	}

	artworks, err := h.catalog.ListArtworks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list artworks: %v", err)), nil
	}

	filtered := catalog.FilterArtworks(artworks, query, status)

	return jsonResult(map[string]any{
		"artworks": filtered,
		"count":    len(filtered),
	})
}

// GetArtwork handles the get_artwork tool
func (h *Handlers) GetArtwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	slug := request.GetString("slug", "")
	if id == "" && slug == "" {
		return mcp.NewToolResultError("id or slug is required"), nil
	}

	var (
		art *models.Artwork
		err error
	)
	if slug != "" {
		art, err = h.catalog.FindArtworkBySlug(ctx, slug)
	} else {
		art, err = h.catalog.GetArtwork(ctx, id)
	}
	if errors.Is(err, catalog.ErrNotFound) {
		return mcp.NewToolResultError("artwork not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get artwork: %v", err)), nil
	}

	return jsonResult(map[string]any{"artwork": art})
}

// ListExhibitions handles the list_exhibitions tool
func (h *Handlers) ListExhibitions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exhibitions, err := h.catalog.ListExhibitions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list exhibitions: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"exhibitions": exhibitions,
		"count":       len(exhibitions),
	})
}

// ReferenceStats handles the reference_stats tool
func (h *Handlers) ReferenceStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read stats: %v", err)), nil
	}
	if stats == nil {
		stats = []models.ReferenceStats{}
	}

	return jsonResult(map[string]any{
		"active_model": h.embedder.Model(),
		"threshold":    h.policy.Threshold,
		"models":       stats,
	})
}

// RebuildReferences handles the rebuild_references tool
func (h *Handlers) RebuildReferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.builder == nil {
		return mcp.NewToolResultError("rebuilding is not available"), nil
	}
	if !h.rebuilding.TryLock() {
		return mcp.NewToolResultError("a rebuild is already running"), nil
	}
	defer h.rebuilding.Unlock()

	report, err := h.builder.Build(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
	}

	h.mu.Lock()
	h.refs = nil
	h.mu.Unlock()

	return jsonResult(map[string]any{
		"success":  true,
		"model":    report.Model,
		"artworks": report.Artworks,
		"images":   report.Images,
		"embedded": report.Embedded,
		"failed":   report.Failed,
		"duration": report.Duration.String(),
	})
}

// references returns the cached snapshot for the active model, loading it once
func (h *Handlers) references(ctx context.Context) ([]models.ReferenceEntry, error) {
	h.mu.RLock()
	refs := h.refs
	h.mu.RUnlock()
	if refs != nil {
		return refs, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs != nil {
		return h.refs, nil
	}
	refs, err := h.store.Snapshot(ctx, h.embedder.Model())
	if err != nil {
		return nil, err
	}
	h.log.Debug().Int("entries", len(refs)).Msg("loaded reference snapshot")
	h.refs = refs
	return refs, nil
}

func jsonResult(response any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

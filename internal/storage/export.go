// ABOUTME: Export and import of reference sets
// ABOUTME: Supports YAML and JSON formats for moving sets between stores and machines
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/artmatch/internal/models"
)

// ExportVersion is bumped whenever the export layout changes
const ExportVersion = "1.0"

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version    string                  `yaml:"version" json:"version"`
	ExportedAt string                  `yaml:"exported_at" json:"exported_at"`
	Tool       string                  `yaml:"tool" json:"tool"`
	Model      string                  `yaml:"model" json:"model"`
	Dimension  int                     `yaml:"dimension" json:"dimension"`
	Entries    []models.ReferenceEntry `yaml:"entries" json:"entries"`
}

// Export reads the set for model from store
func Export(ctx context.Context, store ReferenceStore, model string) (*ExportData, error) {
	entries, err := store.Snapshot(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}

	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Tool:       "artmatch",
		Model:      model,
		Entries:    entries,
	}
	if len(entries) > 0 {
		data.Dimension = len(entries[0].Vector)
	}
	return data, nil
}

// WriteExport encodes data as "yaml" or "json"
func WriteExport(w io.Writer, data *ExportData, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ReadExport decodes a YAML or JSON export
func ReadExport(r io.Reader) (*ExportData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var data ExportData
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &data)
	} else {
		err = yaml.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	if data.Model == "" {
		return nil, fmt.Errorf("export has no model")
	}
	if len(data.Entries) == 0 {
		return nil, fmt.Errorf("export for %s has no entries", data.Model)
	}
	return &data, nil
}

// Import replaces the store's set for the export's model
func Import(ctx context.Context, store ReferenceStore, data *ExportData) error {
	return store.ReplaceReferences(ctx, data.Model, data.Entries)
}

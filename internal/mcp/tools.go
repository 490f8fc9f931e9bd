// ABOUTME: MCP tool definitions and registration for the artmatch server
// ABOUTME: Declares JSON schemas for the identification, catalog and reference tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServerName is reported to MCP clients
const ServerName = "artmatch"

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, handlers *Handlers) {
	// 1. identify_artwork - match a photo against the reference set
	server.AddTool(mcp.Tool{
		Name:        "identify_artwork",
		Description: "Identify which gallery artwork a photo shows. Provide a local file path or an image URL; returns the best match, whether it passed the threshold, and the catalog record.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to a JPEG, PNG or GIF file",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "Image URL; relative URLs are resolved against the catalog",
				},
				"threshold": map[string]any{
					"type":        "number",
					"description": "Similarity a match must exceed (default from MATCH_THRESHOLD)",
				},
				"top": map[string]any{
					"type":        "number",
					"description": "Also return this many ranked candidates",
					"default":     0,
				},
			},
		},
	}, handlers.IdentifyArtwork)

	// 2. list_artworks - browse the catalog
	server.AddTool(mcp.Tool{
		Name:        "list_artworks",
		Description: "List gallery artworks, optionally filtered by a title/artist search or sale status.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Case-insensitive text matched against title and artist",
				},
				"sale_status": map[string]any{
					"type":        "string",
					"enum":        []string{"available", "sold", "reserved", "unknown"},
					"description": "Only return artworks with this sale status",
				},
			},
		},
	}, handlers.ListArtworks)

	// 3. get_artwork - one catalog record
	server.AddTool(mcp.Tool{
		Name:        "get_artwork",
		Description: "Get a single artwork by catalog id or slug.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Catalog id or document id",
				},
				"slug": map[string]any{
					"type":        "string",
					"description": "Artwork slug (takes precedence over id)",
				},
			},
		},
	}, handlers.GetArtwork)

	// 4. list_exhibitions
	server.AddTool(mcp.Tool{
		Name:        "list_exhibitions",
		Description: "List gallery exhibitions with dates and cover images.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, handlers.ListExhibitions)

	// 5. reference_stats
	server.AddTool(mcp.Tool{
		Name:        "reference_stats",
		Description: "Show the stored reference sets, the active embedding model and the match threshold.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, handlers.ReferenceStats)

	// 6. rebuild_references - re-embed the catalog
	server.AddTool(mcp.Tool{
		Name:        "rebuild_references",
		Description: "Download and embed every catalog image and replace the reference set for the active model. Slow; the previous set stays in use if the rebuild fails.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, handlers.RebuildReferences)
}

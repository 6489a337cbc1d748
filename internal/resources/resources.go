// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (taskpad://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/taskpad/internal/providers"
)

const providersURI = "taskpad://providers"

// ProviderCatalog lists configured inference providers.
type ProviderCatalog interface {
	Describe() []providers.Info
}

// Handler manages resource endpoints.
type Handler struct {
	catalog    ProviderCatalog
	mcpServers []string
}

// NewHandler creates a resource Handler. mcpServers are the names callers
// may pass to subagent_run.
func NewHandler(catalog ProviderCatalog, mcpServers []string) *Handler {
	return &Handler{catalog: catalog, mcpServers: mcpServers}
}

// ProvidersResource returns the MCP resource definition for the provider
// catalog.
func (h *Handler) ProvidersResource() mcp.Resource {
	return mcp.NewResource(
		providersURI,
		"Inference Providers",
		mcp.WithResourceDescription("Configured providers, their tool capabilities and API key availability, plus known MCP servers"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProviders returns the provider catalog as JSON.
func (h *Handler) HandleProviders(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	servers := h.mcpServers
	if servers == nil {
		servers = []string{}
	}
	data, err := json.MarshalIndent(map[string]any{
		"providers":   h.catalog.Describe(),
		"mcp_servers": servers,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling providers: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

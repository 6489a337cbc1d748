// Package providers adapts external inference backends to one
// capability-described interface.
//
// Adapters exist for the OpenAI Responses API (also used for
// OpenAI-compatible gateways) and the Anthropic Messages API. Provider-side
// tools are attached as raw JSON so new tool types need no SDK support, and
// citations, code and execution output are read back from the raw response.
package providers

import (
	"context"
	"fmt"
	"strings"
)

// Provider is one configured inference backend.
type Provider interface {
	Name() string
	Capabilities() CapabilitySet
	Infer(ctx context.Context, req InferRequest) (*InferResult, error)
}

// MCPServer is a remote MCP server handed to the provider for the call.
type MCPServer struct {
	Name      string
	URL       string
	AuthToken string
}

// Attachment is file content inlined into the user prompt.
type Attachment struct {
	Name      string
	MimeType  string
	Text      string
	Truncated bool
}

type InferRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Capabilities []Capability
	MCPServers   []MCPServer
	Attachments  []Attachment
}

type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type InferResult struct {
	Text             string   `json:"text"`
	Sources          []Source `json:"sources,omitempty"`
	Code             []string `json:"code,omitempty"`
	ExecutionResults []string `json:"execution_results,omitempty"`
	ResponseID       string   `json:"response_id,omitempty"`
	Model            string   `json:"model,omitempty"`
	Usage            Usage    `json:"usage"`
}

// userContent renders the prompt followed by any attachments.
func userContent(req InferRequest) string {
	if len(req.Attachments) == 0 {
		return req.Prompt
	}
	var b strings.Builder
	b.WriteString(req.Prompt)
	for _, a := range req.Attachments {
		fmt.Fprintf(&b, "\n\n--- attachment: %s (%s) ---\n", a.Name, a.MimeType)
		b.WriteString(a.Text)
		if a.Truncated {
			b.WriteString("\n[attachment truncated]")
		}
	}
	return b.String()
}

func hasCapability(caps []Capability, c Capability) bool {
	for _, x := range caps {
		if x == c {
			return true
		}
	}
	return false
}

func dedupeSources(in []Source) []Source {
	seen := make(map[string]bool, len(in))
	var out []Source
	for _, s := range in {
		u := strings.TrimSpace(s.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, Source{Title: strings.TrimSpace(s.Title), URL: u})
	}
	return out
}

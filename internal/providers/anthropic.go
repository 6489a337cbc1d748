package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/HendryAvila/taskpad/internal/config"
)

const anthropicMCPBeta = "mcp-client-2025-04-04"

type anthropicProvider struct {
	name    string
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func newAnthropic(cfg config.Provider, apiKey string) (Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []aoption.RequestOption{
		aoption.WithAPIKey(strings.TrimSpace(apiKey)),
		aoption.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, aoption.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}
	return &anthropicProvider{
		name:    cfg.ID,
		client:  anthropic.NewClient(opts...),
		model:   strings.TrimSpace(cfg.Model),
		timeout: cfg.Timeout(),
	}, nil
}

func (p *anthropicProvider) Name() string { return p.name }

func (p *anthropicProvider) Capabilities() CapabilitySet {
	return typeCapabilities[config.ProviderTypeAnthropic]
}

func (p *anthropicProvider) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, errors.New("missing model")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxOutputTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent(req))),
		},
	}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	opts := []aoption.RequestOption{aoption.WithRequestTimeout(p.timeout)}
	if hasCapability(req.Capabilities, Grounding) {
		opts = append(opts, aoption.WithJSONSet("tools", []map[string]any{{
			"type":     "web_search_20250305",
			"name":     "web_search",
			"max_uses": 5,
		}}))
	}
	if servers := anthropicMCPServers(req.MCPServers); len(servers) > 0 {
		opts = append(opts,
			aoption.WithJSONSet("mcp_servers", servers),
			aoption.WithHeader("anthropic-beta", anthropicMCPBeta),
		)
	}

	msg, err := p.client.Messages.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return parseAnthropicMessage(msg)
}

func anthropicMCPServers(in []MCPServer) []map[string]any {
	var out []map[string]any
	for _, s := range in {
		srv := map[string]any{"type": "url", "name": s.Name, "url": s.URL}
		if s.AuthToken != "" {
			srv["authorization_token"] = s.AuthToken
		}
		out = append(out, srv)
	}
	return out
}

func parseAnthropicMessage(msg *anthropic.Message) (*InferResult, error) {
	if msg == nil {
		return nil, errors.New("anthropic: empty response")
	}
	out := &InferResult{
		ResponseID: msg.ID,
		Model:      string(msg.Model),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	out.Text = strings.Join(parts, "\n")

	var sources []Source
	gjson.Get(msg.RawJSON(), "content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			block.Get("citations").ForEach(func(_, c gjson.Result) bool {
				sources = append(sources, Source{Title: c.Get("title").String(), URL: c.Get("url").String()})
				return true
			})
		case "web_search_tool_result":
			block.Get("content").ForEach(func(_, r gjson.Result) bool {
				if r.Get("type").String() == "web_search_result" {
					sources = append(sources, Source{Title: r.Get("title").String(), URL: r.Get("url").String()})
				}
				return true
			})
		}
		return true
	})
	out.Sources = dedupeSources(sources)
	return out, nil
}

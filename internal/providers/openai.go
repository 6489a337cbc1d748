package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/HendryAvila/taskpad/internal/config"
)

const defaultMaxOutputTokens = 4096

type openAIProvider struct {
	name    string
	client  openai.Client
	model   string
	timeout time.Duration
}

func newOpenAIFactory(providerType string) Factory {
	return func(cfg config.Provider, apiKey string) (Provider, error) {
		if strings.TrimSpace(apiKey) == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []ooption.RequestOption{
			ooption.WithAPIKey(strings.TrimSpace(apiKey)),
			ooption.WithMaxRetries(0),
		}
		if strings.TrimSpace(cfg.BaseURL) != "" {
			opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
		} else if providerType == config.ProviderTypeOpenAICompatible {
			return nil, errors.New("openai_compatible provider needs a base_url")
		}
		return &openAIProvider{
			name:    cfg.ID,
			client:  openai.NewClient(opts...),
			model:   strings.TrimSpace(cfg.Model),
			timeout: cfg.Timeout(),
		}, nil
	}
}

func (p *openAIProvider) Name() string { return p.name }

func (p *openAIProvider) Capabilities() CapabilitySet {
	return typeCapabilities[config.ProviderTypeOpenAI]
}

func (p *openAIProvider) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, errors.New("missing model")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(model),
		MaxOutputTokens: openai.Int(defaultMaxOutputTokens),
		Input:           oresponses.ResponseNewParamsInputUnion{OfString: openai.String(userContent(req))},
	}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		params.Instructions = openai.String(sys)
	}

	opts := []ooption.RequestOption{ooption.WithRequestTimeout(p.timeout)}
	if tools := openAITools(req); len(tools) > 0 {
		opts = append(opts, ooption.WithJSONSet("tools", tools))
	}

	resp, err := p.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return parseOpenAIResponse(resp)
}

// openAITools builds the hosted tool list for the request.
func openAITools(req InferRequest) []map[string]any {
	var tools []map[string]any
	if hasCapability(req.Capabilities, Grounding) {
		tools = append(tools, map[string]any{"type": "web_search_preview"})
	}
	if hasCapability(req.Capabilities, CodeExecution) {
		tools = append(tools, map[string]any{
			"type":      "code_interpreter",
			"container": map[string]any{"type": "auto"},
		})
	}
	for _, s := range req.MCPServers {
		tool := map[string]any{
			"type":             "mcp",
			"server_label":     s.Name,
			"server_url":       s.URL,
			"require_approval": "never",
		}
		if s.AuthToken != "" {
			tool["headers"] = map[string]string{"Authorization": "Bearer " + s.AuthToken}
		}
		tools = append(tools, tool)
	}
	return tools
}

func parseOpenAIResponse(resp *oresponses.Response) (*InferResult, error) {
	if resp == nil {
		return nil, errors.New("openai: empty response")
	}
	raw := gjson.Parse(resp.RawJSON())
	if raw.Get("status").String() == "failed" {
		msg := raw.Get("error.message").String()
		if msg == "" {
			msg = "response failed"
		}
		return nil, fmt.Errorf("openai: %s", msg)
	}

	out := &InferResult{
		Text:       extractOpenAIText(resp),
		ResponseID: resp.ID,
		Model:      string(resp.Model),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	var sources []Source
	raw.Get("output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content.#.annotations|@flatten").ForEach(func(_, ann gjson.Result) bool {
				if ann.Get("type").String() == "url_citation" {
					sources = append(sources, Source{Title: ann.Get("title").String(), URL: ann.Get("url").String()})
				}
				return true
			})
		case "code_interpreter_call":
			if code := strings.TrimSpace(item.Get("code").String()); code != "" {
				out.Code = append(out.Code, code)
			}
			item.Get("outputs").ForEach(func(_, o gjson.Result) bool {
				if logs := strings.TrimSpace(o.Get("logs").String()); logs != "" {
					out.ExecutionResults = append(out.ExecutionResults, logs)
				}
				return true
			})
		}
		return true
	})
	out.Sources = dedupeSources(sources)
	return out, nil
}

func extractOpenAIText(resp *oresponses.Response) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if strings.TrimSpace(part.Type) != "output_text" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return sb.String()
}

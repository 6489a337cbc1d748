package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the taskpad-status MCP prompt.
// It instructs the AI to read and present where a project stands.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("taskpad-status",
		mcp.WithPromptDescription(
			"Summarize a project's task tree, open scratchpads and what to do next.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project to report on"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the taskpad-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectID := req.Params.Arguments["project_id"]
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Status of %s", projectID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please run `tasks_list` and `scratchpad_list` for project_id='%s'.\n\n"+
						"Then:\n"+
						"1. Show the task tree with each task's status\n"+
						"2. For each scratchpad, list its tasks and summarize what subagents wrote\n"+
						"3. Point out locked (completed or archived) branches that still have open work\n"+
						"4. Tell me exactly what to do next",
					projectID,
				)),
			},
		},
	}, nil
}

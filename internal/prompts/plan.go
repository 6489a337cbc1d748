// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the taskpad-plan MCP prompt.
// It guides the AI from a goal to a task tree and a first scratchpad.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("taskpad-plan",
		mcp.WithPromptDescription(
			"Break a goal into a task tree, pick up to 6 tasks into a scratchpad "+
				"and dispatch subagents to work on them.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project to plan in. Created when it does not exist."),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What you want to get done"),
		),
	)
}

// Handle processes the taskpad-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectID := "my-project"
	goal := "(ask me for the goal)"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["project_id"]; ok && v != "" {
			projectID = v
		}
		if v, ok := args["goal"]; ok && v != "" {
			goal = v
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan %s", projectID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Project: '%s'\nGoal: %s\n\n"+
						"Please:\n"+
						"1. Run `project_create` with project_id='%s' (a project_exists error is fine)\n"+
						"2. Break the goal into a task tree and add it with `tasks_add`, using parent_id for subtasks\n"+
						"3. Pick at most 6 tasks that can be worked on now and run `scratchpad_init` with them\n"+
						"4. Record shared context with `scratchpad_append_memory`\n"+
						"5. For each scratchpad task, call `subagent_run`. If it returns in_progress, poll `subagent_run_status`\n"+
						"6. Read the results with `scratchpad_get` and mark finished tasks completed with `tasks_set_state`",
					projectID, goal, projectID,
				)),
			},
		},
	}, nil
}

package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/runs"
)

// Runner starts subagent runs and reports on them.
type Runner interface {
	RunScratchpadSubagent(ctx context.Context, userID string, req runs.RunRequest) runs.Result
	GetRunStatus(ctx context.Context, projectID, runID string) (*runs.Run, error)
}

// SubagentRunTool handles the subagent_run MCP tool.
type SubagentRunTool struct {
	runner Runner
	acc    access
}

// NewSubagentRunTool creates a SubagentRunTool. Authorization happens inside
// the runner so that rejected calls leave no run record.
func NewSubagentRunTool(runner Runner, defaultUser string) *SubagentRunTool {
	return &SubagentRunTool{runner: runner, acc: access{defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for subagent_run.
func (t *SubagentRunTool) Definition() mcp.Tool {
	return mcp.NewTool("subagent_run",
		mcp.WithDescription(
			"Run one scratchpad task through an inference provider. The output is appended to the task's "+
				"scratchpad and comments. Long runs return status in_progress with a run_id; poll subagent_run_status.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("scratchpad_id", mcp.Required(), mcp.Description("Scratchpad ID")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID within the scratchpad")),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Instructions for the subagent")),
		mcp.WithString("sys_prompt", mcp.Description("System prompt override")),
		mcp.WithArray("tools",
			mcp.Description("Provider tools to enable: grounding, code_execution, url_context or all"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("provider", mcp.Description("Provider ID (defaults to the configured default)")),
		mcp.WithString("model", mcp.Description("Model override")),
		mcp.WithArray("mcp_servers",
			mcp.Description("Names of configured remote MCP servers to hand to the provider"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("file_id", mcp.Description("Uploaded file to attach")),
		userIDOption,
	)
}

// Handle processes the subagent_run tool call.
func (t *SubagentRunTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolNames, err := stringsArg(req, "tools")
	if err != nil {
		return invalidArg("tools", err), nil
	}
	servers, err := stringsArg(req, "mcp_servers")
	if err != nil {
		return invalidArg("mcp_servers", err), nil
	}
	res := t.runner.RunScratchpadSubagent(ctx, t.acc.user(req), runs.RunRequest{
		ProjectID:    stringArg(req, "project_id"),
		ScratchpadID: stringArg(req, "scratchpad_id"),
		TaskID:       stringArg(req, "task_id"),
		Prompt:       req.GetString("prompt", ""),
		SysPrompt:    req.GetString("sys_prompt", ""),
		Tools:        toolNames,
		Provider:     stringArg(req, "provider"),
		Model:        stringArg(req, "model"),
		MCPServers:   servers,
		FileID:       stringArg(req, "file_id"),
	})
	data, err := json.Marshal(res)
	if err != nil {
		return failure(runs.CodeInternal), nil
	}
	if res.Status == runs.StatusFailure {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ─── SubagentRunStatusTool ──────────────────────────────────────────────

// SubagentRunStatusTool handles the subagent_run_status MCP tool.
type SubagentRunStatusTool struct {
	runner Runner
	acc    access
}

func NewSubagentRunStatusTool(runner Runner, auth Authorizer, defaultUser string) *SubagentRunStatusTool {
	return &SubagentRunStatusTool{runner: runner, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for subagent_run_status.
func (t *SubagentRunStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("subagent_run_status",
		mcp.WithDescription("Report the status of a subagent run: pending, in_progress, success or failure."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID returned by subagent_run")),
		userIDOption,
	)
}

// Handle processes the subagent_run_status tool call.
func (t *SubagentRunStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelRead); denied != nil {
		return denied, nil
	}
	run, err := t.runner.GetRunStatus(ctx, projectID, stringArg(req, "run_id"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(run), nil
}

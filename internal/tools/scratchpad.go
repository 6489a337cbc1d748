package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/scratchpad"
)

// ScratchpadStore is the scratchpad store as the tools see it.
type ScratchpadStore interface {
	Init(ctx context.Context, projectID, id string, candidates []scratchpad.Entry) (*scratchpad.InitResult, error)
	Get(ctx context.Context, projectID, id string) (*scratchpad.Scratchpad, error)
	List(ctx context.Context, projectID string) ([]*scratchpad.Scratchpad, error)
	UpdateTasks(ctx context.Context, projectID, id string, updates []scratchpad.EntryUpdate) (*scratchpad.UpdateResult, error)
	AppendCommonMemory(ctx context.Context, projectID, id string, texts []string) (*scratchpad.Scratchpad, error)
}

// ScratchpadInitTool handles the scratchpad_init MCP tool.
type ScratchpadInitTool struct {
	store ScratchpadStore
	acc   access
}

func NewScratchpadInitTool(store ScratchpadStore, auth Authorizer, defaultUser string) *ScratchpadInitTool {
	return &ScratchpadInitTool{store: store, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for scratchpad_init.
func (t *ScratchpadInitTool) Definition() mcp.Tool {
	return mcp.NewTool("scratchpad_init",
		mcp.WithDescription(
			"Create a scratchpad: a small working set of up to 6 tasks plus shared common memory. "+
				"Extra tasks beyond 6 are dropped. Each task: {task_id, task_info, status?}.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("scratchpad_id", mcp.Description("Scratchpad ID. Generated when omitted.")),
		mcp.WithArray("tasks",
			mcp.Required(),
			mcp.Description("Tasks, as an array or a JSON-encoded array"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		userIDOption,
	)
}

// Handle processes the scratchpad_init tool call.
func (t *ScratchpadInitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelWrite); denied != nil {
		return denied, nil
	}
	var entries []scratchpad.Entry
	if _, err := decodeArg(req, "tasks", &entries); err != nil {
		return invalidArg("tasks", err), nil
	}
	res, err := t.store.Init(ctx, projectID, stringArg(req, "scratchpad_id"), entries)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res), nil
}

// ─── ScratchpadGetTool ──────────────────────────────────────────────────

// ScratchpadGetTool handles the scratchpad_get MCP tool.
type ScratchpadGetTool struct {
	store ScratchpadStore
	acc   access
}

func NewScratchpadGetTool(store ScratchpadStore, auth Authorizer, defaultUser string) *ScratchpadGetTool {
	return &ScratchpadGetTool{store: store, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for scratchpad_get.
func (t *ScratchpadGetTool) Definition() mcp.Tool {
	return mcp.NewTool("scratchpad_get",
		mcp.WithDescription("Read a scratchpad with its tasks, subagent notes and common memory."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("scratchpad_id", mcp.Required(), mcp.Description("Scratchpad ID")),
		userIDOption,
	)
}

// Handle processes the scratchpad_get tool call.
func (t *ScratchpadGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelRead); denied != nil {
		return denied, nil
	}
	sp, err := t.store.Get(ctx, projectID, stringArg(req, "scratchpad_id"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(sp), nil
}

// ─── ScratchpadListTool ─────────────────────────────────────────────────

// ScratchpadListTool handles the scratchpad_list MCP tool.
type ScratchpadListTool struct {
	store ScratchpadStore
	acc   access
}

func NewScratchpadListTool(store ScratchpadStore, auth Authorizer, defaultUser string) *ScratchpadListTool {
	return &ScratchpadListTool{store: store, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for scratchpad_list.
func (t *ScratchpadListTool) Definition() mcp.Tool {
	return mcp.NewTool("scratchpad_list",
		mcp.WithDescription("List the scratchpads of a project, oldest first."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		userIDOption,
	)
}

// Handle processes the scratchpad_list tool call.
func (t *ScratchpadListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelRead); denied != nil {
		return denied, nil
	}
	list, err := t.store.List(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}
	if list == nil {
		list = []*scratchpad.Scratchpad{}
	}
	return jsonResult(map[string]any{"scratchpads": list}), nil
}

// ─── ScratchpadUpdateTasksTool ──────────────────────────────────────────

// ScratchpadUpdateTasksTool handles the scratchpad_update_tasks MCP tool.
type ScratchpadUpdateTasksTool struct {
	store ScratchpadStore
	acc   access
}

func NewScratchpadUpdateTasksTool(store ScratchpadStore, auth Authorizer, defaultUser string) *ScratchpadUpdateTasksTool {
	return &ScratchpadUpdateTasksTool{store: store, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for scratchpad_update_tasks.
func (t *ScratchpadUpdateTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("scratchpad_update_tasks",
		mcp.WithDescription(
			"Merge field updates into scratchpad tasks by task_id. Only the fields given are changed. "+
				"Each update: {task_id, status?, task_info?, scratchpad?, comments?}. Unknown task IDs go to not_found.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("scratchpad_id", mcp.Required(), mcp.Description("Scratchpad ID")),
		mcp.WithArray("updates",
			mcp.Required(),
			mcp.Description("Updates, as an array or a JSON-encoded array"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		userIDOption,
	)
}

// Handle processes the scratchpad_update_tasks tool call.
func (t *ScratchpadUpdateTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelWrite); denied != nil {
		return denied, nil
	}
	var updates []scratchpad.EntryUpdate
	if _, err := decodeArg(req, "updates", &updates); err != nil {
		return invalidArg("updates", err), nil
	}
	res, err := t.store.UpdateTasks(ctx, projectID, stringArg(req, "scratchpad_id"), updates)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res), nil
}

// ─── ScratchpadAppendMemoryTool ─────────────────────────────────────────

// ScratchpadAppendMemoryTool handles the scratchpad_append_memory MCP tool.
type ScratchpadAppendMemoryTool struct {
	store ScratchpadStore
	acc   access
}

func NewScratchpadAppendMemoryTool(store ScratchpadStore, auth Authorizer, defaultUser string) *ScratchpadAppendMemoryTool {
	return &ScratchpadAppendMemoryTool{store: store, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for scratchpad_append_memory.
func (t *ScratchpadAppendMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("scratchpad_append_memory",
		mcp.WithDescription("Append text to a scratchpad's common memory. Blank input changes nothing."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("scratchpad_id", mcp.Required(), mcp.Description("Scratchpad ID")),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to append. A JSON array of strings appends each on its own line."),
		),
		userIDOption,
	)
}

// Handle processes the scratchpad_append_memory tool call.
func (t *ScratchpadAppendMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelWrite); denied != nil {
		return denied, nil
	}
	texts, err := stringsArg(req, "text")
	if err != nil {
		return invalidArg("text", err), nil
	}
	sp, err := t.store.AppendCommonMemory(ctx, projectID, stringArg(req, "scratchpad_id"), texts)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(sp), nil
}

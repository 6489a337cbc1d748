package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/tasks"
)

// TaskEngine is the task hierarchy engine as the tools see it.
type TaskEngine interface {
	AddTasks(ctx context.Context, projectID string, items []tasks.NewTask) (*tasks.AddResult, error)
	SetTasksState(ctx context.Context, projectID string, u tasks.StateUpdate) (*tasks.StateResult, error)
	ListTasks(ctx context.Context, projectID string, filter tasks.ListFilter) ([]*tasks.Task, error)
	GetTask(ctx context.Context, projectID, taskID string) (*tasks.Task, error)
	DeleteAllTasks(ctx context.Context, projectID string) (int64, error)
}

var userIDOption = mcp.WithString("user_id",
	mcp.Description("Calling user ID (defaults to the server's default user)"),
)

// TasksAddTool handles the tasks_add MCP tool.
type TasksAddTool struct {
	engine TaskEngine
	acc    access
}

func NewTasksAddTool(engine TaskEngine, auth Authorizer, defaultUser string) *TasksAddTool {
	return &TasksAddTool{engine: engine, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for tasks_add.
func (t *TasksAddTool) Definition() mcp.Tool {
	return mcp.NewTool("tasks_add",
		mcp.WithDescription(
			"Add tasks to a project's task tree. Existing task IDs are left untouched and reported in 'exists'. "+
				"Each item: {task_id, task_info, parent_id?, status?, extra_note?}.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithArray("tasks",
			mcp.Required(),
			mcp.Description("Tasks to add, as an array or a JSON-encoded array"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		userIDOption,
	)
}

// Handle processes the tasks_add tool call.
func (t *TasksAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelWrite); denied != nil {
		return denied, nil
	}
	var items []tasks.NewTask
	present, err := decodeArg(req, "tasks", &items)
	if err != nil {
		return invalidArg("tasks", err), nil
	}
	if !present {
		return invalidArg("tasks", nil), nil
	}
	res, err := t.engine.AddTasks(ctx, projectID, items)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res), nil
}

// ─── TasksSetStateTool ──────────────────────────────────────────────────

// TasksSetStateTool handles the tasks_set_state MCP tool.
type TasksSetStateTool struct {
	engine TaskEngine
	acc    access
}

func NewTasksSetStateTool(engine TaskEngine, auth Authorizer, defaultUser string) *TasksSetStateTool {
	return &TasksSetStateTool{engine: engine, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for tasks_set_state.
func (t *TasksSetStateTool) Definition() mcp.Tool {
	return mcp.NewTool("tasks_set_state",
		mcp.WithDescription(
			"Update tasks selected by ID and/or case-insensitive text match. Status changes cascade to descendants. "+
				"Completed or archived tasks are locked: only moving them back to pending or in_progress is allowed. "+
				"The call can partially succeed; inspect changed_ids, not_matched and forbidden.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithArray("match_ids",
			mcp.Description("Task IDs to update"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("match_text",
			mcp.Description("Substrings matched against task_info"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("state",
			mcp.Description("New status"),
			mcp.Enum(
				string(tasks.StatusPending), string(tasks.StatusInProgress),
				string(tasks.StatusCompleted), string(tasks.StatusArchived),
			),
		),
		mcp.WithString("task_info", mcp.Description("New task description")),
		mcp.WithString("parent_id", mcp.Description("New parent task ID; empty string makes the task a root")),
		mcp.WithString("extra_note", mcp.Description("New free-form note")),
		userIDOption,
	)
}

// Handle processes the tasks_set_state tool call.
func (t *TasksSetStateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelWrite); denied != nil {
		return denied, nil
	}
	ids, err := stringsArg(req, "match_ids")
	if err != nil {
		return invalidArg("match_ids", err), nil
	}
	text, err := stringsArg(req, "match_text")
	if err != nil {
		return invalidArg("match_text", err), nil
	}
	res, err := t.engine.SetTasksState(ctx, projectID, tasks.StateUpdate{
		MatchIDs:  ids,
		MatchText: text,
		State:     optionalString(req, "state"),
		TaskInfo:  optionalString(req, "task_info"),
		ParentID:  optionalString(req, "parent_id"),
		ExtraNote: optionalString(req, "extra_note"),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res), nil
}

// ─── TasksListTool ──────────────────────────────────────────────────────

// TasksListTool handles the tasks_list MCP tool.
type TasksListTool struct {
	engine TaskEngine
	acc    access
}

func NewTasksListTool(engine TaskEngine, auth Authorizer, defaultUser string) *TasksListTool {
	return &TasksListTool{engine: engine, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for tasks_list.
func (t *TasksListTool) Definition() mcp.Tool {
	return mcp.NewTool("tasks_list",
		mcp.WithDescription("List a project's tasks in creation order, optionally limited to one subtree or status. "+
			"Pass task_id to fetch a single task."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("task_id", mcp.Description("Return only this task")),
		mcp.WithString("root_id", mcp.Description("Return this task and its descendants")),
		mcp.WithString("status", mcp.Description("Keep only tasks in this status")),
		userIDOption,
	)
}

// Handle processes the tasks_list tool call.
func (t *TasksListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelRead); denied != nil {
		return denied, nil
	}
	if id := stringArg(req, "task_id"); id != "" {
		task, err := t.engine.GetTask(ctx, projectID, id)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(task), nil
	}
	list, err := t.engine.ListTasks(ctx, projectID, tasks.ListFilter{
		Status: stringArg(req, "status"),
		RootID: stringArg(req, "root_id"),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"tasks": list}), nil
}

// ─── TasksDeleteAllTool ─────────────────────────────────────────────────

// TasksDeleteAllTool handles the tasks_delete_all MCP tool.
type TasksDeleteAllTool struct {
	engine TaskEngine
	acc    access
}

func NewTasksDeleteAllTool(engine TaskEngine, auth Authorizer, defaultUser string) *TasksDeleteAllTool {
	return &TasksDeleteAllTool{engine: engine, acc: access{auth: auth, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for tasks_delete_all.
func (t *TasksDeleteAllTool) Definition() mcp.Tool {
	return mcp.NewTool("tasks_delete_all",
		mcp.WithDescription("Delete every task of a project. Locks do not apply. This cannot be undone."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		userIDOption,
	)
}

// Handle processes the tasks_delete_all tool call.
func (t *TasksDeleteAllTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if denied := t.acc.check(ctx, req, projectID, projects.LevelWrite); denied != nil {
		return denied, nil
	}
	n, err := t.engine.DeleteAllTasks(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"status": "success", "deleted": n}), nil
}

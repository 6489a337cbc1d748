package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/taskpad/internal/projects"
)

// ProjectStore is what the project tools need from the registry.
type ProjectStore interface {
	Create(ctx context.Context, projectID, name, ownerID string) (*projects.Project, error)
	Grant(ctx context.Context, projectID, actorID, userID string, level projects.Level) error
}

// ProjectCreateTool handles the project_create MCP tool.
type ProjectCreateTool struct {
	store ProjectStore
	acc   access
}

func NewProjectCreateTool(store ProjectStore, defaultUser string) *ProjectCreateTool {
	return &ProjectCreateTool{store: store, acc: access{defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for project_create.
func (t *ProjectCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("project_create",
		mcp.WithDescription("Create a project. The calling user becomes its owner with write access."),
		mcp.WithString("project_id",
			mcp.Description("Project ID to use. Generated when omitted."),
		),
		mcp.WithString("name",
			mcp.Description("Human-readable project name"),
		),
		mcp.WithString("user_id",
			mcp.Description("Owner user ID (defaults to the server's default user)"),
		),
	)
}

// Handle processes the project_create tool call.
func (t *ProjectCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := t.store.Create(ctx, stringArg(req, "project_id"), stringArg(req, "name"), t.acc.user(req))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

// ─── ProjectGrantTool ───────────────────────────────────────────────────

// ProjectGrantTool handles the project_grant MCP tool.
type ProjectGrantTool struct {
	store ProjectStore
	acc   access
}

func NewProjectGrantTool(store ProjectStore, defaultUser string) *ProjectGrantTool {
	return &ProjectGrantTool{store: store, acc: access{defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for project_grant.
func (t *ProjectGrantTool) Definition() mcp.Tool {
	return mcp.NewTool("project_grant",
		mcp.WithDescription("Grant another user read or write access to a project. Only the owner may grant."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("target_user_id", mcp.Required(), mcp.Description("User receiving the grant")),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("Access level"),
			mcp.Enum(string(projects.LevelRead), string(projects.LevelWrite)),
		),
		mcp.WithString("user_id", mcp.Description("Acting user ID (must be the owner)")),
	)
}

// Handle processes the project_grant tool call.
func (t *ProjectGrantTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := stringArg(req, "project_id")
	if projectID == "" {
		return failure(projects.ErrProjectNotFound.Error()), nil
	}
	level, err := projects.ParseLevel(stringArg(req, "level"))
	if err != nil {
		return errorResult(err), nil
	}
	target := stringArg(req, "target_user_id")
	if err := t.store.Grant(ctx, projectID, t.acc.user(req), target, level); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{
		"status":     "success",
		"project_id": projectID,
		"user_id":    target,
		"level":      string(level),
	}), nil
}

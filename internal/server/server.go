// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it opens the database, builds the stores,
// the provider registry and the run orchestrator, and registers tools,
// prompts and resources. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/taskpad/internal/config"
	"github.com/HendryAvila/taskpad/internal/files"
	"github.com/HendryAvila/taskpad/internal/logging"
	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/prompts"
	"github.com/HendryAvila/taskpad/internal/providers"
	"github.com/HendryAvila/taskpad/internal/resources"
	"github.com/HendryAvila/taskpad/internal/runs"
	"github.com/HendryAvila/taskpad/internal/scratchpad"
	"github.com/HendryAvila/taskpad/internal/storage"
	"github.com/HendryAvila/taskpad/internal/tasks"
	"github.com/HendryAvila/taskpad/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// drainTimeout bounds how long shutdown waits for background runs.
const drainTimeout = 30 * time.Second

// Options carries what New needs beyond the config.
type Options struct {
	Logger *slog.Logger
	Getenv func(string) string

	// Registry replaces the provider registry built from config.
	Registry *providers.Registry
}

// New creates and configures the MCP server with all tools, prompts and
// resources registered.
//
// The returned cleanup function waits for in-flight subagent runs, then
// closes the database. It is always non-nil and safe to call.
func New(cfg config.Config, opts Options) (*server.MCPServer, func(), error) {
	logger := logging.Or(opts.Logger)
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	// --- Create shared dependencies ---

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, noop, fmt.Errorf("opening database: %w", err)
	}

	projectStore := projects.NewStore(db.Gorm())
	engine := tasks.NewEngine(db.SQL(), logger.With("component", "tasks"))
	pads := scratchpad.NewStore(db.SQL(), cfg.Scratchpad.IDAttempts, logger.With("component", "scratchpad"))

	registry := opts.Registry
	if registry == nil {
		registry = providers.NewRegistry(cfg, getenv)
	}

	orch := runs.NewOrchestrator(runs.Options{
		Runs:         runs.NewStore(db.Gorm()),
		Scratchpads:  pads,
		Providers:    registry,
		Projects:     projectStore,
		Files:        files.NewDirResolver(cfg.UploadsDir()),
		MCPServers:   cfg.MCPServers,
		SoftDeadline: cfg.SoftDeadline(),
		Getenv:       getenv,
		Logger:       logger.With("component", "runs"),
	})

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := orch.Wait(ctx); err != nil {
			logger.Warn("shutdown with runs still in flight", "error", err)
		}
		if err := db.Close(); err != nil {
			logger.Warn("database close failed", "error", err)
		}
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"taskpad",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	s.AddTools(buildTools(toolDeps{
		projects:    projectStore,
		engine:      engine,
		scratchpads: pads,
		runner:      orch,
		defaultUser: cfg.DefaultUser,
	})...)

	// --- Register prompts ---

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	mcpNames := make([]string, 0, len(cfg.MCPServers))
	for _, m := range cfg.MCPServers {
		mcpNames = append(mcpNames, m.Name)
	}
	resourceHandler := resources.NewHandler(registry, mcpNames)
	s.AddResource(resourceHandler.ProvidersResource(), resourceHandler.HandleProviders)

	logger.Info("server ready",
		"db", cfg.DBPath(),
		"providers", len(cfg.Providers),
		"default_provider", cfg.DefaultProvider,
		"mcp_servers", len(cfg.MCPServers),
	)
	return s, cleanup, nil
}

type toolDeps struct {
	projects    *projects.Store
	engine      *tasks.Engine
	scratchpads *scratchpad.Store
	runner      tools.Runner
	defaultUser string
}

// buildTools constructs every tool handler.
func buildTools(d toolDeps) []server.ServerTool {
	user := d.defaultUser
	var out []server.ServerTool
	add := func(def mcp.Tool, h server.ToolHandlerFunc) {
		out = append(out, server.ServerTool{Tool: def, Handler: h})
	}

	// --- Project tools ---

	projectCreate := tools.NewProjectCreateTool(d.projects, user)
	add(projectCreate.Definition(), projectCreate.Handle)

	projectGrant := tools.NewProjectGrantTool(d.projects, user)
	add(projectGrant.Definition(), projectGrant.Handle)

	// --- Task tools ---

	tasksAdd := tools.NewTasksAddTool(d.engine, d.projects, user)
	add(tasksAdd.Definition(), tasksAdd.Handle)

	tasksSetState := tools.NewTasksSetStateTool(d.engine, d.projects, user)
	add(tasksSetState.Definition(), tasksSetState.Handle)

	tasksList := tools.NewTasksListTool(d.engine, d.projects, user)
	add(tasksList.Definition(), tasksList.Handle)

	tasksDeleteAll := tools.NewTasksDeleteAllTool(d.engine, d.projects, user)
	add(tasksDeleteAll.Definition(), tasksDeleteAll.Handle)

	// --- Scratchpad tools ---

	padInit := tools.NewScratchpadInitTool(d.scratchpads, d.projects, user)
	add(padInit.Definition(), padInit.Handle)

	padGet := tools.NewScratchpadGetTool(d.scratchpads, d.projects, user)
	add(padGet.Definition(), padGet.Handle)

	padList := tools.NewScratchpadListTool(d.scratchpads, d.projects, user)
	add(padList.Definition(), padList.Handle)

	padUpdate := tools.NewScratchpadUpdateTasksTool(d.scratchpads, d.projects, user)
	add(padUpdate.Definition(), padUpdate.Handle)

	padMemory := tools.NewScratchpadAppendMemoryTool(d.scratchpads, d.projects, user)
	add(padMemory.Definition(), padMemory.Handle)

	// --- Subagent tools ---

	subagentRun := tools.NewSubagentRunTool(d.runner, user)
	add(subagentRun.Definition(), subagentRun.Handle)

	subagentStatus := tools.NewSubagentRunStatusTool(d.runner, d.projects, user)
	add(subagentStatus.Definition(), subagentStatus.Handle)

	return out
}

// noop is the cleanup returned when construction fails.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use taskpad.
func serverInstructions() string {
	return `You have access to taskpad, a task tracker with scratchpads and subagents.

## TASK TREE

Projects hold a tree of tasks. Add tasks with tasks_add (parent_id builds the
tree). Change them with tasks_set_state, selecting by match_ids and/or
match_text. Status changes cascade to the whole subtree.

Completed and archived tasks are LOCKED:
- A locked task accepts only a status change back to pending or in_progress.
- Anything under a locked ancestor rejects every change, including unlocks.
  Unlock the ancestor first.

tasks_set_state can partially succeed. Always read changed_ids, not_matched
and forbidden.

## SCRATCHPADS

A scratchpad is a working set of at most 6 tasks plus a shared common memory.
Create one with scratchpad_init, add shared context with
scratchpad_append_memory, and edit entries with scratchpad_update_tasks.

## SUBAGENTS

subagent_run sends one scratchpad task to an inference provider. The output is
appended to that task's scratchpad and comments fields. Runs that take longer
than a few seconds return status in_progress with a run_id: poll
subagent_run_status until success or failure, then read the scratchpad.

The optional tools argument asks the provider for grounding (web search),
code_execution or url_context; "all" requests everything the provider
supports. Unsupported tools fail the run up front. The taskpad://providers
resource lists providers, their capabilities and configured MCP servers.

## ACCESS

Every tool takes an optional user_id. Reads need read access to the project,
changes need write access. Owners grant access with project_grant.`
}

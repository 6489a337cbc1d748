package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/taskpad/internal/config"
	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/runs"
	"github.com/HendryAvila/taskpad/internal/scratchpad"
	"github.com/HendryAvila/taskpad/internal/storage"
	"github.com/HendryAvila/taskpad/internal/tasks"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

type nopRunner struct{}

func (nopRunner) RunScratchpadSubagent(context.Context, string, runs.RunRequest) runs.Result {
	return runs.Result{Status: runs.StatusSuccess}
}

func (nopRunner) GetRunStatus(context.Context, string, string) (*runs.Run, error) {
	return nil, runs.ErrRunNotFound
}

func testTools(t *testing.T) map[string]server.ServerTool {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "taskpad.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	out := make(map[string]server.ServerTool)
	for _, st := range buildTools(toolDeps{
		projects:    projects.NewStore(db.Gorm()),
		engine:      tasks.NewEngine(db.SQL(), nil),
		scratchpads: scratchpad.NewStore(db.SQL(), 10, nil),
		runner:      nopRunner{},
		defaultUser: "local",
	}) {
		if _, dup := out[st.Tool.Name]; dup {
			t.Errorf("tool %s registered twice", st.Tool.Name)
		}
		out[st.Tool.Name] = st
	}
	return out
}

func TestBuildTools_All(t *testing.T) {
	registered := testTools(t)
	for _, name := range []string{
		"project_create", "project_grant",
		"tasks_add", "tasks_set_state", "tasks_list", "tasks_delete_all",
		"scratchpad_init", "scratchpad_get", "scratchpad_list", "scratchpad_update_tasks", "scratchpad_append_memory",
		"subagent_run", "subagent_run_status",
	} {
		if _, ok := registered[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
	if len(registered) != 13 {
		t.Errorf("registered %d tools, want 13", len(registered))
	}
}

func TestBuildTools_DefaultUserOwnsProject(t *testing.T) {
	create := testTools(t)["project_create"]

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_id": "p1"}
	res, err := create.Handler(context.Background(), req)
	if err != nil || res.IsError {
		t.Fatalf("project_create: %v %+v", err, res)
	}
	text := res.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, `"owner_id":"local"`) {
		t.Errorf("expected default user as owner: %s", text)
	}
}

func TestNew(t *testing.T) {
	s, cleanup, err := New(testConfig(t), Options{Getenv: func(string) string { return "" }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cleanup()
	if s == nil {
		t.Fatal("nil server")
	}
}

func TestNew_BadDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = filepath.Join("/dev/null", "nope")
	_, cleanup, err := New(cfg, Options{})
	if err == nil {
		t.Fatal("expected error for unusable data dir")
	}
	cleanup()
}

func TestServerInstructions(t *testing.T) {
	text := serverInstructions()
	for _, want := range []string{"tasks_set_state", "subagent_run_status", "LOCKED"} {
		if !strings.Contains(text, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}

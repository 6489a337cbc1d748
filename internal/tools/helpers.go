// Package tools implements the MCP tool handlers.
//
// Each tool follows the same pattern:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a JSON text result
//
// Domain failures never surface as Go errors. They come back as tool
// results shaped {"status":"failure","error":"<code>"}.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/runs"
	"github.com/HendryAvila/taskpad/internal/scratchpad"
	"github.com/HendryAvila/taskpad/internal/tasks"
)

const codeInvalidArguments = "invalid_arguments"

// Authorizer checks a user's level on a project.
type Authorizer interface {
	Authorize(ctx context.Context, projectID, userID string, need projects.Level) error
}

// access resolves the calling user and checks their level.
type access struct {
	auth        Authorizer
	defaultUser string
}

func (a access) user(req mcp.CallToolRequest) string {
	if u := strings.TrimSpace(req.GetString("user_id", "")); u != "" {
		return u
	}
	return a.defaultUser
}

// check returns a failure result when the caller may not act on the
// project, nil otherwise.
func (a access) check(ctx context.Context, req mcp.CallToolRequest, projectID string, need projects.Level) *mcp.CallToolResult {
	if projectID == "" {
		return failure(tasks.ErrEmptyProject.Error())
	}
	if a.auth == nil {
		return nil
	}
	if err := a.auth.Authorize(ctx, projectID, a.user(req), need); err != nil {
		return errorResult(err)
	}
	return nil
}

// ─── Results ────────────────────────────────────────────────────────────

func failure(code string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]string{"status": "failure", "error": code})
	return mcp.NewToolResultError(string(data))
}

func invalidArg(key string, err error) *mcp.CallToolResult {
	if err == nil {
		return failure(fmt.Sprintf("%s: %s", codeInvalidArguments, key))
	}
	return failure(fmt.Sprintf("%s: %s: %v", codeInvalidArguments, key, err))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return failure(runs.CodeInternal)
	}
	return mcp.NewToolResultText(string(data))
}

// knownErrors are the sentinels whose messages are wire codes.
var knownErrors = []error{
	projects.ErrProjectNotFound,
	projects.ErrProjectExists,
	projects.ErrPermissionDenied,
	projects.ErrInvalidLevel,
	projects.ErrMissingUser,
	tasks.ErrEmptyProject,
	tasks.ErrInvalidStatus,
	tasks.ErrNoMatchers,
	tasks.ErrNothingToUpdate,
	tasks.ErrTaskNotFound,
	scratchpad.ErrEmptyProject,
	scratchpad.ErrMissingID,
	scratchpad.ErrScratchpadNotFound,
	scratchpad.ErrScratchpadExists,
	scratchpad.ErrTaskNotFound,
	scratchpad.ErrIDExhausted,
	scratchpad.ErrInvalidStatus,
	runs.ErrRunNotFound,
}

// errorResult maps a store error onto its wire code.
func errorResult(err error) *mcp.CallToolResult {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return failure(known.Error())
		}
	}
	return failure(runs.CodeInternal)
}

// ─── Arguments ──────────────────────────────────────────────────────────

func stringArg(req mcp.CallToolRequest, key string) string {
	return strings.TrimSpace(req.GetString(key, ""))
}

// optionalString distinguishes an absent argument from an empty one.
func optionalString(req mcp.CallToolRequest, key string) *string {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}
	return &s
}

// decodeArg unmarshals an argument that may arrive as a native JSON value
// or as a JSON-encoded string. It reports whether the key was present.
func decodeArg(req mcp.CallToolRequest, key string, dst any) (bool, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return false, nil
	}
	var data []byte
	if s, isString := raw.(string); isString {
		s = strings.TrimSpace(s)
		if s == "" {
			return false, nil
		}
		if !gjson.Valid(s) {
			return true, errors.New("not valid JSON")
		}
		data = []byte(s)
	} else {
		b, err := json.Marshal(raw)
		if err != nil {
			return true, err
		}
		data = b
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, err
	}
	return true, nil
}

// stringsArg reads a list of strings. A native array or a string holding a
// valid JSON array yields its elements. Any other string, including one that
// merely starts with "[", yields itself.
func stringsArg(req mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	if s, isString := raw.(string); isString {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if !gjson.Valid(s) || !gjson.Parse(s).IsArray() {
			return []string{s}, nil
		}
	}
	var out []string
	if _, err := decodeArg(req, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Package runs executes scratchpad tasks against inference providers and
// keeps the durable run records callers poll.
package runs

import "errors"

// Status is a run lifecycle state. pending -> in_progress -> success|failure.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Error codes returned in Result.Error.
const (
	CodeMissingFields      = "missing_required_fields"
	CodeProjectNotFound    = "project_not_found"
	CodePermissionDenied   = "permission_denied"
	CodeScratchpadNotFound = "scratchpad_not_found"
	CodeTaskNotFound       = "task_not_found_in_scratchpad"
	CodeMCPServersNotFound = "mcp_requested_servers_not_found"
	CodeFileNotFound       = "file_not_found"
	CodeUnreadableFile     = "file_unreadable"
	CodeInternal           = "internal_error"
	CodeRunNotFound        = "run_not_found"
	CodeWriteBackFailed    = "scratchpad_write_failed"
)

var ErrRunNotFound = errors.New(CodeRunNotFound)

// Run is the durable record of one execution attempt.
type Run struct {
	RunID         string   `json:"run_id"`
	ProjectID     string   `json:"project_id"`
	ScratchpadID  string   `json:"scratchpad_id"`
	TaskID        string   `json:"task_id"`
	UserID        string   `json:"user_id"`
	Provider      string   `json:"provider"`
	Model         string   `json:"model,omitempty"`
	Tools         []string `json:"tools"`
	Status        Status   `json:"status"`
	Error         string   `json:"error,omitempty"`
	OutputPreview string   `json:"output_preview,omitempty"`
	CreatedAt     string   `json:"created_at"`
	StartedAt     string   `json:"started_at,omitempty"`
	FinishedAt    string   `json:"finished_at,omitempty"`
	UpdatedAt     string   `json:"updated_at"`
}

// RunRequest asks for one task of a scratchpad to be run by a provider.
type RunRequest struct {
	ProjectID    string   `json:"project_id"`
	ScratchpadID string   `json:"scratchpad_id"`
	TaskID       string   `json:"task_id"`
	Prompt       string   `json:"prompt"`
	SysPrompt    string   `json:"sys_prompt,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	MCPServers   []string `json:"mcp_servers,omitempty"`
	FileID       string   `json:"file_id,omitempty"`
}

// Result is what a caller of RunScratchpadSubagent gets back.
type Result struct {
	RunID  string `json:"run_id,omitempty"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	Output string `json:"output,omitempty"`
}

func failure(runID, code string) Result {
	return Result{RunID: runID, Status: StatusFailure, Error: code}
}

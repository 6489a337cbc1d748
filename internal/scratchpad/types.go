// Package scratchpad stores small per-project task buffers that subagent
// runs work from.
//
// A scratchpad holds at most MaxTasks entries plus a shared common memory
// blob that only grows. Entries are kept as a JSON array on the row.
package scratchpad

import (
	"errors"
	"fmt"
	"strings"
)

// MaxTasks caps the entries kept by Init. Extra candidates are dropped
// without being reported.
const MaxTasks = 6

var (
	ErrEmptyProject       = errors.New("missing_project_id")
	ErrMissingID          = errors.New("missing_scratchpad_id")
	ErrScratchpadNotFound = errors.New("scratchpad_not_found")
	ErrScratchpadExists   = errors.New("scratchpad_exists")
	ErrTaskNotFound       = errors.New("task_not_found_in_scratchpad")
	ErrIDExhausted        = errors.New("scratchpad_id_exhausted")
	ErrInvalidStatus      = errors.New("invalid_status")
)

// EntryStatus is the state of one scratchpad entry.
type EntryStatus string

const (
	StatusOpen     EntryStatus = "open"
	StatusComplete EntryStatus = "complete"
)

// ParseEntryStatus accepts open or complete; empty means open.
func ParseEntryStatus(s string) (EntryStatus, error) {
	switch EntryStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusOpen:
		return StatusOpen, nil
	case StatusComplete:
		return StatusComplete, nil
	default:
		return "", fmt.Errorf("%w: %q (want open or complete)", ErrInvalidStatus, s)
	}
}

// Entry is one task in a scratchpad. Scratchpad and Comments are written
// by subagent runs.
type Entry struct {
	TaskID     string      `json:"task_id"`
	Status     EntryStatus `json:"status"`
	TaskInfo   string      `json:"task_info"`
	Scratchpad string      `json:"scratchpad"`
	Comments   string      `json:"comments"`
}

// Scratchpad is a stored buffer.
type Scratchpad struct {
	ProjectID    string  `json:"project_id"`
	ScratchpadID string  `json:"scratchpad_id"`
	Tasks        []Entry `json:"tasks"`
	CommonMemory string  `json:"common_memory"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// Find returns the entry with taskID, or nil.
func (s *Scratchpad) Find(taskID string) *Entry {
	for i := range s.Tasks {
		if s.Tasks[i].TaskID == taskID {
			return &s.Tasks[i]
		}
	}
	return nil
}

// InvalidEntry reports a rejected Init candidate or update.
type InvalidEntry struct {
	Index  int    `json:"index"`
	TaskID string `json:"task_id,omitempty"`
	Reason string `json:"reason"`
}

type InitResult struct {
	Scratchpad *Scratchpad    `json:"scratchpad"`
	Invalid    []InvalidEntry `json:"invalid"`
}

// EntryUpdate merges the non-nil fields into the entry keyed by TaskID.
// ProjectID is accepted on input and always ignored.
type EntryUpdate struct {
	TaskID     string  `json:"task_id"`
	ProjectID  *string `json:"project_id,omitempty"`
	Status     *string `json:"status,omitempty"`
	TaskInfo   *string `json:"task_info,omitempty"`
	Scratchpad *string `json:"scratchpad,omitempty"`
	Comments   *string `json:"comments,omitempty"`
}

type UpdateResult struct {
	Scratchpad *Scratchpad    `json:"scratchpad"`
	Updated    []string       `json:"updated"`
	NotFound   []string       `json:"not_found"`
	Invalid    []InvalidEntry `json:"invalid,omitempty"`
}

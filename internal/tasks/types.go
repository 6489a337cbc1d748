// Package tasks is the task hierarchy engine: per-project task forests with
// status-based locking and cascading bulk updates.
//
// A task that is completed or archived is locked. Locked tasks reject every
// edit except moving their own status back to pending or in_progress. A task
// under a locked ancestor rejects everything, unlocks included. Status changes
// cascade to the whole subtree.
package tasks

import (
	"fmt"
	"strings"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusArchived:   true,
}

// ParseStatus normalizes and validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[st] {
		return "", fmt.Errorf("%w: %q (want pending, in_progress, completed or archived)", ErrInvalidStatus, s)
	}
	return st, nil
}

// Locked reports whether the status freezes the task.
func (s Status) Locked() bool {
	return s == StatusCompleted || s == StatusArchived
}

// Unlocks reports whether moving a locked task to s is a permitted unlock.
func (s Status) Unlocks() bool {
	return s == StatusPending || s == StatusInProgress
}

// Task is one node of a project's task forest.
type Task struct {
	ProjectID string  `json:"project_id"`
	TaskID    string  `json:"task_id"`
	TaskInfo  string  `json:"task_info"`
	ParentID  *string `json:"parent_id,omitempty"`
	Status    Status  `json:"status"`
	ExtraNote *string `json:"extra_note,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`

	seq int64
}

// NewTask is one item of an AddTasks call.
type NewTask struct {
	TaskID    string  `json:"task_id"`
	TaskInfo  string  `json:"task_info"`
	ParentID  *string `json:"parent_id,omitempty"`
	Status    string  `json:"status,omitempty"`
	ExtraNote *string `json:"extra_note,omitempty"`
}

// InvalidTask reports an AddTasks item that failed validation.
type InvalidTask struct {
	Index  int    `json:"index"`
	TaskID string `json:"task_id,omitempty"`
	Reason string `json:"reason"`
}

// AddResult is the outcome of AddTasks.
type AddResult struct {
	Added   []string      `json:"added"`
	Exists  []string      `json:"exists"`
	Invalid []InvalidTask `json:"invalid,omitempty"`
}

// StateUpdate selects tasks and describes the change to apply to each.
// Nil fields are left untouched. An empty ParentID clears the parent.
type StateUpdate struct {
	MatchIDs  []string `json:"match_ids,omitempty"`
	MatchText []string `json:"match_text,omitempty"`
	State     *string  `json:"state,omitempty"`
	TaskInfo  *string  `json:"task_info,omitempty"`
	ParentID  *string  `json:"parent_id,omitempty"`
	ExtraNote *string  `json:"extra_note,omitempty"`
}

func (u StateUpdate) hasFieldChanges() bool {
	return u.TaskInfo != nil || u.ParentID != nil || u.ExtraNote != nil
}

// StateResult is the per-item outcome of SetTasksState. ChangedIDs lists
// the directly targeted tasks that were updated; Cascaded lists descendants
// whose status followed.
type StateResult struct {
	ChangedIDs []string `json:"changed_ids"`
	Cascaded   []string `json:"cascaded,omitempty"`
	NotMatched []string `json:"not_matched"`
	Forbidden  []string `json:"forbidden"`
}

// ListFilter narrows ListTasks.
type ListFilter struct {
	Status string `json:"status,omitempty"`
	RootID string `json:"root_id,omitempty"`
}

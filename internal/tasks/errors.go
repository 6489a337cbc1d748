package tasks

import "errors"

// Sentinel errors. Their messages double as the machine codes returned to
// callers.
var (
	ErrEmptyProject    = errors.New("missing_project_id")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrNoMatchers      = errors.New("missing_match_criteria")
	ErrNothingToUpdate = errors.New("nothing_to_update")
	ErrTaskNotFound    = errors.New("task_not_found")
)

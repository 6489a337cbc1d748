package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/HendryAvila/taskpad/internal/storage"
)

// Store persists run records. Terminal rows are never rewritten.
type Store struct {
	db  *gorm.DB
	now func() string
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: storage.Now}
}

// Create inserts a pending run.
func (s *Store) Create(ctx context.Context, r *Run) error {
	tools, err := json.Marshal(nonNil(r.Tools))
	if err != nil {
		return fmt.Errorf("runs: encode tools: %w", err)
	}
	now := s.now()
	r.Status = StatusPending
	r.CreatedAt, r.UpdatedAt = now, now
	row := storage.SubagentRun{
		RunID:        r.RunID,
		ProjectID:    r.ProjectID,
		ScratchpadID: r.ScratchpadID,
		TaskID:       r.TaskID,
		UserID:       r.UserID,
		Provider:     r.Provider,
		Model:        r.Model,
		ToolsJSON:    string(tools),
		Status:       string(StatusPending),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("runs: create: %w", err)
	}
	return nil
}

// MarkInProgress moves a pending run to in_progress.
func (s *Store) MarkInProgress(ctx context.Context, runID string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Model(&storage.SubagentRun{}).
		Where("run_id = ? AND status = ?", runID, string(StatusPending)).
		Updates(map[string]any{
			"status":     string(StatusInProgress),
			"started_at": now,
			"updated_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("runs: mark in progress: %w", err)
	}
	return nil
}

// Finish sets a terminal status. It reports false when the run was already
// terminal (or does not exist) and nothing was written.
func (s *Store) Finish(ctx context.Context, runID string, status Status, errMsg, preview string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("runs: finish with non-terminal status %q", status)
	}
	now := s.now()
	res := s.db.WithContext(ctx).Model(&storage.SubagentRun{}).
		Where("run_id = ? AND status NOT IN ?", runID, []string{string(StatusSuccess), string(StatusFailure)}).
		Updates(map[string]any{
			"status":         string(status),
			"error":          errMsg,
			"output_preview": preview,
			"finished_at":    now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("runs: finish: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Get loads a run scoped to its project.
func (s *Store) Get(ctx context.Context, projectID, runID string) (*Run, error) {
	var row storage.SubagentRun
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND run_id = ?", strings.TrimSpace(projectID), strings.TrimSpace(runID)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("runs: get: %w", err)
	}
	return toRun(row), nil
}

func toRun(row storage.SubagentRun) *Run {
	r := &Run{
		RunID:         row.RunID,
		ProjectID:     row.ProjectID,
		ScratchpadID:  row.ScratchpadID,
		TaskID:        row.TaskID,
		UserID:        row.UserID,
		Provider:      row.Provider,
		Model:         row.Model,
		Status:        Status(row.Status),
		Error:         row.Error,
		OutputPreview: row.OutputPreview,
		CreatedAt:     row.CreatedAt,
		StartedAt:     row.StartedAt,
		FinishedAt:    row.FinishedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.ToolsJSON), &r.Tools); err != nil || r.Tools == nil {
		r.Tools = []string{}
	}
	return r
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

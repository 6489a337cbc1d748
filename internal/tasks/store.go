package tasks

import (
	"context"
	"database/sql"
	"fmt"
)

type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const taskColumns = `project_id, task_id, seq, task_info, parent_id, status, extra_note, created_at, updated_at`

func loadProject(ctx context.Context, db execQueryer, projectID string) ([]*Task, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY seq ASC, task_id ASC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("tasks: load project: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(rows *sql.Rows) (*Task, error) {
	var (
		t         Task
		status    string
		parentID  sql.NullString
		extraNote sql.NullString
	)
	if err := rows.Scan(&t.ProjectID, &t.TaskID, &t.seq, &t.TaskInfo, &parentID,
		&status, &extraNote, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	if extraNote.Valid {
		t.ExtraNote = &extraNote.String
	}
	return &t, nil
}

func insertTask(ctx context.Context, db execQueryer, t *Task) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.TaskID, t.seq, t.TaskInfo, nullable(t.ParentID),
		string(t.Status), nullable(t.ExtraNote), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tasks: insert %s: %w", t.TaskID, err)
	}
	return nil
}

func updateTask(ctx context.Context, db execQueryer, t *Task) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tasks SET task_info = ?, parent_id = ?, status = ?, extra_note = ?, updated_at = ?
		 WHERE project_id = ? AND task_id = ?`,
		t.TaskInfo, nullable(t.ParentID), string(t.Status), nullable(t.ExtraNote), t.UpdatedAt,
		t.ProjectID, t.TaskID)
	if err != nil {
		return fmt.Errorf("tasks: update %s: %w", t.TaskID, err)
	}
	return nil
}

func nextSeq(tasks []*Task) int64 {
	var max int64
	for _, t := range tasks {
		if t.seq > max {
			max = t.seq
		}
	}
	return max + 1
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

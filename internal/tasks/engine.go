package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/HendryAvila/taskpad/internal/keylock"
	"github.com/HendryAvila/taskpad/internal/logging"
	"github.com/HendryAvila/taskpad/internal/storage"
)

// Engine applies task mutations. Mutations on one project are serialized
// in-process and each call commits in a single transaction, so the lock
// check and the write it guards see the same state.
type Engine struct {
	db     *sql.DB
	locks  keylock.Map
	now    func() string
	logger *slog.Logger
}

func NewEngine(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{db: db, now: storage.Now, logger: logging.Or(logger)}
}

// AddTasks inserts every task whose task_id is new to the project. Existing
// ids, including repeats within the same call, land in Exists untouched.
func (e *Engine) AddTasks(ctx context.Context, projectID string, items []NewTask) (*AddResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrEmptyProject
	}
	res := &AddResult{Added: []string{}, Exists: []string{}}

	err := e.withProject(ctx, projectID, func(tx *sql.Tx, f *forest) error {
		seq := nextSeq(f.ordered)
		now := e.now()
		for i, item := range items {
			id := strings.TrimSpace(item.TaskID)
			if id == "" {
				res.Invalid = append(res.Invalid, InvalidTask{Index: i, Reason: "missing task_id"})
				continue
			}
			info := strings.TrimSpace(item.TaskInfo)
			if info == "" {
				res.Invalid = append(res.Invalid, InvalidTask{Index: i, TaskID: id, Reason: "missing task_info"})
				continue
			}
			status := StatusPending
			if strings.TrimSpace(item.Status) != "" {
				st, err := ParseStatus(item.Status)
				if err != nil {
					res.Invalid = append(res.Invalid, InvalidTask{Index: i, TaskID: id, Reason: err.Error()})
					continue
				}
				status = st
			}
			if _, ok := f.byID[id]; ok {
				res.Exists = append(res.Exists, id)
				continue
			}

			t := &Task{
				ProjectID: projectID,
				TaskID:    id,
				TaskInfo:  info,
				ParentID:  trimmedPtr(item.ParentID),
				Status:    status,
				ExtraNote: item.ExtraNote,
				CreatedAt: now,
				UpdatedAt: now,
				seq:       seq,
			}
			if err := insertTask(ctx, tx, t); err != nil {
				return err
			}
			seq++
			f.byID[id] = t
			f.ordered = append(f.ordered, t)
			res.Added = append(res.Added, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("tasks added", "project_id", projectID,
		"added", len(res.Added), "exists", len(res.Exists), "invalid", len(res.Invalid))
	return res, nil
}

// SetTasksState resolves targets by id and by case-insensitive substring of
// task_info, then applies the update to each target in resolution order:
// ids first as given, then text matches in creation order.
func (e *Engine) SetTasksState(ctx context.Context, projectID string, u StateUpdate) (*StateResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrEmptyProject
	}
	ids := nonEmpty(u.MatchIDs)
	terms := nonEmpty(u.MatchText)
	if len(ids) == 0 && len(terms) == 0 {
		return nil, ErrNoMatchers
	}
	var newStatus Status
	if u.State != nil {
		st, err := ParseStatus(*u.State)
		if err != nil {
			return nil, err
		}
		newStatus = st
	}
	if u.State == nil && !u.hasFieldChanges() {
		return nil, ErrNothingToUpdate
	}

	res := &StateResult{ChangedIDs: []string{}, NotMatched: []string{}, Forbidden: []string{}}

	err := e.withProject(ctx, projectID, func(tx *sql.Tx, f *forest) error {
		targets := resolveTargets(f, ids, terms, res)
		dirty := make(map[string]*Task)
		now := e.now()

		for _, t := range targets {
			if !permitted(f, t, u, newStatus) {
				res.Forbidden = append(res.Forbidden, t.TaskID)
				continue
			}
			applyUpdate(t, u, newStatus)
			t.UpdatedAt = now
			dirty[t.TaskID] = t
			res.ChangedIDs = append(res.ChangedIDs, t.TaskID)

			if u.ParentID != nil {
				f.reindex()
			}
			// A requested state always reaches the whole subtree, even when
			// the target already has it.
			if u.State != nil {
				for _, id := range f.descendants(t.TaskID) {
					d := f.byID[id]
					d.Status = newStatus
					d.UpdatedAt = now
					dirty[id] = d
					res.Cascaded = append(res.Cascaded, id)
				}
			}
		}

		for _, t := range f.ordered {
			if d, ok := dirty[t.TaskID]; ok {
				if err := updateTask(ctx, tx, d); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("tasks state set", "project_id", projectID,
		"changed", len(res.ChangedIDs), "cascaded", len(res.Cascaded),
		"not_matched", len(res.NotMatched), "forbidden", len(res.Forbidden))
	return res, nil
}

// DeleteAllTasks removes every task of the project and returns how many
// rows went away.
func (e *Engine) DeleteAllTasks(ctx context.Context, projectID string) (int64, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return 0, ErrEmptyProject
	}
	unlock := e.locks.Lock(projectID)
	defer unlock()

	r, err := e.db.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("tasks: delete all: %w", err)
	}
	n, _ := r.RowsAffected()
	e.logger.Info("tasks deleted", "project_id", projectID, "count", n)
	return n, nil
}

// ListTasks returns the project's tasks in creation order. RootID limits
// the result to that task and its descendants.
func (e *Engine) ListTasks(ctx context.Context, projectID string, filter ListFilter) ([]*Task, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrEmptyProject
	}
	var status Status
	if strings.TrimSpace(filter.Status) != "" {
		st, err := ParseStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}

	list, err := loadProject(ctx, e.db, projectID)
	if err != nil {
		return nil, err
	}

	if root := strings.TrimSpace(filter.RootID); root != "" {
		f := newForest(list)
		if _, ok := f.byID[root]; !ok {
			return nil, ErrTaskNotFound
		}
		keep := map[string]bool{root: true}
		for _, id := range f.descendants(root) {
			keep[id] = true
		}
		list = filterTasks(list, func(t *Task) bool { return keep[t.TaskID] })
	}
	if status != "" {
		list = filterTasks(list, func(t *Task) bool { return t.Status == status })
	}
	if list == nil {
		list = []*Task{}
	}
	return list, nil
}

// GetTask returns one task or ErrTaskNotFound.
func (e *Engine) GetTask(ctx context.Context, projectID, taskID string) (*Task, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? AND task_id = ?`,
		strings.TrimSpace(projectID), strings.TrimSpace(taskID))
	if err != nil {
		return nil, fmt.Errorf("tasks: get: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("tasks: get: %w", err)
		}
		return nil, ErrTaskNotFound
	}
	return scanTask(rows)
}

// withProject loads the project's forest inside a transaction while holding
// the project lock, runs fn and commits.
func (e *Engine) withProject(ctx context.Context, projectID string, fn func(tx *sql.Tx, f *forest) error) error {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tasks: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	list, err := loadProject(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if err := fn(tx, newForest(list)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tasks: commit: %w", err)
	}
	return nil
}

// resolveTargets returns the deduplicated target list and records unmatched
// ids and terms on res.
func resolveTargets(f *forest, ids, terms []string, res *StateResult) []*Task {
	var targets []*Task
	seen := make(map[string]bool)
	add := func(t *Task) {
		if !seen[t.TaskID] {
			seen[t.TaskID] = true
			targets = append(targets, t)
		}
	}

	for _, id := range ids {
		t, ok := f.byID[id]
		if !ok {
			res.NotMatched = append(res.NotMatched, id)
			continue
		}
		add(t)
	}
	for _, term := range terms {
		needle := strings.ToLower(term)
		matched := false
		for _, t := range f.ordered {
			if strings.Contains(strings.ToLower(t.TaskInfo), needle) {
				matched = true
				add(t)
			}
		}
		if !matched {
			res.NotMatched = append(res.NotMatched, term)
		}
	}
	return targets
}

// permitted applies the locking rules to one target.
func permitted(f *forest, t *Task, u StateUpdate, newStatus Status) bool {
	if f.ancestorLocked(t.TaskID) {
		return false
	}
	if !t.Status.Locked() {
		return true
	}
	if u.hasFieldChanges() {
		return false
	}
	return u.State != nil && newStatus.Unlocks()
}

func applyUpdate(t *Task, u StateUpdate, newStatus Status) {
	if u.State != nil {
		t.Status = newStatus
	}
	if u.TaskInfo != nil {
		t.TaskInfo = *u.TaskInfo
	}
	if u.ParentID != nil {
		t.ParentID = trimmedPtr(u.ParentID)
	}
	if u.ExtraNote != nil {
		note := *u.ExtraNote
		t.ExtraNote = &note
	}
}

func filterTasks(list []*Task, keep func(*Task) bool) []*Task {
	var out []*Task
	for _, t := range list {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

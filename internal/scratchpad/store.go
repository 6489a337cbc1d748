package scratchpad

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/taskpad/internal/keylock"
	"github.com/HendryAvila/taskpad/internal/logging"
	"github.com/HendryAvila/taskpad/internal/storage"
)

const defaultIDAttempts = 1000

// Store persists scratchpads. Mutations of one scratchpad are serialized
// in-process; concurrent writers of the same entry get last-write-wins.
type Store struct {
	db         *sql.DB
	locks      keylock.Map
	idAttempts int
	newID      func() string
	now        func() string
	logger     *slog.Logger
}

func NewStore(db *sql.DB, idAttempts int, logger *slog.Logger) *Store {
	if idAttempts <= 0 {
		idAttempts = defaultIDAttempts
	}
	return &Store{
		db:         db,
		idAttempts: idAttempts,
		newID:      generateID,
		now:        storage.Now,
		logger:     logging.Or(logger),
	}
}

// generateID returns "sp_" followed by 8 hex characters.
func generateID() string {
	return "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Init creates a scratchpad. With an empty id one is generated, retrying on
// collisions up to the configured bound.
func (s *Store) Init(ctx context.Context, projectID, id string, candidates []Entry) (*InitResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrEmptyProject
	}
	if len(candidates) > MaxTasks {
		candidates = candidates[:MaxTasks]
	}

	res := &InitResult{Invalid: []InvalidEntry{}}
	entries := make([]Entry, 0, len(candidates))
	seen := make(map[string]bool)
	for i, c := range candidates {
		taskID := strings.TrimSpace(c.TaskID)
		info := strings.TrimSpace(c.TaskInfo)
		switch {
		case taskID == "":
			res.Invalid = append(res.Invalid, InvalidEntry{Index: i, Reason: "missing task_id"})
			continue
		case info == "":
			res.Invalid = append(res.Invalid, InvalidEntry{Index: i, TaskID: taskID, Reason: "missing task_info"})
			continue
		case seen[taskID]:
			res.Invalid = append(res.Invalid, InvalidEntry{Index: i, TaskID: taskID, Reason: "duplicate task_id"})
			continue
		}
		status, err := ParseEntryStatus(string(c.Status))
		if err != nil {
			res.Invalid = append(res.Invalid, InvalidEntry{Index: i, TaskID: taskID, Reason: err.Error()})
			continue
		}
		seen[taskID] = true
		entries = append(entries, Entry{
			TaskID:     taskID,
			Status:     status,
			TaskInfo:   info,
			Scratchpad: c.Scratchpad,
			Comments:   c.Comments,
		})
	}

	now := s.now()
	sp := &Scratchpad{
		ProjectID: projectID,
		Tasks:     entries,
		CreatedAt: now,
		UpdatedAt: now,
	}

	id = strings.TrimSpace(id)
	if id != "" {
		sp.ScratchpadID = id
		ok, err := s.insert(ctx, sp)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrScratchpadExists
		}
	} else {
		created := false
		for attempt := 0; attempt < s.idAttempts; attempt++ {
			sp.ScratchpadID = s.newID()
			ok, err := s.insert(ctx, sp)
			if err != nil {
				return nil, err
			}
			if ok {
				created = true
				break
			}
		}
		if !created {
			return nil, ErrIDExhausted
		}
	}

	res.Scratchpad = sp
	s.logger.Debug("scratchpad created", "project_id", projectID,
		"scratchpad_id", sp.ScratchpadID, "tasks", len(entries), "invalid", len(res.Invalid))
	return res, nil
}

// Get loads one scratchpad.
func (s *Store) Get(ctx context.Context, projectID, id string) (*Scratchpad, error) {
	return s.load(ctx, strings.TrimSpace(projectID), strings.TrimSpace(id))
}

// List returns every scratchpad of the project, oldest first.
func (s *Store) List(ctx context.Context, projectID string) ([]*Scratchpad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, scratchpad_id, tasks_json, common_memory, created_at, updated_at
		 FROM scratchpads WHERE project_id = ? ORDER BY created_at ASC, scratchpad_id ASC`,
		strings.TrimSpace(projectID))
	if err != nil {
		return nil, fmt.Errorf("scratchpad: list: %w", err)
	}
	defer rows.Close()

	out := []*Scratchpad{}
	for rows.Next() {
		sp, err := scanScratchpad(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// UpdateTasks merges each update into the entry with the same task_id.
func (s *Store) UpdateTasks(ctx context.Context, projectID, id string, updates []EntryUpdate) (*UpdateResult, error) {
	res := &UpdateResult{Updated: []string{}, NotFound: []string{}}
	sp, err := s.mutate(ctx, projectID, id, func(sp *Scratchpad) (bool, error) {
		changed := false
		for i, u := range updates {
			taskID := strings.TrimSpace(u.TaskID)
			entry := sp.Find(taskID)
			if taskID == "" || entry == nil {
				res.NotFound = append(res.NotFound, taskID)
				continue
			}
			if u.Status != nil {
				st, err := ParseEntryStatus(*u.Status)
				if err != nil {
					res.Invalid = append(res.Invalid, InvalidEntry{Index: i, TaskID: taskID, Reason: err.Error()})
					continue
				}
				entry.Status = st
			}
			if u.TaskInfo != nil {
				entry.TaskInfo = *u.TaskInfo
			}
			if u.Scratchpad != nil {
				entry.Scratchpad = *u.Scratchpad
			}
			if u.Comments != nil {
				entry.Comments = *u.Comments
			}
			res.Updated = append(res.Updated, taskID)
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	res.Scratchpad = sp
	return res, nil
}

// AppendCommonMemory appends the trimmed, non-empty texts to common memory,
// one per line. With nothing to add it returns the scratchpad unchanged.
func (s *Store) AppendCommonMemory(ctx context.Context, projectID, id string, texts []string) (*Scratchpad, error) {
	var parts []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return s.Get(ctx, projectID, id)
	}
	addition := strings.Join(parts, "\n")

	return s.mutate(ctx, projectID, id, func(sp *Scratchpad) (bool, error) {
		switch {
		case sp.CommonMemory == "":
			sp.CommonMemory = addition
		case strings.HasSuffix(sp.CommonMemory, "\n"):
			sp.CommonMemory += addition
		default:
			sp.CommonMemory += "\n" + addition
		}
		return true, nil
	})
}

// AppendToEntry appends blocks to one entry's scratchpad and comments
// fields, separated from prior content by a blank line.
func (s *Store) AppendToEntry(ctx context.Context, projectID, id, taskID, scratch, comments string) (*Scratchpad, error) {
	return s.mutate(ctx, projectID, id, func(sp *Scratchpad) (bool, error) {
		entry := sp.Find(strings.TrimSpace(taskID))
		if entry == nil {
			return false, ErrTaskNotFound
		}
		entry.Scratchpad = appendBlock(entry.Scratchpad, scratch)
		entry.Comments = appendBlock(entry.Comments, comments)
		return true, nil
	})
}

func appendBlock(prior, block string) string {
	if strings.TrimSpace(block) == "" {
		return prior
	}
	if strings.TrimSpace(prior) == "" {
		return block
	}
	return strings.TrimRight(prior, "\n") + "\n\n" + block
}

// mutate runs fn on the loaded scratchpad under its lock and saves the
// result when fn reports a change.
func (s *Store) mutate(ctx context.Context, projectID, id string, fn func(*Scratchpad) (bool, error)) (*Scratchpad, error) {
	projectID = strings.TrimSpace(projectID)
	id = strings.TrimSpace(id)
	if projectID == "" {
		return nil, ErrEmptyProject
	}
	if id == "" {
		return nil, ErrMissingID
	}

	unlock := s.locks.Lock(projectID + "\x00" + id)
	defer unlock()

	sp, err := s.load(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(sp)
	if err != nil {
		return nil, err
	}
	if !changed {
		return sp, nil
	}
	sp.UpdatedAt = s.now()
	if err := s.save(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// insert stores sp unless the id is taken; it reports whether a row was
// written.
func (s *Store) insert(ctx context.Context, sp *Scratchpad) (bool, error) {
	raw, err := json.Marshal(sp.Tasks)
	if err != nil {
		return false, fmt.Errorf("scratchpad: encode tasks: %w", err)
	}
	r, err := s.db.ExecContext(ctx,
		`INSERT INTO scratchpads (project_id, scratchpad_id, tasks_json, common_memory, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(project_id, scratchpad_id) DO NOTHING`,
		sp.ProjectID, sp.ScratchpadID, string(raw), sp.CommonMemory, sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("scratchpad: insert: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("scratchpad: insert: %w", err)
	}
	return n == 1, nil
}

func (s *Store) save(ctx context.Context, sp *Scratchpad) error {
	raw, err := json.Marshal(sp.Tasks)
	if err != nil {
		return fmt.Errorf("scratchpad: encode tasks: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE scratchpads SET tasks_json = ?, common_memory = ?, updated_at = ?
		 WHERE project_id = ? AND scratchpad_id = ?`,
		string(raw), sp.CommonMemory, sp.UpdatedAt, sp.ProjectID, sp.ScratchpadID)
	if err != nil {
		return fmt.Errorf("scratchpad: update: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, projectID, id string) (*Scratchpad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, scratchpad_id, tasks_json, common_memory, created_at, updated_at
		 FROM scratchpads WHERE project_id = ? AND scratchpad_id = ?`,
		projectID, id)
	if err != nil {
		return nil, fmt.Errorf("scratchpad: get: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("scratchpad: get: %w", err)
		}
		return nil, ErrScratchpadNotFound
	}
	return scanScratchpad(rows)
}

func scanScratchpad(rows *sql.Rows) (*Scratchpad, error) {
	var (
		sp  Scratchpad
		raw string
	)
	if err := rows.Scan(&sp.ProjectID, &sp.ScratchpadID, &raw, &sp.CommonMemory, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scratchpad: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &sp.Tasks); err != nil {
		return nil, fmt.Errorf("scratchpad: decode tasks of %s: %w", sp.ScratchpadID, err)
	}
	if sp.Tasks == nil {
		sp.Tasks = []Entry{}
	}
	return &sp, nil
}

// IsNotFound reports whether err means the scratchpad or entry is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScratchpadNotFound) || errors.Is(err, ErrTaskNotFound)
}

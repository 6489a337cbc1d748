// Package projects owns the project registry and per-user permission levels.
//
// Every project has an owner with implicit write access. Other users get
// read or write through explicit grants.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/HendryAvila/taskpad/internal/storage"
)

// Level is a permission level on a project.
type Level string

const (
	LevelNone  Level = ""
	LevelRead  Level = "read"
	LevelWrite Level = "write"
)

var (
	ErrProjectNotFound  = errors.New("project_not_found")
	ErrProjectExists    = errors.New("project_exists")
	ErrPermissionDenied = errors.New("permission_denied")
	ErrInvalidLevel     = errors.New("invalid_level")
	ErrMissingUser      = errors.New("missing_user_id")
)

// Project is the public view of a project row.
type Project struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// ParseLevel validates a level name.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelRead:
		return LevelRead, nil
	case LevelWrite:
		return LevelWrite, nil
	default:
		return LevelNone, ErrInvalidLevel
	}
}

// Allows reports whether l satisfies need.
func (l Level) Allows(need Level) bool {
	switch need {
	case LevelRead:
		return l == LevelRead || l == LevelWrite
	case LevelWrite:
		return l == LevelWrite
	default:
		return true
	}
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create registers a project owned by ownerID. An empty projectID gets a
// generated one.
func (s *Store) Create(ctx context.Context, projectID, name, ownerID string) (*Project, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrMissingUser
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		projectID = uuid.NewString()
	}
	row := storage.Project{
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		OwnerID:   ownerID,
		CreatedAt: storage.Now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("projects: create: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProjectExists
	}
	return toProject(row), nil
}

// Get returns the project or ErrProjectNotFound.
func (s *Store) Get(ctx context.Context, projectID string) (*Project, error) {
	var row storage.Project
	err := s.db.WithContext(ctx).Where("project_id = ?", strings.TrimSpace(projectID)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("projects: get: %w", err)
	}
	return toProject(row), nil
}

// Grant sets userID's level on the project. Only the owner may grant, and
// the owner's own level cannot be changed.
func (s *Store) Grant(ctx context.Context, projectID, actorID, userID string, level Level) error {
	if level != LevelRead && level != LevelWrite {
		return ErrInvalidLevel
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrMissingUser
	}
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != strings.TrimSpace(actorID) {
		return ErrPermissionDenied
	}
	if userID == p.OwnerID {
		return nil
	}
	row := storage.ProjectMember{
		ProjectID: p.ProjectID,
		UserID:    userID,
		Level:     string(level),
		UpdatedAt: storage.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"level":      row.Level,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("projects: grant: %w", err)
	}
	return nil
}

// LevelFor resolves the user's level on the project.
func (s *Store) LevelFor(ctx context.Context, projectID, userID string) (Level, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return LevelNone, err
	}
	userID = strings.TrimSpace(userID)
	if userID == p.OwnerID {
		return LevelWrite, nil
	}
	var m storage.ProjectMember
	err = s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", p.ProjectID, userID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LevelNone, nil
	}
	if err != nil {
		return LevelNone, fmt.Errorf("projects: level: %w", err)
	}
	return Level(m.Level), nil
}

// Authorize returns nil when userID holds at least need on the project,
// ErrProjectNotFound or ErrPermissionDenied otherwise.
func (s *Store) Authorize(ctx context.Context, projectID, userID string, need Level) error {
	lvl, err := s.LevelFor(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !lvl.Allows(need) {
		return ErrPermissionDenied
	}
	return nil
}

func toProject(row storage.Project) *Project {
	return &Project{
		ProjectID: row.ProjectID,
		Name:      row.Name,
		OwnerID:   row.OwnerID,
		CreatedAt: row.CreatedAt,
	}
}

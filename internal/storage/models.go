package storage

type Project struct {
	ProjectID string `gorm:"column:project_id;primaryKey"`
	Name      string `gorm:"column:name;not null;default:''"`
	OwnerID   string `gorm:"column:owner_id;not null"`
	CreatedAt string `gorm:"column:created_at;not null;default:''"`
}

func (Project) TableName() string { return "projects" }

type ProjectMember struct {
	ProjectID string `gorm:"column:project_id;primaryKey"`
	UserID    string `gorm:"column:user_id;primaryKey"`
	Level     string `gorm:"column:level;not null;default:'read'"`
	UpdatedAt string `gorm:"column:updated_at;not null;default:''"`
}

func (ProjectMember) TableName() string { return "project_members" }

// Task rows are read and written with plain SQL by the tasks package; the
// model exists so the table is created alongside the others.
type Task struct {
	ProjectID string  `gorm:"column:project_id;primaryKey"`
	TaskID    string  `gorm:"column:task_id;primaryKey"`
	Seq       int64   `gorm:"column:seq;not null;default:0"`
	TaskInfo  string  `gorm:"column:task_info;not null;default:''"`
	ParentID  *string `gorm:"column:parent_id"`
	Status    string  `gorm:"column:status;not null;default:'pending'"`
	ExtraNote *string `gorm:"column:extra_note"`
	CreatedAt string  `gorm:"column:created_at;not null;default:''"`
	UpdatedAt string  `gorm:"column:updated_at;not null;default:''"`
}

func (Task) TableName() string { return "tasks" }

type Scratchpad struct {
	ProjectID    string `gorm:"column:project_id;primaryKey"`
	ScratchpadID string `gorm:"column:scratchpad_id;primaryKey"`
	TasksJSON    string `gorm:"column:tasks_json;not null;default:'[]'"`
	CommonMemory string `gorm:"column:common_memory;not null;default:''"`
	CreatedAt    string `gorm:"column:created_at;not null;default:''"`
	UpdatedAt    string `gorm:"column:updated_at;not null;default:''"`
}

func (Scratchpad) TableName() string { return "scratchpads" }

type SubagentRun struct {
	RunID         string `gorm:"column:run_id;primaryKey"`
	ProjectID     string `gorm:"column:project_id;not null"`
	ScratchpadID  string `gorm:"column:scratchpad_id;not null;default:''"`
	TaskID        string `gorm:"column:task_id;not null;default:''"`
	UserID        string `gorm:"column:user_id;not null;default:''"`
	Provider      string `gorm:"column:provider;not null;default:''"`
	Model         string `gorm:"column:model;not null;default:''"`
	ToolsJSON     string `gorm:"column:tools_json;not null;default:'[]'"`
	Status        string `gorm:"column:status;not null;default:'pending'"`
	Error         string `gorm:"column:error;not null;default:''"`
	OutputPreview string `gorm:"column:output_preview;not null;default:''"`
	CreatedAt     string `gorm:"column:created_at;not null;default:''"`
	StartedAt     string `gorm:"column:started_at;not null;default:''"`
	FinishedAt    string `gorm:"column:finished_at;not null;default:''"`
	UpdatedAt     string `gorm:"column:updated_at;not null;default:''"`
}

func (SubagentRun) TableName() string { return "subagent_runs" }

package repository

import (
	"context"
	"errors"

	"scribber/internal/model"
)

// Sentinel errors returned by repositories.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStateConflict is returned when a status transition finds the
	// project outside the expected pre-state.
	ErrStateConflict = errors.New("project not in expected state")
	// ErrActiveJob is returned when a project already has a queued or
	// running job.
	ErrActiveJob = errors.New("project already has an active job")
)

// ProjectRepository defines data access for projects. TransitionStatus is
// the only mutation path for the status column: it loads the row under a
// row-level lock, verifies the current status is one of `from`, applies
// `mutate`, and persists, all in one transaction, so concurrent jobs for
// the same project cannot interleave a read-modify-write.
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	GetOwned(ctx context.Context, id, userID int64) (*model.Project, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id int64) error
	TransitionStatus(ctx context.Context, id int64, from []model.ProjectStatus, to model.ProjectStatus, mutate func(*model.Project)) (*model.Project, error)
}

// ModelConfigRepository defines read access to the model catalog.
type ModelConfigRepository interface {
	GetByID(ctx context.Context, id int64) (*model.ModelConfig, error)
	GetActive(ctx context.Context, id int64, modelType model.ModelType) (*model.ModelConfig, error)
	GetDefault(ctx context.Context, modelType model.ModelType) (*model.ModelConfig, error)
	ListActive(ctx context.Context, modelType model.ModelType) ([]model.ModelConfig, error)
	List(ctx context.Context) ([]model.ModelConfig, error)
	Create(ctx context.Context, m *model.ModelConfig) error
}

// UsageLogRepository defines append-only usage records.
type UsageLogRepository interface {
	Create(ctx context.Context, l *model.UsageLog) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.UsageLog, error)
	CountByProject(ctx context.Context, projectID int64) (int64, error)
}

// JobRepository defines the persisted job ledger. CreateActive enforces
// at most one queued/running job per project.
type JobRepository interface {
	CreateActive(ctx context.Context, j *model.Job) error
	SetStatus(ctx context.Context, id int64, status model.JobStatus, attempts int, lastError *string) error
	GetByID(ctx context.Context, id int64) (*model.Job, error)
	ListByProject(ctx context.Context, projectID int64) ([]model.Job, error)
}

// UserRepository defines owner records.
type UserRepository interface {
	EnsureExists(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

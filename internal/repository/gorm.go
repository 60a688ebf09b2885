package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scribber/internal/model"
)

// Repositories bundles all gorm-backed repositories over one database
// handle. Each method call runs in its own transaction or session; no
// mutable state is shared across concurrent job executions.
type Repositories struct {
	Projects ProjectRepository
	Models   ModelConfigRepository
	Usage    UsageLogRepository
	Jobs     JobRepository
	Users    UserRepository
}

// New creates the repository bundle.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Projects: &projectRepo{db: db},
		Models:   &modelConfigRepo{db: db},
		Usage:    &usageLogRepo{db: db},
		Jobs:     &jobRepo{db: db},
		Users:    &userRepo{db: db},
	}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// lockForUpdate applies a row-level lock where the dialect supports it.
// SQLite (used in tests) serializes writers on its own and rejects
// FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

type projectRepo struct {
	db *gorm.DB
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (r *projectRepo) GetOwned(ctx context.Context, id, userID int64) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (r *projectRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&projects).Error
	return projects, err
}

// Update persists every column except status; status changes go through
// TransitionStatus only.
func (r *projectRepo) Update(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Omit("status").Save(p).Error
}

func (r *projectRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Project{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus implements the atomic precondition-check-then-transition
// unit: lock row, verify pre-state, mutate, persist.
func (r *projectRepo) TransitionStatus(ctx context.Context, id int64, from []model.ProjectStatus, to model.ProjectStatus, mutate func(*model.Project)) (*model.Project, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("refusing to persist unknown status %q", to)
	}

	var p model.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&p, id).Error; err != nil {
			return translateErr(err)
		}

		allowed := false
		for _, s := range from {
			if p.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s is %q", ErrStateConflict, "project", p.Status)
		}

		p.Status = to
		if mutate != nil {
			mutate(&p)
		}
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type modelConfigRepo struct {
	db *gorm.DB
}

func (r *modelConfigRepo) GetByID(ctx context.Context, id int64) (*model.ModelConfig, error) {
	var m model.ModelConfig
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

func (r *modelConfigRepo) GetActive(ctx context.Context, id int64, modelType model.ModelType) (*model.ModelConfig, error) {
	var m model.ModelConfig
	err := r.db.WithContext(ctx).
		Where("id = ? AND model_type = ? AND is_active = ?", id, modelType, true).
		First(&m).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

func (r *modelConfigRepo) GetDefault(ctx context.Context, modelType model.ModelType) (*model.ModelConfig, error) {
	var m model.ModelConfig
	err := r.db.WithContext(ctx).
		Where("model_type = ? AND is_active = ? AND is_default = ?", modelType, true, true).
		First(&m).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

func (r *modelConfigRepo) ListActive(ctx context.Context, modelType model.ModelType) ([]model.ModelConfig, error) {
	var models []model.ModelConfig
	err := r.db.WithContext(ctx).
		Where("model_type = ? AND is_active = ?", modelType, true).
		Order("is_default DESC, name ASC").
		Find(&models).Error
	return models, err
}

func (r *modelConfigRepo) List(ctx context.Context) ([]model.ModelConfig, error) {
	var models []model.ModelConfig
	err := r.db.WithContext(ctx).Order("model_type ASC, name ASC").Find(&models).Error
	return models, err
}

func (r *modelConfigRepo) Create(ctx context.Context, m *model.ModelConfig) error {
	return r.db.WithContext(ctx).Create(m).Error
}

type usageLogRepo struct {
	db *gorm.DB
}

func (r *usageLogRepo) Create(ctx context.Context, l *model.UsageLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *usageLogRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.UsageLog, error) {
	var logs []model.UsageLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

func (r *usageLogRepo) CountByProject(ctx context.Context, projectID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Where("project_id = ?", projectID).
		Count(&n).Error
	return n, err
}

type jobRepo struct {
	db *gorm.DB
}

// CreateActive inserts a queued ledger row, holding the project row lock
// while checking that no other queued/running job exists for the project.
func (r *jobRepo) CreateActive(ctx context.Context, j *model.Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Project
		if err := lockForUpdate(tx).First(&p, j.ProjectID).Error; err != nil {
			return translateErr(err)
		}

		var active int64
		err := tx.Model(&model.Job{}).
			Where("project_id = ? AND status IN ?", j.ProjectID, []model.JobStatus{model.JobQueued, model.JobRunning}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveJob
		}

		j.Status = model.JobQueued
		return tx.Create(j).Error
	})
}

func (r *jobRepo) SetStatus(ctx context.Context, id int64, status model.JobStatus, attempts int, lastError *string) error {
	return r.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"last_error": lastError,
		}).Error
}

func (r *jobRepo) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	var j model.Job
	if err := r.db.WithContext(ctx).First(&j, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &j, nil
}

func (r *jobRepo) ListByProject(ctx context.Context, projectID int64) ([]model.Job, error) {
	var jobs []model.Job
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) EnsureExists(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where(model.User{ID: id}).
		FirstOrCreate(&model.User{ID: id}).Error
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.User{}, id).Error
}

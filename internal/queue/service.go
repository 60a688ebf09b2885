package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"scribber/internal/model"
	"scribber/internal/repository"
)

// Validation errors surfaced to the caller before anything is queued.
var (
	ErrNoAudio         = errors.New("project has no audio file")
	ErrNoTranscription = errors.New("project has no transcription to summarize")
	ErrInvalidModel    = errors.New("invalid or inactive model")
	ErrInvalidState    = errors.New("project state does not allow this operation")
)

// Service is the enqueue side of the job pipeline: it validates the
// request, writes the job ledger row, and pushes the queue message.
// Fire-and-forget from the caller's point of view.
type Service struct {
	broker *Broker
	repos  *repository.Repositories
	log    zerolog.Logger
}

// NewService creates the enqueue service.
func NewService(broker *Broker, repos *repository.Repositories, log zerolog.Logger) *Service {
	return &Service{broker: broker, repos: repos, log: log}
}

// EnqueueTranscription validates and queues a transcription job for the
// project. A nil modelID selects the default active transcription model.
func (s *Service) EnqueueTranscription(ctx context.Context, projectID, userID int64, modelID *int64) (*model.Job, error) {
	p, err := s.repos.Projects.GetOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !p.HasAudio() {
		return nil, ErrNoAudio
	}
	if !statusIn(p.Status, model.TranscriptionStartStates()) {
		return nil, fmt.Errorf("%w: project is %s", ErrInvalidState, p.Status)
	}

	cfg, err := s.resolveModel(ctx, modelID, model.ModelTypeTranscription)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, p, cfg.ID, model.OperationTranscription)
}

// EnqueueSummarization validates and queues a summarization job for the
// project. A nil modelID selects the default active summarization model.
func (s *Service) EnqueueSummarization(ctx context.Context, projectID, userID int64, modelID *int64) (*model.Job, error) {
	p, err := s.repos.Projects.GetOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !p.HasTranscription() {
		return nil, ErrNoTranscription
	}
	if !statusIn(p.Status, model.SummarizationStartStates()) {
		return nil, fmt.Errorf("%w: project is %s", ErrInvalidState, p.Status)
	}

	cfg, err := s.resolveModel(ctx, modelID, model.ModelTypeSummarization)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, p, cfg.ID, model.OperationSummarization)
}

func (s *Service) resolveModel(ctx context.Context, modelID *int64, modelType model.ModelType) (*model.ModelConfig, error) {
	if modelID == nil {
		cfg, err := s.repos.Models.GetDefault(ctx, modelType)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: no default %s model configured", ErrInvalidModel, modelType)
			}
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := s.repos.Models.GetActive(ctx, *modelID, modelType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: model %d", ErrInvalidModel, *modelID)
		}
		return nil, err
	}
	return cfg, nil
}

func (s *Service) submit(ctx context.Context, p *model.Project, modelID int64, op model.OperationType) (*model.Job, error) {
	job := &model.Job{
		ProjectID: p.ID,
		ModelID:   modelID,
		Operation: op,
	}
	if err := s.repos.Jobs.CreateActive(ctx, job); err != nil {
		return nil, err
	}

	msg := model.JobMessage{
		JobID:     job.ID,
		ProjectID: p.ID,
		ModelID:   modelID,
		Operation: op,
	}
	if err := s.broker.Enqueue(ctx, msg); err != nil {
		// The ledger row must not keep holding the project's active
		// slot when nothing made it onto the queue.
		reason := err.Error()
		if serr := s.repos.Jobs.SetStatus(ctx, job.ID, model.JobAbandoned, 0, &reason); serr != nil {
			s.log.Error().Err(serr).Int64("job_id", job.ID).Msg("failed to abandon unqueued job")
		}
		return nil, err
	}

	s.log.Info().
		Int64("job_id", job.ID).
		Int64("project_id", p.ID).
		Int64("model_id", modelID).
		Str("operation", string(op)).
		Msg("job enqueued")
	return job, nil
}

func statusIn(s model.ProjectStatus, set []model.ProjectStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

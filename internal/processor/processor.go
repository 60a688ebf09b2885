// Package processor executes one job end-to-end: load state, validate
// preconditions, transition the project, invoke the provider strategy,
// persist the outcome, record usage, and notify subscribers. Each
// execution uses its own database transaction per write; nothing is
// shared across concurrent jobs.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"scribber/internal/model"
	"scribber/internal/notify"
	"scribber/internal/provider"
	"scribber/internal/queue"
	"scribber/internal/repository"
)

// Notifier pushes state-change events to subscribers. Delivery problems
// stay inside the notifier; they never affect the job outcome.
type Notifier interface {
	Publish(ctx context.Context, userID, projectID int64, ev notify.Event)
}

// AudioResolver maps a stored audio reference to a readable local path.
type AudioResolver interface {
	Resolve(ref string) (string, error)
}

// ProviderFactory builds the strategy for a model catalog row.
type ProviderFactory interface {
	Transcriber(cfg *model.ModelConfig) (provider.Transcriber, error)
	Summarizer(cfg *model.ModelConfig) (provider.Summarizer, error)
}

// Processor implements queue.Processor.
type Processor struct {
	repos     *repository.Repositories
	providers ProviderFactory
	audio     AudioResolver
	notifier  Notifier
	log       zerolog.Logger
}

// New creates a processor.
func New(repos *repository.Repositories, providers ProviderFactory, audio AudioResolver, notifier Notifier, log zerolog.Logger) *Processor {
	return &Processor{
		repos:     repos,
		providers: providers,
		audio:     audio,
		notifier:  notifier,
		log:       log,
	}
}

// Process dispatches one job by operation kind.
func (p *Processor) Process(ctx context.Context, msg model.JobMessage) error {
	switch msg.Operation {
	case model.OperationTranscription:
		return p.processTranscription(ctx, msg)
	case model.OperationSummarization:
		return p.processSummarization(ctx, msg)
	default:
		return fmt.Errorf("unknown operation %q", msg.Operation)
	}
}

// inProgressStatus returns the in-progress state for an operation.
func inProgressStatus(op model.OperationType) model.ProjectStatus {
	if op == model.OperationSummarization {
		return model.StatusSummarizing
	}
	return model.StatusTranscribing
}

// startStates returns the pre-states a job may transition from. A retry
// attempt re-enters from the in-progress state it already holds; a first
// attempt finding the project in-progress means another job owns it and
// must abort.
func startStates(op model.OperationType, attempt int) []model.ProjectStatus {
	var states []model.ProjectStatus
	if op == model.OperationSummarization {
		states = model.SummarizationStartStates()
	} else {
		states = model.TranscriptionStartStates()
	}
	if attempt > 0 {
		states = append(states, inProgressStatus(op))
	}
	return states
}

func (p *Processor) processTranscription(ctx context.Context, msg model.JobMessage) error {
	proj, err := p.repos.Projects.GetByID(ctx, msg.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("project %d not found: %w", msg.ProjectID, queue.ErrDrop)
		}
		return err
	}

	// Preconditions are validated again at enqueue time; a violation
	// here means state changed underneath us, so abort without touching
	// the project.
	if !proj.HasAudio() {
		return fmt.Errorf("project %d has no audio file", msg.ProjectID)
	}

	cfg, err := p.repos.Models.GetActive(ctx, msg.ModelID, model.ModelTypeTranscription)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("transcription model %d missing or inactive", msg.ModelID)
		}
		return err
	}

	transcriber, err := p.providers.Transcriber(cfg)
	if err != nil {
		return err
	}

	proj, err = p.transitionTo(ctx, msg, inProgressStatus(msg.Operation), func(pr *model.Project) {
		pr.TranscriptionModelID = &msg.ModelID
		pr.ErrorMessage = nil
	})
	if err != nil {
		return err
	}
	p.notifier.Publish(ctx, proj.UserID, proj.ID, notify.EventFromProject(proj))

	audioPath, err := p.audio.Resolve(*proj.AudioURL)
	if err != nil {
		return p.persistFailure(ctx, msg, fmt.Errorf("audio file unavailable: %w", err))
	}

	opts := provider.TranscribeOptions{Language: cfg.StringOption("language", "")}
	res, err := transcriber.Transcribe(ctx, audioPath, opts)
	if err != nil {
		if provider.IsRetryable(err) {
			// Leave the project in-progress; the queue layer decides
			// whether to retry or abandon.
			return err
		}
		if ferr := p.persistFailure(ctx, msg, err); ferr != nil {
			return ferr
		}
		return err
	}

	proj, err = p.transitionTo(ctx, msg, model.StatusCompleted, func(pr *model.Project) {
		pr.Transcription = &res.Text
		if res.DurationSeconds != nil {
			pr.AudioDurationSeconds = res.DurationSeconds
		}
		pr.ErrorMessage = nil
	})
	if err != nil {
		return err
	}

	duration := 0.0
	if res.DurationSeconds != nil {
		duration = *res.DurationSeconds
	}
	cost := transcriber.EstimateCost(duration)
	p.recordUsage(ctx, &model.UsageLog{
		UserID:          proj.UserID,
		ProjectID:       &proj.ID,
		ModelID:         cfg.ID,
		Operation:       model.OperationTranscription,
		InputSizeBytes:  proj.AudioSizeBytes,
		DurationSeconds: res.DurationSeconds,
		EstimatedCost:   &cost,
	})

	p.notifier.Publish(ctx, proj.UserID, proj.ID, notify.EventFromProject(proj))
	return nil
}

func (p *Processor) processSummarization(ctx context.Context, msg model.JobMessage) error {
	proj, err := p.repos.Projects.GetByID(ctx, msg.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("project %d not found: %w", msg.ProjectID, queue.ErrDrop)
		}
		return err
	}

	if !proj.HasTranscription() {
		return fmt.Errorf("project %d has no transcription to summarize", msg.ProjectID)
	}

	cfg, err := p.repos.Models.GetActive(ctx, msg.ModelID, model.ModelTypeSummarization)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("summarization model %d missing or inactive", msg.ModelID)
		}
		return err
	}

	summarizer, err := p.providers.Summarizer(cfg)
	if err != nil {
		return err
	}

	proj, err = p.transitionTo(ctx, msg, inProgressStatus(msg.Operation), func(pr *model.Project) {
		pr.SummarizationModelID = &msg.ModelID
		pr.ErrorMessage = nil
	})
	if err != nil {
		return err
	}
	p.notifier.Publish(ctx, proj.UserID, proj.ID, notify.EventFromProject(proj))

	opts := provider.SummarizeOptions{
		Style:     cfg.StringOption("style", provider.StyleProfessional),
		MaxLength: int(floatOpt(cfg, "max_length")),
	}
	res, err := summarizer.Summarize(ctx, *proj.Transcription, opts)
	if err != nil {
		if provider.IsRetryable(err) {
			return err
		}
		if ferr := p.persistFailure(ctx, msg, err); ferr != nil {
			return ferr
		}
		return err
	}

	proj, err = p.transitionTo(ctx, msg, model.StatusCompleted, func(pr *model.Project) {
		pr.Summary = &res.Summary
		pr.ErrorMessage = nil
	})
	if err != nil {
		return err
	}

	cost := summarizer.EstimateCost(res.InputTokens, res.OutputTokens)
	p.recordUsage(ctx, &model.UsageLog{
		UserID:        proj.UserID,
		ProjectID:     &proj.ID,
		ModelID:       cfg.ID,
		Operation:     model.OperationSummarization,
		TokensUsed:    res.TokensUsed,
		EstimatedCost: &cost,
	})

	p.notifier.Publish(ctx, proj.UserID, proj.ID, notify.EventFromProject(proj))
	return nil
}

// transitionTo moves the project into `to`, handling deletion mid-job
// and concurrent-job conflicts.
func (p *Processor) transitionTo(ctx context.Context, msg model.JobMessage, to model.ProjectStatus, mutate func(*model.Project)) (*model.Project, error) {
	var from []model.ProjectStatus
	if to == model.StatusCompleted {
		from = []model.ProjectStatus{inProgressStatus(msg.Operation)}
	} else {
		from = startStates(msg.Operation, msg.Attempt)
	}

	proj, err := p.repos.Projects.TransitionStatus(ctx, msg.ProjectID, from, to, mutate)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("project %d disappeared: %w", msg.ProjectID, queue.ErrDrop)
		}
		// A state conflict is terminal for this job but must not touch
		// the project: another job owns its current state.
		return nil, err
	}
	return proj, nil
}

// persistFailure moves an in-progress project to failed with a
// human-readable message and notifies subscribers. A project that
// vanished or moved on is left alone.
func (p *Processor) persistFailure(ctx context.Context, msg model.JobMessage, cause error) error {
	errText := cause.Error()
	proj, err := p.repos.Projects.TransitionStatus(ctx, msg.ProjectID,
		[]model.ProjectStatus{inProgressStatus(msg.Operation)},
		model.StatusFailed,
		func(pr *model.Project) {
			pr.ErrorMessage = &errText
		})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("project %d disappeared: %w", msg.ProjectID, queue.ErrDrop)
		}
		return err
	}

	p.notifier.Publish(ctx, proj.UserID, proj.ID, notify.EventFromProject(proj))
	return nil
}

// FailProject is called by the queue layer when it gives up on a job
// (retries exhausted or hard timeout). Best effort: a project that is no
// longer in-progress is left untouched.
func (p *Processor) FailProject(ctx context.Context, msg model.JobMessage, cause error) error {
	err := p.persistFailure(ctx, msg, cause)
	if err != nil && (errors.Is(err, queue.ErrDrop) || errors.Is(err, repository.ErrStateConflict)) {
		return nil
	}
	return err
}

// recordUsage appends the usage row. Accounting failures are logged, not
// propagated: the job itself succeeded.
func (p *Processor) recordUsage(ctx context.Context, l *model.UsageLog) {
	if err := p.repos.Usage.Create(ctx, l); err != nil {
		p.log.Error().Err(err).
			Int64("user_id", l.UserID).
			Str("operation", string(l.Operation)).
			Msg("failed to record usage")
	}
}

func floatOpt(cfg *model.ModelConfig, key string) float64 {
	if v, ok := cfg.Options()[key].(float64); ok {
		return v
	}
	return 0
}

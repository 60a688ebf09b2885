package model

import (
	"time"
)

// ProjectStatus is the lifecycle state of a transcription project.
type ProjectStatus string

const (
	StatusPending      ProjectStatus = "pending"
	StatusUploading    ProjectStatus = "uploading"
	StatusTranscribing ProjectStatus = "transcribing"
	StatusSummarizing  ProjectStatus = "summarizing"
	StatusCompleted    ProjectStatus = "completed"
	StatusFailed       ProjectStatus = "failed"
)

// legalTransitions holds the allowed status transitions. Everything not
// listed here is rejected. `failed` and `completed` are re-enterable:
// a failed project can be resubmitted for either operation and a
// completed project can be re-summarized.
var legalTransitions = map[ProjectStatus][]ProjectStatus{
	StatusUploading:    {StatusPending, StatusFailed},
	StatusPending:      {StatusTranscribing},
	StatusTranscribing: {StatusCompleted, StatusFailed},
	StatusCompleted:    {StatusSummarizing},
	StatusSummarizing:  {StatusCompleted, StatusFailed},
	StatusFailed:       {StatusTranscribing, StatusSummarizing},
}

// Valid reports whether s is one of the six known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUploading, StatusTranscribing,
		StatusSummarizing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from -> to is a legal transition.
func CanTransition(from, to ProjectStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TranscriptionStartStates returns the statuses from which a transcription
// job may move the project into `transcribing`. A retry of an in-flight job
// additionally re-enters from `transcribing` itself; see repository.
func TranscriptionStartStates() []ProjectStatus {
	return []ProjectStatus{StatusPending, StatusFailed}
}

// SummarizationStartStates returns the statuses from which a summarization
// job may move the project into `summarizing`.
func SummarizationStartStates() []ProjectStatus {
	return []ProjectStatus{StatusCompleted, StatusFailed}
}

// Project is the user-facing unit of work: one audio source plus its
// transcription and summary.
type Project struct {
	ID     int64  `json:"id" gorm:"primaryKey"`
	UserID int64  `json:"user_id" gorm:"index;not null"`
	Title  string `json:"title" gorm:"size:255;not null"`

	AudioURL             *string  `json:"audio_url,omitempty" gorm:"size:1000"`
	AudioFilename        *string  `json:"audio_filename,omitempty" gorm:"size:255"`
	AudioDurationSeconds *float64 `json:"audio_duration_seconds,omitempty"`
	AudioSizeBytes       *int64   `json:"audio_size_bytes,omitempty"`

	Transcription *string `json:"transcription,omitempty" gorm:"type:text"`
	Summary       *string `json:"summary,omitempty" gorm:"type:text"`

	TranscriptionModelID *int64 `json:"transcription_model_id,omitempty"`
	SummarizationModelID *int64 `json:"summarization_model_id,omitempty"`

	Status       ProjectStatus `json:"status" gorm:"size:20;index;not null;default:pending"`
	ErrorMessage *string       `json:"error_message,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User      User       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	UsageLogs []UsageLog `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// HasAudio reports whether an audio file has been attached.
func (p *Project) HasAudio() bool {
	return p.AudioURL != nil && *p.AudioURL != ""
}

// HasTranscription reports whether a transcription is present.
func (p *Project) HasTranscription() bool {
	return p.Transcription != nil && *p.Transcription != ""
}

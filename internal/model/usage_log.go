package model

import "time"

// OperationType is the kind of work a job performs. The values double as
// logical queue names so worker capacity can be provisioned per operation.
type OperationType string

const (
	OperationTranscription OperationType = "transcription"
	OperationSummarization OperationType = "summarization"
)

// UsageLog is an append-only record of one completed operation, written
// once per job completion by the processor. Never mutated; deleted only
// through cascading project/user deletion.
type UsageLog struct {
	ID              int64         `json:"id" gorm:"primaryKey"`
	UserID          int64         `json:"user_id" gorm:"index;not null"`
	ProjectID       *int64        `json:"project_id,omitempty" gorm:"index"`
	ModelID         int64         `json:"model_id" gorm:"index;not null"`
	Operation       OperationType `json:"operation" gorm:"size:20;index;not null"`
	InputSizeBytes  *int64        `json:"input_size_bytes,omitempty"`
	DurationSeconds *float64      `json:"duration_seconds,omitempty"`
	TokensUsed      *int          `json:"tokens_used,omitempty"`
	EstimatedCost   *float64      `json:"estimated_cost,omitempty" gorm:"type:numeric(10,6)"`
	CreatedAt       time.Time     `json:"created_at" gorm:"index"`
}

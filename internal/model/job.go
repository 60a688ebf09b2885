package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a persisted job ledger row.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobAbandoned JobStatus = "abandoned"
)

// Active reports whether the job still holds the project's single active
// slot (at most one queued or running job per project).
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobRunning
}

// Job is the persisted ledger row for one queued unit of work. The queue
// message itself is transient; this row gives crash-recovery visibility
// and enforces one active job per project.
type Job struct {
	ID        int64         `json:"id" gorm:"primaryKey"`
	ProjectID int64         `json:"project_id" gorm:"index;not null"`
	ModelID   int64         `json:"model_id" gorm:"not null"`
	Operation OperationType `json:"operation" gorm:"size:20;not null"`
	Status    JobStatus     `json:"status" gorm:"size:20;index;not null;default:queued"`
	Attempts  int           `json:"attempts" gorm:"not null;default:0"`
	LastError *string       `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// JobMessage is the queue wire format, routed by operation kind to
// distinct logical queues.
type JobMessage struct {
	JobID     int64         `json:"job_id"`
	ProjectID int64         `json:"project_id"`
	ModelID   int64         `json:"model_id"`
	Operation OperationType `json:"operation"`
	Attempt   int           `json:"attempt"`
}

// Encode serializes the message for the broker.
func (m JobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeJobMessage parses a broker payload.
func DecodeJobMessage(raw []byte) (JobMessage, error) {
	var m JobMessage
	err := json.Unmarshal(raw, &m)
	return m, err
}

package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeEnrollmentEmail JobType = "enrollment_email"
	JobTypeCounterFlush    JobType = "counter_flush"
)

// Enrollment email kinds
const (
	EmailKindConfirmation  = "confirmation"
	EmailKindPaymentFailed = "payment_failed"
	EmailKindSuspended     = "suspended"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// EnrollmentEmailJobPayload contains the payload for enrollment email jobs
type EnrollmentEmailJobPayload struct {
	UserID    uint   `json:"user_id"`
	CourseID  uint   `json:"course_id"`
	PaymentID uint   `json:"payment_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p EnrollmentEmailJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    p.UserID,
		"course_id":  p.CourseID,
		"payment_id": p.PaymentID,
		"kind":       p.Kind,
		"reason":     p.Reason,
	}
}

// EnrollmentEmailJobPayloadFromMap creates a payload from a map
func EnrollmentEmailJobPayloadFromMap(data map[string]interface{}) (*EnrollmentEmailJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload EnrollmentEmailJobPayload
	if err := json.Unmarshal(jsonData, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// MarkAsProcessing sets the job into processing state
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted sets the job into completed state
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed records a failure and bumps the retry counter
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errorMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying sets the job into retrying state
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job may be re-enqueued
func (j *Job) IsRetryable() bool {
	return j.RetryCount <= j.MaxRetries
}

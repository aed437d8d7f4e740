package models

import "time"

type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	ActorID    string    `json:"actor_id" db:"actor_id"`
	Action     string    `json:"action" db:"action"`
	TargetType string    `json:"target_type" db:"target_type"`
	TargetID   *string   `json:"target_id,omitempty" db:"target_id"`
	Result     string    `json:"result" db:"result"`
	Details    *string   `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

const (
	AuditActionGenerateReport = "generate_plagiarism_report"
	AuditActionCompareNew     = "compare_new_submission"
)

const (
	AuditTargetReport     = "report"
	AuditTargetSubmission = "submission"
	AuditTargetAssignment = "assignment"
)

package models

import (
	"time"
)

type SubmissionCreatedEvent struct {
	SubmissionID string `json:"submission_id"`
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
	Timestamp    int64  `json:"timestamp"`
}

type ReportRequestedEvent struct {
	AssignmentID string `json:"assignment_id"`
	ExecutorID   string `json:"executor_id"`
	Mode         string `json:"mode"`
	StudentID    string `json:"student_id,omitempty"`
}

type SubmissionFlaggedEvent struct {
	SubmissionID string            `json:"submission_id"`
	AssignmentID string            `json:"assignment_id"`
	Threshold    float64           `json:"threshold"`
	Matches      []ComparisonMatch `json:"matches"`
	FlaggedAt    time.Time         `json:"flagged_at"`
}

type ReportCompletedEvent struct {
	ReportID         string    `json:"report_id"`
	AssignmentID     string    `json:"assignment_id"`
	Mode             string    `json:"mode"`
	TotalSubmissions int       `json:"total_submissions"`
	TotalPairs       int       `json:"total_pairs"`
	ProcessingTimeMs int       `json:"processing_time_ms"`
	CompletedAt      time.Time `json:"completed_at"`
}

type ReportFailedEvent struct {
	AssignmentID string    `json:"assignment_id"`
	Mode         string    `json:"mode"`
	Error        string    `json:"error"`
	FailedAt     time.Time `json:"failed_at"`
}

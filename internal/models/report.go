package models

import (
	"time"
)

type Report struct {
	ID               string     `json:"id" db:"id"`
	AssignmentID     string     `json:"assignment_id" db:"assignment_id"`
	ExecutorID       string     `json:"executor_id" db:"executor_id"`
	Status           string     `json:"status" db:"status"`
	Mode             string     `json:"mode" db:"mode"`
	TotalSubmissions int        `json:"total_submissions" db:"total_submissions"`
	TotalPairs       int        `json:"total_pairs" db:"total_pairs"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "PENDING"
	ReportStatusCompleted ReportStatus = "COMPLETED"
)

func (rs ReportStatus) String() string {
	return string(rs)
}

// ReportMode names the selection policy that produced a report.
type ReportMode string

const (
	ReportModeLatestOnly    ReportMode = "latest_only"
	ReportModeFullHistory   ReportMode = "full_history"
	ReportModeStudentTarget ReportMode = "student_target"
)

func (m ReportMode) String() string {
	return string(m)
}

func IsValidReportMode(mode string) bool {
	switch ReportMode(mode) {
	case ReportModeLatestOnly, ReportModeFullHistory, ReportModeStudentTarget:
		return true
	default:
		return false
	}
}

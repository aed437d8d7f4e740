package service

import "errors"

// Typed errors so the delivery layer can map them onto HTTP codes.
var (
	// Domain gates.
	ErrInsufficientSubmissions = errors.New("at least two distinct students must have submissions")
	ErrNoComparisonTarget      = errors.New("no peer submissions to compare against")
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrReportNotFound          = errors.New("report not found")
	ErrInvalidMode             = errors.New("invalid report mode")
	ErrStudentRequired         = errors.New("student_id is required for student_target mode")

	// Coordination.
	ErrGenerationInProgress = errors.New("report generation already running for this assignment")
	ErrTaskNotFound         = errors.New("task not found")
	ErrGenerationLockLost   = errors.New("generation lock expired before the task started")

	// Store failures. The underlying error is wrapped alongside.
	ErrPersistenceFailure = errors.New("persistence failure")
)

package models

import "time"

// Data Transfer Objects

type GenerateReportRequest struct {
	Mode      string `json:"mode"`
	StudentID string `json:"student_id,omitempty"`
}

type GenerateReportResponse struct {
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

type TaskSnapshot struct {
	TaskID       string     `json:"task_id"`
	AssignmentID string     `json:"assignment_id"`
	Mode         string     `json:"mode"`
	State        string     `json:"state"`
	Progress     float64    `json:"progress"`
	ReportID     string     `json:"report_id,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type CompareResponse struct {
	SubmissionID string            `json:"submission_id"`
	AssignmentID string            `json:"assignment_id"`
	Threshold    *float64          `json:"threshold,omitempty"`
	Matches      []ComparisonMatch `json:"matches"`
}

type HealthCheckResponse struct {
	Status        string                 `json:"status"`
	Database      bool                   `json:"database"`
	Redis         bool                   `json:"redis"`
	ActiveWorkers int                    `json:"active_workers"`
	QueueLength   int                    `json:"queue_length"`
	RunningTasks  int                    `json:"running_tasks"`
	Pool          map[string]interface{} `json:"pool,omitempty"`
	Consumer      *ConsumerStats         `json:"consumer,omitempty"`
	Uptime        string                 `json:"uptime"`
	Timestamp     time.Time              `json:"timestamp"`
}

type ScoreBucket struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

type ReportSummary struct {
	ReportID         string        `json:"report_id"`
	AssignmentID     string        `json:"assignment_id"`
	Mode             string        `json:"mode"`
	TotalSubmissions int           `json:"total_submissions"`
	TotalPairs       int           `json:"total_pairs"`
	FlaggedPairs     int           `json:"flagged_pairs"`
	Threshold        float64       `json:"threshold"`
	MaxScore         float64       `json:"max_score"`
	AverageScore     float64       `json:"average_score"`
	Distribution     []ScoreBucket `json:"distribution"`
}

// ConsumerStats are the counters of the message queue worker.
type ConsumerStats struct {
	ActiveWorkers  int `json:"active_workers"`
	ProcessedToday int `json:"processed_today"`
	TotalProcessed int `json:"total_processed"`
	FailedJobs     int `json:"failed_jobs"`
	Flagged        int `json:"flagged"`
	QueueLength    int `json:"queue_length"`
}

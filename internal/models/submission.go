package models

import "time"

// Submission is one student's code artifact for one assignment. Rows are owned
// by the submission store and never mutated by this service.
type Submission struct {
	ID           string    `json:"id" db:"id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	AssignmentID string    `json:"assignment_id" db:"assignment_id"`
	CodeContent  string    `json:"code_content" db:"code_content"`
	CodeHash     string    `json:"code_hash" db:"code_hash"`
	SubmittedAt  time.Time `json:"submitted_at" db:"submitted_at"`
}

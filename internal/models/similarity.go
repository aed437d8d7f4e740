package models

import (
	"encoding/json"
	"time"
)

// Similarity is the scored relationship between two submissions of one report.
// All scores are on a 0-100 scale.
type Similarity struct {
	ID              string          `json:"id" db:"id"`
	ReportID        string          `json:"report_id" db:"report_id"`
	Submission1ID   string          `json:"submission1_id" db:"submission1_id"`
	Submission2ID   string          `json:"submission2_id" db:"submission2_id"`
	SimilarityScore float64         `json:"similarity_score" db:"similarity_score"`
	JaccardScore    float64         `json:"jaccard_score" db:"jaccard_score"`
	LCSScore        float64         `json:"lcs_score" db:"lcs_score"`
	HighlightData   json.RawMessage `json:"highlight_data" db:"highlight_data"`
	AIAnalysis      *string         `json:"ai_analysis,omitempty" db:"ai_analysis"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// HighlightRegion is one matched block between the two sides of a pair.
// Lines are 1-based and inclusive.
type HighlightRegion struct {
	AStartLine int `json:"a_start_line"`
	AEndLine   int `json:"a_end_line"`
	BStartLine int `json:"b_start_line"`
	BEndLine   int `json:"b_end_line"`
	Tokens     int `json:"tokens"`
}

// ComparisonMatch is an ad-hoc, unpersisted result of comparing one new
// submission against an existing one.
type ComparisonMatch struct {
	SubmissionID    string          `json:"submission_id"`
	StudentID       string          `json:"student_id"`
	SimilarityScore float64         `json:"similarity_score"`
	JaccardScore    float64         `json:"jaccard_score"`
	LCSScore        float64         `json:"lcs_score"`
	HighlightData   json.RawMessage `json:"highlight_data"`
}

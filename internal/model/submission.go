package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-portal/internal/grading"
)

// Submission is the single graded answer sheet of a user for an exam.
type Submission struct {
	ID          uuid.UUID          `json:"id"`
	UserID      int                `json:"user_id"`
	Username    string             `json:"username"`
	ExamKey     string             `json:"exam_id"`
	Answers     grading.RawAnswers `json:"answers"`
	Report      grading.Report     `json:"scores"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

// SubmitRequest is the payload of a submit call.
type SubmitRequest struct {
	Answers json.RawMessage `json:"answers" binding:"required"`
}

// SubmitResponse echoes the grading result of a fresh submission.
type SubmitResponse struct {
	Message string             `json:"message"`
	Total   float64            `json:"total"`
	Scores  map[string]float64 `json:"scores"`
}

// StatusResponse reports whether a submission exists for the caller.
type StatusResponse struct {
	Found   bool               `json:"found"`
	Answers grading.RawAnswers `json:"answers,omitempty"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Total   float64            `json:"total"`
}

// ExamSummary is one entry of a student's exam list.
type ExamSummary struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	Cohort    string   `json:"cohort"`
	Problems  int      `json:"problems"`
	MaxTotal  float64  `json:"max_total"`
	Submitted bool     `json:"submitted"`
	Total     *float64 `json:"total,omitempty"`
}

// ResultRow is one line of an exam's result listing.
type ResultRow struct {
	UserID      int                `json:"user_id"`
	Username    string             `json:"username"`
	Total       float64            `json:"total"`
	Scores      map[string]float64 `json:"scores"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

// ResultsQuery carries the pagination parameters of a result listing.
type ResultsQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=200"`
}

// Normalize fills default pagination values.
func (q *ResultsQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 50
	}
}

// Offset returns the row offset of the current page.
func (q ResultsQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

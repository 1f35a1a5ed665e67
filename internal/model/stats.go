package model

import "github.com/stemsi/exstem-portal/internal/grading"

// StatsEvent is queued after a submission so its option picks and outcomes
// are folded into the exam statistics.
type StatsEvent struct {
	UserID   int               `json:"user_id"`
	ExamKey  string            `json:"exam_id"`
	Outcomes []grading.Outcome `json:"outcomes"`
}

// DraftEvent is queued by the autosave path for persistence.
type DraftEvent struct {
	UserID     int    `json:"user_id"`
	ExamKey    string `json:"exam_id"`
	QuestionID string `json:"q_id"`
	Answer     string `json:"ans"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission statuses. Transitions only move forward:
// pending -> processing -> completed, or processing -> error.
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusProcessing = "processing"
	SubmissionStatusCompleted  = "completed"
	SubmissionStatusError      = "error"
)

// Submission log steps.
const (
	LogStepReceived         = "received"
	LogStepDispatched       = "dispatched"
	LogStepDispatchFailed   = "dispatch_failed"
	LogStepGradingCompleted = "grading_completed"
	LogStepGradingFailed    = "grading_failed"
)

// EssayTheme is a writing prompt published by staff.
type EssayTheme struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	MotivationalText string    `gorm:"type:text;not null" json:"motivational_text"`
	Category         string    `gorm:"size:100;not null" json:"category"`
	ImageURL         string    `gorm:"size:500" json:"image_url"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

// EssaySubmission is one essay sent for grading.
type EssaySubmission struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index;not null" json:"user"`
	SubmittedText  *string         `gorm:"type:text" json:"submitted_text"`
	SubmittedFile  *string         `gorm:"size:512" json:"submitted_file"`
	Status         string          `gorm:"size:10;not null;default:pending;index" json:"status"`
	SubmissionDate time.Time       `gorm:"autoCreateTime;index" json:"submission_date"`
	User           User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Correction     *Correction     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"correction,omitempty"`
	Logs           []SubmissionLog `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Correction is the structured grading result of a submission.
type Correction struct {
	ID                uint                        `gorm:"primaryKey" json:"id"`
	EssaySubmissionID uint                        `gorm:"uniqueIndex;not null" json:"submission_id"`
	OverallScore      int                         `gorm:"not null" json:"overall_score"`
	GeneralComment    string                      `gorm:"type:text;not null" json:"general_comment"`
	PositivePoints    datatypes.JSONSlice[string] `json:"positive_points"`
	CorrectedAt       time.Time                   `gorm:"autoCreateTime" json:"corrected_at"`
	Criteria          []CorrectionCriterion       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
}

// CorrectionCriterion is one scored grading dimension of a correction.
type CorrectionCriterion struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CorrectionID uint   `gorm:"index;not null" json:"correction_id"`
	Name         string `gorm:"size:100;not null" json:"name"`
	Score        int    `gorm:"not null" json:"score"`
	MaxScore     int    `gorm:"not null" json:"max_score"`
	FeedbackText string `gorm:"type:text" json:"feedback_text"`
	IsPerfect    bool   `gorm:"not null;default:false" json:"is_perfect"`
}

// SubmissionLog is an append-only audit entry of a processing milestone.
type SubmissionLog struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	EssaySubmissionID uint              `gorm:"index;not null" json:"submission_id"`
	Step              string            `gorm:"size:32;not null" json:"step"`
	Details           datatypes.JSONMap `json:"details"`
	CreatedAt         time.Time         `gorm:"index" json:"created_at"`
}

// IsProcessing reports whether the submission is still waiting for the grader.
func (s EssaySubmission) IsProcessing() bool {
	return s.Status == SubmissionStatusProcessing
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&CoinTransaction{},
		&EssayTheme{},
		&EssaySubmission{},
		&Correction{},
		&CorrectionCriterion{},
		&SubmissionLog{},
	}
}

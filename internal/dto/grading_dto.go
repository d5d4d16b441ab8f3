package dto

import "encoding/json"

// GradingResultRequest is the callback body posted by the grading workflow.
// Criteria stay raw so that one malformed entry fails the materialisation
// instead of the whole request decode.
type GradingResultRequest struct {
	SubmissionID   uint              `json:"submission_id" validate:"required,gt=0"`
	OverallScore   float64           `json:"overall_score" validate:"gte=0"`
	GeneralComment string            `json:"general_comment"`
	PositivePoints []string          `json:"positive_points"`
	Criteria       []json.RawMessage `json:"criteria"`
}

// GradingCriterionPayload is one criteria entry. Absent fields take defaults.
type GradingCriterionPayload struct {
	Name         *string  `json:"name"`
	Score        *float64 `json:"score"`
	MaxScore     *float64 `json:"max_score"`
	FeedbackText *string  `json:"feedback_text"`
	IsPerfect    *bool    `json:"is_perfect"`
}

// GradingAck acknowledges a materialised correction.
type GradingAck struct {
	SubmissionID uint   `json:"submission_id"`
	CorrectionID uint   `json:"correction_id"`
	Status       string `json:"status"`
	Criteria     int    `json:"criteria"`
}

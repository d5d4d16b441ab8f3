package dto

import (
	"time"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

// ThemeCreateRequest publishes a new essay theme.
type ThemeCreateRequest struct {
	Title            string `json:"title" validate:"required,max=255"`
	MotivationalText string `json:"motivational_text" validate:"required"`
	Category         string `json:"category" validate:"required,max=100"`
	ImageURL         string `json:"image_url" validate:"omitempty,url,max=500"`
}

// ThemeResponse is the public view of a theme.
type ThemeResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	MotivationalText string    `json:"motivational_text"`
	Category         string    `json:"category"`
	ImageURL         string    `json:"image_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubmissionCreateRequest carries the text part of a submission. The file part
// travels as a multipart form file.
type SubmissionCreateRequest struct {
	SubmittedText *string `json:"submitted_text" form:"submitted_text" validate:"omitempty,max=20000"`
}

// SubmissionResponse is returned right after intake.
type SubmissionResponse struct {
	ID             uint      `json:"id"`
	User           uint      `json:"user"`
	SubmittedText  *string   `json:"submitted_text"`
	SubmittedFile  *string   `json:"submitted_file"`
	Status         string    `json:"status"`
	SubmissionDate time.Time `json:"submission_date"`
}

// CriterionResponse is one scored dimension of a correction.
type CriterionResponse struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	MaxScore     int    `json:"max_score"`
	FeedbackText string `json:"feedback_text"`
	IsPerfect    bool   `json:"is_perfect"`
}

// CorrectionResponse is the structured grading result.
type CorrectionResponse struct {
	OverallScore   int                 `json:"overall_score"`
	GeneralComment string              `json:"general_comment"`
	PositivePoints []string            `json:"positive_points"`
	CorrectedAt    time.Time           `json:"corrected_at"`
	Criteria       []CriterionResponse `json:"criteria"`
}

// SubmissionHistoryResponse lists a submission with its correction, if any.
type SubmissionHistoryResponse struct {
	ID             uint                `json:"id"`
	SubmissionDate time.Time           `json:"submission_date"`
	Status         string              `json:"status"`
	Correction     *CorrectionResponse `json:"correction"`
}

// NewThemeResponse converts a theme model.
func NewThemeResponse(model models.EssayTheme) ThemeResponse {
	return ThemeResponse{
		ID:               model.ID,
		Title:            model.Title,
		MotivationalText: model.MotivationalText,
		Category:         model.Category,
		ImageURL:         model.ImageURL,
		CreatedAt:        model.CreatedAt,
	}
}

// NewThemeResponseSlice converts a list of themes.
func NewThemeResponseSlice(items []models.EssayTheme) []ThemeResponse {
	responses := make([]ThemeResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewThemeResponse(item))
	}
	return responses
}

// NewSubmissionResponse converts a submission model.
func NewSubmissionResponse(model models.EssaySubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:             model.ID,
		User:           model.UserID,
		SubmittedText:  model.SubmittedText,
		SubmittedFile:  model.SubmittedFile,
		Status:         model.Status,
		SubmissionDate: model.SubmissionDate,
	}
}

// NewCorrectionResponse converts a correction with its criteria.
func NewCorrectionResponse(model models.Correction) CorrectionResponse {
	points := []string(model.PositivePoints)
	if points == nil {
		points = []string{}
	}

	criteria := make([]CriterionResponse, 0, len(model.Criteria))
	for _, criterion := range model.Criteria {
		criteria = append(criteria, CriterionResponse{
			Name:         criterion.Name,
			Score:        criterion.Score,
			MaxScore:     criterion.MaxScore,
			FeedbackText: criterion.FeedbackText,
			IsPerfect:    criterion.IsPerfect,
		})
	}

	return CorrectionResponse{
		OverallScore:   model.OverallScore,
		GeneralComment: model.GeneralComment,
		PositivePoints: points,
		CorrectedAt:    model.CorrectedAt,
		Criteria:       criteria,
	}
}

// NewSubmissionHistoryResponse converts a submission for the history views.
func NewSubmissionHistoryResponse(model models.EssaySubmission) SubmissionHistoryResponse {
	response := SubmissionHistoryResponse{
		ID:             model.ID,
		SubmissionDate: model.SubmissionDate,
		Status:         model.Status,
	}
	if model.Correction != nil {
		correction := NewCorrectionResponse(*model.Correction)
		response.Correction = &correction
	}
	return response
}

// NewSubmissionHistoryResponseSlice converts a list of submissions.
func NewSubmissionHistoryResponseSlice(items []models.EssaySubmission) []SubmissionHistoryResponse {
	responses := make([]SubmissionHistoryResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionHistoryResponse(item))
	}
	return responses
}

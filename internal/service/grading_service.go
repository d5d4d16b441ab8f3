package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/events"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/observability"
	"github.com/noah-isme/essay-grader-api/internal/repository"
)

var (
	// ErrInvalidWebhookSecret indicates the shared secret did not match.
	ErrInvalidWebhookSecret = errors.New("invalid webhook secret")
	// ErrSubmissionNotProcessing indicates the submission is missing or already settled.
	ErrSubmissionNotProcessing = errors.New("submission not found or already processed")
	// ErrInvalidGradingPayload indicates a malformed callback envelope.
	ErrInvalidGradingPayload = errors.New("invalid grading payload")
	// ErrGradingFailed indicates the correction could not be materialised.
	ErrGradingFailed = errors.New("failed to record grading result")
)

const (
	defaultCriterionName     = "Critério"
	defaultCriterionMaxScore = 200
)

const gradingCallbackSchema = `{
  "type": "object",
  "required": ["submission_id", "overall_score"],
  "properties": {
    "submission_id": {"type": "integer", "minimum": 1},
    "overall_score": {"type": "number", "minimum": 0},
    "general_comment": {"type": ["string", "null"]},
    "positive_points": {"type": ["array", "null"], "items": {"type": "string"}},
    "criteria": {"type": ["array", "null"]}
  }
}`

// GradingService materialises grading results posted back by the workflow.
type GradingService interface {
	Receive(ctx context.Context, secret string, body []byte) (dto.GradingAck, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	events      events.Publisher
	secret      []byte
	schema      *jsonschema.Schema
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the callback service. An empty secret rejects
// every callback.
func NewGradingService(submissions repository.SubmissionRepository, validate *validator.Validate, publisher events.Publisher, secret string, logger zerolog.Logger) (GradingService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("grading_callback.json", strings.NewReader(gradingCallbackSchema)); err != nil {
		return nil, fmt.Errorf("load grading schema: %w", err)
	}
	schema, err := compiler.Compile("grading_callback.json")
	if err != nil {
		return nil, fmt.Errorf("compile grading schema: %w", err)
	}

	if publisher == nil {
		publisher = events.Nop{}
	}

	return &gradingService{
		submissions: submissions,
		validator:   validate,
		events:      publisher,
		secret:      []byte(secret),
		schema:      schema,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/essay-grader-api/internal/service/grading"),
	}, nil
}

// Receive checks the secret before anything else, then records the correction
// and moves the submission to completed in one transaction. When recording
// fails the submission is moved to error instead.
func (s *gradingService) Receive(ctx context.Context, secret string, body []byte) (dto.GradingAck, error) {
	ctx, span := s.tracer.Start(ctx, "grading.receive")
	defer span.End()

	if len(s.secret) == 0 || subtle.ConstantTimeCompare([]byte(secret), s.secret) != 1 {
		observability.WebhookTotal().WithLabelValues("unauthorized").Inc()
		span.SetStatus(codes.Error, "unauthorized")
		return dto.GradingAck{}, ErrInvalidWebhookSecret
	}

	payload, err := s.decode(body)
	if err != nil {
		observability.WebhookTotal().WithLabelValues("invalid").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_payload")
		return dto.GradingAck{}, err
	}
	span.SetAttributes(
		attribute.Int64("submission.id", int64(payload.SubmissionID)),
		attribute.Int("grading.criteria", len(payload.Criteria)),
	)

	logger := s.logger.With().Uint("submission_id", payload.SubmissionID).Logger()

	submission, err := s.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.WebhookTotal().WithLabelValues("not_found").Inc()
			span.SetStatus(codes.Error, "not_found")
			return dto.GradingAck{}, ErrSubmissionNotProcessing
		}
		return dto.GradingAck{}, err
	}
	if !submission.IsProcessing() {
		observability.WebhookTotal().WithLabelValues("not_found").Inc()
		span.SetStatus(codes.Error, "not_processing")
		logger.Warn().Str("status", submission.Status).Msg("grading callback for settled submission")
		return dto.GradingAck{}, ErrSubmissionNotProcessing
	}

	correction, err := s.buildCorrection(payload)
	if err != nil {
		return dto.GradingAck{}, s.fail(ctx, span, submission, err)
	}

	entry := models.SubmissionLog{
		Step: models.LogStepGradingCompleted,
		Details: map[string]interface{}{
			"overall_score": correction.OverallScore,
			"criteria":      len(correction.Criteria),
		},
	}

	if err := s.submissions.Complete(ctx, submission.ID, &correction, &entry); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			observability.WebhookTotal().WithLabelValues("not_found").Inc()
			span.SetStatus(codes.Error, "status_conflict")
			logger.Warn().Msg("grading callback lost the race for the submission")
			return dto.GradingAck{}, ErrSubmissionNotProcessing
		}
		return dto.GradingAck{}, s.fail(ctx, span, submission, err)
	}

	observability.WebhookTotal().WithLabelValues("completed").Inc()
	span.SetStatus(codes.Ok, "completed")
	logger.Info().Int("overall_score", correction.OverallScore).Msg("grading result recorded")

	s.publish(ctx, events.Event{
		Type:         events.SubmissionCompleted,
		SubmissionID: submission.ID,
		UserID:       submission.UserID,
		Status:       models.SubmissionStatusCompleted,
		Details: map[string]interface{}{
			"correction_id": correction.ID,
			"overall_score": correction.OverallScore,
		},
	})

	return dto.GradingAck{
		SubmissionID: submission.ID,
		CorrectionID: correction.ID,
		Status:       models.SubmissionStatusCompleted,
		Criteria:     len(correction.Criteria),
	}, nil
}

func (s *gradingService) decode(body []byte) (dto.GradingResultRequest, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return dto.GradingResultRequest{}, fmt.Errorf("%w: body is not valid JSON", ErrInvalidGradingPayload)
	}
	if err := s.schema.Validate(document); err != nil {
		return dto.GradingResultRequest{}, fmt.Errorf("%w: %v", ErrInvalidGradingPayload, err)
	}

	var payload dto.GradingResultRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return dto.GradingResultRequest{}, fmt.Errorf("%w: %v", ErrInvalidGradingPayload, err)
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradingResultRequest{}, fmt.Errorf("%w: %v", ErrInvalidGradingPayload, err)
	}

	return payload, nil
}

func (s *gradingService) buildCorrection(payload dto.GradingResultRequest) (models.Correction, error) {
	points := make([]string, 0, len(payload.PositivePoints))
	for _, point := range payload.PositivePoints {
		points = append(points, point)
	}

	correction := models.Correction{
		OverallScore:   int(math.Round(payload.OverallScore)),
		GeneralComment: payload.GeneralComment,
		PositivePoints: points,
		Criteria:       make([]models.CorrectionCriterion, 0, len(payload.Criteria)),
	}

	for i, raw := range payload.Criteria {
		var item dto.GradingCriterionPayload
		if err := json.Unmarshal(raw, &item); err != nil {
			return models.Correction{}, fmt.Errorf("decode criterion %d: %w", i, err)
		}
		correction.Criteria = append(correction.Criteria, s.buildCriterion(item))
	}

	return correction, nil
}

func (s *gradingService) buildCriterion(item dto.GradingCriterionPayload) models.CorrectionCriterion {
	criterion := models.CorrectionCriterion{
		Name:     defaultCriterionName,
		MaxScore: defaultCriterionMaxScore,
	}
	if item.Name != nil && strings.TrimSpace(*item.Name) != "" {
		criterion.Name = *item.Name
	}
	if item.Score != nil {
		criterion.Score = int(math.Round(*item.Score))
	}
	if item.MaxScore != nil {
		criterion.MaxScore = int(math.Round(*item.MaxScore))
	}
	if item.FeedbackText != nil {
		criterion.FeedbackText = *item.FeedbackText
	}
	if item.IsPerfect != nil {
		criterion.IsPerfect = *item.IsPerfect
	}
	return criterion
}

// fail moves the submission to error after the correction transaction was
// rolled back, then reports ErrGradingFailed.
func (s *gradingService) fail(ctx context.Context, span trace.Span, submission models.EssaySubmission, cause error) error {
	observability.WebhookTotal().WithLabelValues("failed").Inc()
	span.RecordError(cause)
	span.SetStatus(codes.Error, "materialisation_failed")

	logger := s.logger.With().Uint("submission_id", submission.ID).Logger()
	logger.Error().Err(cause).Msg("failed to record grading result")

	entry := models.SubmissionLog{
		Step:    models.LogStepGradingFailed,
		Details: map[string]interface{}{"error": cause.Error()},
	}
	err := s.submissions.TransitionStatus(ctx, submission.ID, models.SubmissionStatusProcessing, models.SubmissionStatusError, &entry)
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		logger.Warn().Msg("submission left processing before failure was recorded")
	case err != nil:
		logger.Error().Err(err).Msg("failed to mark submission as errored")
	default:
		s.publish(ctx, events.Event{
			Type:         events.SubmissionFailed,
			SubmissionID: submission.ID,
			UserID:       submission.UserID,
			Status:       models.SubmissionStatusError,
			Details:      map[string]interface{}{"stage": "grading"},
		})
	}

	return fmt.Errorf("%w: %v", ErrGradingFailed, cause)
}

func (s *gradingService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish submission event")
	}
}

package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/dispatch"
	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/middleware"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates a submission does not exist or belongs to someone else.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrEmptySubmission indicates neither text nor file was sent.
	ErrEmptySubmission = errors.New("submitted_text or submitted_file is required")
)

// GradingDispatcher queues submissions for the external grading workflow.
type GradingDispatcher interface {
	Enqueue(job dispatch.Job) error
}

// SubmissionService accepts essays and serves the caller's history.
type SubmissionService interface {
	Submit(ctx context.Context, userID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	ListHistory(ctx context.Context, userID uint) ([]dto.SubmissionHistoryResponse, error)
	GetHistory(ctx context.Context, userID, submissionID uint) (dto.SubmissionHistoryResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	uploader    essayUploader
	dispatcher  GradingDispatcher
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewSubmissionService constructs a SubmissionService. storage may be nil, in
// which case file submissions are rejected.
func NewSubmissionService(submissions repository.SubmissionRepository, validate *validator.Validate, storage FileStorage, dispatcher GradingDispatcher, maxUploadMB int, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		validator:   validate,
		uploader:    newEssayUploader(storage, maxUploadMB),
		dispatcher:  dispatcher,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/essay-grader-api/internal/service/submission"),
	}
}

// Submit persists the essay as processing and queues it for grading. The
// response never waits for the grading workflow.
func (s *submissionService) Submit(ctx context.Context, userID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	span.SetAttributes(attribute.Int64("submission.user_id", int64(userID)))
	defer span.End()

	if payload.SubmittedText != nil {
		trimmed := strings.TrimSpace(*payload.SubmittedText)
		if trimmed == "" {
			payload.SubmittedText = nil
		} else {
			payload.SubmittedText = &trimmed
		}
	}

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	if payload.SubmittedText == nil && file == nil {
		span.SetStatus(codes.Error, "empty_submission")
		return dto.SubmissionResponse{}, ErrEmptySubmission
	}

	submission := models.EssaySubmission{
		UserID:        userID,
		SubmittedText: payload.SubmittedText,
		Status:        models.SubmissionStatusProcessing,
	}
	details := map[string]interface{}{
		"has_text": payload.SubmittedText != nil,
		"has_file": file != nil,
	}

	if file != nil {
		stored, err := s.uploader.store(ctx, file)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload_failed")
			return dto.SubmissionResponse{}, err
		}
		submission.SubmittedFile = &stored.URL
		details["file_mime"] = stored.MimeType
		details["file_size"] = stored.Size
	}

	entry := models.SubmissionLog{Step: models.LogStepReceived, Details: details}
	if err := s.submissions.CreateWithLog(ctx, &submission, &entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return dto.SubmissionResponse{}, err
	}
	span.SetAttributes(attribute.Int64("submission.id", int64(submission.ID)))

	job := dispatch.Job{
		SubmissionID:  submission.ID,
		UserID:        userID,
		SubmittedText: submission.SubmittedText,
		FileURL:       submission.SubmittedFile,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
	}

	if err := s.enqueue(job); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to queue submission for grading")
		failed := models.SubmissionLog{
			Step:    models.LogStepDispatchFailed,
			Details: map[string]interface{}{"error": err.Error()},
		}
		if markErr := s.submissions.TransitionStatus(ctx, submission.ID, models.SubmissionStatusProcessing, models.SubmissionStatusError, &failed); markErr != nil {
			s.logger.Error().Err(markErr).Uint("submission_id", submission.ID).Msg("failed to mark submission as errored")
		} else {
			submission.Status = models.SubmissionStatusError
		}
	}

	s.logger.Info().Uint("submission_id", submission.ID).Uint("user_id", userID).Msg("submission received")
	span.SetStatus(codes.Ok, "received")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) enqueue(job dispatch.Job) error {
	if s.dispatcher == nil {
		return dispatch.ErrClosed
	}
	return s.dispatcher.Enqueue(job)
}

func (s *submissionService) ListHistory(ctx context.Context, userID uint) ([]dto.SubmissionHistoryResponse, error) {
	submissions, err := s.submissions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionHistoryResponseSlice(submissions), nil
}

func (s *submissionService) GetHistory(ctx context.Context, userID, submissionID uint) (dto.SubmissionHistoryResponse, error) {
	submission, err := s.submissions.GetOwned(ctx, submissionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionHistoryResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionHistoryResponse{}, err
	}

	return dto.NewSubmissionHistoryResponse(submission), nil
}

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/essay-grader-api/internal/events"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/observability"
	"github.com/noah-isme/essay-grader-api/internal/repository"
)

var (
	// ErrQueueFull indicates the dispatch queue cannot accept more jobs.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrClosed indicates the dispatcher no longer accepts jobs.
	ErrClosed = errors.New("dispatcher is closed")
)

// Job is one submission waiting to be sent to the grading workflow.
type Job struct {
	SubmissionID  uint
	UserID        uint
	SubmittedText *string
	FileURL       *string
	CorrelationID string
}

type requestBody struct {
	SubmissionID  uint    `json:"submission_id"`
	SubmittedText *string `json:"submitted_text"`
	FileURL       *string `json:"file_url"`
}

// Config tunes the worker pool and the outbound call.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	QueueSize  int
}

// Dispatcher sends submissions to the grading workflow from a fixed pool of
// workers. Delivery is best effort: a failed send is not retried and leaves the
// submission in the error status.
type Dispatcher struct {
	cfg         Config
	client      *http.Client
	submissions repository.SubmissionRepository
	events      events.Publisher
	logger      zerolog.Logger
	tracer      trace.Tracer

	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New constructs a dispatcher. Call Start before enqueueing.
func New(cfg Config, submissions repository.SubmissionRepository, publisher events.Publisher, logger zerolog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &Dispatcher{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		submissions: submissions,
		events:      publisher,
		logger:      logger.With().Str("component", "grading_dispatcher").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/essay-grader-api/internal/dispatch"),
		queue:       make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. They stop once Shutdown closes the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.queue {
				d.process(ctx, job)
			}
		}()
	}
}

// Enqueue hands a job to the pool without blocking.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	ctx, span := d.tracer.Start(ctx, "grading.dispatch")
	span.SetAttributes(attribute.Int64("submission.id", int64(job.SubmissionID)))
	defer span.End()

	logger := d.logger.With().
		Uint("submission_id", job.SubmissionID).
		Str("correlation_id", job.CorrelationID).
		Logger()

	start := time.Now()
	statusCode, err := d.send(ctx, job)
	observability.DispatchDuration().Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		observability.DispatchTotal().WithLabelValues("failed").Inc()
		logger.Error().Err(err).Int("status_code", statusCode).Msg("grading dispatch failed")
		d.MarkFailed(ctx, job, err)
		return
	}

	observability.DispatchTotal().WithLabelValues("sent").Inc()
	span.SetStatus(codes.Ok, "dispatched")

	entry := models.SubmissionLog{
		EssaySubmissionID: job.SubmissionID,
		Step:              models.LogStepDispatched,
		Details:           map[string]interface{}{"status_code": statusCode},
	}
	if err := d.submissions.AppendLog(ctx, &entry); err != nil {
		logger.Warn().Err(err).Msg("failed to record dispatch log")
	}

	logger.Info().Int("status_code", statusCode).Msg("submission sent to grading workflow")
}

func (d *Dispatcher) send(ctx context.Context, job Job) (int, error) {
	body, err := json.Marshal(requestBody{
		SubmissionID:  job.SubmissionID,
		SubmittedText: job.SubmittedText,
		FileURL:       job.FileURL,
	})
	if err != nil {
		return 0, fmt.Errorf("encode dispatch payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if job.CorrelationID != "" {
		req.Header.Set("X-Correlation-ID", job.CorrelationID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post to grading workflow: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("grading workflow responded with status %d", resp.StatusCode)
	}

	return resp.StatusCode, nil
}

// MarkFailed degrades a submission that could not be dispatched to the error
// status. A submission that already left processing is left untouched.
func (d *Dispatcher) MarkFailed(ctx context.Context, job Job, cause error) {
	entry := models.SubmissionLog{
		Step:    models.LogStepDispatchFailed,
		Details: map[string]interface{}{"error": cause.Error()},
	}

	err := d.submissions.TransitionStatus(ctx, job.SubmissionID, models.SubmissionStatusProcessing, models.SubmissionStatusError, &entry)
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		d.logger.Warn().Uint("submission_id", job.SubmissionID).Msg("submission left processing before dispatch failure was recorded")
		return
	case err != nil:
		d.logger.Error().Err(err).Uint("submission_id", job.SubmissionID).Msg("failed to mark submission as errored")
		return
	}

	if err := d.events.Publish(ctx, events.Event{
		Type:         events.SubmissionFailed,
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		Status:       models.SubmissionStatusError,
		Details:      map[string]interface{}{"stage": "dispatch"},
	}); err != nil {
		d.logger.Warn().Err(err).Msg("failed to publish submission failure event")
	}
}

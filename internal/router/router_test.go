package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/config"
	"github.com/noah-isme/essay-grader-api/internal/database"
	"github.com/noah-isme/essay-grader-api/internal/dispatch"
	"github.com/noah-isme/essay-grader-api/internal/dto"
	"github.com/noah-isme/essay-grader-api/internal/events"
	"github.com/noah-isme/essay-grader-api/internal/handler"
	"github.com/noah-isme/essay-grader-api/internal/middleware"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/repository"
	"github.com/noah-isme/essay-grader-api/internal/router"
	"github.com/noah-isme/essay-grader-api/internal/service"
	"github.com/noah-isme/essay-grader-api/internal/utils"
	"github.com/noah-isme/essay-grader-api/pkg/mailer"
)

const (
	testJWTSecret     = "router-jwt-secret"
	testGradingSecret = "router-grading-secret"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app        *fiber.App
	db         *gorm.DB
	dispatched chan uint
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	dispatched := make(chan uint, 8)
	workflow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SubmissionID uint `json:"submission_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
		dispatched <- body.SubmissionID
	}))
	t.Cleanup(workflow.Close)

	logger := zerolog.New(io.Discard)
	validate := utils.NewValidator()
	cfg := config.Config{AppName: "Essay Grader API", AppEnv: "test", JWTSecret: testJWTSecret}

	users := repository.NewUserRepository(db)
	profiles := repository.NewProfileRepository(db)
	submissions := repository.NewSubmissionRepository(db)

	dispatcher := dispatch.New(dispatch.Config{WebhookURL: workflow.URL, Timeout: 2 * time.Second, Workers: 1, QueueSize: 8}, submissions, events.Nop{}, logger)
	dispatcher.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})

	accounts := service.NewAccountService(users, profiles, validate, mailer.NewLog(logger), service.AccountConfig{
		AppName:       cfg.AppName,
		FrontendURL:   "http://localhost:3000",
		StartingCoins: 10,
		JWTSecret:     testJWTSecret,
	}, logger)
	wallet := service.NewWalletService(profiles, validate, logger)
	themes := service.NewThemeService(repository.NewThemeRepository(db), validate, nil, time.Minute, logger)
	intake := service.NewSubmissionService(submissions, validate, nil, dispatcher, 5, logger)
	grading, err := service.NewGradingService(submissions, validate, events.Nop{}, testGradingSecret, logger)
	require.NoError(t, err)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AccountHandler:    handler.NewAccountHandler(accounts, wallet, logger),
		ThemeHandler:      handler.NewThemeHandler(themes, logger),
		SubmissionHandler: handler.NewSubmissionHandler(intake, logger),
		WebhookHandler:    handler.NewWebhookHandler(grading, logger),
		AdminHandler:      handler.NewAdminHandler(accounts, wallet, logger),
		JWTMiddleware:     middleware.JWTProtected(testJWTSecret),
		HealthChecks:      map[string]database.Check{"database": database.PostgresCheck(db)},
		Logger:            logger,
	})

	return &testServer{app: app, db: db, dispatched: dispatched}
}

func (s *testServer) call(t *testing.T, method, path, token string, payload interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) signUp(t *testing.T, username string) (uint, string) {
	t.Helper()
	status, _ := s.call(t, http.MethodPost, "/api/register/", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password-" + username,
	}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	return s.login(t, username)
}

func (s *testServer) login(t *testing.T, username string) (uint, string) {
	t.Helper()
	status, body := s.call(t, http.MethodPost, "/api/token/", "", map[string]string{
		"username": username,
		"password": "password-" + username,
	}, nil)
	require.Equal(t, fiber.StatusOK, status)

	var token dto.TokenResponse
	require.NoError(t, json.Unmarshal(body.Data, &token))
	require.NotEmpty(t, token.AccessToken)
	return token.User.ID, token.AccessToken
}

func (s *testServer) waitDispatch(t *testing.T) uint {
	t.Helper()
	select {
	case id := <-s.dispatched:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("submission was not dispatched")
		return 0
	}
}

func gradingPayload(submissionID uint) map[string]interface{} {
	return map[string]interface{}{
		"submission_id":   submissionID,
		"overall_score":   760,
		"general_comment": "Boa argumentação.",
		"positive_points": []string{"Tese clara"},
		"criteria": []map[string]interface{}{
			{"name": "Competência 1", "score": 160, "max_score": 200, "feedback_text": "Poucos desvios."},
			{"name": "Competência 2", "score": 200, "is_perfect": true},
			{"score": 80},
		},
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	_, alice := srv.signUp(t, "alice")
	_, bob := srv.signUp(t, "bob")

	status, body := srv.call(t, http.MethodPost, "/api/submissions/", alice, map[string]string{"submitted_text": "A tecnologia aproxima pessoas."}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	var submission dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(body.Data, &submission))
	require.Equal(t, models.SubmissionStatusProcessing, submission.Status)
	require.Equal(t, submission.ID, srv.waitDispatch(t))

	path := fmt.Sprintf("/api/history/%d/", submission.ID)
	status, _ = srv.call(t, http.MethodGet, path, bob, nil, nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, body = srv.call(t, http.MethodGet, path, alice, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var pending dto.SubmissionHistoryResponse
	require.NoError(t, json.Unmarshal(body.Data, &pending))
	require.Nil(t, pending.Correction)

	webhook := "/api/webhooks/grading-complete/"
	status, _ = srv.call(t, http.MethodPost, webhook, "", gradingPayload(submission.ID), map[string]string{handler.WebhookSecretHeader: "wrong"})
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = srv.call(t, http.MethodPost, webhook, "", gradingPayload(submission.ID+100), map[string]string{handler.WebhookSecretHeader: testGradingSecret})
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = srv.call(t, http.MethodPost, webhook, "", gradingPayload(submission.ID), map[string]string{handler.WebhookSecretHeader: testGradingSecret})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = srv.call(t, http.MethodPost, webhook, "", gradingPayload(submission.ID), map[string]string{handler.WebhookSecretHeader: testGradingSecret})
	require.Equal(t, fiber.StatusNotFound, status)

	status, body = srv.call(t, http.MethodGet, path, alice, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var graded dto.SubmissionHistoryResponse
	require.NoError(t, json.Unmarshal(body.Data, &graded))
	require.Equal(t, models.SubmissionStatusCompleted, graded.Status)
	require.NotNil(t, graded.Correction)
	require.Equal(t, 760, graded.Correction.OverallScore)
	require.Len(t, graded.Correction.Criteria, 3)
	require.Equal(t, "Critério", graded.Correction.Criteria[2].Name)
	require.Equal(t, 200, graded.Correction.Criteria[2].MaxScore)

	status, body = srv.call(t, http.MethodGet, "/api/history/", bob, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var bobHistory []dto.SubmissionHistoryResponse
	require.NoError(t, json.Unmarshal(body.Data, &bobHistory))
	require.Empty(t, bobHistory)
}

func TestMalformedCriterionMarksSubmissionError(t *testing.T) {
	srv := newTestServer(t)
	_, alice := srv.signUp(t, "alice")

	status, body := srv.call(t, http.MethodPost, "/api/submissions", alice, map[string]string{"submitted_text": "Texto"}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	var submission dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(body.Data, &submission))
	srv.waitDispatch(t)

	payload := gradingPayload(submission.ID)
	payload["criteria"] = []interface{}{map[string]interface{}{"name": "Competência 1"}, 42}
	status, _ = srv.call(t, http.MethodPost, "/api/webhooks/grading-complete", "", payload, map[string]string{handler.WebhookSecretHeader: testGradingSecret})
	require.Equal(t, fiber.StatusInternalServerError, status)

	status, body = srv.call(t, http.MethodGet, fmt.Sprintf("/api/history/%d", submission.ID), alice, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var history dto.SubmissionHistoryResponse
	require.NoError(t, json.Unmarshal(body.Data, &history))
	require.Equal(t, models.SubmissionStatusError, history.Status)
	require.Nil(t, history.Correction)
}

func TestEmptySubmissionRejected(t *testing.T) {
	srv := newTestServer(t)
	_, alice := srv.signUp(t, "alice")

	status, _ := srv.call(t, http.MethodPost, "/api/submissions/", alice, map[string]string{"submitted_text": "   "}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	var count int64
	require.NoError(t, srv.db.Model(&models.EssaySubmission{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestThemesAreStaffManaged(t *testing.T) {
	srv := newTestServer(t)
	teacherID, student := srv.signUp(t, "carla")

	theme := map[string]string{"title": "Desafios da educação", "motivational_text": "Leia os textos.", "category": "Educação"}
	status, _ := srv.call(t, http.MethodPost, "/api/themes/", student, theme, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	require.NoError(t, srv.db.Model(&models.Profile{}).Where("user_id = ?", teacherID).Update("role", models.RoleTeacher).Error)
	_, teacher := srv.login(t, "carla")

	status, _ = srv.call(t, http.MethodPost, "/api/themes/", teacher, theme, nil)
	require.Equal(t, fiber.StatusCreated, status)

	status, body := srv.call(t, http.MethodGet, "/api/themes/", "", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var themes []dto.ThemeResponse
	require.NoError(t, json.Unmarshal(body.Data, &themes))
	require.Len(t, themes, 1)
	require.Equal(t, "Desafios da educação", themes[0].Title)
}

func TestAdminRoutesAndProfile(t *testing.T) {
	srv := newTestServer(t)
	studentID, student := srv.signUp(t, "davi")
	adminID, _ := srv.signUp(t, "root")
	require.NoError(t, srv.db.Model(&models.Profile{}).Where("user_id = ?", adminID).Update("role", models.RoleAdmin).Error)
	_, admin := srv.login(t, "root")

	coins := fmt.Sprintf("/api/admin/profiles/%d/coins/", studentID)
	status, _ := srv.call(t, http.MethodPost, coins, student, map[string]interface{}{"type": "credit", "amount": 5}, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = srv.call(t, http.MethodPost, coins, admin, map[string]interface{}{"type": "credit", "amount": 15, "description": "prêmio"}, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := srv.call(t, http.MethodGet, "/api/profile/me/", student, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var profile dto.ProfileResponse
	require.NoError(t, json.Unmarshal(body.Data, &profile))
	require.Equal(t, 25, profile.CoinsBalance)

	status, _ = srv.call(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d/", studentID), admin, nil, nil)
	require.Equal(t, fiber.StatusNoContent, status)

	var profiles int64
	require.NoError(t, srv.db.Model(&models.Profile{}).Where("user_id = ?", studentID).Count(&profiles).Error)
	require.Zero(t, profiles)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Essay Grader API", resp.Header.Get("X-Application"))
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	var health envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	var payload handler.HealthResponse
	require.NoError(t, json.Unmarshal(health.Data, &payload))
	require.Equal(t, map[string]string{"database": "ok"}, payload.Dependencies)

	for i := 0; i < 3; i++ {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			resp, err := srv.app.Test(httptest.NewRequest(method, "/api/themes", nil), -1)
			require.NoError(t, err)
			resp.Body.Close()
		}
	}

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

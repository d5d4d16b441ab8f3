package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-grader-api/internal/dto"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeAuth stands in for JWTProtected: X-Test-User and X-Test-Role populate
// the identity locals, and a missing user is rejected like a missing token.
func fakeAuth(c *fiber.Ctx) error {
	raw := c.Get("X-Test-User")
	if raw == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "authorization header missing"})
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	c.Locals("user_id", uint(id))
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	switch v := payload.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(v)
	default:
		encoded, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func asUser(req *http.Request, id uint, role string) *http.Request {
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(id), 10))
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

type mockAccountService struct {
	registered dto.RegisterRequest
	login      dto.LoginRequest
	changedFor uint
	resetFor   dto.PasswordResetRequest
	confirm    dto.PasswordResetConfirmRequest
	deleted    uint
	user       dto.UserResponse
	token      dto.TokenResponse
	profile    dto.ProfileResponse
	err        error
}

func (m *mockAccountService) Register(_ context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	m.registered = payload
	return m.user, m.err
}

func (m *mockAccountService) Login(_ context.Context, payload dto.LoginRequest) (dto.TokenResponse, error) {
	m.login = payload
	return m.token, m.err
}

func (m *mockAccountService) ChangePassword(_ context.Context, userID uint, _ dto.ChangePasswordRequest) error {
	m.changedFor = userID
	return m.err
}

func (m *mockAccountService) RequestPasswordReset(_ context.Context, payload dto.PasswordResetRequest) error {
	m.resetFor = payload
	return m.err
}

func (m *mockAccountService) ConfirmPasswordReset(_ context.Context, payload dto.PasswordResetConfirmRequest) error {
	m.confirm = payload
	return m.err
}

func (m *mockAccountService) GetProfile(_ context.Context, _ uint) (dto.ProfileResponse, error) {
	return m.profile, m.err
}

func (m *mockAccountService) DeleteUser(_ context.Context, userID uint) error {
	m.deleted = userID
	return m.err
}

type mockWalletService struct {
	listedFor     uint
	limit, offset int
	adjustedFor   uint
	adjust        dto.CoinAdjustRequest
	items         []dto.CoinTransactionResponse
	meta          dto.PaginationMeta
	result        dto.CoinAdjustResponse
	err           error
}

func (m *mockWalletService) ListTransactions(_ context.Context, userID uint, limit, offset int) ([]dto.CoinTransactionResponse, dto.PaginationMeta, error) {
	m.listedFor, m.limit, m.offset = userID, limit, offset
	return m.items, m.meta, m.err
}

func (m *mockWalletService) Adjust(_ context.Context, userID uint, payload dto.CoinAdjustRequest) (dto.CoinAdjustResponse, error) {
	m.adjustedFor = userID
	m.adjust = payload
	return m.result, m.err
}

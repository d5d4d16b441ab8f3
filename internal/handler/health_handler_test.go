package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-grader-api/internal/config"
	"github.com/noah-isme/essay-grader-api/internal/database"
	"github.com/noah-isme/essay-grader-api/internal/handler"
)

var healthConfig = config.Config{AppName: "Essay Grader API", AppEnv: "test"}

func healthApp(checks map[string]database.Check) *fiber.App {
	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(healthConfig, checks, testLogger()))
	return app
}

func TestHealthCheckReportsReadyDependencies(t *testing.T) {
	app := healthApp(map[string]database.Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	})

	resp, body := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)

	var payload handler.HealthResponse
	decodeData(t, body, &payload)
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, healthConfig.AppName, payload.Service)
	require.Equal(t, healthConfig.AppEnv, payload.Environment)
	require.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, payload.Dependencies)
	require.WithinDuration(t, time.Now().UTC(), payload.Timestamp, 2*time.Second)
}

func TestHealthCheckDegradesWhenDatabaseIsDown(t *testing.T) {
	app := healthApp(map[string]database.Check{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	resp, body := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	require.False(t, body.Success)

	var payload handler.HealthResponse
	require.NoError(t, json.Unmarshal(body.Details, &payload))
	require.Equal(t, "degraded", payload.Status)
	require.Equal(t, "unavailable", payload.Dependencies["database"])
}

func TestHealthCheckWithoutDependencies(t *testing.T) {
	resp, body := do(t, healthApp(nil), jsonRequest(t, http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload handler.HealthResponse
	decodeData(t, body, &payload)
	require.Empty(t, payload.Dependencies)
}

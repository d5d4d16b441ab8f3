package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func rateLimitedApp(identity fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	if identity != nil {
		app.Use(identity)
	}
	app.Post("/password-reset", RateLimit("password-reset", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postFrom(t *testing.T, app *fiber.App, ip string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/password-reset", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, ip)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRateLimitKeysAnonymousCallersByIP(t *testing.T) {
	app := rateLimitedApp(nil)

	require.Equal(t, fiber.StatusOK, postFrom(t, app, "10.0.0.1"))
	require.Equal(t, fiber.StatusOK, postFrom(t, app, "10.0.0.1"))
	require.Equal(t, fiber.StatusTooManyRequests, postFrom(t, app, "10.0.0.1"))

	require.Equal(t, fiber.StatusOK, postFrom(t, app, "192.168.9.9"))
	require.Equal(t, fiber.StatusOK, postFrom(t, app, "192.168.9.9"))
}

func TestRateLimitKeysAuthenticatedCallersByUser(t *testing.T) {
	app := rateLimitedApp(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		return c.Next()
	})

	require.Equal(t, fiber.StatusOK, postFrom(t, app, "10.0.0.1"))
	require.Equal(t, fiber.StatusOK, postFrom(t, app, "10.0.0.2"))
	require.Equal(t, fiber.StatusTooManyRequests, postFrom(t, app, "10.0.0.3"))
}

package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/observability"
)

// unmatchedRoute labels requests no route handled, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// requestSample is one finished /api request. Its strings are copied out of
// the fasthttp request buffer, which is reused once the handler returns.
type requestSample struct {
	method  string
	route   string
	status  int
	elapsed time.Duration
}

// Observability records request metrics and writes one structured log line per
// /api request.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()
	logger = logger.With().Str("component", "http").Logger()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		if !strings.HasPrefix(c.Path(), "/api/") {
			return err
		}

		sample := requestSample{
			method:  fiberutils.CopyString(c.Method()),
			route:   routeLabel(c),
			status:  c.Response().StatusCode(),
			elapsed: time.Since(start),
		}
		sample.record()
		sample.log(logger, c)

		return err
	}
}

func routeLabel(c *fiber.Ctx) string {
	route := c.Route()
	if route == nil || route.Path == "" || route.Path == "/" {
		return unmatchedRoute
	}
	return fiberutils.CopyString(route.Path)
}

func (s requestSample) record() {
	status := strconv.Itoa(s.status)
	observability.APIRequests().WithLabelValues(s.method, s.route, status).Inc()
	observability.APILatency().WithLabelValues(s.method, s.route).Observe(s.elapsed.Seconds())
	if s.status >= fiber.StatusBadRequest {
		observability.APIErrors().WithLabelValues(s.method, s.route, status).Inc()
	}
}

func (s requestSample) log(logger zerolog.Logger, c *fiber.Ctx) {
	event := logger.Info()
	switch {
	case s.status >= fiber.StatusInternalServerError:
		event = logger.Error()
	case s.status >= fiber.StatusBadRequest:
		event = logger.Warn()
	}

	if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
		event = event.Uint("user_id", userID)
	}

	event.
		Str("correlation_id", GetCorrelationID(c)).
		Str("method", s.method).
		Str("route", s.route).
		Int("status", s.status).
		Dur("latency", s.elapsed).
		Msg("request completed")
}

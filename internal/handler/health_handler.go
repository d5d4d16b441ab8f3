package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/config"
	"github.com/noah-isme/essay-grader-api/internal/database"
	"github.com/noah-isme/essay-grader-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse reports service identity and the state of each dependency.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck runs every dependency check and answers 503 when one fails.
func HealthCheck(cfg config.Config, checks map[string]database.Check, logger zerolog.Logger) fiber.Handler {
	logger = logger.With().Str("component", "health_handler").Logger()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
		defer cancel()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if len(names) > 0 {
			payload.Dependencies = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				requestLogger(logger, c).Warn().Err(err).Str("dependency", name).Msg("dependency unavailable")
				payload.Dependencies[name] = "unavailable"
				payload.Status = "degraded"
				continue
			}
			payload.Dependencies[name] = "ok"
		}

		if payload.Status != "ok" {
			return utils.Fail(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/utils"
)

// RequireRole lets the request through only when user_role is one of roles.
// It panics on a role the profile model does not define.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized, ok := models.NormalizeRole(role)
		if !ok {
			panic(fmt.Sprintf("middleware: unknown role %q", role))
		}
		allowed[normalized] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[roleFromLocals(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// roleFromLocals returns the caller's role, or "" when it is missing or unknown.
func roleFromLocals(c *fiber.Ctx) string {
	raw, _ := c.Locals("user_role").(string)
	role, ok := models.NormalizeRole(raw)
	if !ok {
		return ""
	}
	return role
}

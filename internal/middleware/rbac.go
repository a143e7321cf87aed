package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/promptlab-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed
// roles. Requests without an identity get 401 so clients re-authenticate
// instead of treating it as a permission problem.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		normalized := normalizeRole(role)
		if normalized != "" {
			allowed[normalized] = struct{}{}
			names = append(names, normalized)
		}
	}
	denied := fmt.Sprintf("%s role required", strings.Join(names, " or "))

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[normalizeRole(c.Locals("user_role"))]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, denied)
		}
		return c.Next()
	}
}

// normalizeRole lowers a role claim or local. A list claim yields its first
// non-empty entry.
func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []string:
		for _, item := range v {
			if role := normalizeRole(item); role != "" {
				return role
			}
		}
		return ""
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := normalizeRole(str); role != "" {
					return role
				}
			}
		}
		return ""
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return ""
	}
}

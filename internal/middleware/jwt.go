package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/walletbook/walletbook/internal/auth"
)

const bearerPrefix = "bearer "

// JWTAuth validates the bearer access token, rejects tokens revoked by a
// logout and stores the caller in locals under "user_id".
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) <= len(bearerPrefix) || !strings.EqualFold(authz[:len(bearerPrefix)], bearerPrefix) {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}

		user, err := tokens.Authorize(c.UserContext(), strings.TrimSpace(authz[len(bearerPrefix):]))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				return fiber.NewError(http.StatusUnauthorized, "invalid or expired token")
			}
			return err
		}

		c.Locals("user_id", user.ID)
		c.Locals("token_version", user.TokenVersion)
		return c.Next()
	}
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the configured client origin. Credentials are only allowed for
// explicit origins.
func CORS(origin string) fiber.Handler {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     origin,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
		AllowMethods:     "GET,POST,OPTIONS",
		ExposeHeaders:    "X-Request-ID, X-Wallet-Balance",
		AllowCredentials: origin != "*",
	})
}

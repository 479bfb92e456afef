package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/walletbook/walletbook/internal/auth"
	"github.com/walletbook/walletbook/internal/identity"
	"github.com/walletbook/walletbook/internal/logging"
)

func TestJWTAuth(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo).WithHashCost(bcrypt.MinCost)
	tokens := auth.NewService("test-secret", time.Hour, repo)

	user, err := ids.Register(context.Background(), identity.Credentials{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	token, err := tokens.Issue(user)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", JWTAuth(tokens), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, call("Bearer "+token.Value))
	assert.Equal(t, http.StatusOK, call("bearer "+token.Value))
	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Basic abc"))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage"))

	require.NoError(t, tokens.Logout(context.Background(), user.ID))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+token.Value))
}

func TestLoginRateLimitByEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	login := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, login("ada@example.com"))
	assert.Equal(t, http.StatusOK, login("ADA@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, login("ada@example.com"))
	assert.Equal(t, http.StatusOK, login("bob@example.com"))

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, login("ada@example.com"))
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 1, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestWriteRateLimitSkipsReads(t *testing.T) {
	app := fiber.New()
	app.Use(WriteRateLimit(1))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusCreated) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRequestIDPropagatesOrGenerates(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

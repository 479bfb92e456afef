package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/walletbook/walletbook/internal/logging"
)

type idempotencyHarness struct {
	app   *fiber.App
	calls *atomic.Int32
	fail  *atomic.Bool
	mr    *miniredis.Miniredis
}

func setupTestApp(t *testing.T) idempotencyHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	h := idempotencyHarness{app: fiber.New(), calls: &atomic.Int32{}, fail: &atomic.Bool{}, mr: mr}
	h.app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-Test-User"))
		return c.Next()
	})
	h.app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	h.app.Post("/resource", func(c *fiber.Ctx) error {
		n := h.calls.Add(1)
		if h.fail.Load() {
			return fiber.NewError(fiber.StatusBadRequest, "rejected")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	return h
}

func (h idempotencyHarness) post(t *testing.T, user, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	h := setupTestApp(t)

	for i := 0; i < 2; i++ {
		status, _ := h.post(t, "u1", "")
		if status != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
		}
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	h := setupTestApp(t)

	status, payload := h.post(t, "u1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	status, cached := h.post(t, "u1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if cached != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cached)
	}
	if got := h.calls.Load(); got != 1 {
		t.Fatalf("expected handler to run once, ran %d times", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cached), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	h := setupTestApp(t)

	h.post(t, "u1", "same-key")
	h.post(t, "u2", "same-key")
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected separate executions per user, got %d", got)
	}
}

func TestIdempotencyFailedAttemptReleasesKey(t *testing.T) {
	h := setupTestApp(t)
	h.fail.Store(true)

	status, _ := h.post(t, "u1", "retry-me")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}

	h.fail.Store(false)
	status, _ = h.post(t, "u1", "retry-me")
	if status != fiber.StatusCreated {
		t.Fatalf("expected retry to succeed, got %d", status)
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected 2 executions, got %d", got)
	}
}

func TestIdempotencyInFlightKeyConflicts(t *testing.T) {
	h := setupTestApp(t)
	if err := h.mr.Set(idempotencyPrefix+"u1:/resource:busy", inProgressMarker); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	status, _ := h.post(t, "u1", "busy")
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
	if got := h.calls.Load(); got != 0 {
		t.Fatalf("handler should not run, ran %d times", got)
	}
}

package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerApp(t *testing.T) *fiber.App {
	t.Helper()
	l := NewInMemory()
	require.NoError(t, l.OpenAccount(context.Background(), "w1", "u1"))
	h := NewHandler(NewService(l, nil, nil))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-Test-User"))
		return c.Next()
	})
	app.Post("/wallets/:walletId/transactions", h.Add)
	app.Get("/wallets/:walletId/transactions", h.List)
	app.Get("/wallets/:walletId/reconcile", h.Reconcile)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHandler_AddAndList(t *testing.T) {
	app := newHandlerApp(t)

	resp, body := do(t, app, http.MethodPost, "/wallets/w1/transactions", "u1", `{"amount":"100","type":"credit","category":"salary"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "100", resp.Header.Get("X-Wallet-Balance"))

	var created TransactionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "w1", created.WalletID)
	assert.Equal(t, Credit, created.Type)
	assert.Equal(t, "100", created.Amount.String())

	resp, body = do(t, app, http.MethodPost, "/wallets/w1/transactions", "u1", `{"amount":30,"type":"DEBIT","date":"2024-01-02T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "70", resp.Header.Get("X-Wallet-Balance"))

	resp, body = do(t, app, http.MethodGet, "/wallets/w1/transactions?limit=1", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Items  []TransactionResponse `json:"items"`
		Limit  int                   `json:"limit"`
		Offset int                   `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 1, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.ID, page.Items[0].ID)
}

func TestHandler_AddRejectsBadInput(t *testing.T) {
	app := newHandlerApp(t)

	cases := map[string]string{
		"missing amount":  `{"type":"credit"}`,
		"negative amount": `{"amount":"-5","type":"credit"}`,
		"bad type":        `{"amount":"5","type":"gift"}`,
		"malformed":       `{"amount":`,
		"bad amount":      `{"amount":"lots","type":"credit"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, data := do(t, app, http.MethodPost, "/wallets/w1/transactions", "u1", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
		})
	}
}

func TestHandler_BalanceOverflowIsBadRequest(t *testing.T) {
	app := newHandlerApp(t)

	resp, body := do(t, app, http.MethodPost, "/wallets/w1/transactions", "u1", `{"amount":"9999999999999999.9999","type":"credit"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = do(t, app, http.MethodPost, "/wallets/w1/transactions", "u1", `{"amount":"1","type":"credit"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "out of range")
}

func TestHandler_ForeignWalletIsNotFound(t *testing.T) {
	app := newHandlerApp(t)

	resp, _ := do(t, app, http.MethodPost, "/wallets/w1/transactions", "u2", `{"amount":"5","type":"credit"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/wallets/w1/transactions", "u2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, app, http.MethodGet, "/wallets/w1/reconcile", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, true, rec["in_sync"])
}

func TestHandler_KeepAliveConnectionKeepsWalletsApart(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	require.NoError(t, l.OpenAccount(ctx, "wallet-a", "u1"))
	require.NoError(t, l.OpenAccount(ctx, "wallet-b", "u1"))
	h := NewHandler(NewService(l, nil, nil))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "u1")
		return c.Next()
	})
	app.Post("/wallets/:walletId/transactions", h.Add)
	app.Get("/wallets/:walletId/transactions", h.List)
	app.Get("/wallets/:walletId/reconcile", h.Reconcile)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	transport := &http.Transport{MaxConnsPerHost: 1, MaxIdleConnsPerHost: 1}
	t.Cleanup(transport.CloseIdleConnections)
	client := &http.Client{Transport: transport}
	base := "http://" + ln.Addr().String()
	send := func(method, path, body string) int {
		req, err := http.NewRequest(method, base+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusCreated, send(http.MethodPost, "/wallets/wallet-a/transactions", `{"amount":"100","type":"credit"}`))
	require.Equal(t, http.StatusOK, send(http.MethodGet, "/wallets/wallet-b/transactions", ""))
	require.Equal(t, http.StatusOK, send(http.MethodGet, "/wallets/wallet-b/reconcile", ""))

	historyA, err := l.History(ctx, "wallet-a", "u1", Page{})
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	assert.Equal(t, "wallet-a", historyA[0].WalletID)
	historyB, err := l.History(ctx, "wallet-b", "u1", Page{})
	require.NoError(t, err)
	assert.Empty(t, historyB)

	for _, id := range []string{"wallet-a", "wallet-b"} {
		rec, err := l.Reconcile(ctx, id, "u1")
		require.NoError(t, err)
		assert.True(t, rec.InSync, id)
	}
}

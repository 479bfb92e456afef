package ledger

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/shopspring/decimal"
)

// Handler exposes transaction HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transaction HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addTransactionRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Type     string           `json:"type"`
	Category string           `json:"category"`
	Notes    string           `json:"notes"`
	Date     *time.Time       `json:"date"`
}

// TransactionResponse is the JSON shape of a transaction.
type TransactionResponse struct {
	ID        string          `json:"id"`
	WalletID  string          `json:"wallet_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      Type            `json:"type"`
	Category  string          `json:"category,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToResponse converts a transaction into its JSON shape.
func ToResponse(t Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID,
		WalletID:  t.WalletID,
		UserID:    t.OwnerID,
		Amount:    t.Amount,
		Type:      t.Type,
		Category:  t.Category,
		Notes:     t.Notes,
		Date:      t.Date,
		CreatedAt: t.CreatedAt,
	}
}

// ToResponses converts a slice, never returning nil so JSON renders [].
func ToResponses(txs []Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, ToResponse(t))
	}
	return out
}

// Add records a transaction against the caller's wallet.
func (h *Handler) Add(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req addTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	if req.Amount == nil {
		return fiber.NewError(http.StatusBadRequest, ErrValidation.Error()+": amount is required")
	}

	posting, err := h.service.AddTransaction(c.UserContext(), AddInput{
		WalletID: walletParam(c),
		OwnerID:  uid,
		Amount:   *req.Amount,
		Type:     Type(strings.ToLower(strings.TrimSpace(req.Type))),
		Category: req.Category,
		Notes:    req.Notes,
		Date:     req.Date,
	})
	if err != nil {
		return MapError(err)
	}

	c.Set("X-Wallet-Balance", posting.Balance.String())
	return c.Status(http.StatusCreated).JSON(ToResponse(posting.Transaction))
}

// List returns a page of the wallet's transactions, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	page := Page{Limit: c.QueryInt("limit"), Offset: c.QueryInt("offset")}.Normalize()

	txs, err := h.service.History(c.UserContext(), walletParam(c), uid, page)
	if err != nil {
		return MapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"items":  ToResponses(txs),
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// Reconcile reports whether the cached balance matches the transaction history.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	rec, err := h.service.Reconcile(c.UserContext(), walletParam(c), uid)
	if err != nil {
		return MapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":       rec.WalletID,
		"cached_balance":  rec.Cached,
		"derived_balance": rec.Derived,
		"in_sync":         rec.InSync,
	})
}

// walletParam copies the route param; fiber reuses the request buffer once
// the handler returns and backends may keep the id.
func walletParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("walletId"))
}

// MapError translates ledger errors into HTTP errors. Unknown errors pass
// through untouched so the server error handler logs them as 500s.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	default:
		return err
	}
}

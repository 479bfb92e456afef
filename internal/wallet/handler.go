package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/shopspring/decimal"

	"github.com/walletbook/walletbook/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service      *Service
	transactions *ledger.Service
}

// NewHandler builds a wallet HTTP handler. transactions backs the history
// embedded in the wallet detail response.
func NewHandler(service *Service, transactions *ledger.Service) *Handler {
	return &Handler{service: service, transactions: transactions}
}

type createRequest struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Currency string `json:"currency"`
}

type walletResponse struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Name      string          `json:"name"`
	Purpose   string          `json:"purpose,omitempty"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

func toResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		Name:      w.Name,
		Purpose:   w.Purpose,
		Currency:  w.Currency,
		Balance:   w.Balance,
		CreatedAt: w.CreatedAt,
	}
}

// Create provisions a wallet for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	wallet, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:  uid,
		Name:     req.Name,
		Purpose:  req.Purpose,
		Currency: req.Currency,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(wallet))
}

// List returns every wallet of the authenticated owner.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	wallets, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return mapError(err)
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, toResponse(w))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Get returns the wallet with its most recent transactions.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	wallet, err := h.service.Get(c.UserContext(), utils.CopyString(c.Params("walletId")), uid)
	if err != nil {
		return mapError(err)
	}
	txs, err := h.transactions.History(c.UserContext(), wallet.ID, uid, ledger.Page{})
	if err != nil {
		return ledger.MapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet":       toResponse(wallet),
		"transactions": ledger.ToResponses(txs),
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNameTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	default:
		return err
	}
}

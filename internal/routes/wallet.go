package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletbook/walletbook/internal/ledger"
	"github.com/walletbook/walletbook/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets", h.List)
	r.Get("/wallets/:walletId", h.Get)
}

// RegisterTransactionRoutes wires transaction endpoints nested under a wallet.
func RegisterTransactionRoutes(r fiber.Router, h *ledger.Handler, idempotency fiber.Handler) {
	r.Get("/wallets/:walletId/transactions", h.List)
	r.Post("/wallets/:walletId/transactions", idempotency, h.Add)
	r.Get("/wallets/:walletId/reconcile", h.Reconcile)
}

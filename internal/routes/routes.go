// Package routes defines the API routing configuration.
package routes

import (
	"pearlbingo/internal/handlers"
	"pearlbingo/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth     *middleware.AuthMiddleware
	Wallet   *handlers.WalletHandler
	Deposit  *handlers.DepositHandler
	Purchase *handlers.PurchaseHandler
	Admin    *handlers.AdminHandler
	Webhook  *handlers.WebhookHandler
	Health   *handlers.HealthHandler
	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.HealthCheck)
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{})))
	}

	// Gateway callbacks authenticate by signature, not by bearer token.
	app.Post("/webhooks/gateway", h.Webhook.Handle)

	api := app.Group("/api", h.Auth.Handler)

	api.Get("/wallet", h.Wallet.GetWallet)
	api.Get("/wallet/transactions", h.Wallet.ListTransactions)
	api.Post("/wallet/transfer", h.Wallet.Transfer)

	api.Post("/deposits", h.Deposit.Create)
	api.Post("/deposits/:id/cancel", h.Deposit.Cancel)

	api.Post("/games/:id/cards", h.Purchase.BuyCards)

	setupAdminRoutes(api, h)
}

func setupAdminRoutes(api fiber.Router, h Handlers) {
	admin := api.Group("/admin", h.Auth.AdminOnly)

	admin.Post("/prizes", h.Admin.AwardPrize)
	admin.Post("/deposits/:id/approve", h.Admin.ApproveDeposit)
	admin.Post("/deposits/:id/reject", h.Admin.RejectDeposit)

	wallets := admin.Group("/wallets/:userId")
	wallets.Post("/freeze", h.Admin.FreezeWallet)
	wallets.Post("/unfreeze", h.Admin.UnfreezeWallet)
	wallets.Post("/clear-hold", h.Admin.ClearHold)
	wallets.Post("/active", h.Admin.SetActive)
	wallets.Post("/adjust", h.Admin.Adjust)
	wallets.Get("/verify", h.Admin.VerifyLedger)
}

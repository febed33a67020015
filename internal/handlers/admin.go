package handlers

import (
	"pearlbingo/internal/logger"
	"pearlbingo/internal/services/gateway"
	"pearlbingo/internal/services/purchase"
	"pearlbingo/internal/services/wallet"
	"pearlbingo/internal/utils"
	"pearlbingo/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminHandler serves the /api/admin routes. Callers are checked by AdminOnly.
type AdminHandler struct {
	wallets   wallet.Service
	purchases purchase.Service
	gateway   gateway.Service
	logger    *zap.Logger
}

func NewAdminHandler(wallets wallet.Service, purchases purchase.Service, gw gateway.Service, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		wallets:   wallets,
		purchases: purchases,
		gateway:   gw,
		logger:    logger.OrNop(log).Named("admin"),
	}
}

func (h *AdminHandler) AwardPrize(c *fiber.Ctx) error {
	var req purchase.PrizeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	v := validation.New()
	v.Struct(req)
	if err := v.Err(); err != nil {
		return respondError(c, h.logger, err)
	}

	receipt, err := h.purchases.AwardPrize(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "prize_awarded", zap.Uint("user_id", req.UserID), zap.Uint("game_id", req.GameID))
	return utils.Success(c, receipt)
}

type notesInput struct {
	Notes string `json:"notes" validate:"max=1000"`
}

func (h *AdminHandler) ApproveDeposit(c *fiber.Ctx) error {
	id, input, err := h.depositAction(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	approval, err := h.gateway.ApproveDeposit(c.UserContext(), id, input.Notes)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "deposit_approved", zap.Uint("deposit_id", id))
	return utils.Success(c, fiber.Map{"deposit": approval.Deposit, "receipt": approval.Receipt})
}

func (h *AdminHandler) RejectDeposit(c *fiber.Ctx) error {
	id, input, err := h.depositAction(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	deposit, err := h.gateway.RejectDeposit(c.UserContext(), id, input.Notes)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "deposit_rejected", zap.Uint("deposit_id", id))
	return utils.Success(c, fiber.Map{"deposit": deposit})
}

func (h *AdminHandler) depositAction(c *fiber.Ctx) (uint, notesInput, error) {
	var input notesInput
	id, err := paramID(c, "id")
	if err != nil {
		return 0, input, err
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &input); err != nil {
			return 0, input, err
		}
	}
	v := validation.New()
	v.Struct(input)
	v.Sanitized("notes", input.Notes)
	return id, input, v.Err()
}

func (h *AdminHandler) FreezeWallet(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var input struct {
		Reason string `json:"reason" validate:"max=255"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &input); err != nil {
			return respondError(c, h.logger, err)
		}
	}
	if err := h.wallets.FreezeWallet(c.UserContext(), userID, input.Reason); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "wallet_frozen", zap.Uint("user_id", userID))
	return h.walletStatus(c, userID)
}

func (h *AdminHandler) UnfreezeWallet(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.wallets.UnfreezeWallet(c.UserContext(), userID); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "wallet_unfrozen", zap.Uint("user_id", userID))
	return h.walletStatus(c, userID)
}

func (h *AdminHandler) ClearHold(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.wallets.ClearReconciliationHold(c.UserContext(), userID); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "reconciliation_hold_cleared", zap.Uint("user_id", userID))
	return h.walletStatus(c, userID)
}

func (h *AdminHandler) SetActive(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var input struct {
		Active bool `json:"active"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.wallets.SetActive(c.UserContext(), userID, input.Active); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "wallet_active_changed", zap.Uint("user_id", userID), zap.Bool("active", input.Active))
	return h.walletStatus(c, userID)
}

// Adjust applies a signed manual correction.
func (h *AdminHandler) Adjust(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var input struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason" validate:"required,max=255"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.logger, err)
	}
	v := validation.New()
	v.Struct(input)
	v.Sanitized("reason", input.Reason)
	if err := v.Err(); err != nil {
		return respondError(c, h.logger, err)
	}

	receipt, err := h.wallets.AdminAdjust(c.UserContext(), userID, input.Amount, input.Reason)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "wallet_adjusted", zap.Uint("user_id", userID), zap.String("amount", input.Amount.StringFixed(2)))
	return utils.Success(c, receipt)
}

func (h *AdminHandler) VerifyLedger(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	report, err := h.wallets.VerifyLedger(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, report)
}

func (h *AdminHandler) walletStatus(c *fiber.Ctx, userID uint) error {
	balance, err := h.wallets.GetBalance(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, fiber.Map{"wallet": balance})
}

func (h *AdminHandler) audit(c *fiber.Ctx, action string, fields ...zap.Field) {
	if claims, err := currentUser(c); err == nil {
		fields = append(fields, zap.Uint("admin_id", claims.UserID))
	}
	h.logger.Info(action, fields...)
}

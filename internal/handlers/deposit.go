package handlers

import (
	"pearlbingo/internal/logger"
	"pearlbingo/internal/services/gateway"
	"pearlbingo/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DepositHandler struct {
	gateway gateway.Service
	logger  *zap.Logger
}

func NewDepositHandler(gw gateway.Service, log *zap.Logger) *DepositHandler {
	return &DepositHandler{gateway: gw, logger: logger.OrNop(log)}
}

type depositInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	CardToken   string          `json:"card_token"`
	Description string          `json:"description"`
}

// Create starts a deposit. Gateway failures come back as a 200 with a
// structured result so clients can show the reason and retry.
func (h *DepositHandler) Create(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input depositInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.gateway.InitiateDeposit(c.UserContext(), gateway.PaymentRequest{
		UserID:      claims.UserID,
		Amount:      input.Amount,
		Method:      input.Method,
		CardToken:   input.CardToken,
		Description: input.Description,
		IP:          c.IP(),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if result.Success {
		return utils.Created(c, result)
	}
	return utils.Success(c, result)
}

func (h *DepositHandler) Cancel(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	deposit, err := h.gateway.CancelDeposit(c.UserContext(), claims.UserID, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, fiber.Map{"deposit": deposit})
}

package handlers

import (
	"pearlbingo/internal/logger"
	"pearlbingo/internal/services/purchase"
	"pearlbingo/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PurchaseHandler struct {
	purchases purchase.Service
	logger    *zap.Logger
}

func NewPurchaseHandler(purchases purchase.Service, log *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, logger: logger.OrNop(log)}
}

func (h *PurchaseHandler) BuyCards(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	gameID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var input struct {
		Count int `json:"count"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.purchases.PurchaseCards(c.UserContext(), claims.UserID, gameID, input.Count)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Created(c, result)
}

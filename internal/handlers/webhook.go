package handlers

import (
	"pearlbingo/internal/logger"
	"pearlbingo/internal/services/webhook"
	"pearlbingo/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

type WebhookHandler struct {
	pipeline *webhook.Pipeline
	logger   *zap.Logger
}

func NewWebhookHandler(pipeline *webhook.Pipeline, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline, logger: logger.OrNop(log)}
}

// Handle answers 200 for processed and redelivered events, 401 for bad
// signatures, 400 for malformed payloads and 500 when the gateway should retry.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return utils.BadRequest(c, "empty payload")
	}
	signature := c.Get(HeaderWebhookSignature)
	timestamp := c.Get(HeaderWebhookTimestamp)
	if signature == "" || timestamp == "" {
		return utils.Unauthorized(c, "missing signature headers")
	}

	payload := append([]byte(nil), body...)
	outcome, err := h.pipeline.Process(c.UserContext(), signature, timestamp, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, outcome)
}

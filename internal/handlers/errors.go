package handlers

import (
	"errors"
	"net/http"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// errorStatus maps a domain error code to its HTTP status.
func errorStatus(code string) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeSignatureInvalid:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound, apperrors.CodeWalletNotFound:
		return http.StatusNotFound
	case apperrors.CodeDepositNotPending:
		return http.StatusConflict
	case apperrors.CodeInsufficientBalance,
		apperrors.CodeWalletUnavailable,
		apperrors.CodeSpendLimitExceeded,
		apperrors.CodeRecipientInvalid,
		apperrors.CodeRecipientInactive,
		apperrors.CodeSelfTransfer,
		apperrors.CodeGameNotJoinable:
		return http.StatusUnprocessableEntity
	case apperrors.CodeReconciliationHold:
		return http.StatusLocked
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeGatewayUnavailable:
		return http.StatusBadGateway
	case apperrors.CodeGatewayTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// retryAfter is sent with errors the caller may retry unchanged.
const retryAfter = "30"

// respondError writes err as a JSON error. Unexpected errors are logged and
// their message is not exposed.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	code := apperrors.CodeOf(err)
	status := errorStatus(code)
	if apperrors.IsRetryable(err) {
		c.Set(fiber.HeaderRetryAfter, retryAfter)
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("code", code),
			zap.Error(err))
		if code == "" || code == apperrors.CodeInvariantViolation {
			return utils.Error(c, status, code, "internal server error")
		}
	}
	return utils.Error(c, status, code, messageOf(err))
}

func messageOf(err error) string {
	var d *apperrors.DomainError
	if errors.As(err, &d) {
		return d.Message
	}
	return err.Error()
}

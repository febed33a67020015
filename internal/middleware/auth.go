// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"strings"

	"pearlbingo/internal/logger"
	"pearlbingo/internal/models"
	"pearlbingo/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthMiddleware validates bearer tokens and stores the claims in the request context.
type AuthMiddleware struct {
	secret string
	logger *zap.Logger
}

func NewAuthMiddleware(secret string, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
		logger: logger.OrNop(log).Named("auth"),
	}
}

// Handler checks for a Bearer token with a valid signature, issuer and expiry.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return utils.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return utils.Unauthorized(c, "invalid authorization format")
	}

	claims, err := utils.ParseToken(m.secret, strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		m.logger.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
		return utils.Unauthorized(c, "invalid token")
	}

	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)
	return c.Next()
}

// AdminOnly rejects requests whose claims are not an admin's.
func (m *AuthMiddleware) AdminOnly(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	if !claims.IsAdmin() {
		m.logger.Warn("admin access denied",
			zap.Uint("user_id", claims.UserID),
			zap.String("role", claims.Role),
			zap.String("path", c.Path()))
		return utils.Forbidden(c, "insufficient permissions")
	}
	return c.Next()
}

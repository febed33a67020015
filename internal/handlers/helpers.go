package handlers

import (
	"strconv"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/utils"

	"github.com/gofiber/fiber/v2"
)

func currentUser(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("%s must be a positive integer", name)
	}
	return uint(id), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("invalid request format")
	}
	return nil
}

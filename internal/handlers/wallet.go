package handlers

import (
	"errors"
	"strings"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/wallet"
	"pearlbingo/internal/utils"
	"pearlbingo/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	walletService wallet.Service
	users         repositories.UserRepository
	logger        *zap.Logger
}

func NewWalletHandler(walletService wallet.Service, users repositories.UserRepository, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		users:         users,
		logger:        logger.OrNop(log),
	}
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	balance, err := h.walletService.GetBalance(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, fiber.Map{"wallet": balance})
}

// ListTransactions supports ?type=A,B&from=RFC3339&to=RFC3339&page=&limit=.
func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, wallet.DefaultHistoryLimit, wallet.MaxHistoryLimit)
	q := wallet.HistoryQuery{Limit: p.Limit, Offset: p.Offset}

	if raw := c.Query("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			txType := models.TransactionType(strings.ToUpper(strings.TrimSpace(t)))
			if txType.Sign() == 0 {
				return respondError(c, h.logger, apperrors.Validation("unknown transaction type %q", t))
			}
			q.Types = append(q.Types, txType)
		}
	}
	if q.From, err = queryTime(c, "from"); err != nil {
		return respondError(c, h.logger, err)
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		return respondError(c, h.logger, err)
	}

	txs, total, err := h.walletService.ListTransactions(c.UserContext(), claims.UserID, q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(txs, p))
}

type transferInput struct {
	Recipient   string           `json:"recipient" validate:"required,max=64"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description" validate:"max=500"`
	Commission  *decimal.Decimal `json:"commission,omitempty"`
}

// Transfer resolves the recipient username before moving pearls.
func (h *WalletHandler) Transfer(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input transferInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.logger, err)
	}
	v := validation.New()
	v.Struct(input)
	v.Sanitized("description", input.Description)
	if err := v.Err(); err != nil {
		return respondError(c, h.logger, err)
	}

	recipient, err := h.users.GetByUsername(c.UserContext(), strings.TrimSpace(input.Recipient))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return respondError(c, h.logger, apperrors.ErrRecipientInvalid)
		}
		return respondError(c, h.logger, err)
	}

	commission := h.walletService.CommissionFor(input.Amount)
	if input.Commission != nil {
		commission = *input.Commission
	}

	result, err := h.walletService.TransferPearls(c.UserContext(), wallet.TransferRequest{
		FromUserID:  claims.UserID,
		ToUserID:    recipient.ID,
		Amount:      input.Amount,
		Commission:  commission,
		Description: input.Description,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, result)
}

func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be an RFC3339 timestamp", name)
	}
	return &t, nil
}

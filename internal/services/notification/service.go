// Package notification pushes balance-change events to connected clients.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"pearlbingo/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier is called after a ledger write has committed. Failures never affect the ledger.
type Notifier interface {
	BalanceChanged(ctx context.Context, userID uint, tx *models.Transaction, balance string)
	DepositResolved(ctx context.Context, deposit *models.DepositRequest)
}

// Message is the payload published on a user's channel.
type Message struct {
	Kind      string `json:"kind"`
	UserID    uint   `json:"user_id"`
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Balance   string `json:"balance,omitempty"`
	DepositID uint   `json:"deposit_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

func Channel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// Service publishes messages over Redis pub/sub.
type Service struct {
	client *redis.Client
	logger *zap.Logger
}

// NewService creates a new notification service.
func NewService(client *redis.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

func (s *Service) BalanceChanged(ctx context.Context, userID uint, tx *models.Transaction, balance string) {
	s.publish(ctx, Message{
		Kind:      "balance_changed",
		UserID:    userID,
		Reference: tx.Reference,
		Type:      string(tx.Type),
		Amount:    tx.Amount.StringFixed(2),
		Balance:   balance,
	})
}

func (s *Service) DepositResolved(ctx context.Context, d *models.DepositRequest) {
	s.publish(ctx, Message{
		Kind:      "deposit_resolved",
		UserID:    d.UserID,
		Reference: d.Reference,
		DepositID: d.ID,
		Status:    d.Status,
	})
}

func (s *Service) publish(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode notification", zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, Channel(msg.UserID), payload).Err(); err != nil {
		s.logger.Warn("failed to publish notification",
			zap.Uint("user_id", msg.UserID),
			zap.String("kind", msg.Kind),
			zap.Error(err))
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) BalanceChanged(context.Context, uint, *models.Transaction, string) {}
func (Nop) DepositResolved(context.Context, *models.DepositRequest)           {}

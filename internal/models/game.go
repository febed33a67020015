package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	GameStatusWaiting    = "waiting"
	GameStatusInProgress = "in_progress"
	GameStatusFinished   = "finished"
	GameStatusCancelled  = "cancelled"
)

// Game is the part of a bingo round the purchase flow checks before selling cards.
type Game struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	Name       string          `json:"name"`
	Status     string          `gorm:"size:16;not null;default:'waiting'" json:"status"`
	CardPrice  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"card_price"`
	MaxPlayers int             `gorm:"not null;default:0" json:"max_players"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (g *Game) IsJoinable() bool { return g.Status == GameStatusWaiting }

// BingoCard holds a 5x5 grid in row-major order; 0 marks the free centre square.
type BingoCard struct {
	ID            uint          `gorm:"primarykey" json:"id"`
	GameID        uint          `gorm:"index;not null" json:"game_id"`
	UserID        uint          `gorm:"index;not null" json:"user_id"`
	TransactionID uint          `gorm:"index" json:"transaction_id"`
	Numbers       pq.Int64Array `gorm:"type:integer[]" json:"numbers"`
	CreatedAt     time.Time     `json:"created_at"`
}

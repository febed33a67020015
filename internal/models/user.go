package models

import "time"

// User is the slice of the account record the ledger needs: identity, contact and age.
type User struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Username          string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email             string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password          string    `gorm:"not null" json:"-"`
	Role              string    `gorm:"size:16;default:'user'" json:"role"`
	GatewayCustomerID string    `gorm:"size:128" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

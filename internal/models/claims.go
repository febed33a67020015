package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the verified bearer-token payload. Tokens are issued elsewhere.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (c *UserClaims) IsAdmin() bool { return c.Role == RoleAdmin }

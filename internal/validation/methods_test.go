package validation

import (
	"testing"

	apperrors "pearlbingo/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidator_Amount(t *testing.T) {
	min, max := decimal.NewFromInt(10), decimal.NewFromInt(100)
	tests := []struct {
		amount string
		valid  bool
	}{
		{"10", true},
		{"100.00", true},
		{"9.99", false},
		{"100.01", false},
		{"0", false},
		{"-5", false},
		{"15.555", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			v := New()
			v.Amount("amount", decimal.RequireFromString(tt.amount), min, max)
			assert.Equal(t, tt.valid, v.Valid(), v.Errors)
		})
	}
}

func TestContainsInjection(t *testing.T) {
	bad := []string{
		"<script>alert(1)</script>",
		"javascript:alert(1)",
		"1' OR '1'='1",
		"x; DROP TABLE wallets",
		"a UNION SELECT password FROM users",
		"name --",
		"<img src=x onerror=alert(1)>",
	}
	for _, s := range bad {
		assert.True(t, ContainsInjection(s), s)
	}

	good := []string{"Top up for Friday's game", "María José", "deposit #42", "a-b c"}
	for _, s := range good {
		assert.False(t, ContainsInjection(s), s)
	}
}

func TestValidator_StructAndErr(t *testing.T) {
	type req struct {
		Email  string `validate:"required,email"`
		Method string `validate:"required,oneof=card bank_transfer"`
	}

	v := New()
	v.Struct(req{Email: "nope", Method: "cash"})
	assert.False(t, v.Valid())
	assert.Contains(t, v.Errors, "email")
	assert.Contains(t, v.Errors, "method")

	err := v.Err()
	assert.ErrorIs(t, err, &apperrors.DomainError{Code: apperrors.CodeValidation})
	assert.Contains(t, err.Error(), "email must be a valid email address")

	assert.NoError(t, New().Err())
}

func TestValidator_Password(t *testing.T) {
	v := New()
	v.Password("password", "Sup3r$ecret")
	assert.True(t, v.Valid())

	v = New()
	v.Password("password", "short")
	assert.False(t, v.Valid())
}

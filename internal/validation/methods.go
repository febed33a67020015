// Package validation collects field errors for request payloads.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	apperrors "pearlbingo/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	structValidator = validator.New(validator.WithRequiredStructEnabled())
	injectionRegex  = compileInjection()
)

func compileInjection() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(injectionPatterns))
	for _, p := range injectionPatterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Validator defines validation methods
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error to the validator. The first error per field wins.
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Err converts collected errors into a single validation DomainError.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+v.Errors[f])
	}
	return apperrors.Validation("%s", strings.Join(parts, "; "))
}

// Struct runs go-playground tags on a request DTO.
func (v *Validator) Struct(s interface{}) {
	err := structValidator.Struct(s)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		v.AddError("request", err.Error())
		return
	}
	for _, fe := range verrs {
		v.AddError(strings.ToLower(fe.Field()), tagMessage(fe))
	}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "ip":
		return "must be a valid IP address"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must not exceed " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	}
	return "is invalid"
}

// Email validates email format
func (v *Validator) Email(field, email string) {
	v.Check(structValidator.Var(email, "required,email") == nil, field, "must be a valid email address")
}

// Required checks if a string is not empty
func (v *Validator) Required(field string, value interface{}) {
	if value == nil {
		v.AddError(field, "must not be nil")
		return
	}

	switch val := value.(type) {
	case string:
		v.Check(strings.TrimSpace(val) != "", field, "must not be empty")
	case []string:
		v.Check(len(val) > 0, field, "must contain at least one item")
	case int:
		v.Check(val != 0, field, "must not be zero")
	case uint:
		v.Check(val != 0, field, "must not be zero")
	}
}

// MaxLength checks if a string has at most n characters
func (v *Validator) MaxLength(field string, value string, n int) {
	v.Check(len(value) <= n, field, fmt.Sprintf("must not be more than %d characters long", n))
}

// Amount checks a positive two-decimal amount inside [min, max]. Zero bounds are ignored.
func (v *Validator) Amount(field string, amount, min, max decimal.Decimal) {
	if !amount.IsPositive() {
		v.AddError(field, "must be greater than zero")
		return
	}
	v.Check(amount.Equal(amount.Round(2)), field, "must have at most two decimal places")
	if min.IsPositive() {
		v.Check(amount.GreaterThanOrEqual(min), field, "must be at least "+min.StringFixed(2))
	}
	if max.IsPositive() {
		v.Check(amount.LessThanOrEqual(max), field, "must not exceed "+max.StringFixed(2))
	}
}

// Sanitized rejects values containing markup or SQL injection fragments.
func (v *Validator) Sanitized(field, value string) {
	v.Check(!ContainsInjection(value), field, "contains disallowed characters")
}

// ContainsInjection reports whether s matches a known injection pattern.
func ContainsInjection(s string) bool {
	for _, re := range injectionRegex {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Password validates password strength
func (v *Validator) Password(field, password string) {
	v.Check(len(password) >= MinPasswordLength, field,
		fmt.Sprintf("must be at least %d characters long", MinPasswordLength))
	v.MaxLength(field, password, MaxPasswordLength)

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	v.Check(hasUpper, field, "must contain at least one uppercase letter")
	v.Check(hasLower, field, "must contain at least one lowercase letter")
	v.Check(hasNumber, field, "must contain at least one number")
	v.Check(hasSpecial, field, "must contain at least one special character")
}

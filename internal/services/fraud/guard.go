// Package fraud screens client payment attempts before they reach the gateway.
//
// Only the attempt rate limit and input validation reject a request. Every
// other heuristic produces a Flag that is logged for offline review.
package fraud

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/repositories/cache"
	"pearlbingo/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	FlagNewAccountLargeAmount = "new_account_large_amount"
	FlagMultipleMethodsPerIP  = "multiple_methods_per_ip"
	FlagSuspiciousUserAgent   = "suspicious_user_agent"
)

type Config struct {
	MaxAttempts           int
	AttemptWindow         time.Duration
	NewAccountAge         time.Duration
	NewAccountLargeAmount decimal.Decimal
	MaxMethodsPerIP       int
	MethodWindow          time.Duration
	MinAmount             decimal.Decimal
	MaxAmount             decimal.Decimal
}

// PaymentAttempt is everything the guard looks at for one deposit request.
// MethodID distinguishes instruments of the same method, e.g. a card token.
type PaymentAttempt struct {
	UserID           uint
	Email            string
	Amount           decimal.Decimal
	Method           string
	MethodID         string
	IP               string
	UserAgent        string
	Description      string
	AccountCreatedAt time.Time
}

// Assessment lists the non-blocking flags raised for an accepted attempt.
type Assessment struct {
	Flags []string
}

func (a *Assessment) Flagged() bool { return len(a.Flags) > 0 }

type Guard struct {
	counter cache.Counter
	config  Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewGuard(counter cache.Counter, config Config, log *zap.Logger) *Guard {
	if counter == nil {
		counter = cache.NewMemoryCounter()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.AttemptWindow <= 0 {
		config.AttemptWindow = 5 * time.Minute
	}
	if config.NewAccountAge <= 0 {
		config.NewAccountAge = 7 * 24 * time.Hour
	}
	if config.MaxMethodsPerIP <= 0 {
		config.MaxMethodsPerIP = 3
	}
	if config.MethodWindow <= 0 {
		config.MethodWindow = 24 * time.Hour
	}
	return &Guard{
		counter: counter,
		config:  config,
		logger:  logger.OrNop(log).Named("fraud"),
		now:     time.Now,
	}
}

// Screen validates the attempt, applies the rate limit and records flags.
func (g *Guard) Screen(ctx context.Context, a PaymentAttempt) (*Assessment, error) {
	v := validation.New()
	v.Amount("amount", a.Amount, g.config.MinAmount, g.config.MaxAmount)
	v.Email("email", a.Email)
	v.Sanitized("description", a.Description)
	v.MaxLength("description", a.Description, validation.MaxDescriptionLength)
	v.Sanitized("method_id", a.MethodID)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := g.checkRate(ctx, a.UserID); err != nil {
		return nil, err
	}

	assessment := &Assessment{}
	if IsNewAccountLargeAmount(a.AccountCreatedAt, g.now(), g.config.NewAccountAge, a.Amount, g.config.NewAccountLargeAmount) {
		assessment.Flags = append(assessment.Flags, FlagNewAccountLargeAmount)
	}
	if g.multipleMethods(ctx, a) {
		assessment.Flags = append(assessment.Flags, FlagMultipleMethodsPerIP)
	}
	if IsSuspiciousUserAgent(a.UserAgent) {
		assessment.Flags = append(assessment.Flags, FlagSuspiciousUserAgent)
	}

	for _, flag := range assessment.Flags {
		g.logger.Warn("payment attempt flagged",
			zap.String("flag", flag),
			zap.Uint("user_id", a.UserID),
			zap.String("ip", a.IP),
			zap.String("amount", a.Amount.StringFixed(2)),
			zap.String("method", a.Method))
	}
	return assessment, nil
}

// checkRate rejects the attempt once the user has already made MaxAttempts in the window.
// Counter outages fail open.
func (g *Guard) checkRate(ctx context.Context, userID uint) error {
	n, err := g.counter.Incr(ctx, fmt.Sprintf("fraud:attempts:%d", userID), g.config.AttemptWindow)
	if err != nil {
		g.logger.Warn("velocity counter unavailable", zap.Error(err))
		return nil
	}
	if n > int64(g.config.MaxAttempts) {
		g.logger.Warn("payment attempt rate limited",
			zap.Uint("user_id", userID),
			zap.Int64("attempts", n))
		return apperrors.ErrRateLimited
	}
	return nil
}

func (g *Guard) multipleMethods(ctx context.Context, a PaymentAttempt) bool {
	if a.IP == "" {
		return false
	}
	member := a.Method
	if a.MethodID != "" {
		member += ":" + a.MethodID
	}
	n, err := g.counter.AddMember(ctx, "fraud:methods:"+a.IP, member, g.config.MethodWindow)
	if err != nil {
		g.logger.Warn("velocity counter unavailable", zap.Error(err))
		return false
	}
	return n >= int64(g.config.MaxMethodsPerIP)
}

// IsNewAccountLargeAmount flags accounts younger than maxAge moving more than threshold.
func IsNewAccountLargeAmount(createdAt, now time.Time, maxAge time.Duration, amount, threshold decimal.Decimal) bool {
	if createdAt.IsZero() || !threshold.IsPositive() {
		return false
	}
	return now.Sub(createdAt) < maxAge && amount.GreaterThan(threshold)
}

var suspiciousAgents = []string{
	"bot", "crawler", "spider", "curl", "wget", "python-requests", "python-urllib",
	"httpclient", "go-http-client", "headless", "phantomjs", "selenium", "postman",
}

// IsSuspiciousUserAgent flags empty, very short or automation user agents.
func IsSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if len(ua) < 10 {
		return true
	}
	for _, s := range suspiciousAgents {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

package errors

var (
	ErrSignatureInvalid = &DomainError{
		Code:    CodeSignatureInvalid,
		Message: "invalid webhook signature",
	}
	ErrDuplicateWebhookEvent = &DomainError{
		Code:    CodeDuplicateWebhook,
		Message: "webhook event already processed",
	}
	ErrGatewayUnavailable = &DomainError{
		Code:      CodeGatewayUnavailable,
		Message:   "payment gateway unavailable",
		Retryable: true,
	}
	ErrGatewayTimeout = &DomainError{
		Code:      CodeGatewayTimeout,
		Message:   "payment gateway timed out",
		Retryable: true,
	}
	ErrRateLimited = &DomainError{
		Code:    CodeRateLimited,
		Message: "too many payment attempts, try again later",
	}
	ErrDepositNotPending = &DomainError{
		Code:    CodeDepositNotPending,
		Message: "deposit request is no longer pending",
	}
)

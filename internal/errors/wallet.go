package errors

var (
	ErrInsufficientBalance = &DomainError{
		Code:    CodeInsufficientBalance,
		Message: "insufficient balance",
	}
	ErrInvalidAmount = &DomainError{
		Code:    CodeValidation,
		Message: "amount must be greater than zero with at most two decimal places",
	}
	ErrWalletNotFound = &DomainError{
		Code:    CodeWalletNotFound,
		Message: "wallet not found",
	}
	ErrWalletUnavailable = &DomainError{
		Code:    CodeWalletUnavailable,
		Message: "wallet is frozen or inactive",
	}
	ErrSpendLimitExceeded = &DomainError{
		Code:    CodeSpendLimitExceeded,
		Message: "spend limit exceeded",
	}
	ErrRecipientInvalid = &DomainError{
		Code:    CodeRecipientInvalid,
		Message: "recipient not found",
	}
	ErrRecipientInactive = &DomainError{
		Code:    CodeRecipientInactive,
		Message: "recipient wallet is inactive",
	}
	ErrSelfTransfer = &DomainError{
		Code:    CodeSelfTransfer,
		Message: "cannot transfer to self",
	}
	ErrReconciliationHold = &DomainError{
		Code:    CodeReconciliationHold,
		Message: "wallet is on hold pending manual reconciliation",
	}
	ErrInvariantViolation = &DomainError{
		Code:    CodeInvariantViolation,
		Message: "ledger invariant violated",
	}
	ErrNotFound = &DomainError{
		Code:    CodeNotFound,
		Message: "not found",
	}
	ErrGameNotJoinable = &DomainError{
		Code:    CodeGameNotJoinable,
		Message: "game is not open for new cards",
	}
)

package wallet

import "time"

// Operation names used for metrics and logs.
const (
	OpCredit   = "credit"
	OpDebit    = "debit"
	OpTransfer = "transfer"
	OpAdjust   = "adjust"
	OpVerify   = "verify"
)

// Default configuration values
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	DefaultTimeout      = 30 * time.Second
)

const adjustmentPrefix = "adjustment: "

package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Validation failures surfaced by the ledger. Each aborts the pending
// mutation before any write.
var (
	ErrorInvalidAmount         = errors.New("amount must be a non-negative number")
	ErrorInsufficientFunds     = errors.New("insufficient balance")
	ErrorInvalidCategory       = errors.New("category not found or not accessible")
	ErrorMissingRecurrenceType = errors.New("recurrence type is required for a recurring transaction")
)

// ErrorAggregateMissing is fatal and non-retryable: an analytics row is
// expected to exist but does not. Signals prior data corruption; only the
// explicit rebuild routine may repair it.
var ErrorAggregateMissing = errors.New("analytics record missing for account")

// ErrorDateParse is returned when a date expression matches no recognized
// pattern. Callers decide the fallback; the resolver never defaults.
var ErrorDateParse = errors.New("unrecognized date expression")

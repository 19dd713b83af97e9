package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrOperationFailed      = errors.New("operation failed")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrInvalidExecContext   = errors.New("invalid query execution context")
	ErrAlreadyProcessed     = errors.New("external transaction already processed")
	ErrMalformedIdentifier  = errors.New("malformed transaction identifier")
	ErrUnknownPlan          = errors.New("unknown plan type")
	ErrUnknownBillingCycle  = errors.New("unknown billing cycle")
	ErrDowngradeNotAllowed  = errors.New("downgrade to a lower plan is not allowed")
	ErrAmountMismatch       = errors.New("amount does not match expected price")
	ErrAmountBelowMinimum   = errors.New("amount is below the provider minimum")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionCancelled = errors.New("transaction is cancelled")
	ErrUserNotFound         = errors.New("user not found")
)

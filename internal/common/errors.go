package common

import "errors"

// Sentinel errors for the ledger core. Services wrap these with
// fmt.Errorf and %w; handlers map them to HTTP responses.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantExists        = errors.New("tenant already exists")
	ErrUnknownService      = errors.New("service not in tariff table")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrStorageFailure      = errors.New("storage failure")
)

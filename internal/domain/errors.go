package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrInvalidQuote     = errors.New("invalid quote")
	ErrRateLimited      = errors.New("rate limited")
	ErrLockHeld         = errors.New("lock already held")
	ErrNoCredentials    = errors.New("no exchange credentials")
)

package domain

import "errors"

// Error taxonomy shared by storage and services. Every failure is scoped
// to the single in-flight conversation; nothing here is fatal.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountExists     = errors.New("account already exists")
	ErrAlreadyBound      = errors.New("chat identity already bound")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrPendingApp        = errors.New("application pending")
	ErrNoChange          = errors.New("no state change")
)

package domain

import "errors"

// Recoverable error kinds surfaced by the ledger and checkout packages.
// The HTTP layer maps them to 4xx responses.
var (
	ErrNotFound          = errors.New("referenced entity not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrEmptyTicket       = errors.New("ticket has no lines")
)

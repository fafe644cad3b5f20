package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")

	// Checkout input errors. All of them are ErrInvalidInput.
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidAmount  = fmt.Errorf("%w: amount must be a positive integer of minor units", ErrInvalidInput)
	ErrUnknownProgram = fmt.Errorf("%w: unknown program", ErrInvalidInput)
	ErrUnknownRail    = fmt.Errorf("%w: unknown payment rail", ErrInvalidInput)
	ErrInvalidTxHash  = fmt.Errorf("%w: malformed transaction hash", ErrInvalidInput)
	ErrInvalidPhone   = fmt.Errorf("%w: malformed phone number", ErrInvalidInput)

	// Payment workflow errors
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrUpstreamRail     = errors.New("payment rail failure")
	ErrRoleGrant        = errors.New("role grant failed")
	ErrIntentTerminal   = errors.New("payment intent already in a terminal state")
	ErrWrongRail        = errors.New("operation not supported by this payment rail")

	// Storage errors
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

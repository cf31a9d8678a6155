package common

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized marks a caller that is not the principal required for the
	// attempted mutation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAgreementNotActive is returned when renewing a terminated agreement.
	ErrAgreementNotActive = errors.New("agreement not active")
	// ErrFundsAlreadyReleased is returned when releasing an unlocked escrow.
	ErrFundsAlreadyReleased = errors.New("funds already released")
	// ErrInsufficientFunds is returned when custody cannot source an amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrArithmeticOverflow is returned when an amount computation exceeds the
	// 256-bit amount representation.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrVerificationFailed marks a verifier outside the authorized set. It
	// wraps ErrUnauthorized so callers matching either sentinel see it.
	ErrVerificationFailed = fmt.Errorf("verification failed: %w", ErrUnauthorized)

	ErrNotFound      = errors.New("record not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrModulePaused  = errors.New("module paused")
)

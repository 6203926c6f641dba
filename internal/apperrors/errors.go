package apperrors

import (
	"errors"
)

var (
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid username or password")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidTransferType = errors.New("unknown transfer type")
	ErrSameAccount         = errors.New("sender and receiver must be different")
	ErrInsufficientFunds   = errors.New("insufficient funds")

	ErrInsufficientAdminCash = errors.New("not enough admin cash on hand")
	ErrNothingToSettle       = errors.New("nothing to settle")
	ErrInvalidCashAction     = errors.New("unknown cash action")

	ErrRoleNotAllowed = errors.New("role not allowed for this operation")

	// Lock wait timed out, nothing was applied. Safe to retry.
	ErrConflict = errors.New("conflicting operation in progress")

	ErrInvalidQRPayload = errors.New("invalid qr payload")
)

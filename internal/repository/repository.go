package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wkamthorn/campuswallet/internal/models"
)

type CreateAccountParams struct {
	Username     string
	PasswordHash string
	Role         string
	FullName     string
	ExternalID   string
}

type TransactionFilter struct {
	// Match transactions where the account is sender or receiver.
	// Zero value means any participant.
	ParticipantID uuid.UUID

	// Match listed types only. Empty means all types.
	Types []string

	// Max rows to return. Zero means no limit.
	Limit int
}

// Account repository interface
type AccountRepo interface {
	// Create account with balance 0
	// If username is taken must return apperrors.ErrAccountAlreadyExists
	Create(ctx context.Context, params CreateAccountParams) (models.Account, error)

	// Get account by id or username
	// If not found must return apperrors.ErrAccountNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetByUsername(ctx context.Context, username string) (models.Account, error)

	// List accounts, newest first. Empty role means all roles.
	List(ctx context.Context, role string) ([]models.Account, error)

	// LockForUpdate takes row locks on every listed account, ordered by
	// id so two operations touching the same pair can't deadlock. Lock
	// waits are bounded: on timeout returns apperrors.ErrConflict.
	// Must be called inside InTx only.
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.Account, error)

	// Balance mutations. Only the ledger engine may call these, and only
	// on rows it holds locks for.
	AddToBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (models.Account, error)
	SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) (models.Account, error)

	UpdateRole(ctx context.Context, id uuid.UUID, role string) (models.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	Stats(ctx context.Context) (models.Stats, error)
}

// Transaction log repository interface. Append and read only, rows are
// never updated or deleted.
type TransactionRepo interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) error

	// Get token even if it is expired or used already
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token as used
	// If the token is already used must return apperrors.ErrRefreshTokenIsUsed
	// and must not overwrite the existing used_at
	MarkUsed(ctx context.Context, tokenString string) (usedAt time.Time, err error)
}

type Storage interface {
	Account() AccountRepo
	Transaction() TransactionRepo
	RefreshToken() RefreshTokenRepo

	// InTx runs fn with a Storage bound to one database transaction.
	// Returning an error rolls everything back.
	InTx(ctx context.Context, fn func(Storage) error) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
)

// Bounded wait for account row locks. On expiry postgres aborts the
// statement with lock_not_available which is mapped to ErrConflict.
const lockWaitTimeout = "3s"

type AccountRepo struct {
	DB DBTX
}

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (username, password_hash, role, full_name, external_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, username, password_hash, role, full_name, external_id, balance
`

func (r *AccountRepo) Create(ctx context.Context, params repository.CreateAccountParams) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, createAccount,
		params.Username, params.PasswordHash, params.Role, params.FullName, params.ExternalID)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountAlreadyExists
		}
		return account, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

const getAccountByID = `-- name: GetAccountByID
SELECT id, created_at, username, password_hash, role, full_name, external_id, balance
FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const getAccountByUsername = `-- name: GetAccountByUsername
SELECT id, created_at, username, password_hash, role, full_name, external_id, balance
FROM accounts
WHERE username = $1
`

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByUsername, username)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const listAccounts = `-- name: ListAccounts
SELECT id, created_at, username, password_hash, role, full_name, external_id, balance
FROM accounts
WHERE ($1 = '' OR role = $1)
ORDER BY created_at DESC
`

func (r *AccountRepo) List(ctx context.Context, role string) ([]models.Account, error) {
	rows, _ := r.DB.Query(ctx, listAccounts, role)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return accounts, nil
}

const lockAccounts = `-- name: LockAccounts
SELECT id, created_at, username, password_hash, role, full_name, external_id, balance
FROM accounts
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`

func (r *AccountRepo) LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.Account, error) {
	// SET LOCAL is scoped to the surrounding transaction, it is an error
	// to call LockForUpdate outside of Storage.InTx
	_, err := r.DB.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockWaitTimeout))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, lockAccounts, ids)
	accounts, err := pgx.CollectRows(rows, rowToAccount)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.LockNotAvailable {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	locked := make(map[uuid.UUID]models.Account, len(accounts))
	for _, a := range accounts {
		locked[a.ID] = a
	}

	return locked, nil
}

const addToBalance = `-- name: AddToBalance
UPDATE accounts
SET balance = balance + $2
WHERE id = $1
RETURNING id, created_at, username, password_hash, role, full_name, external_id, balance
`

func (r *AccountRepo) AddToBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, addToBalance, id, delta)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	return account, classifyBalanceErr(err)
}

const setBalance = `-- name: SetBalance
UPDATE accounts
SET balance = $2
WHERE id = $1
RETURNING id, created_at, username, password_hash, role, full_name, external_id, balance
`

func (r *AccountRepo) SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, setBalance, id, balance)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	return account, classifyBalanceErr(err)
}

// The balance >= 0 table constraint is the last line of defense: the
// ledger engine checks sufficiency before mutating, so hitting it means
// insufficient funds that a concurrent writer raced us to.
func classifyBalanceErr(err error) error {
	var pgErr *pgconn.PgError

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrAccountNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation:
		return apperrors.ErrInsufficientFunds
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const updateAccountRole = `-- name: UpdateAccountRole
UPDATE accounts
SET role = $2
WHERE id = $1
RETURNING id, created_at, username, password_hash, role, full_name, external_id, balance
`

func (r *AccountRepo) UpdateRole(ctx context.Context, id uuid.UUID, role string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, updateAccountRole, id, role)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const updateAccountPassword = `-- name: UpdateAccountPassword
UPDATE accounts
SET password_hash = $2
WHERE id = $1
RETURNING id
`

func (r *AccountRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	rows, _ := r.DB.Query(ctx, updateAccountPassword, id, passwordHash)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrAccountNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const accountStats = `-- name: AccountStats
SELECT
	COUNT(*) FILTER (WHERE role = 'student'),
	COUNT(*) FILTER (WHERE role = 'shop'),
	COUNT(*) FILTER (WHERE role = 'staff'),
	COALESCE(SUM(balance) FILTER (WHERE role = 'student'), 0),
	COALESCE(SUM(balance) FILTER (WHERE role = 'shop'), 0)
FROM accounts
`

func (r *AccountRepo) Stats(ctx context.Context) (models.Stats, error) {
	var s models.Stats
	err := r.DB.QueryRow(ctx, accountStats).Scan(
		&s.TotalStudents, &s.TotalShops, &s.TotalStaff, &s.StudentCredit, &s.PendingPayouts)
	if err != nil {
		return s, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.Username, &a.PasswordHash,
		&a.Role, &a.FullName, &a.ExternalID, &a.Balance)
	return a, err
}

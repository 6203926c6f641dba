package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
)

type TransactionRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, created_at, sender_id, receiver_id, type, amount)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, sender_id, receiver_id, type, amount
`

func (r *TransactionRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.CreatedAt, t.SenderID, t.ReceiverID, t.Type, t.Amount)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listTransactions = `-- name: ListTransactions
SELECT id, created_at, sender_id, receiver_id, type, amount
FROM transactions
WHERE ($1::uuid IS NULL OR sender_id = $1 OR receiver_id = $1)
  AND ($2::text[] IS NULL OR type = ANY($2))
ORDER BY created_at DESC, id DESC
LIMIT $3
`

func (r *TransactionRepo) List(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, error) {
	var participant *uuid.UUID
	if filter.ParticipantID != uuid.Nil {
		participant = &filter.ParticipantID
	}

	var types []string
	if len(filter.Types) > 0 {
		types = filter.Types
	}

	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, _ := r.DB.Query(ctx, listTransactions, participant, types, limit)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.CreatedAt, &t.SenderID, &t.ReceiverID, &t.Type, &t.Amount)
	return t, err
}

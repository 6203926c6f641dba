package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// Transfer family, moved by TransferFunds.
	TransactionTypeTopup   = "topup"
	TransactionTypePayment = "payment"
	TransactionTypeRefund  = "refund"

	// Settlement family, recorded by HandleCash.
	TransactionTypeCashCollection = "cash_collection"
	TransactionTypeCashPayout     = "cash_payout"
)

// Transaction is the immutable audit record of one balance-affecting
// event. Sender and receiver are pointers so a retired account can be
// nulled out without losing the row.
type Transaction struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	SenderID   *uuid.UUID
	ReceiverID *uuid.UUID
	Type       string
	Amount     decimal.Decimal
}

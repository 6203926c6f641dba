package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
)

// Settlement actions accepted by HandleCash
const (
	ActionPayShop          = "pay_shop"
	ActionCollectFromStaff = "collect_from_staff"
)

// TransferResult is the structured outcome of TransferFunds. Business
// rule failures come back here with Success=false, they are not errors.
// Balances are the committed server-side values and are canonical.
type TransferResult struct {
	Success         bool
	Message         string
	SenderBalance   decimal.Decimal
	ReceiverBalance decimal.Decimal
}

// CashResult is the structured outcome of HandleCash.
// Settled is the amount cleared from the target account.
type CashResult struct {
	Success bool
	Message string
	Settled decimal.Decimal
}

// Service is the ledger engine. It is the only writer of account
// balances and transaction rows, and every operation is one database
// transaction: validate, lock, mutate, log, commit. On any failure the
// store is left exactly as it was.
//
// The engine is role-blind: who may call what is decided at the RPC
// boundary, not here.
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

// Per-type balance deltas, as multiples of the transfer amount.
//
// topup mints money: a staff member collected physical cash, so their
// cash on hand and the student's credit both grow. refund burns it:
// the staff member hands cash back and the credit is extinguished.
// payment is a plain move between credit accounts. A sufficiency check
// applies to every side that is debited.
type move struct {
	sender   int64
	receiver int64
}

var transferMoves = map[string]move{
	models.TransactionTypeTopup:   {sender: +1, receiver: +1},
	models.TransactionTypePayment: {sender: -1, receiver: +1},
	models.TransactionTypeRefund:  {sender: -1, receiver: -1},
}

// TransferFunds atomically moves amount between two accounts and
// appends one transaction row.
func (s *Service) TransferFunds(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal, transferType string) (TransferResult, error) {
	mv, ok := transferMoves[transferType]
	if !ok {
		return transferFailure(apperrors.ErrInvalidTransferType), nil
	}
	if senderID == receiverID {
		return transferFailure(apperrors.ErrSameAccount), nil
	}
	if err := validateAmount(amount); err != nil {
		return transferFailure(err), nil
	}

	var result TransferResult

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		locked, err := store.Account().LockForUpdate(ctx, senderID, receiverID)
		if err != nil {
			return err
		}

		sender, ok := locked[senderID]
		if !ok {
			return apperrors.ErrAccountNotFound
		}
		receiver, ok := locked[receiverID]
		if !ok {
			return apperrors.ErrAccountNotFound
		}

		senderDelta := amount.Mul(decimal.NewFromInt(mv.sender))
		receiverDelta := amount.Mul(decimal.NewFromInt(mv.receiver))

		if mv.sender < 0 && sender.Balance.LessThan(amount) {
			return apperrors.ErrInsufficientFunds
		}
		if mv.receiver < 0 && receiver.Balance.LessThan(amount) {
			return apperrors.ErrInsufficientFunds
		}

		sender, err = store.Account().AddToBalance(ctx, senderID, senderDelta)
		if err != nil {
			return err
		}
		receiver, err = store.Account().AddToBalance(ctx, receiverID, receiverDelta)
		if err != nil {
			return err
		}

		_, err = store.Transaction().Create(ctx, models.Transaction{
			SenderID:   &senderID,
			ReceiverID: &receiverID,
			Type:       transferType,
			Amount:     amount,
		})
		if err != nil {
			return err
		}

		result = TransferResult{
			Success:         true,
			Message:         "transfer completed",
			SenderBalance:   sender.Balance,
			ReceiverBalance: receiver.Balance,
		}
		return nil
	})

	switch {
	case err == nil:
		return result, nil
	case isBusinessErr(err):
		return transferFailure(err), nil
	default:
		return TransferResult{}, fmt.Errorf("transfer failed: %w", err)
	}
}

// HandleCash settles a shop or staff balance against the admin's own
// cash on hand: pay_shop zeroes a shop and debits the admin by the
// settled amount, collect_from_staff zeroes a staff member and credits
// the admin. Both sides commit or neither does.
func (s *Service) HandleCash(ctx context.Context, adminID, targetID uuid.UUID, actionType string) (CashResult, error) {
	if actionType != ActionPayShop && actionType != ActionCollectFromStaff {
		return cashFailure(apperrors.ErrInvalidCashAction), nil
	}
	if adminID == targetID {
		return cashFailure(apperrors.ErrSameAccount), nil
	}

	var result CashResult

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		locked, err := store.Account().LockForUpdate(ctx, adminID, targetID)
		if err != nil {
			return err
		}

		admin, ok := locked[adminID]
		if !ok {
			return apperrors.ErrAccountNotFound
		}
		target, ok := locked[targetID]
		if !ok {
			return apperrors.ErrAccountNotFound
		}

		switch {
		case actionType == ActionPayShop && target.Role != models.RoleShop:
			return apperrors.ErrRoleNotAllowed
		case actionType == ActionCollectFromStaff && target.Role != models.RoleStaff:
			return apperrors.ErrRoleNotAllowed
		}

		settled := target.Balance
		if !settled.IsPositive() {
			return apperrors.ErrNothingToSettle
		}

		transaction := models.Transaction{Amount: settled}
		adminDelta := settled

		switch actionType {
		case ActionPayShop:
			if admin.Balance.LessThan(settled) {
				return apperrors.ErrInsufficientAdminCash
			}
			adminDelta = settled.Neg()
			transaction.Type = models.TransactionTypeCashPayout
			transaction.SenderID = &adminID
			transaction.ReceiverID = &targetID
		case ActionCollectFromStaff:
			transaction.Type = models.TransactionTypeCashCollection
			transaction.SenderID = &targetID
			transaction.ReceiverID = &adminID
		}

		if _, err := store.Account().SetBalance(ctx, targetID, decimal.Zero); err != nil {
			return err
		}
		if _, err := store.Account().AddToBalance(ctx, adminID, adminDelta); err != nil {
			return err
		}
		if _, err := store.Transaction().Create(ctx, transaction); err != nil {
			return err
		}

		result = CashResult{
			Success: true,
			Message: "settlement completed",
			Settled: settled,
		}
		return nil
	})

	switch {
	case err == nil:
		return result, nil
	case isBusinessErr(err):
		return cashFailure(err), nil
	default:
		return CashResult{}, fmt.Errorf("settlement failed: %w", err)
	}
}

// validateAmount accepts positive amounts with at most two decimal
// places. The client sends floats, the server pins satang precision.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.ErrInvalidAmount
	}
	return nil
}

// Business rule failures are reported inside the result struct so
// callers can show them as-is. Everything else (lock conflicts, storage
// errors) propagates as a Go error and means nothing was applied.
func isBusinessErr(err error) bool {
	for _, known := range []error{
		apperrors.ErrAccountNotFound,
		apperrors.ErrInvalidAmount,
		apperrors.ErrInvalidTransferType,
		apperrors.ErrInvalidCashAction,
		apperrors.ErrSameAccount,
		apperrors.ErrInsufficientFunds,
		apperrors.ErrInsufficientAdminCash,
		apperrors.ErrNothingToSettle,
		apperrors.ErrRoleNotAllowed,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func transferFailure(err error) TransferResult {
	return TransferResult{Success: false, Message: err.Error()}
}

func cashFailure(err error) CashResult {
	return CashResult{Success: false, Message: err.Error()}
}

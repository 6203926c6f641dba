package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/handlers/render"
	"github.com/wkamthorn/campuswallet/internal/handlers/userctx"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/models"
)

// Business rule failures come back with success=false and HTTP 200,
// same contract the dashboards already speak. Error statuses are
// reserved for infrastructure trouble: 409 means nothing was applied
// and the call is safe to retry.

func handleTransfer(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		SenderID   uuid.UUID       `json:"sender_id" validate:"required"`
		ReceiverID uuid.UUID       `json:"receiver_id" validate:"required"`
		Amount     decimal.Decimal `json:"amount" validate:"required"`
		Type       string          `json:"type" validate:"required,oneof=topup payment refund"`
	}
	type response struct {
		Success            bool    `json:"success"`
		Message            string  `json:"message"`
		NewSenderBalance   float64 `json:"new_sender_balance,omitempty"`
		NewReceiverBalance float64 `json:"new_receiver_balance,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if !transferAllowed(caller, data.SenderID, data.ReceiverID, data.Type) {
			render.ServiceError(w, "Forbidden", http.StatusForbidden)
			return
		}

		result, err := ledgerService.TransferFunds(r.Context(), data.SenderID, data.ReceiverID, data.Amount, data.Type)
		switch {
		case err == nil:
			senderBalance, _ := result.SenderBalance.Float64()
			receiverBalance, _ := result.ReceiverBalance.Float64()
			render.JSON(w, response{
				Success:            result.Success,
				Message:            result.Message,
				NewSenderBalance:   senderBalance,
				NewReceiverBalance: receiverBalance,
			})
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Operation conflicted, retry", http.StatusConflict)
		default:
			l.Error("Transfer failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// transferAllowed is the role policy in front of the engine: students
// spend only their own credit, staff and admins drive topups and
// refunds they are party to.
func transferAllowed(caller models.Account, senderID, receiverID uuid.UUID, transferType string) bool {
	switch transferType {
	case models.TransactionTypePayment:
		return caller.ID == senderID
	case models.TransactionTypeTopup:
		return cashRole(caller.Role) && caller.ID == senderID
	case models.TransactionTypeRefund:
		return cashRole(caller.Role) && caller.ID == receiverID
	}
	return false
}

func cashRole(role string) bool {
	return role == models.RoleStaff || role == models.RoleAdmin
}

func handleAdminCash(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		TargetUserID uuid.UUID `json:"target_user_id" validate:"required"`
		ActionType   string    `json:"action_type" validate:"required,oneof=pay_shop collect_from_staff"`
	}
	type response struct {
		Success bool    `json:"success"`
		Message string  `json:"message"`
		Settled float64 `json:"settled,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := ledgerService.HandleCash(r.Context(), caller.ID, data.TargetUserID, data.ActionType)
		switch {
		case err == nil:
			settled, _ := result.Settled.Float64()
			render.JSON(w, response{Success: result.Success, Message: result.Message, Settled: settled})
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Operation conflicted, retry", http.StatusConflict)
		default:
			l.Error("Settlement failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

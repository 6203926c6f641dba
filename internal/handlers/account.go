package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/handlers/render"
	"github.com/wkamthorn/campuswallet/internal/handlers/userctx"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/qr"
)

type accountResponse struct {
	ID         uuid.UUID `json:"id"`
	Role       string    `json:"role"`
	FullName   string    `json:"full_name"`
	ExternalID string    `json:"external_id,omitempty"`
	Balance    float64   `json:"balance"`
}

func toAccountResponse(a models.Account) accountResponse {
	balance, _ := a.Balance.Float64()
	return accountResponse{
		ID:         a.ID,
		Role:       a.Role,
		FullName:   a.FullName,
		ExternalID: a.ExternalID,
		Balance:    balance,
	}
}

func handleAccountMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toAccountResponse(account))
	})
}

func handleAccountQR(l logger.Logger) http.Handler {
	type response struct {
		Payload string `json:"payload"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		payload, err := qr.Encode(account)
		if err != nil {
			l.Error("Failed to encode qr payload", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Payload: payload})
	})
}

// handleResolveQR turns a scanned payload into an account summary.
// The stored role must match the role the payload claims, a student QR
// can't be replayed as a shop one.
func handleResolveQR(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Payload string `json:"payload" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		payload, err := qr.Decode(data.Payload)
		if err != nil {
			render.ServiceError(w, "Invalid QR payload", http.StatusUnprocessableEntity)
			return
		}

		account, err := accountService.GetByID(r.Context(), payload.ID)
		switch {
		case err == nil && account.Role != payload.Type:
			render.ServiceError(w, "Invalid QR payload", http.StatusUnprocessableEntity)
		case err == nil:
			render.JSON(w, toAccountResponse(account))
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Account not found", http.StatusNotFound)
		default:
			l.Error("Failed to resolve qr payload", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

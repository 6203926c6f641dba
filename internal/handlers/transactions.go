package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wkamthorn/campuswallet/internal/handlers/render"
	"github.com/wkamthorn/campuswallet/internal/handlers/userctx"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
)

const defaultTransactionLimit = 50

type transactionResponse struct {
	ID         uuid.UUID  `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	SenderID   *uuid.UUID `json:"sender_id"`
	ReceiverID *uuid.UUID `json:"receiver_id"`
	Type       string     `json:"type"`
	Amount     float64    `json:"amount"`
}

func toTransactionResponses(transactions []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		amount, _ := t.Amount.Float64()
		out = append(out, transactionResponse{
			ID:         t.ID,
			CreatedAt:  t.CreatedAt,
			SenderID:   t.SenderID,
			ReceiverID: t.ReceiverID,
			Type:       t.Type,
			Amount:     amount,
		})
	}
	return out
}

func transactionFilterFromQuery(r *http.Request) repository.TransactionFilter {
	filter := repository.TransactionFilter{Limit: defaultTransactionLimit}

	if t := r.URL.Query().Get("type"); t != "" {
		filter.Types = []string{t}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}

	return filter
}

// handleListTransactions returns the caller's own history,
// newest first
func handleListTransactions(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		filter := transactionFilterFromQuery(r)
		filter.ParticipantID = account.ID

		transactions, err := accountService.ListTransactions(r.Context(), filter)
		if err != nil {
			l.Error("Failed to list transactions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toTransactionResponses(transactions))
	})
}

// handleAdminListTransactions is the whole log, any participant
func handleAdminListTransactions(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transactions, err := accountService.ListTransactions(r.Context(), transactionFilterFromQuery(r))
		if err != nil {
			l.Error("Failed to list transactions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toTransactionResponses(transactions))
	})
}

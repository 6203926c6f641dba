package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/handlers/render"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/repository"
)

func handleAdminListAccounts(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accounts, err := accountService.List(r.Context(), r.URL.Query().Get("role"))
		switch {
		case err == nil:
			out := make([]accountResponse, 0, len(accounts))
			for _, a := range accounts {
				out = append(out, toAccountResponse(a))
			}
			render.JSON(w, out)
		case errors.Is(err, apperrors.ErrRoleNotAllowed):
			render.ServiceError(w, "Unknown role", http.StatusBadRequest)
		default:
			l.Error("Failed to list accounts", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleAdminCreateAccount(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Username   string `json:"username" validate:"required,min=2,max=100"`
		Password   string `json:"password" validate:"required,min=6"`
		Role       string `json:"role" validate:"required,oneof=shop staff admin"`
		FullName   string `json:"full_name" validate:"required,max=200"`
		ExternalID string `json:"external_id" validate:"max=50"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := accountService.Provision(r.Context(), repository.CreateAccountParams{
			Username:   data.Username,
			Role:       data.Role,
			FullName:   data.FullName,
			ExternalID: data.ExternalID,
		}, data.Password)

		switch {
		case err == nil:
			render.JSON(w, toAccountResponse(account))
		case errors.Is(err, apperrors.ErrAccountAlreadyExists):
			render.ServiceError(w, "Account already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrRoleNotAllowed):
			render.ServiceError(w, "Role not allowed", http.StatusBadRequest)
		default:
			l.Error("Failed to provision account", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleAdminUpdateRole(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Role string `json:"role" validate:"required,oneof=student shop staff admin"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := accountService.ChangeRole(r.Context(), id, data.Role)
		switch {
		case err == nil:
			render.JSON(w, toAccountResponse(account))
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Account not found", http.StatusNotFound)
		default:
			l.Error("Failed to change role", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleAdminStats(accountService accountService, l logger.Logger) http.Handler {
	type response struct {
		TotalStudents  int64   `json:"total_students"`
		TotalShops     int64   `json:"total_shops"`
		TotalStaff     int64   `json:"total_staff"`
		StudentCredit  float64 `json:"student_credit"`
		PendingPayouts float64 `json:"pending_payouts"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := accountService.Stats(r.Context())
		if err != nil {
			l.Error("Failed to get stats", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		credit, _ := stats.StudentCredit.Float64()
		payouts, _ := stats.PendingPayouts.Float64()
		render.JSON(w, response{
			TotalStudents:  stats.TotalStudents,
			TotalShops:     stats.TotalShops,
			TotalStaff:     stats.TotalStaff,
			StudentCredit:  credit,
			PendingPayouts: payouts,
		})
	})
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/handlers/render"
	"github.com/wkamthorn/campuswallet/internal/handlers/userctx"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/models"
)

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.Access.Value,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Value,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func handleRegister(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username  string `json:"username" validate:"required,min=2,max=100"`
		Password  string `json:"password" validate:"required,min=6"`
		FullName  string `json:"full_name" validate:"required,max=200"`
		StudentID string `json:"student_id" validate:"max=50"`
	}
	type response struct {
		AccountID string            `json:"account_id"`
		Tokens    tokenPairResponse `json:"tokens"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, pair, err := authService.RegisterStudent(r.Context(), data.Username, data.Password, data.FullName, data.StudentID)
		switch {
		case err == nil:
			render.JSON(w, response{AccountID: account.ID.String(), Tokens: toTokenPairResponse(pair)})
		case errors.Is(err, apperrors.ErrAccountAlreadyExists):
			render.ServiceError(w, "Account already exists", http.StatusConflict)
		default:
			l.Error("Failed to register account", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		AccountID string            `json:"account_id"`
		Role      string            `json:"role"`
		Tokens    tokenPairResponse `json:"tokens"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, pair, err := authService.Login(r.Context(), data.Username, data.Password)
		switch {
		case err == nil:
			render.JSON(w, response{AccountID: account.ID.String(), Role: account.Role, Tokens: toTokenPairResponse(pair)})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid username or password", http.StatusUnauthorized)
		default:
			l.Error("Failed to login", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Refresh(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
			render.JSON(w, toTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshTokenIsUsed),
			errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not valid", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleChangePassword(authService authService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"old_password" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=6"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.ChangePassword(r.Context(), account.ID, data.OldPassword, data.NewPassword)
		switch {
		case err == nil:
			render.JSON(w, response{Message: "Password changed"})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Old password is not correct", http.StatusUnauthorized)
		default:
			l.Error("Failed to change password", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

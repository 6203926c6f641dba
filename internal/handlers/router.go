package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wkamthorn/campuswallet/internal/handlers/middleware"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
	"github.com/wkamthorn/campuswallet/internal/service/ledger"
	"github.com/wkamthorn/campuswallet/internal/service/notify"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	accountService accountService,
	ledgerService ledgerService,
	broker *notify.Broker,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return chain(h, authMiddleware, middleware.RequireRoles(models.RoleAdmin))
	}

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(authService, logger))
	api.Handle("POST /auth/login", handleLogin(authService, logger))
	api.Handle("POST /auth/refresh", handleTokenRefresh(authService, logger))
	api.Handle("POST /auth/password", withAuth(handleChangePassword(authService, logger)))

	api.Handle("GET /accounts/me", withAuth(handleAccountMe()))
	api.Handle("GET /accounts/me/qr", withAuth(handleAccountQR(logger)))
	api.Handle("POST /qr/resolve", withAuth(handleResolveQR(accountService, logger)))

	api.Handle("POST /transfers", withAuth(handleTransfer(ledgerService, logger)))
	api.Handle("GET /transactions", withAuth(handleListTransactions(accountService, logger)))
	api.Handle("GET /events", withAuth(handleEvents(broker, logger)))

	api.Handle("POST /admin/cash", withAdmin(handleAdminCash(ledgerService, logger)))
	api.Handle("GET /admin/accounts", withAdmin(handleAdminListAccounts(accountService, logger)))
	api.Handle("POST /admin/accounts", withAdmin(handleAdminCreateAccount(accountService, logger)))
	api.Handle("PATCH /admin/accounts/{id}/role", withAdmin(handleAdminUpdateRole(accountService, logger)))
	api.Handle("GET /admin/stats", withAdmin(handleAdminStats(accountService, logger)))
	api.Handle("GET /admin/transactions", withAdmin(handleAdminListTransactions(accountService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register student account with zero balance
	// Has to return apperrors.ErrAccountAlreadyExists if username is taken
	RegisterStudent(ctx context.Context, username, password, fullName, externalID string) (models.Account, models.TokenPair, error)

	// Login with username and password
	// Has to return apperrors.ErrInvalidCredentials on unknown user or bad password
	Login(ctx context.Context, username, password string) (models.Account, models.TokenPair, error)

	// Refresh tokens using single use refresh token
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Verify old password and store a new one
	ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword, newPassword string) error

	// Resolve the account behind the request's bearer token
	Authenticate(ctx context.Context, r *http.Request) (models.Account, error)
}

type accountService interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	List(ctx context.Context, role string) ([]models.Account, error)
	Provision(ctx context.Context, params repository.CreateAccountParams, password string) (models.Account, error)
	ChangeRole(ctx context.Context, id uuid.UUID, role string) (models.Account, error)
	Stats(ctx context.Context) (models.Stats, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, error)
}

type ledgerService interface {
	TransferFunds(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal, transferType string) (ledger.TransferResult, error)
	HandleCash(ctx context.Context, adminID, targetID uuid.UUID, actionType string) (ledger.CashResult, error)
}

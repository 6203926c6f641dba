package account

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
	"github.com/wkamthorn/campuswallet/internal/repository/postgres"
	"github.com/wkamthorn/campuswallet/internal/testutil"
)

func TestAccountService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(nil, storage), storage)
		})
	}

	t.Run("Provision", func(t *testing.T) {
		t.Run("provision shop ok", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				account, err := s.Provision(t.Context(), repository.CreateAccountParams{
					Username: "somtam-shop",
					Role:     models.RoleShop,
					FullName: "Somtam Corner",
				}, "password123")

				require.NoError(t, err)
				require.Equal(t, models.RoleShop, account.Role)
				require.NotEmpty(t, account.PasswordHash, "password should be hashed and stored")
				require.NotEqual(t, "password123", account.PasswordHash)
			})
		})

		t.Run("students cannot be provisioned", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				_, err := s.Provision(t.Context(), repository.CreateAccountParams{
					Username: "somchai",
					Role:     models.RoleStudent,
				}, "password123")

				require.ErrorIs(t, err, apperrors.ErrRoleNotAllowed, "students register themselves")
			})
		})

		t.Run("unknown role rejected", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				_, err := s.Provision(t.Context(), repository.CreateAccountParams{
					Username: "somchai",
					Role:     "superuser",
				}, "password123")

				require.ErrorIs(t, err, apperrors.ErrRoleNotAllowed)
			})
		})
	})

	t.Run("List", func(t *testing.T) {
		withTx(t, func(s *Service, storage repository.Storage) {
			_, err := s.Provision(t.Context(), repository.CreateAccountParams{Username: "shop-1", Role: models.RoleShop}, "pwd")
			require.NoError(t, err)
			_, err = s.Provision(t.Context(), repository.CreateAccountParams{Username: "staff-1", Role: models.RoleStaff}, "pwd")
			require.NoError(t, err)

			t.Run("filter by role", func(t *testing.T) {
				shops, err := s.List(t.Context(), models.RoleShop)

				require.NoError(t, err)
				require.Len(t, shops, 1)
				require.Equal(t, "shop-1", shops[0].Username)
			})

			t.Run("unknown role rejected", func(t *testing.T) {
				_, err := s.List(t.Context(), "superuser")

				require.ErrorIs(t, err, apperrors.ErrRoleNotAllowed)
			})
		})
	})

	t.Run("ChangeRole", func(t *testing.T) {
		withTx(t, func(s *Service, storage repository.Storage) {
			account, err := s.Provision(t.Context(), repository.CreateAccountParams{Username: "staff-1", Role: models.RoleStaff}, "pwd")
			require.NoError(t, err)

			t.Run("change ok", func(t *testing.T) {
				got, err := s.ChangeRole(t.Context(), account.ID, models.RoleAdmin)

				require.NoError(t, err)
				require.Equal(t, models.RoleAdmin, got.Role)
			})

			t.Run("unknown role rejected", func(t *testing.T) {
				_, err := s.ChangeRole(t.Context(), account.ID, "superuser")

				require.ErrorIs(t, err, apperrors.ErrRoleNotAllowed)
			})

			t.Run("missing account", func(t *testing.T) {
				_, err := s.ChangeRole(t.Context(), uuid.New(), models.RoleStaff)

				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("Stats", func(t *testing.T) {
		withTx(t, func(s *Service, storage repository.Storage) {
			shop, err := s.Provision(t.Context(), repository.CreateAccountParams{Username: "shop-1", Role: models.RoleShop}, "pwd")
			require.NoError(t, err)
			_, err = storage.Account().SetBalance(t.Context(), shop.ID, decimal.NewFromInt(75))
			require.NoError(t, err)

			stats, err := s.Stats(t.Context())

			require.NoError(t, err)
			require.Equal(t, int64(1), stats.TotalShops)
			require.True(t, stats.PendingPayouts.Equal(decimal.NewFromInt(75)))
		})
	})
}

package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
	"github.com/wkamthorn/campuswallet/internal/testutil"
)

func TestRefreshTokenRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	makeToken := func(accountID uuid.UUID, token string) models.RefreshToken {
		return models.RefreshToken{
			ID:        uuid.New(),
			AccountID: accountID,
			Token:     token,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			account := createTestAccount(t, storage, "somchai", models.RoleStudent)

			token := makeToken(account.ID, "refresh-token-string")
			err := storage.RefreshToken().Save(t.Context(), token)
			require.NoError(t, err, "saving token should not fail")

			t.Run("get existing", func(t *testing.T) {
				got, err := storage.RefreshToken().Get(t.Context(), "refresh-token-string")

				require.NoError(t, err)
				require.Equal(t, token.ID, got.ID)
				require.Equal(t, account.ID, got.AccountID)
				require.Nil(t, got.UsedAt, "fresh token must not be marked used")
			})

			t.Run("get nonexistent", func(t *testing.T) {
				_, err := storage.RefreshToken().Get(t.Context(), "no-such-token")

				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})
	})

	t.Run("MarkUsed", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			account := createTestAccount(t, storage, "somchai", models.RoleStudent)

			t.Run("mark ok", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					err := storage.RefreshToken().Save(t.Context(), makeToken(account.ID, "token-1"))
					require.NoError(t, err)

					usedAt, err := storage.RefreshToken().MarkUsed(t.Context(), "token-1")

					require.NoError(t, err)
					require.False(t, usedAt.IsZero())

					got, err := storage.RefreshToken().Get(t.Context(), "token-1")
					require.NoError(t, err)
					require.NotNil(t, got.UsedAt, "token should be stored as used")
				})
			})

			t.Run("mark twice keeps original used_at", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					err := storage.RefreshToken().Save(t.Context(), makeToken(account.ID, "token-2"))
					require.NoError(t, err)

					firstUsedAt, err := storage.RefreshToken().MarkUsed(t.Context(), "token-2")
					require.NoError(t, err)

					secondUsedAt, err := storage.RefreshToken().MarkUsed(t.Context(), "token-2")

					require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed, "second use should fail")
					require.True(t, firstUsedAt.Equal(secondUsedAt), "used_at must not change on repeated use")
				})
			})

			t.Run("mark nonexistent", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.RefreshToken().MarkUsed(t.Context(), "no-such-token")

					require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
				})
			})
		})
	})
}

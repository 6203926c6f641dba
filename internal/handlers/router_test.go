package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
	"github.com/wkamthorn/campuswallet/internal/repository/postgres"
	"github.com/wkamthorn/campuswallet/internal/service/account"
	"github.com/wkamthorn/campuswallet/internal/service/auth"
	"github.com/wkamthorn/campuswallet/internal/service/auth/tokenmanager"
	"github.com/wkamthorn/campuswallet/internal/service/ledger"
	"github.com/wkamthorn/campuswallet/internal/service/notify"
	"github.com/wkamthorn/campuswallet/internal/testutil"
)

// Full stack over a shared database: real services, real router, no
// rollback isolation. Tests keep usernames unique to stay apart.
type testEnv struct {
	srv     *httptest.Server
	storage repository.Storage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage.RefreshToken())
	require.NoError(t, err)

	authService, err := auth.NewService(nil, tokens, storage)
	require.NoError(t, err)

	router := NewRouter(
		authService,
		account.NewService(nil, storage),
		ledger.NewService(storage),
		notify.NewBroker(),
		logger.NewNoOp(),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, storage: storage}
}

// do sends a JSON request and decodes the JSON answer into a map
func (e *testEnv) do(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoErrorf(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) doList(t *testing.T, path, token string) (int, []map[string]any) {
	t.Helper()

	req, err := http.NewRequest("GET", e.srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded []map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoErrorf(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// registerStudent registers over HTTP and returns account id and access token
func (e *testEnv) registerStudent(t *testing.T, username string) (uuid.UUID, string) {
	t.Helper()

	code, body := e.do(t, "POST", "/api/auth/register", "", map[string]any{
		"username":  username,
		"password":  "password123",
		"full_name": "Student " + username,
	})
	require.Equalf(t, http.StatusOK, code, "register failed: %v", body)

	id, err := uuid.Parse(body["account_id"].(string))
	require.NoError(t, err)
	tokens := body["tokens"].(map[string]any)

	return id, tokens["access_token"].(string)
}

// provision creates a non-student account directly in storage and
// logs it in over HTTP
func (e *testEnv) provision(t *testing.T, username, role string, balance int64) (uuid.UUID, string) {
	t.Helper()

	hash, err := auth.DefaultHasher.Hash("password123")
	require.NoError(t, err)

	created, err := e.storage.Account().Create(t.Context(), repository.CreateAccountParams{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		FullName:     "Account " + username,
	})
	require.NoError(t, err)

	if balance != 0 {
		_, err = e.storage.Account().SetBalance(t.Context(), created.ID, decimal.NewFromInt(balance))
		require.NoError(t, err)
	}

	code, body := e.do(t, "POST", "/api/auth/login", "", map[string]any{
		"username": username,
		"password": "password123",
	})
	require.Equalf(t, http.StatusOK, code, "login failed: %v", body)
	tokens := body["tokens"].(map[string]any)

	return created.ID, tokens["access_token"].(string)
}

func Test_Router(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	t.Run("register and me", func(t *testing.T) {
		id, token := env.registerStudent(t, "me-student")

		code, body := env.do(t, "GET", "/api/accounts/me", token, nil)

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, id.String(), body["id"])
		require.Equal(t, models.RoleStudent, body["role"])
		require.Equal(t, "Student me-student", body["full_name"])
		require.Equal(t, float64(0), body["balance"])
	})

	t.Run("login with wrong password", func(t *testing.T) {
		env.registerStudent(t, "login-student")

		code, _ := env.do(t, "POST", "/api/auth/login", "", map[string]any{
			"username": "login-student",
			"password": "wrong",
		})

		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("auth required", func(t *testing.T) {
		code, _ := env.do(t, "GET", "/api/accounts/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, code)

		code, _ = env.do(t, "GET", "/api/accounts/me", "garbage-token", nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("validation errors", func(t *testing.T) {
		code, body := env.do(t, "POST", "/api/auth/register", "", map[string]any{
			"username": "x",
			"password": "short",
		})

		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "validation_failed", body["error"])
	})

	t.Run("refresh rotates tokens", func(t *testing.T) {
		code, body := env.do(t, "POST", "/api/auth/register", "", map[string]any{
			"username":  "refresh-student",
			"password":  "password123",
			"full_name": "Refresh Student",
		})
		require.Equal(t, http.StatusOK, code)
		refresh := body["tokens"].(map[string]any)["refresh_token"].(string)

		code, body = env.do(t, "POST", "/api/auth/refresh", "", map[string]any{"refresh_token": refresh})
		require.Equal(t, http.StatusOK, code)
		require.NotEqual(t, refresh, body["refresh_token"], "refresh token must rotate")

		code, _ = env.do(t, "POST", "/api/auth/refresh", "", map[string]any{"refresh_token": refresh})
		require.Equal(t, http.StatusUnauthorized, code, "a refresh token is single use")
	})

	t.Run("payment through the api", func(t *testing.T) {
		studentID, studentToken := env.registerStudent(t, "paying-student")
		_, err := env.storage.Account().SetBalance(t.Context(), studentID, decimal.NewFromInt(100))
		require.NoError(t, err)
		shopID, _ := env.provision(t, "paid-shop", models.RoleShop, 0)

		code, body := env.do(t, "POST", "/api/transfers", studentToken, map[string]any{
			"sender_id":   studentID,
			"receiver_id": shopID,
			"amount":      30,
			"type":        "payment",
		})

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, true, body["success"], "message: %v", body["message"])
		require.Equal(t, float64(70), body["new_sender_balance"])
		require.Equal(t, float64(30), body["new_receiver_balance"])

		t.Run("shows up in own history", func(t *testing.T) {
			code, transactions := env.doList(t, "/api/transactions", studentToken)

			require.Equal(t, http.StatusOK, code)
			require.Len(t, transactions, 1)
			require.Equal(t, "payment", transactions[0]["type"])
			require.Equal(t, float64(30), transactions[0]["amount"])
		})
	})

	t.Run("insufficient funds is a 200 with success false", func(t *testing.T) {
		studentID, studentToken := env.registerStudent(t, "broke-student")
		shopID, _ := env.provision(t, "hopeful-shop", models.RoleShop, 0)

		code, body := env.do(t, "POST", "/api/transfers", studentToken, map[string]any{
			"sender_id":   studentID,
			"receiver_id": shopID,
			"amount":      30,
			"type":        "payment",
		})

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, false, body["success"])
		require.NotEmpty(t, body["message"])
	})

	t.Run("spending someone else's credit is forbidden", func(t *testing.T) {
		victimID, _ := env.registerStudent(t, "victim-student")
		_, thiefToken := env.registerStudent(t, "thief-student")
		shopID, _ := env.provision(t, "fence-shop", models.RoleShop, 0)

		code, _ := env.do(t, "POST", "/api/transfers", thiefToken, map[string]any{
			"sender_id":   victimID,
			"receiver_id": shopID,
			"amount":      10,
			"type":        "payment",
		})

		require.Equal(t, http.StatusForbidden, code)
	})

	t.Run("topup needs a cash role", func(t *testing.T) {
		studentID, studentToken := env.registerStudent(t, "topup-student")
		staffID, staffToken := env.provision(t, "topup-staff", models.RoleStaff, 0)

		code, _ := env.do(t, "POST", "/api/transfers", studentToken, map[string]any{
			"sender_id":   studentID,
			"receiver_id": studentID,
			"amount":      50,
			"type":        "topup",
		})
		require.Equal(t, http.StatusForbidden, code, "students cannot mint their own credit")

		code, body := env.do(t, "POST", "/api/transfers", staffToken, map[string]any{
			"sender_id":   staffID,
			"receiver_id": studentID,
			"amount":      50,
			"type":        "topup",
		})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, true, body["success"], "message: %v", body["message"])
		require.Equal(t, float64(50), body["new_receiver_balance"])
	})

	t.Run("unknown transfer type fails validation", func(t *testing.T) {
		studentID, studentToken := env.registerStudent(t, "typo-student")

		code, body := env.do(t, "POST", "/api/transfers", studentToken, map[string]any{
			"sender_id":   studentID,
			"receiver_id": uuid.New(),
			"amount":      10,
			"type":        "donation",
		})

		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "validation_failed", body["error"])
	})

	t.Run("qr round trip", func(t *testing.T) {
		studentID, studentToken := env.registerStudent(t, "qr-student")
		_, shopToken := env.provision(t, "qr-shop", models.RoleShop, 0)

		code, body := env.do(t, "GET", "/api/accounts/me/qr", studentToken, nil)
		require.Equal(t, http.StatusOK, code)
		payload := body["payload"].(string)
		require.NotEmpty(t, payload)

		code, body = env.do(t, "POST", "/api/qr/resolve", shopToken, map[string]any{"payload": payload})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, studentID.String(), body["id"])
		require.Equal(t, models.RoleStudent, body["role"])

		t.Run("garbage payload", func(t *testing.T) {
			code, _ := env.do(t, "POST", "/api/qr/resolve", shopToken, map[string]any{"payload": "not json at all"})
			require.Equal(t, http.StatusUnprocessableEntity, code)
		})

		t.Run("payload claiming a wrong role", func(t *testing.T) {
			forged := fmt.Sprintf(`{"id":%q,"type":"shop","name":"Forged"}`, studentID)
			code, _ := env.do(t, "POST", "/api/qr/resolve", shopToken, map[string]any{"payload": forged})
			require.Equal(t, http.StatusUnprocessableEntity, code)
		})
	})

	t.Run("admin surface", func(t *testing.T) {
		_, adminToken := env.provision(t, "surface-admin", models.RoleAdmin, 1000)
		_, studentToken := env.registerStudent(t, "surface-student")

		t.Run("students are kept out", func(t *testing.T) {
			code, _ := env.do(t, "GET", "/api/admin/stats", studentToken, nil)
			require.Equal(t, http.StatusForbidden, code)
		})

		t.Run("create and relist", func(t *testing.T) {
			code, body := env.do(t, "POST", "/api/admin/accounts", adminToken, map[string]any{
				"username":  "surface-shop",
				"password":  "password123",
				"role":      "shop",
				"full_name": "Surface Shop",
			})
			require.Equalf(t, http.StatusOK, code, "body: %v", body)
			require.Equal(t, "shop", body["role"])

			code, accounts := env.doList(t, "/api/admin/accounts?role=shop", adminToken)
			require.Equal(t, http.StatusOK, code)

			found := false
			for _, a := range accounts {
				if a["full_name"] == "Surface Shop" {
					found = true
				}
			}
			require.True(t, found, "provisioned shop should be listed")
		})

		t.Run("creating a student is rejected", func(t *testing.T) {
			code, _ := env.do(t, "POST", "/api/admin/accounts", adminToken, map[string]any{
				"username":  "surface-student-2",
				"password":  "password123",
				"role":      "student",
				"full_name": "Surface Student",
			})
			require.Equal(t, http.StatusBadRequest, code)
		})

		t.Run("role change", func(t *testing.T) {
			targetID, _ := env.provision(t, "surface-staff", models.RoleStaff, 0)

			code, body := env.do(t, "PATCH", "/api/admin/accounts/"+targetID.String()+"/role", adminToken, map[string]any{
				"role": "admin",
			})
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "admin", body["role"])
		})

		t.Run("stats", func(t *testing.T) {
			code, body := env.do(t, "GET", "/api/admin/stats", adminToken, nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, body, "total_students")
			require.Contains(t, body, "student_credit")
			require.Contains(t, body, "pending_payouts")
		})

		t.Run("cash settlement", func(t *testing.T) {
			shopID, _ := env.provision(t, "settled-shop", models.RoleShop, 40)

			code, body := env.do(t, "POST", "/api/admin/cash", adminToken, map[string]any{
				"target_user_id": shopID,
				"action_type":    "pay_shop",
			})

			require.Equal(t, http.StatusOK, code)
			require.Equal(t, true, body["success"], "message: %v", body["message"])
			require.Equal(t, float64(40), body["settled"])

			shop, err := env.storage.Account().GetByID(t.Context(), shopID)
			require.NoError(t, err)
			require.True(t, shop.Balance.IsZero(), "shop should be settled to zero")
		})
	})
}

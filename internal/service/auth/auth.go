package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
	"github.com/wkamthorn/campuswallet/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare known hash and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

var DefaultHasher PasswordHasher = BcryptHasher{}

type Service struct {
	hasher  PasswordHasher
	tokens  *tokenmanager.TokenManager
	storage repository.Storage
}

func NewService(hasher PasswordHasher, tokens *tokenmanager.TokenManager, storage repository.Storage) (*Service, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &Service{
		hasher:  hasher,
		tokens:  tokens,
		storage: storage,
	}, nil
}

// RegisterStudent self-registers a student account with zero balance.
// Shops and staff are provisioned by an admin, never here.
func (s *Service) RegisterStudent(ctx context.Context, username, password, fullName, externalID string) (models.Account, models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Account{}, models.TokenPair{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	account, err := s.storage.Account().Create(ctx, repository.CreateAccountParams{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		FullName:     fullName,
		ExternalID:   externalID,
	})
	if err != nil {
		return models.Account{}, models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, account)
	if err != nil {
		return models.Account{}, models.TokenPair{}, err
	}

	return account, pair, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (models.Account, models.TokenPair, error) {
	account, err := s.storage.Account().GetByUsername(ctx, username)

	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		// Same answer for unknown user and wrong password
		return models.Account{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.Account{}, models.TokenPair{}, err
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return models.Account{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.tokens.GeneratePair(ctx, account)
	if err != nil {
		return models.Account{}, models.TokenPair{}, err
	}

	return account, pair, nil
}

// Refresh exchanges a valid single-use refresh token for a new pair
func (s *Service) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.tokens.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	account, err := s.storage.Account().GetByID(ctx, token.AccountID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.tokens.GeneratePair(ctx, account)
}

// ChangePassword verifies the old password before storing a new hash
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword, newPassword string) error {
	account, err := s.storage.Account().GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(account.PasswordHash, oldPassword); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.Account().UpdatePassword(ctx, accountID, hash)
}

// Authenticate resolves the account behind a bearer access token
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (models.Account, error) {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return models.Account{}, errors.New("missing bearer token")
	}

	accountID, err := s.tokens.ParseAccess(raw)
	if err != nil {
		return models.Account{}, err
	}

	return s.storage.Account().GetByID(ctx, accountID)
}

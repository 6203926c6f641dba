package account

import (
	"context"

	"github.com/google/uuid"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
	"github.com/wkamthorn/campuswallet/internal/repository"
	"github.com/wkamthorn/campuswallet/internal/service/auth"
)

// Service covers the read-only profile surface plus the admin-only
// account management operations. Balances are never touched here, that
// is the ledger engine's job.
type Service struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *Service {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &Service{
		hasher:  hasher,
		storage: storage,
	}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return s.storage.Account().GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, role string) ([]models.Account, error) {
	if role != "" && !models.ValidRole(role) {
		return nil, apperrors.ErrRoleNotAllowed
	}
	return s.storage.Account().List(ctx, role)
}

// Provision creates a shop, staff or admin account on behalf of an
// admin. Students register themselves through the auth service.
func (s *Service) Provision(ctx context.Context, params repository.CreateAccountParams, password string) (models.Account, error) {
	if !models.ValidRole(params.Role) || params.Role == models.RoleStudent {
		return models.Account{}, apperrors.ErrRoleNotAllowed
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Account{}, err
	}
	params.PasswordHash = hash

	return s.storage.Account().Create(ctx, params)
}

// ChangeRole reassigns an account's role. Admin only, roles are fixed
// at creation for everyone else.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role string) (models.Account, error) {
	if !models.ValidRole(role) {
		return models.Account{}, apperrors.ErrRoleNotAllowed
	}
	return s.storage.Account().UpdateRole(ctx, id, role)
}

func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	return s.storage.Account().Stats(ctx)
}

func (s *Service) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, error) {
	return s.storage.Transaction().List(ctx, filter)
}

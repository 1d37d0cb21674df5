// Package users implements the account-management surface (superAdmin only,
// apart from the moderator listing used by dormitory ownership pickers).
package users

import (
	"context"
	"errors"
	"fmt"
	"log"

	"dormtrack/internal/apperr"
	"dormtrack/internal/auth"
	"dormtrack/internal/model"
)

// Repository is the persistence the user service needs.
type Repository interface {
	Create(ctx context.Context, login, passwordHash string, role model.Role) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	ListModerators(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id int64, login, passwordHash *string, role *model.Role) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

// Service manages user accounts.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService creates a user service.
func NewService(repo Repository, bcryptCost int) *Service {
	return &Service{repo: repo, bcryptCost: bcryptCost}
}

// Create adds an account with a hashed password. Duplicate logins are ErrConflict.
func (s *Service) Create(ctx context.Context, login, password string, role model.Role) (*model.User, error) {
	if _, err := s.repo.GetByLogin(ctx, login); err == nil {
		return nil, apperr.ErrConflict
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("check login: %w", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, login, hash, role)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// ListModerators returns moderator accounts (id + login).
func (s *Service) ListModerators(ctx context.Context) ([]model.User, error) {
	return s.repo.ListModerators(ctx)
}

// Get returns one account or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateInput carries the optional account changes.
type UpdateInput struct {
	Login    *string
	Password *string
	Role     *model.Role
}

// Update changes login, password and/or role. A login change is re-checked
// for uniqueness; a new password is rehashed.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*model.User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Login != nil && *in.Login != current.Login {
		if _, err := s.repo.GetByLogin(ctx, *in.Login); err == nil {
			return nil, apperr.ErrConflict
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("check login: %w", err)
		}
	}

	var hash *string
	if in.Password != nil {
		h, err := auth.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = &h
	}

	return s.repo.Update(ctx, id, in.Login, hash, in.Role)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Bootstrap creates the initial superAdmin account when no users exist yet.
func (s *Service) Bootstrap(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	existing, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	if _, err := s.Create(ctx, login, password, model.RoleSuperAdmin); err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	log.Printf("bootstrap superAdmin %q created", login)
	return nil
}

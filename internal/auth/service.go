package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
)

// UserStore is the slice of user persistence the auth flows need.
type UserStore interface {
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	SetRefreshToken(ctx context.Context, id int64, token *string) error
	ReplaceRefreshToken(ctx context.Context, id int64, current, next string) error
}

// OwnershipStore resolves which dormitories a moderator owns.
type OwnershipStore interface {
	OwnedDormitoryIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Session is what a successful login or refresh returns.
type Session struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	UserID       int64      `json:"id"`
	Role         model.Role `json:"role"`
	DormitoryID  *int64     `json:"dormId,omitempty"`
}

// Service implements login, refresh rotation and logout.
type Service struct {
	users      UserStore
	dorms      OwnershipStore
	issuer     string
	signingKey string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates an auth service.
func NewService(users UserStore, dorms OwnershipStore, issuer, signingKey string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		dorms:      dorms,
		issuer:     issuer,
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Login verifies credentials, mints a token pair and persists the refresh
// token, replacing any previously stored one (single active session per user).
func (s *Service) Login(ctx context.Context, login, password string) (Session, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, apperr.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return Session{}, apperr.ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

// Refresh rotates a refresh token. A token that fails signature or expiry
// checks yields ErrInvalidToken; a well-formed token that does not match the
// stored one yields ErrStaleToken (reuse after rotation). The swap is
// conditional on the presented token still being the stored one, so of two
// concurrent refreshes only one wins and the other sees ErrStaleToken.
func (s *Service) Refresh(ctx context.Context, token string) (Session, error) {
	claims, err := Parse(token, s.signingKey, s.issuer)
	if err != nil {
		return Session{}, apperr.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, apperr.ErrStaleToken
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.RefreshToken == nil || *user.RefreshToken != token {
		return Session{}, apperr.ErrStaleToken
	}

	pair, err := Issue(user.ID, user.Role, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.users.ReplaceRefreshToken(ctx, user.ID, token, pair.RefreshToken); err != nil {
		if errors.Is(err, apperr.ErrStaleToken) {
			return Session{}, apperr.ErrStaleToken
		}
		return Session{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return s.sessionFor(ctx, user, pair)
}

// Logout clears the stored refresh token, unconditionally ending the session.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.users.SetRefreshToken(ctx, userID, nil)
}

func (s *Service) startSession(ctx context.Context, user *model.User) (Session, error) {
	pair, err := Issue(user.ID, user.Role, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}
	return s.sessionFor(ctx, user, pair)
}

func (s *Service) sessionFor(ctx context.Context, user *model.User, pair TokenPair) (Session, error) {
	session := Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserID:       user.ID,
		Role:         user.Role,
	}
	if user.Role == model.RoleModerator {
		ids, err := s.dorms.OwnedDormitoryIDs(ctx, user.ID)
		if err != nil {
			return Session{}, fmt.Errorf("resolve owned dormitories: %w", err)
		}
		if len(ids) > 0 {
			session.DormitoryID = &ids[0]
		}
	}
	return session, nil
}

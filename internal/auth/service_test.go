package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
)

type fakeUserStore struct {
	users map[int64]*model.User

	// runs after a GetByID read, before the caller acts on the snapshot
	afterGetByID func()
}

func (f *fakeUserStore) GetByLogin(_ context.Context, login string) (*model.User, error) {
	for _, u := range f.users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	snapshot := *u
	if f.afterGetByID != nil {
		f.afterGetByID()
	}
	return &snapshot, nil
}

func (f *fakeUserStore) SetRefreshToken(_ context.Context, id int64, token *string) error {
	f.users[id].RefreshToken = token
	return nil
}

func (f *fakeUserStore) ReplaceRefreshToken(_ context.Context, id int64, current, next string) error {
	u, ok := f.users[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != current {
		return apperr.ErrStaleToken
	}
	u.RefreshToken = &next
	return nil
}

type fakeOwnership struct {
	owned map[int64][]int64
}

func (f *fakeOwnership) OwnedDormitoryIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.owned[userID], nil
}

func newTestService(t *testing.T) (*Service, *fakeUserStore) {
	t.Helper()

	adminHash, err := HashPassword("correct", 4)
	require.NoError(t, err)
	modHash, err := HashPassword("modpass", 4)
	require.NoError(t, err)

	users := &fakeUserStore{users: map[int64]*model.User{
		1: {ID: 1, Login: "admin", PasswordHash: adminHash, Role: model.RoleAdmin},
		2: {ID: 2, Login: "mod", PasswordHash: modHash, Role: model.RoleModerator},
	}}
	dorms := &fakeOwnership{owned: map[int64][]int64{2: {7, 9}}}
	return NewService(users, dorms, "dormtrack", "test-secret", time.Minute, time.Hour), users
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestLoginStoresRefreshToken(t *testing.T) {
	svc, users := newTestService(t)

	sess, err := svc.Login(context.Background(), "admin", "correct")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.UserID)
	assert.Equal(t, model.RoleAdmin, sess.Role)
	assert.Nil(t, sess.DormitoryID)

	require.NotNil(t, users.users[1].RefreshToken)
	assert.Equal(t, sess.RefreshToken, *users.users[1].RefreshToken)
}

func TestLoginModeratorIncludesFirstOwnedDormitory(t *testing.T) {
	svc, _ := newTestService(t)

	sess, err := svc.Login(context.Background(), "mod", "modpass")
	require.NoError(t, err)
	require.NotNil(t, sess.DormitoryID)
	assert.Equal(t, int64(7), *sess.DormitoryID)
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "admin", "correct")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, second.RefreshToken)

	// The pre-rotation token must now be rejected.
	_, err = svc.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrStaleToken)

	// The freshly rotated one still works.
	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshLosingConcurrentRotationIsStale(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "admin", "correct")
	require.NoError(t, err)

	// A competing refresh lands between the read and the conditional swap.
	users.afterGetByID = func() {
		users.afterGetByID = nil
		rival := "rotated-by-rival"
		users.users[1].RefreshToken = &rival
	}

	_, err = svc.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrStaleToken)
	require.NotNil(t, users.users[1].RefreshToken)
	assert.Equal(t, "rotated-by-rival", *users.users[1].RefreshToken)
}

func TestRefreshGarbageToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestLogoutEndsSession(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "admin", "correct")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.UserID))
	assert.Nil(t, users.users[1].RefreshToken)

	_, err = svc.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrStaleToken)
}

package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormtrack/internal/apperr"
	"dormtrack/internal/auth"
	"dormtrack/internal/model"
)

type fakeRepo struct {
	seq   int64
	users map[int64]*model.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int64]*model.User{}}
}

func (f *fakeRepo) Create(_ context.Context, login, passwordHash string, role model.Role) (*model.User, error) {
	for _, u := range f.users {
		if u.Login == login {
			return nil, apperr.ErrConflict
		}
	}
	f.seq++
	u := &model.User{ID: f.seq, Login: login, PasswordHash: passwordHash, Role: role}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) GetByLogin(_ context.Context, login string) (*model.User, error) {
	for _, u := range f.users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) List(_ context.Context) ([]model.User, error) {
	var res []model.User
	for _, u := range f.users {
		res = append(res, *u)
	}
	return res, nil
}

func (f *fakeRepo) ListModerators(_ context.Context) ([]model.User, error) {
	var res []model.User
	for _, u := range f.users {
		if u.Role == model.RoleModerator {
			res = append(res, model.User{ID: u.ID, Login: u.Login, Role: u.Role})
		}
	}
	return res, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, login, passwordHash *string, role *model.Role) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if login != nil {
		u.Login = *login
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	if role != nil {
		u.Role = *role
	}
	return u, nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func TestCreateHashesPassword(t *testing.T) {
	svc := NewService(newFakeRepo(), 4)

	u, err := svc.Create(context.Background(), "mod1", "secret", model.RoleModerator)
	require.NoError(t, err)
	assert.NotEqual(t, "secret", u.PasswordHash)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "secret"))
}

func TestCreateDuplicateLogin(t *testing.T) {
	svc := NewService(newFakeRepo(), 4)
	ctx := context.Background()

	_, err := svc.Create(ctx, "mod1", "secret", model.RoleModerator)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "mod1", "other", model.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateLoginUniqueness(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 4)
	ctx := context.Background()

	a, err := svc.Create(ctx, "a", "pw", model.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "b", "pw", model.RoleAdmin)
	require.NoError(t, err)

	taken := "b"
	_, err = svc.Update(ctx, a.ID, UpdateInput{Login: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Re-submitting the current login is not a conflict.
	same := "a"
	_, err = svc.Update(ctx, a.ID, UpdateInput{Login: &same})
	assert.NoError(t, err)
}

func TestUpdatePasswordRehashed(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 4)
	ctx := context.Background()

	u, err := svc.Create(ctx, "a", "old", model.RoleAdmin)
	require.NoError(t, err)

	newPW := "new"
	updated, err := svc.Update(ctx, u.ID, UpdateInput{Password: &newPW})
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(updated.PasswordHash, "new"))
	assert.False(t, auth.CheckPassword(updated.PasswordHash, "old"))
}

func TestDeleteMissing(t *testing.T) {
	svc := NewService(newFakeRepo(), 4)
	assert.ErrorIs(t, svc.Delete(context.Background(), 99), apperr.ErrNotFound)
}

func TestBootstrapOnlyWhenEmpty(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 4)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "root", "rootpw"))
	assert.Len(t, repo.users, 1)

	// Second run is a no-op.
	require.NoError(t, svc.Bootstrap(ctx, "root", "rootpw"))
	assert.Len(t, repo.users, 1)

	u, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, u.Role)
}

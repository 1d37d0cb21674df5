package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormtrack/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	pair, err := Issue(42, model.RoleModerator, "dormtrack", "secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, "secret", "dormtrack")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, model.RoleModerator, claims.Role)
}

func TestParseExpired(t *testing.T) {
	t.Parallel()

	pair, err := Issue(1, model.RoleAdmin, "dormtrack", "secret", -time.Second, 24*time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "dormtrack")
	assert.Error(t, err)
}

func TestParseWrongKey(t *testing.T) {
	t.Parallel()

	pair, err := Issue(1, model.RoleAdmin, "dormtrack", "right", time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "wrong", "dormtrack")
	assert.Error(t, err)
}

func TestParseIssuerMismatch(t *testing.T) {
	t.Parallel()

	pair, err := Issue(1, model.RoleAdmin, "other", "secret", time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "dormtrack")
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse("not.a.jwt", "secret", "dormtrack")
	assert.Error(t, err)
}

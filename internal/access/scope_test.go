package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dormtrack/internal/model"
)

func int64p(v int64) *int64 { return &v }

func TestScopeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal model.Principal
		owned     []int64
		requested int64
		want      Scope
	}{
		{
			name:      "moderator confined to owned set",
			principal: model.Principal{ID: 5, Role: model.RoleModerator},
			owned:     []int64{1, 2},
			want:      Scope{DormitoryIDs: []int64{1, 2}},
		},
		{
			name:      "moderator ignores requested filter",
			principal: model.Principal{ID: 5, Role: model.RoleModerator},
			owned:     []int64{1},
			requested: 9,
			want:      Scope{DormitoryIDs: []int64{1}},
		},
		{
			name:      "moderator with no dormitories sees nothing",
			principal: model.Principal{ID: 5, Role: model.RoleModerator},
			want:      Scope{},
		},
		{
			name:      "admin unrestricted by default",
			principal: model.Principal{ID: 1, Role: model.RoleAdmin},
			want:      Scope{All: true},
		},
		{
			name:      "admin honors explicit dormitory filter",
			principal: model.Principal{ID: 1, Role: model.RoleAdmin},
			requested: 3,
			want:      Scope{DormitoryIDs: []int64{3}},
		},
		{
			name:      "superAdmin unrestricted",
			principal: model.Principal{ID: 1, Role: model.RoleSuperAdmin},
			want:      Scope{All: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ScopeFor(tt.principal, tt.owned, tt.requested))
		})
	}
}

func TestScopeContains(t *testing.T) {
	t.Parallel()

	all := Scope{All: true}
	assert.True(t, all.Contains(int64p(1)))
	assert.True(t, all.Contains(nil))

	narrow := Scope{DormitoryIDs: []int64{1, 2}}
	assert.True(t, narrow.Contains(int64p(2)))
	assert.False(t, narrow.Contains(int64p(3)))
	assert.False(t, narrow.Contains(nil))

	assert.True(t, Scope{}.Empty())
	assert.False(t, all.Empty())
	assert.False(t, narrow.Empty())
}

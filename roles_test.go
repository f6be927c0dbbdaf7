package accounts_test

import (
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestRoleHierarchy(t *testing.T) {
	tests := []struct {
		role     accounts.RoleName
		min      accounts.RoleName
		expected bool
	}{
		{accounts.RoleMember, accounts.RoleMember, true},
		{accounts.RoleMember, accounts.RoleAdmin, false},
		{accounts.RoleAdmin, accounts.RoleSupport, true},
		{accounts.RoleTheCreator, accounts.RoleAdmin, true},
		{accounts.RoleName("ghost"), accounts.RoleMember, false},
		{accounts.RoleAdmin, accounts.RoleName("ghost"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+">="+string(tt.min), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.role.IsAtLeast(tt.min))
		})
	}
}

func TestParseRole(t *testing.T) {
	role, ok := accounts.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleAdmin, role)

	_, ok = accounts.ParseRole("root")
	assert.False(t, ok)

	assert.Len(t, accounts.AllRoles(), 5)
	assert.True(t, accounts.RoleAdmin.CanManageAccounts())
	assert.False(t, accounts.RoleSupport.CanManageAccounts())
}

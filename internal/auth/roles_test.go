package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasMinimumRole(t *testing.T) {
	assert.True(t, HasMinimumRole(RoleAdmin, RoleManager))
	assert.True(t, HasMinimumRole(RoleAdmin, RoleAdmin))
	assert.False(t, HasMinimumRole(RoleViewer, RoleManager))
	assert.False(t, HasMinimumRole(Role("bogus"), RoleUser))
}

func TestCanInviteAndCanManageUsers(t *testing.T) {
	assert.True(t, CanInvite(RoleManager))
	assert.True(t, CanInvite(RoleAdmin))
	assert.False(t, CanInvite(RoleViewer))

	assert.True(t, CanManageUsers(RoleAdmin))
	assert.False(t, CanManageUsers(RoleManager))
}

func TestCanAssignRole(t *testing.T) {
	assert.True(t, CanAssignRole(RoleSuperAdmin, RoleAdmin))
	assert.False(t, CanAssignRole(RoleSuperAdmin, RoleSuperAdmin))
	assert.True(t, CanAssignRole(RoleAdmin, RoleManager))
	assert.False(t, CanAssignRole(RoleAdmin, RoleSuperAdmin))
	assert.False(t, CanAssignRole(RoleManager, RoleViewer))
}

func TestCanModifyUser(t *testing.T) {
	assert.True(t, CanModifyUser(RoleSuperAdmin, RoleAdmin))
	assert.True(t, CanModifyUser(RoleAdmin, RoleManager))
	assert.False(t, CanModifyUser(RoleManager, RoleAdmin))
	assert.False(t, CanModifyUser(RoleManager, RoleManager))
}

func TestValidateRoleAssignment(t *testing.T) {
	// self-demotion blocked
	err := ValidateRoleAssignment(RoleAdmin, RoleAdmin, RoleViewer, true)
	assert.ErrorIs(t, err, ErrCannotDemoteSelf)

	// cannot modify a super admin's role unless acting as one
	err = ValidateRoleAssignment(RoleAdmin, RoleSuperAdmin, RoleManager, false)
	assert.ErrorIs(t, err, ErrCannotModifySuperAdmin)

	// insufficient permission to assign above actor's own ceiling
	err = ValidateRoleAssignment(RoleManager, RoleViewer, RoleAdmin, false)
	assert.ErrorIs(t, err, ErrInsufficientPermissions)

	// valid admin-assigns-manager
	assert.NoError(t, ValidateRoleAssignment(RoleAdmin, RoleViewer, RoleManager, false))
}

func TestRoleHierarchyAndInvitableRoles(t *testing.T) {
	hierarchy := RoleHierarchy()
	assert.Equal(t, RoleSuperAdmin, hierarchy[0])
	assert.Equal(t, RoleUser, hierarchy[len(hierarchy)-1])

	invitable := InvitableRoles()
	assert.NotContains(t, invitable, RoleSuperAdmin)
	assert.Contains(t, invitable, RoleManager)
}

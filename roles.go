package accounts

// RoleName is the RBAC item name assigned to an account
type RoleName string

const (
	// RoleMember is the default role for new signups
	RoleMember RoleName = "member"
	// RolePremium is a paying member
	RolePremium RoleName = "premium"
	// RoleSupport can look after other accounts
	RoleSupport RoleName = "support"
	// RoleAdmin manages accounts
	RoleAdmin RoleName = "admin"
	// RoleTheCreator owns the application
	RoleTheCreator RoleName = "theCreator"
)

var roleHierarchy = map[RoleName]int{
	RoleMember:     0,
	RolePremium:    1,
	RoleSupport:    2,
	RoleAdmin:      3,
	RoleTheCreator: 4,
}

// IsValid checks if the role is one of the predefined valid roles
func (r RoleName) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r RoleName) IsAtLeast(minRole RoleName) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// CanManageAccounts checks if the role may change other accounts
func (r RoleName) CanManageAccounts() bool {
	return r.IsAtLeast(RoleAdmin)
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []RoleName {
	return []RoleName{
		RoleMember,
		RolePremium,
		RoleSupport,
		RoleAdmin,
		RoleTheCreator,
	}
}

// ParseRole safely parses a string into a RoleName
func ParseRole(roleStr string) (RoleName, bool) {
	role := RoleName(roleStr)
	return role, role.IsValid()
}

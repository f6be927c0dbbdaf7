package accounts

// TemplateHelpers returns functions and data for the view engine.
//
// Usage:
//
//	engine := django.NewFileSystem(http.FS(accounts.GetViewsFS()), ".html")
//	engine.AddFuncMap(accounts.TemplateHelpers())
//
// In templates:
//
//	{{ status_name(account.Status) }}
//	{% for opt in status_list %}{{ opt.Label }}{% endfor %}
//	{% if has_role(account.RoleName, "admin") %}
func TemplateHelpers() map[string]any {
	roles := map[string]string{}
	for _, r := range AllRoles() {
		roles[string(r)] = string(r)
	}

	return map[string]any{
		"status_name": templateStatusName,
		"status_list": StatusList(),
		"has_role":    templateHasRole,
		"roles":       roles,
	}
}

func templateStatusName(status any) string {
	switch s := status.(type) {
	case Status:
		return StatusName(s)
	case int:
		return StatusName(Status(s))
	case int64:
		return StatusName(Status(s))
	default:
		return StatusName(StatusActive)
	}
}

// templateHasRole checks the account role is at least minRole
func templateHasRole(role any, minRole string) bool {
	var current RoleName
	switch r := role.(type) {
	case RoleName:
		current = r
	case string:
		current = RoleName(r)
	default:
		return false
	}
	return current.IsAtLeast(RoleName(minRole))
}

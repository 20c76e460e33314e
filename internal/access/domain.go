package access

// Role is the global role attached to a user account.
type Role string

// Global roles in precedence order.
const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleMaster Role = "master"
)

// ParseRole maps a stored role value onto a known Role. Unknown or empty
// values resolve to RoleUser, never to an elevated role.
func ParseRole(value string) Role {
	switch Role(value) {
	case RoleAdmin:
		return RoleAdmin
	case RoleMaster:
		return RoleMaster
	default:
		return RoleUser
	}
}

// Capabilities expresses what a role may do, so callers never compare role
// strings directly.
type Capabilities struct {
	// FullModuleAccess grants every active module and every tab.
	FullModuleAccess bool `json:"full_module_access"`
	// CrossCompanyAdmin gates the SaaS administration surface.
	CrossCompanyAdmin bool `json:"cross_company_admin"`
}

// Capabilities resolves the capability flags for a role.
func (r Role) Capabilities() Capabilities {
	switch r {
	case RoleMaster:
		return Capabilities{FullModuleAccess: true, CrossCompanyAdmin: true}
	case RoleAdmin:
		return Capabilities{FullModuleAccess: true}
	default:
		return Capabilities{}
	}
}

// Principal is the authenticated actor whose access is being evaluated.
// It is created at login and immutable for the session lifetime.
type Principal struct {
	ID        int64 `json:"id"`
	CompanyID int64 `json:"company_id"`
	Role      Role  `json:"role"`
}

// RouteDashboard and RouteSettings are always reachable for authenticated
// users regardless of role or profile, so a broken or empty profile can
// never lock a user out entirely.
const (
	RouteDashboard = "/"
	RouteSettings  = "/configuracoes"
)

// BaselineRoutes is the hard-coded allow-list checked before any profile
// evaluation.
var BaselineRoutes = []string{RouteDashboard, RouteSettings}

// IsBaselineRoute reports whether route belongs to the baseline allow-list.
func IsBaselineRoute(route string) bool {
	for _, r := range BaselineRoutes {
		if r == route {
			return true
		}
	}
	return false
}

// AccessProfile is a named, company-scoped bundle of module permissions.
type AccessProfile struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
	IsAdmin   bool   `json:"is_admin"`
	IsActive  bool   `json:"is_active"`
}

// Module is a top-level application route gated by permission. The catalog
// is global, not company-scoped.
type Module struct {
	ID        int64  `json:"id"`
	RoutePath string `json:"route_path"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	IsCore    bool   `json:"is_core"`
	IsActive  bool   `json:"is_active"`
}

// ModulePermission is a profile's grant on a single module. Absence of a
// row means no access for that profile/module pair.
type ModulePermission struct {
	ModuleID  int64 `json:"module_id"`
	CanView   bool  `json:"can_view"`
	CanEdit   bool  `json:"can_edit"`
	CanDelete bool  `json:"can_delete"`
}

// SubModule is a tab within a module, independently permissioned per user.
type SubModule struct {
	ID        int64  `json:"id"`
	ModuleID  int64  `json:"module_id"`
	TabKey    string `json:"tab_key"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

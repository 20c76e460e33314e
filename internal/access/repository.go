package access

import "context"

// Repository exposes the external read operations the snapshot loader
// consumes. All methods are pure reads.
type Repository interface {
	// FetchRole returns the stored global role for a user. A missing row
	// resolves to RoleUser, not an error.
	FetchRole(ctx context.Context, userID int64) (Role, error)
	// FetchProfile returns the user's assigned profile, or nil when the
	// user references none.
	FetchProfile(ctx context.Context, userID int64) (*AccessProfile, error)
	// FetchProfileModulePermissions returns the grant rows of a profile.
	FetchProfileModulePermissions(ctx context.Context, profileID int64) ([]ModulePermission, error)
	// FetchActiveModules returns the active module catalog in catalog order.
	FetchActiveModules(ctx context.Context) ([]Module, error)
	// FetchActiveSubModules returns the active tabs of every active module.
	FetchActiveSubModules(ctx context.Context) ([]SubModule, error)
	// FetchUserTabPermissions returns the sub-module IDs granted to a user.
	FetchUserTabPermissions(ctx context.Context, userID int64) ([]int64, error)
}

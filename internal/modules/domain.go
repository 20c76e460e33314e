package modules

import (
	"errors"
	"time"
)

// Module is a catalog entry shared by every company.
type Module struct {
	ID        int64     `json:"id"`
	RoutePath string    `json:"route_path"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	IsCore    bool      `json:"is_core"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubModule is a tab inside a module.
type SubModule struct {
	ID        int64  `json:"id"`
	ModuleID  int64  `json:"module_id"`
	TabKey    string `json:"tab_key"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

var (
	// ErrNotFound indicates the module or tab does not exist.
	ErrNotFound = errors.New("modules: not found")
	// ErrCoreImmutable indicates an attempt to deactivate a core module.
	ErrCoreImmutable = errors.New("modules: core modules cannot be deactivated")
	// ErrDuplicateRoute indicates the route path is already taken.
	ErrDuplicateRoute = errors.New("modules: duplicate route path")
)

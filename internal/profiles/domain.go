package profiles

import (
	"errors"
	"time"
)

// Profile is a named, company-scoped bundle of module permissions.
type Profile struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModuleGrant is one profile/module permission row.
type ModuleGrant struct {
	ModuleID  int64 `json:"module_id"`
	CanView   bool  `json:"can_view"`
	CanEdit   bool  `json:"can_edit"`
	CanDelete bool  `json:"can_delete"`
}

// ModuleRef is the slice of the module catalog the grant invariants need.
type ModuleRef struct {
	ID       int64
	IsCore   bool
	IsActive bool
}

var (
	// ErrNotFound indicates the profile does not exist in the company.
	ErrNotFound = errors.New("profiles: not found")
	// ErrDuplicateName indicates the profile name is taken in the company.
	ErrDuplicateName = errors.New("profiles: duplicate name")
	// ErrInUse indicates the profile is still assigned to users.
	ErrInUse = errors.New("profiles: assigned to users")
	// ErrUnknownModule indicates a grant references a module that is not
	// part of the active catalog.
	ErrUnknownModule = errors.New("profiles: unknown module")
)

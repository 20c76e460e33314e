package users

import (
	"errors"
	"time"
)

// User represents a user account as seen by company administrators.
type User struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	ProfileID   *int64    `json:"profile_id"`
	ProfileName *string   `json:"profile_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TabRef identifies a sub-module tab for grant validation.
type TabRef struct {
	ID       int64
	ModuleID int64
	IsActive bool
}

var (
	// ErrNotFound indicates the user does not exist in the company.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("users: duplicate email")
	// ErrUnknownProfile indicates the profile does not belong to the company.
	ErrUnknownProfile = errors.New("users: unknown profile")
	// ErrUnknownTab indicates a grant references a tab outside the catalog.
	ErrUnknownTab = errors.New("users: unknown tab")
)

package companies

import (
	"errors"
	"time"
)

// Subscription statuses for a tenant.
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionSuspended = "suspended"
	SubscriptionCanceled  = "canceled"
)

// Company is a tenant of the platform.
type Company struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	TradeName          string    `json:"trade_name"`
	TaxID              string    `json:"tax_id"`
	SubscriptionStatus string    `json:"subscription_status"`
	UserCount          int64     `json:"user_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the company does not exist.
	ErrNotFound = errors.New("companies: not found")
	// ErrDuplicateTaxID indicates the tax id is already registered.
	ErrDuplicateTaxID = errors.New("companies: duplicate tax id")
	// ErrBadStatus indicates an unknown subscription status.
	ErrBadStatus = errors.New("companies: unknown subscription status")
)

// ValidStatus reports whether the value is a known subscription status.
func ValidStatus(status string) bool {
	switch status {
	case SubscriptionTrial, SubscriptionActive, SubscriptionSuspended, SubscriptionCanceled:
		return true
	}
	return false
}

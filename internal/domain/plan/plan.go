// Package plan defines the pricing plans a tenant sells through chat.
package plan

import (
	"errors"
	"regexp"
	"time"
)

// BillingCycle is how often a plan is billed.
type BillingCycle string

const (
	CycleDaily   BillingCycle = "daily"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// ValidCycles is the set of all valid billing cycles.
var ValidCycles = map[BillingCycle]bool{
	CycleDaily:   true,
	CycleMonthly: true,
	CycleYearly:  true,
}

var slugRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Plan represents one sellable offering. Slug is unique per tenant.
type Plan struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Price        float64      `json:"price"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Features     []string     `json:"features,omitempty"`
	Description  string       `json:"description,omitempty"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CreateRequest holds the fields required to create a plan.
type CreateRequest struct {
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Price        float64      `json:"price"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Features     []string     `json:"features,omitempty"`
	Description  string       `json:"description,omitempty"`
}

// Validate checks the CreateRequest.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Slug == "" || !slugRe.MatchString(r.Slug) {
		return errors.New("slug must be lowercase letters, digits and hyphens")
	}
	if r.Price < 0 {
		return errors.New("price must be non-negative")
	}
	if !ValidCycles[r.BillingCycle] {
		return errors.New("billing_cycle must be daily, monthly or yearly")
	}
	return nil
}

// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import (
	"errors"
	"regexp"
	"time"
)

// Status is the lifecycle state of a tenant account.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// ValidStatuses is the set of all valid tenant statuses.
var ValidStatuses = map[Status]bool{
	StatusActive:    true,
	StatusTrial:     true,
	StatusSuspended: true,
	StatusCancelled: true,
}

// CanAuthenticate reports whether a tenant in this status may resolve
// requests. Suspended and cancelled tenants never authenticate.
func (s Status) CanAuthenticate() bool {
	return s == StatusActive || s == StatusTrial
}

var slugRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateSlug checks the tenant slug format. Slugs are immutable after
// creation and are part of the credential surface, so the format is strict.
func ValidateSlug(slug string) error {
	if slug == "" {
		return errors.New("slug is required")
	}
	if len(slug) > 63 {
		return errors.New("slug must be at most 63 characters")
	}
	if !slugRe.MatchString(slug) {
		return errors.New("slug may contain only lowercase letters, digits and hyphens")
	}
	return nil
}

// Tenant represents an isolated tenant in the system. APIKeyHash is never
// serialized; APIKeyPrefix is a display-only fragment of the raw key.
type Tenant struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	Name         string     `json:"name"`
	Config       Config     `json:"config"`
	APIKeyHash   string     `json:"-"`
	APIKeyPrefix string     `json:"api_key_prefix,omitempty"`
	Status       Status     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Config is the per-tenant behavioral configuration blob. Unknown keys in
// the stored JSON are ignored on decode.
type Config struct {
	BusinessType string       `json:"business_type,omitempty"`
	Currency     string       `json:"currency,omitempty"`
	Features     Features     `json:"features"`
	FunnelConfig FunnelConfig `json:"funnel_config"`
	LLM          LLMConfig    `json:"llm"`
}

// Features toggles optional tenant capabilities.
type Features struct {
	EnableHandoff   bool `json:"enable_handoff"`
	EnableAnalytics bool `json:"enable_analytics"`
}

// FunnelConfig carries display labels for funnel stages. It does not
// change stage semantics or ordering.
type FunnelConfig struct {
	Stages []StageLabel `json:"stages,omitempty"`
}

// StageLabel maps a canonical stage key to a tenant-facing display name.
type StageLabel struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// LLMConfig selects the model used for this tenant's conversations.
type LLMConfig struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// DefaultConfig returns the configuration applied to tenants created
// without an explicit config.
func DefaultConfig() Config {
	return Config{
		Currency: "USD",
		Features: Features{EnableHandoff: true, EnableAnalytics: true},
		LLM:      LLMConfig{Temperature: 0.7},
	}
}

// Context is the resolved tenant identity placed in the request context by
// the resolution middleware. It is a read-only snapshot for the request.
type Context struct {
	ID     string
	Slug   string
	Status Status
	Config Config
}

// CreateRequest holds the fields required to onboard a new tenant.
type CreateRequest struct {
	Slug   string  `json:"slug"`
	Name   string  `json:"name"`
	Status Status  `json:"status,omitempty"`
	Config *Config `json:"config,omitempty"`
}

// Validate checks the CreateRequest.
func (r *CreateRequest) Validate() error {
	if err := ValidateSlug(r.Slug); err != nil {
		return err
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Status != "" && !ValidStatuses[r.Status] {
		return errors.New("invalid status")
	}
	return nil
}

// UpdateRequest holds the fields that can be updated on a tenant. The slug
// is immutable and absent here.
type UpdateRequest struct {
	Name      string     `json:"name,omitempty"`
	Status    Status     `json:"status,omitempty"`
	Config    *Config    `json:"config,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validate checks the UpdateRequest.
func (r *UpdateRequest) Validate() error {
	if r.Status != "" && !ValidStatuses[r.Status] {
		return errors.New("invalid status")
	}
	return nil
}

// CreateResponse is returned once, at creation or rotation. The raw API
// key is not recoverable afterwards.
type CreateResponse struct {
	Tenant Tenant `json:"tenant"`
	APIKey string `json:"api_key"`
}

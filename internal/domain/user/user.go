// Package user defines the end-user domain model. Users are the chat
// participants of a tenant's storefront, not operators of the platform.
package user

import (
	"errors"
	"strings"
	"time"
)

// WorkType categorizes what kind of buyer the user is.
type WorkType string

const (
	WorkFreelancer WorkType = "freelancer"
	WorkStartup    WorkType = "startup"
	WorkCompany    WorkType = "company"
	WorkOther      WorkType = "other"
)

// ValidWorkTypes is the set of all valid work types.
var ValidWorkTypes = map[WorkType]bool{
	WorkFreelancer: true,
	WorkStartup:    true,
	WorkCompany:    true,
	WorkOther:      true,
}

// User represents a chat participant within a tenant. UserKey is the
// caller-supplied external identifier, unique per tenant.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserKey   string    `json:"user_key"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	WorkType  WorkType  `json:"work_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// adminKeywords grant elevated access when found in a user's name. This is
// a legacy convention carried over from the original deployment; replacing
// it with real role data requires a data migration across all tenants.
var adminKeywords = []string{"admin", "administrador"}

// IsAdmin reports whether the user is recognized as a tenant administrator.
// The check is case-insensitive containment over the display name.
func (u *User) IsAdmin() bool {
	name := strings.ToLower(u.Name)
	for _, kw := range adminKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// UpsertRequest is the identification block of a chat request. UserKey is
// required; the profile fields update the stored user when supplied.
type UpsertRequest struct {
	UserKey  string   `json:"user_key"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Company  string   `json:"company,omitempty"`
	WorkType WorkType `json:"work_type,omitempty"`
}

// Validate checks the UpsertRequest.
func (r *UpsertRequest) Validate() error {
	if strings.TrimSpace(r.UserKey) == "" {
		return errors.New("user_key is required")
	}
	if r.WorkType != "" && !ValidWorkTypes[r.WorkType] {
		return errors.New("invalid work_type")
	}
	return nil
}

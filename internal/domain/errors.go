// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist within the
// caller's tenant. Absent and foreign-tenant entities are indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness violation (duplicate slug, user key,
// or prompt version).
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates a malformed or incomplete request.
var ErrValidation = errors.New("validation failed")

// ErrIsolation indicates a cross-tenant reference was detected. This is
// fatal to the request and logged at error level; it never reaches a
// client in detail.
var ErrIsolation = errors.New("tenant isolation violation")

// ErrMissingTenantHeader indicates the tenant identifier header was absent
// while multi-tenant mode is enabled.
var ErrMissingTenantHeader = errors.New("missing tenant header")

// ErrMissingAPIKey indicates no API key accompanied the request.
var ErrMissingAPIKey = errors.New("missing api key")

// ErrTenantNotFound indicates the presented tenant slug does not resolve
// to a usable tenant. Suspended and unknown tenants are reported
// identically at the HTTP boundary.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrTenantSuspended indicates the tenant exists but its status forbids
// authentication. Mapped to the same response as ErrTenantNotFound.
var ErrTenantSuspended = errors.New("tenant suspended")

// ErrInvalidCredentials indicates the API key did not match the tenant's
// stored hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrForbidden indicates the caller is authenticated but not authorized
// for the operation (non-admin requesting analytics).
var ErrForbidden = errors.New("forbidden")

// ErrProvider indicates the LLM provider failed after retries, or the
// circuit breaker rejected the call. The caller's conversation state is
// unchanged when this is returned.
var ErrProvider = errors.New("llm provider unavailable")

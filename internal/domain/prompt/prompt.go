// Package prompt defines versioned per-tenant prompt templates and
// knowledge documents.
package prompt

import (
	"errors"
	"time"
)

// Type selects which agent role a template configures.
type Type string

const (
	TypeSalesAgent   Type = "sales_agent"
	TypeAdminAgent   Type = "admin_agent"
	TypeAnalystAgent Type = "analyst_agent"
)

// ValidTypes is the set of all valid prompt types.
var ValidTypes = map[Type]bool{
	TypeSalesAgent:   true,
	TypeAdminAgent:   true,
	TypeAnalystAgent: true,
}

// Template is one version of a tenant's prompt for a given type. At most
// one version per (tenant, type) is active; (tenant, type, version) is
// unique.
type Template struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	PromptType    Type      `json:"prompt_type"`
	Version       int       `json:"version"`
	IsActive      bool      `json:"is_active"`
	SystemPrompt  string    `json:"system_prompt"`
	KnowledgeBase string    `json:"knowledge_base,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentType categorizes a knowledge document.
type DocumentType string

const (
	DocProduct    DocumentType = "product"
	DocFAQ        DocumentType = "faq"
	DocObjections DocumentType = "objections"
	DocScripts    DocumentType = "scripts"
)

// ValidDocumentTypes is the set of all valid document types.
var ValidDocumentTypes = map[DocumentType]bool{
	DocProduct:    true,
	DocFAQ:        true,
	DocObjections: true,
	DocScripts:    true,
}

// Document is a tenant knowledge-base entry injected into agent context.
// Slug is unique per tenant.
type Document struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Title        string       `json:"title"`
	Slug         string       `json:"slug"`
	Content      string       `json:"content"`
	DocumentType DocumentType `json:"document_type"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CreateTemplateRequest publishes a new prompt version. The new version
// becomes active and deactivates the prior active version of the same type.
type CreateTemplateRequest struct {
	PromptType    Type   `json:"prompt_type"`
	SystemPrompt  string `json:"system_prompt"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`
	CreatedBy     string `json:"created_by,omitempty"`
}

// Validate checks the CreateTemplateRequest.
func (r *CreateTemplateRequest) Validate() error {
	if !ValidTypes[r.PromptType] {
		return errors.New("prompt_type must be sales_agent, admin_agent or analyst_agent")
	}
	if r.SystemPrompt == "" {
		return errors.New("system_prompt is required")
	}
	return nil
}

// CreateDocumentRequest adds a knowledge document.
type CreateDocumentRequest struct {
	Title        string       `json:"title"`
	Slug         string       `json:"slug"`
	Content      string       `json:"content"`
	DocumentType DocumentType `json:"document_type"`
}

// Validate checks the CreateDocumentRequest.
func (r *CreateDocumentRequest) Validate() error {
	if r.Title == "" || r.Slug == "" || r.Content == "" {
		return errors.New("title, slug and content are required")
	}
	if !ValidDocumentTypes[r.DocumentType] {
		return errors.New("document_type must be product, faq, objections or scripts")
	}
	return nil
}

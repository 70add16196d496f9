// Package database defines the database store port (interface). Every
// method that touches tenant-partitioned data reads the tenant ID from the
// request context; request payloads never select the tenant.
package database

import (
	"context"
	"time"

	"github.com/Strob0t/SalesForge/internal/domain/analytics"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
	"github.com/Strob0t/SalesForge/internal/domain/plan"
	"github.com/Strob0t/SalesForge/internal/domain/prompt"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/domain/user"
)

// Store is the port interface for database operations.
type Store interface {
	// Tenants (platform-level directory; not tenant-scoped).
	CreateTenant(ctx context.Context, t *tenant.Tenant) error
	GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error
	UpdateTenantKey(ctx context.Context, slug, keyHash, keyPrefix string) error

	// Users (tenant-scoped).
	GetUserByKey(ctx context.Context, userKey string) (*user.User, error)
	UpsertUser(ctx context.Context, req user.UpsertRequest) (*user.User, error)

	// Conversations and messages (tenant-scoped).
	CreateConversation(ctx context.Context, userID string) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	UpdateConversation(ctx context.Context, c *conversation.Conversation) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error)
	// AppendMessages writes messages atomically, serialized per
	// conversation by a row lock so created_at is strictly monotonic.
	AppendMessages(ctx context.Context, conversationID string, msgs []conversation.Message) ([]conversation.Message, error)

	// Leads (tenant-scoped, upsert keyed by conversation).
	GetLeadByConversation(ctx context.Context, conversationID string) (*lead.Lead, error)
	UpsertLead(ctx context.Context, l *lead.Lead) (*lead.Lead, error)

	// Plans (tenant-scoped).
	ListPlans(ctx context.Context, activeOnly bool) ([]plan.Plan, error)
	GetPlan(ctx context.Context, id string) (*plan.Plan, error)
	CreatePlan(ctx context.Context, req plan.CreateRequest) (*plan.Plan, error)

	// Prompt templates and knowledge documents (tenant-scoped).
	CreatePromptTemplate(ctx context.Context, req prompt.CreateTemplateRequest) (*prompt.Template, error)
	GetActivePrompt(ctx context.Context, pt prompt.Type) (*prompt.Template, error)
	ListPromptTemplates(ctx context.Context, pt prompt.Type) ([]prompt.Template, error)
	CreateKnowledgeDocument(ctx context.Context, req prompt.CreateDocumentRequest) (*prompt.Document, error)
	ListKnowledgeDocuments(ctx context.Context, activeOnly bool) ([]prompt.Document, error)

	// Analytics (tenant-scoped read models).
	CountConversationsByStage(ctx context.Context, start, end time.Time) (map[string]int, error)
	PlanPerformance(ctx context.Context) ([]analytics.PlanPerformance, error)
	ObjectionCounts(ctx context.Context, limit int) ([]analytics.ObjectionCount, error)
	ListConversationsByStage(ctx context.Context, stage conversation.Stage, limit int) ([]conversation.Conversation, error)
	RecentLeads(ctx context.Context, limit int) ([]analytics.RecentLead, error)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/analytics"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
	"github.com/Strob0t/SalesForge/internal/domain/plan"
	"github.com/Strob0t/SalesForge/internal/domain/prompt"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/domain/user"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/database"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is a minimal in-memory implementation of database.Store for
// testing. Tenant scoping mirrors the real store: queries match only rows
// whose tenant ID equals the one in the context.
type mockStore struct {
	mu            sync.Mutex
	seq           int
	tenants       []tenant.Tenant
	users         []user.User
	conversations []conversation.Conversation
	messages      []conversation.Message
	leads         []lead.Lead
	plans         []plan.Plan
	templates     []prompt.Template
	documents     []prompt.Document

	// Call counters for cache behavior assertions.
	getTenantCalls       int
	getActivePromptCalls int
	listDocumentsCalls   int

	// Error hooks.
	upsertLeadErr  error
	updateConvErr  error
	appendErr      error
	getActiveErr   error
	createConvErr  error
}

func (m *mockStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

func (m *mockStore) CreateTenant(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.tenants {
		if other.Slug == t.Slug {
			return domain.ErrConflict
		}
	}
	t.ID = m.nextID()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tenants = append(m.tenants, *t)
	return nil
}

func (m *mockStore) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getTenantCalls++
	for i := range m.tenants {
		if m.tenants[i].Slug == slug {
			t := m.tenants[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tenant.Tenant(nil), m.tenants...), nil
}

func (m *mockStore) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tenants {
		if m.tenants[i].Slug == t.Slug {
			m.tenants[i] = *t
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) UpdateTenantKey(_ context.Context, slug, keyHash, keyPrefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tenants {
		if m.tenants[i].Slug == slug {
			m.tenants[i].APIKeyHash = keyHash
			m.tenants[i].APIKeyPrefix = keyPrefix
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) GetUserByKey(ctx context.Context, userKey string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.users {
		if m.users[i].TenantID == tid && m.users[i].UserKey == userKey {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) UpsertUser(ctx context.Context, req user.UpsertRequest) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.users {
		if m.users[i].TenantID == tid && m.users[i].UserKey == req.UserKey {
			if req.Name != "" {
				m.users[i].Name = req.Name
			}
			u := m.users[i]
			return &u, nil
		}
	}
	u := user.User{
		ID:       m.nextID(),
		TenantID: tid,
		UserKey:  req.UserKey,
		Name:     req.Name,
		Email:    req.Email,
		WorkType: req.WorkType,
	}
	m.users = append(m.users, u)
	return &u, nil
}

func (m *mockStore) CreateConversation(ctx context.Context, userID string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createConvErr != nil {
		return nil, m.createConvErr
	}
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.users {
		if m.users[i].ID == userID && m.users[i].TenantID != tid {
			return nil, domain.ErrIsolation
		}
	}
	c := conversation.Conversation{
		ID:       m.nextID(),
		TenantID: tid,
		UserID:   userID,
		Status:   conversation.StatusActive,
		Stage:    conversation.StageAwareness,
	}
	m.conversations = append(m.conversations, c)
	return &c, nil
}

func (m *mockStore) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.conversations {
		if m.conversations[i].ID == id && m.conversations[i].TenantID == tid {
			c := m.conversations[i]
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) UpdateConversation(ctx context.Context, c *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateConvErr != nil {
		return m.updateConvErr
	}
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.conversations {
		if m.conversations[i].ID == c.ID && m.conversations[i].TenantID == tid {
			m.conversations[i] = *c
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	var out []conversation.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.TenantID == tid {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockStore) AppendMessages(ctx context.Context, conversationID string, msgs []conversation.Message) ([]conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	tid := middleware.TenantIDFromContext(ctx)
	found := false
	for i := range m.conversations {
		if m.conversations[i].ID == conversationID && m.conversations[i].TenantID == tid {
			found = true
		}
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	out := make([]conversation.Message, 0, len(msgs))
	for _, msg := range msgs {
		msg.ID = m.nextID()
		msg.TenantID = tid
		msg.ConversationID = conversationID
		msg.CreatedAt = time.Now()
		m.messages = append(m.messages, msg)
		out = append(out, msg)
	}
	return out, nil
}

func (m *mockStore) GetLeadByConversation(ctx context.Context, conversationID string) (*lead.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.leads {
		if m.leads[i].ConversationID == conversationID && m.leads[i].TenantID == tid {
			l := m.leads[i]
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) UpsertLead(ctx context.Context, l *lead.Lead) (*lead.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertLeadErr != nil {
		return nil, m.upsertLeadErr
	}
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.leads {
		if m.leads[i].ConversationID == l.ConversationID && m.leads[i].TenantID == tid {
			if l.Score > m.leads[i].Score {
				m.leads[i].Score = l.Score
			}
			m.leads[i].Stage = l.Stage
			out := m.leads[i]
			return &out, nil
		}
	}
	nl := *l
	nl.ID = m.nextID()
	nl.TenantID = tid
	m.leads = append(m.leads, nl)
	return &nl, nil
}

func (m *mockStore) ListPlans(ctx context.Context, activeOnly bool) ([]plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	var out []plan.Plan
	for _, p := range m.plans {
		if p.TenantID != tid {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.plans {
		if m.plans[i].ID == id && m.plans[i].TenantID == tid {
			p := m.plans[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreatePlan(ctx context.Context, req plan.CreateRequest) (*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	p := plan.Plan{
		ID:           m.nextID(),
		TenantID:     tid,
		Name:         req.Name,
		Slug:         req.Slug,
		Price:        req.Price,
		BillingCycle: req.BillingCycle,
		Description:  req.Description,
		IsActive:     true,
	}
	m.plans = append(m.plans, p)
	return &p, nil
}

func (m *mockStore) CreatePromptTemplate(ctx context.Context, req prompt.CreateTemplateRequest) (*prompt.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	version := 1
	for i := range m.templates {
		if m.templates[i].TenantID == tid && m.templates[i].PromptType == req.PromptType {
			m.templates[i].IsActive = false
			if m.templates[i].Version >= version {
				version = m.templates[i].Version + 1
			}
		}
	}
	t := prompt.Template{
		ID:           m.nextID(),
		TenantID:     tid,
		PromptType:   req.PromptType,
		Version:      version,
		IsActive:     true,
		SystemPrompt: req.SystemPrompt,
	}
	m.templates = append(m.templates, t)
	return &t, nil
}

func (m *mockStore) GetActivePrompt(ctx context.Context, pt prompt.Type) (*prompt.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getActivePromptCalls++
	if m.getActiveErr != nil {
		return nil, m.getActiveErr
	}
	tid := middleware.TenantIDFromContext(ctx)
	for i := range m.templates {
		if m.templates[i].TenantID == tid && m.templates[i].PromptType == pt && m.templates[i].IsActive {
			t := m.templates[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListPromptTemplates(ctx context.Context, pt prompt.Type) ([]prompt.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	var out []prompt.Template
	for _, t := range m.templates {
		if t.TenantID == tid && (pt == "" || t.PromptType == pt) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) CreateKnowledgeDocument(ctx context.Context, req prompt.CreateDocumentRequest) (*prompt.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	d := prompt.Document{
		ID:           m.nextID(),
		TenantID:     tid,
		Title:        req.Title,
		Slug:         req.Slug,
		Content:      req.Content,
		DocumentType: req.DocumentType,
		IsActive:     true,
	}
	m.documents = append(m.documents, d)
	return &d, nil
}

func (m *mockStore) ListKnowledgeDocuments(ctx context.Context, activeOnly bool) ([]prompt.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listDocumentsCalls++
	tid := middleware.TenantIDFromContext(ctx)
	var out []prompt.Document
	for _, d := range m.documents {
		if d.TenantID != tid {
			continue
		}
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockStore) CountConversationsByStage(ctx context.Context, start, end time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	counts := make(map[string]int)
	for _, c := range m.conversations {
		if c.TenantID == tid {
			counts[string(c.Stage)]++
		}
	}
	return counts, nil
}

func (m *mockStore) PlanPerformance(ctx context.Context) ([]analytics.PlanPerformance, error) {
	return nil, nil
}

func (m *mockStore) ObjectionCounts(ctx context.Context, limit int) ([]analytics.ObjectionCount, error) {
	return nil, nil
}

func (m *mockStore) ListConversationsByStage(ctx context.Context, stage conversation.Stage, limit int) ([]conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	var out []conversation.Conversation
	for _, c := range m.conversations {
		if c.TenantID == tid && (stage == "" || c.Stage == stage) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) RecentLeads(ctx context.Context, limit int) ([]analytics.RecentLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	var out []analytics.RecentLead
	for _, l := range m.leads {
		if l.TenantID == tid {
			out = append(out, analytics.RecentLead{
				LeadID:         l.ID,
				ConversationID: l.ConversationID,
				UserID:         l.UserID,
				Stage:          l.Stage,
				Score:          l.Score,
			})
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

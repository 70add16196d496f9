package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
	"github.com/Strob0t/SalesForge/internal/domain/plan"
	"github.com/Strob0t/SalesForge/internal/domain/prompt"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/service"
)

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers aggregates the services the HTTP layer exposes.
type Handlers struct {
	Tenants       *service.TenantService
	Chat          *service.ChatService
	Conversations *service.ConversationService
	Plans         *service.PlanService
	Prompts       *service.PromptService
	Analytics     *service.AnalyticsService
	DB            Pinger
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "down"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Chat and conversations (tenant-scoped)
// ---------------------------------------------------------------------------

// HandleChat handles POST /api/v1/chat.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.ChatRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Chat.HandleMessage(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetConversation handles GET /api/v1/conversations/{id}.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	c, err := h.Conversations.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListConversationMessages handles GET /api/v1/conversations/{id}/messages.
func (h *Handlers) ListConversationMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	msgs, err := h.Conversations.History(r.Context(), urlParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// AdvanceStage handles POST /api/v1/conversations/{id}/advance.
func (h *Handlers) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Stage conversation.Stage `json:"stage"`
	}](w, r)
	if !ok {
		return
	}
	c, err := h.Conversations.AdvanceStage(r.Context(), urlParam(r, "id"), req.Stage)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RequestHandoff handles POST /api/v1/conversations/{id}/handoff.
func (h *Handlers) RequestHandoff(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.HandoffRequest](w, r)
	if !ok {
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	c, err := h.Conversations.RequestHandoff(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ResolveHandoff handles POST /api/v1/conversations/{id}/resolve.
func (h *Handlers) ResolveHandoff(w http.ResponseWriter, r *http.Request) {
	c, err := h.Conversations.Resolve(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CloseConversation handles POST /api/v1/conversations/{id}/close. The
// outcome query parameter selects won or lost (default lost).
func (h *Handlers) CloseConversation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	var (
		c   *conversation.Conversation
		err error
	)
	if r.URL.Query().Get("outcome") == "won" {
		c, err = h.Conversations.CloseWon(r.Context(), id)
	} else {
		c, err = h.Conversations.CloseLost(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpsertLead handles POST /api/v1/conversations/{id}/lead.
func (h *Handlers) UpsertLead(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[lead.UpsertRequest](w, r)
	if !ok {
		return
	}
	l, err := h.Conversations.UpsertLead(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ---------------------------------------------------------------------------
// Plans (tenant-scoped)
// ---------------------------------------------------------------------------

// ListPlans handles GET /api/v1/plans.
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	plans, err := h.Plans.List(r.Context(), includeInactive)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if plans == nil {
		plans = []plan.Plan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// GetPlan handles GET /api/v1/plans/{id}.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePlan handles POST /api/v1/plans.
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[plan.CreateRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Plans.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "plan creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ---------------------------------------------------------------------------
// Analytics (tenant-scoped, admin-gated via user_key)
// ---------------------------------------------------------------------------

// AnalyticsFunnel handles GET /api/v1/analytics/funnel.
func (h *Handlers) AnalyticsFunnel(w http.ResponseWriter, r *http.Request) {
	start, ok := queryTime(w, r, "start")
	if !ok {
		return
	}
	end, ok := queryTime(w, r, "end")
	if !ok {
		return
	}
	rep, err := h.Analytics.Funnel(r.Context(), r.URL.Query().Get("user_key"), start, end)
	if err != nil {
		writeDomainError(w, err, "funnel report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AnalyticsPlans handles GET /api/v1/analytics/plans-performance.
func (h *Handlers) AnalyticsPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Analytics.Plans(r.Context(), r.URL.Query().Get("user_key"))
	if err != nil {
		writeDomainError(w, err, "plan report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// AnalyticsObjections handles GET /api/v1/analytics/objections.
func (h *Handlers) AnalyticsObjections(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Analytics.Objections(r.Context(), r.URL.Query().Get("user_key"), queryInt(r, "limit", 10))
	if err != nil {
		writeDomainError(w, err, "objection report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// AnalyticsConversations handles GET /api/v1/analytics/conversations.
func (h *Handlers) AnalyticsConversations(w http.ResponseWriter, r *http.Request) {
	stage := conversation.Stage(r.URL.Query().Get("stage"))
	rows, err := h.Analytics.Conversations(r.Context(), r.URL.Query().Get("user_key"), stage, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err, "conversation report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// AnalyticsLeads handles GET /api/v1/analytics/leads.
func (h *Handlers) AnalyticsLeads(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Analytics.RecentLeads(r.Context(), r.URL.Query().Get("user_key"), queryInt(r, "limit", 10))
	if err != nil {
		writeDomainError(w, err, "lead report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ---------------------------------------------------------------------------
// Tenant administration (platform-level, outside tenant resolution)
// ---------------------------------------------------------------------------

// CreateTenant handles POST /admin/tenants. The raw API key appears in
// this response only.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.CreateRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Tenants.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "tenant creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListTenants handles GET /admin/tenants.
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Tenants.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if tenants == nil {
		tenants = []tenant.Tenant{}
	}
	writeJSON(w, http.StatusOK, tenants)
}

// GetTenant handles GET /admin/tenants/{slug}.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tenants.Get(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTenant handles PUT /admin/tenants/{slug}.
func (h *Handlers) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.UpdateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tenants.Update(r.Context(), urlParam(r, "slug"), req)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// RotateTenantKey handles POST /admin/tenants/{slug}/rotate-key.
func (h *Handlers) RotateTenantKey(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Tenants.RotateKey(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeactivateTenant handles DELETE /admin/tenants/{slug}. Tenants are
// cancelled, never hard-deleted.
func (h *Handlers) DeactivateTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.Tenants.Deactivate(r.Context(), urlParam(r, "slug")); err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Prompt and knowledge management (platform-level, tenant selected by slug)
// ---------------------------------------------------------------------------

// withTenantBySlug resolves the {slug} path parameter into a tenant
// context so the store's tenant scoping applies to admin operations too.
func (h *Handlers) withTenantBySlug(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	tc, err := h.Tenants.BySlug(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return nil, false
	}
	return middleware.WithTenant(r.Context(), *tc), true
}

// CreatePromptTemplate handles POST /admin/tenants/{slug}/prompts.
func (h *Handlers) CreatePromptTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.withTenantBySlug(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[prompt.CreateTemplateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Prompts.Publish(ctx, req)
	if err != nil {
		writeDomainError(w, err, "prompt creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListPromptTemplates handles GET /admin/tenants/{slug}/prompts.
func (h *Handlers) ListPromptTemplates(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.withTenantBySlug(w, r)
	if !ok {
		return
	}
	pt := prompt.Type(r.URL.Query().Get("type"))
	if pt != "" && !prompt.ValidTypes[pt] {
		writeError(w, http.StatusBadRequest, "invalid prompt type")
		return
	}
	templates, err := h.Prompts.ListVersions(ctx, pt)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if templates == nil {
		templates = []prompt.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// CreateKnowledgeDocument handles POST /admin/tenants/{slug}/knowledge.
func (h *Handlers) CreateKnowledgeDocument(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.withTenantBySlug(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[prompt.CreateDocumentRequest](w, r)
	if !ok {
		return
	}
	d, err := h.Prompts.CreateDocument(ctx, req)
	if err != nil {
		writeDomainError(w, err, "document creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListKnowledgeDocuments handles GET /admin/tenants/{slug}/knowledge.
func (h *Handlers) ListKnowledgeDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.withTenantBySlug(w, r)
	if !ok {
		return
	}
	docs, err := h.Prompts.ListDocuments(ctx, r.URL.Query().Get("include_inactive") != "true")
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if docs == nil {
		docs = []prompt.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// ---------------------------------------------------------------------------
// Query parsing
// ---------------------------------------------------------------------------

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// queryTime parses an optional RFC 3339 query parameter. Absent values
// return the zero time.
func queryTime(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be RFC 3339")
		return time.Time{}, false
	}
	return t, true
}

package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/middleware"
)

// MountRoutes attaches all endpoints to the router. Everything under
// /api/v1 requires tenant resolution; /health and /admin are
// platform-level (admin routes are expected to sit behind
// deployment-level protection).
func MountRoutes(r chi.Router, h *Handlers, resolver middleware.TenantResolver, cfg config.Tenancy, log *slog.Logger) {
	r.Get("/health", h.Health)

	r.Route("/admin/tenants", func(r chi.Router) {
		r.Post("/", h.CreateTenant)
		r.Get("/", h.ListTenants)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", h.GetTenant)
			r.Put("/", h.UpdateTenant)
			r.Delete("/", h.DeactivateTenant)
			r.Post("/rotate-key", h.RotateTenantKey)
			r.Get("/prompts", h.ListPromptTemplates)
			r.Post("/prompts", h.CreatePromptTemplate)
			r.Get("/knowledge", h.ListKnowledgeDocuments)
			r.Post("/knowledge", h.CreateKnowledgeDocument)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ResolveTenant(resolver, cfg, log))

		r.Post("/chat", h.HandleChat)

		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", h.GetConversation)
			r.Get("/messages", h.ListConversationMessages)
			r.Post("/advance", h.AdvanceStage)
			r.Post("/handoff", h.RequestHandoff)
			r.Post("/resolve", h.ResolveHandoff)
			r.Post("/close", h.CloseConversation)
			r.Post("/lead", h.UpsertLead)
		})

		r.Get("/plans", h.ListPlans)
		r.Post("/plans", h.CreatePlan)
		r.Get("/plans/{id}", h.GetPlan)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/funnel", h.AnalyticsFunnel)
			r.Get("/plans-performance", h.AnalyticsPlans)
			r.Get("/objections", h.AnalyticsObjections)
			r.Get("/conversations", h.AnalyticsConversations)
			r.Get("/leads", h.AnalyticsLeads)
		})
	})
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/SalesForge/internal/domain/prompt"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/cache"
	"github.com/Strob0t/SalesForge/internal/port/database"
)

// PromptService serves the active prompt template and knowledge context
// for each tenant, caching both since they sit on the hot path of every
// chat turn.
type PromptService struct {
	store        database.Store
	cache        cache.Cache
	promptTTL    time.Duration
	knowledgeTTL time.Duration
	group        singleflight.Group
	log          *slog.Logger
}

// NewPromptService creates a PromptService. cache may be nil to disable
// caching.
func NewPromptService(store database.Store, c cache.Cache, promptTTL, knowledgeTTL time.Duration, log *slog.Logger) *PromptService {
	if log == nil {
		log = slog.Default()
	}
	return &PromptService{
		store:        store,
		cache:        c,
		promptTTL:    promptTTL,
		knowledgeTTL: knowledgeTTL,
		log:          log,
	}
}

// ActivePrompt returns the tenant's active template for the given type.
// Concurrent misses for the same key collapse into one store query.
func (s *PromptService) ActivePrompt(ctx context.Context, pt prompt.Type) (*prompt.Template, error) {
	key := fmt.Sprintf("prompt:%s:%s", middleware.TenantIDFromContext(ctx), pt)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var t prompt.Template
			if err := json.Unmarshal(data, &t); err == nil {
				return &t, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		t, err := s.store.GetActivePrompt(ctx, pt)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if data, err := json.Marshal(t); err == nil {
				_ = s.cache.Set(ctx, key, data, s.promptTTL)
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*prompt.Template), nil
}

// KnowledgeContext returns the tenant's active knowledge documents joined
// into one context block, cached with a longer TTL than prompts since
// documents change rarely.
func (s *PromptService) KnowledgeContext(ctx context.Context) (string, error) {
	key := "knowledge:" + middleware.TenantIDFromContext(ctx)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return string(data), nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		docs, err := s.store.ListKnowledgeDocuments(ctx, true)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, d := range docs {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "## %s (%s)\n%s", d.Title, d.DocumentType, d.Content)
		}
		out := b.String()
		if s.cache != nil {
			_ = s.cache.Set(ctx, key, []byte(out), s.knowledgeTTL)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Publish creates a new prompt version, activates it, and invalidates the
// cached prompt for its type.
func (s *PromptService) Publish(ctx context.Context, req prompt.CreateTemplateRequest) (*prompt.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.store.CreatePromptTemplate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, fmt.Sprintf("prompt:%s:%s", middleware.TenantIDFromContext(ctx), req.PromptType))
	s.log.Info("prompt published", "type", t.PromptType, "version", t.Version)
	return t, nil
}

// ListVersions returns the tenant's template versions, optionally
// filtered by type (empty matches all).
func (s *PromptService) ListVersions(ctx context.Context, pt prompt.Type) ([]prompt.Template, error) {
	return s.store.ListPromptTemplates(ctx, pt)
}

// CreateDocument adds a knowledge document and invalidates the knowledge
// context cache.
func (s *PromptService) CreateDocument(ctx context.Context, req prompt.CreateDocumentRequest) (*prompt.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	d, err := s.store.CreateKnowledgeDocument(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "knowledge:"+middleware.TenantIDFromContext(ctx))
	return d, nil
}

// ListDocuments returns the tenant's knowledge documents.
func (s *PromptService) ListDocuments(ctx context.Context, activeOnly bool) ([]prompt.Document, error) {
	return s.store.ListKnowledgeDocuments(ctx, activeOnly)
}

func (s *PromptService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

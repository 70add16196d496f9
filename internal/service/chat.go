package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/SalesForge/internal/adapter/otel"
	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
	"github.com/Strob0t/SalesForge/internal/domain/prompt"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/domain/user"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/database"
	"github.com/Strob0t/SalesForge/internal/port/llm"
)

// handoffHoldReply is returned while a conversation waits for a human
// operator. The agent stays silent until an operator resolves the handoff.
const handoffHoldReply = "A member of our team will follow up with you shortly. Thanks for your patience!"

// defaultSystemPrompt is used when a tenant has not published a sales
// prompt yet.
const defaultSystemPrompt = "You are a helpful sales assistant. Answer questions about the available plans, " +
	"understand the customer's needs, and guide them toward the plan that fits best. " +
	"Be concise and honest; escalate to a human when you cannot help."

// ChatRequest is one inbound chat turn. The embedded upsert block
// identifies and updates the chat participant; ConversationID continues
// an existing thread when set. UserName is accepted as an alias for the
// name field.
type ChatRequest struct {
	user.UpsertRequest
	UserName       string `json:"user_name,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResponse is the agent's reply plus the conversation state after the
// turn.
type ChatResponse struct {
	Response       string              `json:"response"`
	ConversationID string              `json:"conversation_id"`
	UserID         string              `json:"user_id"`
	Stage          conversation.Stage  `json:"funnel_stage"`
	Status         conversation.Status `json:"status"`
}

// ChatService orchestrates one chat turn: user upsert, conversation
// lookup, prompt assembly, the provider call, tool-call dispatch, and the
// transactional message append.
type ChatService struct {
	store    database.Store
	provider llm.Provider
	prompts  *PromptService
	convs    *ConversationService
	cfg      config.Chat
	history  int
	metrics  *otel.Metrics
	log      *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(store database.Store, provider llm.Provider, prompts *PromptService,
	convs *ConversationService, cfg config.Chat, historyLimit int, m *otel.Metrics, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	if historyLimit < 1 {
		historyLimit = 20
	}
	return &ChatService{
		store:    store,
		provider: provider,
		prompts:  prompts,
		convs:    convs,
		cfg:      cfg,
		history:  historyLimit,
		metrics:  m,
		log:      log,
	}
}

// HandleMessage processes one inbound message end to end.
func (s *ChatService) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	tc, _ := middleware.TenantFromContext(ctx)

	ctx, span := otel.StartChatSpan(ctx, tc.Slug, req.ConversationID)
	defer span.End()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if s.cfg.MaxMessageLength > 0 && len(msg) > s.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, s.cfg.MaxMessageLength)
	}
	if req.Name == "" {
		req.Name = req.UserName
	}
	if err := req.UpsertRequest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	u, err := s.store.UpsertUser(ctx, req.UpsertRequest)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	c, err := s.resolveConversation(ctx, req.ConversationID, u)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MessagesHandled.Add(ctx, 1)
	}

	userMsg := conversation.Message{Role: "user", Content: msg}

	// While a human owns the conversation the agent never replies; the
	// message is still recorded for the operator.
	if c.AwaitingHuman() {
		if _, err := s.store.AppendMessages(ctx, c.ID, []conversation.Message{userMsg}); err != nil {
			return nil, fmt.Errorf("append message: %w", err)
		}
		return &ChatResponse{
			Response:       handoffHoldReply,
			ConversationID: c.ID,
			UserID:         u.ID,
			Stage:          c.Stage,
			Status:         c.Status,
		}, nil
	}

	sysPrompt, err := s.buildSystemPrompt(ctx, tc, c)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListMessages(ctx, c.ID, s.history)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	provReq := llm.Request{
		Model:       tc.Config.LLM.Model,
		Temperature: tc.Config.LLM.Temperature,
		Messages:    buildProviderMessages(sysPrompt, history, msg),
	}

	pctx, pspan := otel.StartProviderSpan(ctx, provReq.Model)
	resp, err := s.provider.Complete(pctx, provReq)
	pspan.End()
	if err != nil {
		if s.metrics != nil {
			s.metrics.ProviderErrors.Add(ctx, 1)
		}
		// Nothing is persisted on a failed turn; the client retries the
		// whole message.
		return nil, fmt.Errorf("provider: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ProviderTokens.Record(ctx, int64(resp.TokensIn+resp.TokensOut))
	}

	assistantMsg := conversation.Message{Role: "assistant", Content: resp.Content}
	if len(resp.ToolCalls) > 0 {
		if raw, err := json.Marshal(resp.ToolCalls); err == nil {
			assistantMsg.ToolCalls = raw
		}
	}
	if _, err := s.store.AppendMessages(ctx, c.ID, []conversation.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("append messages: %w", err)
	}

	c = s.dispatchToolCalls(ctx, c, resp.ToolCalls)

	if s.metrics != nil {
		s.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
	}
	return &ChatResponse{
		Response:       resp.Content,
		ConversationID: c.ID,
		UserID:         u.ID,
		Stage:          c.Stage,
		Status:         c.Status,
	}, nil
}

// resolveConversation loads the thread referenced by the request or
// starts a new one. A conversation belonging to another user of the same
// tenant is off limits.
func (s *ChatService) resolveConversation(ctx context.Context, id string, u *user.User) (*conversation.Conversation, error) {
	if id == "" {
		c, err := s.store.CreateConversation(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		return c, nil
	}

	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != u.ID {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrForbidden)
	}
	if c.Status == conversation.StatusClosed {
		return nil, fmt.Errorf("%w: conversation is closed", domain.ErrValidation)
	}
	return c, nil
}

// buildSystemPrompt assembles the tenant prompt, knowledge context, plan
// catalog, and current funnel position into one system message.
func (s *ChatService) buildSystemPrompt(ctx context.Context, tc tenant.Context, c *conversation.Conversation) (string, error) {
	var b strings.Builder

	tpl, err := s.prompts.ActivePrompt(ctx, prompt.TypeSalesAgent)
	switch {
	case err == nil:
		b.WriteString(tpl.SystemPrompt)
		if tpl.KnowledgeBase != "" {
			b.WriteString("\n\n")
			b.WriteString(tpl.KnowledgeBase)
		}
	case errors.Is(err, domain.ErrNotFound):
		b.WriteString(defaultSystemPrompt)
	default:
		return "", fmt.Errorf("load prompt: %w", err)
	}

	if kb, err := s.prompts.KnowledgeContext(ctx); err == nil && kb != "" {
		b.WriteString("\n\n# Knowledge base\n")
		b.WriteString(kb)
	}

	plans, err := s.store.ListPlans(ctx, true)
	if err != nil {
		return "", fmt.Errorf("load plans: %w", err)
	}
	if len(plans) > 0 {
		b.WriteString("\n\n# Available plans\n")
		for _, p := range plans {
			fmt.Fprintf(&b, "- %s (%s): %.2f %s / %s", p.Name, p.Slug, p.Price, tc.Config.Currency, p.BillingCycle)
			if p.Description != "" {
				b.WriteString(" — ")
				b.WriteString(p.Description)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nThe customer is currently at the %q funnel stage.", c.Stage)
	return b.String(), nil
}

func buildProviderMessages(system string, history []conversation.Message, userMsg string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	out = append(out, llm.Message{Role: "user", Content: userMsg})
	return out
}

// dispatchToolCalls applies the agent's tool calls. Failures are logged
// and skipped; one malformed call must not lose the turn.
func (s *ChatService) dispatchToolCalls(ctx context.Context, c *conversation.Conversation, calls []llm.ToolCall) *conversation.Conversation {
	for _, call := range calls {
		var err error
		switch call.Name {
		case "advance_stage":
			var args struct {
				Stage conversation.Stage `json:"stage"`
			}
			if err = json.Unmarshal(call.Arguments, &args); err == nil {
				var next *conversation.Conversation
				if next, err = s.convs.AdvanceStage(ctx, c.ID, args.Stage); err == nil {
					c = next
				}
			}
		case "request_handoff":
			var args conversation.HandoffRequest
			if err = json.Unmarshal(call.Arguments, &args); err == nil {
				var next *conversation.Conversation
				if next, err = s.convs.RequestHandoff(ctx, c.ID, args); err == nil {
					c = next
				}
			}
		case "create_lead":
			var args lead.UpsertRequest
			if err = json.Unmarshal(call.Arguments, &args); err == nil {
				_, err = s.convs.UpsertLead(ctx, c.ID, args)
			}
		case "update_summary":
			var args struct {
				Summary string `json:"summary"`
			}
			if err = json.Unmarshal(call.Arguments, &args); err == nil && args.Summary != "" {
				c.ContextSummary = args.Summary
				err = s.store.UpdateConversation(ctx, c)
			}
		default:
			s.log.Warn("unknown tool call", "conversation_id", c.ID, "tool", call.Name)
			continue
		}
		if err != nil {
			s.log.Error("tool call failed", "conversation_id", c.ID, "tool", call.Name, "error", err)
		}
	}
	return c
}

package service

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/port/llm"
)

func newChatService(store *mockStore, provider *fakeProvider) *ChatService {
	prompts := NewPromptService(store, nil, 0, 0, nil)
	convs := NewConversationService(store, &fakeNotifier{}, nil, nil)
	return NewChatService(store, provider, prompts, convs,
		config.Chat{MaxMessageLength: 200}, 20, nil, nil)
}

func TestHandleMessage(t *testing.T) {
	store := &mockStore{}
	provider := &fakeProvider{responses: []*llm.Response{{Content: "Welcome! How can I help?"}}}
	svc := newChatService(store, provider)
	ctx := tenantCtx("t-1", "acme")

	resp, err := svc.HandleMessage(ctx, ChatRequest{
		UpsertRequest: userUpsert("wa-123"),
		Message:       "hi, what plans do you offer?",
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("no conversation ID")
	}
	if resp.Response != "Welcome! How can I help?" {
		t.Errorf("reply = %q", resp.Response)
	}
	if resp.Stage != conversation.StageAwareness {
		t.Errorf("stage = %q, want awareness", resp.Stage)
	}

	msgs, err := store.ListMessages(ctx, resp.ConversationID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("stored messages: %+v", msgs)
	}

	// System prompt carries the plan catalog when plans exist.
	if len(provider.requests) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.requests))
	}
	if provider.requests[0].Messages[0].Role != "system" {
		t.Errorf("first provider message role = %q, want system", provider.requests[0].Messages[0].Role)
	}
}

func TestHandleMessageValidation(t *testing.T) {
	svc := newChatService(&mockStore{}, &fakeProvider{})
	ctx := tenantCtx("t-1", "acme")

	if _, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("k"), Message: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank message error = %v, want validation", err)
	}
	if _, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("k"), Message: strings.Repeat("x", 201)}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized message error = %v, want validation", err)
	}
	if _, err := svc.HandleMessage(ctx, ChatRequest{Message: "hi"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing user_key error = %v, want validation", err)
	}
}

func TestHandleMessageAwaitingHuman(t *testing.T) {
	store := &mockStore{}
	provider := &fakeProvider{}
	svc := newChatService(store, provider)
	ctx := tenantCtx("t-1", "acme")

	first, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("wa-123"), Message: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	convs := NewConversationService(store, &fakeNotifier{}, nil, nil)
	if _, err := convs.RequestHandoff(ctx, first.ConversationID, conversation.HandoffRequest{Reason: "x"}); err != nil {
		t.Fatalf("RequestHandoff: %v", err)
	}

	resp, err := svc.HandleMessage(ctx, ChatRequest{
		UpsertRequest:  userUpsert("wa-123"),
		ConversationID: first.ConversationID,
		Message:        "anyone there?",
	})
	if err != nil {
		t.Fatalf("HandleMessage while escalated: %v", err)
	}
	if resp.Status != conversation.StatusAwaitingHuman {
		t.Errorf("status = %q, want awaiting_human", resp.Status)
	}
	if resp.Response != handoffHoldReply {
		t.Errorf("reply = %q, want hold reply", resp.Response)
	}
	// The agent was not consulted for the escalated turn.
	if len(provider.requests) != 1 {
		t.Errorf("provider calls = %d, want 1", len(provider.requests))
	}
	// The message was still recorded for the operator.
	msgs, _ := store.ListMessages(ctx, first.ConversationID, 10)
	if got := msgs[len(msgs)-1].Content; got != "anyone there?" {
		t.Errorf("last stored message = %q", got)
	}
}

func TestHandleMessageOtherUsersConversation(t *testing.T) {
	store := &mockStore{}
	svc := newChatService(store, &fakeProvider{})
	ctx := tenantCtx("t-1", "acme")

	first, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("alice"), Message: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	_, err = svc.HandleMessage(ctx, ChatRequest{
		UpsertRequest:  userUpsert("mallory"),
		ConversationID: first.ConversationID,
		Message:        "let me in",
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("cross-user access error = %v, want forbidden", err)
	}
}

func TestHandleMessageToolCalls(t *testing.T) {
	store := &mockStore{}
	provider := &fakeProvider{responses: []*llm.Response{{
		Content: "The Pro plan sounds like a great fit.",
		ToolCalls: []llm.ToolCall{
			{Name: "advance_stage", Arguments: json.RawMessage(`{"stage":"interest"}`)},
			{Name: "update_summary", Arguments: json.RawMessage(`{"summary":"interested in Pro"}`)},
			{Name: "does_not_exist", Arguments: json.RawMessage(`{}`)},
		},
	}}}
	svc := newChatService(store, provider)
	ctx := tenantCtx("t-1", "acme")

	resp, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("wa-123"), Message: "tell me about Pro"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if resp.Stage != conversation.StageInterest {
		t.Errorf("stage = %q, want interest after tool call", resp.Stage)
	}

	c, err := store.GetConversation(ctx, resp.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if c.ContextSummary != "interested in Pro" {
		t.Errorf("summary = %q", c.ContextSummary)
	}

	// Tool calls are persisted with the assistant message.
	msgs, _ := store.ListMessages(ctx, resp.ConversationID, 10)
	if msgs[1].ToolCalls == nil {
		t.Error("assistant message lost its tool calls")
	}
}

func TestHandleMessageProviderFailure(t *testing.T) {
	store := &mockStore{}
	provider := &fakeProvider{err: errors.New("model unavailable")}
	svc := newChatService(store, provider)
	ctx := tenantCtx("t-1", "acme")

	_, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("wa-123"), Message: "hello"})
	if err == nil {
		t.Fatal("expected provider error")
	}

	// A failed turn leaves the conversation untouched: no partial
	// message is written.
	var convID string
	for _, c := range store.conversations {
		convID = c.ID
	}
	msgs, _ := store.ListMessages(ctx, convID, 10)
	if len(msgs) != 0 {
		t.Errorf("stored messages after failure: %+v", msgs)
	}
}

func TestHandleMessageClosedConversation(t *testing.T) {
	store := &mockStore{}
	svc := newChatService(store, &fakeProvider{})
	ctx := tenantCtx("t-1", "acme")

	first, err := svc.HandleMessage(ctx, ChatRequest{UpsertRequest: userUpsert("wa-123"), Message: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	convs := NewConversationService(store, nil, nil, nil)
	if _, err := convs.CloseLost(ctx, first.ConversationID); err != nil {
		t.Fatalf("CloseLost: %v", err)
	}

	_, err = svc.HandleMessage(ctx, ChatRequest{
		UpsertRequest:  userUpsert("wa-123"),
		ConversationID: first.ConversationID,
		Message:        "actually wait",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("closed conversation error = %v, want validation", err)
	}
}

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/SalesForge/internal/adapter/postgres"
	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/domain/user"
	"github.com/Strob0t/SalesForge/internal/middleware"
)

// ctxWithTenant builds a context carrying the given tenant identity, the
// same shape the resolution middleware produces.
func ctxWithTenant(tenantID string) context.Context {
	return middleware.WithTenant(context.Background(), tenant.Context{ID: tenantID, Status: tenant.StatusActive})
}

// setupStore connects, runs migrations, and returns a ready Store. Tests
// are skipped when DATABASE_URL is not set.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping postgres integration tests")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	cfg := config.Defaults().Postgres
	cfg.DSN = dsn
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

func createTenant(t *testing.T, store *postgres.Store, slug string) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{
		Slug:       slug,
		Name:       "Test " + slug,
		Config:     tenant.DefaultConfig(),
		APIKeyHash: "x",
		Status:     tenant.StatusActive,
	}
	if err := store.CreateTenant(context.Background(), tn); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tn
}

func createUser(t *testing.T, store *postgres.Store, ctx context.Context) *user.User {
	t.Helper()
	u, err := store.UpsertUser(ctx, user.UpsertRequest{UserKey: uuid.NewString(), Name: "Ana"})
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	return u
}

func TestTenantDirectory(t *testing.T) {
	store := setupStore(t)
	slug := fmt.Sprintf("acme-%d", time.Now().UnixNano())
	tn := createTenant(t, store, slug)

	got, err := store.GetTenantBySlug(context.Background(), slug)
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.ID != tn.ID || got.Status != tenant.StatusActive {
		t.Fatalf("got %+v", got)
	}

	// Duplicate slug → conflict
	dup := &tenant.Tenant{Slug: slug, Name: "dup", APIKeyHash: "y", Status: tenant.StatusTrial}
	if err := store.CreateTenant(context.Background(), dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate slug error = %v, want ErrConflict", err)
	}

	// Key rotation changes hash
	if err := store.UpdateTenantKey(context.Background(), slug, "newhash", "newprefix"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	got, _ = store.GetTenantBySlug(context.Background(), slug)
	if got.APIKeyHash != "newhash" {
		t.Fatalf("hash not rotated: %q", got.APIKeyHash)
	}
}

func TestUserUpsertScopedByTenant(t *testing.T) {
	store := setupStore(t)
	suffix := time.Now().UnixNano()
	t1 := createTenant(t, store, fmt.Sprintf("iso-a-%d", suffix))
	t2 := createTenant(t, store, fmt.Sprintf("iso-b-%d", suffix))
	ctx1 := ctxWithTenant(t1.ID)
	ctx2 := ctxWithTenant(t2.ID)

	// Same user_key in two tenants yields two distinct users.
	key := uuid.NewString()
	u1, err := store.UpsertUser(ctx1, user.UpsertRequest{UserKey: key, Name: "One"})
	if err != nil {
		t.Fatal(err)
	}
	u2, err := store.UpsertUser(ctx2, user.UpsertRequest{UserKey: key, Name: "Two"})
	if err != nil {
		t.Fatal(err)
	}
	if u1.ID == u2.ID {
		t.Fatal("same user row shared across tenants")
	}

	// Upsert refreshes profile without blanking absent fields.
	u1b, err := store.UpsertUser(ctx1, user.UpsertRequest{UserKey: key, Email: "one@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if u1b.Name != "One" || u1b.Email != "one@example.com" {
		t.Fatalf("upsert merged badly: %+v", u1b)
	}

	// Lookup through the wrong tenant must be a plain not-found.
	fresh, _ := store.UpsertUser(ctx1, user.UpsertRequest{UserKey: uuid.NewString()})
	if _, err := store.GetUserByKey(ctx2, fresh.UserKey); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant user lookup = %v, want ErrNotFound", err)
	}
}

func TestConversationIsolation(t *testing.T) {
	store := setupStore(t)
	suffix := time.Now().UnixNano()
	t1 := createTenant(t, store, fmt.Sprintf("conv-a-%d", suffix))
	t2 := createTenant(t, store, fmt.Sprintf("conv-b-%d", suffix))
	ctx1 := ctxWithTenant(t1.ID)
	ctx2 := ctxWithTenant(t2.ID)

	u1 := createUser(t, store, ctx1)
	c, err := store.CreateConversation(ctx1, u1.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if c.Stage != conversation.StageAwareness || c.Status != conversation.StatusActive {
		t.Fatalf("new conversation state: %+v", c)
	}

	// Foreign tenant cannot see it.
	if _, err := store.GetConversation(ctx2, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant get = %v, want ErrNotFound", err)
	}

	// A conversation cannot be created for another tenant's user.
	if _, err := store.CreateConversation(ctx2, u1.ID); !errors.Is(err, domain.ErrIsolation) {
		t.Fatalf("cross-tenant user reference = %v, want ErrIsolation", err)
	}
}

func TestAppendMessagesMonotonic(t *testing.T) {
	store := setupStore(t)
	tn := createTenant(t, store, fmt.Sprintf("msg-%d", time.Now().UnixNano()))
	ctx := ctxWithTenant(tn.ID)
	u := createUser(t, store, ctx)
	c, err := store.CreateConversation(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}

	for i := range 5 {
		_, err := store.AppendMessages(ctx, c.ID, []conversation.Message{
			{Role: "user", Content: fmt.Sprintf("msg %d", i)},
			{Role: "assistant", Content: fmt.Sprintf("reply %d", i)},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := store.ListMessages(ctx, c.ID, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 10 {
		t.Fatalf("got %d messages, want 10", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Fatalf("timestamps not strictly increasing at %d: %v vs %v",
				i, msgs[i-1].CreatedAt, msgs[i].CreatedAt)
		}
	}
}

func TestLeadUpsertMonotonic(t *testing.T) {
	store := setupStore(t)
	tn := createTenant(t, store, fmt.Sprintf("lead-%d", time.Now().UnixNano()))
	ctx := ctxWithTenant(tn.ID)
	u := createUser(t, store, ctx)
	c, err := store.CreateConversation(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}

	first, err := store.UpsertLead(ctx, &lead.Lead{
		ConversationID: c.ID, UserID: u.ID,
		Stage: lead.StageHot, Score: 80, Objections: []string{"price"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A weaker update must not regress stage or score, and objections merge.
	second, err := store.UpsertLead(ctx, &lead.Lead{
		ConversationID: c.ID, UserID: u.ID,
		Stage: lead.StageWarm, Score: 50, Objections: []string{"timing"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatal("upsert created a second lead for the conversation")
	}
	if second.Stage != lead.StageHot || second.Score != 80 {
		t.Fatalf("lead regressed: %+v", second)
	}
	if len(second.Objections) != 2 {
		t.Fatalf("objections not merged: %v", second.Objections)
	}
}

func TestAnalyticsQueries(t *testing.T) {
	store := setupStore(t)
	tn := createTenant(t, store, fmt.Sprintf("an-%d", time.Now().UnixNano()))
	ctx := ctxWithTenant(tn.ID)
	u := createUser(t, store, ctx)

	c1, _ := store.CreateConversation(ctx, u.ID)
	c2, _ := store.CreateConversation(ctx, u.ID)
	c2.Stage = conversation.StageNegotiation
	c2.Status = conversation.StatusAwaitingHuman
	if err := store.UpdateConversation(ctx, c2); err != nil {
		t.Fatal(err)
	}
	_ = c1

	counts, err := store.CountConversationsByStage(ctx,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if counts["awareness"] != 1 || counts["negotiation"] != 1 {
		t.Fatalf("stage counts: %v", counts)
	}

	// c2 awaits a human and has no lead, so it shows up synthesized.
	recent, err := store.RecentLeads(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, rl := range recent {
		if rl.ConversationID == c2.ID && rl.Synthesized {
			found = true
		}
	}
	if !found {
		t.Fatalf("awaiting_human conversation missing from recent leads: %+v", recent)
	}
}

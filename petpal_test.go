package petpal

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeGenerator is an in-process Generator for turn-level tests.
type fakeGenerator struct {
	reply string
	err   error
	delay time.Duration

	mu      sync.Mutex
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func testCompanion(t *testing.T, cfg Config) *Companion {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "petpal.db")
	}
	c, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestChatSuccessfulTurn(t *testing.T) {
	gen := &fakeGenerator{reply: "Oh, you remind me of Max the golden retriever!"}
	c := testCompanion(t, Config{Generator: gen})

	resp, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "hello!"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Reply != gen.reply {
		t.Errorf("unexpected reply %q", resp.Reply)
	}
	if resp.StoryID == "" || resp.Theme == "" {
		t.Errorf("turn should report the told story, got %+v", resp)
	}
	if resp.Fallback {
		t.Error("successful turn must not be a fallback")
	}
	if resp.TurnCount != 1 {
		t.Errorf("expected turn count 1, got %d", resp.TurnCount)
	}

	p, err := c.Profile("u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.HasToldStory(resp.StoryID) {
		t.Errorf("story %s should be committed after success", resp.StoryID)
	}
}

func TestChatStoriesDoNotRepeatUntilExhausted(t *testing.T) {
	gen := &fakeGenerator{reply: "aww"}
	c := testCompanion(t, Config{Generator: gen})

	n := c.Catalog().Len()
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		resp, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "tell me a story"})
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if seen[resp.StoryID] {
			t.Fatalf("story %s repeated before exhaustion", resp.StoryID)
		}
		seen[resp.StoryID] = true
	}

	// Exhaustion: history resets and the cycle starts over.
	resp, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "one more"})
	if err != nil {
		t.Fatalf("post-exhaustion turn: %v", err)
	}
	if !seen[resp.StoryID] {
		t.Errorf("expected a recycled story after exhaustion, got %s", resp.StoryID)
	}
}

func TestChatGeneratorFailureServesFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	c := testCompanion(t, Config{Generator: gen})

	resp, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "hi"})
	if err != nil {
		t.Fatalf("Chat should absorb generation errors: %v", err)
	}
	if !resp.Fallback {
		t.Error("expected fallback turn")
	}
	if resp.Reply == "" {
		t.Error("fallback reply must not be empty")
	}
	if resp.StoryID != "" {
		t.Errorf("fallback turn must not report a story, got %s", resp.StoryID)
	}

	p, _ := c.Profile("u1")
	if len(p.ToldStoryIDs) != 0 {
		t.Errorf("failed turn must not burn a story: %v", p.ToldStoryIDs)
	}
	if p.TurnCount != 1 {
		t.Errorf("failed turn still counts as observed, got %d", p.TurnCount)
	}
}

func TestChatTimeoutDoesNotBurnStory(t *testing.T) {
	gen := &fakeGenerator{reply: "slow", delay: 500 * time.Millisecond}
	c := testCompanion(t, Config{Generator: gen, GenerateTimeout: 50 * time.Millisecond})

	resp, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !resp.Fallback {
		t.Error("timed-out turn should fall back")
	}

	// The story was not committed; the retried turn selects the same one.
	gen.delay = 0
	retry, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "hi again"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	first := c.Catalog().Stories()[0]
	if retry.StoryID != first.ID {
		t.Errorf("retry should get the uncommitted story %s, got %s", first.ID, retry.StoryID)
	}
}

func TestChatInvalidUserID(t *testing.T) {
	c := testCompanion(t, Config{Generator: &fakeGenerator{reply: "x"}})

	for _, id := range []string{"", "   ", "a b", string(make([]byte, 200))} {
		if _, err := c.Chat(context.Background(), ChatRequest{UserID: id, Utterance: "hi"}); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("id %q: expected ErrInvalidIdentifier, got %v", id, err)
		}
	}
}

func TestChatNoGenerator(t *testing.T) {
	c := testCompanion(t, Config{})
	if _, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "hi"}); err == nil {
		t.Error("expected error without a generator")
	}
}

func TestChatExtractsNameIntoPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "Nice to meet you, Sarah!"}
	c := testCompanion(t, Config{Generator: gen})

	if _, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "My name is Sarah and I love dogs"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	p, _ := c.Profile("u1")
	if p.DisplayName != "Sarah" {
		t.Errorf("expected extracted name Sarah, got %q", p.DisplayName)
	}
	if p.PetPreference != PrefDog {
		t.Errorf("expected dog preference, got %q", p.PetPreference)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("expected one generation, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Name: Sarah") {
		t.Error("prompt should carry the extracted name on the same turn")
	}
}

func TestChatEstimatesShyStyle(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := testCompanion(t, Config{Generator: gen})

	var resp ChatResponse
	var err error
	for i := 0; i < 5; i++ {
		resp, err = c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "ok"})
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if resp.Style != StyleShy {
		t.Errorf("five short turns should read as shy, got %s", resp.Style)
	}
}

func TestChatEstimatesButtonStyle(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := testCompanion(t, Config{Generator: gen})

	var resp ChatResponse
	for i := 0; i < 3; i++ {
		var err error
		resp, err = c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "Both!"})
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if resp.Style != StyleButtonPreferring {
		t.Errorf("quick-reply turns should read as button-preferring, got %s", resp.Style)
	}
}

func TestChatConcurrentUsersIsolated(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := testCompanion(t, Config{Generator: gen})

	done := make(chan error, 2)
	for _, id := range []string{"alice", "bob"} {
		go func(id string) {
			_, err := c.Chat(context.Background(), ChatRequest{UserID: id, Utterance: "hello there friend"})
			done <- err
		}(id)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent turn: %v", err)
		}
	}

	a, _ := c.Profile("alice")
	b, _ := c.Profile("bob")
	if a.TurnCount != 1 || b.TurnCount != 1 {
		t.Errorf("each user has one turn, got alice=%d bob=%d", a.TurnCount, b.TurnCount)
	}
}

func TestResetStories(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := testCompanion(t, Config{Generator: gen})

	if _, err := c.Chat(context.Background(), ChatRequest{UserID: "u1", Utterance: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := c.ResetStories("u1"); err != nil {
		t.Fatalf("ResetStories: %v", err)
	}

	p, _ := c.Profile("u1")
	if len(p.ToldStoryIDs) != 0 || len(p.UsedThemes) != 0 {
		t.Error("reset should clear story history")
	}
	if p.TurnCount != 1 {
		t.Error("reset must not touch turn history")
	}
}

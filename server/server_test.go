package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petpalhq/petpal"
)

type stubGenerator struct{ reply string }

func (g stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	companion, err := petpal.Init(petpal.Config{
		DBPath:    filepath.Join(t.TempDir(), "petpal.db"),
		Generator: stubGenerator{reply: "You're as loyal as Max! How was your day?"},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { companion.Close() })
	return New(companion)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.echo.ServeHTTP(w, r)
	return w
}

func TestChatEndpoint(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/chat", `{"user_id":"u1","message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "u1" {
		t.Errorf("user id not echoed: %q", resp.UserID)
	}
	if resp.Reply == "" || resp.StoryID == "" {
		t.Errorf("incomplete turn: %+v", resp)
	}
	if resp.TurnCount != 1 {
		t.Errorf("expected turn 1, got %d", resp.TurnCount)
	}
}

func TestChatEndpointMintsAnonymousID(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/chat", `{"message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID == "" {
		t.Error("anonymous request should get a minted user_id")
	}

	// The minted id keeps continuity on the next request.
	w = doJSON(t, s, http.MethodPost, "/chat", `{"user_id":"`+resp.UserID+`","message":"hi again"}`)
	var second ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.TurnCount != 2 {
		t.Errorf("expected turn 2 on the minted id, got %d", second.TurnCount)
	}
}

func TestChatEndpointRejectsBadInput(t *testing.T) {
	s := testServer(t)

	if w := doJSON(t, s, http.MethodPost, "/chat", `{"user_id":"u1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty message: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/chat", `{"user_id":"bad id","message":"hi"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid user_id: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/chat", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", w.Code)
	}
}

func TestProfileAndResetEndpoints(t *testing.T) {
	s := testServer(t)

	doJSON(t, s, http.MethodPost, "/chat", `{"user_id":"u1","message":"My name is Sarah"}`)

	w := doJSON(t, s, http.MethodGet, "/session/u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("profile status %d", w.Code)
	}
	var prof ProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &prof); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prof.DisplayName != "Sarah" {
		t.Errorf("expected remembered name, got %q", prof.DisplayName)
	}
	if len(prof.StoriesHeard) != 1 {
		t.Errorf("expected one story heard, got %v", prof.StoriesHeard)
	}

	if w := doJSON(t, s, http.MethodPost, "/session/u1/reset", ""); w.Code != http.StatusOK {
		t.Fatalf("reset status %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/session/u1", "")
	prof = ProfileResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &prof); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(prof.StoriesHeard) != 0 {
		t.Errorf("reset should clear stories heard, got %v", prof.StoriesHeard)
	}
	if prof.DisplayName != "Sarah" {
		t.Error("reset must keep remembered facts")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected health body %s", w.Body.String())
	}
}

package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Slug and Context Helpers
// =============================================================================

func TestBuildSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"What's New in AI?", "whats-new-in-ai"},
		{"  spaced   out  ", "spaced-out"},
		{"already-a-slug", "already-a-slug"},
		{"UPPER Case 123", "upper-case-123"},
	}
	for _, tt := range tests {
		if got := BuildSlug(tt.in); got != tt.want {
			t.Errorf("BuildSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSlug_CapsLength(t *testing.T) {
	long := strings.Repeat("word ", 40)
	slug := BuildSlug(long)
	if len(slug) > 80 {
		t.Errorf("slug too long: %d bytes", len(slug))
	}
	if strings.HasSuffix(slug, "-") || strings.HasPrefix(slug, "-") {
		t.Errorf("slug has dangling hyphen: %q", slug)
	}
}

func TestTodayPillar(t *testing.T) {
	// 2026-08-31 is a Monday.
	monday := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	if got := TodayPillar(monday); got != PillarWeeklyBriefing {
		t.Errorf("monday pillar = %q, want %q", got, PillarWeeklyBriefing)
	}

	saturday := monday.AddDate(0, 0, 5)
	if got := TodayPillar(saturday); got != "" {
		t.Errorf("weekend pillar = %q, want empty", got)
	}
}

func TestBuildNewsContext(t *testing.T) {
	if got := BuildNewsContext(nil); got != "" {
		t.Errorf("empty news must build empty context, got %q", got)
	}

	news := []NewsItem{
		{Title: "A", Source: "src1", Summary: "sum1"},
		{Title: "B", Source: "src2"},
	}
	got := BuildNewsContext(news)
	if !strings.Contains(got, "[src1] A") || !strings.Contains(got, "sum1") {
		t.Errorf("context missing first item: %q", got)
	}
	if !strings.Contains(got, "(no summary)") {
		t.Errorf("context missing summary placeholder: %q", got)
	}
}

func TestBuildNewsContext_CapsAtFive(t *testing.T) {
	news := make([]NewsItem, 8)
	for i := range news {
		news[i] = NewsItem{Title: "t", Source: "s", Summary: "x"}
	}
	got := BuildNewsContext(news)
	if n := strings.Count(got, "[s] t"); n != 5 {
		t.Errorf("expected 5 items in context, got %d", n)
	}
}

// =============================================================================
// Model Endpoint Client
// =============================================================================

func TestClient_Generate(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Topic != "test topic" {
			t.Errorf("topic = %q", req.Topic)
		}

		json.NewEncoder(w).Encode(Draft{
			Title:    "Generated title",
			Content:  "body",
			Category: PillarToolReview,
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, APIKey: "secret", Model: "test-model"})
	draft, err := c.Generate(context.Background(), Request{Topic: "test topic"})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if draft.Title != "Generated title" {
		t.Errorf("title = %q", draft.Title)
	}
	if draft.Slug != "generated-title" {
		t.Errorf("expected slug derived from title, got %q", draft.Slug)
	}
}

func TestClient_Generate_ErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL})
	_, err := c.Generate(context.Background(), Request{Topic: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error must carry status code: %v", err)
	}
}

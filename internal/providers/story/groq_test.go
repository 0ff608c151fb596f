package story

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/infra/keypool"
)

func newTestClient(t *testing.T, baseURL string, keys ...string) *Client {
	t.Helper()
	pool, err := keypool.NewPool("groq", keys, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return NewClient(Options{Keys: pool, BaseURL: baseURL})
}

func chatBody(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	}
}

func TestGenerateReturnsStoryWithGenreAndWordCount(t *testing.T) {
	const text = "The forest shimmered as she flew between crystal branches."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "llama-3.3-70b-versatile" {
			t.Errorf("model = %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(chatBody(text))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1")
	result, err := client.Generate(context.Background(), "Flight", "flying through a crystal forest")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Content != text {
		t.Fatalf("content mismatch: %q", result.Content)
	}
	if result.WordCount != 9 {
		t.Fatalf("word count = %d, want 9", result.WordCount)
	}
	if result.Genre != "Fantasy" {
		t.Fatalf("genre = %q, want Fantasy", result.Genre)
	}
}

func TestGenerateRotatesKeysOn401(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Authorization")
		seen = append(seen, key)
		if key != "Bearer key-2" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "Invalid API Key"}})
			return
		}
		_ = json.NewEncoder(w).Encode(chatBody("a story"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1", "key-2")
	result, err := client.Generate(context.Background(), "Flight", "desc")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Content != "a story" {
		t.Fatalf("content = %q", result.Content)
	}
	if len(seen) != 2 {
		t.Fatalf("requests = %d, want 2", len(seen))
	}
}

func TestGeneratePropagatesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1")
	if _, err := client.Generate(context.Background(), "Flight", "desc"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGenerateWithoutKeys(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Generate(context.Background(), "Flight", "desc"); !errors.Is(err, ErrNoKeys) {
		t.Fatalf("error = %v, want ErrNoKeys", err)
	}
}

func TestGenreKeywordPriority(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"a wizard guards the tower", "Fantasy"},
		{"robots in deep space", "Science Fiction"},
		{"a scary monster in the dark", "Horror"},
		{"two hearts falling in love", "Romance"},
		{"a long journey across the sea", "Adventure"},
		{"an ordinary tuesday", "Fantasy"},
		// fantasy markers outrank sci-fi markers
		{"a magic robot", "Fantasy"},
	}
	for _, tc := range cases {
		if got := Genre(tc.description); got != tc.want {
			t.Fatalf("Genre(%q) = %q, want %q", tc.description, got, tc.want)
		}
	}
}

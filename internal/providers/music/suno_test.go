package music

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/infra/keypool"
)

func newTestClient(t *testing.T, baseURL string, keys ...string) *Client {
	t.Helper()
	var pool *keypool.Pool
	if len(keys) > 0 {
		var err error
		pool, err = keypool.NewPool("suno", keys, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewPool: %v", err)
		}
	}
	return NewClient(Options{
		Keys:        pool,
		BaseURL:     baseURL,
		CallbackURL: "http://localhost:5000/api/dreams/suno-callback",
		SimDelay:    1,
	})
}

func TestGenerateSimulatesWithoutKeys(t *testing.T) {
	client := newTestClient(t, "")
	result, err := client.Generate(context.Background(), "Flight", "a peaceful meadow")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Mode != ModeImmediate || !result.Simulated {
		t.Fatalf("expected simulated immediate result, got %+v", result)
	}
	if result.Genre != "Ambient" {
		t.Fatalf("genre = %q, want Ambient", result.Genre)
	}
	if result.Duration < 30 || result.Duration > 90 {
		t.Fatalf("duration = %d, want 30..90", result.Duration)
	}
}

func TestGenerateDeferredTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["callBackUrl"] != "http://localhost:5000/api/dreams/suno-callback" {
			t.Errorf("callBackUrl = %v", req["callBackUrl"])
		}
		if req["model"] != "V3_5" {
			t.Errorf("model = %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-123"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1")
	result, err := client.Generate(context.Background(), "Flight", "a magical forest")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Mode != ModeDeferred {
		t.Fatalf("mode = %v, want ModeDeferred", result.Mode)
	}
	if result.TaskID != "task-123" {
		t.Fatalf("task id = %q", result.TaskID)
	}
	if result.Genre != "Orchestral" {
		t.Fatalf("genre = %q, want Orchestral", result.Genre)
	}
}

func TestGenerateImmediateTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": []any{
				map[string]any{
					"id":        "track-1",
					"title":     "Dream Theme",
					"audio_url": "https://cdn.example.com/track-1.mp3",
					"duration":  42.5,
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1")
	result, err := client.Generate(context.Background(), "Flight", "desc")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Mode != ModeImmediate {
		t.Fatalf("mode = %v, want ModeImmediate", result.Mode)
	}
	if len(result.Tracks) != 1 || result.Tracks[0].AudioURL != "https://cdn.example.com/track-1.mp3" {
		t.Fatalf("tracks = %+v", result.Tracks)
	}
	if result.Duration != 42 {
		t.Fatalf("duration = %d, want 42", result.Duration)
	}
}

func TestGenerateDegradesToSimulationOnProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1")
	result, err := client.Generate(context.Background(), "Flight", "a dark monster")
	if err != nil {
		t.Fatalf("Generate should not fail: %v", err)
	}
	if !result.Simulated {
		t.Fatalf("expected simulation fallback, got %+v", result)
	}
	if result.Genre != "Dark Ambient" {
		t.Fatalf("genre = %q, want Dark Ambient", result.Genre)
	}
}

func TestCheckStatusSucceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/generate/record-info" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("taskId") != "task-9" {
			t.Errorf("taskId = %q", r.URL.Query().Get("taskId"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"response": map[string]any{
					"sunoData": []any{
						map[string]any{"id": "track-1", "status": "SUCCESS", "audio_url": "https://cdn/a.mp3"},
						map[string]any{"id": "track-2", "status": "PENDING"},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "key-1")
	status, err := client.CheckStatus(context.Background(), "task-9")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status.State != StateSucceeded {
		t.Fatalf("state = %v, want StateSucceeded", status.State)
	}
	if len(status.Tracks) != 1 || status.Tracks[0].SunoID != "track-1" {
		t.Fatalf("tracks = %+v", status.Tracks)
	}
}

func TestCheckStatusFailedAndPending(t *testing.T) {
	responses := []struct {
		trackStatus string
		want        TaskState
	}{
		{"GENERATE_AUDIO_FAILED", StateFailed},
		{"SENSITIVE_WORD_ERROR", StateFailed},
		{"PENDING", StatePending},
	}
	for _, tc := range responses {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]any{
					"response": map[string]any{
						"sunoData": []any{map[string]any{"id": "t", "status": tc.trackStatus}},
					},
				},
			})
		}))
		client := newTestClient(t, server.URL, "key-1")
		status, err := client.CheckStatus(context.Background(), "task")
		server.Close()
		if err != nil {
			t.Fatalf("CheckStatus(%s): %v", tc.trackStatus, err)
		}
		if status.State != tc.want {
			t.Fatalf("state for %s = %v, want %v", tc.trackStatus, status.State, tc.want)
		}
	}
}

func TestMusicGenreKeywords(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"a calm lake at dawn", "Ambient"},
		{"a fast chase through the city", "Electronic"},
		{"a mystical castle", "Orchestral"},
		{"a scary cellar", "Dark Ambient"},
		{"plain toast", "Cinematic"},
	}
	for _, tc := range cases {
		if got := Genre(tc.description); got != tc.want {
			t.Fatalf("Genre(%q) = %q, want %q", tc.description, got, tc.want)
		}
	}
}

func TestPromptMentionsDescription(t *testing.T) {
	got := Prompt("Flight", "a peaceful meadow")
	want := "peaceful ambient ambient music, soft and calming, inspired by a peaceful meadow"
	if got != want {
		t.Fatalf("Prompt = %q, want %q", got, want)
	}
}

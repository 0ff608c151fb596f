package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/notify"
	"server/internal/orchestrator"
	"server/internal/providers/comic"
	"server/internal/providers/music"
	"server/internal/providers/story"
)

type fakeRepo struct {
	mu     sync.Mutex
	dreams map[string]*domain.Dream
	musics map[string]*domain.Music
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{dreams: make(map[string]*domain.Dream), musics: make(map[string]*domain.Music)}
}

func (r *fakeRepo) CreateDream(_ context.Context, dream *domain.Dream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *dream
	r.dreams[dream.ID] = &copied
	return nil
}

func (r *fakeRepo) GetDream(_ context.Context, id string) (*domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dreams[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeRepo) ListDreams(_ context.Context, userID string) ([]domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Dream
	for _, d := range r.dreams {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListPublicDreams(_ context.Context, limit int) ([]domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Dream
	for _, d := range r.dreams {
		if d.IsPublic && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteDream(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dreams[id]
	if !ok || d.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.dreams, id)
	return nil
}

func (r *fakeRepo) GetStatus(_ context.Context, id string) (*domain.DreamStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dreams[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	st := d.Status()
	return &st, nil
}

func (r *fakeRepo) UpdateContentStatus(_ context.Context, dreamID string, ct domain.ContentType, status domain.ContentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dreams[dreamID]
	if !ok || d.StatusFor(ct).Terminal() {
		return false, nil
	}
	switch ct {
	case domain.ContentStory:
		d.StoryStatus = status
	case domain.ContentMusic:
		d.MusicStatus = status
	case domain.ContentComic:
		d.ComicStatus = status
	}
	return true, nil
}

func (r *fakeRepo) CreateStory(_ context.Context, _ *domain.Story) error { return nil }

func (r *fakeRepo) CreateMusic(_ context.Context, m *domain.Music) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.musics[m.ID] = &copied
	return nil
}

func (r *fakeRepo) AddMusicTracks(_ context.Context, musicID string, tracks []domain.MusicTrack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.musics[musicID]
	if !ok {
		return domain.ErrNotFound
	}
	m.Tracks = append(m.Tracks, tracks...)
	return nil
}

func (r *fakeRepo) FindMusicByTaskID(_ context.Context, taskID string) (*domain.Music, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.musics {
		if m.TaskID == taskID && taskID != "" {
			copied := *m
			copied.Tracks = append([]domain.MusicTrack(nil), m.Tracks...)
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) CreateComic(_ context.Context, _ *domain.Comic) error { return nil }

type stubStory struct{}

func (stubStory) Generate(context.Context, string, string) (*story.Result, error) {
	return &story.Result{Content: "content", Genre: "Fantasy", WordCount: 1}, nil
}

type stubMusic struct{ result *music.Result }

func (s stubMusic) Generate(context.Context, string, string) (*music.Result, error) {
	return s.result, nil
}

func (stubMusic) CheckStatus(context.Context, string) (*music.StatusResult, error) {
	return &music.StatusResult{State: music.StatePending}, nil
}

type stubComic struct{}

func (stubComic) Generate(context.Context, string, string) (*comic.Result, error) {
	return &comic.Result{Title: "T - Comic Strip", ComicURL: "https://img/strip.png"}, nil
}

const testSecret = "handler-test-secret"

type env struct {
	repo   *fakeRepo
	hub    *notify.Hub
	orch   *orchestrator.Orchestrator
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := newFakeRepo()
	hub := notify.NewHub(zerolog.Nop())
	t.Cleanup(hub.Close)
	orch := orchestrator.New(context.Background(), orchestrator.Options{
		Repo:   repo,
		Hub:    hub,
		Story:  stubStory{},
		Music:  stubMusic{result: &music.Result{Mode: music.ModeDeferred, TaskID: "task-77", Title: "T", Genre: "Cinematic"}},
		Comic:  stubComic{},
		Logger: zerolog.Nop(),
		Poll:   orchestrator.PollConfig{InitialDelay: time.Hour, Interval: time.Hour, MaxAttempts: 1},
	})
	app := NewApp(repo, orch, hub, zerolog.Nop())
	router := newTestRouter(app)
	return &env{repo: repo, hub: hub, orch: orch, router: router}
}

// newTestRouter mirrors the production route layout without the outer
// middleware stack, except auth which the handlers depend on.
func newTestRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Route("/api/dreams", func(r chi.Router) {
		r.Get("/public", app.DreamsPublic)
		r.Post("/suno-callback", app.SunoCallback)
		r.Get("/suno-callback-test", app.SunoCallbackTest)
		r.Get("/{id}", app.DreamGet)
		r.Get("/{id}/status", app.DreamStatus)
		r.Get("/{id}/events", app.DreamEvents)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(testSecret))
			r.Post("/", app.DreamsCreate)
			r.Get("/", app.DreamsList)
			r.Delete("/{id}", app.DreamDelete)
		})
	})
	return r
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.SignJWT(testSecret, userID, "en", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, router http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestDreamsCreate(t *testing.T) {
	e := newEnv(t)

	rec := doJSON(t, e.router, http.MethodPost, "/api/dreams", bearer(t, "user-1"),
		`{"title":"Flight","description":"crystal forest","generateStory":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	dream := body["dream"].(map[string]any)
	if dream["storyStatus"] != string(domain.StatusGenerating) {
		t.Fatalf("storyStatus = %v", dream["storyStatus"])
	}
	e.orch.Wait()
}

func TestDreamsCreateValidation(t *testing.T) {
	e := newEnv(t)

	cases := []string{
		`{"title":"","description":"d","generateStory":true}`,
		`{"title":"t","description":"d"}`,
		`not json`,
	}
	for _, body := range cases {
		rec := doJSON(t, e.router, http.MethodPost, "/api/dreams", bearer(t, "user-1"), body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
	if len(e.repo.dreams) != 0 {
		t.Fatalf("invalid create persisted a dream")
	}
}

func TestDreamsCreateRequiresAuth(t *testing.T) {
	e := newEnv(t)
	rec := doJSON(t, e.router, http.MethodPost, "/api/dreams", "",
		`{"title":"t","description":"d","generateStory":true}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDreamStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	seedDream(e.repo, "dream-1", "user-1")

	rec := doJSON(t, e.router, http.MethodGet, "/api/dreams/dream-1/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	st := body["status"].(map[string]any)
	if st["story"] != string(domain.StatusGenerating) {
		t.Fatalf("story = %v", st["story"])
	}

	rec = doJSON(t, e.router, http.MethodGet, "/api/dreams/nope/status", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestDreamDeleteOwnership(t *testing.T) {
	e := newEnv(t)
	seedDream(e.repo, "dream-1", "user-1")

	rec := doJSON(t, e.router, http.MethodDelete, "/api/dreams/dream-1", bearer(t, "user-2"), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, e.router, http.MethodDelete, "/api/dreams/dream-1", bearer(t, "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d, want 200", rec.Code)
	}
	if _, err := e.repo.GetDream(context.Background(), "dream-1"); err == nil {
		t.Fatalf("dream survived delete")
	}
}

func TestSunoCallbackEndpoint(t *testing.T) {
	e := newEnv(t)
	seedDream(e.repo, "dream-1", "user-1")
	e.repo.CreateMusic(context.Background(), &domain.Music{ID: "music-1", DreamID: "dream-1", TaskID: "task-77"})

	rec := doJSON(t, e.router, http.MethodPost, "/api/dreams/suno-callback", "", `{"code":200`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, e.router, http.MethodPost, "/api/dreams/suno-callback", "", `{"code":200,"data":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing task_id status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, e.router, http.MethodPost, "/api/dreams/suno-callback", "",
		`{"code":200,"msg":"All generated successfully.","data":{"task_id":"task-77","callbackType":"complete","data":[{"id":"suno-1","audio_url":"https://cdn/a.mp3","duration":95.2}]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "received" {
		t.Fatalf("body = %v", body)
	}

	st, err := e.repo.GetStatus(context.Background(), "dream-1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.Music != domain.StatusCompleted {
		t.Fatalf("music status = %s, want COMPLETED", st.Music)
	}

	// Unknown task ids are acknowledged, not rejected.
	rec = doJSON(t, e.router, http.MethodPost, "/api/dreams/suno-callback", "",
		`{"code":200,"data":{"task_id":"ghost","callbackType":"complete","data":[{"id":"x"}]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown task status = %d, want 200", rec.Code)
	}
}

func TestDreamEventsStreamsSnapshotFirst(t *testing.T) {
	e := newEnv(t)
	seedDream(e.repo, "dream-1", "user-1")

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/dreams/dream-1/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first := readSSEFrame(t, reader)
	if first.Type != notify.EventStatusSnapshot {
		t.Fatalf("first frame type = %q, want %q", first.Type, notify.EventStatusSnapshot)
	}

	waitFor(t, func() bool { return e.hub.SubscriberCount("dream-1") == 1 })
	e.hub.Publish("dream-1", notify.EventStoryCompleted, map[string]any{"status": domain.StatusCompleted})

	second := readSSEFrame(t, reader)
	if second.Type != notify.EventStoryCompleted {
		t.Fatalf("second frame type = %q", second.Type)
	}
}

func readSSEFrame(t *testing.T, reader *bufio.Reader) notify.Event {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		var ev notify.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		return ev
	}
}

func TestDreamEventsUnknownDream(t *testing.T) {
	e := newEnv(t)
	rec := doJSON(t, e.router, http.MethodGet, "/api/dreams/nope/events", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPublicDreamsAndHealth(t *testing.T) {
	e := newEnv(t)
	seedDream(e.repo, "dream-1", "user-1")

	rec := doJSON(t, e.router, http.MethodGet, "/api/dreams/public", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("public status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if len(body["dreams"].([]any)) != 1 {
		t.Fatalf("dreams = %v", body["dreams"])
	}

	rec = doJSON(t, e.router, http.MethodGet, "/v1/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func seedDream(repo *fakeRepo, id, userID string) {
	repo.CreateDream(context.Background(), &domain.Dream{
		ID:            id,
		UserID:        userID,
		Title:         "Flight",
		Description:   "crystal forest",
		IsPublic:      true,
		GenerateStory: true,
		GenerateMusic: true,
		StoryStatus:   domain.StatusGenerating,
		MusicStatus:   domain.StatusGenerating,
		ComicStatus:   domain.StatusPending,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

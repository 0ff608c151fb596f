// Package music generates theme songs via the Suno API. Completion is
// asynchronous: a submitted job normally finishes out-of-band through a
// provider callback or by polling the task status endpoint. Without
// credentials, or when the provider errors, the client degrades to a local
// simulation so the music pipeline never hard-fails.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"server/internal/infra"
	"server/internal/infra/keypool"
)

// Mode tags how the provider completed the request.
type Mode int

const (
	// ModeImmediate: tracks (possibly zero, in simulation) are final now.
	ModeImmediate Mode = iota
	// ModeDeferred: the provider accepted the job; the result arrives later
	// via callback or polling, correlated by TaskID.
	ModeDeferred
)

// Result is the tagged outcome of a generation request.
type Result struct {
	Mode        Mode
	TaskID      string
	Title       string
	Description string
	Genre       string
	Prompt      string
	Duration    int
	Tracks      []Track
	Simulated   bool
}

// Track is one generated audio track in provider-normalized form.
type Track struct {
	SunoID    string
	Title     string
	AudioURL  string
	StreamURL string
	ImageURL  string
	Duration  float64
	Prompt    string
	ModelName string
	Tags      string
}

// TaskState classifies a polled task status.
type TaskState int

const (
	StatePending TaskState = iota
	StateSucceeded
	StateFailed
)

// StatusResult is the outcome of one poll of the task status endpoint.
type StatusResult struct {
	State  TaskState
	Tracks []Track
	Detail string
}

// TrackPayload is the provider's wire shape for a track, shared by the
// generate response, the status endpoint and the inbound callback.
type TrackPayload struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	AudioURL  string  `json:"audio_url"`
	StreamURL string  `json:"stream_audio_url"`
	ImageURL  string  `json:"image_url"`
	Duration  float64 `json:"duration"`
	Prompt    string  `json:"prompt"`
	ModelName string  `json:"model_name"`
	Tags      string  `json:"tags"`
	Status    string  `json:"status"`
}

// ToTrack converts the wire shape to the normalized track.
func (p TrackPayload) ToTrack() Track {
	return Track{
		SunoID:    p.ID,
		Title:     p.Title,
		AudioURL:  p.AudioURL,
		StreamURL: p.StreamURL,
		ImageURL:  p.ImageURL,
		Duration:  p.Duration,
		Prompt:    p.Prompt,
		ModelName: p.ModelName,
		Tags:      p.Tags,
	}
}

// Options configures the Suno client. A nil key pool enables simulation mode.
type Options struct {
	Keys        *keypool.Pool
	BaseURL     string
	Model       string
	CallbackURL string
	HTTPClient  *http.Client
	Logger      *infra.Logger
	// SimDelay is the simulated generation time; defaults to 3s.
	SimDelay time.Duration
}

// Client submits music generation jobs and checks their status.
type Client struct {
	keys        *keypool.Pool
	baseURL     string
	model       string
	callbackURL string
	httpClient  *http.Client
	logger      *infra.Logger
	simDelay    time.Duration
}

type generateRequest struct {
	Prompt              string  `json:"prompt"`
	Style               string  `json:"style"`
	Title               string  `json:"title"`
	CustomMode          bool    `json:"customMode"`
	Instrumental        bool    `json:"instrumental"`
	Model               string  `json:"model"`
	CallBackURL         string  `json:"callBackUrl"`
	StyleWeight         float64 `json:"styleWeight"`
	WeirdnessConstraint float64 `json:"weirdnessConstraint"`
	AudioWeight         float64 `json:"audioWeight"`
}

type generateResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type taskData struct {
	TaskID string `json:"taskId"`
}

type statusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Response struct {
			SunoData []TrackPayload `json:"sunoData"`
		} `json:"response"`
	} `json:"data"`
}

// NewClient constructs a Suno client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sunoapi.org"
	}
	model := opts.Model
	if model == "" {
		model = "V3_5"
	}
	simDelay := opts.SimDelay
	if simDelay == 0 {
		simDelay = 3 * time.Second
	}
	return &Client{
		keys:        opts.Keys,
		baseURL:     baseURL,
		model:       model,
		callbackURL: opts.CallbackURL,
		httpClient:  httpClient,
		logger:      opts.Logger,
		simDelay:    simDelay,
	}
}

// Simulating reports whether the client runs without provider credentials.
func (c *Client) Simulating() bool { return c.keys == nil }

// Generate submits a music generation job. Three outcomes:
//   - no credentials: simulated immediate result
//   - provider accepts asynchronously: ModeDeferred with the task id
//   - provider returns tracks directly: ModeImmediate with those tracks
//
// Provider failures degrade to simulation instead of erroring; the rest of
// the dream must not be held hostage by the music provider.
func (c *Client) Generate(ctx context.Context, title, description string) (*Result, error) {
	if c.keys == nil {
		if c.logger != nil {
			c.logger.Info().Msg("music: no suno api key, simulating generation")
		}
		return c.simulate(ctx, title, description)
	}

	result, err := c.submit(ctx, title, description)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("music: provider error, falling back to simulation")
		}
		return c.simulate(ctx, title, description)
	}
	return result, nil
}

func (c *Client) submit(ctx context.Context, title, description string) (*Result, error) {
	prompt := Prompt(title, description)
	genre := Genre(description)

	payload := generateRequest{
		Prompt:              prompt,
		Style:               genre,
		Title:               title + " - Theme Song",
		CustomMode:          true,
		Instrumental:        false,
		Model:               c.model,
		CallBackURL:         c.callbackURL,
		StyleWeight:         0.65,
		WeirdnessConstraint: 0.65,
		AudioWeight:         0.65,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var parsed generateResponse
	err = c.keys.ExecuteWithFallback(ctx, func(ctx context.Context, apiKey string) error {
		return c.post(ctx, apiKey, "/api/v1/generate", body, &parsed)
	})
	if err != nil {
		return nil, err
	}

	base := Result{
		Title:       title + " - Theme Song",
		Genre:       genre,
		Prompt:      prompt,
		Duration:    30,
		Description: fmt.Sprintf("%s theme song for: %s", genre, title),
	}

	// Task-based acceptance: completion arrives via callback or polling.
	var task taskData
	if parsed.Code == 200 && len(parsed.Data) > 0 {
		if json.Unmarshal(parsed.Data, &task) == nil && task.TaskID != "" {
			base.Mode = ModeDeferred
			base.TaskID = task.TaskID
			return &base, nil
		}
	}

	// Direct track responses (rare sync path).
	var tracks []TrackPayload
	if len(parsed.Data) > 0 && json.Unmarshal(parsed.Data, &tracks) == nil && len(tracks) > 0 {
		base.Mode = ModeImmediate
		base.TaskID = tracks[0].ID
		base.Description = fmt.Sprintf("%s theme song: %s", genre, firstNonEmpty(tracks[0].Title, title))
		for _, p := range tracks {
			base.Tracks = append(base.Tracks, p.ToTrack())
		}
		if tracks[0].Duration > 0 {
			base.Duration = int(tracks[0].Duration)
		}
		return &base, nil
	}

	return nil, fmt.Errorf("unexpected suno response format (code %d, msg %q)", parsed.Code, parsed.Msg)
}

// CheckStatus polls the task status endpoint for a deferred job.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (*StatusResult, error) {
	if c.keys == nil {
		return nil, fmt.Errorf("music: suno api key not configured")
	}

	var parsed statusResponse
	err := c.keys.ExecuteWithFallback(ctx, func(ctx context.Context, apiKey string) error {
		return c.get(ctx, apiKey, "/api/v1/generate/record-info?taskId="+taskID, &parsed)
	})
	if err != nil {
		return nil, err
	}
	if parsed.Code != 200 {
		return &StatusResult{State: StatePending, Detail: parsed.Msg}, nil
	}

	tracks := parsed.Data.Response.SunoData
	var completed []Track
	for _, p := range tracks {
		if p.Status == "SUCCESS" && p.AudioURL != "" {
			completed = append(completed, p.ToTrack())
		}
	}
	if len(completed) > 0 {
		return &StatusResult{State: StateSucceeded, Tracks: completed}, nil
	}
	for _, p := range tracks {
		switch p.Status {
		case "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED", "SENSITIVE_WORD_ERROR":
			return &StatusResult{State: StateFailed, Detail: p.Status}, nil
		}
	}
	return &StatusResult{State: StatePending}, nil
}

func (c *Client) simulate(ctx context.Context, title, description string) (*Result, error) {
	select {
	case <-time.After(c.simDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	genre := Genre(description)
	return &Result{
		Mode:        ModeImmediate,
		Title:       title + " - Theme Song",
		Description: fmt.Sprintf("Atmospheric %s theme song inspired by: %s", strings.ToLower(genre), description),
		Genre:       genre,
		Prompt:      Prompt(title, description),
		Duration:    rand.Intn(61) + 30,
		Simulated:   true,
	}, nil
}

func (c *Client) post(ctx context.Context, apiKey, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, apiKey, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &keypool.APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode suno response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

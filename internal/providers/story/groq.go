// Package story generates short stories from dream prompts via the Groq
// chat-completions API.
package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/infra"
	"server/internal/infra/keypool"
)

// ErrNoKeys indicates the client was configured without credentials.
var ErrNoKeys = errors.New("story: no groq api keys configured")

const systemPrompt = "You are a creative storyteller who specializes in transforming dreams " +
	"and abstract ideas into compelling narratives. Write in an engaging, descriptive style " +
	"that captures the surreal and magical nature of dreams."

// Options configures the Groq story client.
type Options struct {
	Keys       *keypool.Pool
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the Groq chat-completions endpoint and post-processes the
// result into a story artifact.
type Client struct {
	keys       *keypool.Pool
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Result is the completed story artifact.
type Result struct {
	Content   string
	Genre     string
	WordCount int
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a story client. Keys may be nil; Generate then fails
// until credentials are configured.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com"
	}
	model := opts.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &Client{
		keys:       opts.Keys,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Generate blocks until the provider returns the full story text, then
// derives genre and word count. Provider errors propagate; credential errors
// are retried across the key pool first.
func (c *Client) Generate(ctx context.Context, title, description string) (*Result, error) {
	if c.keys == nil {
		return nil, ErrNoKeys
	}

	prompt := buildPrompt(title, description)
	var content string
	err := c.keys.ExecuteWithFallback(ctx, func(ctx context.Context, apiKey string) error {
		text, err := c.complete(ctx, apiKey, prompt)
		if err != nil {
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("story generation: %w", err)
	}

	return &Result{
		Content:   content,
		Genre:     Genre(description),
		WordCount: len(strings.Fields(content)),
	}, nil
}

func (c *Client) complete(ctx context.Context, apiKey, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   2000,
		Temperature: 0.8,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/openai/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &keypool.APIError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode groq response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", errors.New("groq returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildPrompt(title, description string) string {
	return fmt.Sprintf(`Transform this dream/idea into an engaging short story:

Title: %s
Description: %s

Please create a captivating short story (800-1200 words) that brings this dream to life. Include:
- Rich, vivid descriptions
- Character development
- A clear narrative arc
- Imaginative elements that capture the dream-like quality
- An engaging beginning, middle, and end

Make it feel magical and immersive, as if the reader is experiencing the dream themselves.

Story:`, title, description)
}

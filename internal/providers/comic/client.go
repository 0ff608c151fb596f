// Package comic calls the external comic strip generation service. The
// service composes character descriptions and panels, renders one strip image
// and returns its URL. There is no fallback: if the service is unreachable or
// rejects the request, comic generation fails.
package comic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/infra"
)

// Options configures the comic service client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client wraps the comic generation HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Result is the completed comic artifact: one strip image plus the ordered
// panel breakdown. Every panel shares the strip URL.
type Result struct {
	Title       string
	Description string
	ComicURL    string
	Style       string
	Panels      []Panel
}

// Panel is one panel of the generated strip.
type Panel struct {
	PanelNumber int    `json:"panelNumber"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

type generateRequest struct {
	Story string `json:"story"`
}

type generateResponse struct {
	Success               bool    `json:"success"`
	ComicURL              string  `json:"comic_url"`
	Panels                []Panel `json:"panels"`
	CharactersDescription string  `json:"characters_description"`
	Style                 string  `json:"style"`
	Error                 string  `json:"error"`
}

// NewClient constructs a comic service client. Comic generation can take a
// while (panel prompts plus image rendering), hence the long default timeout.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Generate blocks until the comic service returns the rendered strip.
func (c *Client) Generate(ctx context.Context, title, description string) (*Result, error) {
	body, err := json.Marshal(generateRequest{Story: title + ": " + description})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-comic", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("comic service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("comic service error: %d %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode comic response: %w", err)
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "comic generation failed"
		}
		return nil, fmt.Errorf("comic service: %s", msg)
	}

	if c.logger != nil {
		c.logger.Info().Str("comic_url", parsed.ComicURL).Int("panels", len(parsed.Panels)).Msg("comic: strip generated")
	}

	return &Result{
		Title:       title + " - Comic Strip",
		Description: parsed.CharactersDescription,
		ComicURL:    parsed.ComicURL,
		Style:       parsed.Style,
		Panels:      parsed.Panels,
	}, nil
}

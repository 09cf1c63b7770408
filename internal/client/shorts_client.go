package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/model"
)

const processYoutubePath = "/process-youtube"

// ShortsGenerator defines the shorts operation used by the workflow
type ShortsGenerator interface {
	GenerateShorts(ctx context.Context, videoURL string) ([]model.ShortClip, error)
}

// ShortsClient submits a YouTube URL and receives generated short clips.
type ShortsClient struct {
	httpClient *http.Client
	baseURL    string
}

type shortsResponse struct {
	Shorts *[]shortEntry `json:"shorts"`
}

type shortEntry struct {
	URL    string `json:"url"`
	Script string `json:"script"`
}

// NewShortsClient creates a client bound to the configured backend origin
func NewShortsClient(cfg *config.BackendConfig) *ShortsClient {
	return &ShortsClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.ShortsTimeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// GenerateShorts posts the URL as form field "url". Clip order follows the server.
func (c *ShortsClient) GenerateShorts(ctx context.Context, videoURL string) ([]model.ShortClip, error) {
	const op = "generate shorts"

	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return nil, Validation(op, "url is required")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("url", videoURL); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processYoutubePath, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serverError(op, resp.StatusCode, respBody)
	}

	var parsed shortsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, protocolError(op, "malformed JSON response")
	}
	if parsed.Shorts == nil {
		return nil, protocolError(op, `response has no "shorts" field`)
	}

	clips := make([]model.ShortClip, 0, len(*parsed.Shorts))
	for _, s := range *parsed.Shorts {
		clips = append(clips, model.ShortClip{
			VideoURL: c.resolve(s.URL),
			Script:   s.Script,
		})
	}

	return clips, nil
}

// resolve combines a served path with the backend origin. Absolute URLs pass through.
func (c *ShortsClient) resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

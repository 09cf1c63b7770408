package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/model"
)

const enhancePath = "/enhance-audio"

const (
	defaultMaxResponseMB = 200
	errorBodyLimit       = 4 << 10
)

// SourceStore turns a payload into a locally playable source reference.
type SourceStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (*model.Source, error)
}

// AudioEnhancer defines the enhancement operation used by the workflow
type AudioEnhancer interface {
	Enhance(ctx context.Context, file *model.UploadedFile) (*model.Source, error)
}

// EnhanceClient uploads audio to the backend and receives the enhanced recording.
type EnhanceClient struct {
	httpClient *http.Client
	baseURL    string
	store      SourceStore
	maxBytes   int64
}

// NewEnhanceClient creates a client bound to the configured backend origin
func NewEnhanceClient(cfg *config.BackendConfig, store SourceStore) *EnhanceClient {
	maxMB := cfg.MaxResponseMB
	if maxMB <= 0 {
		maxMB = defaultMaxResponseMB
	}
	return &EnhanceClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.EnhanceTimeout) * time.Second,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		store:    store,
		maxBytes: int64(maxMB) << 20,
	}
}

// Enhance sends the file as multipart field "file" and stores the audio that comes back.
func (c *EnhanceClient) Enhance(ctx context.Context, file *model.UploadedFile) (*model.Source, error) {
	const op = "enhance"

	body, contentType, err := encodeFilePart(file)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+enhancePath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "audio/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, serverError(op, resp.StatusCode, errBody)
	}

	mediaType, err := audioMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, protocolError(op, err.Error())
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, networkError(op, err)
	}
	if len(respBody) == 0 {
		return nil, protocolError(op, "empty response body")
	}
	if int64(len(respBody)) > c.maxBytes {
		return nil, protocolError(op, fmt.Sprintf("response exceeds %d bytes", c.maxBytes))
	}

	src, err := c.store.Put(ctx, "enhanced_"+file.Name, mediaType, respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to store enhanced audio: %w", err)
	}

	return src, nil
}

// HealthCheck reports whether the backend origin answers at all
func (c *EnhanceClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// IsConfigured returns true if the client has a backend origin
func (c *EnhanceClient) IsConfigured() bool {
	return c.baseURL != ""
}

func encodeFilePart(file *model.UploadedFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partType := file.ContentType
	if partType == "" {
		partType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", partType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

// audioMediaType returns the bare media type if the header declares audio
func audioMediaType(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("missing content type")
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q", header)
	}
	if !strings.HasPrefix(mediaType, "audio/") {
		return "", fmt.Errorf("expected audio content, got %q", mediaType)
	}
	return mediaType, nil
}

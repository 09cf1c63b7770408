package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/media"
	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/view"
	ws "github.com/contentenhancer/web/internal/websocket"
)

const (
	testSessionSecret = "test-secret-for-handlers"
	testCookieName    = "ce_session"
)

// fakeBackend stands in for the enhancement service
type fakeBackend struct {
	enhanceCalls atomic.Int32
	shortsCalls  atomic.Int32

	enhanceType string
	enhanceBody []byte
	gate        chan struct{}
	shortsGate  chan struct{}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		w.WriteHeader(http.StatusOK)
	case "/enhance-audio":
		b.enhanceCalls.Add(1)
		if b.gate != nil {
			<-b.gate
		}
		w.Header().Set("Content-Type", b.enhanceType)
		_, _ = w.Write(b.enhanceBody)
	case "/process-youtube":
		b.shortsCalls.Add(1)
		if b.shortsGate != nil {
			<-b.shortsGate
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"shorts":[{"url":"/shorts/a.mp4","script":"first"},{"url":"/shorts/b.mp4","script":"second"}]}`)
	default:
		http.NotFound(w, r)
	}
}

type testApp struct {
	app      *fiber.App
	backend  *fakeBackend
	sessions *session.Manager
	registry *media.Registry
	auth     *middleware.SessionMiddleware
}

// setupApp builds the app the way main.go does, against a fake backend and the
// in-memory registry.
func setupApp(t *testing.T, backend *fakeBackend) *testApp {
	t.Helper()

	if backend.enhanceType == "" {
		backend.enhanceType = "audio/mpeg"
		backend.enhanceBody = []byte("ID3 enhanced audio")
	}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "3000", Env: "test", LogLevel: "info", BodyLimitMB: 64},
		Backend:   config.BackendConfig{BaseURL: srv.URL, EnhanceTimeout: 5, ShortsTimeout: 5},
		Upload:    config.UploadConfig{MaxFiles: 1, MaxSizeMB: 50, AcceptedExtensions: []string{".wav", ".mp3", ".m4a", ".aac"}},
		Session:   config.SessionConfig{Secret: testSessionSecret, CookieName: testCookieName, IdleTimeout: 60},
		RateLimit: config.RateLimitConfig{EnhancePerHour: 10000, ShortsPerHour: 10000},
		Storage:   config.StorageConfig{Driver: "memory"},
	}

	registry := media.NewRegistry("/media")
	enhanceClient := client.NewEnhanceClient(&cfg.Backend, registry)
	shortsClient := client.NewShortsClient(&cfg.Backend)

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	renderer, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}

	sessions := session.NewManager(session.Deps{
		Store:     registry,
		Enhancer:  enhanceClient,
		Shorts:    shortsClient,
		Upload:    &cfg.Upload,
		Publisher: NewPublisher(hub, renderer),
	}, time.Hour)
	t.Cleanup(sessions.Close)

	auth := middleware.NewSessionMiddleware(testSessionSecret, testCookieName, time.Hour, false, session.NewID)

	app, err := NewApp(Deps{
		Config:      cfg,
		Sessions:    sessions,
		Hub:         hub,
		Renderer:    renderer,
		Registry:    registry,
		Backend:     enhanceClient,
		SessionAuth: auth,
		RateLimiter: middleware.NewRateLimiter(nil),
		Validator:   validator.New(),
	})
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	return &testApp{app: app, backend: backend, sessions: sessions, registry: registry, auth: auth}
}

// newSession loads the page once and returns the session cookie it was issued.
func (ta *testApp) newSession(t *testing.T) string {
	t.Helper()
	resp := ta.do(t, http.MethodGet, "/", nil, "", "")
	assertStatus(t, resp, http.StatusOK)
	for _, c := range resp.Cookies() {
		if c.Name == testCookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie issued")
	return ""
}

// wait blocks until every request started by the cookie's session has completed.
func (ta *testApp) wait(t *testing.T, cookie string) *session.Session {
	t.Helper()
	claims, err := ta.auth.Verify(cookie)
	if err != nil {
		t.Fatalf("invalid session cookie: %v", err)
	}
	sess, ok := ta.sessions.Lookup(claims.SessionID)
	if !ok {
		t.Fatalf("session %s not found", claims.SessionID)
	}
	sess.Controller.Wait()
	return sess
}

func (ta *testApp) do(t *testing.T, method, path string, body io.Reader, contentType, cookie string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != "" {
		req.Header.Set("Cookie", testCookieName+"="+cookie)
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

// multipartFiles builds a form with one "file" part per entry.
func multipartFiles(t *testing.T, parts ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, p.name))
		h.Set("Content-Type", p.contentType)
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		_, _ = part.Write(p.data)
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func urlForm(t *testing.T, value string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("url", value)
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func wavFile(name string) filePart {
	data := append([]byte("RIFF\x00\x00\x00\x00WAVEfmt "), make([]byte, 1024)...)
	return filePart{name: name, contentType: "audio/wav", data: data}
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// parseUpdate decodes a state response.
func parseUpdate(t *testing.T, resp *http.Response) view.Update {
	t.Helper()
	body := readBody(t, resp)
	var up view.Update
	if err := json.Unmarshal([]byte(body), &up); err != nil {
		t.Fatalf("failed to parse update: %v\nbody: %s", err, body)
	}
	return up
}

func sectionHTML(up view.Update, id string) string {
	for _, s := range up.Sections {
		if s.ID == id {
			return s.HTML
		}
	}
	return ""
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := parseJSON(t, resp)
	detail, _ := result["error"].(map[string]interface{})
	code, _ := detail["code"].(string)
	return code
}

func contains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("expected %q in:\n%s", needle, haystack)
	}
}

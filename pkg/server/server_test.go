package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/promptgate/pkg/classify"
	"github.com/zen-systems/promptgate/pkg/fallback"
	"github.com/zen-systems/promptgate/pkg/imagen"
	"github.com/zen-systems/promptgate/pkg/metrics"
	"github.com/zen-systems/promptgate/pkg/orchestrator"
	"github.com/zen-systems/promptgate/pkg/provider"
	"github.com/zen-systems/promptgate/pkg/registry"
	"github.com/zen-systems/promptgate/pkg/router"
	"github.com/zen-systems/promptgate/pkg/safety"
	"github.com/zen-systems/promptgate/pkg/storage"
)

func testServer(t *testing.T, gate *safety.Gate, opts ...Option) *Server {
	t.Helper()
	cat := &registry.Catalog{
		Default: "general-1",
		Models: []registry.Model{
			{ID: "general-1", Name: "General One", Provider: "groq", Category: registry.CategoryGeneral, ContextWindow: 128000, Priority: 10},
			{ID: "math-1", Name: "Math One", Provider: "groq", Category: registry.CategoryMath, ContextWindow: 128000, Priority: 10},
		},
	}
	reg, err := registry.New(cat, func(string) bool { return true })
	require.NoError(t, err)

	gens := map[string]provider.Generator{"groq": provider.NewMockGeneratorNamed("groq")}
	engine := fallback.New(reg, gens, fallback.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, nil)

	cls := classify.New()
	if gate == nil {
		gate = safety.NewGate(safety.Config{Enabled: false}, nil)
	}
	m := metrics.New(prometheus.NewRegistry())
	orch := orchestrator.New(gate, cls,
		router.NewAutoRouter(reg, cls),
		router.NewCommandRouter(reg),
		engine, m, nil)

	return New(":0", orch, reg, m, nil, time.Second, opts...)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatEndpoint(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec := postJSON(t, h, "/chat", `{"message":"what is the capital of France","userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "general-1", body["modelUsed"])
	assert.Equal(t, true, body["autoRouted"])
	assert.NotEmpty(t, body["content"])
	assert.NotNil(t, body["responseTimeMs"])

	classification := body["classification"].(map[string]any)
	assert.Equal(t, "general", classification["category"])
}

func TestChatValidationOrder(t *testing.T) {
	h := testServer(t, nil).Handler()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"message": `, "INVALID_REQUEST"},
		{"missing message", `{}`, "MISSING_MESSAGE"},
		{"null message", `{"message": null}`, "MISSING_MESSAGE"},
		{"empty message", `{"message": ""}`, "EMPTY_MESSAGE"},
		{"too long", fmt.Sprintf(`{"message": %q}`, strings.Repeat("a", 10001)), "MESSAGE_TOO_LONG"},
		{"bad category", `{"message":"hi","settings":{"category":"poetry"}}`, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error"])
		})
	}
}

func TestChatSafetyViolationReturns400(t *testing.T) {
	verdict := "SAFE: no\nCATEGORY: HATE_SPEECH\nCONFIDENCE: 0.9\nSEVERITY: HIGH\nDESCRIPTION: flagged"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, verdict)
	}))
	defer srv.Close()
	gate := safety.NewGate(safety.Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"}, nil)

	h := testServer(t, gate).Handler()
	rec := postJSON(t, h, "/chat", `{"message":"bad content"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SAFETY_VIOLATION", decodeBody(t, rec)["error"])
}

func TestHealthz(t *testing.T) {
	h := testServer(t, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestModelsEndpoint(t *testing.T) {
	h := testServer(t, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	models := decodeBody(t, rec)["models"].([]any)
	require.Len(t, models, 2)
	first := models[0].(map[string]any)
	assert.Equal(t, "general-1", first["id"])
	assert.Equal(t, true, first["default"])
	assert.Equal(t, true, first["available"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := testServer(t, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDAssignedAndHonored(t *testing.T) {
	h := testServer(t, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "given-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-Id"))
}

func TestImagesEndpoint(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := storage.NewFileStore(fs, "/images", "http://localhost/images")
	pipeline := imagen.New(nil,
		[]imagen.RenderStep{{Renderer: provider.NewMockRenderer("huggingface", []byte("img")), Model: "flux"}},
		store, nil)

	h := testServer(t, nil, WithImagePipeline(pipeline)).Handler()
	rec := postJSON(t, h, "/images", `{"prompt":"a cat","userId":"u1","style":"anime"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "huggingface", body["provider"])
	assert.Equal(t, "flux", body["model"])
	assert.NotEmpty(t, body["url"])
}

func TestImagesEndpointMissingPrompt(t *testing.T) {
	store := storage.NewFileStore(afero.NewMemMapFs(), "/images", "http://localhost")
	pipeline := imagen.New(nil,
		[]imagen.RenderStep{{Renderer: provider.NewMockRenderer("huggingface", []byte("img")), Model: "flux"}},
		store, nil)

	h := testServer(t, nil, WithImagePipeline(pipeline)).Handler()
	rec := postJSON(t, h, "/images", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_MESSAGE", decodeBody(t, rec)["error"])
}

func TestImagesEndpointNotConfigured(t *testing.T) {
	h := testServer(t, nil).Handler()
	rec := postJSON(t, h, "/images", `{"prompt":"a cat"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImagesAllProvidersDownReturns503(t *testing.T) {
	store := storage.NewFileStore(afero.NewMemMapFs(), "/images", "http://localhost")
	pipeline := imagen.New(nil,
		[]imagen.RenderStep{{Renderer: provider.NewFailingRenderer("huggingface", fmt.Errorf("down")), Model: "flux"}},
		store, nil)

	h := testServer(t, nil, WithImagePipeline(pipeline)).Handler()
	rec := postJSON(t, h, "/images", `{"prompt":"a cat"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ALL_MODELS_FAILED", decodeBody(t, rec)["error"])
}

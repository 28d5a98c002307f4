package safety

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moderationServer(calls *atomic.Int64, verdict string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, verdict)
	}))
}

func TestDisabledGateSkipsNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := moderationServer(&calls, "SAFE: no\nCATEGORY: VIOLENCE")
	defer srv.Close()

	gate := NewGate(Config{Enabled: false, Endpoint: srv.URL, APIKey: "k"}, nil)

	for _, check := range []func(context.Context, Request) (*Verdict, error){gate.CheckInput, gate.CheckOutput} {
		verdict, err := check(context.Background(), Request{Content: "anything at all"})
		require.NoError(t, err)
		assert.True(t, verdict.Safe)
		assert.Empty(t, verdict.Violations)
		assert.Equal(t, 1.0, verdict.Confidence)
	}
	assert.Equal(t, int64(0), calls.Load())
}

func TestSafeContentPasses(t *testing.T) {
	var calls atomic.Int64
	srv := moderationServer(&calls,
		"SAFE: yes\nCATEGORY: NONE\nCONFIDENCE: 0.99\nSEVERITY: NONE\nDESCRIPTION: benign")
	defer srv.Close()

	gate := NewGate(Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"}, nil)
	verdict, err := gate.CheckInput(context.Background(), Request{Content: "hello"})
	require.NoError(t, err)
	assert.True(t, verdict.Safe)
	assert.Empty(t, verdict.Violations)
	assert.Equal(t, 0.99, verdict.Confidence)
	assert.Equal(t, int64(1), calls.Load())
}

func TestUnsafeContentBlockedAndRecorded(t *testing.T) {
	var calls atomic.Int64
	srv := moderationServer(&calls,
		"SAFE: no\nCATEGORY: HATE_SPEECH\nCONFIDENCE: 0.9\nSEVERITY: HIGH\nDESCRIPTION: targeted slur")
	defer srv.Close()

	gate := NewGate(Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"}, nil)
	verdict, err := gate.CheckInput(context.Background(), Request{Content: "bad", UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, verdict.Safe)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, CategoryHateSpeech, verdict.Violations[0].Category)
	assert.Equal(t, SeverityHigh, verdict.Violations[0].Severity)
	assert.Equal(t, "targeted slur", verdict.Violations[0].Description)

	recorded := gate.History().For("user-1")
	require.Len(t, recorded, 1)
	assert.Equal(t, CategoryHateSpeech, recorded[0].Category)
}

func TestConfidenceClamped(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"SAFE: yes\nCONFIDENCE: 1.7", 1.0},
		{"SAFE: yes\nCONFIDENCE: -0.3", 0.0},
		{"SAFE: yes\nCONFIDENCE: 0.42", 0.42},
		{"SAFE: yes\nCONFIDENCE: garbage", 0.95},
	}
	for _, tt := range tests {
		v := parseVerdict(tt.raw)
		assert.Equal(t, tt.want, v.Confidence, "raw %q", tt.raw)
	}
}

func TestParseVerdictDefaults(t *testing.T) {
	v := parseVerdict("SAFE: no\nCATEGORY: VIOLENCE")
	assert.False(t, v.Safe)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, SeverityLow, v.Violations[0].Severity)
	assert.Equal(t, "Content violates VIOLENCE policy", v.Violations[0].Description)

	// Unsafe with no recognized category yields no violation entry.
	v = parseVerdict("SAFE: no\nCATEGORY: MADE_UP")
	assert.False(t, v.Safe)
	assert.Empty(t, v.Violations)
}

func TestFailOpenOnBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gate := NewGate(Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"}, nil)
	verdict, err := gate.CheckInput(context.Background(), Request{Content: "hello"})
	require.NoError(t, err)
	assert.True(t, verdict.Safe)
	assert.Equal(t, 1.0, verdict.Confidence)
}

func TestFailClosedOnBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gate := NewGate(Config{Enabled: true, FailClosed: true, Endpoint: srv.URL, APIKey: "k"}, nil)
	_, err := gate.CheckInput(context.Background(), Request{Content: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety check unavailable")
}

func TestFailOpenOnMissingAPIKey(t *testing.T) {
	var calls atomic.Int64
	srv := moderationServer(&calls, "SAFE: yes")
	defer srv.Close()

	gate := NewGate(Config{Enabled: true, Endpoint: srv.URL}, nil)
	verdict, err := gate.CheckInput(context.Background(), Request{Content: "hi"})
	require.NoError(t, err)
	assert.True(t, verdict.Safe)
	assert.Equal(t, int64(0), calls.Load())

	gate = NewGate(Config{Enabled: true, FailClosed: true, Endpoint: srv.URL}, nil)
	_, err = gate.CheckInput(context.Background(), Request{Content: "hi"})
	assert.Error(t, err)
}

func TestFailOpenOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	gate := NewGate(Config{
		Enabled:  true,
		Endpoint: srv.URL,
		APIKey:   "k",
		Timeout:  50 * time.Millisecond,
	}, nil)
	verdict, err := gate.CheckInput(context.Background(), Request{Content: "hello"})
	require.NoError(t, err)
	assert.True(t, verdict.Safe)
}

func TestContextPrependedToPrompt(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"SAFE: yes"}}]}`)
	}))
	defer srv.Close()

	gate := NewGate(Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"}, nil)
	_, err := gate.CheckInput(context.Background(), Request{Content: "check me", Context: "prior turn"})
	require.NoError(t, err)
	assert.Contains(t, gotBody, "Context: prior turn")
	assert.Contains(t, gotBody, "Content to check: check me")
}

func TestHistoryCap(t *testing.T) {
	h := NewHistory()
	for i := 0; i < historyCap+5; i++ {
		h.Record("user-1", Violation{
			Category:    CategoryViolence,
			Severity:    SeverityLow,
			Description: fmt.Sprintf("violation %d", i),
		}, CheckInput)
	}

	got := h.For("user-1")
	require.Len(t, got, historyCap)
	// Oldest entries were evicted.
	assert.Equal(t, "violation 5", got[0].Description)
	assert.Equal(t, fmt.Sprintf("violation %d", historyCap+4), got[historyCap-1].Description)
}

func TestHistoryConcurrentUsers(t *testing.T) {
	h := NewHistory()
	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", u)
			for i := 0; i < 50; i++ {
				h.Record(user, Violation{Category: CategoryHarassment, Severity: SeverityLow}, CheckOutput)
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < 8; u++ {
		assert.Len(t, h.For(fmt.Sprintf("user-%d", u)), 50)
	}
}

func TestHistoryIgnoresEmptyUser(t *testing.T) {
	h := NewHistory()
	h.Record("", Violation{Category: CategoryViolence}, CheckInput)
	assert.Empty(t, h.For(""))
}

package aisvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/suggestion"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestClient(url string) *openAIClient {
	return NewOpenAIClient(core.OpenAIConfig{
		APIKey:    "sk-test",
		Model:     "gpt-test",
		BaseURL:   url,
		MaxTokens: 100,
		Timeout:   time.Second,
	}, nopLogger{}).(*openAIClient)
}

var prompt = suggestion.Prompt{Kind: suggestion.KindGoals, Class: core.ClassLKG, System: "sys", User: "usr"}

func TestOpenAIClientSuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, completionsPath, r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 100, req.MaxTokens)
		assert.Equal(t, []message{{Role: "system", Content: "sys"}, {Role: "user", Content: "usr"}}, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1. Count to 10"}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Suggest(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "1. Count to 10", text)
}

func TestOpenAIClientErrors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantUnavailable bool
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"bad model"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, wantUnavailable: true},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantUnavailable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Suggest(context.Background(), prompt)
			require.Error(t, err)
			assert.Equal(t, tt.wantUnavailable, errors.Cause(err) == core.ErrUnavailable)
		})
	}
}

func TestOpenAIClientBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < maxConsecutiveFailures; i++ {
		_, err := c.Suggest(context.Background(), prompt)
		assert.Equal(t, core.ErrUnavailable, errors.Cause(err))
	}
	assert.Equal(t, gobreaker.StateOpen, c.cb.State())

	// open: fails fast without calling the provider
	_, err := c.Suggest(context.Background(), prompt)
	assert.Equal(t, core.ErrUnavailable, errors.Cause(err))
	assert.Equal(t, int32(maxConsecutiveFailures), atomic.LoadInt32(&calls))
}

func TestBadRequestsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < maxConsecutiveFailures+1; i++ {
		_, _ = c.Suggest(context.Background(), prompt)
	}
	assert.Equal(t, gobreaker.StateClosed, c.cb.State())
}

func TestCancelledRequestsDoNotTrip(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL)
	for i := 0; i < maxConsecutiveFailures+1; i++ {
		_, err := c.Suggest(ctx, prompt)
		assert.Equal(t, context.Canceled, errors.Cause(err))
	}
	assert.Equal(t, gobreaker.StateClosed, c.cb.State())
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestOfflineSuggester(t *testing.T) {
	s := NewOfflineSuggester()
	ctx := context.Background()

	text, err := s.Suggest(ctx, suggestion.Prompt{Kind: suggestion.KindActivities, Class: core.ClassNursery, Topic: "rain"})
	require.NoError(t, err)
	assert.Contains(t, text, "Theme: rain")
	assert.Contains(t, text, "1. Sensory tray")

	text, err = s.Suggest(ctx, suggestion.Prompt{Kind: suggestion.KindGoals})
	require.NoError(t, err)
	assert.Contains(t, text, "Recognises and sounds out 15 letters")

	text, err = s.Suggest(ctx, suggestion.Prompt{Kind: suggestion.KindRemarks})
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	_, err = s.Suggest(ctx, suggestion.Prompt{Kind: "poems"})
	assert.Error(t, err)
}

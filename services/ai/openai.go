package aisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/suggestion"
)

const (
	completionsPath = "/chat/completions"
	temperature     = 0.7

	// the breaker opens after this many consecutive provider failures
	maxConsecutiveFailures = 3
	breakerOpenTimeout     = 30 * time.Second
)

type (
	message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
		Temperature float64   `json:"temperature"`
	}

	chatResponse struct {
		Choices []struct {
			Message message `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error,omitempty"`
	}

	// statusError is a non-2xx provider response.
	statusError struct {
		code int
		msg  string
	}
)

func (e *statusError) Error() string {
	return fmt.Sprintf("chat completions: status %d: %s", e.code, e.msg)
}

var errBadResponse = errors.New("chat completions: invalid response")

// failing reports whether the error means the provider is down (as opposed to a bad request).
// Requests cancelled by the caller do not count.
func failing(err error) bool {
	if err == nil {
		return false
	}
	switch errors.Cause(err) {
	case errBadResponse, context.Canceled, context.DeadlineExceeded:
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError ||
			se.code == http.StatusUnauthorized
	}
	return true
}

type openAIClient struct {
	apiKey    string
	url       string
	model     string
	maxTokens int
	client    *http.Client
	cb        *gobreaker.CircuitBreaker
	logger    core.Logger
}

var _ suggestion.Suggester = (*openAIClient)(nil)

// NewOpenAIClient returns a Suggester calling an OpenAI compatible chat completions endpoint.
// Calls go through a circuit breaker: while it is open, Suggest fails fast with core.ErrUnavailable.
func NewOpenAIClient(conf core.OpenAIConfig, logger core.Logger) suggestion.Suggester {
	c := &openAIClient{
		apiKey:    conf.APIKey,
		url:       conf.BaseURL + completionsPath,
		model:     conf.Model,
		maxTokens: conf.MaxTokens,
		client:    &http.Client{Timeout: conf.Timeout},
		logger:    logger,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return !failing(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
		},
	})
	return c
}

func (c *openAIClient) Suggest(ctx context.Context, prompt suggestion.Prompt) (string, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", errors.Wrap(core.ErrUnavailable, err.Error())
		}
		if failing(err) {
			c.logger.Error(fmt.Sprintf("requesting suggestion: %v", err), err)
			return "", errors.Wrap(core.ErrUnavailable, err.Error())
		}
		return "", err
	}
	return res.(string), nil
}

func (c *openAIClient) complete(ctx context.Context, prompt suggestion.Prompt) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshaling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "sending request")
		}
		return "", errors.Wrap(err, "sending request")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	var cr chatResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "reading response")
	}
	if err := json.Unmarshal(data, &cr); err != nil && resp.StatusCode < http.StatusBadRequest {
		return "", errors.Wrap(errBadResponse, err.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(resp.StatusCode)
		if cr.Error != nil && cr.Error.Message != "" {
			msg = cr.Error.Message
		}
		return "", &statusError{code: resp.StatusCode, msg: msg}
	}
	if len(cr.Choices) == 0 {
		return "", errors.Wrap(errBadResponse, "no choices returned")
	}
	return cr.Choices[0].Message.Content, nil
}

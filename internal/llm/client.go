package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

// CompletionRequest is one structured-output call to the model gateway.
// Event labels the call for metrics (e.g. "topic_extraction").
type CompletionRequest struct {
	System      string
	User        string
	Event       string
	MaxTokens   int
	Temperature float64
}

// Completion carries the raw model text plus token accounting.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Client abstracts the generative model used by extractor and scheduler.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// UsageRecorder receives latency and token counts per call.
type UsageRecorder interface {
	ObserveModelCall(event string, duration time.Duration, promptTokens, completionTokens int, success bool)
}

// Config wires the HTTP client to an OpenAI-compatible chat gateway.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// HTTPClient talks to an OpenAI-compatible /chat/completions endpoint.
type HTTPClient struct {
	cfg     Config
	http    *http.Client
	metrics UsageRecorder
	logger  *zap.Logger
}

// NewHTTPClient builds the gateway client.
func NewHTTPClient(cfg Config, metrics UsageRecorder, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete performs one chat call with a hard per-call timeout and maps
// gateway failures onto the model error kinds.
func (c *HTTPClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxOutputTokens
	}
	payload := chatRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode model request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build model request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Wrap(err, appErrors.ErrModelUnavailable.Code, appErrors.ErrModelUnavailable.Status, "model gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Wrap(err, appErrors.ErrModelUnavailable.Code, appErrors.ErrModelUnavailable.Status, "failed to read model response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Clone(appErrors.ErrModelRateLimited, "")
	case resp.StatusCode == http.StatusPaymentRequired:
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Clone(appErrors.ErrModelCreditsExhausted, "")
	case resp.StatusCode >= 500:
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Clone(appErrors.ErrModelUnavailable, fmt.Sprintf("model gateway returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Clone(appErrors.ErrModelInvalidOutput, fmt.Sprintf("model gateway returned %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		c.record(req.Event, time.Since(start), 0, 0, false)
		return nil, appErrors.Clone(appErrors.ErrModelInvalidOutput, "model gateway returned an empty completion")
	}

	latency := time.Since(start)
	c.record(req.Event, latency, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, true)
	c.logger.Debug("model_call",
		zap.String("event", req.Event),
		zap.Duration("latency", latency),
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens),
	)

	return &Completion{
		Content:          parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func (c *HTTPClient) record(event string, d time.Duration, promptTokens, completionTokens int, success bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveModelCall(event, d, promptTokens, completionTokens, success)
}

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// StripCodeFences removes conventional markdown fences so fenced JSON still
// parses.
func StripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if matches := codeFenceRe.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return content
}

// DecodeJSON strips code fences and unmarshals the model content into v.
func DecodeJSON(content string, v any) error {
	cleaned := StripCodeFences(content)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return appErrors.Wrap(err, appErrors.ErrModelInvalidOutput.Code, appErrors.ErrModelInvalidOutput.Status, "model output is not valid JSON")
	}
	return nil
}

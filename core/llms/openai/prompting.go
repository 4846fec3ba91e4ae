package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voialabs/callcore/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client generates conversational responses through an OpenAI-compatible
// chat-completions endpoint. Every call is a single bounded attempt: the
// caller supplies the deadline through ctx, and there are no internal
// retries, since a retried step would blow a live call's iteration budget.
type Client struct {
	apiKey  string
	model   string
	baseURL string

	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at a compatible endpoint (e.g. a proxy or
// an alternative provider).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiKey, model string, opts ...Option) *Client {
	client := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Prompt generates a response for the supplied history and system prompt.
// The system prompt must be non-empty; the adapter never fabricates one.
func (c *Client) Prompt(ctx context.Context, systemPrompt string, opts ...llms.PromptOption) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return "", fmt.Errorf("system prompt is required")
	}

	options := llms.PromptOptions{MaxTokens: llms.DefaultMaxTokens}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.history_turns", len(options.Turns)),
	)

	reqBody := requestBody{
		Model:       c.model,
		Messages:    toMessages(systemPrompt, options.Turns),
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		span.RecordError(err)
		return "", err
	}

	var response responseBody
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("error unmarshalling response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("response contained no text")
	}

	logger.DebugContext(ctx, "generated response", "model", c.model, "length", len(text))
	return text, nil
}

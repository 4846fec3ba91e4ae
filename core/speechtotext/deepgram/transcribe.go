package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest/interfaces"
	"github.com/voialabs/callcore/core/audio"
	"github.com/voialabs/callcore/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultBaseURL  = "https://api.deepgram.com/v1"
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"
)

// TranscriptionClient transcribes buffered call audio through Deepgram's
// pre-recorded listen endpoint. One request per utterance, no internal
// retries: the caller bounds each attempt with a context deadline.
type TranscriptionClient struct {
	apiKey  string
	baseURL string

	httpClient *http.Client
}

type Option func(*TranscriptionClient)

func WithBaseURL(baseURL string) Option {
	return func(c *TranscriptionClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *TranscriptionClient) {
		c.httpClient = httpClient
	}
}

func NewTranscriptionClient(apiKey string, opts ...Option) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey:  apiKey,
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

// Transcribe converts raw PCM to text. Empty audio and recognized-but-empty
// speech both yield an empty string, not an error.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audioBytes []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	if len(audioBytes) == 0 {
		return "", nil
	}

	options := speechtotext.TranscriptionOptions{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Language:     defaultLanguage,
		Model:        defaultModel,
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "transcribe audio")
	defer span.End()
	span.SetAttributes(
		attribute.Int("request.audio_bytes", len(audioBytes)),
		attribute.String("request.model", options.Model),
	)

	listenURL, err := url.Parse(c.baseURL + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.EncodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.Model)
	queryParams.Set("language", options.Language)
	queryParams.Set("smart_format", "true")
	listenURL.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listenURL.String(), bytes.NewReader(audioBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Token "+c.apiKey)

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

	var response api.PreRecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("error unmarshalling response body: %w", err)
	}

	transcript := firstTranscript(&response)
	logger.DebugContext(ctx, "transcription complete", "length", len(transcript))
	return transcript, nil
}

// firstTranscript pulls the top alternative of the first channel. A response
// with no recognized speech yields an empty string.
func firstTranscript(response *api.PreRecordedResponse) string {
	if len(response.Results.Channels) == 0 {
		return ""
	}
	channel := response.Results.Channels[0]
	if len(channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(channel.Alternatives[0].Transcript)
}

package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/voialabs/callcore/core/audio"
	"github.com/voialabs/callcore/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const defaultBaseURL = "https://api.deepgram.com/v1"

type deepgramVoice string

const (
	VoiceAsteria deepgramVoice = "aura-2-asteria-en"
	VoiceThalia  deepgramVoice = "aura-2-thalia-en"
	VoiceOrion   deepgramVoice = "aura-2-orion-en"
	VoiceArcas   deepgramVoice = "aura-2-arcas-en"

	defaultVoice = VoiceAsteria
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceAsteria, VoiceThalia, VoiceOrion, VoiceArcas}
}

// SpeechClient synthesizes speech through Deepgram's speak endpoint,
// requesting raw PCM at the call's sample rate so playback needs no
// transcoding. Single bounded attempt per call; the caller owns the
// deadline.
type SpeechClient struct {
	apiKey  string
	baseURL string
	voice   deepgramVoice

	httpClient *http.Client
}

type Option func(*SpeechClient)

func WithBaseURL(baseURL string) Option {
	return func(c *SpeechClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *SpeechClient) {
		c.httpClient = httpClient
	}
}

func NewSpeechClient(apiKey string, voice deepgramVoice, opts ...Option) (*SpeechClient, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	client := &SpeechClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		voice:   voice,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Synthesize converts text to raw audio. Empty text yields empty bytes, not
// an error.
func (c *SpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	options := texttospeech.SynthesisOptions{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Voice:        string(c.voice),
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(
		attribute.Int("request.text_length", len(text)),
		attribute.String("request.voice", options.Voice),
	)

	speakURL, err := url.Parse(c.baseURL + "/speak")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	queryParams := speakURL.Query()
	queryParams.Set("model", options.Voice)
	queryParams.Set("encoding", options.EncodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	queryParams.Set("container", "none")
	speakURL.RawQuery = queryParams.Encode()

	requestBodyBytes, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		span.RecordError(err)
		return nil, err
	}

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	logger.DebugContext(ctx, "synthesis complete", "audio_bytes", len(audioBytes))
	return audioBytes, nil
}

package orchestration

import (
	"context"
	"iter"

	"github.com/voialabs/callcore/core/audio"
	"github.com/voialabs/callcore/core/llms"
	"github.com/voialabs/callcore/core/session"
	"github.com/voialabs/callcore/core/speechtotext"
	"github.com/voialabs/callcore/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// Transport is the duplex audio channel to the caller. Connect, Disconnect
// and Hangup are best-effort on teardown; StreamInbound ends when the remote
// party disconnects.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Answer(ctx context.Context, channelID string) error
	StreamInbound(ctx context.Context, channelID string) iter.Seq2[[]byte, error]
	Play(ctx context.Context, channelID string, audioBytes []byte, encoding audio.EncodingInfo) error
	Hangup(ctx context.Context, channelID string) error
}

func WithTransport(client Transport) OrchestratorOption {
	return func(o *Orchestrator) { o.transport = client }
}

// SpeechToText transcribes a buffered audio segment. Empty audio or a
// no-speech result yields an empty string, not an error.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioBytes []byte, opts ...speechtotext.TranscriptionOption) (string, error)
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

// LLM generates the next assistant line from the system prompt and the full
// turn history. Adapters are stateless across calls.
type LLM interface {
	Prompt(ctx context.Context, systemPrompt string, opts ...llms.PromptOption) (string, error)
}

func WithLLMClient(client LLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

// TextToSpeech synthesizes a line of text into raw audio. Empty text yields
// empty bytes, not an error.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

func WithSessionStore(store session.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.store = store }
}

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) { o.config = config }
}

func WithEncodingInfo(encoding audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) {
		if !encoding.IsZero() {
			o.encoding = encoding
		}
	}
}

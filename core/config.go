package orchestration

import (
	"time"

	"github.com/voialabs/callcore/core/session"
)

const (
	// DefaultMaxTurns caps the number of caller utterances per call.
	DefaultMaxTurns = 5
	// DefaultMaxDuration caps total call length regardless of content.
	DefaultMaxDuration = 75 * time.Second
	// DefaultStepTimeout bounds each transcription, generation and synthesis
	// call. A single attempt only; a retried step would blow the iteration
	// budget on a live call.
	DefaultStepTimeout = 1200 * time.Millisecond
	// DefaultIterationTimeout bounds one full transcribe-generate-speak cycle.
	DefaultIterationTimeout = 1500 * time.Millisecond
	// DefaultAccumulationTarget is how much audio is buffered before a
	// transcription is attempted.
	DefaultAccumulationTarget = 3 * time.Second
)

// Config carries the orchestrator's conversational policy. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	MaxTurns           int
	MaxDuration        time.Duration
	StepTimeout        time.Duration
	IterationTimeout   time.Duration
	AccumulationTarget time.Duration

	// SilencePrompt is spoken after the first empty transcription. The second
	// consecutive empty transcription ends the call instead.
	SilencePrompt string
	// GreetingFallback is spoken when the generated greeting is unavailable.
	GreetingFallback string
	// ClosingLines map each exit reason to the line spoken before hangup. The
	// caller never hears a raw technical error.
	ClosingLines map[session.ExitReason]string
	// ConfusionPatterns are lowercase substrings that mark a generated
	// response as a conversational dead-end.
	ConfusionPatterns []string
}

func DefaultConfig() Config {
	return Config{
		MaxTurns:           DefaultMaxTurns,
		MaxDuration:        DefaultMaxDuration,
		StepTimeout:        DefaultStepTimeout,
		IterationTimeout:   DefaultIterationTimeout,
		AccumulationTarget: DefaultAccumulationTarget,

		SilencePrompt:    "Are you still there?",
		GreetingFallback: "Hello! How can I help you today?",
		ClosingLines: map[session.ExitReason]string{
			session.ExitReasonSTTFailure:   "I'm sorry, I'm having trouble hearing you. Goodbye.",
			session.ExitReasonLLMFailure:   "I apologize, I'm having technical difficulties. Goodbye.",
			session.ExitReasonTTSFailure:   "I'm experiencing audio issues. Goodbye.",
			session.ExitReasonMaxTurns:     "Thank you for calling. I hope I was able to help you today. Goodbye!",
			session.ExitReasonMaxDuration:  "I apologize, but we've reached the maximum call duration. Thank you for calling!",
			session.ExitReasonSilence:      "I haven't heard from you. Thank you for calling. Goodbye.",
			session.ExitReasonConfusion:    "I'm sorry, I'm unable to help with that. Goodbye.",
			session.ExitReasonTimeout:      "I apologize for the delay. Goodbye.",
			session.ExitReasonGeneralError: "I apologize for the inconvenience. Goodbye.",
		},
		ConfusionPatterns: []string{
			"i'm unable to help with that",
			"i am unable to help with that",
			"i don't understand what you",
			"i'm not sure i can help",
		},
	}
}

func (c Config) closingLine(reason session.ExitReason) string {
	if line, ok := c.ClosingLines[reason]; ok {
		return line
	}
	return "Thank you for calling. Goodbye!"
}

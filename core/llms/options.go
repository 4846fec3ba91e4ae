package llms

import "github.com/voialabs/callcore/internal/utils"

// DefaultMaxTokens keeps responses short enough to speak on a phone call.
const DefaultMaxTokens = 150

type PromptOptions struct {
	// Turns is the full conversation history, oldest first.
	Turns []Turn

	MaxTokens   int
	Temperature *float64
}

type PromptOption func(*PromptOptions)

func WithTurns(turns []Turn) PromptOption {
	return func(o *PromptOptions) {
		o.Turns = turns
	}
}

func WithMaxTokens(maxTokens int) PromptOption {
	return func(o *PromptOptions) {
		o.MaxTokens = maxTokens
	}
}

func WithTemperature(temperature float64) PromptOption {
	return func(o *PromptOptions) {
		o.Temperature = utils.Ptr(temperature)
	}
}

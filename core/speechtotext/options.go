// Package speechtotext defines the request surface shared by transcription
// adapters.
package speechtotext

import "github.com/voialabs/callcore/core/audio"

type TranscriptionOptions struct {
	EncodingInfo audio.EncodingInfo
	Language     string
	Model        string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

// Package texttospeech defines the request surface shared by synthesis
// adapters.
package texttospeech

import "github.com/voialabs/callcore/core/audio"

type SynthesisOptions struct {
	EncodingInfo audio.EncodingInfo
	Voice        string
}

type SynthesisOption func(*SynthesisOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Voice = voice
	}
}

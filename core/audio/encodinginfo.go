package audio

import "time"

const (
	DefaultSampleRate = 8000
	DefaultFormat     = "linear16"

	// DefaultChunkDuration is the nominal duration of one inbound or
	// outbound audio chunk on a telephony channel.
	DefaultChunkDuration = 200 * time.Millisecond
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: 1, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// BytesPerSecond returns the raw byte rate of the encoding.
func (e EncodingInfo) BytesPerSecond() int {
	channels := e.Channels
	if channels == 0 {
		channels = 1
	}
	return e.SampleRate * channels * e.Format.ByteSize()
}

// ChunkBytes returns the byte size of a chunk spanning the given duration,
// rounded down to a whole number of samples.
func (e EncodingInfo) ChunkBytes(duration time.Duration) int {
	byteSize := e.Format.ByteSize()
	if byteSize <= 0 {
		return 0
	}
	samples := int(duration * time.Duration(e.SampleRate) / time.Second)
	channels := e.Channels
	if channels == 0 {
		channels = 1
	}
	return samples * channels * byteSize
}

// Duration returns the playback duration of n raw bytes in this encoding.
func (e EncodingInfo) Duration(n int) time.Duration {
	rate := e.BytesPerSecond()
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

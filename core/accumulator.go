package orchestration

import (
	"bytes"
	"time"

	"github.com/voialabs/callcore/core/audio"
)

// accumulator buffers inbound audio chunks until enough speech has arrived
// to be worth a transcription attempt.
type accumulator struct {
	encoding audio.EncodingInfo
	buf      bytes.Buffer
}

func newAccumulator(encoding audio.EncodingInfo) *accumulator {
	return &accumulator{encoding: encoding}
}

func (a *accumulator) Append(chunk []byte) {
	a.buf.Write(chunk)
}

// Duration reports how much audio is buffered, derived from the encoding's
// byte rate.
func (a *accumulator) Duration() time.Duration {
	return a.encoding.Duration(a.buf.Len())
}

func (a *accumulator) Bytes() []byte {
	return a.buf.Bytes()
}

func (a *accumulator) Reset() {
	a.buf.Reset()
}

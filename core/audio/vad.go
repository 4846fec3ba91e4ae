package audio

import (
	"encoding/binary"
	"math"
)

const (
	pcmBytesPerSample = 2
	pcmMaxAmplitude   = 32768.0
)

// DefaultSilenceThreshold is tuned for 8kHz telephony lines. It is a
// configuration default, not a contract: callers should adjust it per line.
const DefaultSilenceThreshold = 0.015

// RMS computes the root-mean-square energy of 16-bit little-endian PCM,
// normalized to the 0.0-1.0 range. It is a pure function of the chunk bytes:
// identical input always yields identical output.
func RMS(chunk []byte) float64 {
	numSamples := len(chunk) / pcmBytesPerSample
	if numSamples == 0 {
		return 0
	}

	var sumSquares float64
	for i := 0; i < numSamples; i++ {
		sample := int16(binary.LittleEndian.Uint16(chunk[i*pcmBytesPerSample:]))
		normalized := float64(sample) / pcmMaxAmplitude
		sumSquares += normalized * normalized
	}

	return math.Sqrt(sumSquares / float64(numSamples))
}

// Detector classifies audio chunks as silent or voiced by comparing RMS
// energy against a fixed threshold. No learned model, no smoothing state:
// classification depends only on the chunk bytes and the threshold.
type Detector struct {
	// Threshold is the normalized RMS level below which a chunk counts as
	// silence. Exactly zero selects DefaultSilenceThreshold; a negative
	// threshold classifies nothing as silent, since RMS is never below
	// zero.
	Threshold float64
}

func (d Detector) threshold() float64 {
	if d.Threshold == 0 {
		return DefaultSilenceThreshold
	}
	return d.Threshold
}

// IsSilent reports whether the chunk's energy is below the threshold.
// Empty chunks are silent.
func (d Detector) IsSilent(chunk []byte) bool {
	return RMS(chunk) < d.threshold()
}

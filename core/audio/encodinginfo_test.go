package audio

import (
	"testing"
	"time"
)

func TestChunkBytesTelephonyDefault(t *testing.T) {
	info := GetDefaultEncodingInfo()

	// 8kHz mono 16-bit at 200ms is 1600 samples.
	if got := info.ChunkBytes(200 * time.Millisecond); got != 3200 {
		t.Fatalf("expected 3200 byte chunks, got %d", got)
	}
}

func TestChunkBytesUnknownFormat(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Format: encodingFormat("opus")}
	if got := info.ChunkBytes(200 * time.Millisecond); got != 0 {
		t.Fatalf("expected zero chunk size for unknown format, got %d", got)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	info := GetDefaultEncodingInfo()
	if got := info.Duration(info.ChunkBytes(3 * time.Second)); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
}

func TestSilenceValuePerFormat(t *testing.T) {
	cases := []struct {
		info EncodingInfo
		want byte
	}{
		{EncodingInfo{SampleRate: 8000, Format: EncodingLinear16}, 0x00},
		{EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}, 0xFF},
		{EncodingInfo{SampleRate: 8000, Format: EncodingALaw}, 0x55},
	}

	for _, c := range cases {
		if got := c.info.SilenceValue(); got != c.want {
			t.Fatalf("expected silence value %#x for %s, got %#x", c.want, c.info.Format.Name(), got)
		}
	}
}

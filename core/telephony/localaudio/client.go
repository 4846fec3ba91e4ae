// Package localaudio is a device-backed stand-in for the telephony
// transport: the default microphone plays the caller, the default speakers
// play the assistant. It exists so a conversation loop can be exercised
// end to end without a PBX.
package localaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/voialabs/callcore/core/audio"
)

type Client struct {
	chunkDuration time.Duration
	encoding      audio.EncodingInfo

	mu       sync.Mutex
	stream   *portaudio.Stream
	started  bool
	leftover []byte

	in  []int16
	out []int16
}

type Option func(*Client)

func WithChunkDuration(duration time.Duration) Option {
	return func(c *Client) {
		c.chunkDuration = duration
	}
}

func WithEncodingInfo(encoding audio.EncodingInfo) Option {
	return func(c *Client) {
		c.encoding = encoding
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		chunkDuration: audio.DefaultChunkDuration,
		encoding:      audio.GetDefaultEncodingInfo(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

func (c *Client) samplesPerChunk() int {
	return c.encoding.ChunkBytes(c.chunkDuration) / 2
}

func (c *Client) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	samples := c.samplesPerChunk()
	c.in = make([]int16, samples)
	c.out = make([]int16, samples)

	stream, err := portaudio.OpenDefaultStream(1, 1, float64(c.encoding.SampleRate), samples, c.in, c.out)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	c.stream = stream
	return nil
}

func (c *Client) Disconnect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil
	}

	if err := c.stream.Close(); err != nil {
		logger.Warn("failed to close portaudio stream", "error", err)
	}
	if err := portaudio.Terminate(); err != nil {
		logger.Warn("failed to terminate portaudio", "error", err)
	}
	c.stream = nil
	c.started = false

	return nil
}

// Answer starts the device stream. The channel id is accepted for interface
// parity and ignored; there is only one device.
func (c *Client) Answer(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return fmt.Errorf("not connected to audio device")
	}
	if c.started {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	c.started = true
	return nil
}

// StreamInbound yields microphone audio in chunk-duration slices until ctx
// is cancelled or the stream is stopped.
func (c *Client) StreamInbound(ctx context.Context, _ string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		done := ctx.Done()
		for {
			select {
			case <-done:
				return
			default:
			}

			c.mu.Lock()
			stream, started := c.stream, c.started
			c.mu.Unlock()
			if stream == nil || !started {
				return
			}

			if err := stream.Read(); err != nil {
				yield(nil, fmt.Errorf("failed to read from portaudio stream: %w", err))
				return
			}

			chunk := bytes.Buffer{}
			_ = binary.Write(&chunk, binary.LittleEndian, c.in)
			if !yield(chunk.Bytes(), nil) {
				return
			}
		}
	}
}

func (c *Client) Play(ctx context.Context, _ string, audioBytes []byte, _ audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil || !c.started {
		return fmt.Errorf("audio device not started")
	}

	bufferSize := len(c.out) * 2
	audioBytes = append(c.leftover, audioBytes...)
	for i := range len(audioBytes)/bufferSize + 1 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if (i+1)*bufferSize > len(audioBytes) {
			c.leftover = make([]byte, len(audioBytes)-i*bufferSize)
			copy(c.leftover, audioBytes[i*bufferSize:])
			break
		}

		_ = binary.Read(bytes.NewBuffer(audioBytes[i*bufferSize:(i+1)*bufferSize]), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}

	return nil
}

// Hangup stops the device stream. Best-effort, like its telephony
// counterpart.
func (c *Client) Hangup(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil || !c.started {
		return nil
	}

	if err := c.stream.Stop(); err != nil {
		logger.Warn("failed to stop portaudio stream", "error", err)
	}
	c.started = false
	c.leftover = nil

	return nil
}

package telephony

import (
	"context"
	"iter"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voialabs/callcore/core/audio"
)

// StreamInbound yields the caller's audio as fixed-size chunks in arrival
// order. The sequence is finite: it ends when the remote party disconnects,
// when ctx is cancelled, or, if silence stop is enabled, after the
// configured run of silent chunks. Media frames are re-sliced so every
// yielded chunk (except possibly the last) spans the nominal chunk
// duration.
func (c *Client) StreamInbound(ctx context.Context, channelID string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		conn, err := c.mediaConn(channelID)
		if err != nil {
			yield(nil, err)
			return
		}

		chunkSize := c.ChunkBytes()
		var pending []byte
		silentChunks := 0
		done := ctx.Done()

		emit := func(chunk []byte) (keepGoing bool) {
			if c.silenceStop > 0 {
				if c.detector.IsSilent(chunk) {
					silentChunks++
				} else {
					silentChunks = 0
				}
				if silentChunks >= c.silenceStop {
					logger.Info("silence stop threshold reached, ending inbound stream",
						"channel_id", channelID, "silent_chunks", silentChunks)
					return false
				}
			}
			return yield(chunk, nil)
		}

		for {
			select {
			case <-done:
				return
			default:
			}

			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
			msgType, frame, err := conn.ReadMessage()
			if err != nil {
				// Remote hangup shows up as a closed stream, not an error.
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					websocket.IsUnexpectedCloseError(err) {
					return
				}
				yield(nil, err)
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}

			pending = append(pending, frame...)
			for len(pending) >= chunkSize {
				chunk := make([]byte, chunkSize)
				copy(chunk, pending[:chunkSize])
				pending = pending[chunkSize:]

				if !emit(chunk) {
					return
				}
			}
		}
	}
}

// Play streams synthesized audio back to the caller in chunk-duration-sized
// frames, paced at playback speed to bound write latency.
func (c *Client) Play(ctx context.Context, channelID string, audioBytes []byte, encoding audio.EncodingInfo) error {
	if len(audioBytes) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "play audio")
	defer span.End()

	conn, err := c.mediaConn(channelID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	chunkSize := encoding.ChunkBytes(c.chunkDuration)
	if chunkSize <= 0 {
		chunkSize = c.ChunkBytes()
	}

	for offset := 0; offset < len(audioBytes); offset += chunkSize {
		end := min(offset+chunkSize, len(audioBytes))

		_ = conn.SetWriteDeadline(time.Now().Add(c.readTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, audioBytes[offset:end]); err != nil {
			span.RecordError(err)
			return err
		}

		if end == len(audioBytes) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.chunkDuration):
		}
	}

	logger.DebugContext(ctx, "playback complete", "channel_id", channelID, "audio_bytes", len(audioBytes))
	return nil
}

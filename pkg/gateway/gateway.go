// Package gateway carries call media between the telephony side and the
// call orchestrator.
//
// A Stream is the orchestrator's handle on one call's media channel:
// outbound audio playback with a completion signal, plus liveness. Inbound
// traffic flows the other way, from the transport into a Handler. The
// reference transport is a websocket media stream (binary frames carry
// mu-law 8kHz audio, JSON text frames carry control events), but the
// orchestrator only ever sees the Stream and Handler contracts.
package gateway

import (
	"context"
	"errors"
	"time"
)

// Frame geometry for telephony media: 20ms of mu-law at 8kHz.
const (
	FrameSize     = 160
	FrameDuration = 20 * time.Millisecond
)

// Control events carried as JSON text frames.
const (
	EventEndOfUtterance = "end_of_utterance"
	EventHangup         = "hangup"
)

// ControlEvent is the JSON control frame exchanged on a media stream.
type ControlEvent struct {
	Event string `json:"event"`
}

// ErrStreamClosed is returned when playback is attempted on a closed stream.
var ErrStreamClosed = errors.New("gateway: stream closed")

// Stream is one call's outbound media channel.
type Stream interface {
	// CallID returns the call this stream belongs to.
	CallID() string

	// Play sends mu-law 8kHz audio to the caller and blocks until
	// playback completes, the context is cancelled, or the stream closes.
	Play(ctx context.Context, ulaw []byte) error

	// Open reports whether the media channel is still connected.
	Open() bool

	// Close tears down the media channel. Safe to call more than once.
	Close() error
}

// Handler receives inbound call events from a transport. The call
// orchestrator implements this.
type Handler interface {
	// OnAudioChunk delivers one inbound audio chunk, in send order.
	OnAudioChunk(callID string, chunk []byte) error

	// OnEndOfUtterance signals that the caller stopped speaking.
	OnEndOfUtterance(callID string) error

	// OnHangup signals that the caller or carrier ended the call.
	OnHangup(callID string)
}

// splitFrames cuts audio into transport frames. The last frame may be short.
func splitFrames(ulaw []byte) [][]byte {
	if len(ulaw) == 0 {
		return nil
	}
	frames := make([][]byte, 0, (len(ulaw)+FrameSize-1)/FrameSize)
	for off := 0; off < len(ulaw); off += FrameSize {
		end := off + FrameSize
		if end > len(ulaw) {
			end = len(ulaw)
		}
		frames = append(frames, ulaw[off:end])
	}
	return frames
}

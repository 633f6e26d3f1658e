package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charcochicken/voiceagent/pkg/audio"
)

const (
	realtimeWSURL    = "wss://api.openai.com/v1/realtime?intent=transcription"
	providerRealtime = "realtime"

	// The realtime endpoint does not report per-segment confidence, so a
	// successful transcript gets a flat score below 1 to leave room for
	// providers that do.
	realtimeConfidence = 0.9
)

// Realtime implements Provider over the OpenAI Realtime websocket,
// trading the multipart round trip of Whisper for a persistent
// connection. One transcription is in flight per connection at a time,
// which matches the one-turn-at-a-time session model upstream.
type Realtime struct {
	config *Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pending   chan realtimeResult
}

type realtimeResult struct {
	text string
	err  error
}

// NewRealtime creates a websocket transcriber. The connection is
// established lazily on first Transcribe.
func NewRealtime(opts ...Option) (*Realtime, error) {
	cfg := DefaultConfig()
	cfg.Model = "gpt-4o-transcribe"
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Realtime{
		config: cfg,
		logger: cfg.Logger.With("component", "stt.realtime"),
	}, nil
}

// Transcribe sends one utterance over the websocket and waits for the
// completed transcript.
func (r *Realtime) Transcribe(ctx context.Context, pcm []byte) (*Utterance, error) {
	if len(pcm) == 0 {
		return nil, WrapError(providerRealtime, ErrEmptyAudio)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	if !r.connected {
		if err := r.dial(ctx); err != nil {
			return nil, err
		}
	}

	// Telephony audio is 8kHz; the realtime API wants 24kHz PCM16.
	upsampled := upsamplePCM(pcm, r.config.SampleRate, 24000)

	if err := r.send(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(upsampled),
	}); err != nil {
		return nil, err
	}
	if err := r.send(map[string]any{"type": "input_audio_buffer.commit"}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-r.pending:
		if !ok {
			return nil, WrapError(providerRealtime, ErrNotConnected)
		}
		if res.err != nil {
			return nil, res.err
		}

		utt := &Utterance{
			Text:          res.text,
			Language:      r.config.Language,
			AudioDuration: audio.PCMDuration(pcm),
			LatencyMs:     time.Since(start).Milliseconds(),
		}
		if utt.Text != "" {
			utt.Confidence = realtimeConfidence
		}
		r.logger.Debug("realtime transcript",
			"chars", len(utt.Text),
			"latency_ms", utt.LatencyMs,
		)
		return utt, nil
	}
}

// Health reports whether the websocket can be established.
func (r *Realtime) Health(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected {
		return nil
	}
	return r.dial(ctx)
}

// Close tears down the websocket.
func (r *Realtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.connected = false
	return nil
}

// dial establishes the websocket and configures the transcription
// session. Caller holds r.mu.
func (r *Realtime) dial(ctx context.Context) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+r.config.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	url := r.config.BaseURL
	if url == "" {
		url = realtimeWSURL
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: err.Error(), Provider: providerRealtime}
		}
		return WrapError(providerRealtime, fmt.Errorf("dial: %w", err))
	}

	r.conn = conn
	r.connected = true
	r.pending = make(chan realtimeResult, 1)

	if err := r.send(map[string]any{
		"type": "transcription_session.update",
		"session": map[string]any{
			"input_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model":    r.config.Model,
				"language": r.config.Language,
			},
			"turn_detection": nil, // the orchestrator owns turn boundaries
		},
	}); err != nil {
		r.teardown()
		return err
	}

	go r.readLoop(conn, r.pending)
	return nil
}

// send writes one JSON message. Caller holds r.mu.
func (r *Realtime) send(v any) error {
	if r.conn == nil {
		return WrapError(providerRealtime, ErrNotConnected)
	}
	if err := r.conn.WriteJSON(v); err != nil {
		r.teardown()
		return WrapError(providerRealtime, fmt.Errorf("write: %w", err))
	}
	return nil
}

// teardown drops the connection so the next Transcribe redials.
// Caller holds r.mu.
func (r *Realtime) teardown() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.connected = false
}

// readLoop dispatches transcription events to the pending channel.
// It exits when the connection closes.
func (r *Realtime) readLoop(conn *websocket.Conn, pending chan realtimeResult) {
	defer close(pending)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			if r.conn == conn {
				r.teardown()
			}
			r.mu.Unlock()
			return
		}

		var event struct {
			Type       string `json:"type"`
			Transcript string `json:"transcript"`
			Error      struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			r.logger.Warn("unparseable realtime event", "error", err)
			continue
		}

		switch event.Type {
		case "conversation.item.input_audio_transcription.completed":
			pending <- realtimeResult{text: event.Transcript}
		case "conversation.item.input_audio_transcription.failed", "error":
			pending <- realtimeResult{err: &APIError{
				Message:  event.Error.Message,
				Code:     event.Error.Code,
				Provider: providerRealtime,
			}}
		}
	}
}

// upsamplePCM converts PCM16 between sample rates by sample
// duplication. Telephony audio is narrowband already, so linear
// interpolation buys nothing the provider's own resampler won't do.
func upsamplePCM(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to {
		return pcm
	}
	factor := to / from
	if factor <= 1 {
		return pcm
	}

	out := make([]byte, 0, len(pcm)*factor)
	for i := 0; i+1 < len(pcm); i += 2 {
		for n := 0; n < factor; n++ {
			out = append(out, pcm[i], pcm[i+1])
		}
	}
	return out
}

// Verify Realtime implements Provider at compile time.
var _ Provider = (*Realtime)(nil)

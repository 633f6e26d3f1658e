// Package stt provides a unified interface for speech-to-text providers.
//
// The package supports batch transcription over HTTP (Whisper) and a
// streaming websocket transcriber (OpenAI Realtime). All providers
// implement the Provider interface, enabling seamless switching without
// changing caller code.
//
// Example usage:
//
//	provider, _ := stt.NewWhisper(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    stt.WithLanguage("ar"),
//	)
//	defer provider.Close()
//
//	utt, _ := provider.Transcribe(ctx, pcmAudio)
//	// utt.Text holds the transcript, utt.Confidence is in [0,1]
package stt

import (
	"context"
	"time"
)

// Provider defines the STT provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Transcribe converts one utterance of PCM16 mono audio to text.
	// The sample rate is taken from the provider configuration.
	Transcribe(ctx context.Context, pcm []byte) (*Utterance, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Utterance is one transcribed caller utterance.
type Utterance struct {
	// Text is the transcript.
	Text string

	// Confidence is the provider's confidence in the transcript, in [0,1].
	Confidence float64

	// Language is the detected or configured language code.
	Language string

	// AudioDuration is the duration of the transcribed audio.
	AudioDuration time.Duration

	// LatencyMs is the provider round-trip time in milliseconds.
	LatencyMs int64
}

// Usable reports whether the utterance carries a non-empty transcript
// with confidence at or above the given threshold.
func (u *Utterance) Usable(threshold float64) bool {
	return u != nil && u.Text != "" && u.Confidence >= threshold
}

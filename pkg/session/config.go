package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/charcochicken/voiceagent/pkg/audio"
	"github.com/charcochicken/voiceagent/pkg/dialogue"
	"github.com/charcochicken/voiceagent/pkg/order"
	"github.com/charcochicken/voiceagent/pkg/stt"
	"github.com/charcochicken/voiceagent/pkg/tts"
)

// Default tuning values for the orchestrator.
const (
	// DefaultConfidenceThreshold is the minimum transcription confidence
	// that reaches the dialogue policy. Below it the caller is asked to
	// repeat instead.
	DefaultConfidenceThreshold = 0.4

	// DefaultProviderTimeout is the hard per-call deadline for each
	// provider invocation (one attempt).
	DefaultProviderTimeout = 10 * time.Second

	// DefaultInactivityTimeout ends a call with no caller activity.
	DefaultInactivityTimeout = 60 * time.Second
)

// EventSink receives live call events for the dashboard. Implementations
// must not block.
type EventSink interface {
	CallEvent(callID, kind string, fields map[string]any)
}

// Config holds orchestrator configuration.
type Config struct {
	// STT transcribes buffered caller audio. Required.
	STT stt.Provider

	// Policy decides the agent's response each turn. Required.
	Policy dialogue.Policy

	// TTS speaks the policy's response. Required.
	TTS tts.Provider

	// Orders receives confirmed orders. Optional; side effects are
	// dropped with a warning when nil.
	Orders *order.Book

	// Events receives live call events. Optional.
	Events EventSink

	// ConfidenceThreshold gates transcriptions before the policy.
	ConfidenceThreshold float64

	// ProviderTimeout bounds each provider attempt.
	ProviderTimeout time.Duration

	// InactivityTimeout ends idle calls.
	InactivityTimeout time.Duration

	// MaxUtteranceBytes bounds the inbound audio buffer per utterance.
	MaxUtteranceBytes int

	// Greeting, when non-empty, is spoken as soon as the call starts.
	Greeting string

	// ClarificationPrompt is spoken when transcription confidence is
	// below threshold.
	ClarificationPrompt string

	// RepeatPrompt is spoken when transcription fails twice.
	RepeatPrompt string

	// ApologyText is spoken best-effort before ending a call on a hard
	// provider failure, unless ApologyAudio is set.
	ApologyText string

	// ApologyAudio is a pre-recorded mu-law apology segment. When set it
	// is played directly, with no synthesis dependency.
	ApologyAudio []byte

	// Logger for orchestrator events.
	Logger *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Config)

// DefaultConfig returns a Config with production defaults. Providers
// must still be supplied.
func DefaultConfig() *Config {
	return &Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ProviderTimeout:     DefaultProviderTimeout,
		InactivityTimeout:   DefaultInactivityTimeout,
		MaxUtteranceBytes:   audio.DefaultMaxUtterance,
		Greeting:            "Welcome to Charco Chicken! How can I help you today?",
		ClarificationPrompt: "Sorry, I didn't quite catch that. Could you say it again?",
		RepeatPrompt:        "Sorry, the line cut out for a moment. Could you repeat that?",
		ApologyText:         "I'm sorry, we're having technical trouble. Please call back in a few minutes.",
		Logger:              slog.Default(),
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) *Config {
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if c.STT == nil {
		return errors.New("session: STT provider is required")
	}
	if c.Policy == nil {
		return errors.New("session: dialogue policy is required")
	}
	if c.TTS == nil {
		return errors.New("session: TTS provider is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.New("session: confidence threshold must be in [0,1]")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("session: provider timeout must be positive")
	}
	if c.InactivityTimeout <= 0 {
		return errors.New("session: inactivity timeout must be positive")
	}
	return nil
}

// WithSTT sets the transcription provider.
func WithSTT(p stt.Provider) Option {
	return func(c *Config) { c.STT = p }
}

// WithPolicy sets the dialogue policy.
func WithPolicy(p dialogue.Policy) Option {
	return func(c *Config) { c.Policy = p }
}

// WithTTS sets the synthesis provider.
func WithTTS(p tts.Provider) Option {
	return func(c *Config) { c.TTS = p }
}

// WithOrders sets the order book for submit side effects.
func WithOrders(b *order.Book) Option {
	return func(c *Config) { c.Orders = b }
}

// WithEvents sets the live event sink.
func WithEvents(e EventSink) Option {
	return func(c *Config) { c.Events = e }
}

// WithConfidenceThreshold sets the transcription confidence gate.
func WithConfidenceThreshold(t float64) Option {
	return func(c *Config) { c.ConfidenceThreshold = t }
}

// WithProviderTimeout sets the per-attempt provider deadline.
func WithProviderTimeout(d time.Duration) Option {
	return func(c *Config) { c.ProviderTimeout = d }
}

// WithInactivityTimeout sets the idle-call deadline.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *Config) { c.InactivityTimeout = d }
}

// WithGreeting sets the opening line. Empty disables the greeting.
func WithGreeting(text string) Option {
	return func(c *Config) { c.Greeting = text }
}

// WithApologyAudio sets a pre-recorded mu-law apology segment.
func WithApologyAudio(ulaw []byte) Option {
	return func(c *Config) { c.ApologyAudio = ulaw }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

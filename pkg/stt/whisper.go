package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/charcochicken/voiceagent/internal/httpc"
	"github.com/charcochicken/voiceagent/pkg/audio"
)

const (
	whisperBaseURL  = "https://api.openai.com/v1"
	providerWhisper = "whisper"
)

// Whisper implements Provider using the OpenAI audio transcription API.
type Whisper struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewWhisper creates a new Whisper STT provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = whisperBaseURL
	}

	return &Whisper{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.whisper"),
		baseURL: baseURL,
	}, nil
}

// Transcribe converts one utterance of PCM16 mono audio to text.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte) (*Utterance, error) {
	if len(pcm) == 0 {
		return nil, WrapError(providerWhisper, ErrEmptyAudio)
	}

	start := time.Now()

	body, contentType, err := w.buildForm(pcm)
	if err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("build form: %w", err))
	}

	resp, err := w.doWithRetry(ctx, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, w.parseError(resp)
	}

	var result verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("decode response: %w", err))
	}

	utt := &Utterance{
		Text:          result.Text,
		Confidence:    result.confidence(),
		Language:      result.Language,
		AudioDuration: time.Duration(result.Duration * float64(time.Second)),
		LatencyMs:     latency,
	}

	w.logger.Debug("transcribed utterance",
		"chars", len(utt.Text),
		"confidence", utt.Confidence,
		"latency_ms", latency,
	)

	return utt, nil
}

// Health checks API connectivity and API key validity.
func (w *Whisper) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerWhisper, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return WrapError(providerWhisper, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return w.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (w *Whisper) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// buildForm constructs the multipart upload: a WAV-wrapped audio file
// plus model and language fields.
func (w *Whisper) buildForm(pcm []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.WAVFromPCM(pcm, w.config.SampleRate)); err != nil {
		return nil, "", err
	}

	mw.WriteField("model", w.config.Model)
	mw.WriteField("response_format", "verbose_json")
	if w.config.Language != "" {
		mw.WriteField("language", w.config.Language)
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// doWithRetry performs the request with retry logic.
// The request is rebuilt per attempt because multipart bodies are not
// re-readable.
func (w *Whisper) doWithRetry(ctx context.Context, body []byte, contentType string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST",
			w.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerWhisper, err)
		}
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerWhisper, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = w.parseError(resp)
			w.logger.Warn("retrying transcription request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (w *Whisper) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerWhisper,
	}
}

// verboseTranscription is the verbose_json response shape.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// confidence derives a [0,1] confidence score from segment log
// probabilities. Segments that are probably silence drag the score down.
func (t *verboseTranscription) confidence() float64 {
	if t.Text == "" || len(t.Segments) == 0 {
		return 0
	}

	var sum float64
	for _, s := range t.Segments {
		p := math.Exp(s.AvgLogprob) * (1 - s.NoSpeechProb)
		sum += p
	}
	conf := sum / float64(len(t.Segments))

	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// Verify Whisper implements Provider at compile time.
var _ Provider = (*Whisper)(nil)

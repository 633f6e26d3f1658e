package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/charcochicken/voiceagent/internal/httpc"
)

const (
	llmBaseURL = "https://api.openai.com/v1"
	policyLLM  = "llm"
)

const systemPrompt = `You are the phone ordering agent for Charco Chicken.
Menu: chicken shawarma, mixed grill, chicken plate, frankie sandwich, chicken burger, ayran, pepsi.
Given the conversation state and the caller's words, reply with a JSON object:
{"response": "<what you say next, one or two short spoken sentences>",
 "state": {"stage": "...", "items": [{"name": "...", "quantity": 1}], "customer_name": "..."},
 "submit_order": false,
 "end_call": false}
Stages: greeting, awaiting_request, order_in_progress, awaiting_name, order_summary, order_placed.
Follow the flow: collect items, ask for the caller's name, read the order back, and only
set submit_order=true together with stage "order_placed" after the caller confirms the summary.
Set end_call=true when the order is placed or the caller says goodbye.`

// LLM implements Policy against any OpenAI-compatible chat completions
// API. It enforces the same State contract as the rules policy, with the
// model deciding wording and stage transitions.
type LLM struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
	retries int
	delay   time.Duration
}

// LLMOption configures the LLM policy.
type LLMOption func(*LLM)

// WithLLMBaseURL overrides the API endpoint (Ollama, vLLM, Groq, ...).
func WithLLMBaseURL(url string) LLMOption {
	return func(l *LLM) { l.baseURL = strings.TrimSuffix(url, "/") }
}

// WithLLMModel sets the chat model.
func WithLLMModel(model string) LLMOption {
	return func(l *LLM) { l.model = model }
}

// WithLLMTimeout sets the request timeout.
func WithLLMTimeout(timeout time.Duration) LLMOption {
	return func(l *LLM) { l.client = httpc.NewClient(timeout) }
}

// WithLLMLogger sets the structured logger.
func WithLLMLogger(logger *slog.Logger) LLMOption {
	return func(l *LLM) { l.logger = logger.With("component", "dialogue.llm") }
}

// NewLLM creates the LLM-backed policy.
func NewLLM(apiKey string, opts ...LLMOption) (*LLM, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	l := &LLM{
		apiKey:  apiKey,
		baseURL: llmBaseURL,
		model:   "gpt-4o-mini",
		client:  httpc.NewClient(15 * time.Second),
		logger:  slog.Default().With("component", "dialogue.llm"),
		retries: 1,
		delay:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Decide asks the model for the next Decision.
func (l *LLM) Decide(ctx context.Context, state State, text string) (*Decision, error) {
	if state.Stage == "" {
		state.Stage = StageGreeting
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, wrapError(policyLLM, err)
	}

	payload := map[string]any{
		"model":           l.model,
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.2,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": fmt.Sprintf("state: %s\ncaller: %s", stateJSON, text)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, wrapError(policyLLM, err)
	}

	resp, err := l.doWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, wrapError(policyLLM, fmt.Errorf("API error %d: %s", resp.StatusCode, string(raw)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, wrapError(policyLLM, fmt.Errorf("decode response: %w", err))
	}
	if len(completion.Choices) == 0 {
		return nil, wrapError(policyLLM, ErrBadDecision)
	}

	return l.parseDecision(state, completion.Choices[0].Message.Content)
}

// parseDecision converts the model's JSON into a Decision, validating
// the stage token so a hallucinated stage cannot corrupt the session.
func (l *LLM) parseDecision(prev State, content string) (*Decision, error) {
	var out struct {
		Response    string `json:"response"`
		State       State  `json:"state"`
		SubmitOrder bool   `json:"submit_order"`
		EndCall     bool   `json:"end_call"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, wrapError(policyLLM, fmt.Errorf("%w: %v", ErrBadDecision, err))
	}
	if out.Response == "" {
		return nil, wrapError(policyLLM, ErrBadDecision)
	}

	next := out.State
	if !validStage(next.Stage) {
		l.logger.Warn("model produced unknown stage, keeping previous", "stage", next.Stage)
		next.Stage = prev.Stage
	}
	next.LastResponse = out.Response

	d := &Decision{
		ResponseText: out.Response,
		NextState:    next,
		EndCall:      out.EndCall,
	}
	if out.SubmitOrder {
		d.SideEffects = append(d.SideEffects, SideEffect{
			Kind:         SideEffectSubmitOrder,
			CustomerName: next.CustomerName,
			Items:        next.Items,
		})
	}
	return d, nil
}

// doWithRetry performs the request, retrying once on 429/5xx.
func (l *LLM) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.delay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST",
			l.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, wrapError(policyLLM, err)
		}
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := l.client.Do(req)
		if err != nil {
			lastErr = wrapError(policyLLM, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = wrapError(policyLLM, fmt.Errorf("API error %d: %s", resp.StatusCode, string(raw)))
			l.logger.Warn("retrying policy request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

func validStage(stage string) bool {
	switch stage {
	case StageGreeting, StageAwaitingRequest, StageOrderInProgress,
		StageAwaitingName, StageOrderSummary, StageOrderPlaced:
		return true
	}
	return false
}

// Verify LLM implements Policy at compile time.
var _ Policy = (*LLM)(nil)

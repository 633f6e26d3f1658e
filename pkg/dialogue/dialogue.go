// Package dialogue provides the conversation policy for the phone
// ordering agent.
//
// A Policy is a pure function of (state, utterance text): it returns the
// agent's spoken response, the next conversation state, and any side
// effects (such as submitting the collected order). Policies never touch
// the call session; that separation is what makes them independently
// testable.
//
// Two implementations ship with the package: a keyword-rules policy that
// mirrors the restaurant's scripted flow, and an LLM-backed policy that
// delegates the same contract to an OpenAI-compatible chat API.
package dialogue

import (
	"context"
)

// Policy decides the agent's next move for one caller utterance.
type Policy interface {
	// Decide maps the current state and the caller's transcribed text to
	// a Decision. Implementations must not retain or mutate state; the
	// returned Decision carries the successor state.
	Decide(ctx context.Context, state State, text string) (*Decision, error)
}

// Conversation stages. The zero value of State starts at StageGreeting.
const (
	StageGreeting        = "greeting"
	StageAwaitingRequest = "awaiting_request"
	StageOrderInProgress = "order_in_progress"
	StageAwaitingName    = "awaiting_name"
	StageOrderSummary    = "order_summary"
	StageOrderPlaced     = "order_placed"
)

// State is the opaque conversation context owned by the policy. The
// session stores it between turns without inspecting it.
type State struct {
	// Stage is the current conversation stage.
	Stage string `json:"stage"`

	// Items is the cart collected so far.
	Items []Item `json:"items,omitempty"`

	// CustomerName is captured during StageAwaitingName.
	CustomerName string `json:"customer_name,omitempty"`

	// LastResponse is the agent's previous line, used for
	// clarification replays.
	LastResponse string `json:"last_response,omitempty"`
}

// Item is one cart entry.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Decision is the policy's output for one turn.
type Decision struct {
	// ResponseText is what the agent says next.
	ResponseText string

	// NextState is the successor conversation state.
	NextState State

	// SideEffects are actions the orchestrator must execute after
	// dispatching the response.
	SideEffects []SideEffect

	// EndCall signals that the conversation is complete and the call
	// should wind down after the response plays.
	EndCall bool
}

// SideEffectKind names an orchestrator-executed action.
type SideEffectKind string

const (
	// SideEffectSubmitOrder submits the collected order to the backend.
	SideEffectSubmitOrder SideEffectKind = "submit_order"
)

// SideEffect is one action requested by the policy.
type SideEffect struct {
	Kind SideEffectKind

	// CustomerName and Items are set for SideEffectSubmitOrder.
	CustomerName string
	Items        []Item
}

// addItem returns a copy of items with the named item added, merging
// quantities for duplicates.
func addItem(items []Item, name string, quantity int) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Name == name {
			out[i].Quantity += quantity
			return out
		}
	}
	return append(out, Item{Name: name, Quantity: quantity})
}

package dialogue

import (
	"context"
	"log/slog"
	"strings"
)

// Rules is the scripted keyword policy for the restaurant ordering flow:
// greet, take items, capture the caller's name, read back the order, and
// submit on final confirmation.
type Rules struct {
	logger *slog.Logger
}

// NewRules creates the scripted ordering policy.
func NewRules() *Rules {
	return &Rules{logger: slog.Default().With("component", "dialogue.rules")}
}

// NewRulesWithLogger creates the scripted policy with a custom logger.
func NewRulesWithLogger(logger *slog.Logger) *Rules {
	return &Rules{logger: logger.With("component", "dialogue.rules")}
}

// Decide maps (state, text) to the next Decision. Pure: the input state
// is never mutated.
func (r *Rules) Decide(ctx context.Context, state State, text string) (*Decision, error) {
	if state.Stage == "" {
		state.Stage = StageGreeting
	}

	intent := ClassifyIntent(text)
	r.logger.Debug("classified utterance",
		"intent", string(intent),
		"stage", state.Stage,
	)

	d := r.decide(state, intent, text)
	d.NextState.LastResponse = d.ResponseText
	return d, nil
}

func (r *Rules) decide(state State, intent Intent, text string) *Decision {
	switch {
	// Name capture consumes the whole utterance regardless of intent,
	// except an explicit goodbye.
	case state.Stage == StageAwaitingName && intent != IntentGoodbye:
		next := state
		next.CustomerName = cleanName(text)
		next.Stage = StageOrderSummary
		return &Decision{
			ResponseText: "Thank you, " + next.CustomerName + ". Your order is " +
				describeItems(next.Items) + ". Is that correct?",
			NextState: next,
		}

	case intent == IntentGreeting && state.Stage == StageGreeting:
		next := state
		next.Stage = StageAwaitingRequest
		return &Decision{
			ResponseText: "Welcome to Charco Chicken! What can I get for you today?",
			NextState:    next,
		}

	case intent == IntentMenu:
		next := state
		if next.Stage == StageGreeting {
			next.Stage = StageAwaitingRequest
		}
		return &Decision{ResponseText: MenuLine(), NextState: next}

	case intent == IntentOrder:
		next := state
		next.Stage = StageOrderInProgress
		items := ExtractItems(text)
		if len(items) == 0 {
			return &Decision{
				ResponseText: "Of course. What would you like to order?",
				NextState:    next,
			}
		}
		for _, item := range items {
			next.Items = addItem(next.Items, item.Name, item.Quantity)
		}
		return &Decision{
			ResponseText: "Got it, I've added " + describeItems(items) + " to your order. Anything else?",
			NextState:    next,
		}

	case intent == IntentConfirmation && state.Stage == StageOrderInProgress:
		if len(state.Items) == 0 {
			return &Decision{
				ResponseText: "There's nothing in your order yet. What would you like?",
				NextState:    state,
			}
		}
		next := state
		next.Stage = StageAwaitingName
		return &Decision{
			ResponseText: "Great. Can I get your name for the order?",
			NextState:    next,
		}

	case intent == IntentConfirmation && state.Stage == StageOrderSummary:
		next := state
		next.Stage = StageOrderPlaced
		return &Decision{
			ResponseText: "Thank you for your order! It's being prepared and should arrive in about thirty minutes. Goodbye!",
			NextState:    next,
			SideEffects: []SideEffect{{
				Kind:         SideEffectSubmitOrder,
				CustomerName: state.CustomerName,
				Items:        state.Items,
			}},
			EndCall: true,
		}

	case intent == IntentGoodbye:
		return &Decision{
			ResponseText: "Thank you for calling Charco Chicken. Goodbye!",
			NextState:    State{Stage: StageGreeting},
			EndCall:      true,
		}

	case intent == IntentComplaint:
		return &Decision{
			ResponseText: "I'm sorry to hear that. Can you tell me exactly what went wrong?",
			NextState:    state,
		}

	case intent == IntentClarification:
		if state.LastResponse != "" {
			return &Decision{
				ResponseText: "I said: " + state.LastResponse,
				NextState:    state,
			}
		}
		return &Decision{
			ResponseText: "Sorry, what would you like me to clarify?",
			NextState:    state,
		}
	}

	return &Decision{ResponseText: fallbackLine(state.Stage), NextState: state}
}

// fallbackLine picks a stage-appropriate reprompt when no intent matched.
func fallbackLine(stage string) string {
	switch stage {
	case StageOrderInProgress:
		return "Sorry, I didn't catch that. What would you like to add to your order?"
	case StageAwaitingName:
		return "Sorry, what was your name?"
	case StageOrderSummary:
		return "Sorry, is your order correct?"
	default:
		return "Sorry, I didn't catch that. How can I help you?"
	}
}

// cleanName normalizes a spoken name utterance. Callers say things like
// "it's Ahmed" or "my name is Sarah".
func cleanName(text string) string {
	name := trimSpokenPrefixes(text)
	if name == "" {
		return "friend"
	}
	return name
}

var namePrefixes = []string{
	"my name is ", "the name is ", "name is ", "it's ", "its ", "this is ", "i am ", "i'm ",
}

func trimSpokenPrefixes(text string) string {
	cleaned := strings.Trim(strings.TrimSpace(text), ".,!?")
	lower := strings.ToLower(cleaned)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.Trim(cleaned[len(p):], " .,!?")
		}
	}
	return cleaned
}

// Verify Rules implements Policy at compile time.
var _ Policy = (*Rules)(nil)

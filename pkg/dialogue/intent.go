package dialogue

import "strings"

// Intent is the coarse classification of one caller utterance.
type Intent string

const (
	IntentOrder         Intent = "order"
	IntentMenu          Intent = "menu"
	IntentGreeting      Intent = "greeting"
	IntentGoodbye       Intent = "goodbye"
	IntentComplaint     Intent = "complaint"
	IntentConfirmation  Intent = "confirmation"
	IntentClarification Intent = "clarification"
	IntentFallback      Intent = "fallback"
)

// intentKeywords maps keywords and phrases to intents. Order matters:
// earlier entries win when an utterance matches several intents, so the
// more specific intents come first.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentMenu, []string{
		"menu", "what do you have", "today's special", "special",
		"what's available", "available",
	}},
	{IntentOrder, []string{
		"order", "i want", "i'd like", "give me", "get me", "can i have",
		"shawarma", "chicken", "grill", "grilled", "sandwich", "frankie",
		"burger", "plate", "ayran", "pepsi", "drink", "fries",
	}},
	{IntentGoodbye, []string{
		"bye", "goodbye", "thanks", "thank you", "that's all", "that is all",
		"done", "finish", "nothing else",
	}},
	{IntentComplaint, []string{
		"problem", "issue", "complaint", "wrong", "late", "cold", "bad",
	}},
	{IntentConfirmation, []string{
		"yes", "yeah", "sure", "correct", "right", "confirm", "exactly", "okay",
	}},
	{IntentClarification, []string{
		"what", "repeat", "again", "say that", "didn't hear", "pardon",
		"how much", "how many", "explain",
	}},
	{IntentGreeting, []string{
		"hello", "hi ", "hey", "good morning", "good evening",
	}},
}

// ClassifyIntent classifies an utterance by keyword matching.
// Returns IntentFallback if nothing matches.
func ClassifyIntent(text string) Intent {
	// Pad so word-boundary-ish suffix keywords ("hi ") can match at the end
	input := " " + strings.ToLower(strings.TrimSpace(text)) + " "

	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(input, kw) {
				return entry.intent
			}
		}
	}
	return IntentFallback
}

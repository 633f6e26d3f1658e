package dialogue_test

import (
	"testing"

	"github.com/charcochicken/voiceagent/pkg/dialogue"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		text string
		want dialogue.Intent
	}{
		{"hello there", dialogue.IntentGreeting},
		{"hi", dialogue.IntentGreeting},
		{"what's on the menu today", dialogue.IntentMenu},
		{"what do you have", dialogue.IntentMenu},
		{"I want a chicken shawarma", dialogue.IntentOrder},
		{"give me two burgers", dialogue.IntentOrder},
		{"yes that's right", dialogue.IntentConfirmation},
		{"goodbye", dialogue.IntentGoodbye},
		{"that's all thanks", dialogue.IntentGoodbye},
		{"my food arrived cold", dialogue.IntentComplaint},
		{"can you repeat that", dialogue.IntentClarification},
		{"xyzzy blorp", dialogue.IntentFallback},
		{"", dialogue.IntentFallback},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := dialogue.ClassifyIntent(tt.text); got != tt.want {
				t.Errorf("ClassifyIntent(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractItems(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []dialogue.Item
	}{
		{
			name: "single item default quantity",
			text: "a chicken shawarma please",
			want: []dialogue.Item{{Name: "chicken shawarma", Quantity: 1}},
		},
		{
			name: "spoken number quantity",
			text: "three frankie sandwiches",
			want: []dialogue.Item{{Name: "frankie sandwich", Quantity: 3}},
		},
		{
			name: "digit quantity",
			text: "give me 2 pepsi",
			want: []dialogue.Item{{Name: "pepsi", Quantity: 2}},
		},
		{
			name: "order one chicken plate",
			text: "order one chicken plate",
			want: []dialogue.Item{{Name: "chicken plate", Quantity: 1}},
		},
		{
			name: "nothing on the menu",
			text: "a large pizza",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dialogue.ExtractItems(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d items %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

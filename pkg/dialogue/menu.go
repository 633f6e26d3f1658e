package dialogue

import (
	"regexp"
	"strconv"
	"strings"
)

// MenuItem is one orderable dish.
type MenuItem struct {
	ID       string
	Name     string
	Keywords []string
}

// Menu is the restaurant's orderable items. Keyword sets cover the
// phrasings callers actually use on the phone.
var Menu = []MenuItem{
	{ID: "chicken_shawarma", Name: "chicken shawarma", Keywords: []string{"shawarma"}},
	{ID: "mixed_grill", Name: "mixed grill", Keywords: []string{"mixed grill", "grill plate", "grilled"}},
	{ID: "chicken_plate", Name: "chicken plate", Keywords: []string{"chicken plate", "chicken meal"}},
	{ID: "frankie_sandwich", Name: "frankie sandwich", Keywords: []string{"frankie", "sandwich"}},
	{ID: "chicken_burger", Name: "chicken burger", Keywords: []string{"burger"}},
	{ID: "ayran", Name: "ayran", Keywords: []string{"ayran", "yogurt drink"}},
	{ID: "pepsi", Name: "pepsi", Keywords: []string{"pepsi", "cola", "soda"}},
}

var digitRe = regexp.MustCompile(`\d+`)

// numberWords maps spoken quantities; transcripts spell small numbers out.
var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// ExtractItems finds menu items mentioned in the utterance, each with
// the quantity spoken nearest before it (default 1).
func ExtractItems(text string) []Item {
	lower := strings.ToLower(text)

	var found []Item
	seen := map[string]bool{}

	for _, mi := range Menu {
		for _, kw := range mi.Keywords {
			idx := strings.Index(lower, kw)
			if idx < 0 || seen[mi.ID] {
				continue
			}
			seen[mi.ID] = true
			found = append(found, Item{
				Name:     mi.Name,
				Quantity: quantityBefore(lower[:idx]),
			})
			break
		}
	}
	return found
}

// quantityBefore extracts the last quantity mentioned in the text
// preceding a menu item. Defaults to 1.
func quantityBefore(prefix string) int {
	qty := 0

	if m := digitRe.FindAllString(prefix, -1); len(m) > 0 {
		if n, err := strconv.Atoi(m[len(m)-1]); err == nil && n > 0 {
			qty = n
		}
	}

	// A trailing number word beats an earlier digit
	words := strings.Fields(prefix)
	for i := len(words) - 1; i >= 0 && i >= len(words)-3; i-- {
		if n, ok := numberWords[strings.Trim(words[i], ",.")]; ok {
			qty = n
			break
		}
	}

	if qty <= 0 || qty > 50 {
		return 1
	}
	return qty
}

// MenuLine is the spoken menu summary.
func MenuLine() string {
	return "Today we have chicken shawarma, mixed grill, chicken plate, frankie sandwich, and chicken burger, with ayran or pepsi to drink. What would you like to order?"
}

// describeItems renders the cart for the spoken order summary.
func describeItems(items []Item) string {
	parts := make([]string, len(items))
	for i, item := range items {
		if item.Quantity > 1 {
			parts[i] = strconv.Itoa(item.Quantity) + " " + item.Name
		} else {
			parts[i] = "one " + item.Name
		}
	}
	switch len(parts) {
	case 0:
		return "nothing"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}

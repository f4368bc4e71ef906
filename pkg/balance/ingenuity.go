package balance

import (
	"strings"
	"unicode/utf8"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// admissionThreshold is the ingenuity score at or above which a narrative
// field change is admitted even without a catalogued pattern match.
const admissionThreshold = 0.6

// Phrases suggesting the player is describing a creative use rather than
// demanding an upgrade.
var creativePhrases = []string{
	"using", "using the", "with the", "to cut", "to carve", "to dig", "to pry",
	"breaking", "damaging", "wearing out", "dulling", "chipped", "cracked",
	"repurposing", "modifying", "altering", "customizing", "personalizing",
}

// Phrases acknowledging a realistic downside. Weighted heavier than creative
// phrases.
var consequencePhrases = []string{
	"break", "damage", "wear", "dull", "chip", "crack", "rust", "bend",
	"lose", "drop", "misplace", "forget", "leave behind",
}

var causalConnectives = []string{"because", "since", "after", "while", "during"}

// Score rates how inventive a justification reads, clamped to [0, 1]. Each
// table phrase present in the text counts once; overlapping phrases such as
// "using" and "using the" both count.
func Score(justification string) float64 {
	lower := strings.ToLower(justification)
	score := 0.0

	for _, phrase := range creativePhrases {
		if strings.Contains(lower, phrase) {
			score += 0.2
		}
	}
	for _, phrase := range consequencePhrases {
		if strings.Contains(lower, phrase) {
			score += 0.3
		}
	}
	if utf8.RuneCountInString(justification) > 50 {
		score += 0.1
	}
	for _, word := range causalConnectives {
		if strings.Contains(lower, word) {
			score += 0.2
			break
		}
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// pattern is a set of substrings that must all appear in a justification for
// the pattern to match.
type pattern []string

// Catalogued ingenious uses of an item. Matching any one admits the change
// regardless of score.
var itemPatterns = []pattern{
	{"using", "to cut", "food"},
	{"using", "to carve", "wood"},
	{"using", "to dig", "hole"},
	{"using", "to pry", "open"},
	{"breaking", "while", "using"},
	{"damaging", "during", "battle"},
	{"wearing out", "from", "use"},
	{"losing", "while", "traveling"},
	{"dropping", "in", "water"},
	{"rusting", "from", "moisture"},
}

// Catalogued ingenious uses of a skill.
var skillPatterns = []pattern{
	{"overusing", "skill"},
	{"practicing", "too much"},
	{"learning", "new technique"},
	{"adapting", "skill"},
	{"forgetting", "how to"},
	{"improving", "technique"},
	{"developing", "bad habit"},
}

func patternsFor(category string) []pattern {
	switch category {
	case state.CategoryItem:
		return itemPatterns
	case state.CategorySkill:
		return skillPatterns
	default:
		return nil
	}
}

func matchesAny(patterns []pattern, justification string) bool {
	lower := strings.ToLower(justification)
	for _, p := range patterns {
		matched := true
		for _, part := range p {
			if !strings.Contains(lower, part) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

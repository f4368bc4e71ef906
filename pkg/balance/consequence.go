package balance

import (
	"fmt"
	"strings"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// consequenceFamily maps a keyword family in the justification to the
// consequence it earns. Families are checked in order; the first match wins.
type consequenceFamily struct {
	keywords []string
	kind     string
	effect   string
	severity string
	format   string
}

var itemFamilies = []consequenceFamily{
	{
		keywords: []string{"break", "damage", "crack", "chip"},
		kind:     "damage",
		effect:   "item_damaged",
		severity: "minor",
		format:   "The %s shows signs of wear and damage from your creative use.",
	},
	{
		keywords: []string{"dull", "wearing out", "blunt"},
		kind:     "deterioration",
		effect:   "item_dulled",
		severity: "minor",
		format:   "The %s has become dulled from overuse.",
	},
	{
		keywords: []string{"rust", "corrode", "water"},
		kind:     "corrosion",
		effect:   "item_rusted",
		severity: "minor",
		format:   "The %s has developed rust spots from exposure to moisture.",
	},
	{
		keywords: []string{"lose", "drop", "misplace"},
		kind:     "loss",
		effect:   "item_lost",
		severity: "major",
		format:   "You realize the %s is missing - perhaps lost during your adventures.",
	},
	{
		keywords: []string{"bend", "warp", "deform"},
		kind:     "deformation",
		effect:   "item_bent",
		severity: "moderate",
		format:   "The %s has been bent out of shape from improper use.",
	},
}

var itemDefaultFamily = consequenceFamily{
	kind:     "wear",
	effect:   "item_worn",
	severity: "minor",
	format:   "The %s shows signs of creative use and wear.",
}

var skillFamilies = []consequenceFamily{
	{
		keywords: []string{"overusing", "too much", "exhaustion"},
		kind:     "exhaustion",
		effect:   "skill_exhausted",
		severity: "minor",
		format:   "Your %s has become exhausting from overuse.",
	},
	{
		keywords: []string{"forgetting", "losing", "rusty"},
		kind:     "rust",
		effect:   "skill_rusty",
		severity: "minor",
		format:   "Your %s has become rusty from lack of practice.",
	},
	{
		keywords: []string{"bad habit", "wrong way", "incorrect"},
		kind:     "bad_habit",
		effect:   "skill_bad_habit",
		severity: "minor",
		format:   "You've developed a bad habit with your %s technique.",
	},
}

var skillDefaultFamily = consequenceFamily{
	kind:     "development",
	effect:   "skill_evolved",
	severity: "minor",
	format:   "Your %s has evolved through creative use.",
}

func (f consequenceFamily) build(displayName string) *state.Consequence {
	return &state.Consequence{
		Type:        f.kind,
		Description: fmt.Sprintf(f.format, displayName),
		EffectTag:   f.effect,
		Severity:    f.severity,
	}
}

// synthesizeConsequence picks the consequence an admitted narrative change
// earns, based on what the justification admits will happen to the entity.
func synthesizeConsequence(category, justification, displayName string) *state.Consequence {
	var families []consequenceFamily
	var fallback consequenceFamily
	switch category {
	case state.CategoryItem:
		families, fallback = itemFamilies, itemDefaultFamily
	case state.CategorySkill:
		families, fallback = skillFamilies, skillDefaultFamily
	default:
		return nil
	}

	lower := strings.ToLower(justification)
	for _, f := range families {
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				return f.build(displayName)
			}
		}
	}
	return fallback.build(displayName)
}

package balance

import (
	"strings"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// fieldPolicy classifies how the validator treats one proposed field write.
type fieldPolicy int

const (
	// policyUnknown fields are silently skipped; the setter whitelist would
	// reject them at commit anyway.
	policyUnknown fieldPolicy = iota

	// policyCosmetic fields carry no mechanical weight and are admitted verbatim.
	policyCosmetic

	// policyPower fields affect game balance and are never modifiable through
	// this pathway. Proposing one fails the whole modification set.
	policyPower

	// policyNarrative fields are free text admitted only when the justification
	// passes the ingenuity rule, and always at the price of a consequence.
	policyNarrative
)

// categoryPolicies is the per-category field partition. The partition is the
// central invariant protecting game balance: no conditional logic anywhere
// else decides whether a field is writable.
var categoryPolicies = map[string]map[string]fieldPolicy{
	state.CategoryItem: {
		"name":        policyCosmetic,
		"description": policyNarrative,
		"cost":        policyPower,
		"rarity":      policyPower,
		"weight":      policyPower,
	},
	state.CategorySkill: {
		"name":           policyCosmetic,
		"description":    policyNarrative,
		"cost":           policyPower,
		"skill_type":     policyPower,
		"target":         policyPower,
		"range":          policyPower,
		"area_of_effect": policyPower,
	},
	state.CategoryQuest: {
		"name":        policyCosmetic,
		"description": policyCosmetic,
		"reward":      policyPower,
		"objectives":  policyPower,
		"level":       policyPower,
		"status":      policyPower,
	},
	state.CategoryLocation: {
		"name":            policyCosmetic,
		"description":     policyCosmetic,
		"scene":           policyCosmetic,
		"npcs":            policyPower,
		"sub_locations":   policyPower,
		"shop_items":      policyPower,
		"entities_within": policyPower,
	},
	state.CategoryNPC: {
		"name":           policyCosmetic,
		"description":    policyCosmetic,
		"personality":    policyCosmetic,
		"bio":            policyCosmetic,
		"location_id":    policyPower,
		"level":          policyPower,
		"quests_offered": policyPower,
		"shop_items":     policyPower,
	},
}

// powerClaims is vocabulary that smuggles mechanical upgrades into narrative
// text. A proposed value containing any of these is rejected outright, no
// matter how ingenious the justification.
var powerClaims = []string{"magic", "enchanted", "powerful", "legendary", "epic"}

func containsPowerClaim(value string) bool {
	lower := strings.ToLower(value)
	for _, word := range powerClaims {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

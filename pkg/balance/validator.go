// Package balance decides which proposed field changes to world entities are
// admissible. Entity fields partition into cosmetic fields admitted verbatim,
// power fields that are never writable through this pathway, and narrative
// fields admitted only when the player's justification is inventive enough,
// at the price of a synthesized consequence. The oracle proposes; this
// package disposes.
package balance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// ErrDenied reports a modification set rejected by balance policy.
var ErrDenied = errors.New("modification denied")

// ReservedConsequenceKey is the JSON key under which a synthesized
// consequence travels with an admitted field set. It is exempt from the
// setter whitelist and is never written onto an entity.
const ReservedConsequenceKey = "_consequence"

// Verdict is the outcome of validating one proposed modification set.
// Admitted holds only real entity fields; the consequence rides alongside
// under its reserved key.
type Verdict struct {
	OK          bool               `json:"ok"`
	Reason      string             `json:"reason"`
	Admitted    map[string]string  `json:"admitted,omitempty"`
	Consequence *state.Consequence `json:"_consequence,omitempty"`
}

// Validate decides which of the proposed field changes may be applied to the
// target entity. The target must be owned (item in inventory, skill known,
// quest active, location discovered, NPC present); an unknown or unowned id
// fails unconditionally with a state.ErrTargetNotFound error before any field
// is considered. Fields are then judged in sorted order against the category
// policy: the first power-protected field fails the whole set, cosmetic
// fields are admitted verbatim, and narrative fields are admitted when the
// justification matches a catalogued ingenious-use pattern or scores at least
// the admission threshold. Proposed narrative text carrying power-claim
// vocabulary fails the whole set regardless. An empty admitted set is an
// overall failure.
func Validate(category, targetID string, proposed map[string]string, justification string, w *state.WorldState) (*Verdict, error) {
	displayName, err := targetOwned(w, category, targetID)
	if err != nil {
		return nil, err
	}

	policies := categoryPolicies[category]
	score := Score(justification)
	patterns := patternsFor(category)

	fields := make([]string, 0, len(proposed))
	for f := range proposed {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	admitted := make(map[string]string)
	var consequence *state.Consequence

	for _, field := range fields {
		value := proposed[field]
		switch policies[field] {
		case policyCosmetic:
			admitted[field] = value

		case policyPower:
			return &Verdict{
				Reason: fmt.Sprintf("cannot modify %q: field is power-protected", field),
			}, nil

		case policyNarrative:
			if containsPowerClaim(value) {
				return &Verdict{
					Reason: fmt.Sprintf("cannot add power claims through %s changes", field),
				}, nil
			}
			if !matchesAny(patterns, justification) && score < admissionThreshold {
				continue
			}
			admitted[field] = value
			if consequence == nil {
				consequence = synthesizeConsequence(category, justification, displayName)
			}

		default:
			// Unknown field: skipped. The setter whitelist would refuse it at
			// commit, so it never reaches an entity either way.
			continue
		}
	}

	if len(admitted) == 0 {
		return &Verdict{Reason: "no admissible modification found"}, nil
	}

	return &Verdict{
		OK:          true,
		Reason:      "modifications admitted",
		Admitted:    admitted,
		Consequence: consequence,
	}, nil
}

// targetOwned checks the ownership precondition and resolves the entity's
// display name for consequence text.
func targetOwned(w *state.WorldState, category, targetID string) (string, error) {
	switch category {
	case state.CategoryItem:
		item := w.GetItem(targetID)
		if item == nil {
			return "", fmt.Errorf("%w: item %q", state.ErrTargetNotFound, targetID)
		}
		if !w.Player.HasItem(targetID) {
			return "", fmt.Errorf("%w: item %q is not in your inventory", state.ErrTargetNotFound, targetID)
		}
		return item.Name, nil

	case state.CategorySkill:
		skill := w.GetSkill(targetID)
		if skill == nil {
			return "", fmt.Errorf("%w: skill %q", state.ErrTargetNotFound, targetID)
		}
		if !w.Player.HasSkill(targetID) {
			return "", fmt.Errorf("%w: skill %q is not known", state.ErrTargetNotFound, targetID)
		}
		return skill.Name, nil

	case state.CategoryQuest:
		quest := w.GetQuest(targetID)
		if quest == nil {
			return "", fmt.Errorf("%w: quest %q", state.ErrTargetNotFound, targetID)
		}
		if !w.Player.HasActiveQuest(targetID) {
			return "", fmt.Errorf("%w: quest %q is not active", state.ErrTargetNotFound, targetID)
		}
		return quest.Name, nil

	case state.CategoryLocation:
		loc := w.GetLocation(targetID)
		if loc == nil {
			return "", fmt.Errorf("%w: location %q", state.ErrTargetNotFound, targetID)
		}
		if !w.IsDiscovered(targetID) {
			return "", fmt.Errorf("%w: location %q has not been discovered", state.ErrTargetNotFound, targetID)
		}
		return loc.Name, nil

	case state.CategoryNPC:
		npc := w.GetNPC(targetID)
		if npc == nil {
			return "", fmt.Errorf("%w: npc %q", state.ErrTargetNotFound, targetID)
		}
		return npc.Name, nil

	default:
		return "", fmt.Errorf("%w: unknown category %q", state.ErrTargetNotFound, category)
	}
}

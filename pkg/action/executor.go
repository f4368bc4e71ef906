// Package action implements the generic action primitive: precondition
// checks and effect application against a world snapshot. Validation is a
// pure predicate; execution debits costs and applies effects in one logical
// step, so a validated execution cannot fail partway.
package action

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// ErrPreconditionFailed is returned by Execute when the action's
// requirements are not met. The wrapped message carries the same reason
// CanPerform reports.
var ErrPreconditionFailed = errors.New("action preconditions not met")

// resourceOrder fixes the checking and debit order for named resource
// costs, so the reported reason is deterministic.
var resourceOrder = []string{"mana", "health", "gold", "stamina"}

// CanPerform reports whether the world's player can perform the action.
// It is a pure predicate: no mutation, deterministic given the snapshot.
// Checks run in order: level floor, resource costs, required items,
// required skills, location. The first failing check determines the reason.
func CanPerform(a *state.Action, w *state.WorldState) (bool, string) {
	p := w.Player

	if a.Requirements.Level > 0 && p.Stats.Level < a.Requirements.Level {
		return false, fmt.Sprintf("requires level %d", a.Requirements.Level)
	}

	for _, resource := range resourceOrder {
		amount, ok := a.Cost[resource]
		if !ok {
			continue
		}
		switch resource {
		case "mana":
			if p.Stats.Mana < amount {
				return false, fmt.Sprintf("not enough mana (need %d, have %d)", amount, p.Stats.Mana)
			}
		case "health":
			if p.Stats.Health < amount {
				return false, fmt.Sprintf("not enough health (need %d, have %d)", amount, p.Stats.Health)
			}
		case "gold":
			if p.Gold < amount {
				return false, fmt.Sprintf("not enough gold (need %d, have %d)", amount, p.Gold)
			}
		case "stamina":
			// Stamina is a percentage-of-max-health proxy; the debit floors
			// health at 1 and can never fail.
		}
	}

	for _, itemID := range a.Requirements.Items {
		if !p.HasItem(itemID) {
			return false, fmt.Sprintf("missing required item: %s", itemID)
		}
	}

	for _, skillID := range a.Requirements.Skills {
		if !p.HasSkill(skillID) {
			return false, fmt.Sprintf("missing required skill: %s", skillID)
		}
	}

	if a.Requirements.Location != "" && p.Location != a.Requirements.Location {
		return false, fmt.Sprintf("must be at %s", a.Requirements.Location)
	}

	return true, "action can be performed"
}

// Execute re-validates the action, debits every cost, and applies every
// effect-map entry. On denial it returns ErrPreconditionFailed wrapping the
// same reason CanPerform reports, with no mutation. Unknown effect tags are
// a deliberate no-op; an empty effect map still succeeds once costs are
// paid.
func Execute(a *state.Action, w *state.WorldState) (string, error) {
	ok, reason := CanPerform(a, w)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPreconditionFailed, reason)
	}

	debitCosts(a, w.Player)
	applyEffects(a, w)

	return fmt.Sprintf("Successfully performed %s", a.Name), nil
}

// debitCosts subtracts every named resource cost. Stamina converts to an
// absolute amount (at least 1) before debiting, and the resulting health
// never drops below 1. Unrecognized resource names are ignored.
func debitCosts(a *state.Action, p *state.Player) {
	for _, resource := range resourceOrder {
		amount, ok := a.Cost[resource]
		if !ok {
			continue
		}
		switch resource {
		case "mana":
			p.Stats.Mana -= amount
		case "health":
			p.Stats.Health -= amount
		case "gold":
			p.Gold -= amount
		case "stamina":
			cost := p.Stats.MaxHealth * amount / 100
			if cost < 1 {
				cost = 1
			}
			p.Stats.Health -= cost
			if p.Stats.Health < 1 {
				p.Stats.Health = 1
			}
		}
	}
}

// applyEffects applies the effect map in sorted tag order, so multi-effect
// actions resolve deterministically.
func applyEffects(a *state.Action, w *state.WorldState) {
	tags := make([]string, 0, len(a.Effects))
	for tag := range a.Effects {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		apply, known := appliers[tag]
		if !known {
			// Forward-compatible with oracle effect vocabularies not yet
			// implemented.
			continue
		}
		apply(w, a.ID, a.Effects[tag])
	}
}

// Available returns the registered actions the player can currently
// perform, in sorted id order.
func Available(w *state.WorldState) []*state.Action {
	ids := make([]string, 0, len(w.Actions))
	for id := range w.Actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*state.Action, 0, len(ids))
	for _, id := range ids {
		a := w.Actions[id]
		if ok, _ := CanPerform(a, w); ok {
			out = append(out, a)
		}
	}
	return out
}

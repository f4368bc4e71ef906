package handlers

import (
	"fmt"
	"strings"

	"github.com/mkarlsen/world-engine/pkg/action"
	"github.com/mkarlsen/world-engine/pkg/state"
)

type commandType string

const (
	cmdLook      commandType = "look"
	cmdInventory commandType = "inventory"
	cmdStats     commandType = "stats"
	cmdActions   commandType = "actions"
	cmdNone      commandType = "" // No command, used for fallback
)

// CommandResult represents the result of attempting to handle a user command.
type CommandResult struct {
	Handled bool   // True if the command was fully resolved and no oracle call is needed
	Message string // Message to return
}

// parseCommand parses the input string and returns the command type if recognized.
// If not recognized, returns cmdNone.
func parseCommand(input string) commandType {
	known := map[string]commandType{
		"look":      cmdLook,
		"location":  cmdLook,
		"l":         cmdLook,
		"inventory": cmdInventory,
		"i":         cmdInventory,
		"stats":     cmdStats,
		"sheet":     cmdStats,
		"actions":   cmdActions,
	}
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return cmdNone
	}
	if cmd, ok := known[trimmed]; ok {
		return cmd
	}
	return cmdNone
}

// TryHandleCommand attempts to handle shortcut commands without consulting
// the oracle. Commands read the world and never mutate it.
func TryHandleCommand(w *state.WorldState, input string) *CommandResult {
	switch parseCommand(input) {
	case cmdLook:
		return &CommandResult{
			Handled: true,
			Message: describeLocation(w),
		}

	case cmdInventory:
		return &CommandResult{
			Handled: true,
			Message: describeInventory(w),
		}

	case cmdStats:
		return &CommandResult{
			Handled: true,
			Message: describeStats(w),
		}

	case cmdActions:
		return &CommandResult{
			Handled: true,
			Message: describeActions(w),
		}

	default:
		// Pass the input through if not a recognized command.
		return &CommandResult{
			Handled: false,
			Message: input,
		}
	}
}

// describeLocation returns a description of the player's current location,
// including any NPCs present.
func describeLocation(w *state.WorldState) string {
	loc := w.GetLocation(w.Player.Location)
	if loc == nil {
		return "You are in an unknown location."
	}

	desc := fmt.Sprintf("%s: %s", loc.Name, loc.Description)
	if len(loc.NPCs) == 0 {
		return desc
	}

	names := make([]string, 0, len(loc.NPCs))
	for _, id := range loc.NPCs {
		if npc := w.GetNPC(id); npc != nil {
			names = append(names, npc.Name)
		}
	}
	if len(names) == 0 {
		return desc
	}
	return desc + "\nPresent: " + strings.Join(names, ", ")
}

// describeInventory returns a description of the player's inventory.
func describeInventory(w *state.WorldState) string {
	if len(w.Player.Inventory) == 0 {
		return "Your inventory is empty."
	}

	lines := make([]string, 0, len(w.Player.Inventory))
	for _, id := range w.Player.Inventory {
		if item := w.GetItem(id); item != nil {
			lines = append(lines, item.Name)
			continue
		}
		lines = append(lines, id)
	}
	return "You have:\n- " + strings.Join(lines, "\n- ")
}

// describeStats returns the player's character sheet: pools and progress,
// then the d20 ability block when the sheet builds.
func describeStats(w *state.WorldState) string {
	p := w.Player
	locName := p.Location
	if loc := w.GetLocation(p.Location); loc != nil {
		locName = loc.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (level %d)\nHP %d/%d  Mana %d/%d  Gold %d\nXP %d/%d",
		p.Name, p.Stats.Level,
		p.Stats.Health, p.Stats.MaxHealth,
		p.Stats.Mana, p.Stats.MaxMana,
		p.Gold,
		p.Stats.Experience, p.ExperienceToNext())

	if actor, err := p.Sheet(); err == nil {
		abilities := []struct {
			label string
			key   string
		}{
			{"STR", "strength"}, {"DEX", "dexterity"}, {"CON", "constitution"},
			{"INT", "intelligence"}, {"WIS", "wisdom"}, {"CHA", "charisma"},
		}
		parts := make([]string, 0, len(abilities))
		for _, ab := range abilities {
			if score, ok := actor.Attribute(ab.key); ok {
				parts = append(parts, fmt.Sprintf("%s %d (%+d)", ab.label, score, abilityMod(score)))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, "\n%s\nAC %d", strings.Join(parts, "  "), actor.AC())
		}
	}

	fmt.Fprintf(&b, "\nLocation: %s", locName)
	return b.String()
}

// abilityMod is the standard d20 ability modifier, floored for scores
// below 10.
func abilityMod(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	return -((11 - score) / 2)
}

// describeActions returns the registered actions the player can currently
// perform.
func describeActions(w *state.WorldState) string {
	available := action.Available(w)
	if len(available) == 0 {
		return "No actions are available to you right now."
	}

	lines := make([]string, 0, len(available))
	for _, a := range available {
		lines = append(lines, fmt.Sprintf("%s: %s", a.ID, a.Name))
	}
	return "You can:\n- " + strings.Join(lines, "\n- ")
}

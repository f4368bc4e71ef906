package action

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mkarlsen/world-engine/pkg/state"
)

func snapshot(t *testing.T, w *state.WorldState) []byte {
	t.Helper()
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal world: %v", err)
	}
	return data
}

func TestCanPerform_CheckOrder(t *testing.T) {
	tests := []struct {
		name       string
		action     *state.Action
		setup      func(w *state.WorldState)
		wantOK     bool
		wantReason string
	}{
		{
			name:   "no requirements",
			action: &state.Action{ID: "wave", Name: "Wave"},
			wantOK: true,
		},
		{
			name: "level floor",
			action: &state.Action{
				ID:           "smite",
				Requirements: state.Requirements{Level: 5},
			},
			wantOK:     false,
			wantReason: "requires level 5",
		},
		{
			name: "insufficient mana reported per-resource",
			action: &state.Action{
				ID:   "fireball",
				Cost: map[string]int{"mana": 60},
			},
			wantOK:     false,
			wantReason: "not enough mana (need 60, have 50)",
		},
		{
			name: "insufficient gold",
			action: &state.Action{
				ID:   "bribe",
				Cost: map[string]int{"gold": 500},
			},
			wantOK:     false,
			wantReason: "not enough gold (need 500, have 100)",
		},
		{
			name: "level checked before resources",
			action: &state.Action{
				ID:           "grand_ritual",
				Requirements: state.Requirements{Level: 10},
				Cost:         map[string]int{"mana": 999},
			},
			wantOK:     false,
			wantReason: "requires level 10",
		},
		{
			name: "missing item",
			action: &state.Action{
				ID:           "lockpick",
				Requirements: state.Requirements{Items: []string{"lockpicks"}},
			},
			wantOK:     false,
			wantReason: "missing required item: lockpicks",
		},
		{
			name: "missing skill",
			action: &state.Action{
				ID:           "scribe",
				Requirements: state.Requirements{Skills: []string{"literacy"}},
			},
			wantOK:     false,
			wantReason: "missing required skill: literacy",
		},
		{
			name: "wrong location",
			action: &state.Action{
				ID:           "pray",
				Requirements: state.Requirements{Location: "temple"},
			},
			wantOK:     false,
			wantReason: "must be at temple",
		},
		{
			name: "items checked before location",
			action: &state.Action{
				ID: "ritual",
				Requirements: state.Requirements{
					Items:    []string{"candle"},
					Location: "temple",
				},
			},
			wantOK:     false,
			wantReason: "missing required item: candle",
		},
		{
			name: "stamina cost never blocks",
			action: &state.Action{
				ID:   "sprint",
				Cost: map[string]int{"stamina": 90},
			},
			setup: func(w *state.WorldState) {
				w.Player.Stats.Health = 2
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := state.NewWorldState()
			if tt.setup != nil {
				tt.setup(w)
			}
			ok, reason := CanPerform(tt.action, w)
			if ok != tt.wantOK {
				t.Fatalf("CanPerform() ok = %v (%q), want %v", ok, reason, tt.wantOK)
			}
			if tt.wantReason != "" && reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestExecute_DenialIsPure(t *testing.T) {
	w := state.NewWorldState()
	a := &state.Action{
		ID:   "fireball",
		Name: "Fireball",
		Cost: map[string]int{"mana": 60},
		Effects: map[string]state.EffectParams{
			"add_gold": {"amount": 100},
		},
	}

	before := snapshot(t, w)
	_, wantReason := CanPerform(a, w)

	msg, err := Execute(a, w)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("error = %v, want ErrPreconditionFailed", err)
	}
	if msg != "" {
		t.Errorf("message = %q, want empty on denial", msg)
	}
	if !strings.Contains(err.Error(), wantReason) {
		t.Errorf("error %q does not carry the CanPerform reason %q", err, wantReason)
	}
	if string(before) != string(snapshot(t, w)) {
		t.Error("denied execution mutated the world")
	}
}

func TestExecute_DebitsAndEffects(t *testing.T) {
	w := state.NewWorldState()
	w.Player.Stats.Health = 60
	a := &state.Action{
		ID:   "war_chant",
		Name: "War Chant",
		Cost: map[string]int{"mana": 10, "gold": 5},
		Effects: map[string]state.EffectParams{
			"heal":           {"amount": 15},
			"add_experience": {"amount": 25},
			"improve_relationship": {
				"npc_id": "barkeep",
				"amount": 2,
			},
		},
	}

	msg, err := Execute(a, w)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if msg != "Successfully performed War Chant" {
		t.Errorf("message = %q", msg)
	}
	if w.Player.Stats.Mana != 40 {
		t.Errorf("mana = %d, want 40", w.Player.Stats.Mana)
	}
	if w.Player.Gold != 95 {
		t.Errorf("gold = %d, want 95", w.Player.Gold)
	}
	if w.Player.Stats.Health != 75 {
		t.Errorf("health = %d, want 75 (60 healed by 15)", w.Player.Stats.Health)
	}
	if w.Player.Stats.Experience != 25 {
		t.Errorf("experience = %d, want 25", w.Player.Stats.Experience)
	}
	if w.Relationships["barkeep"] != 2 {
		t.Errorf("relationship = %d, want 2", w.Relationships["barkeep"])
	}
}

func TestExecute_StaminaConversion(t *testing.T) {
	w := state.NewWorldState()
	a := &state.Action{
		ID:   "sprint",
		Name: "Sprint",
		Cost: map[string]int{"stamina": 10},
	}

	// 10% of max health 100 = 10.
	if _, err := Execute(a, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if w.Player.Stats.Health != 90 {
		t.Errorf("health = %d, want 90", w.Player.Stats.Health)
	}

	// Debit never drops health below 1.
	w.Player.Stats.Health = 5
	big := &state.Action{ID: "marathon", Name: "Marathon", Cost: map[string]int{"stamina": 50}}
	if _, err := Execute(big, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if w.Player.Stats.Health != 1 {
		t.Errorf("health = %d, want floor of 1", w.Player.Stats.Health)
	}

	// Tiny percentages still cost at least 1.
	w.Player.Stats.Health = 50
	tiny := &state.Action{ID: "stretch", Name: "Stretch", Cost: map[string]int{"stamina": 0}}
	if _, err := Execute(tiny, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if w.Player.Stats.Health != 49 {
		t.Errorf("health = %d, want 49 (minimum debit of 1)", w.Player.Stats.Health)
	}
}

func TestExecute_UnknownEffectTagIsNoOp(t *testing.T) {
	w := state.NewWorldState()
	before := snapshot(t, w)

	a := &state.Action{
		ID:   "mystery",
		Name: "Mystery",
		Effects: map[string]state.EffectParams{
			"summon_dragon":    {"size": "large"},
			"rewrite_dialogue": {},
		},
	}

	msg, err := Execute(a, w)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if msg != "Successfully performed Mystery" {
		t.Errorf("message = %q", msg)
	}
	if string(before) != string(snapshot(t, w)) {
		t.Error("unknown effect tags mutated the world")
	}
}

func TestExecute_EmptyEffectMapStillSucceeds(t *testing.T) {
	w := state.NewWorldState()
	a := &state.Action{
		ID:   "tip",
		Name: "Tip the Barkeep",
		Cost: map[string]int{"gold": 1},
	}

	if _, err := Execute(a, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if w.Player.Gold != 99 {
		t.Errorf("gold = %d, want 99", w.Player.Gold)
	}
}

func TestExecute_EffectVocabulary(t *testing.T) {
	w := state.NewWorldState()
	w.Player.ActiveQuests = []string{"rat_problem"}
	a := &state.Action{
		ID:   "grand_gesture",
		Name: "Grand Gesture",
		Effects: map[string]state.EffectParams{
			"move_to":              {"location_id": "forest"},
			"unlock_location":      {"location_id": "forest"},
			"trigger_event":        {"event_id": "storm_breaks"},
			"advance_quest":        {"quest_id": "rat_problem"},
			"reveal_secret":        {"secret_id": "cellar_door"},
			"protection":           {"type": "fire", "duration": 8},
			"establish_connection": {"type": "guild", "target": "smugglers"},
			"gain_title":           {},
			"create_art":           {"type": "mural", "value": 30},
		},
	}

	if _, err := Execute(a, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if w.Player.Location != "forest" {
		t.Errorf("location = %q, want forest", w.Player.Location)
	}
	found := false
	for _, d := range w.Discovered {
		if d == "forest" {
			found = true
		}
	}
	if !found {
		t.Error("forest not discovered")
	}
	if len(w.WorldEvents) != 1 || w.WorldEvents[0].ID != "storm_breaks" || w.WorldEvents[0].TriggeredBy != "grand_gesture" {
		t.Errorf("world events = %+v", w.WorldEvents)
	}
	if len(w.AdvancedQuests) != 1 || w.AdvancedQuests[0] != "rat_problem" {
		t.Errorf("advanced quests = %v", w.AdvancedQuests)
	}
	if len(w.RevealedSecrets) != 1 || w.RevealedSecrets[0] != "cellar_door" {
		t.Errorf("revealed secrets = %v", w.RevealedSecrets)
	}
	if w.StatusEffects["protection_fire"] != 8 {
		t.Errorf("protection_fire = %d, want 8", w.StatusEffects["protection_fire"])
	}
	if w.Flags["connection_guild"] != "smugglers" {
		t.Errorf("connection_guild = %q", w.Flags["connection_guild"])
	}
	if w.Flags["title"] != "Adventurer" {
		t.Errorf("title = %q, want default Adventurer", w.Flags["title"])
	}
	if w.Flags["created_art_mural"] != "30" {
		t.Errorf("created_art_mural = %q, want 30", w.Flags["created_art_mural"])
	}
}

func TestExecute_AdvanceQuestRequiresActiveQuest(t *testing.T) {
	w := state.NewWorldState()
	a := &state.Action{
		ID:   "push",
		Name: "Push",
		Effects: map[string]state.EffectParams{
			"advance_quest": {"quest_id": "rat_problem"},
		},
	}
	if _, err := Execute(a, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(w.AdvancedQuests) != 0 {
		t.Error("inactive quest should not advance")
	}
}

func TestExecute_CombatTagsNoOp(t *testing.T) {
	w := state.NewWorldState()
	before := snapshot(t, w)
	a := &state.Action{
		ID:   "strike",
		Name: "Strike",
		Effects: map[string]state.EffectParams{
			"damage_enemy": {"amount": 10},
			"buff_ally":    {"amount": 5},
		},
	}
	if _, err := Execute(a, w); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(before) != string(snapshot(t, w)) {
		t.Error("combat tags mutated the world outside a combat context")
	}
}

func TestAvailable(t *testing.T) {
	w := state.NewWorldState()

	ids := func() []string {
		var out []string
		for _, a := range Available(w) {
			out = append(out, a.ID)
		}
		return out
	}

	got := ids()
	if len(got) != 2 || got[0] != "meditate" || got[1] != "rest" {
		t.Fatalf("available = %v, want [meditate rest]", got)
	}

	// Losing the gold for a room drops rest from the list.
	w.Player.Gold = 3
	got = ids()
	if len(got) != 1 || got[0] != "meditate" {
		t.Errorf("available with 3 gold = %v, want [meditate]", got)
	}
}

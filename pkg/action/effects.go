package action

import (
	"strconv"
	"time"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// applierFunc applies one tagged effect to the world. causeID is the id of
// the executing action, recorded on world events.
type applierFunc func(w *state.WorldState, causeID string, p state.EffectParams)

// appliers is the effect vocabulary. Tags absent from this table are
// no-ops at execution time.
var appliers = map[string]applierFunc{
	// Resource restores, clamped to maxima.
	"heal": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Player.Heal(p.Int("amount", 0))
	},
	"restore_mana": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Player.RestoreMana(p.Int("amount", 0))
	},

	// Unclamped accruals.
	"add_gold": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Player.Gold += p.Int("amount", 0)
	},
	"add_experience": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Player.Stats.Experience += p.Int("amount", 0)
	},

	// Grants, skipped if already held.
	"add_item": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Player.AddItem(p.String("item_id"))
	},
	"learn_skill": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Player.LearnSkill(p.String("skill_id"))
	},

	// Location transitions.
	"move_to": func(w *state.WorldState, _ string, p state.EffectParams) {
		if loc := p.String("location_id"); loc != "" {
			w.Player.Location = loc
		}
	},
	"teleport_to": func(w *state.WorldState, _ string, p state.EffectParams) {
		if loc := p.String("location_id"); loc != "" {
			w.Player.Location = loc
		}
	},
	"unlock_location": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.DiscoverLocation(p.String("location_id"))
	},

	// Relational and reputation deltas, additive.
	"improve_relationship": func(w *state.WorldState, _ string, p state.EffectParams) {
		if npcID := p.String("npc_id"); npcID != "" {
			w.AdjustRelationship(npcID, p.Int("amount", 1))
		}
	},
	"gain_reputation": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.Reputation += p.Int("amount", 1)
	},

	// String-keyed grants and unlocks.
	"unlock_dialogue": func(w *state.WorldState, _ string, p state.EffectParams) {
		if id := p.String("dialogue_id"); id != "" {
			w.UnlockedDialogues = append(w.UnlockedDialogues, id)
		}
	},
	"unlock_ability": func(w *state.WorldState, _ string, p state.EffectParams) {
		if id := p.String("ability_id"); id != "" {
			w.UnlockedAbilities = append(w.UnlockedAbilities, id)
		}
	},
	"open_secret_passage": func(w *state.WorldState, _ string, p state.EffectParams) {
		if id := p.String("passage_id"); id != "" {
			w.OpenPassages = append(w.OpenPassages, id)
		}
	},
	"change_weather": func(w *state.WorldState, _ string, p state.EffectParams) {
		weather := p.String("weather")
		if weather == "" {
			weather = "clear"
		}
		w.SetFlag("weather", weather)
	},
	"gain_title": func(w *state.WorldState, _ string, p state.EffectParams) {
		title := p.String("title")
		if title == "" {
			title = "Adventurer"
		}
		w.SetFlag("title", title)
	},
	"establish_connection": func(w *state.WorldState, _ string, p state.EffectParams) {
		kind := p.String("type")
		if kind == "" {
			kind = "general"
		}
		target := p.String("target")
		if target == "" {
			target = "unknown"
		}
		w.SetFlag("connection_"+kind, target)
	},

	// Timed status effects: remaining-duration counters only. Decay is out
	// of this core's scope.
	"create_light": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.SetStatusEffect("light_source", p.Int("duration", 10))
	},
	"invisibility": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.SetStatusEffect("invisible", p.Int("duration", 5))
	},
	"flight": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.SetStatusEffect("flying", p.Int("duration", 3))
	},
	"enhanced_senses": func(w *state.WorldState, _ string, p state.EffectParams) {
		w.SetStatusEffect("enhanced_senses", p.Int("duration", 10))
	},
	"protection": func(w *state.WorldState, _ string, p state.EffectParams) {
		kind := p.String("type")
		if kind == "" {
			kind = "general"
		}
		w.SetStatusEffect("protection_"+kind, p.Int("duration", 5))
	},

	// World-event append with cause id.
	"trigger_event": func(w *state.WorldState, causeID string, p state.EffectParams) {
		if id := p.String("event_id"); id != "" {
			w.WorldEvents = append(w.WorldEvents, state.WorldEvent{
				ID:          id,
				TriggeredBy: causeID,
				Timestamp:   time.Now().UTC(),
			})
		}
	},

	// Narrative triggers.
	"reveal_secret": func(w *state.WorldState, _ string, p state.EffectParams) {
		if id := p.String("secret_id"); id != "" {
			w.RevealedSecrets = append(w.RevealedSecrets, id)
		}
	},
	"advance_quest": func(w *state.WorldState, _ string, p state.EffectParams) {
		id := p.String("quest_id")
		if id != "" && w.Player.HasActiveQuest(id) {
			w.AdvancedQuests = append(w.AdvancedQuests, id)
		}
	},

	// Creative works.
	"create_art": func(w *state.WorldState, _ string, p state.EffectParams) {
		kind := p.String("type")
		if kind == "" {
			kind = "painting"
		}
		w.SetFlag("created_art_"+kind, strconv.Itoa(p.Int("value", 10)))
	},
	"compose_song": func(w *state.WorldState, _ string, p state.EffectParams) {
		kind := p.String("type")
		if kind == "" {
			kind = "ballad"
		}
		w.SetFlag("composed_song_"+kind, "true")
	},
	"write_story": func(w *state.WorldState, _ string, p state.EffectParams) {
		kind := p.String("type")
		if kind == "" {
			kind = "tale"
		}
		w.SetFlag("written_story_"+kind, "true")
	},

	// Combat effects resolve in a combat context, not here.
	"damage_enemy": func(*state.WorldState, string, state.EffectParams) {},
	"buff_ally":    func(*state.WorldState, string, state.EffectParams) {},
	"debuff_enemy": func(*state.WorldState, string, state.EffectParams) {},
}

// KnownEffects returns the supported effect tags. Used by template
// validation to warn about tags that would silently no-op.
func KnownEffects() []string {
	tags := make([]string, 0, len(appliers))
	for tag := range appliers {
		tags = append(tags, tag)
	}
	return tags
}

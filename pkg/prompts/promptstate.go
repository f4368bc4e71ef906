package prompts

import (
	"sort"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// PromptState is a reduced world snapshot for oracle prompts. Only what a
// decision needs goes over the wire: the full document stays server-side.
type PromptState struct {
	Player    PromptPlayer `json:"player"`
	Inventory []string     `json:"player_inventory,omitempty"`
	Skills    []string     `json:"player_skills,omitempty"`
	Location  string       `json:"player_location,omitempty"`

	ActiveQuests []string `json:"active_quests,omitempty"`
	Discovered   []string `json:"discovered_locations,omitempty"`

	// NPCsPresent lists NPCs at the player's location.
	NPCsPresent []string `json:"npcs_present,omitempty"`

	Flags      map[string]string `json:"world_flags,omitempty"`
	Reputation int               `json:"reputation,omitempty"`
}

// PromptPlayer carries the oracle-visible player numbers.
type PromptPlayer struct {
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Health     int    `json:"health"`
	MaxHealth  int    `json:"max_health"`
	Mana       int    `json:"mana"`
	MaxMana    int    `json:"max_mana"`
	Gold       int    `json:"gold"`
	Experience int    `json:"experience"`
}

// ToPromptState reduces a world document to the oracle-visible snapshot.
func ToPromptState(w *state.WorldState) *PromptState {
	ps := &PromptState{
		Inventory:    w.Player.Inventory,
		Skills:       w.Player.Skills,
		Location:     w.Player.Location,
		ActiveQuests: w.Player.ActiveQuests,
		Discovered:   w.Discovered,
		Flags:        w.Flags,
		Reputation:   w.Reputation,
		Player: PromptPlayer{
			Name:       w.Player.Name,
			Level:      w.Player.Stats.Level,
			Health:     w.Player.Stats.Health,
			MaxHealth:  w.Player.Stats.MaxHealth,
			Mana:       w.Player.Stats.Mana,
			MaxMana:    w.Player.Stats.MaxMana,
			Gold:       w.Player.Gold,
			Experience: w.Player.Stats.Experience,
		},
	}

	for id, npc := range w.NPCs {
		if npc.Location == w.Player.Location {
			ps.NPCsPresent = append(ps.NPCsPresent, id)
		}
	}
	sort.Strings(ps.NPCsPresent)

	return ps
}

// PromptNPC is the oracle-visible slice of an NPC for conversation prompts.
type PromptNPC struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Personality string   `json:"personality,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Temperament string   `json:"temperament,omitempty"`
	Topics      []string `json:"scripted_topics,omitempty"`

	Relationship    int      `json:"relationship_level"`
	EssentialTopics []string `json:"known_essential_topics,omitempty"`

	// RecentExchanges holds a short window of prior dynamic dialogue,
	// oldest first, formatted "player: ... / npc: ...".
	RecentExchanges []string `json:"recent_exchanges,omitempty"`
}

// conversationWindow caps how much history rides along in a prompt.
const conversationWindow = 6

// ToPromptNPC reduces an NPC and its session conversation state for the
// conversation classification prompt.
func ToPromptNPC(npc *state.NPC, cs *state.ConversationState) *PromptNPC {
	pn := &PromptNPC{
		Name:        npc.Name,
		Description: npc.Description,
		Personality: npc.Personality,
		Bio:         npc.Bio,
		Temperament: npc.Temperament,
		Topics:      npc.Topics.Names(),
	}

	if cs == nil {
		return pn
	}
	pn.Relationship = cs.Relationship
	pn.EssentialTopics = cs.EssentialTopics

	history := cs.History
	if len(history) > conversationWindow {
		history = history[len(history)-conversationWindow:]
	}
	for _, ex := range history {
		pn.RecentExchanges = append(pn.RecentExchanges,
			"player: "+ex.PlayerInput+" / npc: "+ex.Response)
	}

	return pn
}

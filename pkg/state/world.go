package state

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// WorldState is the full mutable snapshot of one game session: the player,
// every known entity, the action registry, conversation tracking, and the
// change log. It serializes as a single JSON document and is overwritten in
// storage after each mutating turn.
type WorldState struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Player *Player `json:"player"`

	Items     map[string]*Item     `json:"items,omitempty"`
	Skills    map[string]*Skill    `json:"skills,omitempty"`
	Quests    map[string]*Quest    `json:"quests,omitempty"`
	Locations map[string]*Location `json:"locations,omitempty"`
	NPCs      map[string]*NPC      `json:"npcs,omitempty"`

	// Actions is the action registry: author-defined actions loaded from
	// templates plus oracle-proposed ones accepted during play. Keyed by id.
	Actions map[string]*Action `json:"actions,omitempty"`

	// Discovered lists location ids the player has found.
	Discovered []string `json:"discovered_locations,omitempty"`

	// Relationships tracks the player's standing with each NPC.
	Relationships map[string]int `json:"npc_relationships,omitempty"`

	WorldEvents []WorldEvent `json:"world_events,omitempty"`

	// StatusEffects maps an effect name to its remaining duration. There is
	// no decay clock in this core; durations are counters for callers to age.
	StatusEffects map[string]int `json:"status_effects,omitempty"`

	// Flags holds string-keyed grants: title, weather, connections, creative
	// works. Values are rendered as strings.
	Flags      map[string]string `json:"flags,omitempty"`
	Reputation int               `json:"reputation,omitempty"`

	UnlockedDialogues []string `json:"unlocked_dialogues,omitempty"`
	UnlockedAbilities []string `json:"unlocked_abilities,omitempty"`
	OpenPassages      []string `json:"open_passages,omitempty"`
	RevealedSecrets   []string `json:"revealed_secrets,omitempty"`
	AdvancedQuests    []string `json:"advanced_quests,omitempty"`

	// PendingConsequences holds validator-synthesized consequences awaiting
	// narration, grouped by target category ("item", "skill").
	PendingConsequences map[string][]Consequence `json:"pending_consequences,omitempty"`

	Conversations map[string]*ConversationState `json:"conversation_states,omitempty"`

	Changes ChangeLog `json:"change_log"`
}

// WorldEvent is a timestamped record appended by the trigger_event effect.
type WorldEvent struct {
	ID          string    `json:"id"`
	TriggeredBy string    `json:"triggered_by"` // id of the causing action
	Timestamp   time.Time `json:"timestamp"`
}

// Consequence is a synthesized negative side effect attached to an admitted
// narrative modification.
type Consequence struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	EffectTag   string `json:"effect,omitempty"`
	Severity    string `json:"severity"` // minor, moderate, major
}

// GetItem returns the item with the given id, or nil.
func (w *WorldState) GetItem(id string) *Item {
	return w.Items[id]
}

// GetSkill returns the skill with the given id, or nil.
func (w *WorldState) GetSkill(id string) *Skill {
	return w.Skills[id]
}

// GetQuest returns the quest with the given id, or nil.
func (w *WorldState) GetQuest(id string) *Quest {
	return w.Quests[id]
}

// GetLocation returns the location with the given id, or nil.
func (w *WorldState) GetLocation(id string) *Location {
	return w.Locations[id]
}

// GetNPC returns the NPC with the given id, or nil.
func (w *WorldState) GetNPC(id string) *NPC {
	return w.NPCs[id]
}

// GetAction returns the registered action with the given id, or nil.
func (w *WorldState) GetAction(id string) *Action {
	return w.Actions[id]
}

// RegisterAction adds an action to the registry. Registered actions are
// immutable; re-registering an existing id replaces the entry wholesale.
func (w *WorldState) RegisterAction(a *Action) {
	if a == nil || a.ID == "" {
		return
	}
	if w.Actions == nil {
		w.Actions = make(map[string]*Action)
	}
	w.Actions[a.ID] = a
}

// RemoveAction deletes an action from the registry by id.
func (w *WorldState) RemoveAction(id string) {
	delete(w.Actions, id)
}

// ActionIDs returns the registered action ids in sorted order.
func (w *WorldState) ActionIDs() []string {
	ids := make([]string, 0, len(w.Actions))
	for id := range w.Actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DiscoverLocation records a location id as known to the player. Duplicate
// discoveries are ignored.
func (w *WorldState) DiscoverLocation(id string) {
	if id == "" || w.IsDiscovered(id) {
		return
	}
	w.Discovered = append(w.Discovered, id)
}

// IsDiscovered reports whether a location id is known to the player.
func (w *WorldState) IsDiscovered(id string) bool {
	for _, d := range w.Discovered {
		if d == id {
			return true
		}
	}
	return false
}

// AdjustRelationship adds delta to the player's standing with an NPC.
func (w *WorldState) AdjustRelationship(npcID string, delta int) {
	if npcID == "" {
		return
	}
	if w.Relationships == nil {
		w.Relationships = make(map[string]int)
	}
	w.Relationships[npcID] += delta
}

// SetStatusEffect stores a remaining-duration counter for a named effect.
func (w *WorldState) SetStatusEffect(name string, duration int) {
	if name == "" {
		return
	}
	if w.StatusEffects == nil {
		w.StatusEffects = make(map[string]int)
	}
	w.StatusEffects[name] = duration
}

// SetFlag stores a string-keyed grant.
func (w *WorldState) SetFlag(key, value string) {
	if key == "" {
		return
	}
	if w.Flags == nil {
		w.Flags = make(map[string]string)
	}
	w.Flags[key] = value
}

// Conversation returns the per-NPC conversation state, creating it lazily on
// first interaction. The budget is seeded from the NPC's configured limit.
func (w *WorldState) Conversation(npcID string) *ConversationState {
	if w.Conversations == nil {
		w.Conversations = make(map[string]*ConversationState)
	}
	if cs, ok := w.Conversations[npcID]; ok {
		return cs
	}
	limit := DefaultQuestionLimit
	if npc := w.GetNPC(npcID); npc != nil && npc.QuestionLimit > 0 {
		limit = npc.QuestionLimit
	}
	cs := NewConversationState(npcID, limit)
	w.Conversations[npcID] = cs
	return cs
}

// AddPendingConsequence queues a validator-synthesized consequence for later
// narration.
func (w *WorldState) AddPendingConsequence(category string, c Consequence) {
	if w.PendingConsequences == nil {
		w.PendingConsequences = make(map[string][]Consequence)
	}
	w.PendingConsequences[category] = append(w.PendingConsequences[category], c)
}

// ClearPendingConsequences drops queued consequences for a category, or all
// categories when category is empty. Returns the number cleared.
func (w *WorldState) ClearPendingConsequences(category string) int {
	n := 0
	if category == "" {
		for _, list := range w.PendingConsequences {
			n += len(list)
		}
		w.PendingConsequences = nil
		return n
	}
	n = len(w.PendingConsequences[category])
	delete(w.PendingConsequences, category)
	return n
}

// Touch refreshes the snapshot's updated-at timestamp.
func (w *WorldState) Touch() {
	w.UpdatedAt = time.Now().UTC()
}

package state

import (
	"time"

	"github.com/google/uuid"
)

// NewWorldState creates a fresh default session: the standard starting
// player in the tavern, with the minimal compiled-in world content. Callers
// that load richer world templates overlay them on top of this.
func NewWorldState() *WorldState {
	now := time.Now().UTC()
	w := &WorldState{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Player:    NewPlayer(),

		Items:     map[string]*Item{},
		Skills:    map[string]*Skill{},
		Quests:    map[string]*Quest{},
		Locations: map[string]*Location{},
		NPCs:      map[string]*NPC{},
		Actions:   map[string]*Action{},

		Discovered:    []string{"tavern"},
		Relationships: map[string]int{},
		Conversations: map[string]*ConversationState{},
	}

	for _, it := range defaultItems() {
		w.Items[it.ID] = it
	}
	for _, sk := range defaultSkills() {
		w.Skills[sk.ID] = sk
	}
	for _, loc := range defaultLocations() {
		w.Locations[loc.ID] = loc
	}
	for _, npc := range defaultNPCs() {
		w.NPCs[npc.ID] = npc
	}
	for _, a := range defaultActions() {
		w.Actions[a.ID] = a
	}

	return w
}

// NewPlayer returns the standard starting character.
func NewPlayer() *Player {
	return &Player{
		ID:   "player",
		Name: "Hero",
		Stats: Stats{
			Health:       100,
			MaxHealth:    100,
			Mana:         50,
			MaxMana:      50,
			Strength:     15,
			Dexterity:    12,
			Constitution: 14,
			Intelligence: 10,
			Wisdom:       8,
			Charisma:     12,
			Level:        1,
			Experience:   0,
		},
		Gold:      100,
		Inventory: []string{"iron_sword"},
		Skills:    []string{"healing"},
		Location:  "tavern",
	}
}

func defaultItems() []*Item {
	return []*Item{
		{
			ID:          "iron_sword",
			Name:        "Iron Sword",
			Description: "A plain but serviceable blade.",
			Cost:        25,
			Rarity:      RarityCommon,
			Weight:      3.5,
		},
	}
}

func defaultSkills() []*Skill {
	return []*Skill{
		{
			ID:          "healing",
			Name:        "Healing",
			Description: "Close minor wounds with a focused touch.",
			Type:        SkillActive,
			Target:      TargetSelf,
			Range:       0,
			Cost:        10,
		},
	}
}

func defaultLocations() []*Location {
	return []*Location{
		{
			ID:          "tavern",
			Name:        "The Rusty Flagon",
			Description: "A warm, low-ceilinged tavern smelling of ale and woodsmoke.",
			Scene:       "Lantern light flickers over scarred oak tables. The barkeep polishes a mug and nods as you enter.",
			NPCs:        []string{"barkeep"},
		},
	}
}

func defaultNPCs() []*NPC {
	return []*NPC{
		{
			ID:          "barkeep",
			Name:        "Old Tom",
			Description: "A broad-shouldered barkeep with a ready grin.",
			Personality: "Gruff but kind, fond of gossip.",
			Bio:         "Tom has run the Rusty Flagon for thirty years and hears everything that passes through town.",
			Location:    "tavern",
			Level:       3,
			Temperament: "friendly",
			Topics: TopicList{
				{Name: "local_rumors", Response: "Folk say strange lights have been seen over the old ruins at night."},
				{Name: "the_tavern", Response: "Built her myself, beam by beam. She leans a little, but so do I."},
				{Name: "work", Response: "If you're after coin, the notice board by the door usually has something."},
			},
		},
	}
}

func defaultActions() []*Action {
	return []*Action{
		{
			ID:          "rest",
			Name:        "Rest",
			Description: "Take a room for the night and recover.",
			Category:    "recovery",
			Requirements: Requirements{
				Location: "tavern",
			},
			Cost: map[string]int{"gold": 5},
			Effects: map[string]EffectParams{
				"heal":         {"amount": 50},
				"restore_mana": {"amount": 25},
			},
			SuccessProbability: 1.0,
		},
		{
			ID:          "meditate",
			Name:        "Meditate",
			Description: "Still your mind to gather mana.",
			Category:    "recovery",
			Requirements: Requirements{
				Skills: []string{"healing"},
			},
			Cost: map[string]int{"stamina": 5},
			Effects: map[string]EffectParams{
				"restore_mana": {"amount": 15},
			},
			SuccessProbability: 1.0,
		},
	}
}

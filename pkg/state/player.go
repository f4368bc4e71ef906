package state

import (
	"fmt"

	"github.com/jwebster45206/d20"
)

// Stats holds the player's resource pools and ability scores. The pools are
// the debit targets for action costs; the ability scores feed the d20 sheet.
type Stats struct {
	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`
	Mana      int `json:"mana"`
	MaxMana   int `json:"max_mana"`

	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`

	Level      int `json:"level"`
	Experience int `json:"experience"`
}

// ToAttributes converts ability scores to a map for d20.Actor compatibility.
func (s *Stats) ToAttributes() map[string]int {
	return map[string]int{
		"strength":     s.Strength,
		"dexterity":    s.Dexterity,
		"constitution": s.Constitution,
		"intelligence": s.Intelligence,
		"wisdom":       s.Wisdom,
		"charisma":     s.Charisma,
		"level":        s.Level,
	}
}

// Player is the acting character. The struct is what persists; the d20 sheet
// is built at runtime from it.
type Player struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Stats     Stats    `json:"stats"`
	Gold      int      `json:"gold"`
	Inventory []string `json:"inventory,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	Location  string   `json:"location"`

	ActiveQuests    []string `json:"active_quests,omitempty"`
	CompletedQuests []string `json:"completed_quests,omitempty"`
}

// HasItem reports whether the item id is in the player's inventory.
func (p *Player) HasItem(id string) bool {
	for _, it := range p.Inventory {
		if it == id {
			return true
		}
	}
	return false
}

// HasSkill reports whether the player knows the skill id.
func (p *Player) HasSkill(id string) bool {
	for _, sk := range p.Skills {
		if sk == id {
			return true
		}
	}
	return false
}

// HasActiveQuest reports whether the quest id is in progress.
func (p *Player) HasActiveQuest(id string) bool {
	for _, q := range p.ActiveQuests {
		if q == id {
			return true
		}
	}
	return false
}

// AddItem puts an item id in the inventory if not already held.
func (p *Player) AddItem(id string) {
	if id == "" || p.HasItem(id) {
		return
	}
	p.Inventory = append(p.Inventory, id)
}

// LearnSkill adds a skill id if not already known.
func (p *Player) LearnSkill(id string) {
	if id == "" || p.HasSkill(id) {
		return
	}
	p.Skills = append(p.Skills, id)
}

// Heal applies a signed health delta, clamped to [0, max].
func (p *Player) Heal(n int) {
	p.Stats.Health += n
	if p.Stats.Health > p.Stats.MaxHealth {
		p.Stats.Health = p.Stats.MaxHealth
	}
	if p.Stats.Health < 0 {
		p.Stats.Health = 0
	}
}

// RestoreMana applies a signed mana delta, clamped to [0, max].
func (p *Player) RestoreMana(n int) {
	p.Stats.Mana += n
	if p.Stats.Mana > p.Stats.MaxMana {
		p.Stats.Mana = p.Stats.MaxMana
	}
	if p.Stats.Mana < 0 {
		p.Stats.Mana = 0
	}
}

// AdjustGold applies a signed gold delta, floored at zero.
func (p *Player) AdjustGold(n int) {
	p.Gold += n
	if p.Gold < 0 {
		p.Gold = 0
	}
}

// ExperienceToNext is the cumulative experience required for the next level.
func (p *Player) ExperienceToNext() int {
	return p.Stats.Level * 100
}

// GainExperience adds experience and applies any level-ups earned. Returns
// the number of levels gained.
func (p *Player) GainExperience(n int) int {
	if n <= 0 {
		return 0
	}
	p.Stats.Experience += n
	levels := 0
	for p.Stats.Experience >= p.ExperienceToNext() {
		p.LevelUp()
		levels++
	}
	return levels
}

// LevelUp advances the player one level, raising both pool maxima and
// restoring them in full.
func (p *Player) LevelUp() {
	p.Stats.Level++
	p.Stats.MaxHealth += 10
	p.Stats.Health = p.Stats.MaxHealth
	p.Stats.MaxMana += 5
	p.Stats.Mana = p.Stats.MaxMana
	p.Stats.Strength += 2
}

// armorClass derives a display AC from dexterity. The sheet is a view; no
// game rule reads it back.
func (p *Player) armorClass() int {
	return 10 + (p.Stats.Dexterity-10)/2
}

// Sheet builds a d20.Actor character sheet from the player's current stats.
// Used by front ends for stat display; the actor is rebuilt on every call and
// never stored.
func (p *Player) Sheet() (*d20.Actor, error) {
	actor, err := d20.NewActor(p.ID).
		WithHP(p.Stats.MaxHealth).
		WithAC(p.armorClass()).
		WithAttributes(p.Stats.ToAttributes()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build character sheet: %w", err)
	}

	if p.Stats.Health != p.Stats.MaxHealth && p.Stats.Health > 0 {
		if err := actor.SetHP(p.Stats.Health); err != nil {
			return nil, fmt.Errorf("failed to set current HP: %w", err)
		}
	}

	return actor, nil
}

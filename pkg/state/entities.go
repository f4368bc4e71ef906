package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Rarity tiers for items. Rarity is a power field and is never modifiable
// through the balance pathway.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

type SkillType string

const (
	SkillPassive SkillType = "passive"
	SkillActive  SkillType = "active"
)

type TargetType string

const (
	TargetEnemies  TargetType = "enemies"
	TargetOneEnemy TargetType = "one_enemy"
	TargetAllies   TargetType = "allies"
	TargetSelf     TargetType = "self"
	TargetAll      TargetType = "all"
	TargetOneAlly  TargetType = "one_ally"
)

type QuestStatus string

const (
	QuestNotStarted QuestStatus = "not_started"
	QuestInProgress QuestStatus = "in_progress"
	QuestCompleted  QuestStatus = "completed"
	QuestFailed     QuestStatus = "failed"
)

// Item is a carryable object in the world.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Cost        int     `json:"cost"`
	Rarity      Rarity  `json:"rarity"`
	Weight      float64 `json:"weight,omitempty"`
}

// Skill is a learnable capability.
type Skill struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Type         SkillType  `json:"skill_type"`
	Target       TargetType `json:"target"`
	Range        int        `json:"range"`
	AreaOfEffect int        `json:"area_of_effect"`
	Cost         int        `json:"cost"` // mana cost to use
}

// QuestObjective is one step toward completing a quest.
type QuestObjective struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	RequiredCount int    `json:"required_count"`
	CurrentCount  int    `json:"current_count"`
	Completed     bool   `json:"completed"`
	TargetID      string `json:"target_id,omitempty"`
}

// Quest is a multi-objective task with a reward.
type Quest struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Level       int              `json:"level"`
	Objectives  []QuestObjective `json:"objectives,omitempty"`
	Reward      map[string]int   `json:"reward,omitempty"` // e.g. {"gold": 50, "experience": 100}
	Status      QuestStatus      `json:"status"`
	Location    string           `json:"location_id,omitempty"`
}

// Location is a place the player can occupy.
type Location struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Scene          string   `json:"scene,omitempty"` // scene-setting text shown on entry
	EntitiesWithin []string `json:"entities_within,omitempty"`
	SubLocations   []string `json:"sub_locations,omitempty"`
	ShopItems      []string `json:"shop_items,omitempty"`
	NPCs           []string `json:"npcs,omitempty"`
}

// NPC is a non-player character with scripted dialogue and a bounded
// question budget per session.
type NPC struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Bio         string `json:"bio,omitempty"` // detailed background for oracle conversations
	Location    string `json:"location_id"`
	Level       int    `json:"level"`
	Temperament string `json:"temperament,omitempty"` // e.g. "friendly", "neutral", "hostile"

	QuestsOffered []string `json:"quests_offered,omitempty"`
	ShopItems     []string `json:"shop_items,omitempty"`

	Topics TopicList `json:"topics,omitempty"`

	// QuestionLimit is the per-session conversation budget. Zero means use
	// the default.
	QuestionLimit int `json:"question_limit,omitempty"`

	// Memory holds permanent conversation nodes created for essential
	// dynamically-generated exchanges. Never pruned during a session.
	Memory []ConversationNode `json:"conversation_nodes,omitempty"`
}

// Remember appends a permanent conversation node to the NPC.
func (n *NPC) Remember(node ConversationNode) {
	n.Memory = append(n.Memory, node)
}

// Topic is one scripted dialogue entry: the player-side opener and the NPC's
// fixed response.
type Topic struct {
	Name     string `json:"name"`
	Opener   string `json:"opener,omitempty"`
	Response string `json:"response"`
}

// TopicList is an ordered list of scripted topics. Order is significant: the
// 1-based position is a valid way for the player to select a topic.
type TopicList []Topic

// UnmarshalJSON allows a TopicList to accept either an array of topic objects
// or a map of topic name to response text. The map form is sorted by name so
// index selection stays deterministic.
func (t *TopicList) UnmarshalJSON(data []byte) error {
	var asArray []Topic
	if err := json.Unmarshal(data, &asArray); err == nil {
		*t = asArray
		return nil
	}
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err == nil {
		names := make([]string, 0, len(asMap))
		for name := range asMap {
			names = append(names, name)
		}
		sort.Strings(names)
		result := make(TopicList, 0, len(asMap))
		for _, name := range names {
			result = append(result, Topic{Name: name, Response: asMap[name]})
		}
		*t = result
		return nil
	}
	return fmt.Errorf("topics: not an array or map: %s", string(data))
}

// At returns the topic at the given 1-based index.
func (t TopicList) At(index int) (Topic, bool) {
	if index < 1 || index > len(t) {
		return Topic{}, false
	}
	return t[index-1], true
}

// Find returns the topic with the given raw name.
func (t TopicList) Find(name string) (Topic, bool) {
	for _, topic := range t {
		if topic.Name == name {
			return topic, true
		}
	}
	return Topic{}, false
}

// Names returns topic names in list order.
func (t TopicList) Names() []string {
	names := make([]string, len(t))
	for i, topic := range t {
		names[i] = topic.Name
	}
	return names
}

// ConversationNode is a permanent memory attached to a character, created
// only for essential dynamically-generated exchanges.
type ConversationNode struct {
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Essential bool      `json:"is_essential"`
	Dynamic   bool      `json:"created_dynamically"`
	CreatedAt time.Time `json:"created_at"`
}

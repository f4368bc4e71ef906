package state

import "time"

// DefaultQuestionLimit is the per-session conversation budget used when an
// NPC does not configure its own.
const DefaultQuestionLimit = 10

// ConversationPhase describes where a per-NPC conversation sits in its
// lifecycle. The transition is one-way within a session: Uninitialized until
// first contact, Active while budget remains, Exhausted at zero.
type ConversationPhase string

const (
	PhaseUninitialized ConversationPhase = "uninitialized"
	PhaseActive        ConversationPhase = "active"
	PhaseExhausted     ConversationPhase = "exhausted"
)

// DynamicExchange is one recorded question/answer pair in a conversation.
type DynamicExchange struct {
	PlayerInput string    `json:"player_input"`
	Response    string    `json:"npc_response"`
	Similarity  float64   `json:"similarity_score"` // [0,1]; 1.0 for scripted topics
	Essential   bool      `json:"is_essential"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationState tracks the session-scoped dialogue with one NPC.
type ConversationState struct {
	NPCID   string            `json:"npc_id"`
	History []DynamicExchange `json:"conversation_history,omitempty"`

	// EssentialTopics lists the raw player inputs of essential exchanges.
	// Duplicates are allowed; the same input may appear twice.
	EssentialTopics []string `json:"essential_topics,omitempty"`

	// Relationship is monotonically non-decreasing within a session.
	Relationship int `json:"relationship_level"`

	// RemainingQuestions is monotonically non-increasing, floored at 0.
	RemainingQuestions int `json:"questions_remaining"`

	LastInteraction time.Time `json:"last_interaction"`
}

// NewConversationState creates the session-scoped state for an NPC with the
// given question budget.
func NewConversationState(npcID string, budget int) *ConversationState {
	return &ConversationState{
		NPCID:              npcID,
		RemainingQuestions: budget,
		LastInteraction:    time.Now().UTC(),
	}
}

// Phase reports Active or Exhausted based on the remaining budget. A nil
// state is Uninitialized.
func (cs *ConversationState) Phase() ConversationPhase {
	if cs == nil {
		return PhaseUninitialized
	}
	if cs.RemainingQuestions > 0 {
		return PhaseActive
	}
	return PhaseExhausted
}

// ConversationPhase reports the phase for an NPC without creating state.
func (w *WorldState) ConversationPhase(npcID string) ConversationPhase {
	if w.Conversations == nil {
		return PhaseUninitialized
	}
	cs, ok := w.Conversations[npcID]
	if !ok {
		return PhaseUninitialized
	}
	return cs.Phase()
}

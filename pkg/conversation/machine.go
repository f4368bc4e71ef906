// Package conversation drives per-NPC dialogue. Scripted topics short-circuit
// locally, trivial input is screened out, and everything else is classified
// by the oracle, all bounded by a per-NPC question budget that only an
// explicit reset refreshes.
package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// Fixed lines the machine speaks without consulting the oracle.
const (
	ConfusedLine = "*looks at you curiously*"
	TiredLine    = "I'm getting tired of all these questions. Maybe we can talk again later?"
	UnsureLine   = "I'm not sure about that."
)

// Oracle classifies one utterance to an NPC. The machine treats the result
// as untrusted and never calls it once the question budget is spent.
type Oracle interface {
	AnalyzeConversation(ctx context.Context, npc *state.NPC, cs *state.ConversationState, input string) (*oracle.ConversationDecision, error)
}

// Reply is one delivered NPC response. BudgetUsed distinguishes real
// exchanges from the fixed tired and confused reactions, which cost nothing
// and change nothing.
type Reply struct {
	NPCID      string                      `json:"npc_id"`
	Text       string                      `json:"text"`
	Opener     string                      `json:"opener,omitempty"`
	Annotation string                      `json:"annotation,omitempty"`
	Strategy   oracle.ConversationStrategy `json:"strategy,omitempty"`
	Similarity float64                     `json:"similarity"`
	Essential  bool                        `json:"essential"`
	BudgetUsed bool                        `json:"budget_used"`
}

// Machine is the per-session dialogue controller. It holds no per-NPC state
// of its own; everything lives in the world document.
type Machine struct {
	oracle Oracle
}

func NewMachine(o Oracle) *Machine {
	return &Machine{oracle: o}
}

// Talk runs one player utterance through the dialogue flow for an NPC.
// Exhausted budget dominates everything: any input gets the fixed tired line
// with no oracle call and no mutation. Otherwise topic-name input delivers
// the scripted exchange, trivial input gets the fixed confused reaction, and
// the rest is classified by the oracle with a dynamic fallback.
func (m *Machine) Talk(ctx context.Context, w *state.WorldState, npcID, input string) (*Reply, error) {
	npc := w.GetNPC(npcID)
	if npc == nil {
		return nil, fmt.Errorf("%w: npc %q", state.ErrTargetNotFound, npcID)
	}
	cs := w.Conversation(npcID)

	if cs.RemainingQuestions <= 0 {
		return &Reply{NPCID: npcID, Text: TiredLine}, nil
	}

	if topic, ok := matchTopic(input, npc.Topics); ok {
		return m.scripted(npc, cs, topic), nil
	}

	if trivial(input) {
		return &Reply{NPCID: npcID, Text: ConfusedLine}, nil
	}

	decision := m.Analyze(ctx, npc, cs, input)
	return m.respond(npc, cs, input, decision), nil
}

// Analyze asks the oracle to classify an utterance, substituting the
// deterministic dynamic fallback when the oracle fails or the decision does
// not normalize.
func (m *Machine) Analyze(ctx context.Context, npc *state.NPC, cs *state.ConversationState, input string) *oracle.ConversationDecision {
	if m.oracle == nil {
		return oracle.FallbackConversation()
	}
	decision, err := m.oracle.AnalyzeConversation(ctx, npc, cs, input)
	if err != nil || decision == nil {
		return oracle.FallbackConversation()
	}
	if err := decision.Normalize(); err != nil {
		return oracle.FallbackConversation()
	}
	return decision
}

// Update applies the state-change rule for one delivered exchange: log it,
// raise the relationship and record the topic when essential, spend one unit
// of budget, refresh the interaction timestamp.
func (m *Machine) Update(cs *state.ConversationState, input, response string, similarity float64, essential bool) {
	now := time.Now().UTC()
	cs.History = append(cs.History, state.DynamicExchange{
		PlayerInput: input,
		Response:    response,
		Similarity:  similarity,
		Essential:   essential,
		CreatedAt:   now,
	})
	if essential {
		cs.Relationship++
		cs.EssentialTopics = append(cs.EssentialTopics, input)
	}
	if cs.RemainingQuestions > 0 {
		cs.RemainingQuestions--
	}
	cs.LastInteraction = now
}

// scripted delivers a topic's fixed exchange. The opener, not the raw input,
// is what the history records as the player's line.
func (m *Machine) scripted(npc *state.NPC, cs *state.ConversationState, topic state.Topic) *Reply {
	opener := topic.Opener
	if opener == "" {
		opener = fmt.Sprintf("Tell me about %s!", strings.ReplaceAll(topic.Name, "_", " "))
	}
	response := topic.Response
	if response == "" {
		response = UnsureLine
	}

	m.Update(cs, opener, response, 1.0, false)

	return &Reply{
		NPCID:      npc.ID,
		Text:       response,
		Opener:     opener,
		Strategy:   oracle.ConversationPreset,
		Similarity: 1,
		BudgetUsed: true,
	}
}

// respond delivers an oracle-classified exchange.
func (m *Machine) respond(npc *state.NPC, cs *state.ConversationState, input string, d *oracle.ConversationDecision) *Reply {
	reply := &Reply{
		NPCID:      npc.ID,
		Strategy:   d.Strategy,
		Similarity: d.Similarity,
		Essential:  d.Essential,
		BudgetUsed: true,
	}

	switch d.Strategy {
	case oracle.ConversationPreset:
		reply.Text = scriptedResponse(npc, d.PresetTopic)

	case oracle.ConversationRedirect:
		reply.Text = d.Response
		// Only the topic name is referenced, never the scripted text itself.
		if topic, ok := npc.Topics.Find(d.PresetTopic); ok && topic.Response != "" {
			reply.Annotation = fmt.Sprintf("(Related to: %s)", humanize(d.PresetTopic))
		}

	default:
		reply.Text = d.Response
		if reply.Text == "" {
			reply.Text = ConfusedLine
		}
	}

	m.Update(cs, input, reply.Text, d.Similarity, d.Essential)

	if d.Strategy == oracle.ConversationDynamic && d.Essential {
		npc.Remember(state.ConversationNode{
			Topic:     input,
			Content:   reply.Text,
			Essential: true,
			Dynamic:   true,
			CreatedAt: time.Now().UTC(),
		})
	}

	return reply
}

func scriptedResponse(npc *state.NPC, topicName string) string {
	if topic, ok := npc.Topics.Find(topicName); ok && topic.Response != "" {
		return topic.Response
	}
	return UnsureLine
}

// ResetBudget restores an NPC's question budget to its configured limit.
// There is no automatic refresh; exhaustion lasts until an operator resets.
func ResetBudget(w *state.WorldState, npcID string) error {
	npc := w.GetNPC(npcID)
	if npc == nil {
		return fmt.Errorf("%w: npc %q", state.ErrTargetNotFound, npcID)
	}
	limit := npc.QuestionLimit
	if limit <= 0 {
		limit = state.DefaultQuestionLimit
	}
	w.Conversation(npcID).RemainingQuestions = limit
	return nil
}

// matchTopic resolves input to a scripted topic by raw name, humanized name,
// or 1-based index.
func matchTopic(input string, topics state.TopicList) (state.Topic, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(input))
	if cleaned == "" {
		return state.Topic{}, false
	}

	for _, topic := range topics {
		if strings.ToLower(topic.Name) == cleaned {
			return topic, true
		}
	}
	for _, topic := range topics {
		if strings.ToLower(strings.ReplaceAll(topic.Name, "_", " ")) == cleaned {
			return topic, true
		}
	}
	if index, err := strconv.Atoi(cleaned); err == nil {
		if topic, ok := topics.At(index); ok {
			return topic, true
		}
	}
	return state.Topic{}, false
}

// trivial reports whether an utterance is screened out as a non-event: too
// short, a single word, a bare number, or short punctuation.
func trivial(input string) bool {
	cleaned := strings.TrimSpace(input)
	if cleaned == "" {
		return true
	}
	runes := utf8.RuneCountInString(cleaned)
	if runes < 3 {
		return true
	}
	if !strings.Contains(cleaned, " ") {
		return true
	}
	if isDigits(cleaned) {
		return true
	}
	if runes < 5 && !hasLetter(cleaned) {
		return true
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func humanize(topicName string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(topicName, "_", " "))
}

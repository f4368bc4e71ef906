package services

import (
	"context"
	"sync"

	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// MockOracle is a canned implementation of OracleService for tests and for
// running the engine without a model. Every method returns a safe
// deterministic decision unless a Func field overrides it.
type MockOracle struct {
	ReadyFunc               func(ctx context.Context) error
	DecidePermissionFunc    func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error)
	RouteDataActionFunc     func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error)
	PickPrimitiveFunc       func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error)
	ChooseStrategyFunc      func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error)
	AnalyzeConversationFunc func(ctx context.Context, npc *state.NPC, cs *state.ConversationState, input string) (*oracle.ConversationDecision, error)
	ProposeEntityFunc       func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error)
	ProposeModificationFunc func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error)
	ProposeImmediateFunc    func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error)
	ProposeActionFunc       func(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error)
	NarrateFunc             func(ctx context.Context, w *state.WorldState, utterance string) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockOracle creates a mock oracle with default canned decisions.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		calls: make(map[string]int),
	}
}

func (m *MockOracle) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
}

// Calls returns how many times the named decision method was invoked.
func (m *MockOracle) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Reset clears all call tracking.
func (m *MockOracle) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}

func (m *MockOracle) Ready(ctx context.Context) error {
	m.record("Ready")
	if m.ReadyFunc != nil {
		return m.ReadyFunc(ctx)
	}
	return nil
}

func (m *MockOracle) DecidePermission(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error) {
	m.record("DecidePermission")
	if m.DecidePermissionFunc != nil {
		return m.DecidePermissionFunc(ctx, w, utterance)
	}
	return &oracle.PermissionDecision{
		Allowed:   true,
		Reasoning: "mock oracle permits by default",
	}, nil
}

func (m *MockOracle) RouteDataAction(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
	m.record("RouteDataAction")
	if m.RouteDataActionFunc != nil {
		return m.RouteDataActionFunc(ctx, w, utterance)
	}
	return &oracle.DataActionDecision{
		ActionType: oracle.ActionImmediate,
		Confidence: 1,
	}, nil
}

func (m *MockOracle) PickPrimitive(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
	m.record("PickPrimitive")
	if m.PickPrimitiveFunc != nil {
		return m.PickPrimitiveFunc(ctx, w, utterance)
	}
	return &oracle.PrimitiveDecision{
		UsePrimitive:  false,
		PrimitiveType: oracle.PrimitiveNone,
		Confidence:    1,
	}, nil
}

func (m *MockOracle) ChooseStrategy(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
	m.record("ChooseStrategy")
	if m.ChooseStrategyFunc != nil {
		return m.ChooseStrategyFunc(ctx, w, utterance)
	}
	return &oracle.StrategyDecision{
		Strategy:   oracle.StrategyDynamic,
		Confidence: 1,
	}, nil
}

func (m *MockOracle) AnalyzeConversation(ctx context.Context, npc *state.NPC, cs *state.ConversationState, input string) (*oracle.ConversationDecision, error) {
	m.record("AnalyzeConversation")
	if m.AnalyzeConversationFunc != nil {
		return m.AnalyzeConversationFunc(ctx, npc, cs, input)
	}
	return &oracle.ConversationDecision{
		Strategy:   oracle.ConversationDynamic,
		Similarity: 0,
		Response:   "Hm. I don't have much to say about that.",
	}, nil
}

func (m *MockOracle) ProposeEntity(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error) {
	m.record("ProposeEntity")
	if m.ProposeEntityFunc != nil {
		return m.ProposeEntityFunc(ctx, w, category, utterance)
	}
	return &oracle.EntityProposal{
		Category: category,
		Fields: oracle.FieldMap{
			"id":          "conjured_" + category,
			"name":        "Conjured " + category,
			"description": "Something the world produced on request.",
		},
	}, nil
}

func (m *MockOracle) ProposeModification(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error) {
	m.record("ProposeModification")
	if m.ProposeModificationFunc != nil {
		return m.ProposeModificationFunc(ctx, w, category, utterance)
	}
	return &oracle.ModificationProposal{
		TargetID: w.Player.Location,
		Modifications: map[string]any{
			"description": "It looks subtly changed.",
		},
		Reasoning: "mock oracle default",
	}, nil
}

func (m *MockOracle) ProposeImmediate(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
	m.record("ProposeImmediate")
	if m.ProposeImmediateFunc != nil {
		return m.ProposeImmediateFunc(ctx, w, utterance)
	}
	return &oracle.ImmediateResult{
		Message: "The moment passes without much consequence.",
	}, nil
}

func (m *MockOracle) ProposeAction(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error) {
	m.record("ProposeAction")
	if m.ProposeActionFunc != nil {
		return m.ProposeActionFunc(ctx, w, utterance)
	}
	return &state.Action{
		ID:                 "improvise",
		Name:               "Improvise",
		Description:        "Make do with what is at hand.",
		Category:           "utility",
		SuccessProbability: 1,
		OracleProposed:     true,
	}, nil
}

func (m *MockOracle) Narrate(ctx context.Context, w *state.WorldState, utterance string) (string, error) {
	m.record("Narrate")
	if m.NarrateFunc != nil {
		return m.NarrateFunc(ctx, w, utterance)
	}
	return "The world takes note.", nil
}

// Package services carries the oracle transport implementations and the
// Redis-backed turn event queue. The oracle is consulted, never trusted:
// decisions come back as JSON, get validated by pkg/oracle, and any failure
// surfaces as one of two sentinel errors the engine converts to per-call
// deterministic fallbacks.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/prompts"
	"github.com/mkarlsen/world-engine/pkg/state"
)

var (
	// ErrOracleUnavailable means the provider could not be reached or
	// refused the request. The call site falls back; nothing retries.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrOracleMalformed means the provider answered but the response
	// failed JSON extraction, schema, or enum validation.
	ErrOracleMalformed = errors.New("oracle response malformed")
)

// OracleService is one decision method per proposal type. Every method
// blocks on a single provider round trip; errors wrap one of the two
// sentinels above.
type OracleService interface {
	// Ready reports whether the provider can serve decisions.
	Ready(ctx context.Context) error

	DecidePermission(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error)
	RouteDataAction(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error)
	PickPrimitive(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error)
	ChooseStrategy(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error)
	AnalyzeConversation(ctx context.Context, npc *state.NPC, cs *state.ConversationState, input string) (*oracle.ConversationDecision, error)
	ProposeEntity(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error)
	ProposeModification(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error)
	ProposeImmediate(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error)
	ProposeAction(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error)
	Narrate(ctx context.Context, w *state.WorldState, utterance string) (string, error)
}

// decider implements the OracleService decision methods over a provider's
// raw completion call. Providers embed it and supply complete.
type decider struct {
	complete func(ctx context.Context, system, user string) (string, error)
}

func (d *decider) run(ctx context.Context, system, user string, buildErr error) (string, error) {
	if buildErr != nil {
		return "", fmt.Errorf("failed to build prompt: %w", buildErr)
	}
	raw, err := d.complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return raw, nil
}

func (d *decider) DecidePermission(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).Permission()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var decision oracle.PermissionDecision
	if err := decodeJSON(raw, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

func (d *decider) RouteDataAction(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).DataAction()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var decision oracle.DataActionDecision
	if err := decodeJSON(raw, &decision); err != nil {
		return nil, err
	}
	if err := decision.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &decision, nil
}

func (d *decider) PickPrimitive(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).Primitive()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var decision oracle.PrimitiveDecision
	if err := decodeJSON(raw, &decision); err != nil {
		return nil, err
	}
	if err := decision.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &decision, nil
}

func (d *decider) ChooseStrategy(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).Strategy()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var decision oracle.StrategyDecision
	if err := decodeJSON(raw, &decision); err != nil {
		return nil, err
	}
	if err := decision.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &decision, nil
}

func (d *decider) AnalyzeConversation(ctx context.Context, npc *state.NPC, cs *state.ConversationState, input string) (*oracle.ConversationDecision, error) {
	system, user, buildErr := prompts.New().WithNPC(npc, cs).WithUtterance(input).Conversation()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var decision oracle.ConversationDecision
	if err := decodeJSON(raw, &decision); err != nil {
		return nil, err
	}
	if err := decision.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &decision, nil
}

func (d *decider) ProposeEntity(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithCategory(category).WithUtterance(utterance).Entity()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var proposal oracle.EntityProposal
	if err := decodeJSON(raw, &proposal); err != nil {
		return nil, err
	}
	if err := proposal.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &proposal, nil
}

func (d *decider) ProposeModification(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithCategory(category).WithUtterance(utterance).Modification()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var proposal oracle.ModificationProposal
	if err := decodeJSON(raw, &proposal); err != nil {
		return nil, err
	}
	if err := proposal.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &proposal, nil
}

func (d *decider) ProposeImmediate(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).Immediate()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var result oracle.ImmediateResult
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (d *decider) ProposeAction(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).DynamicAction()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return nil, err
	}

	var a state.Action
	if err := decodeJSON(raw, &a); err != nil {
		return nil, err
	}
	if err := oracle.NormalizeAction(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return &a, nil
}

func (d *decider) Narrate(ctx context.Context, w *state.WorldState, utterance string) (string, error) {
	system, user, buildErr := prompts.New().WithWorld(w).WithUtterance(utterance).Narration()
	raw, err := d.run(ctx, system, user, buildErr)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty narration", ErrOracleMalformed)
	}
	return text, nil
}

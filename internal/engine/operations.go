package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services/queue"
	"github.com/mkarlsen/world-engine/pkg/action"
	"github.com/mkarlsen/world-engine/pkg/balance"
	"github.com/mkarlsen/world-engine/pkg/conversation"
	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// Session lifecycle.

// NewSession creates and persists a fresh world, from an authored template
// when one is named. The template's content is copied; the session gets its
// own id.
func (e *Engine) NewSession(ctx context.Context, template string) (*state.WorldState, error) {
	var w *state.WorldState
	if template == "" {
		w = state.NewWorldState()
	} else {
		loaded, err := e.store.GetTemplate(ctx, template)
		if err != nil {
			return nil, fmt.Errorf("failed to load template %q: %w", template, err)
		}
		w = loaded
	}

	w.ID = uuid.New()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	w.Touch()

	if err := e.store.SaveWorld(ctx, w.ID, w); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}

	e.logger.Info("Session created", "session_id", w.ID, "template", template)
	return w, nil
}

// Session returns the current world snapshot. Missing sessions come back as
// fresh default worlds carrying the requested id.
func (e *Engine) Session(ctx context.Context, sessionID uuid.UUID) (*state.WorldState, error) {
	return e.store.LoadWorld(ctx, sessionID)
}

// EndSession deletes a session's world document and drains its turn event
// feed. Ending a session that does not exist is not an error.
func (e *Engine) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := e.store.DeleteWorld(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	if e.events != nil {
		if err := e.events.Clear(ctx, sessionID); err != nil {
			e.logger.Warn("Failed to clear turn events", "error", err, "session_id", sessionID)
		}
	}
	e.logger.Info("Session ended", "session_id", sessionID)
	return nil
}

// Sessions lists the ids of all stored sessions.
func (e *Engine) Sessions(ctx context.Context) ([]uuid.UUID, error) {
	return e.store.ListWorlds(ctx)
}

// Action operations.

// CanPerformAction checks a registered action's preconditions without
// mutating anything.
func (e *Engine) CanPerformAction(ctx context.Context, sessionID uuid.UUID, actionID string) (bool, string, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return false, "", fmt.Errorf("failed to load world: %w", err)
	}
	a := w.GetAction(actionID)
	if a == nil {
		return false, "", fmt.Errorf("%w: action %q", state.ErrTargetNotFound, actionID)
	}
	ok, reason := action.CanPerform(a, w)
	return ok, reason, nil
}

// ExecuteAction runs a registered action as a full turn: validate, debit,
// apply, persist, publish. A precondition failure completes the turn
// without mutation.
func (e *Engine) ExecuteAction(ctx context.Context, sessionID uuid.UUID, actionID string) (*TurnResult, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	a := w.GetAction(actionID)
	if a == nil {
		return nil, fmt.Errorf("%w: action %q", state.ErrTargetNotFound, actionID)
	}
	return e.perform(ctx, w, a, false)
}

// AvailableActions returns the registered actions the player can currently
// perform, in sorted id order.
func (e *Engine) AvailableActions(ctx context.Context, sessionID uuid.UUID) ([]*state.Action, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	return action.Available(w), nil
}

// Modification and audit operations.

// ValidateModification runs a caller-supplied modification set through the
// balance validator and commits whatever is admitted. Denials return
// balance.ErrDenied wrapping the validator's reason, with the verdict
// attached and nothing persisted; unknown or unowned targets return the
// validator's state.ErrTargetNotFound error.
func (e *Engine) ValidateModification(ctx context.Context, sessionID uuid.UUID, category, targetID string, proposed map[string]string, justification, reasoning string) (*balance.Verdict, []state.DataChange, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load world: %w", err)
	}

	verdict, err := balance.Validate(category, targetID, proposed, justification, w)
	if err != nil {
		return nil, nil, err
	}
	if !verdict.OK {
		return verdict, nil, fmt.Errorf("%w: %s", balance.ErrDenied, verdict.Reason)
	}

	fields := make([]string, 0, len(verdict.Admitted))
	for f := range verdict.Admitted {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	changes := make([]state.DataChange, 0, len(fields))
	changeIDs := make([]string, 0, len(fields))
	for _, field := range fields {
		old, err := w.GetField(category, targetID, field)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s.%s: %w", category, field, err)
		}
		if err := w.SetField(category, targetID, field, verdict.Admitted[field]); err != nil {
			return nil, nil, fmt.Errorf("failed to write %s.%s: %w", category, field, err)
		}
		change := w.Changes.Record(category, targetID, field, old, verdict.Admitted[field], justification, reasoning)
		changes = append(changes, change)
		changeIDs = append(changeIDs, change.ID.String())
	}

	if verdict.Consequence != nil {
		w.AddPendingConsequence(category, *verdict.Consequence)
	}

	w.Touch()
	summary := fmt.Sprintf("modified %s %q", category, targetID)
	if err := e.commit(ctx, w, queue.TurnModification, summary, changeIDs); err != nil {
		return nil, nil, err
	}
	return verdict, changes, nil
}

// RecordChange applies one whitelisted field write directly and records it
// in the audit trail, bypassing balance policy. Whitelist enforcement still
// applies; power fields have no setter and fail here too.
func (e *Engine) RecordChange(ctx context.Context, sessionID uuid.UUID, category, targetID, field, value, input, reasoning string) (*state.DataChange, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	old, err := w.GetField(category, targetID, field)
	if err != nil {
		return nil, err
	}
	if err := w.SetField(category, targetID, field, value); err != nil {
		return nil, err
	}
	change := w.Changes.Record(category, targetID, field, old, value, input, reasoning)

	w.Touch()
	summary := fmt.Sprintf("modified %s %q", category, targetID)
	if err := e.commit(ctx, w, queue.TurnModification, summary, []string{change.ID.String()}); err != nil {
		return nil, err
	}
	return &change, nil
}

// QueryChanges returns committed changes matching the filters in
// chronological order. Empty filters match everything.
func (e *Engine) QueryChanges(ctx context.Context, sessionID uuid.UUID, category, targetID string) ([]state.DataChange, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	return w.Changes.Query(category, targetID), nil
}

// RecentChanges returns committed changes within the duration window.
func (e *Engine) RecentChanges(ctx context.Context, sessionID uuid.UUID, d time.Duration) ([]state.DataChange, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	return w.Changes.Recent(d), nil
}

// RevertLastChange undoes the most recent change matching the filters and
// persists the rewound world. state.ErrNothingToRevert and
// state.ErrRevertTargetGone pass through for callers to classify.
func (e *Engine) RevertLastChange(ctx context.Context, sessionID uuid.UUID, category, targetID string) (*state.DataChange, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	change, err := w.RevertLastChange(category, targetID)
	if err != nil {
		return nil, err
	}

	w.Touch()
	summary := fmt.Sprintf("reverted change to %s %q", change.Category, change.TargetID)
	if err := e.commit(ctx, w, queue.TurnModification, summary, []string{change.ID.String()}); err != nil {
		return nil, err
	}
	return change, nil
}

// Conversation operations.

// Talk runs one utterance through an NPC's dialogue flow and persists any
// budget-spending exchange. The full reply, including opener and strategy,
// goes back to the caller.
func (e *Engine) Talk(ctx context.Context, sessionID uuid.UUID, npcID, input string) (*conversation.Reply, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	reply, err := e.conv.Talk(ctx, w, npcID, input)
	if err != nil {
		return nil, err
	}

	if reply.BudgetUsed {
		w.Touch()
		if err := e.commit(ctx, w, queue.TurnConversation, fmt.Sprintf("spoke with %s", npcID), nil); err != nil {
			return nil, err
		}
	}
	return reply, nil
}

// AnalyzeConversationInput classifies an utterance to an NPC without
// delivering a response or mutating anything. An exhausted budget returns
// the deterministic fallback with no oracle call.
func (e *Engine) AnalyzeConversationInput(ctx context.Context, sessionID uuid.UUID, npcID, input string) (*oracle.ConversationDecision, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	npc := w.GetNPC(npcID)
	if npc == nil {
		return nil, fmt.Errorf("%w: npc %q", state.ErrTargetNotFound, npcID)
	}
	cs := w.Conversation(npcID)
	if cs.RemainingQuestions <= 0 {
		return oracle.FallbackConversation(), nil
	}
	return e.conv.Analyze(ctx, npc, cs, input), nil
}

// UpdateConversationState applies the exchange bookkeeping rule for one
// delivered response and persists it.
func (e *Engine) UpdateConversationState(ctx context.Context, sessionID uuid.UUID, npcID, input, response string, similarity float64, essential bool) error {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load world: %w", err)
	}

	if w.GetNPC(npcID) == nil {
		return fmt.Errorf("%w: npc %q", state.ErrTargetNotFound, npcID)
	}
	e.conv.Update(w.Conversation(npcID), input, response, similarity, essential)

	w.Touch()
	return e.commit(ctx, w, queue.TurnConversation, fmt.Sprintf("spoke with %s", npcID), nil)
}

// ResetBudget restores an NPC's question budget. An operator operation, not
// a turn; it persists without publishing a turn event.
func (e *Engine) ResetBudget(ctx context.Context, sessionID uuid.UUID, npcID string) error {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load world: %w", err)
	}

	if err := conversation.ResetBudget(w, npcID); err != nil {
		return err
	}

	w.Touch()
	if err := e.store.SaveWorld(ctx, w.ID, w); err != nil {
		return fmt.Errorf("failed to persist world: %w", err)
	}
	return nil
}

// Direct world mutation.

// CreateEntity inserts a caller-supplied entity proposal after
// normalization, with the same conservative defaults the utterance route
// applies. Returns the created entity's display name.
func (e *Engine) CreateEntity(ctx context.Context, sessionID uuid.UUID, proposal *oracle.EntityProposal) (string, error) {
	if err := proposal.Normalize(); err != nil {
		return "", err
	}

	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load world: %w", err)
	}

	id := proposal.Fields.String("id")
	if w.EntityExists(proposal.Category, id) {
		return "", fmt.Errorf("%s %q already exists", proposal.Category, id)
	}

	name := insertEntity(w, proposal)
	w.Touch()
	if err := e.commit(ctx, w, queue.TurnCreation, fmt.Sprintf("created %s %q", proposal.Category, id), nil); err != nil {
		return "", err
	}
	return name, nil
}

// ApplyImmediate applies signed resource effects through the player's
// clamped mutators. Reports whether anything actually changed; a no-op
// effect set persists nothing.
func (e *Engine) ApplyImmediate(ctx context.Context, sessionID uuid.UUID, effects map[string]int) (bool, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to load world: %w", err)
	}

	if !applyImmediate(w, effects) {
		return false, nil
	}

	w.Touch()
	if err := e.commit(ctx, w, queue.TurnImmediate, "immediate effects applied", nil); err != nil {
		return false, err
	}
	return true, nil
}

// ClearConsequences drops pending consequences for a category, or all when
// the category is empty. Returns the number cleared.
func (e *Engine) ClearConsequences(ctx context.Context, sessionID uuid.UUID, category string) (int, error) {
	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load world: %w", err)
	}

	n := w.ClearPendingConsequences(category)
	if n == 0 {
		return 0, nil
	}

	w.Touch()
	if err := e.store.SaveWorld(ctx, w.ID, w); err != nil {
		return 0, fmt.Errorf("failed to persist world: %w", err)
	}
	return n, nil
}

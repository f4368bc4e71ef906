package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services/queue"
	"github.com/mkarlsen/world-engine/pkg/action"
	"github.com/mkarlsen/world-engine/pkg/balance"
	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// Fixed lines the engine speaks when an oracle proposal fails. The turn
// still completes; a degraded oracle is an in-fiction non-event, not an
// error surfaced to the player.
const (
	DeniedLine         = "That is beyond what this world allows."
	NoEffectLine       = "Nothing much comes of it."
	NoCreationLine     = "Nothing new takes shape."
	NoModificationLine = "Nothing changes."
)

// HandleUtterance runs one player utterance to completion: load the world,
// route the input, mutate, persist once, publish the turn event. A non-empty
// npcID bypasses the permission gate and goes straight to the conversation
// machine; free-form input is gated, then routed by the oracle to creation,
// modification, or immediate resolution.
func (e *Engine) HandleUtterance(ctx context.Context, sessionID uuid.UUID, utterance, npcID string) (*TurnResult, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, fmt.Errorf("empty utterance")
	}

	w, err := e.store.LoadWorld(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	if npcID != "" {
		return e.converse(ctx, w, npcID, utterance)
	}

	permission := e.permission(ctx, w, utterance)
	if !permission.Allowed {
		msg := permission.Reasoning
		if msg == "" {
			msg = DeniedLine
		}
		if len(permission.RestrictedEffects) > 0 {
			msg = fmt.Sprintf("%s (restricted: %s)", msg, strings.Join(permission.RestrictedEffects, ", "))
		}
		e.logger.Info("Utterance denied at permission gate",
			"session_id", w.ID,
			"reasoning", permission.Reasoning)
		return &TurnResult{SessionID: w.ID, Kind: TurnDenied, Message: msg}, nil
	}

	decision := e.dataAction(ctx, w, utterance)
	switch decision.ActionType {
	case oracle.ActionCreateNew:
		return e.createEntity(ctx, w, decision.DataType, utterance)
	case oracle.ActionModifyExisting:
		return e.modifyEntity(ctx, w, decision.DataType, utterance)
	default:
		return e.immediate(ctx, w, utterance)
	}
}

// converse hands the utterance to the dialogue flow. Only exchanges that
// spend budget mutate the world; the fixed tired and confused lines commit
// nothing.
func (e *Engine) converse(ctx context.Context, w *state.WorldState, npcID, utterance string) (*TurnResult, error) {
	reply, err := e.conv.Talk(ctx, w, npcID, utterance)
	if err != nil {
		return nil, err
	}

	msg := reply.Text
	if reply.Annotation != "" {
		msg = fmt.Sprintf("%s %s", msg, reply.Annotation)
	}

	result := &TurnResult{
		SessionID: w.ID,
		Kind:      queue.TurnConversation,
		Message:   msg,
		Allowed:   true,
		Mutated:   reply.BudgetUsed,
	}

	if reply.BudgetUsed {
		w.Touch()
		if err := e.commit(ctx, w, queue.TurnConversation, fmt.Sprintf("spoke with %s", npcID), nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// createEntity asks the oracle for a new entity record and inserts it. A
// failed proposal or a colliding id ends the turn without mutation.
func (e *Engine) createEntity(ctx context.Context, w *state.WorldState, category, utterance string) (*TurnResult, error) {
	result := &TurnResult{SessionID: w.ID, Kind: queue.TurnCreation, Allowed: true}

	proposal, err := e.oracle.ProposeEntity(ctx, w, category, utterance)
	if err != nil {
		e.logger.Warn("Entity proposal failed", "error", err, "session_id", w.ID, "category", category)
		result.Message = NoCreationLine
		return result, nil
	}

	id := proposal.Fields.String("id")
	if w.EntityExists(proposal.Category, id) {
		result.Message = fmt.Sprintf("%s %q already exists.", proposal.Category, id)
		return result, nil
	}

	name := insertEntity(w, proposal)
	w.Touch()
	if err := e.commit(ctx, w, queue.TurnCreation, fmt.Sprintf("created %s %q", proposal.Category, id), nil); err != nil {
		return nil, err
	}

	result.Message = fmt.Sprintf("Created new %s: %s", proposal.Category, name)
	result.Mutated = true
	return result, nil
}

// insertEntity builds the typed entity from a normalized proposal and adds
// it to the world. Power-relevant fields take conservative defaults: costs
// and weights floor at zero, levels floor at one, unknown rarities fall to
// common, quests start not_started, and a created location is immediately
// discovered. Created items go to the registry, not the inventory, and
// created NPCs carry no scripted topics. Returns the display name.
func insertEntity(w *state.WorldState, p *oracle.EntityProposal) string {
	id := p.Fields.String("id")
	name := p.Fields.String("name")
	description := p.Fields.String("description")

	switch p.Category {
	case state.CategoryItem:
		cost := p.Fields.Int("cost", 0)
		if cost < 0 {
			cost = 0
		}
		weight := p.Fields.Float("weight", 0)
		if weight < 0 {
			weight = 0
		}
		rarity := state.Rarity(p.Fields.StringOr("rarity", string(state.RarityCommon)))
		switch rarity {
		case state.RarityCommon, state.RarityUncommon, state.RarityRare,
			state.RarityEpic, state.RarityLegendary:
		default:
			rarity = state.RarityCommon
		}
		if w.Items == nil {
			w.Items = make(map[string]*state.Item)
		}
		w.Items[id] = &state.Item{
			ID:          id,
			Name:        name,
			Description: description,
			Cost:        cost,
			Rarity:      rarity,
			Weight:      weight,
		}

	case state.CategoryQuest:
		level := p.Fields.Int("level", 1)
		if level < 1 {
			level = 1
		}
		reward := p.Fields.IntMap("reward")
		for k, v := range reward {
			if v < 0 {
				reward[k] = 0
			}
		}
		if w.Quests == nil {
			w.Quests = make(map[string]*state.Quest)
		}
		w.Quests[id] = &state.Quest{
			ID:          id,
			Name:        name,
			Description: description,
			Level:       level,
			Reward:      reward,
			Status:      state.QuestNotStarted,
			Location:    p.Fields.String("location_id"),
		}

	case state.CategoryLocation:
		if w.Locations == nil {
			w.Locations = make(map[string]*state.Location)
		}
		w.Locations[id] = &state.Location{
			ID:          id,
			Name:        name,
			Description: description,
			Scene:       p.Fields.String("scene"),
		}
		w.DiscoverLocation(id)

	case state.CategoryNPC:
		level := p.Fields.Int("level", 1)
		if level < 1 {
			level = 1
		}
		if w.NPCs == nil {
			w.NPCs = make(map[string]*state.NPC)
		}
		w.NPCs[id] = &state.NPC{
			ID:          id,
			Name:        name,
			Description: description,
			Personality: p.Fields.String("personality"),
			Location:    p.Fields.StringOr("location_id", w.Player.Location),
			Level:       level,
			Temperament: p.Fields.String("temperament"),
		}
	}

	return name
}

// modifyEntity asks the oracle for a field change set and runs it through
// the balance validator. A denial is an in-fiction outcome carrying the
// validator's reason; only an admitted set touches entities, the change
// log, and storage.
func (e *Engine) modifyEntity(ctx context.Context, w *state.WorldState, category, utterance string) (*TurnResult, error) {
	result := &TurnResult{SessionID: w.ID, Kind: queue.TurnModification, Allowed: true}

	proposal, err := e.oracle.ProposeModification(ctx, w, category, utterance)
	if err != nil {
		e.logger.Warn("Modification proposal failed", "error", err, "session_id", w.ID, "category", category)
		result.Message = NoModificationLine
		return result, nil
	}

	verdict, err := balance.Validate(category, proposal.TargetID, proposal.StringModifications(), utterance, w)
	if err != nil {
		result.Message = err.Error()
		return result, nil
	}
	if !verdict.OK {
		result.Message = verdict.Reason
		return result, nil
	}

	fields := make([]string, 0, len(verdict.Admitted))
	for f := range verdict.Admitted {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	changeIDs := make([]string, 0, len(fields))
	for _, field := range fields {
		old, err := w.GetField(category, proposal.TargetID, field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s.%s: %w", category, field, err)
		}
		if err := w.SetField(category, proposal.TargetID, field, verdict.Admitted[field]); err != nil {
			return nil, fmt.Errorf("failed to write %s.%s: %w", category, field, err)
		}
		change := w.Changes.Record(category, proposal.TargetID, field, old, verdict.Admitted[field], utterance, proposal.Reasoning)
		changeIDs = append(changeIDs, change.ID.String())
	}

	if verdict.Consequence != nil {
		w.AddPendingConsequence(category, *verdict.Consequence)
	}

	w.Touch()
	summary := fmt.Sprintf("modified %s %q", category, proposal.TargetID)
	if err := e.commit(ctx, w, queue.TurnModification, summary, changeIDs); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Modified %s %q (%s).", category, proposal.TargetID, strings.Join(fields, ", "))
	if verdict.Consequence != nil {
		msg = fmt.Sprintf("%s %s", msg, verdict.Consequence.Description)
	}
	result.Message = msg
	result.Mutated = true
	result.ChangeIDs = changeIDs
	return result, nil
}

// immediate resolves a request that needs no new or modified data. When the
// oracle maps it onto a game primitive, the action machinery runs: an
// existing registered action when one is suggested, otherwise a
// dynamically proposed one. Everything else is narration with optional
// clamped resource effects.
func (e *Engine) immediate(ctx context.Context, w *state.WorldState, utterance string) (*TurnResult, error) {
	prim := e.primitive(ctx, w, utterance)
	if prim.UsePrimitive {
		return e.performPrimitive(ctx, w, utterance)
	}

	result := &TurnResult{SessionID: w.ID, Kind: queue.TurnImmediate, Allowed: true}

	res, err := e.oracle.ProposeImmediate(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Immediate proposal failed", "error", err, "session_id", w.ID)
		result.Message = NoEffectLine
		return result, nil
	}

	result.Message = res.Message
	if result.Message == "" {
		result.Message = NoEffectLine
	}

	if applyImmediate(w, res.Effects) {
		result.Mutated = true
		w.Touch()
		if err := e.commit(ctx, w, queue.TurnImmediate, "immediate effects applied", nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// performPrimitive routes a primitive-shaped request through the action
// executor. The strategy decision picks a registered action when its
// suggestion resolves; otherwise the oracle proposes a fresh one, which
// joins the registry only after it executes successfully and only when the
// oracle asked for it to persist.
func (e *Engine) performPrimitive(ctx context.Context, w *state.WorldState, utterance string) (*TurnResult, error) {
	strat := e.strategy(ctx, w, utterance)

	if strat.Strategy == oracle.StrategyExisting {
		if a := w.GetAction(strat.SuggestedAction); a != nil {
			return e.perform(ctx, w, a, false)
		}
		e.logger.Warn("Suggested action not registered, generating dynamically",
			"session_id", w.ID,
			"suggested", strat.SuggestedAction)
	}

	a, err := e.oracle.ProposeAction(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Action proposal failed, narrating instead", "error", err, "session_id", w.ID)
		return e.narrateOnly(ctx, w, utterance)
	}
	return e.perform(ctx, w, a, strat.ShouldCreateDynamic)
}

// perform executes one action against the world. A precondition failure is
// a completed turn with the executor's reason and no mutation. Success
// commits; a dynamic action registers only after it has actually run.
func (e *Engine) perform(ctx context.Context, w *state.WorldState, a *state.Action, register bool) (*TurnResult, error) {
	result := &TurnResult{SessionID: w.ID, Kind: queue.TurnAction, Allowed: true}

	msg, err := action.Execute(a, w)
	if err != nil {
		if errors.Is(err, action.ErrPreconditionFailed) {
			result.Message = err.Error()
			return result, nil
		}
		return nil, err
	}

	if register {
		w.RegisterAction(a)
	}
	w.Touch()
	if err := e.commit(ctx, w, queue.TurnAction, fmt.Sprintf("performed %s", a.ID), nil); err != nil {
		return nil, err
	}

	result.Message = msg
	result.Mutated = true
	return result, nil
}

// narrateOnly delivers pure narration with no world mutation and no commit.
func (e *Engine) narrateOnly(ctx context.Context, w *state.WorldState, utterance string) (*TurnResult, error) {
	result := &TurnResult{SessionID: w.ID, Kind: queue.TurnImmediate, Allowed: true}

	text, err := e.oracle.Narrate(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Narration failed", "error", err, "session_id", w.ID)
		text = NoEffectLine
	}
	result.Message = text
	return result, nil
}

// applyImmediate applies the recognized signed resource effects through the
// player's clamped mutators and reports whether anything actually changed.
// A delta fully absorbed by a clamp is not a mutation. Unrecognized effect
// keys are ignored.
func applyImmediate(w *state.WorldState, effects map[string]int) bool {
	p := w.Player
	healthBefore, manaBefore := p.Stats.Health, p.Stats.Mana
	goldBefore := p.Gold
	levelBefore, xpBefore := p.Stats.Level, p.Stats.Experience

	if n, ok := effects["health_change"]; ok {
		p.Heal(n)
	}
	if n, ok := effects["mana_change"]; ok {
		p.RestoreMana(n)
	}
	if n, ok := effects["gold_change"]; ok {
		p.AdjustGold(n)
	}
	if n, ok := effects["experience_change"]; ok {
		p.GainExperience(n)
	}

	return p.Stats.Health != healthBefore ||
		p.Stats.Mana != manaBefore ||
		p.Gold != goldBefore ||
		p.Stats.Level != levelBefore ||
		p.Stats.Experience != xpBefore
}

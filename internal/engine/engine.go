// Package engine is the session controller: it owns the world snapshot for
// the duration of one turn, consults the oracle, routes each utterance
// through exactly one of the action executor, the balance validator, or the
// conversation machine, and commits a single full snapshot per mutating
// turn. Oracle failures never abort a turn; every call site has a
// deterministic fallback.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services"
	"github.com/mkarlsen/world-engine/internal/services/queue"
	"github.com/mkarlsen/world-engine/internal/storage"
	"github.com/mkarlsen/world-engine/pkg/conversation"
	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/state"
)

// TurnDenied marks a turn stopped at the permission gate. Mutating turns
// carry the queue kinds instead.
const TurnDenied = "denied"

// TurnResult is the outcome of one handled utterance.
type TurnResult struct {
	SessionID uuid.UUID `json:"session_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Allowed   bool      `json:"allowed"`
	Mutated   bool      `json:"mutated"`
	ChangeIDs []string  `json:"change_ids,omitempty"`
}

// Engine drives turns against worlds held in storage. One utterance runs to
// completion, including persistence, before the next is accepted; the engine
// holds no world state between calls.
type Engine struct {
	store  storage.Storage
	oracle services.OracleService
	conv   *conversation.Machine
	events *queue.TurnEventQueue
	logger *slog.Logger
}

// New creates an engine. The event queue is optional; a nil queue disables
// the turn event feed.
func New(store storage.Storage, o services.OracleService, events *queue.TurnEventQueue, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		oracle: o,
		conv:   conversation.NewMachine(o),
		events: events,
		logger: logger,
	}
}

// commit persists the full world document and publishes the turn event. A
// failed publish is logged and swallowed: the snapshot is authoritative,
// the feed is history.
func (e *Engine) commit(ctx context.Context, w *state.WorldState, kind, summary string, changeIDs []string) error {
	if err := e.store.SaveWorld(ctx, w.ID, w); err != nil {
		return fmt.Errorf("failed to persist world: %w", err)
	}

	if e.events != nil {
		event := queue.TurnEvent{Kind: kind, Summary: summary, ChangeIDs: changeIDs}
		if err := e.events.Enqueue(ctx, w.ID, event); err != nil {
			e.logger.Warn("Failed to publish turn event",
				"error", err,
				"session_id", w.ID,
				"kind", kind)
		}
	}

	return nil
}

// Oracle wrappers. Each substitutes its call site's deterministic fallback
// when the oracle is unavailable or malformed, and logs the degradation.

func (e *Engine) permission(ctx context.Context, w *state.WorldState, utterance string) *oracle.PermissionDecision {
	d, err := e.oracle.DecidePermission(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Permission check degraded to default", "error", err, "session_id", w.ID)
		return oracle.FallbackPermission()
	}
	return d
}

func (e *Engine) dataAction(ctx context.Context, w *state.WorldState, utterance string) *oracle.DataActionDecision {
	d, err := e.oracle.RouteDataAction(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Data action routing degraded to default", "error", err, "session_id", w.ID)
		return oracle.FallbackDataAction()
	}
	return d
}

func (e *Engine) primitive(ctx context.Context, w *state.WorldState, utterance string) *oracle.PrimitiveDecision {
	d, err := e.oracle.PickPrimitive(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Primitive selection degraded to default", "error", err, "session_id", w.ID)
		return oracle.FallbackPrimitive()
	}
	return d
}

func (e *Engine) strategy(ctx context.Context, w *state.WorldState, utterance string) *oracle.StrategyDecision {
	d, err := e.oracle.ChooseStrategy(ctx, w, utterance)
	if err != nil {
		e.logger.Warn("Strategy selection degraded to default", "error", err, "session_id", w.ID)
		return oracle.FallbackStrategy()
	}
	return d
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mkarlsen/world-engine/internal/services"
	"github.com/mkarlsen/world-engine/internal/services/queue"
	"github.com/mkarlsen/world-engine/internal/storage"
	"github.com/mkarlsen/world-engine/pkg/conversation"
	"github.com/mkarlsen/world-engine/pkg/oracle"
	"github.com/mkarlsen/world-engine/pkg/state"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MockStorage, *services.MockOracle) {
	t.Helper()
	store := storage.NewMockStorage()
	o := services.NewMockOracle()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, o, nil, log), store, o
}

// seedWorld persists a default world and zeroes the save counter so tests
// count only the saves the operation under test performs.
func seedWorld(t *testing.T, store *storage.MockStorage) *state.WorldState {
	t.Helper()
	w := state.NewWorldState()
	if err := store.SaveWorld(context.Background(), w.ID, w); err != nil {
		t.Fatalf("seed world: %v", err)
	}
	store.SaveCalls = 0
	return w
}

func TestHandleUtterance_EmptyUtterance(t *testing.T) {
	e, store, _ := newTestEngine(t)
	w := seedWorld(t, store)

	if _, err := e.HandleUtterance(context.Background(), w.ID, "   ", ""); err == nil {
		t.Fatal("expected error for empty utterance")
	}
}

func TestHandleUtterance_PermissionDenied(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.DecidePermissionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error) {
		return &oracle.PermissionDecision{
			Allowed:           false,
			Reasoning:         "the gate is sealed by older magic",
			RestrictedEffects: []string{"teleport"},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "teleport into the vault", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != TurnDenied {
		t.Errorf("kind = %q, want %q", result.Kind, TurnDenied)
	}
	if result.Allowed || result.Mutated {
		t.Error("denied turn should be neither allowed nor mutated")
	}
	if !strings.Contains(result.Message, "older magic") {
		t.Errorf("message %q missing reasoning", result.Message)
	}
	if !strings.Contains(result.Message, "(restricted: teleport)") {
		t.Errorf("message %q missing restricted effects", result.Message)
	}
	if store.SaveCalls != 0 {
		t.Errorf("denied turn saved %d times", store.SaveCalls)
	}
	if o.Calls("RouteDataAction") != 0 {
		t.Error("denied turn should not reach data action routing")
	}
}

func TestHandleUtterance_PermissionFallbackAllows(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.DecidePermissionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error) {
		return nil, fmt.Errorf("%w: timeout", services.ErrOracleUnavailable)
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "look around the room", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != queue.TurnImmediate {
		t.Errorf("kind = %q, want %q", result.Kind, queue.TurnImmediate)
	}
	if !result.Allowed {
		t.Error("permission fallback should allow")
	}
	if o.Calls("RouteDataAction") != 1 {
		t.Error("turn should proceed to routing after fallback")
	}
}

func TestHandleUtterance_ImmediateWithEffects(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.ProposeImmediateFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
		return &oracle.ImmediateResult{
			Message: "You feel invigorated after the scuffle.",
			Effects: map[string]int{
				"health_change":     -10,
				"gold_change":       5,
				"experience_change": 30,
			},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "shake down the pickpocket", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if !result.Mutated {
		t.Error("effects should mark the turn mutated")
	}
	if result.Message != "You feel invigorated after the scuffle." {
		t.Errorf("message = %q", result.Message)
	}
	if store.SaveCalls != 1 {
		t.Errorf("saves = %d, want 1", store.SaveCalls)
	}

	stored := store.Stored(w.ID)
	if stored.Player.Stats.Health != 90 {
		t.Errorf("health = %d, want 90", stored.Player.Stats.Health)
	}
	if stored.Player.Gold != 105 {
		t.Errorf("gold = %d, want 105", stored.Player.Gold)
	}
	if stored.Player.Stats.Experience != 30 {
		t.Errorf("experience = %d, want 30", stored.Player.Stats.Experience)
	}
}

func TestHandleUtterance_ImmediateClampAbsorbed(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	// Healing at full health changes nothing, so nothing persists.
	o.ProposeImmediateFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
		return &oracle.ImmediateResult{
			Message: "Warmth washes over you.",
			Effects: map[string]int{"health_change": 20},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "bask in the hearth glow", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Mutated {
		t.Error("fully absorbed effects should not mutate")
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
}

func TestHandleUtterance_ImmediateProposalFails(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.ProposeImmediateFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
		return nil, fmt.Errorf("%w: no json found", services.ErrOracleMalformed)
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "hum a tune", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Message != NoEffectLine {
		t.Errorf("message = %q, want %q", result.Message, NoEffectLine)
	}
	if result.Mutated || store.SaveCalls != 0 {
		t.Error("failed proposal should not mutate or save")
	}
}

func TestHandleUtterance_CreateEntity(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{
			ActionType: oracle.ActionCreateNew,
			DataType:   state.CategoryItem,
			Confidence: 0.9,
		}, nil
	}
	o.ProposeEntityFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error) {
		return &oracle.EntityProposal{
			Category: category,
			Fields: oracle.FieldMap{
				"id":          "hempen_rope",
				"name":        "Hempen Rope",
				"description": "Fifty feet of rough rope.",
				"cost":        float64(-5),
				"rarity":      "artifact",
				"weight":      float64(4),
			},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "I look for a rope in the storeroom", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != queue.TurnCreation || !result.Mutated {
		t.Errorf("result = %+v, want mutated creation", result)
	}
	if result.Message != "Created new item: Hempen Rope" {
		t.Errorf("message = %q", result.Message)
	}

	stored := store.Stored(w.ID)
	item := stored.GetItem("hempen_rope")
	if item == nil {
		t.Fatal("created item not in registry")
	}
	if item.Cost != 0 {
		t.Errorf("cost = %d, want 0 (negative floors)", item.Cost)
	}
	if item.Rarity != state.RarityCommon {
		t.Errorf("rarity = %q, want common for unknown tier", item.Rarity)
	}
	if stored.Player.HasItem("hempen_rope") {
		t.Error("created item should enter the registry, not the inventory")
	}
}

func TestHandleUtterance_CreateDuplicateID(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionCreateNew, DataType: state.CategoryItem}, nil
	}
	o.ProposeEntityFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error) {
		return &oracle.EntityProposal{
			Category: category,
			Fields:   oracle.FieldMap{"id": "iron_sword", "name": "Iron Sword"},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "forge another iron sword", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Mutated {
		t.Error("duplicate id should not mutate")
	}
	if !strings.Contains(result.Message, "already exists") {
		t.Errorf("message = %q", result.Message)
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
}

func TestHandleUtterance_CreateLocationDiscovered(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionCreateNew, DataType: state.CategoryLocation}, nil
	}
	o.ProposeEntityFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error) {
		return &oracle.EntityProposal{
			Category: category,
			Fields:   oracle.FieldMap{"id": "cellar", "name": "The Cellar", "scene": "Cool air and old barrels."},
		}, nil
	}

	if _, err := e.HandleUtterance(context.Background(), w.ID, "look for a way down", ""); err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	stored := store.Stored(w.ID)
	if stored.GetLocation("cellar") == nil {
		t.Fatal("created location not in registry")
	}
	if !stored.IsDiscovered("cellar") {
		t.Error("created location should be discovered immediately")
	}
}

func TestHandleUtterance_CreateProposalFails(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionCreateNew, DataType: state.CategoryNPC}, nil
	}
	o.ProposeEntityFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.EntityProposal, error) {
		return nil, fmt.Errorf("%w: missing id", services.ErrOracleMalformed)
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "summon a stranger", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Message != NoCreationLine {
		t.Errorf("message = %q, want %q", result.Message, NoCreationLine)
	}
	if result.Mutated || store.SaveCalls != 0 {
		t.Error("failed proposal should not mutate or save")
	}
}

func TestHandleUtterance_ModifyAdmitted(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionModifyExisting, DataType: state.CategoryItem}, nil
	}
	o.ProposeModificationFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error) {
		return &oracle.ModificationProposal{
			TargetID:      "iron_sword",
			Modifications: map[string]any{"description": "A trusty blade with a chipped edge"},
			Reasoning:     "wear from improvised use",
		}, nil
	}

	utterance := "I used my sword to cut my food and it chipped"
	result, err := e.HandleUtterance(context.Background(), w.ID, utterance, "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != queue.TurnModification || !result.Mutated {
		t.Errorf("result = %+v, want mutated modification", result)
	}
	if len(result.ChangeIDs) != 1 {
		t.Fatalf("change ids = %v, want 1", result.ChangeIDs)
	}
	if !strings.Contains(result.Message, "Modified item") {
		t.Errorf("message = %q", result.Message)
	}

	stored := store.Stored(w.ID)
	if got := stored.GetItem("iron_sword").Description; got != "A trusty blade with a chipped edge" {
		t.Errorf("description = %q", got)
	}
	if stored.Changes.Len() != 1 {
		t.Fatalf("change log length = %d", stored.Changes.Len())
	}
	change := stored.Changes.Changes[0]
	if change.Input != utterance {
		t.Errorf("change input = %q", change.Input)
	}
	if change.Reasoning != "wear from improvised use" {
		t.Errorf("change reasoning = %q", change.Reasoning)
	}
	if len(stored.PendingConsequences[state.CategoryItem]) != 1 {
		t.Error("admitted narrative change should queue a consequence")
	}
	if !strings.Contains(result.Message, stored.PendingConsequences[state.CategoryItem][0].Description) {
		t.Error("message should carry the consequence description")
	}
}

func TestHandleUtterance_ModifyPowerFieldDenied(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionModifyExisting, DataType: state.CategoryItem}, nil
	}
	o.ProposeModificationFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error) {
		return &oracle.ModificationProposal{
			TargetID:      "iron_sword",
			Modifications: map[string]any{"cost": 9999},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "my sword is priceless now", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Mutated {
		t.Error("denied modification should not mutate")
	}
	if !strings.Contains(result.Message, "power-protected") {
		t.Errorf("message = %q", result.Message)
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
	if w.Changes.Len() != 0 {
		t.Error("denied modification should not touch the change log")
	}
}

func TestHandleUtterance_ModifyUnknownTarget(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionModifyExisting, DataType: state.CategoryItem}, nil
	}
	o.ProposeModificationFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error) {
		return &oracle.ModificationProposal{
			TargetID:      "ghost_blade",
			Modifications: map[string]any{"description": "it glows"},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "polish the ghost blade", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Mutated || store.SaveCalls != 0 {
		t.Error("missing target should not mutate or save")
	}
	if !strings.Contains(result.Message, "ghost_blade") {
		t.Errorf("message = %q should name the missing target", result.Message)
	}
}

func TestHandleUtterance_ModifyProposalFails(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return &oracle.DataActionDecision{ActionType: oracle.ActionModifyExisting, DataType: state.CategoryItem}, nil
	}
	o.ProposeModificationFunc = func(ctx context.Context, w *state.WorldState, category, utterance string) (*oracle.ModificationProposal, error) {
		return nil, fmt.Errorf("%w: no target id", services.ErrOracleMalformed)
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "change something", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Message != NoModificationLine {
		t.Errorf("message = %q, want %q", result.Message, NoModificationLine)
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
}

func TestHandleUtterance_PrimitiveExistingAction(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveLocation, Confidence: 1}, nil
	}
	o.ChooseStrategyFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
		return &oracle.StrategyDecision{Strategy: oracle.StrategyExisting, SuggestedAction: "rest", Confidence: 1}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "take a room for the night", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != queue.TurnAction || !result.Mutated {
		t.Errorf("result = %+v, want mutated action", result)
	}
	if result.Message != "Successfully performed Rest" {
		t.Errorf("message = %q", result.Message)
	}
	if store.SaveCalls != 1 {
		t.Errorf("saves = %d, want 1", store.SaveCalls)
	}
	if got := store.Stored(w.ID).Player.Gold; got != 95 {
		t.Errorf("gold = %d, want 95 after paying for the room", got)
	}
	if o.Calls("ProposeAction") != 0 {
		t.Error("registered suggestion should not trigger dynamic generation")
	}
}

func TestHandleUtterance_PrimitivePreconditionFailed(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := state.NewWorldState()
	w.Player.Gold = 3
	if err := store.SaveWorld(context.Background(), w.ID, w); err != nil {
		t.Fatalf("seed world: %v", err)
	}
	store.SaveCalls = 0

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveLocation, Confidence: 1}, nil
	}
	o.ChooseStrategyFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
		return &oracle.StrategyDecision{Strategy: oracle.StrategyExisting, SuggestedAction: "rest", Confidence: 1}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "take a room for the night", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Mutated {
		t.Error("failed preconditions should not mutate")
	}
	if !strings.Contains(result.Message, "not enough gold") {
		t.Errorf("message = %q", result.Message)
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
	if w.Player.Gold != 3 {
		t.Errorf("gold = %d, want untouched 3", w.Player.Gold)
	}
}

func TestHandleUtterance_DynamicActionRegistersAfterSuccess(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveItem, Confidence: 1}, nil
	}
	o.ChooseStrategyFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
		return &oracle.StrategyDecision{Strategy: oracle.StrategyDynamic, ShouldCreateDynamic: true, Confidence: 1}, nil
	}
	o.ProposeActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error) {
		return &state.Action{
			ID:                 "vault_fence",
			Name:               "Vault the Fence",
			Category:           "movement",
			Cost:               map[string]int{"stamina": 5},
			SuccessProbability: 1,
			OracleProposed:     true,
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "vault over the fence", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if !result.Mutated {
		t.Error("successful dynamic action should mutate")
	}
	stored := store.Stored(w.ID)
	if stored.GetAction("vault_fence") == nil {
		t.Error("dynamic action should register after success")
	}
	if stored.Player.Stats.Health != 95 {
		t.Errorf("health = %d, want 95 after stamina cost", stored.Player.Stats.Health)
	}
}

func TestHandleUtterance_DynamicActionNotPersistedWithoutFlag(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveItem, Confidence: 1}, nil
	}
	o.ChooseStrategyFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
		return &oracle.StrategyDecision{Strategy: oracle.StrategyDynamic, ShouldCreateDynamic: false, Confidence: 1}, nil
	}
	o.ProposeActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error) {
		return &state.Action{
			ID:                 "vault_fence",
			Name:               "Vault the Fence",
			Cost:               map[string]int{"stamina": 5},
			SuccessProbability: 1,
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "vault over the fence", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if !result.Mutated {
		t.Error("costs were debited, turn should be mutated")
	}
	if store.Stored(w.ID).GetAction("vault_fence") != nil {
		t.Error("one-shot dynamic action should not join the registry")
	}
}

func TestHandleUtterance_DynamicActionFailureNotRegistered(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveQuest, Confidence: 1}, nil
	}
	o.ChooseStrategyFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
		return &oracle.StrategyDecision{Strategy: oracle.StrategyDynamic, ShouldCreateDynamic: true, Confidence: 1}, nil
	}
	o.ProposeActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error) {
		return &state.Action{
			ID:           "slay_dragon",
			Name:         "Slay the Dragon",
			Requirements: state.Requirements{Level: 10},
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "slay the dragon", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Mutated {
		t.Error("failed action should not mutate")
	}
	if !strings.Contains(result.Message, "requires level 10") {
		t.Errorf("message = %q", result.Message)
	}
	if w.GetAction("slay_dragon") != nil {
		t.Error("failed dynamic action must not register")
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
}

func TestHandleUtterance_SuggestedActionMissingFallsBackToDynamic(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveItem, Confidence: 1}, nil
	}
	o.ChooseStrategyFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.StrategyDecision, error) {
		return &oracle.StrategyDecision{
			Strategy:        oracle.StrategyExisting,
			SuggestedAction: "fly_to_the_moon",
			Confidence:      1,
		}, nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "improvise something", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if o.Calls("ProposeAction") != 1 {
		t.Error("unregistered suggestion should fall back to dynamic generation")
	}
	if !result.Mutated {
		t.Error("default mock action has no preconditions and should succeed")
	}
}

func TestHandleUtterance_ActionProposalFailureNarrates(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return &oracle.PrimitiveDecision{UsePrimitive: true, PrimitiveType: oracle.PrimitiveItem, Confidence: 1}, nil
	}
	o.ProposeActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*state.Action, error) {
		return nil, fmt.Errorf("%w: refused", services.ErrOracleUnavailable)
	}
	o.NarrateFunc = func(ctx context.Context, w *state.WorldState, utterance string) (string, error) {
		return "The wall stares back, unimpressed.", nil
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "stare down the wall", "")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != queue.TurnImmediate || result.Mutated {
		t.Errorf("result = %+v, want unmutated narration", result)
	}
	if result.Message != "The wall stares back, unimpressed." {
		t.Errorf("message = %q", result.Message)
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
}

func TestHandleUtterance_ConversationScriptedTopic(t *testing.T) {
	e, store, _ := newTestEngine(t)
	w := seedWorld(t, store)

	result, err := e.HandleUtterance(context.Background(), w.ID, "local_rumors", "barkeep")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Kind != queue.TurnConversation || !result.Mutated {
		t.Errorf("result = %+v, want mutated conversation", result)
	}
	if !strings.Contains(result.Message, "strange lights") {
		t.Errorf("message = %q, want scripted response", result.Message)
	}
	if store.SaveCalls != 1 {
		t.Errorf("saves = %d, want 1", store.SaveCalls)
	}

	cs := store.Stored(w.ID).Conversation("barkeep")
	if cs.RemainingQuestions != state.DefaultQuestionLimit-1 {
		t.Errorf("budget = %d, want %d", cs.RemainingQuestions, state.DefaultQuestionLimit-1)
	}
	if len(cs.History) != 1 {
		t.Errorf("history length = %d, want 1", len(cs.History))
	}
}

func TestHandleUtterance_ConversationTrivialInputFree(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	result, err := e.HandleUtterance(context.Background(), w.ID, "hi", "barkeep")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if result.Message != conversation.ConfusedLine {
		t.Errorf("message = %q", result.Message)
	}
	if result.Mutated || store.SaveCalls != 0 {
		t.Error("confused reaction should cost nothing and save nothing")
	}
	if o.Calls("AnalyzeConversation") != 0 {
		t.Error("trivial input should not reach the oracle")
	}
	if o.Calls("DecidePermission") != 0 {
		t.Error("addressed conversation should bypass the permission gate")
	}
}

func TestHandleUtterance_ConversationUnknownNPC(t *testing.T) {
	e, store, _ := newTestEngine(t)
	w := seedWorld(t, store)

	_, err := e.HandleUtterance(context.Background(), w.ID, "hello there", "nobody")
	if !errors.Is(err, state.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestHandleUtterance_OracleFullyDown(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)

	down := fmt.Errorf("%w: connection refused", services.ErrOracleUnavailable)
	o.DecidePermissionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PermissionDecision, error) {
		return nil, down
	}
	o.RouteDataActionFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.DataActionDecision, error) {
		return nil, down
	}
	o.PickPrimitiveFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.PrimitiveDecision, error) {
		return nil, down
	}
	o.ProposeImmediateFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
		return nil, down
	}

	result, err := e.HandleUtterance(context.Background(), w.ID, "try my luck anyway", "")
	if err != nil {
		t.Fatalf("turn should complete on fallbacks, got %v", err)
	}

	if !result.Allowed {
		t.Error("permission fallback allows")
	}
	if result.Kind != queue.TurnImmediate {
		t.Errorf("kind = %q, want immediate via fallback chain", result.Kind)
	}
	if result.Message != NoEffectLine {
		t.Errorf("message = %q, want %q", result.Message, NoEffectLine)
	}
	if store.SaveCalls != 0 {
		t.Errorf("saves = %d, want 0", store.SaveCalls)
	}
}

func TestHandleUtterance_SaveFailureSurfaces(t *testing.T) {
	e, store, o := newTestEngine(t)
	w := seedWorld(t, store)
	store.SaveError = errors.New("backend gone")

	o.ProposeImmediateFunc = func(ctx context.Context, w *state.WorldState, utterance string) (*oracle.ImmediateResult, error) {
		return &oracle.ImmediateResult{Message: "ow", Effects: map[string]int{"health_change": -1}}, nil
	}

	_, err := e.HandleUtterance(context.Background(), w.ID, "poke the hornet nest", "")
	if err == nil || !strings.Contains(err.Error(), "failed to persist world") {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

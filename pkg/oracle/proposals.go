// Package oracle defines the structured proposals the external
// content-generation service returns, together with the normalization that
// makes them safe to consume. Oracle output is never trusted verbatim:
// numeric fields clamp to their documented range, enum fields validate
// against the known set, and missing fields take deterministic defaults. A
// present-but-unknown enum value is a malformed response, not a default.
package oracle

import (
	"fmt"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// PermissionDecision is the oracle's judgement on whether a player request
// should proceed at all.
type PermissionDecision struct {
	Allowed           bool     `json:"allowed"`
	Reasoning         string   `json:"reasoning,omitempty"`
	RestrictedEffects []string `json:"restricted_effects,omitempty"`
}

// ActionType classifies what a data action should do with world data.
type ActionType string

const (
	ActionCreateNew      ActionType = "create_new"
	ActionModifyExisting ActionType = "modify_existing"
	ActionImmediate      ActionType = "immediate"
)

// DataActionDecision routes a player request to creation, modification, or
// immediate narration.
type DataActionDecision struct {
	ActionType ActionType `json:"action_type"`
	DataType   string     `json:"data_type,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Confidence float64    `json:"confidence"`
}

func (d *DataActionDecision) Normalize() error {
	switch d.ActionType {
	case "":
		d.ActionType = ActionImmediate
	case ActionCreateNew, ActionModifyExisting, ActionImmediate:
	default:
		return fmt.Errorf("unknown data action type %q", d.ActionType)
	}

	switch d.DataType {
	case "", "none":
		if d.ActionType != ActionImmediate {
			return fmt.Errorf("%s decision carries no data type", d.ActionType)
		}
		d.DataType = ""
	case state.CategoryItem, state.CategorySkill, state.CategoryQuest,
		state.CategoryLocation, state.CategoryNPC:
	default:
		return fmt.Errorf("unknown data type %q", d.DataType)
	}

	d.Confidence = clamp01(d.Confidence)
	return nil
}

// Primitive types the oracle may select instead of a general action.
const (
	PrimitiveLocation = "location"
	PrimitiveItem     = "item"
	PrimitiveQuest    = "quest"
	PrimitiveNone     = "none"
)

// PrimitiveDecision reports whether a request maps onto a specific game
// primitive rather than a general action.
type PrimitiveDecision struct {
	UsePrimitive  bool    `json:"use_specific_primitive"`
	PrimitiveType string  `json:"primitive_type,omitempty"`
	Reasoning     string  `json:"reasoning,omitempty"`
	Confidence    float64 `json:"confidence"`
}

func (d *PrimitiveDecision) Normalize() error {
	switch d.PrimitiveType {
	case "":
		d.PrimitiveType = PrimitiveNone
	case PrimitiveLocation, PrimitiveItem, PrimitiveQuest, PrimitiveNone:
	default:
		return fmt.Errorf("unknown primitive type %q", d.PrimitiveType)
	}
	if d.PrimitiveType == PrimitiveNone {
		d.UsePrimitive = false
	}
	d.Confidence = clamp01(d.Confidence)
	return nil
}

// Strategy says whether a request should run an existing action or generate
// a new one.
type Strategy string

const (
	StrategyExisting Strategy = "existing"
	StrategyDynamic  Strategy = "dynamic"
)

// StrategyDecision is the oracle's routing choice for an action request.
type StrategyDecision struct {
	Strategy            Strategy `json:"strategy"`
	Confidence          float64  `json:"confidence"`
	SuggestedAction     string   `json:"suggested_action,omitempty"`
	Reasoning           string   `json:"reasoning,omitempty"`
	ShouldCreateDynamic bool     `json:"should_create_dynamic"`
}

func (d *StrategyDecision) Normalize() error {
	switch d.Strategy {
	case "":
		d.Strategy = StrategyDynamic
	case StrategyExisting, StrategyDynamic:
	default:
		return fmt.Errorf("unknown strategy %q", d.Strategy)
	}
	if d.Strategy == StrategyExisting && d.SuggestedAction == "" {
		return fmt.Errorf("existing strategy without a suggested action")
	}
	d.Confidence = clamp01(d.Confidence)
	return nil
}

// ConversationStrategy picks how an NPC answers a non-scripted utterance.
type ConversationStrategy string

const (
	ConversationPreset   ConversationStrategy = "preset"
	ConversationDynamic  ConversationStrategy = "dynamic"
	ConversationRedirect ConversationStrategy = "redirect"
)

// ConversationDecision is the oracle's classification of one player
// utterance to an NPC.
type ConversationDecision struct {
	Strategy    ConversationStrategy `json:"strategy"`
	Similarity  float64              `json:"similarity_score"`
	PresetTopic string               `json:"preset_topic,omitempty"`
	Essential   bool                 `json:"is_essential"`
	Reasoning   string               `json:"reasoning,omitempty"`
	Response    string               `json:"npc_response,omitempty"`
}

func (d *ConversationDecision) Normalize() error {
	switch d.Strategy {
	case "":
		d.Strategy = ConversationDynamic
	case ConversationPreset, ConversationRedirect:
		if d.PresetTopic == "" {
			return fmt.Errorf("%s strategy without a preset topic", d.Strategy)
		}
	case ConversationDynamic:
	default:
		return fmt.Errorf("unknown conversation strategy %q", d.Strategy)
	}
	d.Similarity = clamp01(d.Similarity)
	return nil
}

// ModificationProposal asks for field changes on one existing entity. The
// balance validator, not the oracle, decides what is admitted.
type ModificationProposal struct {
	TargetID      string         `json:"target_id"`
	Modifications map[string]any `json:"modifications"`
	Reasoning     string         `json:"reasoning,omitempty"`
}

func (p *ModificationProposal) Normalize() error {
	if p.TargetID == "" {
		return fmt.Errorf("modification proposal without a target id")
	}
	if len(p.Modifications) == 0 {
		return fmt.Errorf("modification proposal without fields")
	}
	return nil
}

// StringModifications flattens proposed values to strings for validation.
// Non-string values only ever reach power-protected fields, which reject on
// field name alone.
func (p *ModificationProposal) StringModifications() map[string]string {
	out := make(map[string]string, len(p.Modifications))
	for field, value := range p.Modifications {
		out[field] = fmt.Sprint(value)
	}
	return out
}

// EntityProposal is a record for a brand-new world entity. Skills are
// authored content and cannot be proposed.
type EntityProposal struct {
	Category string   `json:"data_type"`
	Fields   FieldMap `json:"fields"`
}

func (p *EntityProposal) Normalize() error {
	switch p.Category {
	case state.CategoryItem, state.CategoryQuest, state.CategoryLocation, state.CategoryNPC:
	default:
		return fmt.Errorf("cannot create entities of type %q", p.Category)
	}
	if p.Fields.String("id") == "" || p.Fields.String("name") == "" {
		return fmt.Errorf("entity proposal missing id or name")
	}
	return nil
}

// ImmediateResult is the oracle's narration for a request that needs no new
// or modified data, with optional signed resource effects.
type ImmediateResult struct {
	Message string         `json:"message"`
	Effects map[string]int `json:"effects,omitempty"`
}

// NormalizeAction makes an oracle-proposed action safe to register: required
// identity fields must be present, the category defaults to "utility",
// success probability clamps to [0,1], negative costs are dropped, and the
// provenance flag is forced on.
func NormalizeAction(a *state.Action) error {
	if a.ID == "" || a.Name == "" {
		return fmt.Errorf("action proposal missing id or name")
	}
	if a.Category == "" {
		a.Category = "utility"
	}
	a.SuccessProbability = clamp01(a.SuccessProbability)
	for resource, amount := range a.Cost {
		if amount < 0 {
			a.Cost[resource] = 0
		}
	}
	a.OracleProposed = true
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// Builder assembles the system and user messages for one oracle decision
// using a fluent interface. It separates prompt assembly from transport.
type Builder struct {
	world     *state.WorldState
	npc       *state.NPC
	cs        *state.ConversationState
	category  string
	utterance string
}

// New creates a new prompt builder.
func New() *Builder {
	return &Builder{}
}

// WithWorld sets the world document the snapshot is reduced from.
func (b *Builder) WithWorld(w *state.WorldState) *Builder {
	b.world = w
	return b
}

// WithNPC sets the conversation partner and its session state.
func (b *Builder) WithNPC(npc *state.NPC, cs *state.ConversationState) *Builder {
	b.npc = npc
	b.cs = cs
	return b
}

// WithCategory sets the target category for creation and modification.
func (b *Builder) WithCategory(category string) *Builder {
	b.category = category
	return b
}

// WithUtterance sets the player's raw input.
func (b *Builder) WithUtterance(utterance string) *Builder {
	b.utterance = utterance
	return b
}

// Permission builds the permission-gate prompt.
func (b *Builder) Permission() (string, string, error) {
	user, err := b.worldPayload(nil)
	return PermissionPrompt, user, err
}

// DataAction builds the change-kind classification prompt.
func (b *Builder) DataAction() (string, string, error) {
	user, err := b.worldPayload(nil)
	return DataActionPrompt, user, err
}

// Primitive builds the primitive classification prompt.
func (b *Builder) Primitive() (string, string, error) {
	user, err := b.worldPayload(nil)
	return PrimitivePrompt, user, err
}

// Strategy builds the action routing prompt with the registry listing.
func (b *Builder) Strategy() (string, string, error) {
	if b.world == nil {
		return "", "", fmt.Errorf("world state is required")
	}

	type actionEntry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	var actions []actionEntry
	for _, id := range b.world.ActionIDs() {
		a := b.world.Actions[id]
		actions = append(actions, actionEntry{ID: a.ID, Name: a.Name, Description: a.Description})
	}

	user, err := b.worldPayload(map[string]any{"registered_actions": actions})
	return StrategyPrompt, user, err
}

// Conversation builds the NPC dialogue classification prompt.
func (b *Builder) Conversation() (string, string, error) {
	if b.npc == nil {
		return "", "", fmt.Errorf("npc is required")
	}

	profile, err := json.MarshalIndent(ToPromptNPC(b.npc, b.cs), "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("error marshaling npc profile: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("NPC PROFILE:\n")
	sb.Write(profile)
	sb.WriteString("\n\nPLAYER SAYS: ")
	sb.WriteString(b.utterance)

	return ConversationPrompt, sb.String(), nil
}

// Immediate builds the one-shot effect prompt.
func (b *Builder) Immediate() (string, string, error) {
	user, err := b.worldPayload(nil)
	return ImmediatePrompt, user, err
}

// Modification builds the field-change proposal prompt.
func (b *Builder) Modification() (string, string, error) {
	var extra map[string]any
	if b.category != "" {
		extra = map[string]any{"target_category": b.category}
	}
	user, err := b.worldPayload(extra)
	return ModificationPrompt, user, err
}

// Entity builds the new-record creation prompt for the set category.
func (b *Builder) Entity() (string, string, error) {
	if b.category == "" {
		return "", "", fmt.Errorf("category is required")
	}
	user, err := b.worldPayload(nil)
	return fmt.Sprintf(CreationPrompt, b.category, b.category), user, err
}

// DynamicAction builds the action generation prompt.
func (b *Builder) DynamicAction() (string, string, error) {
	user, err := b.worldPayload(nil)
	return DynamicActionPrompt, user, err
}

// Narration builds the free-text outcome prompt.
func (b *Builder) Narration() (string, string, error) {
	user, err := b.worldPayload(nil)
	return NarrationPrompt, user, err
}

// worldPayload renders the reduced game state, any extra context, and the
// player input into the user message.
func (b *Builder) worldPayload(extra map[string]any) (string, error) {
	if b.world == nil {
		return "", fmt.Errorf("world state is required")
	}

	snapshot, err := json.MarshalIndent(ToPromptState(b.world), "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshaling game state: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("GAME STATE:\n")
	sb.Write(snapshot)

	for key, value := range extra {
		blob, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", fmt.Errorf("error marshaling %s: %w", key, err)
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.ToUpper(strings.ReplaceAll(key, "_", " ")))
		sb.WriteString(":\n")
		sb.Write(blob)
	}

	sb.WriteString("\n\nPLAYER INPUT: ")
	sb.WriteString(b.utterance)

	return sb.String(), nil
}

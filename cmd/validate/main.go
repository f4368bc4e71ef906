package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mkarlsen/world-engine/pkg/action"
	"github.com/mkarlsen/world-engine/pkg/state"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <template.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &TemplateValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Template file is valid!")
}

type TemplateValidator struct {
	errors []string
}

func (v *TemplateValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	// Validate filename format
	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("template file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidTemplateFilename(nameWithoutExt) {
		return fmt.Errorf("template filename '%s' must be lowercase snake_case (e.g., frontier_keep.json, not FrontierKeep.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var w state.WorldState
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&w); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.validateWorld(&w)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

func (v *TemplateValidator) validateWorld(w *state.WorldState) {
	// Session-scoped state must not be authored into a template.
	if w.Changes.Len() > 0 {
		v.addError("template must not pre-seed the change log")
	}
	if len(w.Conversations) > 0 {
		v.addError("template must not pre-seed conversation states")
	}
	if len(w.PendingConsequences) > 0 {
		v.addError("template must not pre-seed pending consequences")
	}

	if w.Player == nil {
		v.addError("template has no player")
	}
	if len(w.Locations) == 0 {
		v.addError("template has no locations")
	}

	for itemID, item := range w.Items {
		v.validateIDFormat("item ID", itemID)
		v.validateKeyMatch("item", itemID, item.ID)
		v.validateRarity(itemID, item.Rarity)
	}

	for skillID, skill := range w.Skills {
		v.validateIDFormat("skill ID", skillID)
		v.validateKeyMatch("skill", skillID, skill.ID)
		v.validateSkill(skillID, skill)
	}

	for questID, quest := range w.Quests {
		v.validateIDFormat("quest ID", questID)
		v.validateKeyMatch("quest", questID, quest.ID)
		v.validateQuest(w, questID, quest)
	}

	for locationID, location := range w.Locations {
		v.validateIDFormat("location ID", locationID)
		v.validateKeyMatch("location", locationID, location.ID)
		v.validateLocation(w, locationID, location)
	}

	for npcID, npc := range w.NPCs {
		v.validateIDFormat("NPC ID", npcID)
		v.validateKeyMatch("NPC", npcID, npc.ID)
		v.validateNPC(w, npcID, npc)
	}

	for actionID, act := range w.Actions {
		v.validateIDFormat("action ID", actionID)
		v.validateKeyMatch("action", actionID, act.ID)
		v.validateAction(w, actionID, act)
	}

	for _, locationID := range w.Discovered {
		if w.GetLocation(locationID) == nil {
			v.addError(fmt.Sprintf("discovered location '%s' does not exist", locationID))
		}
	}

	if w.Player != nil {
		v.validatePlayer(w)
	}
}

func (v *TemplateValidator) validatePlayer(w *state.WorldState) {
	p := w.Player

	if p.Location == "" {
		v.addError("player has no starting location")
	} else if w.GetLocation(p.Location) == nil {
		v.addError(fmt.Sprintf("player location '%s' does not exist", p.Location))
	}

	for _, itemID := range p.Inventory {
		if w.GetItem(itemID) == nil {
			v.addError(fmt.Sprintf("player inventory item '%s' does not exist", itemID))
		}
	}
	for _, skillID := range p.Skills {
		if w.GetSkill(skillID) == nil {
			v.addError(fmt.Sprintf("player skill '%s' does not exist", skillID))
		}
	}
	for _, questID := range p.ActiveQuests {
		if w.GetQuest(questID) == nil {
			v.addError(fmt.Sprintf("player active quest '%s' does not exist", questID))
		}
	}
}

func (v *TemplateValidator) validateSkill(skillID string, skill *state.Skill) {
	switch skill.Type {
	case state.SkillPassive, state.SkillActive:
	default:
		v.addError(fmt.Sprintf("skill '%s' has invalid skill_type '%s'", skillID, skill.Type))
	}

	switch skill.Target {
	case state.TargetEnemies, state.TargetOneEnemy, state.TargetAllies,
		state.TargetSelf, state.TargetAll, state.TargetOneAlly:
	default:
		v.addError(fmt.Sprintf("skill '%s' has invalid target '%s'", skillID, skill.Target))
	}
}

func (v *TemplateValidator) validateRarity(itemID string, rarity state.Rarity) {
	switch rarity {
	case state.RarityCommon, state.RarityUncommon, state.RarityRare,
		state.RarityEpic, state.RarityLegendary:
	default:
		v.addError(fmt.Sprintf("item '%s' has invalid rarity '%s'", itemID, rarity))
	}
}

func (v *TemplateValidator) validateQuest(w *state.WorldState, questID string, quest *state.Quest) {
	switch quest.Status {
	case state.QuestNotStarted, state.QuestInProgress, state.QuestCompleted, state.QuestFailed:
	default:
		v.addError(fmt.Sprintf("quest '%s' has invalid status '%s'", questID, quest.Status))
	}

	if quest.Location != "" && w.GetLocation(quest.Location) == nil {
		v.addError(fmt.Sprintf("quest '%s' references unknown location '%s'", questID, quest.Location))
	}
}

func (v *TemplateValidator) validateLocation(w *state.WorldState, locationID string, location *state.Location) {
	for _, npcID := range location.NPCs {
		if w.GetNPC(npcID) == nil {
			v.addError(fmt.Sprintf("location '%s' references unknown NPC '%s'", locationID, npcID))
		}
	}
	for _, itemID := range location.ShopItems {
		if w.GetItem(itemID) == nil {
			v.addError(fmt.Sprintf("location '%s' sells unknown item '%s'", locationID, itemID))
		}
	}
	for _, subID := range location.SubLocations {
		if w.GetLocation(subID) == nil {
			v.addError(fmt.Sprintf("location '%s' contains unknown sub-location '%s'", locationID, subID))
		}
	}
}

func (v *TemplateValidator) validateNPC(w *state.WorldState, npcID string, npc *state.NPC) {
	if npc.Location != "" && w.GetLocation(npc.Location) == nil {
		v.addError(fmt.Sprintf("NPC '%s' is placed at unknown location '%s'", npcID, npc.Location))
	}
	for _, questID := range npc.QuestsOffered {
		if w.GetQuest(questID) == nil {
			v.addError(fmt.Sprintf("NPC '%s' offers unknown quest '%s'", npcID, questID))
		}
	}
	for _, itemID := range npc.ShopItems {
		if w.GetItem(itemID) == nil {
			v.addError(fmt.Sprintf("NPC '%s' sells unknown item '%s'", npcID, itemID))
		}
	}
	if npc.QuestionLimit < 0 {
		v.addError(fmt.Sprintf("NPC '%s' has negative question_limit %d", npcID, npc.QuestionLimit))
	}

	v.validateTopics(npcID, npc.Topics)
}

// validateTopics checks scripted dialogue for selection ambiguity. Players
// pick topics by raw name, by humanized name, or by 1-based index, so
// duplicate names, colliding humanized forms, and purely numeric names all
// make a topic unreachable or ambiguous.
func (v *TemplateValidator) validateTopics(npcID string, topics state.TopicList) {
	titleCaser := cases.Title(language.English)
	seenRaw := make(map[string]bool)
	seenHumanized := make(map[string]string)

	for _, topic := range topics {
		if topic.Name == "" {
			v.addError(fmt.Sprintf("NPC '%s' has a topic with no name", npcID))
			continue
		}

		v.validateIDFormat(fmt.Sprintf("NPC '%s' topic name", npcID), topic.Name)

		if topic.Response == "" {
			v.addError(fmt.Sprintf("NPC '%s' topic '%s' has no response", npcID, topic.Name))
		}

		if isNumeric(topic.Name) {
			v.addError(fmt.Sprintf("NPC '%s' topic '%s' is purely numeric and collides with index selection", npcID, topic.Name))
		}

		if seenRaw[topic.Name] {
			v.addError(fmt.Sprintf("NPC '%s' has duplicate topic '%s'", npcID, topic.Name))
		}
		seenRaw[topic.Name] = true

		humanized := strings.ToLower(titleCaser.String(strings.ReplaceAll(topic.Name, "_", " ")))
		if other, ok := seenHumanized[humanized]; ok && other != topic.Name {
			v.addError(fmt.Sprintf("NPC '%s' topics '%s' and '%s' are ambiguous when spoken aloud", npcID, other, topic.Name))
		}
		seenHumanized[humanized] = topic.Name
	}
}

func (v *TemplateValidator) validateAction(w *state.WorldState, actionID string, act *state.Action) {
	if act.SuccessProbability < 0 || act.SuccessProbability > 1 {
		v.addError(fmt.Sprintf("action '%s' has success_chance %g outside [0,1]", actionID, act.SuccessProbability))
	}

	// Unrecognized cost resources are never debited, making the action
	// silently free.
	for resource := range act.Cost {
		switch resource {
		case "mana", "health", "gold", "stamina":
		default:
			v.addError(fmt.Sprintf("action '%s' has unrecognized cost resource '%s'", actionID, resource))
		}
	}

	// Unknown effect tags no-op at execution time; in an authored template
	// that is almost always a typo.
	for tag := range act.Effects {
		if !knownEffects[tag] {
			v.addError(fmt.Sprintf("action '%s' effect '%s' is not implemented and would silently no-op", actionID, tag))
		}
	}

	for _, itemID := range act.Requirements.Items {
		if w.GetItem(itemID) == nil {
			v.addError(fmt.Sprintf("action '%s' requires unknown item '%s'", actionID, itemID))
		}
	}
	for _, skillID := range act.Requirements.Skills {
		if w.GetSkill(skillID) == nil {
			v.addError(fmt.Sprintf("action '%s' requires unknown skill '%s'", actionID, skillID))
		}
	}
	if act.Requirements.Location != "" && w.GetLocation(act.Requirements.Location) == nil {
		v.addError(fmt.Sprintf("action '%s' requires unknown location '%s'", actionID, act.Requirements.Location))
	}
}

// knownEffects is the implemented effect vocabulary, as a set.
var knownEffects = func() map[string]bool {
	set := make(map[string]bool)
	for _, tag := range action.KnownEffects() {
		set[tag] = true
	}
	return set
}()

func (v *TemplateValidator) validateKeyMatch(kind, key, id string) {
	if id != "" && id != key {
		v.addError(fmt.Sprintf("%s key '%s' does not match its id field '%s'", kind, key, id))
	}
}

func (v *TemplateValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *TemplateValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	numericRegex       = regexp.MustCompile(`^[0-9]+$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isNumeric(s string) bool {
	return numericRegex.MatchString(s)
}

func isValidTemplateFilename(name string) bool {
	// Allow 'x.' prefix for experimental templates
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/google/uuid"
)

// The console keeps its own lightweight mirrors of the wire types so it
// only depends on the HTTP API, not the engine's internal packages.

type consoleStats struct {
	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`
	Mana      int `json:"mana"`
	MaxMana   int `json:"max_mana"`
	Level     int `json:"level"`
}

type consolePlayer struct {
	Name      string       `json:"name"`
	Stats     consoleStats `json:"stats"`
	Gold      int          `json:"gold"`
	Inventory []string     `json:"inventory,omitempty"`
	Location  string       `json:"location"`
}

type consoleNPC struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type consoleLocation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type consoleWorld struct {
	ID         uuid.UUID                  `json:"id"`
	Player     *consolePlayer             `json:"player"`
	NPCs       map[string]consoleNPC      `json:"npcs,omitempty"`
	Locations  map[string]consoleLocation `json:"locations,omitempty"`
	Reputation int                        `json:"reputation,omitempty"`
}

type turnResult struct {
	SessionID uuid.UUID `json:"session_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Allowed   bool      `json:"allowed"`
	Mutated   bool      `json:"mutated"`
	ChangeIDs []string  `json:"change_ids,omitempty"`
}

type talkReply struct {
	NPCID      string `json:"npc_id"`
	Text       string `json:"text"`
	Opener     string `json:"opener,omitempty"`
	Annotation string `json:"annotation,omitempty"`
	Essential  bool   `json:"essential"`
	BudgetUsed bool   `json:"budget_used"`
}

type changeRecord struct {
	ID        string `json:"change_id"`
	DataType  string `json:"data_type"`
	TargetID  string `json:"target_id"`
	FieldName string `json:"field_name"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	UserInput string `json:"user_input,omitempty"`
}

type templatesResponse struct {
	Templates map[string]string `json:"templates"`
}

type changesResponse struct {
	Changes []changeRecord `json:"changes"`
}

// templateEntry pairs a display name with the filename the API expects.
type templateEntry struct {
	Name     string
	Filename string
}

// apiError extracts the API's error message from a non-2xx response.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("%s", errResp.Error)
	}
	return fmt.Errorf("API returned status %d", resp.StatusCode)
}

// listTemplates fetches the available world templates, sorted by display
// name, with a blank-world entry prepended.
func listTemplates(client *http.Client, baseURL string) ([]templateEntry, error) {
	resp, err := client.Get(baseURL + "/v1/templates")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var tr templatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}

	entries := make([]templateEntry, 0, len(tr.Templates)+1)
	for name, filename := range tr.Templates {
		entries = append(entries, templateEntry{Name: name, Filename: filename})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	// A blank world is always offered first.
	entries = append([]templateEntry{{Name: "empty world", Filename: ""}}, entries...)
	return entries, nil
}

// createWorld starts a new world from the given template filename. An
// empty filename creates a blank world.
func createWorld(client *http.Client, baseURL, template string) (*consoleWorld, error) {
	reqBody := map[string]string{}
	if template != "" {
		reqBody["template"] = template
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/worlds", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}

	var world consoleWorld
	if err := json.NewDecoder(resp.Body).Decode(&world); err != nil {
		return nil, fmt.Errorf("failed to decode world: %w", err)
	}
	return &world, nil
}

// getWorld refreshes the world snapshot for the meta panel.
func getWorld(client *http.Client, baseURL string, id uuid.UUID) (*consoleWorld, error) {
	resp, err := client.Get(baseURL + "/v1/worlds/" + id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get world: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var world consoleWorld
	if err := json.NewDecoder(resp.Body).Decode(&world); err != nil {
		return nil, fmt.Errorf("failed to decode world: %w", err)
	}
	return &world, nil
}

// sendUtterance submits a free-text player utterance for a full turn.
func sendUtterance(client *http.Client, baseURL string, worldID uuid.UUID, utterance string) (*turnResult, error) {
	reqBody := map[string]string{
		"world_id":  worldID.String(),
		"utterance": utterance,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/utterance", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to send utterance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result turnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode turn result: %w", err)
	}
	return &result, nil
}

// sendTalk sends one conversation message to an NPC.
func sendTalk(client *http.Client, baseURL string, worldID uuid.UUID, npcID, message string) (*talkReply, error) {
	reqBody := map[string]string{
		"world_id": worldID.String(),
		"npc_id":   npcID,
		"message":  message,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/talk", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var reply talkReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return &reply, nil
}

// getChanges fetches the world's change log, newest last.
func getChanges(client *http.Client, baseURL string, worldID uuid.UUID) ([]changeRecord, error) {
	resp, err := client.Get(baseURL + "/v1/changes?world_id=" + url.QueryEscape(worldID.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to get changes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var cr changesResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("failed to decode changes: %w", err)
	}
	return cr.Changes, nil
}

// revertChange undoes the most recent change and returns its record.
func revertChange(client *http.Client, baseURL string, worldID uuid.UUID) (*changeRecord, error) {
	req, err := http.NewRequest(http.MethodDelete, baseURL+"/v1/changes?world_id="+url.QueryEscape(worldID.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to revert change: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var change changeRecord
	if err := json.NewDecoder(resp.Body).Decode(&change); err != nil {
		return nil, fmt.Errorf("failed to decode change: %w", err)
	}
	return &change, nil
}

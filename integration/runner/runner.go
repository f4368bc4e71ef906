package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/pkg/conversation"
	"github.com/mkarlsen/world-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// turnOutcome mirrors the turn result wire format returned by the
// utterance endpoint.
type turnOutcome struct {
	SessionID uuid.UUID `json:"session_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Allowed   bool      `json:"allowed"`
	Mutated   bool      `json:"mutated"`
	ChangeIDs []string  `json:"change_ids,omitempty"`
}

// Runner executes integration tests against a running world-engine API.
// Turns are synchronous: the response carries the outcome and the snapshot
// is already saved when it arrives, so steps never poll.
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	TemplateOverride  string // If set, overrides the template for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence.
// Returns a list of actual test suites (expanded from the sequence if needed).
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite against a fresh world
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	template := suite.Template
	if r.TemplateOverride != "" {
		template = r.TemplateOverride
	}

	worldID, err := r.createWorld(ctx, template)
	if err != nil {
		result.Error = fmt.Errorf("failed to create world: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.WorldID = worldID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.executeStep(ctx, worldID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// executeStep performs one step: a turn, a talk exchange, or a revert.
func (r *Runner) executeStep(ctx context.Context, worldID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	var outcome *turnOutcome
	var reply *conversation.Reply

	switch {
	case step.Utterance == RevertChangePrompt:
		if err := r.revertLastChange(ctx, worldID); err != nil {
			result.Error = fmt.Errorf("failed to revert change: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.IsRevert = true
		result.ResponseText = "[CHANGE REVERTED]"

	case step.Change != nil:
		if err := r.recordChange(ctx, worldID, step.Change); err != nil {
			result.Error = fmt.Errorf("failed to record change: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.ResponseText = "[CHANGE RECORDED]"

	case step.Action != "":
		var err error
		outcome, err = r.executeAction(ctx, worldID, step.Action)
		if err != nil {
			result.Error = fmt.Errorf("action step failed: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.ResponseText = outcome.Message

	case step.NPCID != "":
		var err error
		reply, err = r.talk(ctx, worldID, step.NPCID, step.Utterance)
		if err != nil {
			result.Error = fmt.Errorf("talk step failed: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.ResponseText = reply.Text

	default:
		var err error
		outcome, err = r.playTurn(ctx, worldID, step.Utterance)
		if err != nil {
			result.Error = fmt.Errorf("turn step failed: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.ResponseText = outcome.Message
	}

	postState, err := r.getWorld(ctx, worldID)
	if err != nil {
		result.Error = fmt.Errorf("failed to get world after step: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := r.checkExpectations(step.Expectations, postState, outcome, reply, result.ResponseText); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// createWorld creates a new world from a template via POST /v1/worlds
func (r *Runner) createWorld(ctx context.Context, template string) (uuid.UUID, error) {
	reqBody := map[string]string{}
	if template != "" {
		reqBody["template"] = template
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/worlds", bytes.NewBuffer(payload))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to create world: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return uuid.UUID{}, fmt.Errorf("create world returned %d: %s", resp.StatusCode, string(body))
	}

	var created state.WorldState
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to decode created world: %w", err)
	}

	return created.ID, nil
}

// getWorld retrieves the current world snapshot
func (r *Runner) getWorld(ctx context.Context, worldID uuid.UUID) (*state.WorldState, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", r.BaseURL+"/v1/worlds/"+worldID.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get world: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get world returned %d: %s", resp.StatusCode, string(body))
	}

	var w state.WorldState
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode world: %w", err)
	}
	return &w, nil
}

// playTurn submits one utterance via POST /v1/utterance
func (r *Runner) playTurn(ctx context.Context, worldID uuid.UUID, utterance string) (*turnOutcome, error) {
	reqBody := map[string]string{
		"world_id":  worldID.String(),
		"utterance": utterance,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal utterance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/utterance", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send utterance: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("utterance returned %d: %s", resp.StatusCode, string(body))
	}

	var outcome turnOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, fmt.Errorf("failed to decode turn outcome: %w", err)
	}
	return &outcome, nil
}

// talk sends one conversation message via POST /v1/talk
func (r *Runner) talk(ctx context.Context, worldID uuid.UUID, npcID, message string) (*conversation.Reply, error) {
	reqBody := map[string]string{
		"world_id": worldID.String(),
		"npc_id":   npcID,
		"message":  message,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal talk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/talk", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send talk message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("talk returned %d: %s", resp.StatusCode, string(body))
	}

	var reply conversation.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return &reply, nil
}

// executeAction performs a registered action via POST /v1/actions
func (r *Runner) executeAction(ctx context.Context, worldID uuid.UUID, actionID string) (*turnOutcome, error) {
	reqBody := map[string]string{
		"world_id":  worldID.String(),
		"action_id": actionID,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/actions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute action: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("execute action returned %d: %s", resp.StatusCode, string(body))
	}

	var outcome turnOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, fmt.Errorf("failed to decode action outcome: %w", err)
	}
	return &outcome, nil
}

// recordChange records a manual field change via POST /v1/changes
func (r *Runner) recordChange(ctx context.Context, worldID uuid.UUID, spec *ChangeSpec) error {
	reqBody := map[string]string{
		"world_id":  worldID.String(),
		"category":  spec.Category,
		"target_id": spec.TargetID,
		"field":     spec.Field,
		"value":     spec.Value,
		"reasoning": spec.Reasoning,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal change request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/changes", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("record change returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// revertLastChange undoes the newest change via DELETE /v1/changes
func (r *Runner) revertLastChange(ctx context.Context, worldID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", r.BaseURL+"/v1/changes?world_id="+worldID.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create DELETE request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute DELETE request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("revert returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// checkExpectations validates the test expectations against the world
// snapshot and the step's outcome.
func (r *Runner) checkExpectations(exp Expectations, postState *state.WorldState, outcome *turnOutcome, reply *conversation.Reply, responseText string) error {
	// Player checks
	if exp.Location != nil || exp.Gold != nil || exp.Health != nil || exp.Level != nil || len(exp.Inventory) > 0 {
		if postState.Player == nil {
			return fmt.Errorf("expectations reference the player, but the world has no player")
		}
	}

	if exp.Location != nil {
		if postState.Player.Location != *exp.Location {
			return fmt.Errorf("expected location %s, got %s", *exp.Location, postState.Player.Location)
		}
	}

	if exp.Gold != nil {
		if postState.Player.Gold != *exp.Gold {
			return fmt.Errorf("expected gold %d, got %d", *exp.Gold, postState.Player.Gold)
		}
	}

	if exp.Health != nil {
		if postState.Player.Stats.Health != *exp.Health {
			return fmt.Errorf("expected health %d, got %d", *exp.Health, postState.Player.Stats.Health)
		}
	}

	if exp.Level != nil {
		if postState.Player.Stats.Level != *exp.Level {
			return fmt.Errorf("expected level %d, got %d", *exp.Level, postState.Player.Stats.Level)
		}
	}

	if exp.Reputation != nil {
		if postState.Reputation != *exp.Reputation {
			return fmt.Errorf("expected reputation %d, got %d", *exp.Reputation, postState.Reputation)
		}
	}

	// Full inventory check (order independent)
	if len(exp.Inventory) > 0 {
		expected := make(map[string]bool)
		for _, item := range exp.Inventory {
			expected[item] = true
		}

		actual := make(map[string]bool)
		for _, item := range postState.Player.Inventory {
			actual[item] = true
		}

		for expectedItem := range expected {
			if !actual[expectedItem] {
				return fmt.Errorf("expected inventory to contain '%s', but it's missing. Actual inventory: %v", expectedItem, postState.Player.Inventory)
			}
		}

		for actualItem := range actual {
			if !expected[actualItem] {
				return fmt.Errorf("inventory contains unexpected item '%s'. Expected inventory: %v, Actual: %v", actualItem, exp.Inventory, postState.Player.Inventory)
			}
		}
	}

	if exp.ChangeCount != nil {
		if postState.Changes.Len() != *exp.ChangeCount {
			return fmt.Errorf("expected change_count %d, got %d", *exp.ChangeCount, postState.Changes.Len())
		}
	}

	// Turn outcome checks
	if exp.Kind != nil {
		if outcome == nil {
			return fmt.Errorf("expected kind %s, but step produced no turn outcome", *exp.Kind)
		}
		if outcome.Kind != *exp.Kind {
			return fmt.Errorf("expected kind %s, got %s", *exp.Kind, outcome.Kind)
		}
	}

	if exp.Allowed != nil {
		if outcome == nil {
			return fmt.Errorf("expected allowed %t, but step produced no turn outcome", *exp.Allowed)
		}
		if outcome.Allowed != *exp.Allowed {
			return fmt.Errorf("expected allowed %t, got %t", *exp.Allowed, outcome.Allowed)
		}
	}

	if exp.Mutated != nil {
		if outcome == nil {
			return fmt.Errorf("expected mutated %t, but step produced no turn outcome", *exp.Mutated)
		}
		if outcome.Mutated != *exp.Mutated {
			return fmt.Errorf("expected mutated %t, got %t", *exp.Mutated, outcome.Mutated)
		}
	}

	// Conversation checks
	if exp.BudgetUsed != nil {
		if reply == nil {
			return fmt.Errorf("expected budget_used %t, but step was not a talk step", *exp.BudgetUsed)
		}
		if reply.BudgetUsed != *exp.BudgetUsed {
			return fmt.Errorf("expected budget_used %t, got %t", *exp.BudgetUsed, reply.BudgetUsed)
		}
	}

	if exp.Essential != nil {
		if reply == nil {
			return fmt.Errorf("expected essential %t, but step was not a talk step", *exp.Essential)
		}
		if reply.Essential != *exp.Essential {
			return fmt.Errorf("expected essential %t, got %t", *exp.Essential, reply.Essential)
		}
	}

	// Response content checks
	if len(exp.ResponseContains) > 0 {
		lowerResponse := strings.ToLower(responseText)
		for _, expectedText := range exp.ResponseContains {
			if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
				return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
			}
		}
	}

	if len(exp.ResponseNotContains) > 0 {
		lowerResponse := strings.ToLower(responseText)
		for _, unexpectedText := range exp.ResponseNotContains {
			if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
				return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
			}
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil {
		if len(responseText) < *exp.ResponseMinLength {
			return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
		}
	}

	return nil
}

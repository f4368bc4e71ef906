package runner

import (
	"time"

	"github.com/google/uuid"
)

// Special utterance values that trigger non-turn actions
const (
	RevertChangePrompt = "REVERT_LAST_CHANGE"
)

// TestSuite defines a complete integration test scenario.
// Can either be a regular test with Steps, or a suite that references other Cases.
type TestSuite struct {
	Name     string     `json:"name"`
	Template string     `json:"template,omitempty"` // world template filename, empty for a blank world
	Steps    []TestStep `json:"steps,omitempty"`    // used for regular tests
	Cases    []string   `json:"cases,omitempty"`    // used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single test interaction and its expected outcomes.
// Exactly one mode applies per step: npc_id sends the utterance through the
// conversation endpoint, action executes a registered action, change records
// a manual field change, and utterance "REVERT_LAST_CHANGE" undoes the
// newest change. A bare utterance plays a normal turn.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Utterance    string       `json:"utterance,omitempty"`
	NPCID        string       `json:"npc_id,omitempty"`
	Action       string       `json:"action,omitempty"`
	Change       *ChangeSpec  `json:"change,omitempty"`
	Expectations Expectations `json:"expect"`
}

// ChangeSpec describes a manual change record for a change step
type ChangeSpec struct {
	Category  string `json:"category"`
	TargetID  string `json:"target_id"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// World snapshot properties - aligned with pkg/state/world.go
	Location    *string  `json:"location,omitempty"`     // player location id
	Gold        *int     `json:"gold,omitempty"`         // player gold
	Health      *int     `json:"health,omitempty"`       // player health
	Level       *int     `json:"level,omitempty"`        // player level
	Reputation  *int     `json:"reputation,omitempty"`   // world reputation
	Inventory   []string `json:"inventory,omitempty"`    // full inventory contents (order independent)
	ChangeCount *int     `json:"change_count,omitempty"` // change log length

	// Turn outcome properties (utterance steps)
	Kind    *string `json:"kind,omitempty"`
	Allowed *bool   `json:"allowed,omitempty"`
	Mutated *bool   `json:"mutated,omitempty"`

	// Conversation properties (talk steps)
	BudgetUsed *bool `json:"budget_used,omitempty"`
	Essential  *bool `json:"essential,omitempty"`

	// Response Analysis
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsRevert     bool // true if this was a REVERT_LAST_CHANGE step
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	WorldID  uuid.UUID // ID of the world used for this test
}

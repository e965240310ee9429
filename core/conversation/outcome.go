package conversation

import "github.com/m3rciful/swingbot/core/scenario"

// Kind classifies the result of Advance.
type Kind uint8

const (
	// NoActiveScenario means the input neither continued nor started a scenario.
	NoActiveScenario Kind = iota
	// Started means a trigger opened a scenario at its first step.
	Started
	// Advanced means the input was accepted and the user moved to Step.
	Advanced
	// Invalid means the input was rejected; the user stays on Step.
	Invalid
	// Completed means the terminal action succeeded and the state was cleared.
	Completed
	// Failed means the terminal action (or a branch rule) failed; the state was kept.
	Failed
	// Cancelled means the user's state was cleared on request.
	Cancelled
)

var kindNames = [...]string{
	NoActiveScenario: "no_scenario",
	Started:          "started",
	Advanced:         "advanced",
	Invalid:          "invalid",
	Completed:        "completed",
	Failed:           "failed",
	Cancelled:        "cancelled",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Outcome describes what Advance did.
type Outcome struct {
	Kind     Kind
	Scenario scenario.ID
	// Step is the step the user is on after the call. Empty for
	// NoActiveScenario, Completed and Cancelled.
	Step string
	// Data is the accumulated data; set for Completed and Failed.
	Data scenario.Data
	// Reason is a user-facing explanation for Invalid and Failed.
	Reason string
	// Err is the underlying cause of Failed. Never shown to users.
	Err error
}

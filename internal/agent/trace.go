package agent

import (
	"time"
)

// Outcome tells how a run ended.
type Outcome string

const (
	OutcomeFinalAnswer    Outcome = "final_answer"
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
)

// Step is one action/observation pair of a run. Steps produced by
// unparseable model output carry Invalid and a corrective observation.
type Step struct {
	Action      string    `json:"action"`
	ActionInput string    `json:"action_input"`
	Log         string    `json:"log"`
	Observation string    `json:"observation"`
	Invalid     bool      `json:"invalid,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Result is the output of a run.
type Result struct {
	Output     string        `json:"output"`
	Outcome    Outcome       `json:"outcome"`
	Steps      []Step        `json:"intermediate_steps"`
	Iterations int           `json:"iterations"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

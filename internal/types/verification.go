package types

import "time"

// Verdict is the outcome of checking a single criterion
type Verdict string

const (
	VerdictPassed Verdict = "passed"
	VerdictFailed Verdict = "failed"
	VerdictError  Verdict = "error" // agent could not evaluate
)

// CriterionResult is the agent's answer for one acceptance criterion
type CriterionResult struct {
	Index         int      `json:"index" jsonschema:"minimum=0"`
	Criterion     string   `json:"criterion" jsonschema:"required"`
	Verdict       Verdict  `json:"verdict" jsonschema:"required,enum=passed,enum=failed,enum=error"`
	Reasoning     string   `json:"reasoning,omitempty"`
	Steps         []string `json:"steps,omitempty"`
	ScreenshotKey string   `json:"screenshotKey,omitempty"`
	Error         string   `json:"error,omitempty"`
	DurationMs    int64    `json:"durationMs"`
}

// Result is the outcome of one verification run over a ticket's criteria
type Result struct {
	TicketID   string            `json:"ticketId" jsonschema:"required"`
	Identifier string            `json:"identifier,omitempty"`
	RunID      string            `json:"runId" jsonschema:"required"`
	TargetURL  string            `json:"targetUrl" jsonschema:"required"`
	Criteria   []CriterionResult `json:"criteria"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	Errored    int               `json:"errored"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	ResultKey  string            `json:"resultKey,omitempty"`
}

// Tally recomputes the verdict counters from Criteria
func (r *Result) Tally() {
	r.Passed, r.Failed, r.Errored = 0, 0, 0
	for _, c := range r.Criteria {
		switch c.Verdict {
		case VerdictPassed:
			r.Passed++
		case VerdictFailed:
			r.Failed++
		default:
			r.Errored++
		}
	}
}

// AllPassed reports whether every criterion passed
func (r *Result) AllPassed() bool {
	return len(r.Criteria) > 0 && r.Passed == len(r.Criteria)
}

// Duration returns the wall time of the run
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

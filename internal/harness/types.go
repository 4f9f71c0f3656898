package harness

import "github.com/roach88/notitia/internal/ir"

// Trace event types.
const (
	TraceSubscribe = "subscribe"
	TraceMutation  = "mutation"
	TraceNotify    = "notify"
	TraceConflict  = "conflict"
	TraceError     = "error"
	TraceClose     = "close"
)

// TraceEvent records one observable effect of a scenario.
type TraceEvent struct {
	Type         string         `json:"type"`
	Step         int            `json:"step"` // -1 for subscription setup
	Subscription string         `json:"subscription,omitempty"`
	Code         string         `json:"code,omitempty"`
	Event        map[string]any `json:"event,omitempty"`
	Rows         ir.ResultSet   `json:"rows,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds each subscription's final rows, keyed by name.
	State map[string]ir.ResultSet `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.ResultSet),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

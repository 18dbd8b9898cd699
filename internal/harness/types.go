package harness

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step    int            `json:"step"`
	Action  string         `json:"action"`
	Target  string         `json:"target,omitempty"`
	Outcome map[string]any `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(step int, action, target string, outcome map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    step,
		Action:  action,
		Target:  target,
		Outcome: outcome,
	})
}

package scenario

import (
	"encoding/json"
	"time"
)

// Status is the execution state of a step, part, or whole run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// AssertionResult is the outcome of evaluating one expectation. A failed
// comparison is data, not an error: Passed false with expected/actual filled.
type AssertionResult struct {
	Type     string `json:"type"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// StepResult is the outcome of one step attempt. A retry produces a new
// StepResult that replaces the prior one for the same step id.
type StepResult struct {
	StepID     string            `json:"id"`
	Desc       string            `json:"desc"`
	Status     Status            `json:"status"`
	Screenshot string            `json:"screenshot,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// PartResult groups step results for one part. Status is failed if any step
// failed, else passed if any step passed, else skipped.
type PartResult struct {
	Part   int          `json:"part"`
	Title  string       `json:"title"`
	Status Status       `json:"status"`
	Steps  []StepResult `json:"steps"`
}

// RecordStep appends or replaces a step result by step id and folds its
// status into the part status.
func (p *PartResult) RecordStep(sr StepResult) {
	replaced := false
	for i := range p.Steps {
		if p.Steps[i].StepID == sr.StepID {
			p.Steps[i] = sr
			replaced = true
			break
		}
	}
	if !replaced {
		p.Steps = append(p.Steps, sr)
	}

	switch {
	case sr.Status == StatusFailed:
		p.Status = StatusFailed
	case sr.Status == StatusPassed && p.Status != StatusFailed:
		p.Status = StatusPassed
	}
}

// Finish settles a part that recorded no passes or failures.
func (p *PartResult) Finish() {
	if p.Status == StatusRunning || p.Status == StatusPending {
		p.Status = StatusSkipped
	}
}

// Summary aggregates step counts across a run.
type Summary struct {
	TotalSteps int   `json:"total_steps"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	DurationMS int64 `json:"duration_ms"`
}

// RunResult is the full result record of one scenario execution. It is the
// single serialization boundary for the results document: marshalling emits
// the document shape with a computed summary.
type RunResult struct {
	ScenarioID  string
	Title       string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Parts       []PartResult
}

// NewRunResult starts an empty result record for a scenario.
func NewRunResult(s *Scenario) *RunResult {
	return &RunResult{
		ScenarioID: s.Meta.ID,
		Title:      s.Meta.Title,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
}

// Summary computes aggregate counts over all recorded steps.
func (r *RunResult) Summary() Summary {
	var sum Summary
	for _, p := range r.Parts {
		for _, s := range p.Steps {
			sum.TotalSteps++
			sum.DurationMS += s.DurationMS
			switch s.Status {
			case StatusPassed:
				sum.Passed++
			case StatusFailed:
				sum.Failed++
			case StatusSkipped:
				sum.Skipped++
			}
		}
	}
	return sum
}

// Finish stamps completion and settles the run status: failed if any part
// failed, else passed if any part passed, else skipped.
func (r *RunResult) Finish() {
	r.CompletedAt = time.Now().UTC()

	hasFailed, hasPassed := false, false
	for _, p := range r.Parts {
		switch p.Status {
		case StatusFailed:
			hasFailed = true
		case StatusPassed:
			hasPassed = true
		}
	}
	switch {
	case hasFailed:
		r.Status = StatusFailed
	case hasPassed:
		r.Status = StatusPassed
	default:
		r.Status = StatusSkipped
	}
}

// runResultDoc is the wire shape of the results document.
type runResultDoc struct {
	ScenarioID  string       `json:"scenario_id"`
	Title       string       `json:"title"`
	Status      Status       `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`
	Parts       []PartResult `json:"parts"`
	Summary     Summary      `json:"summary"`
}

// MarshalJSON emits the results document, including the computed summary.
func (r *RunResult) MarshalJSON() ([]byte, error) {
	doc := runResultDoc{
		ScenarioID: r.ScenarioID,
		Title:      r.Title,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		Parts:      r.Parts,
		Summary:    r.Summary(),
	}
	if doc.Parts == nil {
		doc.Parts = []PartResult{}
	}
	if !r.CompletedAt.IsZero() {
		doc.CompletedAt = &r.CompletedAt
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a results document back into a RunResult. The stored
// summary is discarded; it is recomputed from the steps on demand.
func (r *RunResult) UnmarshalJSON(data []byte) error {
	var doc runResultDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.ScenarioID = doc.ScenarioID
	r.Title = doc.Title
	r.Status = doc.Status
	r.StartedAt = doc.StartedAt
	r.Parts = doc.Parts
	if doc.CompletedAt != nil {
		r.CompletedAt = *doc.CompletedAt
	} else {
		r.CompletedAt = time.Time{}
	}
	return nil
}

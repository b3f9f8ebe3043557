package scenario

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPartResultRecordStepReplaces(t *testing.T) {
	p := PartResult{Part: 1, Title: "A", Status: StatusRunning}

	p.RecordStep(StepResult{StepID: "1-1", Status: StatusFailed, DurationMS: 10})
	p.RecordStep(StepResult{StepID: "1-2", Status: StatusPassed, DurationMS: 5})
	if p.Status != StatusFailed {
		t.Errorf("status = %s, want failed to stick", p.Status)
	}

	// Retry of 1-1 replaces in place, preserving order.
	p.RecordStep(StepResult{StepID: "1-1", Status: StatusPassed, DurationMS: 20})
	if len(p.Steps) != 2 {
		t.Fatalf("steps = %d, want 2 (replace, not append)", len(p.Steps))
	}
	if p.Steps[0].StepID != "1-1" || p.Steps[0].DurationMS != 20 {
		t.Errorf("steps[0] = %+v, want replaced 1-1", p.Steps[0])
	}
}

func TestPartResultFinish(t *testing.T) {
	p := PartResult{Part: 1, Status: StatusRunning}
	p.RecordStep(StepResult{StepID: "1-1", Status: StatusSkipped})
	p.Finish()
	if p.Status != StatusSkipped {
		t.Errorf("all-skipped part status = %s, want skipped", p.Status)
	}

	p2 := PartResult{Part: 2, Status: StatusRunning}
	p2.RecordStep(StepResult{StepID: "2-1", Status: StatusPassed})
	p2.Finish()
	if p2.Status != StatusPassed {
		t.Errorf("status = %s, want passed", p2.Status)
	}
}

func TestRunResultSummaryAndStatus(t *testing.T) {
	r := &RunResult{
		ScenarioID: "TC-001",
		Title:      "t",
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
		Parts: []PartResult{
			{Part: 1, Status: StatusPassed, Steps: []StepResult{
				{StepID: "1-1", Status: StatusPassed, DurationMS: 100},
				{StepID: "1-2", Status: StatusSkipped},
			}},
			{Part: 2, Status: StatusFailed, Steps: []StepResult{
				{StepID: "2-1", Status: StatusFailed, DurationMS: 50},
			}},
		},
	}

	sum := r.Summary()
	if sum.TotalSteps != 3 || sum.Passed != 1 || sum.Failed != 1 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.DurationMS != 150 {
		t.Errorf("duration = %d, want 150", sum.DurationMS)
	}

	r.Finish()
	if r.Status != StatusFailed {
		t.Errorf("status = %s, want failed", r.Status)
	}
	if r.CompletedAt.IsZero() {
		t.Error("CompletedAt not stamped")
	}
}

func TestRunResultStatusAllSkipped(t *testing.T) {
	r := &RunResult{Status: StatusRunning, Parts: []PartResult{{Part: 1, Status: StatusSkipped}}}
	r.Finish()
	if r.Status != StatusSkipped {
		t.Errorf("status = %s, want skipped", r.Status)
	}
}

func TestRunResultJSONRoundTrip(t *testing.T) {
	r := &RunResult{
		ScenarioID: "TC-001",
		Title:      "Login",
		Status:     StatusRunning,
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Parts: []PartResult{
			{Part: 1, Title: "A", Status: StatusPassed, Steps: []StepResult{
				{StepID: "1-1", Desc: "open", Status: StatusPassed, DurationMS: 42,
					Assertions: []AssertionResult{{Type: "url", Expected: "/a", Actual: "/a", Passed: true}}},
			}},
		},
	}
	r.Finish()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// The document shape carries a computed summary.
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal into map: %v", err)
	}
	sum, ok := doc["summary"].(map[string]any)
	if !ok {
		t.Fatal("summary missing from document")
	}
	if sum["total_steps"].(float64) != 1 || sum["passed"].(float64) != 1 {
		t.Errorf("summary = %v", sum)
	}
	if doc["scenario_id"] != "TC-001" {
		t.Errorf("scenario_id = %v", doc["scenario_id"])
	}

	var back RunResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ScenarioID != r.ScenarioID || back.Status != r.Status {
		t.Errorf("round trip = %+v", back)
	}
	if len(back.Parts) != 1 || len(back.Parts[0].Steps) != 1 {
		t.Fatalf("round trip parts = %+v", back.Parts)
	}
	if back.Parts[0].Steps[0].Assertions[0].Type != "url" {
		t.Errorf("assertions lost: %+v", back.Parts[0].Steps[0])
	}
	if !back.CompletedAt.Equal(r.CompletedAt) {
		t.Errorf("completed_at = %v, want %v", back.CompletedAt, r.CompletedAt)
	}
}

func TestRunResultMarshalUnfinished(t *testing.T) {
	r := NewRunResult(&Scenario{Meta: Meta{ID: "X", Title: "Y"}})
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["completed_at"] != nil {
		t.Errorf("completed_at = %v, want null before finish", doc["completed_at"])
	}
	if _, ok := doc["parts"].([]any); !ok {
		t.Errorf("parts = %v, want empty list not null", doc["parts"])
	}
}

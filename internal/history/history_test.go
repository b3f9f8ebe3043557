package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/stagewright/internal/scenario"
)

func sampleResult(id string, failed bool) *scenario.RunResult {
	status := scenario.StatusPassed
	stepStatus := scenario.StatusPassed
	if failed {
		status = scenario.StatusFailed
		stepStatus = scenario.StatusFailed
	}
	return &scenario.RunResult{
		ScenarioID:  id,
		Title:       "Login flow",
		Status:      status,
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC),
		Parts: []scenario.PartResult{
			{Part: 1, Title: "A", Status: status, Steps: []scenario.StepResult{
				{StepID: "1-1", Status: stepStatus, DurationMS: 120},
			}},
		},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.Record(ctx, sampleResult("TC-1", false), ModeBatch, "/tmp/out")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == 0 {
		t.Fatal("id = 0")
	}

	run, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.ScenarioID != "TC-1" || run.Status != "passed" || run.Mode != ModeBatch {
		t.Errorf("run = %+v", run)
	}
	if run.TotalSteps != 1 || run.Passed != 1 || run.DurationMS != 120 {
		t.Errorf("counts = %+v", run)
	}
	if !run.StartedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("started_at = %v", run.StartedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListFilterAndOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Record(ctx, sampleResult("TC-1", false), ModeBatch, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, sampleResult("TC-2", true), ModeInteractive, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, sampleResult("TC-1", true), ModeStep, "c"); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx, 0, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("runs = %d", len(all))
	}
	// Newest first.
	if all[0].OutputDir != "c" || all[2].OutputDir != "a" {
		t.Errorf("order = %s %s %s", all[0].OutputDir, all[1].OutputDir, all[2].OutputDir)
	}

	tc1, err := s.List(ctx, 10, "TC-1")
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(tc1) != 2 {
		t.Errorf("filtered runs = %d, want 2", len(tc1))
	}

	limited, err := s.List(ctx, 1, "")
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited runs = %d, want 1", len(limited))
	}
}

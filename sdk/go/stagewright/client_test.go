package stagewright

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/stagewright/internal/history"
	"github.com/ppiankov/stagewright/internal/page/pagetest"
)

const drillDoc = `
version: 1
meta:
  id: TC-30
  title: Embedding drill
accounts:
  admin:
    email: admin@example.com
    password: secret
steps:
  - part: 1
    title: Guest
    items:
      - id: "1-1"
        desc: Open the landing page
        action: {goto: "/"}
        expect:
          - url_contains: example.com
      - id: "1-2"
        desc: Open the pricing page
        action: {goto: "/pricing"}
  - part: 2
    title: Admin
    account: admin
    items:
      - id: "2-1"
        desc: Open the dashboard
        action: {goto: "/dashboard"}
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = "https://app.example.com"
	cfg.Output.Dir = t.TempDir()
	cfg.History.Disabled = true
	return cfg
}

func newTestClient(t *testing.T) (*Client, *pagetest.Provider) {
	t.Helper()
	provider := &pagetest.Provider{}
	sw, err := New(WithConfig(testConfig(t)), WithProvider(provider))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sw, provider
}

func writeDrill(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drill.yaml")
	if err := os.WriteFile(path, []byte(drillDoc), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestRun(t *testing.T) {
	sw, provider := newTestClient(t)
	ctx := context.Background()
	defer sw.Close(ctx)

	outcome, err := sw.Run(ctx, writeDrill(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.ScenarioID != "TC-30" || outcome.Status != "passed" {
		t.Errorf("outcome = %s/%s", outcome.ScenarioID, outcome.Status)
	}
	if outcome.TotalSteps != 3 || outcome.Passed != 3 {
		t.Errorf("counts = %d total, %d passed", outcome.TotalSteps, outcome.Passed)
	}
	if _, err := os.Stat(outcome.ResultsPath); err != nil {
		t.Errorf("results not saved: %v", err)
	}

	if len(provider.Pages) != 2 {
		t.Fatalf("pages = %d, want 2 (account switch opens a fresh one)", len(provider.Pages))
	}
	if provider.Pages[1].Authenticated != "admin" {
		t.Errorf("second page authenticated = %q", provider.Pages[1].Authenticated)
	}
	if !provider.Pages[1].Closed {
		t.Error("page not closed after the run")
	}
}

func TestRunSourceWithOptions(t *testing.T) {
	sw, provider := newTestClient(t)
	ctx := context.Background()
	defer sw.Close(ctx)

	dir := t.TempDir()
	outcome, err := sw.RunSource(ctx, []byte(drillDoc), RunWithPart(2), RunWithOutputDir(dir))
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}

	if outcome.TotalSteps != 1 || outcome.Passed != 1 {
		t.Errorf("counts = %d total, %d passed, want the admin part only", outcome.TotalSteps, outcome.Passed)
	}
	if outcome.OutputDir != dir {
		t.Errorf("output dir = %q, want the pinned %q", outcome.OutputDir, dir)
	}
	last := provider.Pages[len(provider.Pages)-1]
	if last.Authenticated != "admin" {
		t.Errorf("authenticated = %q", last.Authenticated)
	}
}

func TestRunStep(t *testing.T) {
	sw, provider := newTestClient(t)
	ctx := context.Background()
	defer sw.Close(ctx)

	outcome, err := sw.RunStep(ctx, writeDrill(t), "2-1")
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if outcome.Result.StepID != "2-1" || outcome.Result.Status != "passed" {
		t.Errorf("result = %s/%s", outcome.Result.StepID, outcome.Result.Status)
	}
	if provider.Pages[0].Authenticated != "admin" {
		t.Errorf("authenticated = %q, want the step's part account", provider.Pages[0].Authenticated)
	}
}

func TestInteractiveSession(t *testing.T) {
	sw, provider := newTestClient(t)
	ctx := context.Background()
	defer sw.Close(ctx)

	created, err := sw.StartSource(ctx, []byte(drillDoc))
	if err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	if created.Status != StatusInitialized {
		t.Errorf("status = %q", created.Status)
	}

	if infos := sw.Sessions(); len(infos) != 1 || infos[0].SessionID != created.SessionID {
		t.Errorf("sessions = %+v", infos)
	}

	var last *StepExecution
	for i := 0; i < 3; i++ {
		last, err = sw.Step(ctx, created.SessionID)
		if err != nil {
			t.Fatalf("Step %d: %v", i+1, err)
		}
		if last.Result.Status != "passed" {
			t.Errorf("step %s = %s", last.StepID, last.Result.Status)
		}
	}
	if !last.IsCompleted {
		t.Error("session not completed after the final step")
	}

	info, err := sw.Info(created.SessionID)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Status != StatusCompleted || info.Passed != 3 {
		t.Errorf("info = %s, %d passed", info.Status, info.Passed)
	}

	ended, err := sw.End(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Status != "passed" || ended.Passed != 3 {
		t.Errorf("ended = %s, %d passed", ended.Status, ended.Passed)
	}
	if provider.Pages[1].Authenticated != "admin" {
		t.Errorf("second page authenticated = %q", provider.Pages[1].Authenticated)
	}

	_, err = sw.Step(ctx, created.SessionID)
	var notFound *SessionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Step after End = %v, want SessionNotFoundError", err)
	}
}

func TestStepRetrySkipConflict(t *testing.T) {
	sw, _ := newTestClient(t)
	ctx := context.Background()
	defer sw.Close(ctx)

	created, err := sw.StartSource(ctx, []byte(drillDoc))
	if err != nil {
		t.Fatalf("StartSource: %v", err)
	}

	_, err = sw.Step(ctx, created.SessionID, StepWithRetry(), StepWithSkip())
	if !errors.Is(err, ErrRetrySkipConflict) {
		t.Fatalf("err = %v, want ErrRetrySkipConflict", err)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Disabled = false
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	sw, err := New(WithConfig(cfg), WithProvider(&pagetest.Provider{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := sw.RunSource(ctx, []byte(drillDoc)); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	sw.Close(ctx)

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("reopen history: %v", err)
	}
	defer store.Close()
	runs, err := store.List(ctx, 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].ScenarioID != "TC-30" || runs[0].Mode != history.ModeBatch {
		t.Errorf("runs = %+v", runs)
	}
}

func TestNewCopiesConfig(t *testing.T) {
	cfg := testConfig(t)
	sw, err := New(WithConfig(cfg), WithProvider(&pagetest.Provider{}), WithBaseURL("https://other.example.com"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sw.Close(context.Background())

	if cfg.BaseURL != "https://app.example.com" {
		t.Errorf("caller config mutated: BaseURL = %q", cfg.BaseURL)
	}
	if got := sw.Config().BaseURL; got != "https://other.example.com" {
		t.Errorf("client config = %q, want the override", got)
	}
}

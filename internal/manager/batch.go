package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/action"
	"github.com/ppiankov/stagewright/internal/expect"
	"github.com/ppiankov/stagewright/internal/history"
	"github.com/ppiankov/stagewright/internal/report"
	"github.com/ppiankov/stagewright/internal/scenario"
	"github.com/ppiankov/stagewright/internal/session"
)

// RunOptions configure a batch run. Source takes precedence over Path.
// Part restricts execution to that 1-based part; zero runs everything.
type RunOptions struct {
	Path        string
	Source      []byte
	OutputDir   string
	Part        int
	StopOnError bool

	// Progress hooks, optional. They run on the calling goroutine.
	OnPartStart func(part *scenario.Part)
	OnStepDone  func(step *scenario.Step, result scenario.StepResult)
}

// RunOutcome summarizes a finished batch run. Counts cover recorded
// steps, so halted and part-filtered runs report what actually ran.
type RunOutcome struct {
	ScenarioID  string `json:"scenario_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	TotalSteps  int    `json:"total_steps"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	DurationMS  int64  `json:"duration_ms"`
	OutputDir   string `json:"output_dir"`
	ResultsPath string `json:"results_path"`
	VideoPath   string `json:"video_path,omitempty"`

	Result *scenario.RunResult `json:"-"`
}

// Run executes a whole scenario in one call: every part and step in
// order, results saved, history recorded, webhook notified. The error
// return is reserved for parse and infrastructure faults; failed steps
// land in the outcome with status failed.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (*RunOutcome, error) {
	scn, err := m.load(opts.Source, opts.Path)
	if err != nil {
		return nil, err
	}
	if opts.Part != 0 && (opts.Part < 1 || opts.Part > len(scn.Parts)) {
		return nil, fmt.Errorf("%w: part %d of %d", ErrStartPartOutOfRange, opts.Part, len(scn.Parts))
	}

	runner, outputDir, err := m.newRunner(scn, opts.OutputDir)
	if err != nil {
		return nil, err
	}
	runner.OnPartStart = opts.OnPartStart
	runner.OnStepDone = opts.OnStepDone

	if err := runner.RunAll(ctx, opts.StopOnError, opts.Part); err != nil {
		return nil, err
	}

	sess := runner.Session()
	result := sess.Result()
	sum := result.Summary()
	outcome := &RunOutcome{
		ScenarioID:  scn.Meta.ID,
		Title:       scn.Meta.Title,
		Status:      string(result.Status),
		TotalSteps:  sum.TotalSteps,
		Passed:      sum.Passed,
		Failed:      sum.Failed,
		Skipped:     sum.Skipped,
		DurationMS:  sum.DurationMS,
		OutputDir:   outputDir,
		ResultsPath: filepath.Join(outputDir, report.FileName),
		VideoPath:   sess.VideoPath(),
		Result:      result,
	}

	if m.cfg.History != nil {
		if _, err := m.cfg.History.Record(ctx, result, history.ModeBatch, outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "manager: record history: %v\n", err)
		}
	}
	if m.cfg.Notifier != nil {
		if err := m.cfg.Notifier.Send(ctx, result, outcome.ResultsPath); err != nil {
			fmt.Fprintf(os.Stderr, "manager: notify: %v\n", err)
		}
	}
	return outcome, nil
}

// SingleOptions configure a one-step execution.
type SingleOptions struct {
	Path      string
	Source    []byte
	StepID    string
	OutputDir string
}

// StepOutcome reports a single-step execution.
type StepOutcome struct {
	Result      scenario.StepResult `json:"result"`
	OutputDir   string              `json:"output_dir"`
	ResultsPath string              `json:"results_path"`
}

// RunOne executes exactly one step by id, with its part's account
// switch, then saves results and records history.
func (m *Manager) RunOne(ctx context.Context, opts SingleOptions) (*StepOutcome, error) {
	scn, err := m.load(opts.Source, opts.Path)
	if err != nil {
		return nil, err
	}

	runner, outputDir, err := m.newRunner(scn, opts.OutputDir)
	if err != nil {
		return nil, err
	}

	res, err := runner.RunSingle(ctx, opts.StepID)
	if err != nil {
		return nil, err
	}

	if m.cfg.History != nil {
		if _, err := m.cfg.History.Record(ctx, runner.Session().Result(), history.ModeStep, outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "manager: record history: %v\n", err)
		}
	}
	return &StepOutcome{
		Result:      res,
		OutputDir:   outputDir,
		ResultsPath: filepath.Join(outputDir, report.FileName),
	}, nil
}

func (m *Manager) load(source []byte, path string) (*scenario.Scenario, error) {
	if len(source) > 0 {
		return scenario.Parse(source)
	}
	return scenario.ParseFile(path)
}

// newRunner builds a session and runner wired to the manager's
// collaborators, resolving the output directory when none is given.
func (m *Manager) newRunner(scn *scenario.Scenario, outputDir string) (*session.Runner, string, error) {
	var err error
	if outputDir == "" {
		outputDir, err = session.CreateOutputDir(m.cfg.OutputRoot, scn.Meta.ID)
		if err != nil {
			return nil, "", err
		}
	}

	table := accounts.NewTable(scn.Accounts)
	m.mu.Lock()
	external := m.cfg.Accounts
	m.mu.Unlock()
	if external != nil {
		table.Merge(external)
	}

	sess := session.New(scn, m.cfg.Provider, table, outputDir)
	runner := session.NewRunner(sess,
		&action.Executor{Accounts: table, BaseURL: m.cfg.BaseURL, WaitTimeout: m.cfg.WaitTimeout},
		&expect.Executor{WaitTimeout: m.cfg.AssertTimeout},
	)
	return runner, outputDir, nil
}

package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/stagewright/internal/action"
	"github.com/ppiankov/stagewright/internal/expect"
	"github.com/ppiankov/stagewright/internal/scenario"
)

// Runner executes scenario steps against a session. Callbacks are
// optional progress hooks for interactive output; they run on the
// calling goroutine.
type Runner struct {
	session *Session
	actions *action.Executor
	asserts *expect.Executor

	OnPartStart func(part *scenario.Part)
	OnStepStart func(part *scenario.Part, step *scenario.Step)
	OnStepDone  func(step *scenario.Step, result scenario.StepResult)
}

func NewRunner(s *Session, actions *action.Executor, asserts *expect.Executor) *Runner {
	return &Runner{session: s, actions: actions, asserts: asserts}
}

// Session returns the session the runner drives.
func (r *Runner) Session() *Session { return r.session }

// RunStep executes one step: the action first, then, only when the
// action succeeded, every assertion in order (all of them, regardless
// of earlier failures), then the screenshot when the step captures
// one. The outcome is recorded on the session, replacing any earlier
// attempt of the same step. The error return is reserved for session
// faults (no page, recording rejected); ordinary step failures are
// reported in the result.
func (r *Runner) RunStep(ctx context.Context, part *scenario.Part, step *scenario.Step) (scenario.StepResult, error) {
	pg, err := r.session.Page(ctx)
	if err != nil {
		return scenario.StepResult{StepID: step.ID, Desc: step.Desc}, err
	}
	if r.OnStepStart != nil {
		r.OnStepStart(part, step)
	}

	start := time.Now()
	res := scenario.StepResult{StepID: step.ID, Desc: step.Desc, Status: scenario.StatusRunning}

	if step.Action != nil {
		if aerr := r.actions.Execute(ctx, pg, step.Action); aerr != nil {
			res.Status = scenario.StatusFailed
			res.Error = aerr.Error()
		}
	}

	if res.Status != scenario.StatusFailed {
		var failures []string
		for _, exp := range step.Expect {
			out, verr := r.asserts.Verify(ctx, pg, exp)
			if verr != nil {
				// The page is unusable; remaining assertions would
				// only repeat the same fault.
				res.Status = scenario.StatusFailed
				res.Error = fmt.Sprintf("assertion %s: %v", exp.Type(), verr)
				break
			}
			res.Assertions = append(res.Assertions, out)
			if !out.Passed {
				failures = append(failures, out.Message)
			}
		}
		if res.Status != scenario.StatusFailed && len(failures) > 0 {
			res.Status = scenario.StatusFailed
			res.Error = "assertions failed: " + strings.Join(failures, "; ")
		}
	}

	if step.Capture {
		path, cerr := r.session.CaptureScreenshot(ctx, part, step)
		if cerr != nil {
			res.Status = scenario.StatusFailed
			if res.Error == "" {
				res.Error = cerr.Error()
			}
		} else {
			res.Screenshot = path
		}
	}

	if res.Status == scenario.StatusRunning {
		res.Status = scenario.StatusPassed
	}
	res.DurationMS = time.Since(start).Milliseconds()

	if rerr := r.session.RecordResult(res); rerr != nil {
		return res, rerr
	}
	if r.OnStepDone != nil {
		r.OnStepDone(step, res)
	}
	return res, nil
}

// RunAll executes every part and step in order, switching accounts at
// part boundaries. With stopOnError the run halts at the first failed
// step, leaving the remaining steps unrecorded. partFilter restricts
// execution to that part index (0 runs everything); the filtered
// part's account switch still happens. The session is finished and its
// results saved before returning.
func (r *Runner) RunAll(ctx context.Context, stopOnError bool, partFilter int) error {
	defer r.session.Close(ctx)

	scn := r.session.Scenario()
	halted := false
	for i := range scn.Parts {
		part := &scn.Parts[i]
		if partFilter > 0 && part.Index != partFilter {
			continue
		}
		if r.OnPartStart != nil {
			r.OnPartStart(part)
		}
		r.session.StartPart(part)

		if serr := r.session.SwitchAccount(ctx, part.Account); serr != nil {
			if stopOnError {
				r.session.FinishPart()
				r.session.Finish()
				if _, err := r.session.SaveResults(); err != nil {
					return err
				}
				return fmt.Errorf("switch to account %s: %w", part.Account, serr)
			}
			// Keep going unauthenticated; the steps will report their
			// own failures.
			fmt.Fprintf(os.Stderr, "session: switch to account %s: %v\n", part.Account, serr)
		}

		for j := range part.Steps {
			res, err := r.RunStep(ctx, part, &part.Steps[j])
			if err != nil {
				r.session.FinishPart()
				r.session.Finish()
				return err
			}
			if stopOnError && res.Status == scenario.StatusFailed {
				halted = true
				break
			}
		}
		r.session.FinishPart()
		if halted {
			break
		}
	}

	r.session.Finish()
	if _, err := r.session.SaveResults(); err != nil {
		return err
	}
	return nil
}

// RunSingle executes exactly one step by id, including its part's
// account switch, then finishes the session and saves results.
func (r *Runner) RunSingle(ctx context.Context, stepID string) (scenario.StepResult, error) {
	defer r.session.Close(ctx)

	step, part := r.session.Scenario().Step(stepID)
	if step == nil {
		return scenario.StepResult{}, fmt.Errorf("step not found: %s", stepID)
	}
	if err := r.session.SwitchAccount(ctx, part.Account); err != nil {
		return scenario.StepResult{}, err
	}
	r.session.StartPart(part)
	res, err := r.RunStep(ctx, part, step)
	r.session.FinishPart()
	r.session.Finish()
	if err != nil {
		return res, err
	}
	if _, err := r.session.SaveResults(); err != nil {
		return res, err
	}
	return res, nil
}

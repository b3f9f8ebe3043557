// Package session holds the mutable state of one scenario run: the
// page handle, the active account, the output directory, and the
// accumulated results. A Session is driven either in one shot by the
// Runner or step by step by the manager; it is not safe for concurrent
// use.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/page"
	"github.com/ppiankov/stagewright/internal/report"
	"github.com/ppiankov/stagewright/internal/scenario"
)

// SessionFinishedError reports an operation on a session whose run has
// already been finished.
type SessionFinishedError struct {
	ID string
}

func (e *SessionFinishedError) Error() string {
	if e.ID == "" {
		return "session already finished"
	}
	return fmt.Sprintf("session %s already finished", e.ID)
}

// Session tracks one run of a scenario.
type Session struct {
	scn       *scenario.Scenario
	provider  page.Provider
	accounts  *accounts.Table
	outputDir string

	pg        page.Page
	current   string
	result    *scenario.RunResult
	finished  bool
	videoPath string
}

// New creates a session for one run. The accounts table should already
// merge the scenario's embedded accounts with any external file.
func New(scn *scenario.Scenario, provider page.Provider, table *accounts.Table, outputDir string) *Session {
	return &Session{
		scn:       scn,
		provider:  provider,
		accounts:  table,
		outputDir: outputDir,
		result:    scenario.NewRunResult(scn),
	}
}

// Scenario returns the scenario under execution.
func (s *Session) Scenario() *scenario.Scenario { return s.scn }

// Result returns the accumulated run result.
func (s *Session) Result() *scenario.RunResult { return s.result }

// OutputDir returns the run's output directory.
func (s *Session) OutputDir() string { return s.outputDir }

// CurrentAccount returns the key of the account the page is
// authenticated as, or empty.
func (s *Session) CurrentAccount() string { return s.current }

// Finished reports whether Finish has been called.
func (s *Session) Finished() bool { return s.finished }

// Page returns the session's page handle, acquiring one on first use.
func (s *Session) Page(ctx context.Context) (page.Page, error) {
	if s.pg != nil {
		return s.pg, nil
	}
	pg, err := s.provider.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	s.pg = pg
	return s.pg, nil
}

// SwitchAccount makes the session's page authenticated as key, or
// unauthenticated when key is empty. Equal key is a no-op; otherwise
// the current page is torn down and a fresh one is acquired, so state
// from the previous account never leaks. Never called mid-step.
func (s *Session) SwitchAccount(ctx context.Context, key string) error {
	if key == s.current {
		return nil
	}

	var acct accounts.Account
	if key != "" {
		var err error
		acct, err = s.accounts.Resolve(key)
		if err != nil {
			return err
		}
	}

	if s.pg != nil {
		_ = s.pg.Close(ctx)
		s.pg = nil
	}
	s.current = ""

	pg, err := s.provider.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}
	if key != "" {
		if err := pg.AuthenticateAs(ctx, acct); err != nil {
			_ = pg.Close(ctx)
			return fmt.Errorf("login as %s: %w", key, err)
		}
	}
	s.pg = pg
	s.current = key
	return nil
}

// StartPart opens result tracking for a part. Calling it again for the
// part already open is a no-op.
func (s *Session) StartPart(part *scenario.Part) {
	if n := len(s.result.Parts); n > 0 && s.result.Parts[n-1].Part == part.Index {
		return
	}
	s.result.Parts = append(s.result.Parts, scenario.PartResult{
		Part:   part.Index,
		Title:  part.Title,
		Status: scenario.StatusRunning,
	})
}

// RecordResult records a step outcome into the open part, replacing
// any earlier attempt of the same step id.
func (s *Session) RecordResult(res scenario.StepResult) error {
	if s.finished {
		return &SessionFinishedError{}
	}
	n := len(s.result.Parts)
	if n == 0 {
		return fmt.Errorf("no part started")
	}
	s.result.Parts[n-1].RecordStep(res)
	return nil
}

// FinishPart closes the open part, settling its status.
func (s *Session) FinishPart() {
	if n := len(s.result.Parts); n > 0 {
		s.result.Parts[n-1].Finish()
	}
}

// Finish settles the run's overall status and stamps its completion
// time. Idempotent; the session accepts no results afterwards.
func (s *Session) Finish() {
	if s.finished {
		return
	}
	s.result.Finish()
	s.finished = true
}

// Close releases the page handle and returns the path of its video
// recording, when the page records one. The recorded results stay
// available.
func (s *Session) Close(ctx context.Context) string {
	if s.pg == nil {
		return ""
	}
	recorder, records := s.pg.(page.VideoRecorder)
	_ = s.pg.Close(ctx)
	s.pg = nil
	s.current = ""
	if !records {
		return ""
	}
	path, err := recorder.VideoPath(ctx)
	if err != nil {
		return ""
	}
	s.videoPath = path
	return path
}

// VideoPath returns the recording path captured when the page closed,
// or empty.
func (s *Session) VideoPath() string { return s.videoPath }

// SaveResults writes the results document into the output directory
// and returns its path.
func (s *Session) SaveResults() (string, error) {
	return report.Save(s.result, s.outputDir)
}

// CaptureScreenshot shoots the current page and stores the image at
// the step's deterministic path.
func (s *Session) CaptureScreenshot(ctx context.Context, part *scenario.Part, step *scenario.Step) (string, error) {
	pg, err := s.Page(ctx)
	if err != nil {
		return "", err
	}
	data, err := pg.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	path := s.ScreenshotPath(part, step)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// ScreenshotPath builds the collision-free screenshot location for a
// step: part-NN_<title>/step-<id>_<desc>.png under the output
// directory, with titles and descriptions sanitized for the
// filesystem. A custom capture name replaces the description.
func (s *Session) ScreenshotPath(part *scenario.Part, step *scenario.Step) string {
	dir := fmt.Sprintf("part-%02d_%s", part.Index, scenario.SanitizeFilename(part.Title))
	name := step.Desc
	if step.CaptureName != "" {
		name = step.CaptureName
	}
	file := fmt.Sprintf("step-%s_%s.png", step.ID, scenario.SanitizeFilename(name))
	return filepath.Join(s.outputDir, dir, file)
}

// CreateOutputDir makes a dated per-run directory under base:
// <scenarioID>_<YYYY-MM-DD>, with an _HHMMSS suffix when that name is
// already taken.
func CreateOutputDir(base, scenarioID string) (string, error) {
	now := time.Now()
	dir := filepath.Join(base, fmt.Sprintf("%s_%s", scenarioID, now.Format("2006-01-02")))
	if _, err := os.Stat(dir); err == nil {
		dir = filepath.Join(base, fmt.Sprintf("%s_%s_%s", scenarioID, now.Format("2006-01-02"), now.Format("150405")))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

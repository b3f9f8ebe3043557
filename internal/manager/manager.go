// Package manager owns interactive step-by-step sessions addressed by
// opaque ids. Each session holds a live page handle and a cursor over
// its scenario; callers advance the cursor one step at a time and may
// retry or skip before moving on.
package manager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/history"
	"github.com/ppiankov/stagewright/internal/journal"
	"github.com/ppiankov/stagewright/internal/notify"
	"github.com/ppiankov/stagewright/internal/page"
	"github.com/ppiankov/stagewright/internal/scenario"
	"github.com/ppiankov/stagewright/internal/session"
)

// Status of a managed session. Sessions move initialized → running ⇄
// paused → completed; any state may drop to error on a session fault,
// after which only End is accepted.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// SessionNotFoundError reports an operation on an unknown or already
// ended session id.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// ErrRetrySkipConflict rejects an advance requesting retry and skip in
// the same call.
var ErrRetrySkipConflict = errors.New("retry and skip are mutually exclusive")

// ErrStartPartOutOfRange rejects create options pointing outside the
// scenario's parts.
var ErrStartPartOutOfRange = errors.New("start part out of range")

// Config carries the manager's collaborators. Journal, History and
// Notifier are optional; nil disables them. Accounts holds external
// credentials that override a scenario's embedded accounts section.
type Config struct {
	Provider      page.Provider
	Accounts      *accounts.Table
	BaseURL       string
	OutputRoot    string
	WaitTimeout   time.Duration
	AssertTimeout time.Duration
	Journal       *journal.Journal
	History       *history.Store
	Notifier      *notify.Notifier
}

// Manager is the registry of live sessions. Sessions have no timeout:
// they stay registered until explicitly ended or the process exits.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*entry
}

// entry pairs a runner with its cursor. partIdx/stepIdx are 0-based
// and point at the next step to execute.
type entry struct {
	mu      sync.Mutex
	id      string
	runner  *session.Runner
	partIdx int
	stepIdx int
	status  Status
	created time.Time
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg, entries: make(map[string]*entry)}
}

// SetAccounts swaps the external accounts table used by sessions
// created from now on. Live sessions keep the table they started with.
func (m *Manager) SetAccounts(table *accounts.Table) {
	m.mu.Lock()
	m.cfg.Accounts = table
	m.mu.Unlock()
}

// CreateOptions configure a new session. Source takes precedence over
// Path when both are set. StartPart is 1-based; zero starts at the
// first part. OutputDir overrides the derived dated directory.
type CreateOptions struct {
	Path      string
	Source    []byte
	StartPart int
	OutputDir string
}

// Created summarizes a freshly created session.
type Created struct {
	SessionID  string `json:"session_id"`
	ScenarioID string `json:"scenario_id"`
	Title      string `json:"title"`
	TotalParts int    `json:"total_parts"`
	TotalSteps int    `json:"total_steps"`
	Status     Status `json:"status"`
}

// Create parses the scenario, opens a fresh page and registers a
// session resting before its first step.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Created, error) {
	scn, err := m.load(opts.Source, opts.Path)
	if err != nil {
		return nil, err
	}

	startPart := opts.StartPart
	if startPart == 0 {
		startPart = 1
	}
	if startPart < 1 || startPart > len(scn.Parts) {
		return nil, fmt.Errorf("%w: part %d of %d", ErrStartPartOutOfRange, startPart, len(scn.Parts))
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	runner, _, err := m.newRunner(scn, opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if _, err := runner.Session().Page(ctx); err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	e := &entry{
		id:      id,
		runner:  runner,
		partIdx: startPart - 1,
		status:  StatusInitialized,
		created: time.Now().UTC(),
	}

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()

	m.logEvent(journal.Entry{Event: journal.EventSessionStarted, SessionID: id, ScenarioID: scn.Meta.ID})

	return &Created{
		SessionID:  id,
		ScenarioID: scn.Meta.ID,
		Title:      scn.Meta.Title,
		TotalParts: len(scn.Parts),
		TotalSteps: scn.TotalSteps(),
		Status:     e.status,
	}, nil
}

// AdvanceOpts modify one advance call. Retry re-attempts the cursor
// step without moving the cursor; Skip records a skipped result
// without touching the executors.
type AdvanceOpts struct {
	Retry bool `json:"retry,omitempty"`
	Skip  bool `json:"skip,omitempty"`
}

// StepExecution reports one advance: the step just handled, its
// result, and where the cursor now rests. NextPart and NextStep are
// empty once the scenario is completed.
type StepExecution struct {
	SessionID       string              `json:"session_id"`
	StepID          string              `json:"step_id"`
	StepDesc        string              `json:"step_desc"`
	Part            int                 `json:"part"`
	PartTitle       string              `json:"part_title"`
	Result          scenario.StepResult `json:"result"`
	IsCompleted     bool                `json:"is_completed"`
	IsPartChange    bool                `json:"is_part_change"`
	IsAccountChange bool                `json:"is_account_change"`
	NextPart        int                 `json:"next_part,omitempty"`
	NextStep        string              `json:"next_step,omitempty"`
}

// Advance executes the step at the session's cursor. The account
// switch for the step's part happens here, immediately before the
// first step that needs it; a switch fault moves the session to error
// and is returned as-is.
func (m *Manager) Advance(ctx context.Context, id string, opts AdvanceOpts) (*StepExecution, error) {
	if opts.Retry && opts.Skip {
		return nil, ErrRetrySkipConflict
	}

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case StatusCompleted:
		return nil, &session.SessionFinishedError{ID: id}
	case StatusError:
		return nil, fmt.Errorf("session %s is in error state", id)
	}

	sess := e.runner.Session()
	scn := sess.Scenario()
	if e.partIdx >= len(scn.Parts) {
		return nil, &session.SessionFinishedError{ID: id}
	}
	part := &scn.Parts[e.partIdx]
	step := &part.Steps[e.stepIdx]

	e.status = StatusRunning
	if e.stepIdx == 0 {
		sess.StartPart(part)
	}

	if part.Account != sess.CurrentAccount() {
		if err := sess.SwitchAccount(ctx, part.Account); err != nil {
			e.status = StatusError
			m.logEvent(journal.Entry{Event: journal.EventSessionError, SessionID: id, ScenarioID: scn.Meta.ID, Detail: err.Error()})
			return nil, err
		}
	}

	var result scenario.StepResult
	if opts.Skip {
		result = scenario.StepResult{StepID: step.ID, Desc: step.Desc, Status: scenario.StatusSkipped}
		if err := sess.RecordResult(result); err != nil {
			e.status = StatusError
			m.logEvent(journal.Entry{Event: journal.EventSessionError, SessionID: id, ScenarioID: scn.Meta.ID, Detail: err.Error()})
			return nil, err
		}
		m.logEvent(journal.Entry{Event: journal.EventStepSkipped, SessionID: id, ScenarioID: scn.Meta.ID, StepID: step.ID, Status: string(result.Status)})
	} else {
		result, err = e.runner.RunStep(ctx, part, step)
		if err != nil {
			e.status = StatusError
			m.logEvent(journal.Entry{Event: journal.EventSessionError, SessionID: id, ScenarioID: scn.Meta.ID, Detail: err.Error()})
			return nil, err
		}
		m.logEvent(journal.Entry{Event: journal.EventStepExecuted, SessionID: id, ScenarioID: scn.Meta.ID, StepID: step.ID, Status: string(result.Status)})
	}

	exec := &StepExecution{
		SessionID: id,
		StepID:    step.ID,
		StepDesc:  step.Desc,
		Part:      part.Index,
		PartTitle: part.Title,
		Result:    result,
	}

	if opts.Retry {
		exec.NextPart = part.Index
		exec.NextStep = step.ID
		e.status = StatusPaused
		return exec, nil
	}

	e.stepIdx++
	if e.stepIdx < len(part.Steps) {
		exec.NextPart = part.Index
		exec.NextStep = part.Steps[e.stepIdx].ID
		e.status = StatusPaused
		return exec, nil
	}

	sess.FinishPart()
	e.stepIdx = 0
	e.partIdx++
	exec.IsPartChange = true

	if e.partIdx >= len(scn.Parts) {
		exec.IsCompleted = true
		e.status = StatusCompleted
		sess.Finish()
		m.logEvent(journal.Entry{Event: journal.EventSessionCompleted, SessionID: id, ScenarioID: scn.Meta.ID})
		return exec, nil
	}

	next := &scn.Parts[e.partIdx]
	exec.NextPart = next.Index
	if next.Account != part.Account {
		exec.IsAccountChange = true
	}
	if len(next.Steps) > 0 {
		exec.NextStep = next.Steps[0].ID
	}
	e.status = StatusPaused
	return exec, nil
}

// Ended is the final accounting of an ended session. Status is failed
// when any step failed, passed when at least one passed, else empty.
type Ended struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	TotalSteps  int    `json:"total_steps"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	DurationMS  int64  `json:"duration_ms"`
	ResultsPath string `json:"results_path"`
	VideoPath   string `json:"video_path,omitempty"`
}

// End removes the session from the registry, finishes it, persists its
// results and releases the page handle. Removal comes first, so a
// second End on the same id fails with SessionNotFoundError.
func (m *Manager) End(ctx context.Context, id string) (*Ended, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, &SessionNotFoundError{ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.runner.Session()
	sess.FinishPart()
	sess.Finish()

	resultsPath, err := sess.SaveResults()
	if err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}

	videoPath := sess.Close(ctx)

	result := sess.Result()
	sum := result.Summary()

	status := "empty"
	switch {
	case sum.Failed > 0:
		status = "failed"
	case sum.Passed > 0:
		status = "passed"
	}

	if m.cfg.History != nil {
		if _, err := m.cfg.History.Record(ctx, result, history.ModeInteractive, sess.OutputDir()); err != nil {
			fmt.Fprintf(os.Stderr, "manager: record history: %v\n", err)
		}
	}
	if m.cfg.Notifier != nil {
		if err := m.cfg.Notifier.Send(ctx, result, resultsPath); err != nil {
			fmt.Fprintf(os.Stderr, "manager: notify: %v\n", err)
		}
	}
	m.logEvent(journal.Entry{Event: journal.EventSessionEnded, SessionID: id, ScenarioID: result.ScenarioID, Status: status})

	return &Ended{
		SessionID:   id,
		Status:      status,
		TotalSteps:  sess.Scenario().TotalSteps(),
		Passed:      sum.Passed,
		Failed:      sum.Failed,
		Skipped:     sum.Skipped,
		DurationMS:  sum.DurationMS,
		ResultsPath: resultsPath,
		VideoPath:   videoPath,
	}, nil
}

// Info is a read-only snapshot of a managed session. Part is the
// 1-based part the cursor rests in; Step the 0-based index of the next
// step within it.
type Info struct {
	SessionID  string    `json:"session_id"`
	ScenarioID string    `json:"scenario_id"`
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	Part       int       `json:"part"`
	Step       int       `json:"step"`
	TotalParts int       `json:"total_parts"`
	TotalSteps int       `json:"total_steps"`
	Account    string    `json:"account,omitempty"`
	Executed   int       `json:"executed"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	CreatedAt  time.Time `json:"created_at"`
}

// List snapshots every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		infos = append(infos, e.snapshot())
		e.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].SessionID < infos[j].SessionID
	})
	return infos
}

// Info snapshots one session.
func (m *Manager) Info(id string) (*Info, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	info := e.snapshot()
	e.mu.Unlock()
	return &info, nil
}

// CloseAll ends every live session, logging failures. Meant for
// shutdown paths.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, info := range m.List() {
		if _, err := m.End(ctx, info.SessionID); err != nil {
			fmt.Fprintf(os.Stderr, "manager: end session %s: %v\n", info.SessionID, err)
		}
	}
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, &SessionNotFoundError{ID: id}
	}
	return e, nil
}

func (m *Manager) logEvent(e journal.Entry) {
	if m.cfg.Journal == nil {
		return
	}
	if err := m.cfg.Journal.Append(e); err != nil {
		fmt.Fprintf(os.Stderr, "manager: journal: %v\n", err)
	}
}

func (e *entry) snapshot() Info {
	sess := e.runner.Session()
	scn := sess.Scenario()
	sum := sess.Result().Summary()
	return Info{
		SessionID:  e.id,
		ScenarioID: scn.Meta.ID,
		Title:      scn.Meta.Title,
		Status:     e.status,
		Part:       e.partIdx + 1,
		Step:       e.stepIdx,
		TotalParts: len(scn.Parts),
		TotalSteps: scn.TotalSteps(),
		Account:    sess.CurrentAccount(),
		Executed:   sum.Passed + sum.Failed,
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Skipped:    sum.Skipped,
		CreatedAt:  e.created,
	}
}

func newSessionID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return "sess-" + hex.EncodeToString(b), nil
}

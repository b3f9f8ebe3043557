package mcp

import (
	"context"
	"errors"
	"io/fs"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/scenario"
	"github.com/ppiankov/stagewright/internal/session"
)

// --- Input/Output types ---

// ValidateInput defines parameters for the scenario_validate tool.
type ValidateInput struct {
	Scenario string `json:"scenario,omitempty" jsonschema:"inline scenario YAML"`
	Path     string `json:"path,omitempty" jsonschema:"path to a scenario file"`
}

// ValidateOutput reports validation results.
type ValidateOutput struct {
	Valid      bool     `json:"valid"`
	ScenarioID string   `json:"scenario_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Parts      int      `json:"parts,omitempty"`
	Steps      int      `json:"steps,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// RunInput defines parameters for the scenario_run tool.
type RunInput struct {
	Scenario    string `json:"scenario,omitempty" jsonschema:"inline scenario YAML"`
	Path        string `json:"path,omitempty" jsonschema:"path to a scenario file"`
	Part        int    `json:"part,omitempty" jsonschema:"run only this part (1-based)"`
	StopOnError bool   `json:"stop_on_error,omitempty" jsonschema:"halt at the first failed step"`
}

// RunOutput reports a finished batch run.
type RunOutput struct {
	ScenarioID  string `json:"scenario_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"status,omitempty"`
	TotalSteps  int    `json:"total_steps,omitempty"`
	Passed      int    `json:"passed,omitempty"`
	Failed      int    `json:"failed,omitempty"`
	Skipped     int    `json:"skipped,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	OutputDir   string `json:"output_dir,omitempty"`
	ResultsPath string `json:"results_path,omitempty"`
	VideoPath   string `json:"video_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// StartInput defines parameters for the scenario_start tool.
type StartInput struct {
	Scenario  string `json:"scenario,omitempty" jsonschema:"inline scenario YAML"`
	Path      string `json:"path,omitempty" jsonschema:"path to a scenario file"`
	StartPart int    `json:"start_part,omitempty" jsonschema:"part to start at (1-based)"`
}

// StartOutput describes the freshly created session.
type StartOutput struct {
	SessionID  string `json:"session_id,omitempty"`
	ScenarioID string `json:"scenario_id,omitempty"`
	Title      string `json:"title,omitempty"`
	TotalParts int    `json:"total_parts,omitempty"`
	TotalSteps int    `json:"total_steps,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StepInput defines parameters for the scenario_step tool.
type StepInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from scenario_start"`
	Retry     bool   `json:"retry,omitempty" jsonschema:"execute the current step again without advancing the cursor"`
	Skip      bool   `json:"skip,omitempty" jsonschema:"record the current step as skipped without executing it"`
}

// StepOutput reports one executed step and the new cursor position.
type StepOutput struct {
	SessionID       string `json:"session_id,omitempty"`
	StepID          string `json:"step_id,omitempty"`
	StepDesc        string `json:"step_desc,omitempty"`
	Part            int    `json:"part,omitempty"`
	PartTitle       string `json:"part_title,omitempty"`
	Status          string `json:"status,omitempty"`
	DurationMS      int64  `json:"duration_ms,omitempty"`
	Screenshot      string `json:"screenshot,omitempty"`
	StepError       string `json:"step_error,omitempty"`
	IsCompleted     bool   `json:"is_completed,omitempty"`
	IsPartChange    bool   `json:"is_part_change,omitempty"`
	IsAccountChange bool   `json:"is_account_change,omitempty"`
	NextPart        int    `json:"next_part,omitempty"`
	NextStep        string `json:"next_step,omitempty"`
	Error           string `json:"error,omitempty"`
}

// EndInput defines parameters for the scenario_end tool.
type EndInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from scenario_start"`
}

// EndOutput is the final accounting of an ended session.
type EndOutput struct {
	SessionID   string `json:"session_id,omitempty"`
	Status      string `json:"status,omitempty"`
	TotalSteps  int    `json:"total_steps,omitempty"`
	Passed      int    `json:"passed,omitempty"`
	Failed      int    `json:"failed,omitempty"`
	Skipped     int    `json:"skipped,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	ResultsPath string `json:"results_path,omitempty"`
	VideoPath   string `json:"video_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SessionsInput is empty; the tool takes no parameters.
type SessionsInput struct{}

// SessionsOutput lists live sessions.
type SessionsOutput struct {
	Sessions []SessionItem `json:"sessions"`
}

// SessionItem describes one live session.
type SessionItem struct {
	SessionID  string `json:"session_id"`
	ScenarioID string `json:"scenario_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Part       int    `json:"part"`
	TotalParts int    `json:"total_parts"`
	Executed   int    `json:"executed"`
	TotalSteps int    `json:"total_steps"`
	CreatedAt  string `json:"created_at"`
}

// InfoInput defines parameters for the scenario_info tool.
type InfoInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from scenario_start"`
}

// InfoOutput snapshots one session.
type InfoOutput struct {
	SessionID  string `json:"session_id,omitempty"`
	ScenarioID string `json:"scenario_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	Part       int    `json:"part,omitempty"`
	Step       int    `json:"step"`
	TotalParts int    `json:"total_parts,omitempty"`
	TotalSteps int    `json:"total_steps,omitempty"`
	Account    string `json:"account,omitempty"`
	Executed   int    `json:"executed"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	CreatedAt  string `json:"created_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

// --- Handlers ---

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	if input.Scenario == "" && input.Path == "" {
		return &mcpsdk.CallToolResult{IsError: true}, ValidateOutput{Error: "scenario or path required"}, nil
	}

	var (
		scn *scenario.Scenario
		err error
	)
	if input.Scenario != "" {
		scn, err = scenario.Parse([]byte(input.Scenario))
	} else {
		scn, err = scenario.ParseFile(input.Path)
	}
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, ValidateOutput{Error: err.Error()}, nil
	}

	return nil, ValidateOutput{
		Valid:      true,
		ScenarioID: scn.Meta.ID,
		Title:      scn.Meta.Title,
		Parts:      len(scn.Parts),
		Steps:      scn.TotalSteps(),
		Warnings:   scenario.Warnings(scn),
	}, nil
}

func (s *Server) handleRun(ctx context.Context, req *mcpsdk.CallToolRequest, input RunInput) (*mcpsdk.CallToolResult, RunOutput, error) {
	if input.Scenario == "" && input.Path == "" {
		return &mcpsdk.CallToolResult{IsError: true}, RunOutput{Error: "scenario or path required"}, nil
	}

	outcome, err := s.mgr.Run(ctx, manager.RunOptions{
		Source:      []byte(input.Scenario),
		Path:        input.Path,
		Part:        input.Part,
		StopOnError: input.StopOnError,
	})
	if err != nil {
		if soft(err) {
			return &mcpsdk.CallToolResult{IsError: true}, RunOutput{Error: err.Error()}, nil
		}
		return nil, RunOutput{}, err
	}

	// A failed scenario is still a completed run; only broken input or
	// infrastructure count as tool errors.
	return nil, RunOutput{
		ScenarioID:  outcome.ScenarioID,
		Title:       outcome.Title,
		Status:      outcome.Status,
		TotalSteps:  outcome.TotalSteps,
		Passed:      outcome.Passed,
		Failed:      outcome.Failed,
		Skipped:     outcome.Skipped,
		DurationMS:  outcome.DurationMS,
		OutputDir:   outcome.OutputDir,
		ResultsPath: outcome.ResultsPath,
		VideoPath:   outcome.VideoPath,
	}, nil
}

func (s *Server) handleStart(ctx context.Context, req *mcpsdk.CallToolRequest, input StartInput) (*mcpsdk.CallToolResult, StartOutput, error) {
	if input.Scenario == "" && input.Path == "" {
		return &mcpsdk.CallToolResult{IsError: true}, StartOutput{Error: "scenario or path required"}, nil
	}

	created, err := s.mgr.Create(ctx, manager.CreateOptions{
		Source:    []byte(input.Scenario),
		Path:      input.Path,
		StartPart: input.StartPart,
	})
	if err != nil {
		if soft(err) {
			return &mcpsdk.CallToolResult{IsError: true}, StartOutput{Error: err.Error()}, nil
		}
		return nil, StartOutput{}, err
	}

	return nil, StartOutput{
		SessionID:  created.SessionID,
		ScenarioID: created.ScenarioID,
		Title:      created.Title,
		TotalParts: created.TotalParts,
		TotalSteps: created.TotalSteps,
		Status:     string(created.Status),
	}, nil
}

func (s *Server) handleStep(ctx context.Context, req *mcpsdk.CallToolRequest, input StepInput) (*mcpsdk.CallToolResult, StepOutput, error) {
	exec, err := s.mgr.Advance(ctx, input.SessionID, manager.AdvanceOpts{
		Retry: input.Retry,
		Skip:  input.Skip,
	})
	if err != nil {
		if soft(err) {
			return &mcpsdk.CallToolResult{IsError: true}, StepOutput{Error: err.Error()}, nil
		}
		return nil, StepOutput{}, err
	}

	return nil, StepOutput{
		SessionID:       exec.SessionID,
		StepID:          exec.StepID,
		StepDesc:        exec.StepDesc,
		Part:            exec.Part,
		PartTitle:       exec.PartTitle,
		Status:          string(exec.Result.Status),
		DurationMS:      exec.Result.DurationMS,
		Screenshot:      exec.Result.Screenshot,
		StepError:       exec.Result.Error,
		IsCompleted:     exec.IsCompleted,
		IsPartChange:    exec.IsPartChange,
		IsAccountChange: exec.IsAccountChange,
		NextPart:        exec.NextPart,
		NextStep:        exec.NextStep,
	}, nil
}

func (s *Server) handleEnd(ctx context.Context, req *mcpsdk.CallToolRequest, input EndInput) (*mcpsdk.CallToolResult, EndOutput, error) {
	ended, err := s.mgr.End(ctx, input.SessionID)
	if err != nil {
		if soft(err) {
			return &mcpsdk.CallToolResult{IsError: true}, EndOutput{Error: err.Error()}, nil
		}
		return nil, EndOutput{}, err
	}

	return nil, EndOutput{
		SessionID:   ended.SessionID,
		Status:      ended.Status,
		TotalSteps:  ended.TotalSteps,
		Passed:      ended.Passed,
		Failed:      ended.Failed,
		Skipped:     ended.Skipped,
		DurationMS:  ended.DurationMS,
		ResultsPath: ended.ResultsPath,
		VideoPath:   ended.VideoPath,
	}, nil
}

func (s *Server) handleSessions(ctx context.Context, req *mcpsdk.CallToolRequest, input SessionsInput) (*mcpsdk.CallToolResult, SessionsOutput, error) {
	infos := s.mgr.List()
	items := make([]SessionItem, len(infos))
	for i, info := range infos {
		items[i] = SessionItem{
			SessionID:  info.SessionID,
			ScenarioID: info.ScenarioID,
			Title:      info.Title,
			Status:     string(info.Status),
			Part:       info.Part,
			TotalParts: info.TotalParts,
			Executed:   info.Executed,
			TotalSteps: info.TotalSteps,
			CreatedAt:  info.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, SessionsOutput{Sessions: items}, nil
}

func (s *Server) handleInfo(ctx context.Context, req *mcpsdk.CallToolRequest, input InfoInput) (*mcpsdk.CallToolResult, InfoOutput, error) {
	info, err := s.mgr.Info(input.SessionID)
	if err != nil {
		if soft(err) {
			return &mcpsdk.CallToolResult{IsError: true}, InfoOutput{Error: err.Error()}, nil
		}
		return nil, InfoOutput{}, err
	}

	return nil, InfoOutput{
		SessionID:  info.SessionID,
		ScenarioID: info.ScenarioID,
		Title:      info.Title,
		Status:     string(info.Status),
		Part:       info.Part,
		Step:       info.Step,
		TotalParts: info.TotalParts,
		TotalSteps: info.TotalSteps,
		Account:    info.Account,
		Executed:   info.Executed,
		Passed:     info.Passed,
		Failed:     info.Failed,
		Skipped:    info.Skipped,
		CreatedAt:  info.CreatedAt.Format(time.RFC3339),
	}, nil
}

// soft reports whether an error is a caller mistake rather than an
// infrastructure fault. Soft failures become IsError tool results so
// the agent can read the message and adjust.
func soft(err error) bool {
	var (
		notFound *manager.SessionNotFoundError
		finished *session.SessionFinishedError
		invalid  *scenario.ValidationError
	)
	switch {
	case errors.As(err, &notFound),
		errors.As(err, &finished),
		errors.As(err, &invalid),
		errors.Is(err, manager.ErrRetrySkipConflict),
		errors.Is(err, manager.ErrStartPartOutOfRange),
		errors.Is(err, fs.ErrNotExist):
		return true
	}
	return false
}

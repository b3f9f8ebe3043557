package stagewright

import (
	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/page"
	"github.com/ppiankov/stagewright/internal/scenario"
)

// Config mirrors stagewright.yaml. Start from DefaultConfig when
// building one in code; a zero value carries no timeouts or selectors.
type Config = config.Config

// DefaultConfig returns the built-in configuration, the same one an
// absent stagewright.yaml yields.
func DefaultConfig() *Config { return config.Default() }

// Page capability. Implement Provider to drive scenarios through
// something other than the bundled Playwright browser.
type (
	Page     = page.Page
	Provider = page.Provider
)

// Account is one credential pair handed to Page.AuthenticateAs.
type Account = accounts.Account

// Batch results.
type (
	RunOutcome  = manager.RunOutcome
	StepOutcome = manager.StepOutcome
	RunResult   = scenario.RunResult
	StepResult  = scenario.StepResult
)

// Interactive session surfaces.
type (
	Created       = manager.Created
	StepExecution = manager.StepExecution
	Ended         = manager.Ended
	SessionInfo   = manager.Info
	SessionStatus = manager.Status
)

const (
	StatusInitialized = manager.StatusInitialized
	StatusRunning     = manager.StatusRunning
	StatusPaused      = manager.StatusPaused
	StatusCompleted   = manager.StatusCompleted
	StatusError       = manager.StatusError
)

// SessionNotFoundError reports an operation on an unknown or already
// ended session id.
type SessionNotFoundError = manager.SessionNotFoundError

// ErrRetrySkipConflict rejects a Step call requesting retry and skip
// at once.
var ErrRetrySkipConflict = manager.ErrRetrySkipConflict

package stagewright

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/browser"
	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/history"
	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/notify"
)

// Client owns one engine instance: a browser (or injected provider),
// the accounts table, run history and the session manager. Safe for
// concurrent use; sessions are independent.
type Client struct {
	cfg          *Config
	provider     Provider
	ownsProvider bool
	store        *history.Store
	mgr          *manager.Manager
}

// New wires a Client from options. Without WithConfig or
// WithConfigFile it loads stagewright.yaml from the working directory,
// falling back to defaults when the file is absent.
func New(opts ...Option) (*Client, error) {
	var cc clientConfig
	for _, o := range opts {
		o(&cc)
	}

	var cfg *Config
	if cc.config != nil {
		copied := *cc.config
		cfg = &copied
	} else {
		loaded, err := config.Load(cc.configFile)
		if err != nil {
			return nil, fmt.Errorf("stagewright: %w", err)
		}
		cfg = loaded
	}
	if cc.baseURL != "" {
		cfg.BaseURL = cc.baseURL
	}
	if cc.accountsFile != "" {
		cfg.AccountsFile = cc.accountsFile
	}
	if cc.outputDir != "" {
		cfg.Output.Dir = cc.outputDir
	}

	var table *accounts.Table
	if cfg.AccountsFile != "" {
		var err error
		table, err = accounts.Load(cfg.AccountsFile)
		if err != nil {
			return nil, fmt.Errorf("stagewright: %w", err)
		}
	}

	c := &Client{cfg: cfg, provider: cc.provider}
	if c.provider == nil {
		bopts := browser.Options{
			Headless:  cfg.Browser.Headless,
			ConnectWS: cfg.Browser.ConnectWS,
			Viewport:  browser.Viewport{Width: cfg.Browser.Viewport.Width, Height: cfg.Browser.Viewport.Height},
			BaseURL:   cfg.BaseURL,
			Login: browser.Login{
				Path:               cfg.Login.Path,
				IdentifierSelector: cfg.Login.IdentifierSelector,
				SecretSelector:     cfg.Login.SecretSelector,
				SubmitSelector:     cfg.Login.SubmitSelector,
			},
		}
		if cfg.Browser.Video {
			bopts.RecordVideoDir = filepath.Join(cfg.Output.Dir, "videos")
		}
		p, err := browser.NewProvider(bopts)
		if err != nil {
			return nil, fmt.Errorf("stagewright: %w", err)
		}
		c.provider = p
		c.ownsProvider = true
	}

	if !cfg.History.Disabled && cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			c.Close(context.Background())
			return nil, fmt.Errorf("stagewright: %w", err)
		}
		c.store = store
	}

	var notifier *notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.New(cfg.Notify.WebhookURL)
	}

	c.mgr = manager.New(manager.Config{
		Provider:      c.provider,
		Accounts:      table,
		BaseURL:       cfg.BaseURL,
		OutputRoot:    cfg.Output.Dir,
		WaitTimeout:   cfg.Timeouts.Action(),
		AssertTimeout: cfg.Timeouts.Wait(),
		History:       c.store,
		Notifier:      notifier,
	})
	return c, nil
}

// Run executes a whole scenario: every part and step in order, results
// saved under the output directory, history recorded, webhook
// notified. Failed steps land in the outcome; the error return is
// reserved for parse and infrastructure faults.
func (c *Client) Run(ctx context.Context, path string, opts ...RunOption) (*RunOutcome, error) {
	return c.mgr.Run(ctx, batchOptions(path, nil, opts))
}

// RunSource is Run for an in-memory scenario document.
func (c *Client) RunSource(ctx context.Context, source []byte, opts ...RunOption) (*RunOutcome, error) {
	return c.mgr.Run(ctx, batchOptions("", source, opts))
}

func batchOptions(path string, source []byte, opts []RunOption) manager.RunOptions {
	var rc runConfig
	for _, o := range opts {
		o(&rc)
	}
	return manager.RunOptions{
		Path:        path,
		Source:      source,
		OutputDir:   rc.outputDir,
		Part:        rc.part,
		StopOnError: rc.stopOnError,
	}
}

// RunStep executes exactly one step by id, with its part's account
// switch included.
func (c *Client) RunStep(ctx context.Context, path, stepID string) (*StepOutcome, error) {
	return c.mgr.RunOne(ctx, manager.SingleOptions{Path: path, StepID: stepID})
}

// Start creates an interactive session resting before the first step.
func (c *Client) Start(ctx context.Context, path string, opts ...StartOption) (*Created, error) {
	return c.mgr.Create(ctx, createOptions(path, nil, opts))
}

// StartSource is Start for an in-memory scenario document.
func (c *Client) StartSource(ctx context.Context, source []byte, opts ...StartOption) (*Created, error) {
	return c.mgr.Create(ctx, createOptions("", source, opts))
}

func createOptions(path string, source []byte, opts []StartOption) manager.CreateOptions {
	var sc startConfig
	for _, o := range opts {
		o(&sc)
	}
	return manager.CreateOptions{
		Path:      path,
		Source:    source,
		StartPart: sc.startPart,
		OutputDir: sc.outputDir,
	}
}

// Step executes the session's current step and advances the cursor.
func (c *Client) Step(ctx context.Context, sessionID string, opts ...StepOption) (*StepExecution, error) {
	var sc stepConfig
	for _, o := range opts {
		o(&sc)
	}
	return c.mgr.Advance(ctx, sessionID, manager.AdvanceOpts{Retry: sc.retry, Skip: sc.skip})
}

// End finishes a session: results saved, page closed, summary returned.
func (c *Client) End(ctx context.Context, sessionID string) (*Ended, error) {
	return c.mgr.End(ctx, sessionID)
}

// Config returns a copy of the effective configuration, defaults and
// option overrides applied.
func (c *Client) Config() Config {
	return *c.cfg
}

// Sessions lists live sessions, oldest first.
func (c *Client) Sessions() []SessionInfo {
	return c.mgr.List()
}

// Info reports one session's progress.
func (c *Client) Info(sessionID string) (*SessionInfo, error) {
	return c.mgr.Info(sessionID)
}

// Close ends every live session and releases the browser and history
// store. Providers injected with WithProvider are left open.
func (c *Client) Close(ctx context.Context) {
	if c.mgr != nil {
		c.mgr.CloseAll(ctx)
	}
	if c.store != nil {
		_ = c.store.Close()
	}
	if c.ownsProvider {
		_ = c.provider.Close(ctx)
	}
}

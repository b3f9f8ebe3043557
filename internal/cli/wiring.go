package cli

import (
	"context"
	"path/filepath"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/browser"
	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/history"
	"github.com/ppiankov/stagewright/internal/journal"
	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/notify"
)

// engine is the wired execution stack shared by the commands that
// actually drive a browser: run, step, serve and mcp.
type engine struct {
	provider *browser.Provider
	store    *history.Store
	jnl      *journal.Journal
	mgr      *manager.Manager
}

// newEngine builds the execution stack from config: browser provider,
// external accounts table, history store and webhook notifier.
// withJournal adds the serve-mode session journal, written next to the
// history database.
func newEngine(cfg *config.Config, withJournal bool) (*engine, error) {
	var table *accounts.Table
	if cfg.AccountsFile != "" {
		var err error
		table, err = accounts.Load(cfg.AccountsFile)
		if err != nil {
			return nil, err
		}
	}

	opts := browser.Options{
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
		opts.RecordVideoDir = filepath.Join(cfg.Output.Dir, "videos")
	}

	provider, err := browser.NewProvider(opts)
	if err != nil {
		return nil, err
	}

	eng := &engine{provider: provider}

	if !cfg.History.Disabled {
		eng.store, err = history.Open(cfg.History.Path)
		if err != nil {
			eng.Close(context.Background())
			return nil, err
		}
	}

	if withJournal {
		path := filepath.Join(filepath.Dir(cfg.History.Path), "stagewright-journal.jsonl")
		eng.jnl, err = journal.Open(path)
		if err != nil {
			eng.Close(context.Background())
			return nil, err
		}
	}

	var notifier *notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.New(cfg.Notify.WebhookURL)
	}

	eng.mgr = manager.New(manager.Config{
		Provider:      provider,
		Accounts:      table,
		BaseURL:       cfg.BaseURL,
		OutputRoot:    cfg.Output.Dir,
		WaitTimeout:   cfg.Timeouts.Action(),
		AssertTimeout: cfg.Timeouts.Wait(),
		Journal:       eng.jnl,
		History:       eng.store,
		Notifier:      notifier,
	})
	return eng, nil
}

func (e *engine) Close(ctx context.Context) {
	if e.jnl != nil {
		_ = e.jnl.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	_ = e.provider.Close(ctx)
}

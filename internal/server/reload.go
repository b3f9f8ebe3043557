package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/manager"
)

// Reloader watches the external accounts file and swaps the manager's
// table when it changes. Sessions created after the swap see the new
// credentials; live sessions keep the table they started with.
type Reloader struct {
	watcher *fsnotify.Watcher
	mgr     *manager.Manager
	path    string
}

// NewReloader creates a file watcher for the accounts file. The file
// must exist; editors that replace it on save still trigger the
// watcher through the create event.
func NewReloader(mgr *manager.Manager, path string) (*Reloader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("accounts file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	return &Reloader{
		watcher: watcher,
		mgr:     mgr,
		path:    path,
	}, nil
}

// Run watches for file changes and reloads accounts. Blocks until ctx
// is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after the last write before reloading
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)
		}
	}
}

func (r *Reloader) reload() {
	table, err := accounts.Load(r.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hot-reload failed: %v\n", err)
		return
	}
	r.mgr.SetAccounts(table)
	fmt.Fprintf(os.Stderr, "hot-reload: %d accounts loaded from %s\n", table.Len(), r.path)
}

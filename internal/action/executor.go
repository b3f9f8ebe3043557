// Package action executes scenario actions against a page.
package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/page"
	"github.com/ppiankov/stagewright/internal/scenario"
)

// DefaultWaitTimeout bounds waits when the executor is not configured
// with one.
const DefaultWaitTimeout = 10 * time.Second

// UnsupportedActionError marks an action kind the executor cannot
// dispatch. It fails the step, not the session.
type UnsupportedActionError struct {
	Kind string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action: %s", e.Kind)
}

// Executor runs one action at a time against a page. The caller owns
// timing and retries.
type Executor struct {
	Accounts    *accounts.Table
	BaseURL     string
	WaitTimeout time.Duration
}

// Execute performs the action. A nil error means the action succeeded;
// a non-nil error carries the failure message recorded on the step.
func (e *Executor) Execute(ctx context.Context, pg page.Page, act scenario.Action) error {
	switch a := act.(type) {
	case scenario.Goto:
		url, err := e.resolveURL(a.URL)
		if err != nil {
			return err
		}
		if err := pg.Navigate(ctx, url); err != nil {
			return fmt.Errorf("goto %s: %w", url, err)
		}
		return e.waitTarget(ctx, pg, a.Wait)
	case scenario.Fill:
		if err := pg.Fill(ctx, a.Selector, a.Value); err != nil {
			return fmt.Errorf("fill %s: %w", a.Selector, err)
		}
		return nil
	case scenario.Click:
		if err := pg.Click(ctx, a.Selector); err != nil {
			return fmt.Errorf("click %s: %w", a.Selector, err)
		}
		return e.waitTarget(ctx, pg, a.Wait)
	case scenario.Select:
		if err := pg.Select(ctx, a.Selector, a.Value); err != nil {
			return fmt.Errorf("select %s: %w", a.Selector, err)
		}
		return nil
	case scenario.Upload:
		if err := pg.UploadFile(ctx, a.Selector, a.File); err != nil {
			return fmt.Errorf("upload %s to %s: %w", a.File, a.Selector, err)
		}
		return nil
	case scenario.Clear:
		if err := pg.Clear(ctx, a.Selector); err != nil {
			return fmt.Errorf("clear %s: %w", a.Selector, err)
		}
		return nil
	case scenario.Login:
		acct, err := e.Accounts.Resolve(a.Account)
		if err != nil {
			return err
		}
		if err := pg.AuthenticateAs(ctx, acct); err != nil {
			return fmt.Errorf("login as %s: %w", a.Account, err)
		}
		return nil
	case scenario.Logout:
		if err := pg.Deauthenticate(ctx); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		return nil
	case scenario.Wait:
		return e.executeWait(ctx, pg, a)
	case scenario.Unsupported:
		return &UnsupportedActionError{Kind: a.Name}
	default:
		return &UnsupportedActionError{Kind: act.Kind()}
	}
}

func (e *Executor) executeWait(ctx context.Context, pg page.Page, a scenario.Wait) error {
	switch {
	case a.Millis > 0:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a.Millis) * time.Millisecond):
			return nil
		}
	case a.URL != "":
		return e.waitURL(ctx, pg, a.URL)
	case a.Selector != "":
		return e.waitSelector(ctx, pg, a.Selector)
	default:
		return nil
	}
}

// waitTarget handles the optional wait modifier of goto and click: a
// target starting with / waits for the URL, anything else waits for
// the selector to become visible.
func (e *Executor) waitTarget(ctx context.Context, pg page.Page, target string) error {
	if target == "" {
		return nil
	}
	if strings.HasPrefix(target, "/") {
		return e.waitURL(ctx, pg, target)
	}
	return e.waitSelector(ctx, pg, target)
}

func (e *Executor) waitURL(ctx context.Context, pg page.Page, fragment string) error {
	if err := page.WaitURLContains(ctx, pg, fragment, e.timeout()); err != nil {
		return fmt.Errorf("wait for url %s: %w", fragment, err)
	}
	return nil
}

func (e *Executor) waitSelector(ctx context.Context, pg page.Page, selector string) error {
	if err := page.WaitVisible(ctx, pg, selector, e.timeout()); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (e *Executor) resolveURL(target string) (string, error) {
	if !strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "#") {
		return target, nil
	}
	if e.BaseURL == "" {
		return "", fmt.Errorf("relative url %s requires a base url", target)
	}
	return strings.TrimRight(e.BaseURL, "/") + target, nil
}

func (e *Executor) timeout() time.Duration {
	if e.WaitTimeout > 0 {
		return e.WaitTimeout
	}
	return DefaultWaitTimeout
}

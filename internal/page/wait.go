package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout reports a wait that ran out of time. Callers distinguish
// it from page faults with errors.Is.
var ErrTimeout = errors.New("wait timed out")

const pollInterval = 100 * time.Millisecond

// WaitURLContains blocks until the page URL contains fragment. Pages
// with the Waiter capability wait natively; otherwise the URL is
// polled. Native wait failures are reported as ErrTimeout.
func WaitURLContains(ctx context.Context, p Page, fragment string, timeout time.Duration) error {
	if w, ok := p.(Waiter); ok {
		if err := w.WaitForURL(ctx, fragment, timeout); err != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil
	}
	return poll(ctx, timeout, func() (bool, error) {
		url, err := p.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(url, fragment), nil
	})
}

// WaitVisible blocks until selector matches a visible element, with
// the same capability fallback as WaitURLContains.
func WaitVisible(ctx context.Context, p Page, selector string, timeout time.Duration) error {
	if w, ok := p.(Waiter); ok {
		if err := w.WaitForSelector(ctx, selector, timeout); err != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil
	}
	return poll(ctx, timeout, func() (bool, error) {
		return p.IsVisible(ctx, selector)
	})
}

func poll(ctx context.Context, timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

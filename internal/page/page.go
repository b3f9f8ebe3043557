// Package page defines the browser capability consumed by the action
// and assertion executors. Implementations drive a real browser
// (internal/browser) or a fake in tests; callers never import a
// browser library directly.
package page

import (
	"context"
	"time"

	"github.com/ppiankov/stagewright/internal/accounts"
)

// Page is a single authenticated browser page. All methods honor the
// context for cancellation; errors carry the underlying driver
// failure.
type Page interface {
	// Navigate opens the given absolute URL.
	Navigate(ctx context.Context, url string) error
	// Fill clears the matched input and types the value.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// Select picks an option of a <select> element by value or label.
	Select(ctx context.Context, selector, value string) error
	// UploadFile attaches a local file to a file input.
	UploadFile(ctx context.Context, selector, path string) error
	// Clear empties the matched input.
	Clear(ctx context.Context, selector string) error

	// AuthenticateAs signs the page in as the given account.
	AuthenticateAs(ctx context.Context, account accounts.Account) error
	// Deauthenticate discards the page's session state.
	Deauthenticate(ctx context.Context) error

	CurrentURL(ctx context.Context) (string, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	// TextContent returns the text of the matched element, or the
	// whole document body when selector is empty.
	TextContent(ctx context.Context, selector string) (string, error)
	// InputValue returns the current value of a form control.
	InputValue(ctx context.Context, selector string) (string, error)

	// Screenshot captures the visible viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	Close(ctx context.Context) error
}

// Provider hands out fresh pages. Each page is independent; closing
// the provider tears down everything it produced.
type Provider interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Waiter is an optional capability. When a Page implements it the
// executors use native waits instead of polling the Page surface.
type Waiter interface {
	// WaitForURL blocks until the current URL contains fragment.
	WaitForURL(ctx context.Context, fragment string, timeout time.Duration) error
	// WaitForSelector blocks until the selector matches a visible
	// element.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
}

// VideoRecorder is an optional capability of pages recorded on video.
type VideoRecorder interface {
	// VideoPath returns the recording's file path. Only valid after
	// the page is closed.
	VideoPath(ctx context.Context) (string, error)
}

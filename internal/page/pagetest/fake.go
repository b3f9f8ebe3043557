// Package pagetest provides a scriptable in-memory page for tests.
package pagetest

import (
	"context"
	"fmt"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/page"
)

// Fake implements page.Page with in-memory state. Zero value is
// usable. Not safe for concurrent use.
type Fake struct {
	URL           string
	Visible       map[string]bool
	Texts         map[string]string
	Values        map[string]string
	Authenticated string
	Shot          []byte
	Closed        bool

	// Calls records every method invocation in order, e.g.
	// "navigate https://x/login".
	Calls []string

	// FailOn maps a method name (navigate, fill, click, select,
	// upload, clear, authenticate, deauthenticate, current_url,
	// is_visible, text, input_value, screenshot, close) to the error
	// it should return.
	FailOn map[string]error
}

var _ page.Page = (*Fake)(nil)

func (f *Fake) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *Fake) fail(method string) error {
	if f.FailOn == nil {
		return nil
	}
	return f.FailOn[method]
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.record("navigate %s", url)
	if err := f.fail("navigate"); err != nil {
		return err
	}
	f.URL = url
	return nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	f.record("fill %s=%s", selector, value)
	if err := f.fail("fill"); err != nil {
		return err
	}
	if f.Values == nil {
		f.Values = map[string]string{}
	}
	f.Values[selector] = value
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.record("click %s", selector)
	return f.fail("click")
}

func (f *Fake) Select(ctx context.Context, selector, value string) error {
	f.record("select %s=%s", selector, value)
	if err := f.fail("select"); err != nil {
		return err
	}
	if f.Values == nil {
		f.Values = map[string]string{}
	}
	f.Values[selector] = value
	return nil
}

func (f *Fake) UploadFile(ctx context.Context, selector, path string) error {
	f.record("upload %s=%s", selector, path)
	return f.fail("upload")
}

func (f *Fake) Clear(ctx context.Context, selector string) error {
	f.record("clear %s", selector)
	if err := f.fail("clear"); err != nil {
		return err
	}
	if f.Values != nil {
		f.Values[selector] = ""
	}
	return nil
}

func (f *Fake) AuthenticateAs(ctx context.Context, account accounts.Account) error {
	f.record("authenticate %s", account.Key)
	if err := f.fail("authenticate"); err != nil {
		return err
	}
	f.Authenticated = account.Key
	return nil
}

func (f *Fake) Deauthenticate(ctx context.Context) error {
	f.record("deauthenticate")
	if err := f.fail("deauthenticate"); err != nil {
		return err
	}
	f.Authenticated = ""
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	if err := f.fail("current_url"); err != nil {
		return "", err
	}
	return f.URL, nil
}

func (f *Fake) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := f.fail("is_visible"); err != nil {
		return false, err
	}
	return f.Visible[selector], nil
}

func (f *Fake) TextContent(ctx context.Context, selector string) (string, error) {
	if err := f.fail("text"); err != nil {
		return "", err
	}
	return f.Texts[selector], nil
}

func (f *Fake) InputValue(ctx context.Context, selector string) (string, error) {
	if err := f.fail("input_value"); err != nil {
		return "", err
	}
	return f.Values[selector], nil
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	f.record("screenshot")
	if err := f.fail("screenshot"); err != nil {
		return nil, err
	}
	if f.Shot != nil {
		return f.Shot, nil
	}
	return []byte("png"), nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.record("close")
	if err := f.fail("close"); err != nil {
		return err
	}
	f.Closed = true
	return nil
}

// Provider hands out fresh fakes and remembers every page it created.
type Provider struct {
	Pages  []*Fake
	NewErr error
	Closed bool

	// Prepare, when set, is applied to each new fake before it is
	// returned.
	Prepare func(*Fake)
}

var _ page.Provider = (*Provider)(nil)

func (p *Provider) NewPage(ctx context.Context) (page.Page, error) {
	if p.NewErr != nil {
		return nil, p.NewErr
	}
	f := &Fake{}
	if p.Prepare != nil {
		p.Prepare(f)
	}
	p.Pages = append(p.Pages, f)
	return f, nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.Closed = true
	return nil
}

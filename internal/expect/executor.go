// Package expect evaluates scenario expectations against a page.
package expect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/stagewright/internal/page"
	"github.com/ppiankov/stagewright/internal/scenario"
)

// DefaultWaitTimeout bounds the visible wait when the executor is not
// configured with one.
const DefaultWaitTimeout = 3 * time.Second

const pollInterval = 100 * time.Millisecond

// maxActualLen caps the recorded actual text of text_contains.
const maxActualLen = 100

// Executor evaluates one expectation at a time. The error return is
// reserved for page faults; a failed comparison is reported in the
// result, never as an error.
type Executor struct {
	WaitTimeout time.Duration
}

// Verify evaluates the expectation and returns its outcome.
func (e *Executor) Verify(ctx context.Context, pg page.Page, exp scenario.Expectation) (scenario.AssertionResult, error) {
	res := scenario.AssertionResult{Type: exp.Type()}

	switch x := exp.(type) {
	case scenario.ExpectURL:
		current, err := pg.CurrentURL(ctx)
		if err != nil {
			return res, fmt.Errorf("read url: %w", err)
		}
		res.Expected = x.Expected
		res.Actual = current
		if strings.HasPrefix(x.Expected, "/") {
			// Compare paths only, insensitive to a trailing slash.
			if u, perr := url.Parse(current); perr == nil {
				res.Actual = u.Path
			}
			res.Passed = res.Actual == x.Expected ||
				strings.TrimRight(res.Actual, "/") == strings.TrimRight(x.Expected, "/")
		} else {
			res.Passed = current == x.Expected
		}
		res.Message = "URL matches"
		if !res.Passed {
			res.Message = "URL does not match"
		}
		return res, nil

	case scenario.ExpectURLContains:
		current, err := pg.CurrentURL(ctx)
		if err != nil {
			return res, fmt.Errorf("read url: %w", err)
		}
		res.Expected = x.Expected
		res.Actual = current
		res.Passed = strings.Contains(current, x.Expected)
		res.Message = fmt.Sprintf("URL contains %q", x.Expected)
		if !res.Passed {
			res.Message = fmt.Sprintf("URL does not contain %q", x.Expected)
		}
		return res, nil

	case scenario.ExpectURLMatches:
		re, err := regexp.Compile(x.Pattern)
		if err != nil {
			return res, fmt.Errorf("compile url pattern: %w", err)
		}
		current, err := pg.CurrentURL(ctx)
		if err != nil {
			return res, fmt.Errorf("read url: %w", err)
		}
		res.Expected = x.Pattern
		res.Actual = current
		res.Passed = re.MatchString(current)
		res.Message = fmt.Sprintf("URL matches pattern %q", x.Pattern)
		if !res.Passed {
			res.Message = fmt.Sprintf("URL does not match pattern %q", x.Pattern)
		}
		return res, nil

	case scenario.ExpectVisible:
		return e.verifyVisible(ctx, pg, x)

	case scenario.ExpectHidden:
		visible, err := pg.IsVisible(ctx, x.Selector)
		if err != nil {
			return res, fmt.Errorf("check %s: %w", x.Selector, err)
		}
		res.Expected = x.Selector
		res.Passed = !visible
		res.Actual = "hidden"
		res.Message = "Element is hidden"
		if visible {
			res.Actual = "visible"
			res.Message = "Element is not hidden"
		}
		return res, nil

	case scenario.ExpectTextContains:
		text, err := pg.TextContent(ctx, x.Selector)
		if err != nil {
			return res, fmt.Errorf("read text of %s: %w", x.Selector, err)
		}
		res.Expected = x.Text
		res.Actual = truncate(text)
		res.Passed = strings.Contains(text, x.Text)
		res.Message = fmt.Sprintf("Text contains %q", x.Text)
		if !res.Passed {
			res.Message = fmt.Sprintf("Text does not contain %q", x.Text)
		}
		return res, nil

	case scenario.ExpectText:
		text, err := pg.TextContent(ctx, x.Selector)
		if err != nil {
			return res, fmt.Errorf("read text of %s: %w", x.Selector, err)
		}
		res.Expected = x.Expected
		res.Actual = strings.TrimSpace(text)
		res.Passed = res.Actual == strings.TrimSpace(x.Expected)
		res.Message = "Text matches"
		if !res.Passed {
			res.Message = "Text does not match"
		}
		return res, nil

	case scenario.ExpectValue:
		value, err := pg.InputValue(ctx, x.Selector)
		if err != nil {
			return res, fmt.Errorf("read value of %s: %w", x.Selector, err)
		}
		res.Expected = x.Expected
		res.Actual = value
		res.Passed = value == x.Expected
		res.Message = "Value matches"
		if !res.Passed {
			res.Message = "Value does not match"
		}
		return res, nil

	default:
		return res, fmt.Errorf("unsupported assertion: %s", exp.Type())
	}
}

// verifyVisible waits for the element. The selector may list
// comma-separated alternatives; the assertion passes when any of them
// becomes visible.
func (e *Executor) verifyVisible(ctx context.Context, pg page.Page, x scenario.ExpectVisible) (scenario.AssertionResult, error) {
	res := scenario.AssertionResult{Type: x.Type(), Expected: x.Selector}

	candidates := splitSelectors(x.Selector)
	var found string
	var err error
	if len(candidates) == 0 {
		res.Actual = "not found"
		res.Message = "Element is not visible"
		return res, nil
	}
	if len(candidates) == 1 {
		err = page.WaitVisible(ctx, pg, candidates[0], e.timeout())
		if err == nil {
			found = candidates[0]
		} else if errors.Is(err, page.ErrTimeout) {
			err = nil
		}
	} else {
		found, err = e.anyVisible(ctx, pg, candidates)
	}
	if err != nil {
		return res, fmt.Errorf("wait for %s: %w", x.Selector, err)
	}

	if found != "" {
		res.Passed = true
		res.Actual = found
		res.Message = "Element is visible"
	} else {
		res.Actual = "not found"
		res.Message = "Element is not visible"
	}
	return res, nil
}

// anyVisible polls until one of the candidate selectors is visible.
// It returns the matched selector, or empty on timeout.
func (e *Executor) anyVisible(ctx context.Context, pg page.Page, candidates []string) (string, error) {
	deadline := time.Now().Add(e.timeout())
	for {
		for _, sel := range candidates {
			visible, err := pg.IsVisible(ctx, sel)
			if err != nil {
				return "", err
			}
			if visible {
				return sel, nil
			}
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (e *Executor) timeout() time.Duration {
	if e.WaitTimeout > 0 {
		return e.WaitTimeout
	}
	return DefaultWaitTimeout
}

func splitSelectors(selector string) []string {
	var out []string
	for _, p := range strings.Split(selector, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxActualLen {
		return s
	}
	return string(r[:maxActualLen]) + "..."
}

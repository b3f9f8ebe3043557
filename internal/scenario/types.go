package scenario

import (
	"github.com/ppiankov/stagewright/internal/accounts"
)

// Priority ranks a scenario for execution ordering by external tooling.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Meta identifies a scenario.
type Meta struct {
	ID            string
	Title         string
	Priority      Priority
	EstimatedTime int
	DependsOn     []string
}

// Scenario is a parsed, immutable E2E test definition: ordered parts of
// ordered steps, plus embedded accounts and document metadata.
type Scenario struct {
	Version       int
	Meta          Meta
	Prerequisites []string
	Notes         []string
	Accounts      map[string]accounts.Account
	Parts         []Part
}

// TotalSteps counts steps across all parts.
func (s *Scenario) TotalSteps() int {
	n := 0
	for _, p := range s.Parts {
		n += len(p.Steps)
	}
	return n
}

// TotalCaptures counts steps with screenshot capture enabled.
func (s *Scenario) TotalCaptures() int {
	n := 0
	for _, p := range s.Parts {
		for _, st := range p.Steps {
			if st.Capture {
				n++
			}
		}
	}
	return n
}

// Step looks up a step by id.
func (s *Scenario) Step(id string) (*Step, *Part) {
	for i := range s.Parts {
		for j := range s.Parts[i].Steps {
			if s.Parts[i].Steps[j].ID == id {
				return &s.Parts[i].Steps[j], &s.Parts[i]
			}
		}
	}
	return nil, nil
}

// Part groups steps sharing one authentication account. Index is the 1-based
// sequence position; Account empty means unauthenticated.
type Part struct {
	Index   int
	Title   string
	Account string
	Steps   []Step
}

// Step is a single action with optional assertions. Action nil means a pure
// assertion step. CaptureName overrides the screenshot file name when set.
type Step struct {
	ID          string
	Desc        string
	Action      Action
	Expect      []Expectation
	Capture     bool
	CaptureName string
}

// Action is one member of the closed action variant set. Executors match
// exhaustively on the concrete type; Unsupported carries unknown kinds
// through parsing so they fail at execution time, not parse time.
type Action interface {
	Kind() string
}

// Goto navigates to a URL. A relative URL resolves against the configured
// base URL. Wait optionally holds a URL fragment (leading slash) or selector
// to await after navigation.
type Goto struct {
	URL  string
	Wait string
}

// Fill sets an input's value.
type Fill struct {
	Selector string
	Value    string
}

// Click clicks an element. Wait as in Goto.
type Click struct {
	Selector string
	Wait     string
}

// Select picks an option in a select element.
type Select struct {
	Selector string
	Value    string
}

// Upload attaches a file to a file input.
type Upload struct {
	Selector string
	File     string
}

// Clear empties an input.
type Clear struct {
	Selector string
}

// Login authenticates as the named account via the page capability.
type Login struct {
	Account string
}

// Logout drops the authenticated state.
type Logout struct{}

// Wait pauses until a URL fragment or selector appears, or for a fixed
// duration. Exactly one field is set.
type Wait struct {
	URL      string
	Selector string
	Millis   int
}

// Unsupported is an action kind the engine does not implement. Executing it
// fails the step.
type Unsupported struct {
	Name string
}

func (Goto) Kind() string          { return "goto" }
func (Fill) Kind() string          { return "fill" }
func (Click) Kind() string         { return "click" }
func (Select) Kind() string        { return "select" }
func (Upload) Kind() string        { return "upload" }
func (Clear) Kind() string         { return "clear" }
func (Login) Kind() string         { return "login" }
func (Logout) Kind() string        { return "logout" }
func (Wait) Kind() string          { return "wait" }
func (a Unsupported) Kind() string { return a.Name }

// Expectation is one member of the closed assertion variant set.
type Expectation interface {
	Type() string
}

// ExpectURL asserts the current URL matches exactly. An expected value with a
// leading slash compares against the URL path, trailing-slash insensitive.
type ExpectURL struct {
	Expected string
}

// ExpectURLContains asserts the current URL contains a substring.
type ExpectURLContains struct {
	Expected string
}

// ExpectURLMatches asserts the current URL matches a regular expression.
type ExpectURLMatches struct {
	Pattern string
}

// ExpectVisible asserts an element is visible.
type ExpectVisible struct {
	Selector string
}

// ExpectHidden asserts an element is hidden or absent.
type ExpectHidden struct {
	Selector string
}

// ExpectTextContains asserts an element's text contains a substring.
// Selector empty means the document body.
type ExpectTextContains struct {
	Text     string
	Selector string
}

// ExpectText asserts an element's text matches exactly.
type ExpectText struct {
	Selector string
	Expected string
}

// ExpectValue asserts an input's value matches exactly.
type ExpectValue struct {
	Selector string
	Expected string
}

func (ExpectURL) Type() string          { return "url" }
func (ExpectURLContains) Type() string  { return "url_contains" }
func (ExpectURLMatches) Type() string   { return "url_matches" }
func (ExpectVisible) Type() string      { return "visible" }
func (ExpectHidden) Type() string       { return "hidden" }
func (ExpectTextContains) Type() string { return "text_contains" }
func (ExpectText) Type() string         { return "text" }
func (ExpectValue) Type() string        { return "value" }

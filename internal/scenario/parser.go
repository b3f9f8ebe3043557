package scenario

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/stagewright/internal/accounts"
)

// ValidationError reports a schema violation in a scenario document, with
// the path of the offending node.
type ValidationError struct {
	Path string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// ParseFile parses and validates a scenario YAML file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse parses and validates a scenario document. ${VAR} patterns in string
// values are expanded from the environment before decoding (absent variables
// become empty strings). Schema violations return a *ValidationError.
func Parse(data []byte) (*Scenario, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ValidationError{Path: "document", Msg: err.Error()}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, &ValidationError{Path: "document", Msg: "empty scenario document"}
	}
	expandEnv(&root)

	var raw rawScenario
	if err := root.Decode(&raw); err != nil {
		return nil, &ValidationError{Path: "document", Msg: err.Error()}
	}
	return buildScenario(&raw)
}

// expandEnv rewrites ${VAR} in scalar string values. Mapping keys are left
// untouched.
func expandEnv(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			expandEnv(c)
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			expandEnv(n.Content[i])
		}
	case yaml.ScalarNode:
		if n.Tag == "!!str" && strings.Contains(n.Value, "${") {
			n.Value = envPattern.ReplaceAllStringFunc(n.Value, func(m string) string {
				return os.Getenv(m[2 : len(m)-1])
			})
		}
	}
}

var envPattern = regexp.MustCompile(`\$\{[^}]+\}`)

type rawScenario struct {
	Version       *int                  `yaml:"version"`
	Meta          *rawMeta              `yaml:"meta"`
	Prerequisites []string              `yaml:"prerequisites"`
	Notes         []string              `yaml:"notes"`
	Accounts      map[string]rawAccount `yaml:"accounts"`
	Steps         []rawPart             `yaml:"steps"`
}

type rawMeta struct {
	ID            string   `yaml:"id"`
	Title         string   `yaml:"title"`
	Priority      string   `yaml:"priority"`
	EstimatedTime int      `yaml:"estimated_time"`
	DependsOn     []string `yaml:"depends_on"`
}

type rawAccount struct {
	Identifier string `yaml:"identifier"`
	Email      string `yaml:"email"`
	Secret     string `yaml:"secret"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
}

type rawPart struct {
	Part    *int      `yaml:"part"`
	Title   string    `yaml:"title"`
	Account string    `yaml:"account"`
	Items   []rawStep `yaml:"items"`
}

type rawStep struct {
	ID         yaml.Node `yaml:"id"`
	Desc       string    `yaml:"desc"`
	Action     yaml.Node `yaml:"action"`
	Expect     yaml.Node `yaml:"expect"`
	Screenshot yaml.Node `yaml:"screenshot"`
}

func buildScenario(raw *rawScenario) (*Scenario, error) {
	if raw.Version == nil {
		return nil, &ValidationError{Path: "version", Msg: "required"}
	}
	if raw.Meta == nil {
		return nil, &ValidationError{Path: "meta", Msg: "required"}
	}
	if raw.Meta.ID == "" {
		return nil, &ValidationError{Path: "meta.id", Msg: "required"}
	}
	if raw.Meta.Title == "" {
		return nil, &ValidationError{Path: "meta.title", Msg: "required"}
	}

	priority := PriorityMedium
	switch raw.Meta.Priority {
	case "":
	case string(PriorityHigh), string(PriorityMedium), string(PriorityLow):
		priority = Priority(raw.Meta.Priority)
	default:
		return nil, &ValidationError{Path: "meta.priority", Msg: fmt.Sprintf("unknown priority %q (high, medium, low)", raw.Meta.Priority)}
	}

	if len(raw.Steps) == 0 {
		return nil, &ValidationError{Path: "steps", Msg: "at least one part is required"}
	}

	s := &Scenario{
		Version: *raw.Version,
		Meta: Meta{
			ID:            raw.Meta.ID,
			Title:         raw.Meta.Title,
			Priority:      priority,
			EstimatedTime: raw.Meta.EstimatedTime,
			DependsOn:     raw.Meta.DependsOn,
		},
		Prerequisites: raw.Prerequisites,
		Notes:         raw.Notes,
	}

	if len(raw.Accounts) > 0 {
		s.Accounts = make(map[string]accounts.Account, len(raw.Accounts))
		for key, ra := range raw.Accounts {
			a := accounts.Account{Key: key, Identifier: ra.Identifier, Secret: ra.Secret, Role: ra.Role}
			if a.Identifier == "" {
				a.Identifier = ra.Email
			}
			if a.Secret == "" {
				a.Secret = ra.Password
			}
			s.Accounts[key] = a
		}
	}

	seen := make(map[string]bool)
	for i, rp := range raw.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if rp.Part != nil && *rp.Part != i+1 {
			return nil, &ValidationError{Path: path + ".part", Msg: fmt.Sprintf("expected %d: parts are numbered by position", i+1)}
		}
		if len(rp.Items) == 0 {
			return nil, &ValidationError{Path: path + ".items", Msg: "a part needs at least one step"}
		}

		part := Part{Index: i + 1, Title: rp.Title, Account: rp.Account}
		for j, rs := range rp.Items {
			step, err := buildStep(&rs, fmt.Sprintf("%s.items[%d]", path, j))
			if err != nil {
				return nil, err
			}
			if seen[step.ID] {
				return nil, &ValidationError{Path: fmt.Sprintf("%s.items[%d].id", path, j), Msg: fmt.Sprintf("duplicate step id %q", step.ID)}
			}
			seen[step.ID] = true
			part.Steps = append(part.Steps, step)
		}
		s.Parts = append(s.Parts, part)
	}

	return s, nil
}

func buildStep(rs *rawStep, path string) (Step, error) {
	id, err := stepID(&rs.ID, path+".id")
	if err != nil {
		return Step{}, err
	}

	step := Step{ID: id, Desc: rs.Desc}

	if rs.Action.Kind != 0 && rs.Action.Tag != "!!null" {
		step.Action, err = parseAction(&rs.Action, path+".action")
		if err != nil {
			return Step{}, err
		}
	}

	if rs.Expect.Kind != 0 && rs.Expect.Tag != "!!null" {
		step.Expect, err = parseExpectations(&rs.Expect, path+".expect")
		if err != nil {
			return Step{}, err
		}
	}

	step.Capture, step.CaptureName, err = parseCapture(&rs.Screenshot, path+".screenshot")
	if err != nil {
		return Step{}, err
	}

	return step, nil
}

func stepID(n *yaml.Node, path string) (string, error) {
	if n.Kind == 0 || n.Tag == "!!null" {
		return "", &ValidationError{Path: path, Msg: "required"}
	}
	if n.Kind != yaml.ScalarNode {
		return "", &ValidationError{Path: path, Msg: "expected a scalar"}
	}
	if n.Value == "" {
		return "", &ValidationError{Path: path, Msg: "required"}
	}
	return n.Value, nil
}

// actionKeys is the closed set of kinds the executor dispatches on. "wait"
// doubles as a modifier key on goto/click.
var actionKeys = map[string]bool{
	"goto": true, "fill": true, "click": true, "select": true,
	"upload": true, "clear": true, "login": true, "logout": true,
	"wait": true,
}

func parseAction(n *yaml.Node, path string) (Action, error) {
	if n.Kind == yaml.SequenceNode {
		return nil, &ValidationError{Path: path, Msg: "one action per step; action lists are not supported"}
	}
	if n.Kind != yaml.MappingNode {
		return nil, &ValidationError{Path: path, Msg: "expected a mapping"}
	}

	fields := mappingNodes(n)
	var kinds []string
	for _, k := range fields.order {
		if k == "wait" {
			continue
		}
		kinds = append(kinds, k)
	}

	// Bare {wait: ...} is the wait action; alongside another key it is the
	// post-action wait modifier.
	if len(kinds) == 0 {
		if w, ok := fields.nodes["wait"]; ok {
			return parseWaitAction(w, path+".wait")
		}
		return nil, &ValidationError{Path: path, Msg: "missing action kind"}
	}
	if len(kinds) > 1 {
		return nil, &ValidationError{Path: path, Msg: fmt.Sprintf("one action per step, got %s", strings.Join(kinds, ", "))}
	}

	kind := kinds[0]
	v := fields.nodes[kind]
	wait, err := optionalScalar(fields.nodes["wait"], path+".wait")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "goto":
		url, err := scalarValue(v, path+".goto")
		if err != nil {
			return nil, err
		}
		return Goto{URL: url, Wait: wait}, nil
	case "fill":
		f, err := mappingStrings(v, path+".fill", "selector", "value")
		if err != nil {
			return nil, err
		}
		return Fill{Selector: f["selector"], Value: f["value"]}, nil
	case "click":
		sel, err := scalarValue(v, path+".click")
		if err != nil {
			return nil, err
		}
		return Click{Selector: sel, Wait: wait}, nil
	case "select":
		f, err := mappingStrings(v, path+".select", "selector", "value")
		if err != nil {
			return nil, err
		}
		return Select{Selector: f["selector"], Value: f["value"]}, nil
	case "upload":
		f, err := mappingStrings(v, path+".upload", "selector", "file")
		if err != nil {
			return nil, err
		}
		return Upload{Selector: f["selector"], File: f["file"]}, nil
	case "clear":
		sel, err := scalarValue(v, path+".clear")
		if err != nil {
			return nil, err
		}
		return Clear{Selector: sel}, nil
	case "login":
		key, err := scalarValue(v, path+".login")
		if err != nil {
			return nil, err
		}
		return Login{Account: key}, nil
	case "logout":
		return Logout{}, nil
	default:
		return Unsupported{Name: kind}, nil
	}
}

func parseWaitAction(n *yaml.Node, path string) (Action, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, &ValidationError{Path: path, Msg: "expected a selector, URL fragment, or milliseconds"}
	}
	if n.Tag == "!!int" {
		ms, err := strconv.Atoi(n.Value)
		if err != nil || ms < 0 {
			return nil, &ValidationError{Path: path, Msg: "expected non-negative milliseconds"}
		}
		return Wait{Millis: ms}, nil
	}
	if strings.HasPrefix(n.Value, "/") {
		return Wait{URL: n.Value}, nil
	}
	return Wait{Selector: n.Value}, nil
}

func parseExpectations(n *yaml.Node, path string) ([]Expectation, error) {
	// A single mapping is accepted as shorthand for a one-entry list.
	if n.Kind == yaml.MappingNode {
		e, err := parseExpectEntry(n, path)
		if err != nil {
			return nil, err
		}
		return []Expectation{e}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, &ValidationError{Path: path, Msg: "expected a list of assertions"}
	}

	var out []Expectation
	for i, entry := range n.Content {
		e, err := parseExpectEntry(entry, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseExpectEntry(n *yaml.Node, path string) (Expectation, error) {
	if n.Kind != yaml.MappingNode {
		return nil, &ValidationError{Path: path, Msg: "expected a mapping"}
	}

	fields := mappingNodes(n)
	var types []string
	for _, k := range fields.order {
		if k == "selector" {
			continue
		}
		types = append(types, k)
	}
	if len(types) == 0 {
		return nil, &ValidationError{Path: path, Msg: "missing assertion type"}
	}
	if len(types) > 1 {
		return nil, &ValidationError{Path: path, Msg: fmt.Sprintf("one assertion per entry, got %s", strings.Join(types, ", "))}
	}

	typ := types[0]
	v := fields.nodes[typ]
	selector, err := optionalScalar(fields.nodes["selector"], path+".selector")
	if err != nil {
		return nil, err
	}

	switch typ {
	case "url":
		expected, err := scalarValue(v, path+".url")
		if err != nil {
			return nil, err
		}
		return ExpectURL{Expected: expected}, nil
	case "url_contains":
		expected, err := scalarValue(v, path+".url_contains")
		if err != nil {
			return nil, err
		}
		return ExpectURLContains{Expected: expected}, nil
	case "url_matches":
		pattern, err := scalarValue(v, path+".url_matches")
		if err != nil {
			return nil, err
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, &ValidationError{Path: path + ".url_matches", Msg: fmt.Sprintf("invalid pattern: %v", err)}
		}
		return ExpectURLMatches{Pattern: pattern}, nil
	case "visible":
		sel, err := scalarValue(v, path+".visible")
		if err != nil {
			return nil, err
		}
		return ExpectVisible{Selector: sel}, nil
	case "hidden":
		sel, err := scalarValue(v, path+".hidden")
		if err != nil {
			return nil, err
		}
		return ExpectHidden{Selector: sel}, nil
	case "text_contains":
		text, err := scalarValue(v, path+".text_contains")
		if err != nil {
			return nil, err
		}
		return ExpectTextContains{Text: text, Selector: selector}, nil
	case "text":
		f, err := mappingStrings(v, path+".text", "selector", "value")
		if err != nil {
			return nil, err
		}
		return ExpectText{Selector: f["selector"], Expected: f["value"]}, nil
	case "value":
		f, err := mappingStrings(v, path+".value", "selector", "value")
		if err != nil {
			return nil, err
		}
		return ExpectValue{Selector: f["selector"], Expected: f["value"]}, nil
	default:
		return nil, &ValidationError{Path: path, Msg: fmt.Sprintf("unknown assertion type %q", typ)}
	}
}

func parseCapture(n *yaml.Node, path string) (bool, string, error) {
	if n.Kind == 0 || n.Tag == "!!null" {
		return false, "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return false, "", &ValidationError{Path: path, Msg: "expected bool or string"}
	}
	switch n.Tag {
	case "!!bool":
		on, err := strconv.ParseBool(n.Value)
		if err != nil {
			return false, "", &ValidationError{Path: path, Msg: "expected bool or string"}
		}
		return on, "", nil
	case "!!str":
		return true, n.Value, nil
	default:
		return false, "", &ValidationError{Path: path, Msg: "expected bool or string"}
	}
}

type orderedNodes struct {
	nodes map[string]*yaml.Node
	order []string
}

func mappingNodes(n *yaml.Node) orderedNodes {
	out := orderedNodes{nodes: make(map[string]*yaml.Node)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, dup := out.nodes[key]; !dup {
			out.order = append(out.order, key)
		}
		out.nodes[key] = n.Content[i+1]
	}
	return out
}

func scalarValue(n *yaml.Node, path string) (string, error) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", &ValidationError{Path: path, Msg: "expected a string"}
	}
	return n.Value, nil
}

func optionalScalar(n *yaml.Node, path string) (string, error) {
	if n == nil || n.Kind == 0 || n.Tag == "!!null" {
		return "", nil
	}
	return scalarValue(n, path)
}

func mappingStrings(n *yaml.Node, path string, required ...string) (map[string]string, error) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, &ValidationError{Path: path, Msg: fmt.Sprintf("expected a mapping with %s", strings.Join(required, ", "))}
	}
	fields := mappingNodes(n)
	out := make(map[string]string, len(required))
	for _, key := range required {
		v, ok := fields.nodes[key]
		if !ok {
			return nil, &ValidationError{Path: path + "." + key, Msg: "required"}
		}
		s, err := scalarValue(v, path+"."+key)
		if err != nil {
			return nil, err
		}
		out[key] = s
	}
	return out, nil
}

// Warnings reports non-fatal issues: account references not satisfied by the
// scenario's embedded accounts. An external accounts file may still supply
// them at run time, so these are not validation errors.
func Warnings(s *Scenario) []string {
	var warns []string
	has := func(key string) bool {
		_, ok := s.Accounts[key]
		return ok
	}
	for _, p := range s.Parts {
		if p.Account != "" && !has(p.Account) {
			warns = append(warns, fmt.Sprintf("part %d references undefined account %q", p.Index, p.Account))
		}
		for _, st := range p.Steps {
			if login, ok := st.Action.(Login); ok && !has(login.Account) {
				warns = append(warns, fmt.Sprintf("step %s references undefined account %q", st.ID, login.Account))
			}
		}
	}
	return warns
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	underscoreRuns      = regexp.MustCompile(`[\s_]+`)
)

// SanitizeFilename makes text safe for use as a path component: unsafe
// characters become underscores, runs collapse, and the result is trimmed to
// 50 runes.
func SanitizeFilename(text string) string {
	s := unsafeFilenameChars.ReplaceAllString(text, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if runes := []rune(s); len(runes) > 50 {
		s = strings.TrimRight(string(runes[:50]), "_")
	}
	return s
}

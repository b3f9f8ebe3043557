package scenario

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatText renders a scenario summary as human-readable text.
func FormatText(s *Scenario) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n", s.Meta.ID, s.Meta.Title)
	fmt.Fprintf(&b, "  priority: %s", s.Meta.Priority)
	if s.Meta.EstimatedTime > 0 {
		fmt.Fprintf(&b, "  est: %dmin", s.Meta.EstimatedTime)
	}
	b.WriteString("\n")
	if len(s.Meta.DependsOn) > 0 {
		fmt.Fprintf(&b, "  depends on: %s\n", strings.Join(s.Meta.DependsOn, ", "))
	}

	if len(s.Prerequisites) > 0 {
		b.WriteString("\nPrerequisites:\n")
		for _, p := range s.Prerequisites {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}

	if len(s.Accounts) > 0 {
		b.WriteString("\nAccounts:\n")
		for _, key := range sortedAccountKeys(s) {
			a := s.Accounts[key]
			role := a.Role
			if role == "" {
				role = "-"
			}
			fmt.Fprintf(&b, "  [%s] %s (%s)\n", key, a.Identifier, role)
		}
	}

	fmt.Fprintf(&b, "\nParts: %d  Steps: %d  Screenshots: %d\n",
		len(s.Parts), s.TotalSteps(), s.TotalCaptures())

	return b.String()
}

// FormatSteps renders the step listing, optionally restricted to one part
// (0 lists all).
func FormatSteps(s *Scenario, partFilter int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n", s.Meta.ID, s.Meta.Title)
	b.WriteString(strings.Repeat("-", 50) + "\n")

	steps, captures := 0, 0
	for _, p := range s.Parts {
		if partFilter != 0 && p.Index != partFilter {
			continue
		}
		account := p.Account
		if account == "" {
			account = "none"
		}
		fmt.Fprintf(&b, "\nPart %d: %s (account: %s)\n", p.Index, p.Title, account)

		for _, st := range p.Steps {
			kind := "verify"
			if st.Action != nil {
				kind = st.Action.Kind()
			}
			marker := ""
			if st.Capture {
				marker = " [capture]"
				captures++
			}
			fmt.Fprintf(&b, "  [%s] %s (%s)%s\n", st.ID, st.Desc, kind, marker)
			steps++
		}
	}

	fmt.Fprintf(&b, "\nTotal: %d steps, %d screenshots\n", steps, captures)
	return b.String()
}

// FormatJSON renders the scenario structure as JSON. Account secrets are
// not included.
func FormatJSON(s *Scenario) (string, error) {
	doc := map[string]any{
		"version": s.Version,
		"meta": map[string]any{
			"id":             s.Meta.ID,
			"title":          s.Meta.Title,
			"priority":       string(s.Meta.Priority),
			"estimated_time": s.Meta.EstimatedTime,
			"depends_on":     emptyIfNil(s.Meta.DependsOn),
		},
		"prerequisites": emptyIfNil(s.Prerequisites),
		"notes":         emptyIfNil(s.Notes),
		"accounts":      accountsDoc(s),
		"steps":         partsDoc(s),
		"summary": map[string]any{
			"total_parts":       len(s.Parts),
			"total_steps":       s.TotalSteps(),
			"total_screenshots": s.TotalCaptures(),
		},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal scenario: %w", err)
	}
	return string(data), nil
}

func accountsDoc(s *Scenario) map[string]any {
	out := make(map[string]any, len(s.Accounts))
	for key, a := range s.Accounts {
		out[key] = map[string]any{"identifier": a.Identifier, "role": a.Role}
	}
	return out
}

func partsDoc(s *Scenario) []map[string]any {
	parts := make([]map[string]any, 0, len(s.Parts))
	for _, p := range s.Parts {
		items := make([]map[string]any, 0, len(p.Steps))
		for _, st := range p.Steps {
			item := map[string]any{"id": st.ID, "desc": st.Desc}
			if st.Action != nil {
				item["action"] = actionDoc(st.Action)
			}
			if len(st.Expect) > 0 {
				expects := make([]map[string]any, 0, len(st.Expect))
				for _, e := range st.Expect {
					expects = append(expects, expectDoc(e))
				}
				item["expect"] = expects
			}
			if st.Capture {
				if st.CaptureName != "" {
					item["screenshot"] = st.CaptureName
				} else {
					item["screenshot"] = true
				}
			}
			items = append(items, item)
		}
		part := map[string]any{"part": p.Index, "title": p.Title, "items": items}
		if p.Account != "" {
			part["account"] = p.Account
		}
		parts = append(parts, part)
	}
	return parts
}

func actionDoc(a Action) map[string]any {
	switch v := a.(type) {
	case Goto:
		doc := map[string]any{"goto": v.URL}
		if v.Wait != "" {
			doc["wait"] = v.Wait
		}
		return doc
	case Fill:
		return map[string]any{"fill": map[string]any{"selector": v.Selector, "value": v.Value}}
	case Click:
		doc := map[string]any{"click": v.Selector}
		if v.Wait != "" {
			doc["wait"] = v.Wait
		}
		return doc
	case Select:
		return map[string]any{"select": map[string]any{"selector": v.Selector, "value": v.Value}}
	case Upload:
		return map[string]any{"upload": map[string]any{"selector": v.Selector, "file": v.File}}
	case Clear:
		return map[string]any{"clear": v.Selector}
	case Login:
		return map[string]any{"login": v.Account}
	case Logout:
		return map[string]any{"logout": true}
	case Wait:
		switch {
		case v.Millis > 0:
			return map[string]any{"wait": v.Millis}
		case v.URL != "":
			return map[string]any{"wait": v.URL}
		default:
			return map[string]any{"wait": v.Selector}
		}
	default:
		return map[string]any{a.Kind(): nil}
	}
}

func expectDoc(e Expectation) map[string]any {
	switch v := e.(type) {
	case ExpectURL:
		return map[string]any{"url": v.Expected}
	case ExpectURLContains:
		return map[string]any{"url_contains": v.Expected}
	case ExpectURLMatches:
		return map[string]any{"url_matches": v.Pattern}
	case ExpectVisible:
		return map[string]any{"visible": v.Selector}
	case ExpectHidden:
		return map[string]any{"hidden": v.Selector}
	case ExpectTextContains:
		doc := map[string]any{"text_contains": v.Text}
		if v.Selector != "" {
			doc["selector"] = v.Selector
		}
		return doc
	case ExpectText:
		return map[string]any{"text": map[string]any{"selector": v.Selector, "value": v.Expected}}
	case ExpectValue:
		return map[string]any{"value": map[string]any{"selector": v.Selector, "value": v.Expected}}
	default:
		return map[string]any{e.Type(): nil}
	}
}

func sortedAccountKeys(s *Scenario) []string {
	keys := make([]string, 0, len(s.Accounts))
	for k := range s.Accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

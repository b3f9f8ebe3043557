// Package report persists and renders scenario run results. Everything
// here is a pure function of recorded data; nothing re-executes steps.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/stagewright/internal/scenario"
)

// FileName is the results document written into every run directory.
const FileName = "results.json"

// Save writes the results document into dir and returns its path. The
// write goes through a temp file and rename so readers never observe a
// partial document.
func Save(result *scenario.RunResult, dir string) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("results dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}

// Load reads a saved results document. The argument may be the file
// itself or a run directory containing one.
func Load(path string) (*scenario.RunResult, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", path, err)
	}
	var result scenario.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return &result, nil
}

// Render produces a plain text report grouped by part, in scenario
// order.
func Render(result *scenario.RunResult) string {
	var b strings.Builder
	sum := result.Summary()

	fmt.Fprintf(&b, "Scenario: %s %s\n", result.ScenarioID, result.Title)
	fmt.Fprintf(&b, "Status:   %s\n", result.Status)
	fmt.Fprintf(&b, "Started:  %s\n", result.StartedAt.Format(time.RFC3339))
	if !result.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", durationText(sum.DurationMS))
	}

	for _, part := range result.Parts {
		fmt.Fprintf(&b, "\nPart %d: %s (%s)\n", part.Part, part.Title, part.Status)
		for _, step := range part.Steps {
			fmt.Fprintf(&b, "  [%s] %-40s %s  %s\n", step.StepID, step.Desc, statusMark(step.Status), durationText(step.DurationMS))
			for _, a := range step.Assertions {
				if !a.Passed {
					fmt.Fprintf(&b, "        %s: expected %q, actual %q\n", a.Type, a.Expected, a.Actual)
				}
			}
			if step.Error != "" {
				fmt.Fprintf(&b, "        error: %s\n", step.Error)
			}
			if step.Screenshot != "" {
				fmt.Fprintf(&b, "        screenshot: %s\n", step.Screenshot)
			}
		}
	}

	fmt.Fprintf(&b, "\nSummary: %d steps, %d passed, %d failed, %d skipped\n",
		sum.TotalSteps, sum.Passed, sum.Failed, sum.Skipped)
	return b.String()
}

// RenderMarkdown produces a Markdown report with a summary table and a
// section per part. When baseDir is non-empty, screenshot paths are
// made relative to it so the report embeds images living next to it.
func RenderMarkdown(result *scenario.RunResult, baseDir string) string {
	var b strings.Builder
	sum := result.Summary()

	fmt.Fprintf(&b, "# %s: %s\n\n", result.ScenarioID, result.Title)
	fmt.Fprintf(&b, "**Status: %s**\n\n", result.Status)
	fmt.Fprintf(&b, "- Started: %s\n", result.StartedAt.Format(time.RFC3339))
	if !result.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "- Completed: %s\n", result.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Duration: %s\n\n", durationText(sum.DurationMS))

	b.WriteString("| Total | Passed | Failed | Skipped |\n")
	b.WriteString("|------:|-------:|-------:|--------:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", sum.TotalSteps, sum.Passed, sum.Failed, sum.Skipped)

	for _, part := range result.Parts {
		fmt.Fprintf(&b, "\n## Part %d: %s (%s)\n\n", part.Part, part.Title, part.Status)
		b.WriteString("| Step | Description | Status | Duration |\n")
		b.WriteString("|------|-------------|--------|---------:|\n")
		for _, step := range part.Steps {
			fmt.Fprintf(&b, "| %s | %s | %s %s | %s |\n",
				step.StepID, escapeCell(step.Desc), statusMark(step.Status), step.Status, durationText(step.DurationMS))
		}

		for _, step := range part.Steps {
			if step.Error != "" {
				fmt.Fprintf(&b, "\n- `%s` %s\n", step.StepID, escapeCell(step.Error))
				for _, a := range step.Assertions {
					if !a.Passed {
						fmt.Fprintf(&b, "  - %s: expected `%s`, actual `%s`\n", a.Type, a.Expected, a.Actual)
					}
				}
			}
		}

		for _, step := range part.Steps {
			if step.Screenshot == "" {
				continue
			}
			path := step.Screenshot
			if baseDir != "" {
				if rel, err := filepath.Rel(baseDir, path); err == nil {
					path = rel
				}
			}
			fmt.Fprintf(&b, "\n![step-%s](%s)\n", step.StepID, path)
		}
	}

	return b.String()
}

func statusMark(status scenario.Status) string {
	switch status {
	case scenario.StatusPassed:
		return "✓"
	case scenario.StatusFailed:
		return "✗"
	case scenario.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

func durationText(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

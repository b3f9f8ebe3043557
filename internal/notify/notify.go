// Package notify posts run summaries to a configured webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/stagewright/internal/scenario"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 2
)

// Notifier delivers one summary per finished run. Failures are for the
// caller to log; a webhook must never fail a run.
type Notifier struct {
	URL    string
	client *http.Client
}

func New(url string) *Notifier {
	return &Notifier{URL: url, client: &http.Client{Timeout: requestTimeout}}
}

type payload struct {
	ScenarioID  string `json:"scenario_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	DurationMS  int64  `json:"duration_ms"`
	ResultsPath string `json:"results_path"`
}

// Send posts the run summary. Transport errors and 5xx responses are
// retried once after a short backoff; a 4xx response is final.
func (n *Notifier) Send(ctx context.Context, result *scenario.RunResult, resultsPath string) error {
	sum := result.Summary()
	body, err := json.Marshal(payload{
		ScenarioID:  result.ScenarioID,
		Title:       result.Title,
		Status:      string(result.Status),
		Total:       sum.TotalSteps,
		Passed:      sum.Passed,
		Failed:      sum.Failed,
		Skipped:     sum.Skipped,
		DurationMS:  sum.DurationMS,
		ResultsPath: resultsPath,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", maxAttempts, lastErr)
}

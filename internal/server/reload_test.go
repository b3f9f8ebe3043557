package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const gatedDoc = `
version: 1
meta:
  id: TC-12
  title: Gated drill
steps:
  - part: 1
    title: QA
    account: qa
    items:
      - id: "1-1"
        desc: Open the QA dashboard
        action: {goto: "/qa"}
`

func writeAccounts(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write accounts: %v", err)
	}
}

func TestNewReloaderMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)
	if _, err := NewReloader(srv.mgr, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing accounts file")
	}
}

// stepOnFreshSession creates a session for gatedDoc and advances once.
// The first step needs the qa account, so it only passes once the
// manager's table carries it.
func stepOnFreshSession(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	id := createSessionFrom(t, h, gatedDoc)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/step", nil)
	return rec.Code, rec.Body.String()
}

func createSessionFrom(t *testing.T, h http.Handler, doc string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/sessions", map[string]any{"scenario": doc})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: HTTP %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	decode(t, rec, &created)
	return created.SessionID
}

func TestReloaderSwapsAccounts(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	path := filepath.Join(t.TempDir(), "accounts.yaml")
	writeAccounts(t, path, "ops:\n  email: ops@example.com\n  password: ops\n")

	reloader, err := NewReloader(srv.mgr, path)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- reloader.Run(ctx) }()

	// The qa account is not on file yet, so the switch faults.
	code, body := stepOnFreshSession(t, h)
	if code != http.StatusInternalServerError || !strings.Contains(body, "qa") {
		t.Fatalf("expected switch fault before reload, got HTTP %d: %s", code, body)
	}

	writeAccounts(t, path, "ops:\n  email: ops@example.com\n  password: ops\nqa:\n  email: qa@example.com\n  password: qa\n")

	// A write settles after the 500ms debounce. Poll with fresh
	// sessions until the new table takes effect.
	deadline := time.Now().Add(10 * time.Second)
	for {
		code, body = stepOnFreshSession(t, h)
		if code == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("accounts never reloaded, last HTTP %d: %s", code, body)
		}
		time.Sleep(200 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

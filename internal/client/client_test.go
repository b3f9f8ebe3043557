package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/page/pagetest"
	"github.com/ppiankov/stagewright/internal/server"
)

const clientDoc = `
version: 1
meta:
  id: TC-13
  title: Client drill
steps:
  - part: 1
    title: Guest
    items:
      - id: "1-1"
        desc: Open the landing page
        action: {goto: "/"}
      - id: "1-2"
        desc: Open the pricing page
        action: {goto: "/pricing"}
`

// startTestServer serves the session API on a loopback port.
func startTestServer(t *testing.T) string {
	t.Helper()

	mgr := manager.New(manager.Config{
		Provider:   &pagetest.Provider{},
		BaseURL:    "https://app.example.com",
		OutputRoot: t.TempDir(),
	})
	srv := server.New(server.Config{Addr: "127.0.0.1:0"}, mgr)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return lis.Addr().String()
}

func TestClientLifecycle(t *testing.T) {
	addr := startTestServer(t)
	c := New(addr)
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" || health.Sessions != 0 {
		t.Errorf("health = %+v", health)
	}

	created, err := c.Create(ctx, CreateRequest{Scenario: clientDoc})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ScenarioID != "TC-13" || created.TotalSteps != 2 {
		t.Errorf("created = %+v", created)
	}

	exec, err := c.Step(ctx, created.SessionID, false, false)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if exec.StepID != "1-1" || exec.NextStep != "1-2" {
		t.Errorf("step = %s next %s, want 1-1/1-2", exec.StepID, exec.NextStep)
	}

	exec, err = c.Step(ctx, created.SessionID, false, false)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !exec.IsCompleted {
		t.Error("expected completion after last step")
	}

	sessions, err := c.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != created.SessionID {
		t.Errorf("sessions = %+v", sessions)
	}

	info, err := c.Info(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Status != manager.StatusCompleted || info.Passed != 2 {
		t.Errorf("info = %+v", info)
	}

	ended, err := c.End(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Status != "passed" || ended.Passed != 2 {
		t.Errorf("ended = %+v", ended)
	}

	sessions, err = c.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions after end, got %d", len(sessions))
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	addr := startTestServer(t)
	c := New(addr)
	ctx := context.Background()

	_, err := c.Step(ctx, "sess-missing", false, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.Status)
	}

	_, err = c.Create(ctx, CreateRequest{})
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.Status)
	}
	if apiErr.Message == "" {
		t.Error("expected error message from server body")
	}
}

func TestClientUnreachableServer(t *testing.T) {
	// Reserve a port and close it so nothing listens there.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()

	c := New(addr)
	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

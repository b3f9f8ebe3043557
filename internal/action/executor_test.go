package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/page/pagetest"
	"github.com/ppiankov/stagewright/internal/scenario"
)

func testExecutor() *Executor {
	table := accounts.NewTable(map[string]accounts.Account{
		"admin": {Identifier: "admin@example.com", Secret: "pw"},
	})
	return &Executor{
		Accounts:    table,
		BaseURL:     "https://app.example.com",
		WaitTimeout: 200 * time.Millisecond,
	}
}

func TestExecuteGoto(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantURL string
	}{
		{"relative", "/login", "https://app.example.com/login"},
		{"fragment", "#/settings", "https://app.example.com#/settings"},
		{"absolute", "https://other.example.com/x", "https://other.example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testExecutor()
			pg := &pagetest.Fake{}
			if err := e.Execute(context.Background(), pg, scenario.Goto{URL: tt.target}); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if pg.URL != tt.wantURL {
				t.Errorf("navigated to %s, want %s", pg.URL, tt.wantURL)
			}
		})
	}
}

func TestExecuteGotoNoBaseURL(t *testing.T) {
	e := &Executor{}
	err := e.Execute(context.Background(), &pagetest.Fake{}, scenario.Goto{URL: "/login"})
	if err == nil || !strings.Contains(err.Error(), "base url") {
		t.Errorf("err = %v, want base url complaint", err)
	}
}

func TestExecuteGotoWithWait(t *testing.T) {
	e := testExecutor()
	pg := &pagetest.Fake{}
	// Navigation lands on the target URL, so the wait resolves on the
	// first poll.
	err := e.Execute(context.Background(), pg, scenario.Goto{URL: "/dashboard", Wait: "/dashboard"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteFormActions(t *testing.T) {
	e := testExecutor()
	pg := &pagetest.Fake{}
	ctx := context.Background()

	if err := e.Execute(ctx, pg, scenario.Fill{Selector: "#email", Value: "a@b.c"}); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if pg.Values["#email"] != "a@b.c" {
		t.Errorf("fill did not stick: %v", pg.Values)
	}
	if err := e.Execute(ctx, pg, scenario.Select{Selector: "#role", Value: "admin"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := e.Execute(ctx, pg, scenario.Clear{Selector: "#email"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if pg.Values["#email"] != "" {
		t.Errorf("clear did not empty the field: %v", pg.Values)
	}
	if err := e.Execute(ctx, pg, scenario.Upload{Selector: "#file", File: "fixtures/a.pdf"}); err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestExecuteClickFailure(t *testing.T) {
	e := testExecutor()
	pg := &pagetest.Fake{FailOn: map[string]error{"click": errors.New("detached")}}
	err := e.Execute(context.Background(), pg, scenario.Click{Selector: "#go"})
	if err == nil || !strings.Contains(err.Error(), "click #go") {
		t.Errorf("err = %v, want wrapped click failure", err)
	}
}

func TestExecuteLogin(t *testing.T) {
	e := testExecutor()
	pg := &pagetest.Fake{}
	if err := e.Execute(context.Background(), pg, scenario.Login{Account: "admin"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if pg.Authenticated != "admin" {
		t.Errorf("authenticated = %q, want admin", pg.Authenticated)
	}

	err := e.Execute(context.Background(), pg, scenario.Login{Account: "ghost"})
	var unknown *accounts.UnknownAccountError
	if !errors.As(err, &unknown) || unknown.Key != "ghost" {
		t.Errorf("err = %v, want UnknownAccountError for ghost", err)
	}
}

func TestExecuteLogout(t *testing.T) {
	e := testExecutor()
	pg := &pagetest.Fake{Authenticated: "admin"}
	if err := e.Execute(context.Background(), pg, scenario.Logout{}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if pg.Authenticated != "" {
		t.Errorf("still authenticated as %q", pg.Authenticated)
	}
}

func TestExecuteWaitMillis(t *testing.T) {
	e := testExecutor()
	start := time.Now()
	if err := e.Execute(context.Background(), &pagetest.Fake{}, scenario.Wait{Millis: 10}); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("wait returned too early")
	}
}

func TestExecuteWaitSelector(t *testing.T) {
	e := testExecutor()
	pg := &pagetest.Fake{Visible: map[string]bool{"#app": true}}
	if err := e.Execute(context.Background(), pg, scenario.Wait{Selector: "#app"}); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestExecuteWaitTimesOut(t *testing.T) {
	e := testExecutor()
	e.WaitTimeout = 50 * time.Millisecond
	err := e.Execute(context.Background(), &pagetest.Fake{}, scenario.Wait{Selector: "#never"})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestExecuteUnsupported(t *testing.T) {
	e := testExecutor()
	err := e.Execute(context.Background(), &pagetest.Fake{}, scenario.Unsupported{Name: "hover"})
	var unsupported *UnsupportedActionError
	if !errors.As(err, &unsupported) || unsupported.Kind != "hover" {
		t.Errorf("err = %v, want UnsupportedActionError{hover}", err)
	}
}

// waiterPage upgrades the fake with native waits so the executor's
// capability detection can be observed.
type waiterPage struct {
	*pagetest.Fake
	urlWaits      []string
	selectorWaits []string
}

func (w *waiterPage) WaitForURL(ctx context.Context, fragment string, timeout time.Duration) error {
	w.urlWaits = append(w.urlWaits, fragment)
	return nil
}

func (w *waiterPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	w.selectorWaits = append(w.selectorWaits, selector)
	return nil
}

func TestExecutePrefersNativeWaits(t *testing.T) {
	e := testExecutor()
	pg := &waiterPage{Fake: &pagetest.Fake{}}
	ctx := context.Background()

	if err := e.Execute(ctx, pg, scenario.Click{Selector: "#go", Wait: "/done"}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if len(pg.urlWaits) != 1 || pg.urlWaits[0] != "/done" {
		t.Errorf("urlWaits = %v, want [/done]", pg.urlWaits)
	}

	if err := e.Execute(ctx, pg, scenario.Wait{Selector: ".ready"}); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(pg.selectorWaits) != 1 || pg.selectorWaits[0] != ".ready" {
		t.Errorf("selectorWaits = %v, want [.ready]", pg.selectorWaits)
	}
}

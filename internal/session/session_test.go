package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/page/pagetest"
	"github.com/ppiankov/stagewright/internal/scenario"
)

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Version: 1,
		Meta:    scenario.Meta{ID: "TC-9", Title: "Checkout"},
		Parts: []scenario.Part{
			{Index: 1, Title: "Guest", Steps: []scenario.Step{
				{ID: "1-1", Desc: "open shop"},
			}},
			{Index: 2, Title: "Admin", Account: "admin", Steps: []scenario.Step{
				{ID: "2-1", Desc: "open dashboard", Capture: true},
			}},
		},
	}
}

func testTable() *accounts.Table {
	return accounts.NewTable(map[string]accounts.Account{
		"admin":  {Identifier: "admin@example.com", Secret: "pw"},
		"viewer": {Identifier: "viewer@example.com", Secret: "pw"},
	})
}

func newTestSession(t *testing.T) (*Session, *pagetest.Provider) {
	t.Helper()
	provider := &pagetest.Provider{}
	s := New(testScenario(), provider, testTable(), t.TempDir())
	return s, provider
}

func TestSwitchAccount(t *testing.T) {
	s, provider := newTestSession(t)
	ctx := context.Background()

	if err := s.SwitchAccount(ctx, "admin"); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	if len(provider.Pages) != 1 || provider.Pages[0].Authenticated != "admin" {
		t.Fatalf("pages = %+v, want one page authenticated as admin", provider.Pages)
	}
	if s.CurrentAccount() != "admin" {
		t.Errorf("current = %q", s.CurrentAccount())
	}

	// Same key is a no-op.
	if err := s.SwitchAccount(ctx, "admin"); err != nil {
		t.Fatalf("SwitchAccount again: %v", err)
	}
	if len(provider.Pages) != 1 {
		t.Errorf("no-op switch acquired a page")
	}

	// A different key tears the page down and authenticates fresh.
	if err := s.SwitchAccount(ctx, "viewer"); err != nil {
		t.Fatalf("SwitchAccount viewer: %v", err)
	}
	if !provider.Pages[0].Closed {
		t.Error("previous page not closed")
	}
	if len(provider.Pages) != 2 || provider.Pages[1].Authenticated != "viewer" {
		t.Errorf("pages = %+v", provider.Pages)
	}

	// Empty key drops authentication entirely.
	if err := s.SwitchAccount(ctx, ""); err != nil {
		t.Fatalf("SwitchAccount empty: %v", err)
	}
	if s.CurrentAccount() != "" {
		t.Errorf("current = %q, want empty", s.CurrentAccount())
	}
	if len(provider.Pages) != 3 || provider.Pages[2].Authenticated != "" {
		t.Errorf("pages = %+v, want fresh unauthenticated page", provider.Pages)
	}
}

func TestSwitchAccountUnknownLeavesSessionIntact(t *testing.T) {
	s, provider := newTestSession(t)
	ctx := context.Background()
	if err := s.SwitchAccount(ctx, "admin"); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}

	err := s.SwitchAccount(ctx, "ghost")
	var unknown *accounts.UnknownAccountError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownAccountError", err)
	}
	if s.CurrentAccount() != "admin" || provider.Pages[0].Closed {
		t.Errorf("failed switch disturbed the session: current=%q closed=%v",
			s.CurrentAccount(), provider.Pages[0].Closed)
	}
}

func TestSwitchAccountLoginFailure(t *testing.T) {
	provider := &pagetest.Provider{Prepare: func(f *pagetest.Fake) {
		f.FailOn = map[string]error{"authenticate": errors.New("bad credentials")}
	}}
	s := New(testScenario(), provider, testTable(), t.TempDir())

	err := s.SwitchAccount(context.Background(), "admin")
	if err == nil || !strings.Contains(err.Error(), "login as admin") {
		t.Fatalf("err = %v", err)
	}
	if s.CurrentAccount() != "" {
		t.Errorf("current = %q after failed login", s.CurrentAccount())
	}
	if len(provider.Pages) != 1 || !provider.Pages[0].Closed {
		t.Errorf("failed login page not closed: %+v", provider.Pages)
	}
}

func TestRecordResultLifecycle(t *testing.T) {
	s, _ := newTestSession(t)
	scn := s.Scenario()

	if err := s.RecordResult(scenario.StepResult{StepID: "1-1"}); err == nil {
		t.Error("recording before any part started should fail")
	}

	s.StartPart(&scn.Parts[0])
	s.StartPart(&scn.Parts[0]) // repeated start is a no-op
	if len(s.Result().Parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(s.Result().Parts))
	}

	if err := s.RecordResult(scenario.StepResult{StepID: "1-1", Status: scenario.StatusPassed}); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	s.FinishPart()
	s.Finish()
	s.Finish() // idempotent

	err := s.RecordResult(scenario.StepResult{StepID: "1-1"})
	var finished *SessionFinishedError
	if !errors.As(err, &finished) {
		t.Errorf("err = %v, want SessionFinishedError", err)
	}
	if s.Result().Status != scenario.StatusPassed {
		t.Errorf("status = %s", s.Result().Status)
	}
}

func TestScreenshotPath(t *testing.T) {
	s, _ := newTestSession(t)
	part := &scenario.Part{Index: 1, Title: "未認証アクセス制御"}

	got := s.ScreenshotPath(part, &scenario.Step{ID: "1-1", Desc: "ログインページに遷移"})
	want := filepath.Join(s.OutputDir(), "part-01_未認証アクセス制御", "step-1-1_ログインページに遷移.png")
	if got != want {
		t.Errorf("path = %s, want %s", got, want)
	}

	got = s.ScreenshotPath(part, &scenario.Step{ID: "1-2", Desc: "ignored", CaptureName: "dashboard home"})
	if !strings.HasSuffix(got, "step-1-2_dashboard_home.png") {
		t.Errorf("custom name path = %s", got)
	}
}

func TestCaptureScreenshot(t *testing.T) {
	s, provider := newTestSession(t)
	provider.Prepare = func(f *pagetest.Fake) { f.Shot = []byte("image-bytes") }

	part := &s.Scenario().Parts[1]
	path, err := s.CaptureScreenshot(context.Background(), part, &part.Steps[0])
	if err != nil {
		t.Fatalf("CaptureScreenshot: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read screenshot: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("screenshot content = %q", data)
	}
}

func TestCreateOutputDir(t *testing.T) {
	base := t.TempDir()

	first, err := CreateOutputDir(base, "TC-9")
	if err != nil {
		t.Fatalf("CreateOutputDir: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(first), "TC-9_") {
		t.Errorf("dir = %s", first)
	}

	second, err := CreateOutputDir(base, "TC-9")
	if err != nil {
		t.Fatalf("CreateOutputDir again: %v", err)
	}
	if second == first {
		t.Errorf("collision not suffixed: %s", second)
	}
	for _, dir := range []string{first, second} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

package page_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/stagewright/internal/page"
	"github.com/ppiankov/stagewright/internal/page/pagetest"
)

func TestWaitVisible(t *testing.T) {
	pg := &pagetest.Fake{Visible: map[string]bool{"#app": true}}
	if err := page.WaitVisible(context.Background(), pg, "#app", time.Second); err != nil {
		t.Fatalf("WaitVisible: %v", err)
	}
}

func TestWaitVisibleTimeout(t *testing.T) {
	err := page.WaitVisible(context.Background(), &pagetest.Fake{}, "#never", 50*time.Millisecond)
	if !errors.Is(err, page.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitVisiblePageFault(t *testing.T) {
	boom := errors.New("page gone")
	pg := &pagetest.Fake{FailOn: map[string]error{"is_visible": boom}}
	err := page.WaitVisible(context.Background(), pg, "#app", time.Second)
	if !errors.Is(err, boom) || errors.Is(err, page.ErrTimeout) {
		t.Errorf("err = %v, want the page fault, not a timeout", err)
	}
}

func TestWaitURLContains(t *testing.T) {
	pg := &pagetest.Fake{URL: "https://app.example.com/dashboard?tab=1"}
	if err := page.WaitURLContains(context.Background(), pg, "/dashboard", time.Second); err != nil {
		t.Fatalf("WaitURLContains: %v", err)
	}
	err := page.WaitURLContains(context.Background(), pg, "/settings", 50*time.Millisecond)
	if !errors.Is(err, page.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := page.WaitVisible(ctx, &pagetest.Fake{}, "#app", time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

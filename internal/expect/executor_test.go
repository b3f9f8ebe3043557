package expect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/stagewright/internal/page/pagetest"
	"github.com/ppiankov/stagewright/internal/scenario"
)

func verify(t *testing.T, pg *pagetest.Fake, exp scenario.Expectation) scenario.AssertionResult {
	t.Helper()
	e := &Executor{WaitTimeout: 100 * time.Millisecond}
	res, err := e.Verify(context.Background(), pg, exp)
	if err != nil {
		t.Fatalf("Verify(%s): %v", exp.Type(), err)
	}
	return res
}

func TestVerifyURL(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		expected string
		want     bool
	}{
		{"exact", "https://app.example.com/login", "https://app.example.com/login", true},
		{"mismatch", "https://app.example.com/login", "https://app.example.com/home", false},
		{"path", "https://app.example.com/dashboard?tab=1", "/dashboard", true},
		{"path trailing slash", "https://app.example.com/dashboard/", "/dashboard", true},
		{"path mismatch", "https://app.example.com/login", "/dashboard", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := verify(t, &pagetest.Fake{URL: tt.current}, scenario.ExpectURL{Expected: tt.expected})
			if res.Passed != tt.want {
				t.Errorf("passed = %v, want %v (actual %q)", res.Passed, tt.want, res.Actual)
			}
		})
	}
}

func TestVerifyURLContains(t *testing.T) {
	pg := &pagetest.Fake{URL: "https://app.example.com/orders/42"}
	if res := verify(t, pg, scenario.ExpectURLContains{Expected: "/orders/"}); !res.Passed {
		t.Errorf("passed = false, message %q", res.Message)
	}
	res := verify(t, pg, scenario.ExpectURLContains{Expected: "/invoices/"})
	if res.Passed || !strings.Contains(res.Message, "does not contain") {
		t.Errorf("res = %+v, want failed with message", res)
	}
}

func TestVerifyURLMatches(t *testing.T) {
	pg := &pagetest.Fake{URL: "https://app.example.com/orders/42"}
	if res := verify(t, pg, scenario.ExpectURLMatches{Pattern: `/orders/\d+`}); !res.Passed {
		t.Errorf("pattern did not match: %+v", res)
	}
	if res := verify(t, pg, scenario.ExpectURLMatches{Pattern: `/users/\d+`}); res.Passed {
		t.Errorf("pattern matched unexpectedly: %+v", res)
	}
}

func TestVerifyVisible(t *testing.T) {
	pg := &pagetest.Fake{Visible: map[string]bool{"#banner": true}}
	res := verify(t, pg, scenario.ExpectVisible{Selector: "#banner"})
	if !res.Passed || res.Actual != "#banner" {
		t.Errorf("res = %+v", res)
	}

	res = verify(t, pg, scenario.ExpectVisible{Selector: "#missing"})
	if res.Passed || res.Actual != "not found" {
		t.Errorf("res = %+v, want failed not found", res)
	}
}

func TestVerifyVisibleAlternatives(t *testing.T) {
	pg := &pagetest.Fake{Visible: map[string]bool{".toast": true}}
	res := verify(t, pg, scenario.ExpectVisible{Selector: "#banner, .toast"})
	if !res.Passed || res.Actual != ".toast" {
		t.Errorf("res = %+v, want .toast matched", res)
	}
}

func TestVerifyHidden(t *testing.T) {
	pg := &pagetest.Fake{Visible: map[string]bool{"#spinner": true}}
	if res := verify(t, pg, scenario.ExpectHidden{Selector: "#spinner"}); res.Passed {
		t.Errorf("visible element reported hidden: %+v", res)
	}
	// Absent elements count as hidden.
	if res := verify(t, pg, scenario.ExpectHidden{Selector: "#gone"}); !res.Passed {
		t.Errorf("absent element not hidden: %+v", res)
	}
}

func TestVerifyTextContains(t *testing.T) {
	pg := &pagetest.Fake{Texts: map[string]string{
		"":      "Welcome back, Admin! Your dashboard is ready.",
		".card": "Orders: 42",
	}}
	if res := verify(t, pg, scenario.ExpectTextContains{Text: "Welcome back"}); !res.Passed {
		t.Errorf("body text not matched: %+v", res)
	}
	if res := verify(t, pg, scenario.ExpectTextContains{Text: "Orders", Selector: ".card"}); !res.Passed {
		t.Errorf("scoped text not matched: %+v", res)
	}
	if res := verify(t, pg, scenario.ExpectTextContains{Text: "Goodbye"}); res.Passed {
		t.Errorf("unexpected match: %+v", res)
	}
}

func TestVerifyTextContainsTruncatesActual(t *testing.T) {
	long := strings.Repeat("x", 300)
	pg := &pagetest.Fake{Texts: map[string]string{"": long}}
	res := verify(t, pg, scenario.ExpectTextContains{Text: "nope"})
	if len(res.Actual) >= 300 || !strings.HasSuffix(res.Actual, "...") {
		t.Errorf("actual not truncated: %d chars", len(res.Actual))
	}
}

func TestVerifyText(t *testing.T) {
	pg := &pagetest.Fake{Texts: map[string]string{"h1": "  Dashboard  "}}
	if res := verify(t, pg, scenario.ExpectText{Selector: "h1", Expected: "Dashboard"}); !res.Passed {
		t.Errorf("trimmed text not matched: %+v", res)
	}
	if res := verify(t, pg, scenario.ExpectText{Selector: "h1", Expected: "Settings"}); res.Passed {
		t.Errorf("unexpected match: %+v", res)
	}
}

func TestVerifyValue(t *testing.T) {
	pg := &pagetest.Fake{Values: map[string]string{"#email": "a@b.c"}}
	if res := verify(t, pg, scenario.ExpectValue{Selector: "#email", Expected: "a@b.c"}); !res.Passed {
		t.Errorf("value not matched: %+v", res)
	}
	res := verify(t, pg, scenario.ExpectValue{Selector: "#email", Expected: "x@y.z"})
	if res.Passed || res.Actual != "a@b.c" {
		t.Errorf("res = %+v", res)
	}
}

func TestVerifyPageFaultIsError(t *testing.T) {
	boom := errors.New("target closed")
	pg := &pagetest.Fake{FailOn: map[string]error{"current_url": boom}}
	e := &Executor{}
	_, err := e.Verify(context.Background(), pg, scenario.ExpectURL{Expected: "/x"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want page fault surfaced as error", err)
	}
}

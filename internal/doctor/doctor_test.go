package doctor

import (
	"bytes"
	"strings"
	"testing"
)

func TestReport_AddCheckUpdatesCounts(t *testing.T) {
	var r Report
	r.AddCheck(CheckResult{Status: StatusPass})
	r.AddCheck(CheckResult{Status: StatusWarn})
	r.AddCheck(CheckResult{Status: StatusFail})
	r.AddCheck(CheckResult{Status: StatusFail})

	if r.Passed != 1 || r.Warnings != 1 || r.Errors != 2 {
		t.Fatalf("unexpected counts: %+v", r)
	}
	if !r.HasErrors() {
		t.Fatal("expected HasErrors to be true")
	}
}

func TestReport_PrintGroupsByCategory(t *testing.T) {
	var r Report
	r.AddCheck(CheckResult{Category: "Schema File", Message: "ok", Status: StatusPass})
	r.AddCheck(CheckResult{Category: "Migration State", Message: "missing tables", Status: StatusFail, FixHint: "run migrate"})

	var buf bytes.Buffer
	r.Print(&buf, false)
	out := buf.String()

	if !strings.Contains(out, "Schema File") || !strings.Contains(out, "Migration State") {
		t.Fatalf("expected both categories in output, got:\n%s", out)
	}
	if !strings.Contains(out, "Fix: run migrate") {
		t.Fatalf("expected fix hint for failing check, got:\n%s", out)
	}
	if !strings.Contains(out, "Summary: 1 passed, 0 warnings, 1 errors") {
		t.Fatalf("expected summary line, got:\n%s", out)
	}
}

func TestStatus_SymbolAndString(t *testing.T) {
	cases := []struct {
		status Status
		str    string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
	}
	for _, c := range cases {
		if c.status.String() != c.str {
			t.Fatalf("expected %s, got %s", c.str, c.status.String())
		}
		if c.status.Symbol() == "" {
			t.Fatalf("expected non-empty symbol for %s", c.str)
		}
	}
}

package reporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"sqlscout/internal/model"
)

func TestConsoleReport(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)

	diags := []model.Diagnostic{
		{
			Location: model.Location{FilePath: "b.py", Line: 4, Col: 2},
			Severity: model.SeverityError,
			SinkName: "query",
			Text:     "SELEC * FROM users",
			Reason:   "syntax error near \"SELEC\"",
		},
		{
			Location: model.Location{FilePath: "a.py", Line: 1, Col: 1},
			Severity: model.SeverityWarning,
			SinkName: "sql",
			Text:     "SELECT * FROM t",
			Reason:   "deprecated syntax",
		},
	}
	if err := r.Report(diags); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "b.py:4:2: [ERROR] query: syntax error") {
		t.Errorf("error line missing:\n%s", out)
	}
	if !strings.Contains(out, "a.py:1:1: [WARNING] sql: deprecated syntax") {
		t.Errorf("warning line missing:\n%s", out)
	}
	// Sorted by file, so a.py is reported first.
	if strings.Index(out, "a.py") > strings.Index(out, "b.py") {
		t.Error("diagnostics not sorted by location")
	}
	if !strings.Contains(out, "2 issues (1 errors, 1 warnings)") {
		t.Errorf("summary missing:\n%s", out)
	}
}

func TestConsoleReportClean(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	if err := NewConsoleReporterTo(&buf).Report(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No SQL issues found") {
		t.Errorf("clean message missing: %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("got %q", got)
	}
}

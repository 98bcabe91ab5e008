package reporter

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"

	"sqlscout/internal/model"
)

type ConsoleReporter struct {
	out io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo writes to the given writer, for tests.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

func (r *ConsoleReporter) Report(diags []model.Diagnostic) error {
	if len(diags) == 0 {
		fmt.Fprintln(r.out, color.GreenString("✔ No SQL issues found."))
		return nil
	}

	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Location, diags[j].Location
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})

	errors := 0
	for _, d := range diags {
		var levelColor *color.Color
		switch d.Severity {
		case model.SeverityError:
			levelColor = color.New(color.FgRed, color.Bold)
			errors++
		case model.SeverityWarning:
			levelColor = color.New(color.FgYellow, color.Bold)
		default:
			levelColor = color.New(color.FgWhite)
		}

		// Format: file:line:col: [LEVEL] sink: reason
		fmt.Fprintf(r.out, "%s: [%s] %s: %s\n",
			d.Location, levelColor.Sprint(d.Severity), d.SinkName, d.Reason)
		fmt.Fprintf(r.out, "\tSQL: %s\n", color.CyanString(truncate(d.Text, 80)))
		fmt.Fprintln(r.out)
	}

	fmt.Fprintf(r.out, "\n%s found %d issues (%d errors, %d warnings).\n",
		color.RedString("✘"), len(diags), errors, len(diags)-errors)
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

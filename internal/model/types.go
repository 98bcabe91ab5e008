package model

import "fmt"

// Location represents the physical location of a detected SQL string
type Location struct {
	FilePath string
	Line     int
	Col      int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Line, l.Col)
}

// Finding is one candidate SQL string reconstructed from source code.
// ByteOffset is the start of the originating statement; Line/Col are filled
// in from the per-file position index before the finding leaves the finder.
type Finding struct {
	SinkName   string
	ByteOffset uint32
	Line       int
	Col        int
	Text       string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s = %s", f.SinkName, f.Text)
}

// FileReport collects all findings of a single file, in statement order.
type FileReport struct {
	FilePath string
	Findings []Finding
}

// Severity defines how a diagnostic should be presented
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Diagnostic is the product of validating one finding: a SQL string that
// failed to parse under the configured dialect, with a best-effort reason.
type Diagnostic struct {
	Location Location
	Severity Severity
	SinkName string
	Text     string
	Reason   string
}

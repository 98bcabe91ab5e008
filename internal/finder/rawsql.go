package finder

import (
	"path/filepath"
	"strings"

	"sqlscout/internal/model"
)

// AnalyzeRawSQL treats the whole file as one SQL script. The finding is
// anchored at the top of the file and named after the file itself; the
// validator splits multi-statement scripts on its own.
func (f *Finder) AnalyzeRawSQL(path string, src []byte) *model.FileReport {
	report := &model.FileReport{FilePath: path}
	text := strings.TrimSpace(string(src))
	if len(text) < f.minLength {
		return report
	}
	report.Findings = append(report.Findings, model.Finding{
		SinkName: filepath.Base(path),
		Line:     1,
		Col:      1,
		Text:     text,
	})
	return report
}

package validator

import (
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"sqlscout/internal/model"
)

func newTestValidator() *Validator {
	return New(DialectGeneric, []string{"%s", "?"}, map[string]string{
		"NOTNULL": "IS NOT NULL",
		"ISNULL":  "IS NULL",
	}, zap.NewNop())
}

func finding(text string) model.Finding {
	return model.Finding{SinkName: "query", Line: 3, Col: 1, Text: text}
}

func TestValidateAcceptsValidSQL(t *testing.T) {
	v := newTestValidator()
	valid := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE id = 1 ORDER BY name",
		"INSERT INTO t (a, b) VALUES (1, 2)",
		"UPDATE t SET a = 1 WHERE b = 2",
		"DELETE FROM t WHERE id = 5",
		"SELECT * FROM a JOIN b ON a.id = b.a_id",
		"SELECT 1; SELECT 2",
	}
	for _, sql := range valid {
		if d := v.Validate("f.py", finding(sql)); d != nil {
			t.Errorf("%q flagged: %s", sql, d.Reason)
		}
	}
}

func TestValidateRejectsInvalidSQL(t *testing.T) {
	v := newTestValidator()
	invalid := []string{
		"SELEC * FROM users",
		"SELECT * FORM users",
		"SELECT * FROM users WHERE",
		"INSERT INTO VALUES (1)",
	}
	for _, sql := range invalid {
		d := v.Validate("f.py", finding(sql))
		if d == nil {
			t.Errorf("%q not flagged", sql)
			continue
		}
		if d.Severity != model.SeverityError {
			t.Errorf("%q severity = %s, want ERROR", sql, d.Severity)
		}
		if d.Location.FilePath != "f.py" || d.Location.Line != 3 {
			t.Errorf("%q location = %s", sql, d.Location)
		}
	}
}

func TestValidatePlaceholderSubstitution(t *testing.T) {
	v := newTestValidator()
	cases := []string{
		"SELECT * FROM users WHERE id = {PLACEHOLDER}",
		"SELECT * FROM users WHERE id = %s",
		"SELECT * FROM users WHERE id = ?",
	}
	for _, sql := range cases {
		if d := v.Validate("f.py", finding(sql)); d != nil {
			t.Errorf("%q flagged: %s", sql, d.Reason)
		}
	}
}

func TestValidateDialectMappings(t *testing.T) {
	v := newTestValidator()
	if d := v.Validate("f.py", finding("SELECT * FROM t WHERE a NOTNULL")); d != nil {
		t.Errorf("NOTNULL mapping not applied: %s", d.Reason)
	}
	if d := v.Validate("f.py", finding("SELECT * FROM t WHERE a ISNULL")); d != nil {
		t.Errorf("ISNULL mapping not applied: %s", d.Reason)
	}
}

func TestPrepareWholeWordOnly(t *testing.T) {
	v := newTestValidator()
	got := v.prepare("SELECT notnull_count FROM t WHERE a NOTNULL")
	if !strings.Contains(got, "notnull_count") {
		t.Errorf("column name rewritten: %q", got)
	}
	if !strings.Contains(got, "IS NOT NULL") {
		t.Errorf("operator not rewritten: %q", got)
	}
}

func TestValidateParallelWorkers(t *testing.T) {
	// One Validator per goroutine, all sharing the same mapping table, the
	// way the worker pool runs them.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := newTestValidator()
			for j := 0; j < 20; j++ {
				if d := v.Validate("f.py", finding("SELECT * FROM t WHERE a NOTNULL AND b ISNULL")); d != nil {
					t.Errorf("valid SQL flagged: %s", d.Reason)
					return
				}
				if d := v.Validate("f.py", finding("SELEC * FROM t")); d == nil {
					t.Error("invalid SQL not flagged")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestValidateAll(t *testing.T) {
	v := newTestValidator()
	report := &model.FileReport{
		FilePath: "f.py",
		Findings: []model.Finding{
			{SinkName: "a", Line: 1, Col: 1, Text: "SELECT * FROM users"},
			{SinkName: "b", Line: 2, Col: 1, Text: "SELEC * FROM users"},
			{SinkName: "c", Line: 3, Col: 1, Text: "DROP TABLE users"},
		},
	}
	diags := v.ValidateAll(report)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if diags[0].SinkName != "b" {
		t.Errorf("flagged %q, want b", diags[0].SinkName)
	}
}

func TestDescribeParseErrorRebasesLines(t *testing.T) {
	v := newTestValidator()
	d := v.Validate("f.py", model.Finding{SinkName: "q", Line: 10, Col: 5, Text: "SELECT *\nFORM users"})
	if d == nil {
		t.Fatal("expected a diagnostic")
	}
	// The grammar reports line 2 of the statement; rebased onto the file
	// that is line 11.
	if !strings.Contains(d.Reason, "line 11") {
		t.Errorf("reason %q does not carry a rebased line", d.Reason)
	}
}

func TestDialectFromString(t *testing.T) {
	log := zap.NewNop()
	if got := DialectFromString("MySQL", log); got != DialectMySQL {
		t.Errorf("got %v", got)
	}
	if got := DialectFromString("oracle", log); got != DialectGeneric {
		t.Errorf("got %v, want generic fallback", got)
	}
}

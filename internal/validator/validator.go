// Package validator checks reconstructed SQL strings against a real SQL
// grammar and turns parse failures into located diagnostics.
package validator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/mysql"
	_ "github.com/pingcap/tidb/parser/test_driver"
	"go.uber.org/zap"

	"sqlscout/internal/model"
)

// placeholderToken is what the finder substitutes for values it cannot
// resolve. Before validation it becomes a bare identifier the grammar
// accepts in value and name positions alike.
const placeholderToken = "{PLACEHOLDER}"

// Dialect selects grammar adjustments. Validation always runs on the same
// grammar; the dialect drives the SQL mode and the rewrite table applied
// before parsing.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectMariaDB  Dialect = "mariadb"
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgresql"
	DialectGeneric  Dialect = "generic"
)

// Supported lists the recognized dialect names.
func Supported() []string {
	return []string{
		string(DialectMySQL), string(DialectMariaDB), string(DialectSQLite),
		string(DialectPostgres), string(DialectGeneric),
	}
}

// DialectFromString maps a config value to a Dialect, defaulting to
// generic for unknown names.
func DialectFromString(s string, log *zap.Logger) Dialect {
	switch d := Dialect(strings.ToLower(s)); d {
	case DialectMySQL, DialectMariaDB, DialectSQLite, DialectPostgres, DialectGeneric:
		return d
	}
	log.Warn("unknown dialect, validating with the generic grammar", zap.String("dialect", s))
	return DialectGeneric
}

// mapping is one compiled dialect rewrite: a whole-word, case-insensitive
// pattern and its replacement.
type mapping struct {
	re *regexp.Regexp
	to string
}

// Validator parses candidate SQL. It owns a parser instance and is not
// safe for concurrent use; each worker builds its own.
type Validator struct {
	p        *parser.Parser
	dialect  Dialect
	markers  []string
	mappings []mapping
	log      *zap.Logger
}

func New(dialect Dialect, paramMarkers []string, mappings map[string]string, log *zap.Logger) *Validator {
	p := parser.New()
	switch dialect {
	case DialectSQLite, DialectPostgres, DialectGeneric:
		// ANSI quoting keeps double-quoted identifiers from reading as
		// string literals.
		p.SetSQLMode(mysql.ModeANSI)
	}
	v := &Validator{
		p:       p,
		dialect: dialect,
		markers: paramMarkers,
		log:     log,
	}
	// Whole-word matching keeps a mapping like NOTNULL from rewriting
	// column names that merely contain the word.
	for from, to := range mappings {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
		if err != nil {
			log.Warn("skipping unusable dialect mapping", zap.String("token", from), zap.Error(err))
			continue
		}
		v.mappings = append(v.mappings, mapping{re: re, to: to})
	}
	return v
}

// prepare rewrites a reconstructed string into something the grammar can
// judge: dialect spellings are normalized, then parameter markers and the
// placeholder token are replaced with a neutral identifier.
func (v *Validator) prepare(sql string) string {
	for _, m := range v.mappings {
		sql = m.re.ReplaceAllString(sql, m.to)
	}
	sql = strings.ReplaceAll(sql, placeholderToken, "PLACEHOLDER")
	for _, marker := range v.markers {
		sql = strings.ReplaceAll(sql, marker, "PLACEHOLDER")
	}
	return sql
}

// Validate parses one finding. A clean parse returns nil; a failed parse
// returns a diagnostic located at the finding's position in filePath.
func (v *Validator) Validate(filePath string, f model.Finding) *model.Diagnostic {
	prepared := v.prepare(f.Text)
	_, warns, err := v.p.ParseSQL(prepared)
	if err != nil {
		return &model.Diagnostic{
			Location: model.Location{FilePath: filePath, Line: f.Line, Col: f.Col},
			Severity: model.SeverityError,
			SinkName: f.SinkName,
			Text:     f.Text,
			Reason:   describeParseError(err, f.Line),
		}
	}
	if len(warns) > 0 {
		return &model.Diagnostic{
			Location: model.Location{FilePath: filePath, Line: f.Line, Col: f.Col},
			Severity: model.SeverityWarning,
			SinkName: f.SinkName,
			Text:     f.Text,
			Reason:   describeParseError(warns[0], f.Line),
		}
	}
	return nil
}

// ValidateAll validates every finding of a file report in order.
func (v *Validator) ValidateAll(report *model.FileReport) []model.Diagnostic {
	var diags []model.Diagnostic
	for _, f := range report.Findings {
		if d := v.Validate(report.FilePath, f); d != nil {
			diags = append(diags, *d)
		}
	}
	return diags
}

var (
	errPosRe  = regexp.MustCompile(`line (\d+) column (\d+)`)
	errNearRe = regexp.MustCompile(`near "((?s).*?)"`)
)

// describeParseError turns a grammar error into a short human reason.
// Positions inside the SQL text are re-based onto the file line the
// statement starts at.
func describeParseError(err error, baseLine int) string {
	msg := err.Error()

	near := ""
	if m := errNearRe.FindStringSubmatch(msg); m != nil {
		frag := strings.TrimSpace(m[1])
		if len(frag) > 40 {
			frag = frag[:40] + "..."
		}
		if frag != "" {
			near = ` near "` + frag + `"`
		}
	}

	if m := errPosRe.FindStringSubmatch(msg); m != nil {
		return "syntax error at line " + rebaseLine(m[1], baseLine) + ", column " + m[2] + near
	}
	if near != "" {
		return "syntax error" + near
	}

	// Strip the grammar's error-code prefix when present.
	if idx := strings.Index(msg, "]"); strings.HasPrefix(msg, "[") && idx > 0 && idx < len(msg)-1 {
		msg = strings.TrimSpace(msg[idx+1:])
	}
	return msg
}

func rebaseLine(sqlLine string, baseLine int) string {
	n, err := strconv.Atoi(sqlLine)
	if err != nil || n < 1 {
		n = 1
	}
	return strconv.Itoa(baseLine + n - 1)
}

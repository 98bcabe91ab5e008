package finder

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// percentSpecRe matches one printf-style specifier:
// %(name)?[flags][width][.precision][length]conv. Named and bare forms are
// alternated so a single scan finds both.
var percentSpecRe = regexp.MustCompile(
	`%\(([^)]+)\)[-+0 #]*(?:\*|\d+)?(?:\.(?:\*|\d+))?[hlL]?[sdifgGeEoxXcubp%]` +
		`|%[-+0 #]*(?:\*|\d+)?(?:\.(?:\*|\d+))?[hlL]?[sdifgGeEoxXcubp%]`)

// formatPercent folds `template % args`. Replacement runs right-to-left over
// the match positions so earlier replacements never shift later offsets;
// positional specifiers index the argument list from the tail, which pairs
// specifiers and arguments in textual left-to-right order.
func formatPercent(template string, args []Value, kwargs map[string]Value) (string, bool) {
	matches := percentSpecRe.FindAllStringIndex(template, -1)
	result := template
	valueIndex := 0

	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		spec := template[start:end]

		if spec == "%%" {
			result = result[:start] + "%" + result[end:]
			continue
		}

		var value Value
		if strings.HasPrefix(spec, "%(") {
			keyEnd := strings.IndexByte(spec, ')')
			key := spec[2:keyEnd]
			v, ok := kwargs[key]
			if !ok {
				return "", false
			}
			value = v
		} else {
			if valueIndex >= len(args) {
				return "", false
			}
			value = args[len(args)-1-valueIndex]
			valueIndex++
		}

		// An argument the evaluator could not model poisons the fold.
		if value.Kind == KindUnhandled {
			return "", false
		}

		conv := spec[len(spec)-1]
		replacement, ok := convertSpecifier(value, spec, conv)
		if !ok {
			return "", false
		}
		result = result[:start] + replacement + result[end:]
	}

	return result, true
}

func convertSpecifier(value Value, spec string, conv byte) (string, bool) {
	switch conv {
	case 's':
		return value.String(), true
	case 'd', 'i':
		return formatAsInt(value)
	case 'u':
		return formatAsUnsigned(value)
	case 'b':
		return formatAsBinary(value)
	case 'f', 'F':
		return formatAsFloat(value, spec)
	case 'g', 'G':
		return formatAsGeneral(value, spec)
	case 'e', 'E':
		return formatAsScientific(value, spec)
	case 'o':
		return formatAsOctal(value)
	case 'x':
		return formatAsHex(value, false)
	case 'X':
		return formatAsHex(value, true)
	case 'c':
		return formatAsChar(value)
	case 'p':
		return formatAsPointer(value)
	}
	return "", false
}

// extractPrecision pulls the number after the "." out of a specifier.
// Missing or unparsable precision reports false.
func extractPrecision(spec string) (int, bool) {
	dot := strings.IndexByte(spec, '.')
	if dot < 0 {
		return 0, false
	}
	afterDot := spec[dot+1:]
	end := strings.IndexFunc(afterDot, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		return 0, false
	}
	prec, err := strconv.Atoi(afterDot[:end])
	if err != nil {
		return 0, false
	}
	return prec, true
}

func valueAsInt64(value Value) (int64, bool) {
	switch value.Kind {
	case KindInt:
		i, err := strconv.ParseInt(value.Int, 10, 64)
		return i, err == nil
	case KindFloat:
		return int64(value.Float), true
	case KindBool:
		if value.Bool {
			return 1, true
		}
		return 0, true
	case KindStr:
		i, err := strconv.ParseInt(value.Str, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func valueAsFloat64(value Value) (float64, bool) {
	switch value.Kind {
	case KindFloat:
		return value.Float, true
	case KindInt:
		f, err := strconv.ParseFloat(value.Int, 64)
		return f, err == nil
	case KindBool:
		if value.Bool {
			return 1.0, true
		}
		return 0.0, true
	case KindStr:
		f, err := strconv.ParseFloat(value.Str, 64)
		return f, err == nil
	}
	return 0, false
}

func formatAsInt(value Value) (string, bool) {
	if value.Kind == KindInt {
		return value.Int, true
	}
	i, ok := valueAsInt64(value)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(i, 10), true
}

func formatAsUnsigned(value Value) (string, bool) {
	switch value.Kind {
	case KindInt:
		u, err := strconv.ParseUint(value.Int, 10, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatUint(u, 10), true
	case KindFloat:
		return strconv.FormatUint(uint64(value.Float), 10), true
	case KindBool:
		if value.Bool {
			return "1", true
		}
		return "0", true
	case KindStr:
		u, err := strconv.ParseUint(value.Str, 10, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatUint(u, 10), true
	}
	return "", false
}

func formatAsBinary(value Value) (string, bool) {
	if value.Kind == KindBool {
		if value.Bool {
			return "1", true
		}
		return "0", true
	}
	if value.Kind != KindInt && value.Kind != KindFloat {
		return "", false
	}
	i, ok := valueAsInt64(value)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(i, 2), true
}

func formatAsFloat(value Value, spec string) (string, bool) {
	prec, ok := extractPrecision(spec)
	if !ok {
		prec = 6
	}
	f, ok := valueAsFloat64(value)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', prec, 64), true
}

// formatAsGeneral implements the "%g" family: fixed-point for moderate
// exponents, scientific otherwise, trailing zeros trimmed.
func formatAsGeneral(value Value, spec string) (string, bool) {
	prec, ok := extractPrecision(spec)
	if !ok {
		prec = 6
	}
	uppercase := strings.ContainsRune(spec, 'G')
	f, ok := valueAsFloat64(value)
	if !ok {
		return "", false
	}
	return formatGeneralFloat(f, prec, uppercase), true
}

func formatGeneralFloat(f float64, prec int, uppercase bool) string {
	absF := math.Abs(f)
	exponent := 0
	if absF != 0 {
		exponent = int(math.Floor(math.Log10(absF)))
	}

	if exponent < -4 || exponent >= prec {
		sciPrec := prec - 1
		if sciPrec < 0 {
			sciPrec = 0
		}
		formatted := strconv.FormatFloat(f, 'e', sciPrec, 64)
		formatted = trimMantissaZeros(formatted)
		if uppercase {
			return strings.ToUpper(formatted)
		}
		return formatted
	}

	decimals := prec - 1
	if exponent > 0 {
		decimals -= exponent
	}
	if decimals < 0 {
		decimals = 0
	}
	formatted := strconv.FormatFloat(f, 'f', decimals, 64)
	if strings.ContainsRune(formatted, '.') {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	return formatted
}

// trimMantissaZeros drops trailing zeros from the mantissa of a value in
// scientific notation: "1.20000e+06" becomes "1.2e+06".
func trimMantissaZeros(s string) string {
	e := strings.IndexByte(s, 'e')
	if e < 0 {
		return s
	}
	mantissa, exp := s[:e], s[e:]
	if strings.ContainsRune(mantissa, '.') {
		mantissa = strings.TrimRight(mantissa, "0")
		mantissa = strings.TrimRight(mantissa, ".")
	}
	return mantissa + exp
}

func formatAsScientific(value Value, spec string) (string, bool) {
	prec, ok := extractPrecision(spec)
	if !ok {
		prec = 6
	}
	uppercase := strings.ContainsRune(spec, 'E')
	f, ok := valueAsFloat64(value)
	if !ok {
		return "", false
	}
	if uppercase {
		return strconv.FormatFloat(f, 'E', prec, 64), true
	}
	return strconv.FormatFloat(f, 'e', prec, 64), true
}

func formatAsOctal(value Value) (string, bool) {
	if value.Kind == KindBool {
		if value.Bool {
			return "1", true
		}
		return "0", true
	}
	if value.Kind != KindInt && value.Kind != KindFloat {
		return "", false
	}
	i, ok := valueAsInt64(value)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(i, 8), true
}

func formatAsHex(value Value, uppercase bool) (string, bool) {
	if value.Kind == KindBool {
		if value.Bool {
			return "1", true
		}
		return "0", true
	}
	if value.Kind != KindInt && value.Kind != KindFloat {
		return "", false
	}
	i, ok := valueAsInt64(value)
	if !ok {
		return "", false
	}
	if uppercase {
		return strings.ToUpper(strconv.FormatInt(i, 16)), true
	}
	return strconv.FormatInt(i, 16), true
}

func formatAsChar(value Value) (string, bool) {
	switch value.Kind {
	case KindInt:
		code, err := strconv.ParseUint(value.Int, 10, 32)
		if err != nil || !utf8.ValidRune(rune(code)) {
			return "", false
		}
		return string(rune(code)), true
	case KindStr:
		if utf8.RuneCountInString(value.Str) == 1 {
			return value.Str, true
		}
		return "", false
	}
	return "", false
}

func formatAsPointer(value Value) (string, bool) {
	switch value.Kind {
	case KindInt:
		u, err := strconv.ParseUint(value.Int, 10, 64)
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("0x%x", u), true
	case KindFloat:
		return fmt.Sprintf("0x%x", uint64(value.Float)), true
	}
	return "", false
}

var (
	braceAnyRe      = regexp.MustCompile(`\{[^}]+\}`)
	braceNumberedRe = regexp.MustCompile(`\{(\d+)\}`)
)

type kwarg struct {
	name  string
	value string
}

// formatBrace folds a `.format()` call against an already-literal template.
// Numbered references resolve first, then bare "{}" tokens consume the
// positional fills left-to-right, then keyword tokens substitute. When the
// call unpacks a mapping nothing can be trusted, so every brace token
// uniformly becomes the placeholder marker.
func formatBrace(template string, posFills []string, kwFills []kwarg, hasUnpackedDict bool) string {
	if hasUnpackedDict {
		return braceAnyRe.ReplaceAllString(template, placeholderToken)
	}

	usedByNumber := make(map[int]bool)
	result := braceNumberedRe.ReplaceAllStringFunc(template, func(m string) string {
		index, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || index >= len(posFills) {
			return placeholderToken
		}
		usedByNumber[index] = true
		return posFills[index]
	})

	// Bare "{}" tokens consume the positional fills a numbered reference did
	// not already claim, left-to-right.
	for i, fill := range posFills {
		if usedByNumber[i] {
			continue
		}
		result = strings.Replace(result, "{}", fill, 1)
	}

	for _, kw := range kwFills {
		result = strings.ReplaceAll(result, "{"+kw.name+"}", kw.value)
	}

	return result
}

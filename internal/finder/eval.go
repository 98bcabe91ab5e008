package finder

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"sqlscout/internal/pattern"
)

// maxEvalDepth bounds the recursion so pathologically nested expressions
// fail the fold instead of exhausting the stack.
const maxEvalDepth = 512

// evaluator folds one file's expressions to best-effort constant values.
// eval returns (value, true) when the expression is statically resolvable
// and (zero, false) otherwise; it never panics on any tree shape.
type evaluator struct {
	src   []byte
	funcs *pattern.Matcher
	log   *zap.Logger
	depth int
}

func (e *evaluator) text(n *sitter.Node) string {
	return n.Content(e.src)
}

func (e *evaluator) eval(n *sitter.Node) (Value, bool) {
	if n == nil {
		return Value{}, false
	}
	if e.depth >= maxEvalDepth {
		e.log.Debug("expression nesting too deep, giving up", zap.Uint32("offset", n.StartByte()))
		return Value{}, false
	}
	e.depth++
	defer func() { e.depth-- }()

	switch n.Type() {
	case "string":
		return e.evalString(n)
	case "concatenated_string":
		return e.evalConcatenated(n)
	case "integer":
		return e.evalInteger(n)
	case "float":
		return e.evalFloat(n)
	case "true":
		return boolValue(true), true
	case "false":
		return boolValue(false), true
	case "none":
		return unhandledValue(), true
	case "tuple", "list", "expression_list":
		return e.evalSequence(n)
	case "identifier", "attribute", "subscript":
		// The reference itself resolves to "some value exists here" even
		// though its content is unknown.
		return placeholderValue(), true
	case "parenthesized_expression":
		return e.eval(n.NamedChild(0))
	case "binary_operator":
		return e.evalBinary(n)
	case "unary_operator":
		return e.evalUnary(n)
	case "call":
		return e.evalCall(n)
	}

	e.log.Debug("unhandled expression kind", zap.String("kind", n.Type()))
	return Value{}, false
}

// evalArg is the fill-extraction variant used for formatting arguments:
// an argument that cannot be resolved still occupies its position as an
// unhandled value rather than failing the whole call.
func (e *evaluator) evalArg(n *sitter.Node) Value {
	if v, ok := e.eval(n); ok {
		return v
	}
	return unhandledValue()
}

func (e *evaluator) evalInteger(n *sitter.Node) (Value, bool) {
	raw := strings.ReplaceAll(e.text(n), "_", "")
	if i, err := strconv.ParseInt(raw, 0, 64); err == nil {
		return intValue(strconv.FormatInt(i, 10)), true
	}
	// Out-of-range decimal literals keep their text form; other bases that
	// overflow are not resolvable.
	for _, r := range raw {
		if r < '0' || r > '9' {
			return Value{}, false
		}
	}
	return intValue(raw), true
}

func (e *evaluator) evalFloat(n *sitter.Node) (Value, bool) {
	raw := strings.ReplaceAll(e.text(n), "_", "")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, false
	}
	return floatValue(f), true
}

func (e *evaluator) evalSequence(n *sitter.Node) (Value, bool) {
	items := make([]Value, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		v, ok := e.eval(n.NamedChild(i))
		if !ok {
			return Value{}, false
		}
		items = append(items, v)
	}
	return tupleValue(items), true
}

// evalString decodes a literal, splicing interpolated expressions for
// f-strings. The prefix decides raw handling; bytes literals decode like
// plain strings.
func (e *evaluator) evalString(n *sitter.Node) (Value, bool) {
	raw := false
	if start := n.Child(0); start != nil && start.Type() == "string_start" {
		raw = strings.ContainsAny(e.text(start), "rR")
	}
	var b strings.Builder
	if !e.collectStringParts(n, raw, &b) {
		return Value{}, false
	}
	return strValue(b.String()), true
}

func (e *evaluator) collectStringParts(n *sitter.Node, raw bool, b *strings.Builder) bool {
	switch n.Type() {
	case "string_start", "string_end":
		return true
	case "escape_interpolation":
		// "{{" and "}}" inside f-strings are literal braces.
		if e.text(n) == "{{" {
			b.WriteByte('{')
		} else {
			b.WriteByte('}')
		}
		return true
	case "escape_sequence":
		if raw {
			b.WriteString(e.text(n))
		} else {
			b.WriteString(decodeEscape(e.text(n)))
		}
		return true
	case "interpolation":
		expr := n.ChildByFieldName("expression")
		if expr == nil {
			expr = n.NamedChild(0)
		}
		v, ok := e.eval(expr)
		if !ok {
			return false
		}
		b.WriteString(v.String())
		return true
	case "string_content":
		// Plain text runs inside string_content are hidden tokens, so the
		// text between the visible escape nodes is spliced by byte position.
		pos := n.StartByte()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			b.Write(e.src[pos:child.StartByte()])
			if !e.collectStringParts(child, raw, b) {
				return false
			}
			pos = child.EndByte()
		}
		b.Write(e.src[pos:n.EndByte()])
		return true
	}

	if n.ChildCount() == 0 {
		b.WriteString(e.text(n))
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if !e.collectStringParts(n.Child(i), raw, b) {
			return false
		}
	}
	return true
}

// decodeEscape decodes one backslash escape the way the source language
// would. Unknown escapes stay verbatim.
func decodeEscape(esc string) string {
	if len(esc) < 2 || esc[0] != '\\' {
		return esc
	}
	switch esc[1] {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\':
		return "\\"
	case '\'':
		return "'"
	case '"':
		return "\""
	case 'a':
		return "\a"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'v':
		return "\v"
	case '0':
		return "\x00"
	case '\n':
		// Line continuation inside a literal.
		return ""
	case 'x', 'u', 'U':
		if code, err := strconv.ParseUint(esc[2:], 16, 32); err == nil && utf8.ValidRune(rune(code)) {
			return string(rune(code))
		}
		return esc
	}
	return esc
}

func (e *evaluator) evalConcatenated(n *sitter.Node) (Value, bool) {
	var b strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		part, ok := e.eval(n.NamedChild(i))
		if !ok || part.Kind != KindStr {
			return Value{}, false
		}
		b.WriteString(part.Str)
	}
	return strValue(b.String()), true
}

func (e *evaluator) evalBinary(n *sitter.Node) (Value, bool) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	opNode := n.ChildByFieldName("operator")
	if left == nil || right == nil {
		return Value{}, false
	}
	op := ""
	if opNode != nil {
		op = e.text(opNode)
	} else if n.ChildCount() >= 3 {
		op = e.text(n.Child(1))
	}

	if op == "%" {
		return e.evalPercent(left, right)
	}

	lhs, ok := e.eval(left)
	if !ok {
		return Value{}, false
	}
	rhs, ok := e.eval(right)
	if !ok {
		return Value{}, false
	}

	switch op {
	case "+":
		return valueAdd(lhs, rhs)
	case "-":
		return valueSub(lhs, rhs)
	case "*":
		return valueMul(lhs, rhs)
	case "/":
		return valueDiv(lhs, rhs)
	}
	e.log.Debug("unhandled binary operator", zap.String("op", op))
	return Value{}, false
}

// evalPercent folds `template % args`. The left side must resolve to a
// literal string; a non-string left side is a fold failure, numeric modulo
// is deliberately not modeled.
func (e *evaluator) evalPercent(left, right *sitter.Node) (Value, bool) {
	lhs, ok := e.eval(left)
	if !ok || lhs.Kind != KindStr {
		return Value{}, false
	}

	var args []Value
	kwargs := map[string]Value{}

	switch right.Type() {
	case "tuple", "list", "expression_list":
		for i := 0; i < int(right.NamedChildCount()); i++ {
			args = append(args, e.evalArg(right.NamedChild(i)))
		}
	case "dictionary":
		for i := 0; i < int(right.NamedChildCount()); i++ {
			pair := right.NamedChild(i)
			if pair.Type() != "pair" {
				// dictionary_splat inside the mapping: contents unknowable.
				return Value{}, false
			}
			key := e.evalArg(pair.ChildByFieldName("key"))
			kwargs[key.String()] = e.evalArg(pair.ChildByFieldName("value"))
		}
	case "identifier", "attribute", "subscript":
		args = append(args, placeholderValue())
	case "parenthesized_expression":
		return e.evalPercent(left, right.NamedChild(0))
	default:
		if v, ok := e.eval(right); ok {
			args = append(args, v)
		} else {
			return Value{}, false
		}
	}

	out, ok := formatPercent(lhs.Str, args, kwargs)
	if !ok {
		return Value{}, false
	}
	return strValue(out), true
}

func (e *evaluator) evalUnary(n *sitter.Node) (Value, bool) {
	opNode := n.ChildByFieldName("operator")
	op := ""
	if opNode != nil {
		op = e.text(opNode)
	} else if n.ChildCount() > 0 {
		op = e.text(n.Child(0))
	}
	operand, ok := e.eval(n.ChildByFieldName("argument"))
	if !ok {
		return Value{}, false
	}
	switch op {
	case "-":
		switch operand.Kind {
		case KindInt:
			i, err := strconv.ParseInt(operand.Int, 10, 64)
			if err != nil {
				return Value{}, false
			}
			return intValue(strconv.FormatInt(-i, 10)), true
		case KindFloat:
			return floatValue(-operand.Float), true
		case KindPlaceholder:
			return placeholderValue(), true
		}
	case "+":
		if operand.Kind == KindInt || operand.Kind == KindFloat || operand.Kind == KindPlaceholder {
			return operand, true
		}
	}
	return Value{}, false
}

func (e *evaluator) evalCall(n *sitter.Node) (Value, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return Value{}, false
	}

	if fn.Type() == "attribute" {
		attr := fn.ChildByFieldName("attribute")
		if attr != nil && e.text(attr) == "format" {
			return e.evalFormatCall(fn.ChildByFieldName("object"), n.ChildByFieldName("arguments"))
		}
	}

	// A call to a configured sink function carries the value of its first
	// resolvable positional argument.
	if calleeMatches(fn, e.src, e.funcs) {
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				arg := args.NamedChild(i)
				if arg.Type() == "keyword_argument" || arg.Type() == "comment" {
					continue
				}
				if v, ok := e.eval(arg); ok && v.Kind != KindUnhandled {
					return v, true
				}
			}
		}
	}

	// Any other call produces some runtime value of unknown shape.
	return placeholderValue(), true
}

// evalFormatCall folds `template.format(...)`. The receiver must itself
// fold to a literal string; otherwise the whole formatting operation fails
// rather than producing a partial result.
func (e *evaluator) evalFormatCall(receiver, argList *sitter.Node) (Value, bool) {
	tmpl, ok := e.eval(receiver)
	if !ok || tmpl.Kind != KindStr {
		return Value{}, false
	}

	var posFills []string
	var kwFills []kwarg
	hasUnpackedDict := false

	if argList != nil {
		for i := 0; i < int(argList.NamedChildCount()); i++ {
			arg := argList.NamedChild(i)
			switch arg.Type() {
			case "keyword_argument":
				name := arg.ChildByFieldName("name")
				value := arg.ChildByFieldName("value")
				if name == nil {
					hasUnpackedDict = true
					continue
				}
				kwFills = append(kwFills, kwarg{name: e.text(name), value: e.evalArg(value).String()})
			case "dictionary_splat":
				hasUnpackedDict = true
			case "list_splat":
				posFills = append(posFills, placeholderToken)
			case "comment":
			case "list":
				// A literal list argument contributes each element as a fill.
				for j := 0; j < int(arg.NamedChildCount()); j++ {
					posFills = append(posFills, e.evalArg(arg.NamedChild(j)).String())
				}
			default:
				posFills = append(posFills, e.evalArg(arg).String())
			}
		}
	}

	return strValue(formatBrace(tmpl.Str, posFills, kwFills, hasUnpackedDict)), true
}

// bareCalleeName resolves the rightmost name segment of a callee
// expression: `execute` for both `execute(...)` and `cursor.execute(...)`.
func bareCalleeName(fn *sitter.Node, src []byte) string {
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr != nil {
			return attr.Content(src)
		}
	}
	return ""
}

// calleeMatches tests a callee against the function patterns, first by its
// bare rightmost name and then by the full dotted chain, so both `execute`
// and `cursor.execute` style patterns work.
func calleeMatches(fn *sitter.Node, src []byte, funcs *pattern.Matcher) bool {
	if funcs == nil {
		return false
	}
	if bare := bareCalleeName(fn, src); bare != "" && funcs.Match(bare) {
		return true
	}
	if dotted := dottedCalleeName(fn, src); strings.Contains(dotted, ".") && funcs.Match(dotted) {
		return true
	}
	return false
}

// dottedCalleeName joins an attribute chain: `a.b.c` for nested access.
// Non-name segments truncate the chain.
func dottedCalleeName(fn *sitter.Node, src []byte) string {
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return ""
		}
		prefix := dottedCalleeName(obj, src)
		if prefix == "" {
			return attr.Content(src)
		}
		return prefix + "." + attr.Content(src)
	}
	return ""
}

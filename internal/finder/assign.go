package finder

import (
	sitter "github.com/smacker/go-tree-sitter"

	"sqlscout/internal/model"
)

// analyzeAssignment handles one assignment statement, including chained
// (`a = b = c`) and annotated (`a: str = c`) forms. Each target that
// matches a configured variable context yields at most one finding.
func (fa *fileAnalysis) analyzeAssignment(n *sitter.Node) {
	var targets []*sitter.Node
	value := n
	for value != nil && value.Type() == "assignment" {
		if left := value.ChildByFieldName("left"); left != nil {
			targets = append(targets, left)
		}
		value = value.ChildByFieldName("right")
	}
	if value == nil {
		// Bare annotation, nothing assigned.
		return
	}
	for _, target := range targets {
		fa.destructure(target, value)
	}
}

// destructure pairs one assignment target against the value expression.
// Sequence targets are paired element-wise against a statically known
// sequence value; any shape mismatch drops the whole statement rather than
// guessing.
func (fa *fileAnalysis) destructure(target, value *sitter.Node) {
	switch target.Type() {
	case "identifier":
		fa.matchAndExtract(target, fa.eval.text(target), value)
	case "attribute":
		if attr := target.ChildByFieldName("attribute"); attr != nil {
			fa.matchAndExtract(target, fa.eval.text(attr), value)
		}
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list":
		fa.destructureSequence(target, value)
	case "parenthesized_expression":
		if inner := target.NamedChild(0); inner != nil {
			fa.destructure(inner, value)
		}
	}
}

func (fa *fileAnalysis) destructureSequence(target, value *sitter.Node) {
	v, ok := fa.eval.eval(value)
	if !ok || v.Kind != KindTuple {
		return
	}

	targets := make([]*sitter.Node, 0, target.NamedChildCount())
	starIndex := -1
	for i := 0; i < int(target.NamedChildCount()); i++ {
		child := target.NamedChild(i)
		if child.Type() == "list_splat_pattern" {
			starIndex = len(targets)
		}
		targets = append(targets, child)
	}

	values := v.Tuple
	if starIndex < 0 {
		if len(targets) != len(values) {
			return
		}
		for i, t := range targets {
			fa.bindTarget(t, values[i])
		}
		return
	}

	// A starred target slurps the middle of the sequence.
	starCount := len(values) - len(targets) + 1
	if starCount < 0 {
		return
	}
	for i := 0; i < starIndex; i++ {
		fa.bindTarget(targets[i], values[i])
	}
	star := targets[starIndex]
	if inner := star.NamedChild(0); inner != nil {
		fa.bindTarget(inner, tupleValue(values[starIndex:starIndex+starCount]))
	}
	for i := starIndex + 1; i < len(targets); i++ {
		fa.bindTarget(targets[i], values[i+starCount-1])
	}
}

// bindTarget binds one already-evaluated value to a target node, recursing
// through nested sequence patterns.
func (fa *fileAnalysis) bindTarget(target *sitter.Node, v Value) {
	switch target.Type() {
	case "identifier":
		fa.recordIfSQL(target, fa.eval.text(target), v)
	case "attribute":
		if attr := target.ChildByFieldName("attribute"); attr != nil {
			fa.recordIfSQL(target, fa.eval.text(attr), v)
		}
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list":
		// Starred targets nested below the top level are not modeled; the
		// element-count check makes such shapes fail open.
		if v.Kind != KindTuple || int(target.NamedChildCount()) != len(v.Tuple) {
			return
		}
		for i := 0; i < int(target.NamedChildCount()); i++ {
			fa.bindTarget(target.NamedChild(i), v.Tuple[i])
		}
	}
}

// matchAndExtract evaluates the value expression only when the target name
// is interesting, so uninteresting assignments cost a single matcher probe.
func (fa *fileAnalysis) matchAndExtract(target *sitter.Node, name string, value *sitter.Node) {
	if !fa.nameIsSink(name) {
		return
	}
	v, ok := fa.eval.eval(value)
	if !ok {
		return
	}
	fa.record(target, name, v)
}

func (fa *fileAnalysis) recordIfSQL(target *sitter.Node, name string, v Value) {
	if !fa.nameIsSink(name) {
		return
	}
	fa.record(target, name, v)
}

// nameIsSink reports whether an assignment target name should be treated as
// SQL-bearing. Inside a matching class body every assignment counts.
func (fa *fileAnalysis) nameIsSink(name string) bool {
	return fa.classCtx || fa.f.vars.Match(name)
}

func (fa *fileAnalysis) record(target *sitter.Node, name string, v Value) {
	if v.Kind != KindStr || len(v.Str) < fa.f.minLength {
		return
	}
	fa.findings = append(fa.findings, model.Finding{
		SinkName:   name,
		ByteOffset: target.StartByte(),
		Text:       v.Str,
	})
}

// analyzeCall handles a call in statement position. A call to a configured
// sink function contributes each resolvable positional argument; keyword
// arguments whose name matches a variable context contribute their value.
func (fa *fileAnalysis) analyzeCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}
	sink := bareCalleeName(fn, fa.src)
	isSinkCall := calleeMatches(fn, fa.src, fa.f.funcs)
	if isSinkCall && sink == "" {
		sink = dottedCalleeName(fn, fa.src)
	}

	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument":
			name := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if name == nil || value == nil {
				continue
			}
			kwName := fa.eval.text(name)
			if fa.f.vars.Match(kwName) {
				if v, ok := fa.eval.eval(value); ok {
					fa.record(arg, kwName, v)
				}
			}
		case "comment", "dictionary_splat", "list_splat":
		default:
			if isSinkCall {
				fa.extractFromArg(arg, sink)
			}
		}
	}

	// Nested calls in argument position, e.g. log(cursor.execute(q)).
	if !isSinkCall {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if arg.Type() == "call" {
				fa.analyzeCall(arg)
			}
		}
	}
}

// extractFromArg digs through container literals so that
// executemany("...", [...]) style calls surface the statement argument.
func (fa *fileAnalysis) extractFromArg(arg *sitter.Node, sink string) {
	if arg == nil {
		return
	}
	switch arg.Type() {
	case "list", "tuple", "expression_list", "set":
		for i := 0; i < int(arg.NamedChildCount()); i++ {
			fa.extractFromArg(arg.NamedChild(i), sink)
		}
	case "dictionary":
		for i := 0; i < int(arg.NamedChildCount()); i++ {
			pair := arg.NamedChild(i)
			if pair.Type() == "pair" {
				fa.extractFromArg(pair.ChildByFieldName("value"), sink)
			}
		}
	case "boolean_operator":
		fa.extractFromArg(arg.ChildByFieldName("left"), sink)
		fa.extractFromArg(arg.ChildByFieldName("right"), sink)
	case "conditional_expression":
		for i := 0; i < int(arg.NamedChildCount()); i++ {
			fa.extractFromArg(arg.NamedChild(i), sink)
		}
	default:
		if v, ok := fa.eval.eval(arg); ok {
			fa.record(arg, sink, v)
		}
	}
}

// Package finder locates candidate SQL strings in Python source. It walks
// the syntax tree, evaluates string-building expressions to constants where
// it can, and reports each reconstructed string together with the name it
// was bound to.
package finder

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"sqlscout/internal/model"
	"sqlscout/internal/pattern"
	"sqlscout/internal/pyast"
)

// Finder analyzes Python source files. It owns a parser, so one Finder
// serves one worker at a time.
type Finder struct {
	parser    *pyast.Parser
	vars      *pattern.Matcher
	funcs     *pattern.Matcher
	classes   *pattern.Matcher
	minLength int
	log       *zap.Logger
}

func New(vars, funcs, classes *pattern.Matcher, minLength int, log *zap.Logger) *Finder {
	return &Finder{
		parser:    pyast.NewParser(),
		vars:      vars,
		funcs:     funcs,
		classes:   classes,
		minLength: minLength,
		log:       log,
	}
}

// fileAnalysis is the walk state for a single file. classCtx is true while
// walking the body of a class whose name matches a class context; there
// every assignment target is treated as SQL-bearing.
type fileAnalysis struct {
	f        *Finder
	src      []byte
	eval     *evaluator
	pre      *preanalysis
	classCtx bool
	findings []model.Finding
}

// AnalyzeSource parses src and returns the findings for one file. A file
// that fails to parse is an error; the caller decides whether that skips
// the file or fails the run.
func (f *Finder) AnalyzeSource(ctx context.Context, path string, src []byte) (*model.FileReport, error) {
	tree, err := f.parser.Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer tree.Close()

	fa := &fileAnalysis{
		f:    f,
		src:  src,
		eval: &evaluator{src: src, funcs: f.funcs, log: f.log},
		pre:  preanalyze(src),
	}
	fa.walkBlock(tree.RootNode())

	report := &model.FileReport{FilePath: path}
	for _, finding := range fa.findings {
		offset := int(finding.ByteOffset)
		if fa.pre.isIgnored(src, offset) {
			continue
		}
		finding.Line, finding.Col = fa.pre.lineCol(src, offset)
		report.Findings = append(report.Findings, finding)
	}
	return report, nil
}

func (fa *fileAnalysis) walkBlock(n *sitter.Node) {
	if n == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		fa.walkStatement(n.NamedChild(i))
	}
}

func (fa *fileAnalysis) walkStatement(n *sitter.Node) {
	// A pragma on the statement's first line suppresses the whole statement,
	// nested bodies included.
	if fa.pre.isIgnored(fa.src, int(n.StartByte())) {
		return
	}

	switch n.Type() {
	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			expr := n.NamedChild(i)
			switch expr.Type() {
			case "assignment":
				fa.analyzeAssignment(expr)
			case "augmented_assignment":
				fa.analyzeAugmented(expr)
			case "call":
				fa.analyzeCall(expr)
			}
		}

	case "function_definition":
		fa.walkBlock(n.ChildByFieldName("body"))

	case "class_definition":
		prev := fa.classCtx
		if name := n.ChildByFieldName("name"); name != nil {
			fa.classCtx = fa.f.classes.Match(fa.eval.text(name))
		}
		fa.walkBlock(n.ChildByFieldName("body"))
		fa.classCtx = prev

	case "decorated_definition":
		fa.walkStatement(n.ChildByFieldName("definition"))

	case "if_statement":
		fa.walkBlock(n.ChildByFieldName("consequence"))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "elif_clause":
				fa.walkBlock(child.ChildByFieldName("consequence"))
			case "else_clause":
				fa.walkBlock(child.ChildByFieldName("body"))
			}
		}

	case "for_statement", "while_statement":
		fa.walkBlock(n.ChildByFieldName("body"))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "else_clause" {
				fa.walkBlock(child.ChildByFieldName("body"))
			}
		}

	case "with_statement":
		fa.walkBlock(n.ChildByFieldName("body"))

	case "try_statement":
		fa.walkBlock(n.ChildByFieldName("body"))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "except_clause", "except_group_clause", "else_clause", "finally_clause":
				fa.walkClauseBody(child)
			}
		}

	case "match_statement":
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				if clause := body.NamedChild(i); clause.Type() == "case_clause" {
					fa.walkBlock(clause.ChildByFieldName("consequence"))
				}
			}
		}

	case "block":
		fa.walkBlock(n)

	case "return_statement", "import_statement", "import_from_statement",
		"future_import_statement", "print_statement", "assert_statement",
		"delete_statement", "raise_statement", "pass_statement",
		"break_statement", "continue_statement", "global_statement",
		"nonlocal_statement", "exec_statement", "comment":

	default:
		fa.f.log.Debug("unhandled statement kind", zap.String("kind", n.Type()))
	}
}

// walkClauseBody walks the block child of clauses that carry their block as
// an unnamed-field child (except, else, finally).
func (fa *fileAnalysis) walkClauseBody(clause *sitter.Node) {
	if body := clause.ChildByFieldName("body"); body != nil {
		fa.walkBlock(body)
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if child := clause.NamedChild(i); child.Type() == "block" {
			fa.walkBlock(child)
		}
	}
}

// analyzeAugmented handles `name += expr`. Only string concatenation onto a
// matching name is interesting, and the accumulated left side is unknown,
// so the right side alone is evaluated and reported when it is a string.
func (fa *fileAnalysis) analyzeAugmented(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	op := ""
	if opNode := n.ChildByFieldName("operator"); opNode != nil {
		op = fa.eval.text(opNode)
	}
	if op != "+=" {
		return
	}
	fa.destructure(left, right)
}

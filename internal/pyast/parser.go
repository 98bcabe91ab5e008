// Package pyast wraps the tree-sitter Python grammar behind the small
// surface the finder needs: parse source bytes into a tree whose nodes
// report byte positions.
package pyast

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parser parses Python source files. A Parser is not safe for concurrent
// use; each worker owns its own instance.
type Parser struct {
	p *sitter.Parser
}

func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{p: p}
}

// Parse returns the syntax tree for src. Trees containing syntax errors are
// rejected: an error-recovery tree silently drops statements, which would
// turn parse errors into missed findings instead of a logged skip.
func (p *Parser) Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			return nil, fmt.Errorf("syntax error at byte %d", bad.StartByte())
		}
		return nil, fmt.Errorf("syntax error")
	}
	return tree, nil
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if bad := firstErrorNode(n.NamedChild(i)); bad != nil {
			return bad
		}
	}
	return nil
}

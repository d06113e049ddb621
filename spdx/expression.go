package spdx

import (
	"fmt"
	"strings"
)

// ExprKind tags the variants of a license expression node.
type ExprKind uint8

const (
	KindLeaf ExprKind = iota
	KindAnd
	KindOr
	KindWith
	KindNone
)

// Expr is one node of a parsed license expression. Leaf nodes carry the
// license identifier in ID; WithException nodes carry the exception
// identifier in ID and the wrapped expression as their only child.
type Expr struct {
	Kind     ExprKind
	ID       string
	Children []*Expr
}

// Nesting beyond this is not a license expression anyone wrote by hand.
const maxExpressionDepth = 64

// ParseExpression parses an SPDX license expression such as
// "(MIT AND (Apache-2.0 OR BSD-3-Clause))" into an expression tree.
func ParseExpression(s string) (*Expr, error) {
	toks := tokenize(s)
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: empty license expression", ErrParse)
	}
	p := &exprParser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: trailing token %q in license expression", ErrParse, p.toks[p.pos])
	}
	return expr, nil
}

// Leaves flattens the expression to its distinct leaf license
// identifiers, in left-to-right order. Conjunctions, disjunctions and
// with-exception wrappers are descended; NONE and NOASSERTION leaves
// contribute nothing. The traversal uses an explicit stack so input
// depth cannot exhaust the call stack.
func (e *Expr) Leaves() []string {
	var out []string
	seen := make(map[string]struct{})
	stack := []*Expr{e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Kind {
		case KindLeaf:
			if _, dup := seen[n.ID]; !dup {
				seen[n.ID] = struct{}{}
				out = append(out, n.ID)
			}
		case KindNone:
		default:
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}
	return out
}

// IsCombined reports whether the expression string joins multiple
// licenses with a boolean operator.
func IsCombined(s string) bool {
	for _, tok := range tokenize(s) {
		if tok == "AND" || tok == "OR" {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	s = strings.ReplaceAll(s, "(", " ( ")
	s = strings.ReplaceAll(s, ")", " ) ")
	return strings.Fields(s)
}

type exprParser struct {
	toks  []string
	pos   int
	depth int
}

func (p *exprParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *exprParser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.peek() != "OR" {
		return left, nil
	}
	node := &Expr{Kind: KindOr, Children: []*Expr{left}}
	for p.peek() == "OR" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, right)
	}
	return node, nil
}

func (p *exprParser) parseAnd() (*Expr, error) {
	left, err := p.parseWith()
	if err != nil {
		return nil, err
	}
	if p.peek() != "AND" {
		return left, nil
	}
	node := &Expr{Kind: KindAnd, Children: []*Expr{left}}
	for p.peek() == "AND" {
		p.next()
		right, err := p.parseWith()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, right)
	}
	return node, nil
}

func (p *exprParser) parseWith() (*Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek() != "WITH" {
		return base, nil
	}
	p.next()
	exception := p.next()
	if exception == "" || isOperator(exception) {
		return nil, fmt.Errorf("%w: WITH lacks an exception identifier", ErrParse)
	}
	return &Expr{Kind: KindWith, ID: exception, Children: []*Expr{base}}, nil
}

func (p *exprParser) parsePrimary() (*Expr, error) {
	tok := p.next()
	switch {
	case tok == "(":
		p.depth++
		if p.depth > maxExpressionDepth {
			return nil, fmt.Errorf("%w: license expression nested deeper than %d", ErrParse, maxExpressionDepth)
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("%w: unbalanced parenthesis in license expression", ErrParse)
		}
		p.depth--
		return inner, nil
	case tok == "" || tok == ")" || isOperator(tok):
		return nil, fmt.Errorf("%w: unexpected token %q in license expression", ErrParse, tok)
	case strings.EqualFold(tok, "NONE"), strings.EqualFold(tok, "NOASSERTION"):
		return &Expr{Kind: KindNone}, nil
	default:
		return &Expr{Kind: KindLeaf, ID: tok}, nil
	}
}

func isOperator(tok string) bool {
	return tok == "AND" || tok == "OR" || tok == "WITH"
}

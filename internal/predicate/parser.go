// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package predicate

import "fmt"

type node interface{ isNode() }

type (
	orNode  struct{ left, right node }
	andNode struct{ left, right node }
	notNode struct{ inner node }
	cmpNode struct {
		op          string
		left, right node
	}
	identNode struct{ name string }
	litNode   struct{ value any }
	listNode  struct{ items []node }
)

func (orNode) isNode()    {}
func (andNode) isNode()   {}
func (notNode) isNode()   {}
func (cmpNode) isNode()   {}
func (identNode) isNode() {}
func (litNode) isNode()   {}
func (listNode) isNode()  {}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isOp("!") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	return p.parseCmp()
}

var cmpOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "in": true}

func (p *parser) parseCmp() (node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, p.errorf(t, "expected )")
		}
		return inner, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp || !cmpOps[t.text] {
		return left, nil
	}
	p.next()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if t.text == "in" {
		if _, ok := right.(listNode); !ok {
			return nil, p.errorf(t, "in needs a list on the right")
		}
	}
	return cmpNode{op: t.text, left: left, right: right}, nil
}

func (p *parser) parseOperand() (node, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		switch t.text {
		case "true":
			return litNode{true}, nil
		case "false":
			return litNode{false}, nil
		case "nil", "null":
			return litNode{nil}, nil
		}
		return identNode{t.text}, nil
	case tokNumber:
		return litNode{t.num}, nil
	case tokString:
		return litNode{t.text}, nil
	case tokLBracket:
		var items []node
		if p.peek().kind == tokRBracket {
			p.next()
			return listNode{}, nil
		}
		for {
			it, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if _, nested := it.(listNode); nested {
				return nil, p.errorf(t, "nested lists are not supported")
			}
			items = append(items, it)
			sep := p.next()
			if sep.kind == tokRBracket {
				return listNode{items}, nil
			}
			if sep.kind != tokComma {
				return nil, p.errorf(sep, "expected , or ]")
			}
		}
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}

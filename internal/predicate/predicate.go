// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package predicate

import (
	"fmt"
	"strings"
)

// Predicate is a compiled expression. It is immutable and safe for
// concurrent use.
type Predicate struct {
	src  string
	root node
}

// Compile parses src. An empty source compiles to nil, which never matches.
func Compile(src string) (*Predicate, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return &Predicate{src: src, root: root}, nil
}

// MustCompile is Compile for static expressions.
func MustCompile(src string) *Predicate {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Predicate) String() string {
	if p == nil {
		return ""
	}
	return p.src
}

// Eval evaluates the expression against fields. Unknown identifiers are
// nil, and nil compares unequal to everything but nil.
func (p *Predicate) Eval(fields map[string]any) (bool, error) {
	if p == nil {
		return false, nil
	}
	v, err := eval(p.root, fields)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func eval(n node, fields map[string]any) (any, error) {
	switch n := n.(type) {
	case litNode:
		return n.value, nil
	case identNode:
		return normalize(fields[n.name]), nil
	case listNode:
		out := make([]any, 0, len(n.items))
		for _, it := range n.items {
			v, err := eval(it, fields)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case notNode:
		v, err := eval(n.inner, fields)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case andNode:
		l, err := eval(n.left, fields)
		if err != nil || !truthy(l) {
			return false, err
		}
		r, err := eval(n.right, fields)
		return truthy(r), err
	case orNode:
		l, err := eval(n.left, fields)
		if err != nil {
			return false, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := eval(n.right, fields)
		return truthy(r), err
	case cmpNode:
		l, err := eval(n.left, fields)
		if err != nil {
			return nil, err
		}
		r, err := eval(n.right, fields)
		if err != nil {
			return nil, err
		}
		return compare(n.op, l, r)
	}
	return nil, fmt.Errorf("predicate: unknown node %T", n)
}

func compare(op string, l, r any) (bool, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "in":
		list, _ := r.([]any)
		for _, v := range list {
			if equal(l, v) {
				return true, nil
			}
		}
		return false, nil
	}

	if l == nil || r == nil {
		return false, nil
	}
	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("predicate: cannot order %T and %T", l, r)
}

func equal(l, r any) bool {
	l, r = normalize(l), normalize(r)
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	switch lv := l.(type) {
	case float64:
		rv, ok := r.(float64)
		return ok && lv == rv
	case string:
		rv, ok := r.(string)
		return ok && lv == rv
	case bool:
		rv, ok := r.(bool)
		return ok && lv == rv
	}
	return false
}

func truthy(v any) bool {
	switch v := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	}
	return true
}

// normalize folds field values onto the three scalar kinds.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case fmt.Stringer:
		return v.String()
	}
	return v
}

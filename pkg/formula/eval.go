package formula

import (
	"fmt"
	"strconv"
	"strings"
)

type env struct {
	id     string
	fields map[string]any
}

// Match evaluates the program against a record and reports whether the
// result is truthy. The empty program matches everything.
func (p *Program) Match(id string, fields map[string]any) (bool, error) {
	if p.root == nil {
		return true, nil
	}
	v, err := p.root.eval(&env{id: id, fields: fields})
	if err != nil {
		return false, fmt.Errorf("formula %q: %w", p.src, err)
	}
	return truthy(v), nil
}

func (p *Program) String() string { return p.src }

type literal struct{ v any }

func (l literal) eval(*env) (any, error) { return l.v, nil }

type fieldNode struct{ name string }

func (f fieldNode) eval(e *env) (any, error) {
	return normalize(e.fields[f.name]), nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (b *binaryNode) eval(e *env) (any, error) {
	l, err := b.left.eval(e)
	if err != nil {
		return nil, err
	}
	r, err := b.right.eval(e)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case "&":
		return toString(l) + toString(r), nil
	case "=":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	}
	c, ok := compare(l, r)
	if !ok {
		return false, nil
	}
	switch b.op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown operator %q", b.op)
}

type callNode struct {
	name string
	args []node
}

func (c *callNode) eval(e *env) (any, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := a.eval(e)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch c.name {
	case "AND":
		for _, a := range args {
			if !truthy(a) {
				return false, nil
			}
		}
		return true, nil
	case "OR":
		for _, a := range args {
			if truthy(a) {
				return true, nil
			}
		}
		return false, nil
	case "NOT":
		if err := arity(c, 1); err != nil {
			return nil, err
		}
		return !truthy(args[0]), nil
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	case "LOWER":
		if err := arity(c, 1); err != nil {
			return nil, err
		}
		return strings.ToLower(toString(args[0])), nil
	case "UPPER":
		if err := arity(c, 1); err != nil {
			return nil, err
		}
		return strings.ToUpper(toString(args[0])), nil
	case "LEN":
		if err := arity(c, 1); err != nil {
			return nil, err
		}
		return float64(len([]rune(toString(args[0])))), nil
	case "FIND":
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("FIND expects 2 or 3 arguments, got %d", len(args))
		}
		needle, haystack := toString(args[0]), toString(args[1])
		start := 0
		if len(args) == 3 {
			if n, ok := toNumber(args[2]); ok && n > 1 {
				start = int(n) - 1
			}
		}
		if start > len(haystack) {
			return float64(0), nil
		}
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return float64(0), nil
		}
		return float64(start + idx + 1), nil
	case "ARRAYJOIN":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("ARRAYJOIN expects 1 or 2 arguments, got %d", len(args))
		}
		sep := ", "
		if len(args) == 2 {
			sep = toString(args[1])
		}
		return joinArray(args[0], sep), nil
	case "RECORD_ID":
		return e.id, nil
	}
	return nil, fmt.Errorf("unknown function %s", c.name)
}

func arity(c *callNode, n int) error {
	if len(c.args) != n {
		return fmt.Errorf("%s expects %d argument(s), got %d", c.name, n, len(c.args))
	}
	return nil
}

// normalize maps decoded field values onto the evaluator's value space:
// string, float64, bool, []any or nil.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return v
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	}
	return true
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		return joinArray(t, ", ")
	}
	return fmt.Sprint(v)
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func joinArray(v any, sep string) string {
	arr, ok := v.([]any)
	if !ok {
		return toString(v)
	}
	parts := make([]string, len(arr))
	for i, a := range arr {
		parts[i] = toString(a)
	}
	return strings.Join(parts, sep)
}

func equal(l, r any) bool {
	_, lNum := l.(float64)
	_, rNum := r.(float64)
	if lNum || rNum {
		ln, ok1 := toNumber(l)
		rn, ok2 := toNumber(r)
		if ok1 && ok2 {
			return ln == rn
		}
	}
	return toString(l) == toString(r)
}

func compare(l, r any) (int, bool) {
	ln, ok1 := toNumber(l)
	rn, ok2 := toNumber(r)
	if ok1 && ok2 {
		switch {
		case ln < rn:
			return -1, true
		case ln > rn:
			return 1, true
		}
		return 0, true
	}
	return strings.Compare(toString(l), toString(r)), true
}

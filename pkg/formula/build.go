// Package formula builds and evaluates filter formulas for the record store.
//
// The store filters list calls with a small spreadsheet-style formula
// language: field references in braces, string and number literals,
// function calls such as FIND, LOWER, AND, OR and ARRAYJOIN, the
// concatenation operator & and comparison operators. Every list request
// carries exactly one compiled formula string.
//
// Build expressions with the constructors in this file and turn them into
// a formula with [Compile]. [Parse] reads a formula back into a [Program]
// that can be matched against record fields; the in-process fake store uses
// it to honour filters the same way the real store does.
package formula

import (
	"strconv"
	"strings"
)

// Expr is a node of a formula.
type Expr interface {
	formula() string
}

type field string

func (f field) formula() string {
	return "{" + string(f) + "}"
}

// Field references a record field by name.
func Field(name string) Expr { return field(name) }

type str string

func (s str) formula() string {
	return quote(string(s))
}

// String is a string literal. Quotes and backslashes are escaped.
func String(s string) Expr { return str(s) }

type number float64

func (n number) formula() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

func Number(n float64) Expr { return number(n) }

type call struct {
	name string
	args []Expr
}

func (c call) formula() string {
	parts := make([]string, 0, len(c.args))
	for _, a := range c.args {
		parts = append(parts, a.formula())
	}
	return c.name + "(" + strings.Join(parts, ", ") + ")"
}

// Call is a function call with the given arguments.
func Call(name string, args ...Expr) Expr {
	return call{name: strings.ToUpper(name), args: args}
}

type binary struct {
	op          string
	left, right Expr
}

func (b binary) formula() string {
	return b.left.formula() + " " + b.op + " " + b.right.formula()
}

func Eq(a, b Expr) Expr  { return binary{op: "=", left: a, right: b} }
func Neq(a, b Expr) Expr { return binary{op: "!=", left: a, right: b} }
func Gte(a, b Expr) Expr { return binary{op: ">=", left: a, right: b} }

// Concat joins string expressions with the & operator.
func Concat(parts ...Expr) Expr {
	if len(parts) == 0 {
		return String("")
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = binary{op: "&", left: out, right: p}
	}
	return out
}

func Find(needle, haystack Expr) Expr { return Call("FIND", needle, haystack) }
func Lower(e Expr) Expr               { return Call("LOWER", e) }
func Not(e Expr) Expr                 { return Call("NOT", e) }

// ArrayJoin flattens an array field into a string using sep.
func ArrayJoin(e Expr, sep string) Expr { return Call("ARRAYJOIN", e, String(sep)) }

// And combines the non-nil expressions. It returns nil when nothing is
// left and the single expression when only one is.
func And(exprs ...Expr) Expr { return combine("AND", exprs) }

// Or is the disjunction counterpart of [And].
func Or(exprs ...Expr) Expr { return combine("OR", exprs) }

func combine(name string, exprs []Expr) Expr {
	kept := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Call(name, kept...)
}

// Compile renders e as a formula string. A nil expression compiles to the
// empty string, which the store treats as "no filter".
func Compile(e Expr) string {
	if e == nil {
		return ""
	}
	return e.formula()
}

// EqualFold matches a field against value ignoring case.
func EqualFold(name, value string) Expr {
	return Eq(Lower(Field(name)), String(strings.ToLower(value)))
}

// HasMember tests that value is an element of the array field name.
// Both sides are wrapped in the separator so that "go" does not match
// "golang".
func HasMember(name, value string) Expr {
	const sep = ","
	return Find(
		String(sep+value+sep),
		Concat(String(sep), ArrayJoin(Field(name), sep), String(sep)),
	)
}

// ContainsFold matches when needle appears in any of the named fields,
// ignoring case. An empty needle matches everything and yields nil.
func ContainsFold(needle string, names ...string) Expr {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return nil
	}
	tests := make([]Expr, 0, len(names))
	for _, n := range names {
		tests = append(tests, Find(String(needle), Lower(Field(n))))
	}
	return Or(tests...)
}

func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokField
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports where a formula could not be parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula: %s at offset %d", e.Msg, e.Pos)
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '{':
			end := i + 1
			for end < len(rs) && rs[end] != '}' {
				end++
			}
			if end >= len(rs) {
				return nil, &SyntaxError{Pos: i, Msg: "unterminated field reference"}
			}
			toks = append(toks, token{tokField, string(rs[i+1 : end]), i})
			i = end + 1
		case r == '"' || r == '\'':
			var sb strings.Builder
			j := i + 1
			closed := false
			for j < len(rs) {
				if rs[j] == '\\' && j+1 < len(rs) {
					sb.WriteRune(rs[j+1])
					j += 2
					continue
				}
				if rs[j] == r {
					closed = true
					break
				}
				sb.WriteRune(rs[j])
				j++
			}
			if !closed {
				return nil, &SyntaxError{Pos: i, Msg: "unterminated string"}
			}
			toks = append(toks, token{tokString, sb.String(), i})
			i = j + 1
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(rs[i:j]), i})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, strings.ToUpper(string(rs[i:j])), i})
			i = j
		case r == '!' || r == '<' || r == '>':
			if i+1 < len(rs) && rs[i+1] == '=' {
				toks = append(toks, token{tokOp, string(rs[i : i+2]), i})
				i += 2
				continue
			}
			if r == '!' {
				return nil, &SyntaxError{Pos: i, Msg: "unexpected '!'"}
			}
			toks = append(toks, token{tokOp, string(r), i})
			i++
		case r == '=' || r == '&':
			toks = append(toks, token{tokOp, string(r), i})
			i++
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected %q", r)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(rs)})
	return toks, nil
}

// node is a parsed formula node.
type node interface {
	eval(env *env) (any, error)
}

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

// Program is a parsed formula ready to be matched against records.
type Program struct {
	src  string
	root node
}

// Parse reads a formula. The empty formula matches every record.
func Parse(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return &Program{src: src}, nil
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return &Program{src: src, root: root}, nil
}

func (p *parser) comparison() (node, error) {
	left, err := p.concat()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || t.text == "&" {
			return left, nil
		}
		p.next()
		right, err := p.concat()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.text, left: left, right: right}
	}
}

func (p *parser) concat() (node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && p.peek().text == "&" {
		p.next()
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{v: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: "bad number " + t.text}
		}
		return literal{v: f}, nil
	case tokField:
		return fieldNode{name: t.text}, nil
	case tokLParen:
		inner, err := p.comparison()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{Pos: c.pos, Msg: "expected ')'"}
		}
		return inner, nil
	case tokIdent:
		if p.peek().kind != tokLParen {
			switch t.text {
			case "TRUE":
				return literal{v: true}, nil
			case "FALSE":
				return literal{v: false}, nil
			}
			return nil, &SyntaxError{Pos: t.pos, Msg: "expected '(' after " + t.text}
		}
		p.next()
		fn := &callNode{name: t.text}
		if p.peek().kind == tokRParen {
			p.next()
			return fn, nil
		}
		for {
			arg, err := p.comparison()
			if err != nil {
				return nil, err
			}
			fn.args = append(fn.args, arg)
			sep := p.next()
			if sep.kind == tokRParen {
				return fn, nil
			}
			if sep.kind != tokComma {
				return nil, &SyntaxError{Pos: sep.pos, Msg: "expected ',' or ')'"}
			}
		}
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
}

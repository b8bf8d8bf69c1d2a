package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseString parses the shorthand predicate expression grammar:
//
//	expr    := term ("or" term)*
//	term    := factor ("and" factor)*
//	factor  := "!" factor | "not" factor | "(" expr ")" | compare
//	compare := path ("=" literal | "!=" literal | "contains" literal | "exists")
//	literal := string | number | "true" | "false" | "null"
//
// "and" binds tighter than "or". Paths are dotted field references and
// may carry a "$." prefix.
func ParseString(input string) (Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, &ParseError{Input: input, Reason: err.Error()}
	}
	p := &parser{input: input, toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected trailing input at %q", p.peek().text)
	}
	return node, nil
}

type tokenKind int

const (
	tokPath tokenKind = iota
	tokString
	tokNumber
	tokOp     // = or !=
	tokLParen
	tokRParen
	tokBang
	tokWord // and, or, not, exists, contains, true, false, null
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '=':
			toks = append(toks, token{tokOp, "="})
			i++
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokOp, "!="})
				i += 2
			} else {
				toks = append(toks, token{tokBang, "!"})
				i++
			}
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(input) && input[j] != quote {
				if input[j] == '\\' && j+1 < len(input) {
					j++
				}
				sb.WriteByte(input[j])
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string starting at offset %d", i)
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case c >= '0' && c <= '9' || c == '-':
			j := i + 1
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case isPathRune(rune(c)):
			j := i + 1
			for j < len(input) && isPathRune(rune(input[j])) {
				j++
			}
			word := input[i:j]
			switch word {
			case "and", "or", "not", "exists", "contains", "true", "false", "null":
				toks = append(toks, token{tokWord, word})
			default:
				toks = append(toks, token{tokPath, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return toks, nil
}

func isPathRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '$' || r == '-'
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for !p.done() && p.peek().kind == tokWord && p.peek().text == "or" {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return Or{Children: children}, nil
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for !p.done() && p.peek().kind == tokWord && p.peek().text == "and" {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return And{Children: children}, nil
}

func (p *parser) parseFactor() (Node, error) {
	switch t := p.peek(); {
	case t.kind == tokBang, t.kind == tokWord && t.text == "not":
		p.next()
		child, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	case t.kind == tokLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.next()
		return inner, nil
	case t.kind == tokPath:
		return p.parseCompare()
	default:
		return nil, p.errorf("expected a field path, got %q", t.text)
	}
}

func (p *parser) parseCompare() (Node, error) {
	field := p.next().text
	op := p.next()
	switch {
	case op.kind == tokOp && op.text == "=":
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Comparison{Field: field, Op: OpEquals, Value: lit}, nil
	case op.kind == tokOp && op.text == "!=":
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Comparison{Field: field, Op: OpNotEquals, Value: lit}, nil
	case op.kind == tokWord && op.text == "contains":
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Comparison{Field: field, Op: OpContains, Value: lit}, nil
	case op.kind == tokWord && op.text == "exists":
		return Comparison{Field: field, Op: OpExists}, nil
	default:
		return nil, p.errorf("expected an operator after %q, got %q", field, op.text)
	}
}

func (p *parser) parseLiteral() (any, error) {
	switch t := p.next(); t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", t.text)
		}
		return n, nil
	case tokWord:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return nil, p.errorf("bare word %q is not a literal; quote string values", t.text)
	default:
		return nil, p.errorf("expected a literal value, got %q", t.text)
	}
}

package expr

import (
	"fmt"
	"strconv"
)

// Limits bound the cost of parsing and evaluating an expression.
type Limits struct {
	MaxSourceLen int
	MaxNodes     int
}

// DefaultLimits are generous enough for any dashboard expression while
// keeping pathological input cheap to reject.
var DefaultLimits = Limits{
	MaxSourceLen: 4096,
	MaxNodes:     256,
}

type parser struct {
	lex    lexer
	tok    token
	limits Limits
	nodes  int
}

// Parse parses a single expression using DefaultLimits.
func Parse(src string) (Node, error) {
	return ParseWithLimits(src, DefaultLimits)
}

// ParseWithLimits parses a single expression. The whole source must be
// consumed; trailing tokens are an error.
func ParseWithLimits(src string, limits Limits) (Node, error) {
	if limits.MaxSourceLen > 0 && len(src) > limits.MaxSourceLen {
		return nil, &SyntaxError{Pos: limits.MaxSourceLen, Msg: fmt.Sprintf("expression exceeds %d bytes", limits.MaxSourceLen)}
	}

	p := &parser{lex: lexer{src: src}, limits: limits}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf("unexpected %q after expression", p.tok.text)}
	}
	return node, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) countNode() error {
	p.nodes++
	if p.limits.MaxNodes > 0 && p.nodes > p.limits.MaxNodes {
		return &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf("expression exceeds %d nodes", p.limits.MaxNodes)}
	}
	return nil
}

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (Node, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokPlus || p.tok.kind == tokMinus {
		op := byte('+')
		if p.tok.kind == tokMinus {
			op = '-'
		}
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if err := p.countNode(); err != nil {
			return nil, err
		}
		lhs = &BinOp{pos: pos, Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

// term := factor (('*'|'/') factor)*
func (p *parser) parseTerm() (Node, error) {
	lhs, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokStar || p.tok.kind == tokSlash {
		op := byte('*')
		if p.tok.kind == tokSlash {
			op = '/'
		}
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if err := p.countNode(); err != nil {
			return nil, err
		}
		lhs = &BinOp{pos: pos, Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

// factor := number | string | seriesRef | funcCall | '(' expr ')' | '-' factor
func (p *parser) parseFactor() (Node, error) {
	if err := p.countNode(); err != nil {
		return nil, err
	}

	switch p.tok.kind {
	case tokMinus:
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Neg{pos: pos, X: x}, nil

	case tokNumber:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf("bad number %q", p.tok.text)}
		}
		node := &Number{pos: p.tok.pos, Value: v}
		return node, p.advance()

	case tokString:
		node := &String{pos: p.tok.pos, Value: p.tok.text}
		return node, p.advance()

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, &SyntaxError{Pos: p.tok.pos, Msg: "expected ')'"}
		}
		return node, p.advance()

	case tokIdent:
		name := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}

		if p.tok.kind == tokLParen {
			return p.parseCall(name, pos)
		}

		ref := &SeriesRef{pos: pos, Code: name}
		if p.tok.kind == tokColon {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind != tokIdent {
				return nil, &SyntaxError{Pos: p.tok.pos, Msg: "expected field name after ':'"}
			}
			ref.Field = p.tok.text
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return ref, nil

	default:
		return nil, &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf("unexpected %q", p.tok.text)}
	}
}

func (p *parser) parseCall(name string, pos int) (Node, error) {
	// consume '('
	if err := p.advance(); err != nil {
		return nil, err
	}

	call := &Call{pos: pos, Name: name}
	if p.tok.kind == tokRParen {
		return call, p.advance()
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch p.tok.kind {
		case tokComma:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokRParen:
			return call, p.advance()
		default:
			return nil, &SyntaxError{Pos: p.tok.pos, Msg: "expected ',' or ')' in argument list"}
		}
	}
}

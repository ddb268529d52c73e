package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is an evaluable expression fragment.
type node interface {
	eval(vars *resolver) (float64, error)
}

type numberNode struct {
	value float64
}

type variableNode struct {
	path string
}

type unaryNode struct {
	operand node
}

type binaryNode struct {
	op    tokenKind
	left  node
	right node
}

type callNode struct {
	name string
	args []node
}

type parser struct {
	tokens []token
	pos    int
}

// parse compiles the expression into an AST. Only the restricted grammar is
// accepted: numbers, dotted paths, + - * /, parentheses, and calls to the
// math allow-list.
func parse(input string) (node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFormula)
	}

	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected token %q", ErrInvalidFormula, p.peek().text)
	}
	return root, nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokenPlus && op != tokenMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokenStar && op != tokenSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokenMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.peek()

	switch tok.kind {
	case tokenNumber:
		p.next()
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed number %q", ErrInvalidFormula, tok.text)
		}
		return &numberNode{value: value}, nil

	case tokenIdent:
		p.next()
		if p.peek().kind == tokenLParen {
			return p.parseCall(tok.text)
		}
		return &variableNode{path: tok.text}, nil

	case tokenLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidFormula)
		}
		p.next()
		return inner, nil

	default:
		return nil, fmt.Errorf("%w: unexpected token %q", ErrInvalidFormula, tok.text)
	}
}

func (p *parser) parseCall(name string) (node, error) {
	fn, ok := lookupFunction(name)
	if !ok {
		return nil, fmt.Errorf("%w: call to %q is not allowed", ErrInvalidFormula, name)
	}

	// consume '('
	p.next()

	args := make([]node, 0, 2)
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if p.peek().kind != tokenRParen {
		return nil, fmt.Errorf("%w: missing closing parenthesis in call to %q", ErrInvalidFormula, name)
	}
	p.next()

	if err := fn.checkArity(len(args)); err != nil {
		return nil, err
	}
	return &callNode{name: fn.name, args: args}, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

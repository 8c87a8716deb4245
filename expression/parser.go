package expression

import (
	"fmt"
	"strconv"
)

type parser struct {
	tokens []Token
	pos    int
}

func newParser(input string) *parser {
	return &parser{tokens: lex(input)}
}

// ParseCondition parses a ConditionExpression (also used for filter
// expressions). Empty input parses to a nil node, which evaluates true.
func ParseCondition(input string) (Node, error) {
	p := newParser(input)
	if p.isAtEnd() {
		return nil, nil
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isAtEnd() {
		return nil, p.errorf(p.peek(), "unexpected token at end of expression")
	}
	return node, nil
}

// Precedence: OR < AND < NOT < comparisons; parentheses override.

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(TokenOR) {
		op := p.prev()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.match(TokenAND) {
		op := p.prev()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.match(TokenNOT) {
		op := p.prev()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Operator: op, Operand: operand}, nil
	}
	return p.parseCondition()
}

// parseCondition handles a single predicate:
//
//	( expr )
//	operand cmp operand
//	operand BETWEEN operand AND operand
//	operand IN (operand, ...)
//	function(args)
func (p *parser) parseCondition() (Node, error) {
	if p.match(TokenLParen) {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRParen) {
			return nil, p.errorf(p.peek(), "expected ')'")
		}
		return expr, nil
	}

	if p.isBooleanFunction() {
		return p.parseFunctionCall()
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.match(TokenEq, TokenNE, TokenLT, TokenLTE, TokenGT, TokenGTE) {
		op := p.prev()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Left: left, Operator: op, Right: right}, nil
	}

	if p.match(TokenBETWEEN) {
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenAND) {
			return nil, p.errorf(p.peek(), "BETWEEN expects AND between its bounds")
		}
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &FunctionNode{Name: "BETWEEN", Arguments: []Node{left, low, high}}, nil
	}

	if p.match(TokenIN) {
		if !p.match(TokenLParen) {
			return nil, p.errorf(p.peek(), "IN expects '('")
		}
		args := []Node{left}
		for {
			arg, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(TokenComma) {
				break
			}
		}
		if !p.match(TokenRParen) {
			return nil, p.errorf(p.peek(), "IN expects ')'")
		}
		return &FunctionNode{Name: "IN", Arguments: args}, nil
	}

	return nil, p.errorf(p.peek(), "expected comparison, BETWEEN or IN")
}

// parseOperand parses a value position: a :placeholder, a path, or size().
func (p *parser) parseOperand() (Node, error) {
	if p.match(TokenValue) {
		return &LiteralNode{Placeholder: p.prev().Literal}, nil
	}
	if p.check(TokenSize) {
		return p.parseFunctionCall()
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	return path, nil
}

func (p *parser) parsePath() (*PathNode, error) {
	if !p.match(TokenIdentifier) {
		return nil, p.errorf(p.peek(), "expected attribute name")
	}
	parts := []PathPart{{Name: p.prev().Literal, Index: -1}}
	for {
		if p.match(TokenDot) {
			if !p.match(TokenIdentifier) {
				return nil, p.errorf(p.peek(), "expected attribute name after '.'")
			}
			parts = append(parts, PathPart{Name: p.prev().Literal, Index: -1})
		} else if p.match(TokenLBracket) {
			if !p.match(TokenNumber) {
				return nil, p.errorf(p.peek(), "expected list index")
			}
			idx, err := strconv.Atoi(p.prev().Literal)
			if err != nil || idx < 0 {
				return nil, p.errorf(p.prev(), "invalid list index")
			}
			if !p.match(TokenRBracket) {
				return nil, p.errorf(p.peek(), "expected ']'")
			}
			parts = append(parts, PathPart{Index: idx, IsIndex: true})
		} else {
			break
		}
	}
	return &PathNode{Parts: parts}, nil
}

func (p *parser) parseFunctionCall() (Node, error) {
	start := p.advance()
	name := start.Literal
	if !p.match(TokenLParen) {
		return nil, p.errorf(p.peek(), "expected '(' after "+name)
	}
	var args []Node
	if !p.check(TokenRParen) {
		for {
			arg, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(TokenComma) {
				break
			}
		}
	}
	if !p.match(TokenRParen) {
		return nil, p.errorf(p.peek(), "expected ')'")
	}
	if want, known := functionArity[name]; known && len(args) != want {
		return nil, p.errorf(start, fmt.Sprintf("%s requires %d arguments, got %d", name, want, len(args)))
	}
	return &FunctionNode{Name: name, Arguments: args}, nil
}

var functionArity = map[string]int{
	"attribute_exists":     1,
	"attribute_not_exists": 1,
	"attribute_type":       2,
	"begins_with":          2,
	"contains":             2,
	"size":                 1,
}

func (p *parser) isBooleanFunction() bool {
	switch p.peek().Type {
	case TokenAttributeExists, TokenAttributeNotExists, TokenAttributeType,
		TokenBeginsWith, TokenContains:
		return true
	}
	return false
}

// Helpers

func (p *parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *parser) advance() Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: p.pos}
	}
	return p.tokens[p.pos]
}

func (p *parser) prev() Token {
	return p.tokens[p.pos-1]
}

func (p *parser) errorf(tok Token, msg string) error {
	return &ParseError{Pos: tok.Pos, Token: tok.Literal, Msg: msg}
}

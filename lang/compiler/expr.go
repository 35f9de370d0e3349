package compiler

import (
	"strconv"

	"github.com/mna/loxvm/lang/machine"
	"github.com/mna/loxvm/lang/token"
)

// Precedence orders binding strength from loosest to tightest, matching the
// grammar's expression hierarchy.
type Precedence uint8

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is indexed by token.Token; it is sized generously past the known
// keyword range so adding a token kind never risks an out-of-bounds index.
var rules [64]parseRule

func init() {
	rules[token.LEFT_PAREN] = parseRule{grouping, call, PrecCall}
	rules[token.DOT] = parseRule{nil, dot, PrecCall}
	rules[token.MINUS] = parseRule{unary, binary, PrecTerm}
	rules[token.PLUS] = parseRule{nil, binary, PrecTerm}
	rules[token.SLASH] = parseRule{nil, binary, PrecFactor}
	rules[token.STAR] = parseRule{nil, binary, PrecFactor}
	rules[token.BANG] = parseRule{unary, nil, PrecNone}
	rules[token.BANG_EQUAL] = parseRule{nil, binary, PrecEquality}
	rules[token.EQUAL_EQUAL] = parseRule{nil, binary, PrecEquality}
	rules[token.GREATER] = parseRule{nil, binary, PrecComparison}
	rules[token.GREATER_EQUAL] = parseRule{nil, binary, PrecComparison}
	rules[token.LESS] = parseRule{nil, binary, PrecComparison}
	rules[token.LESS_EQUAL] = parseRule{nil, binary, PrecComparison}
	rules[token.IDENTIFIER] = parseRule{variable, nil, PrecNone}
	rules[token.STRING] = parseRule{stringLiteral, nil, PrecNone}
	rules[token.NUMBER] = parseRule{number, nil, PrecNone}
	rules[token.AND] = parseRule{nil, and_, PrecAnd}
	rules[token.OR] = parseRule{nil, or_, PrecOr}
	rules[token.FALSE] = parseRule{literal, nil, PrecNone}
	rules[token.TRUE] = parseRule{literal, nil, PrecNone}
	rules[token.NIL] = parseRule{literal, nil, PrecNone}
	rules[token.THIS] = parseRule{this_, nil, PrecNone}
	rules[token.SUPER] = parseRule{super_, nil, PrecNone}
}

func (p *parser) getRule(kind token.Token) *parseRule { return &rules[kind] }

func (p *parser) expression() { p.parsePrecedence(PrecAssignment) }

func (p *parser) parsePrecedence(prec Precedence) {
	p.advance()
	prefix := p.getRule(p.previous.Kind).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(p, canAssign)

	for prec <= p.getRule(p.current.Kind).precedence {
		p.advance()
		infix := p.getRule(p.previous.Kind).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(token.EQUAL) {
		p.error("Invalid assignment target.")
	}
}

func grouping(p *parser, _ bool) {
	p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
}

func number(p *parser, _ bool) {
	f, err := strconv.ParseFloat(p.previous.Text, 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(machine.Number(f))
}

func stringLiteral(p *parser, _ bool) {
	text := p.previous.Text
	// Text includes the surrounding quotes.
	p.emitConstant(p.gc.NewString(text[1 : len(text)-1]))
}

func literal(p *parser, _ bool) {
	switch p.previous.Kind {
	case token.FALSE:
		p.emitOp(machine.OpFalse)
	case token.TRUE:
		p.emitOp(machine.OpTrue)
	case token.NIL:
		p.emitOp(machine.OpNil)
	}
}

func unary(p *parser, _ bool) {
	opKind := p.previous.Kind
	p.parsePrecedence(PrecUnary)

	switch opKind {
	case token.MINUS:
		p.emitOp(machine.OpNegate)
	case token.BANG:
		p.emitOp(machine.OpNot)
	}
}

func binary(p *parser, _ bool) {
	opKind := p.previous.Kind
	rule := p.getRule(opKind)
	p.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case token.BANG_EQUAL:
		p.emitOp(machine.OpEqual)
		p.emitOp(machine.OpNot)
	case token.EQUAL_EQUAL:
		p.emitOp(machine.OpEqual)
	case token.GREATER:
		p.emitOp(machine.OpGreater)
	case token.GREATER_EQUAL:
		p.emitOp(machine.OpLess)
		p.emitOp(machine.OpNot)
	case token.LESS:
		p.emitOp(machine.OpLess)
	case token.LESS_EQUAL:
		p.emitOp(machine.OpGreater)
		p.emitOp(machine.OpNot)
	case token.PLUS:
		p.emitOp(machine.OpAdd)
	case token.MINUS:
		p.emitOp(machine.OpSubtract)
	case token.STAR:
		p.emitOp(machine.OpMultiply)
	case token.SLASH:
		p.emitOp(machine.OpDivide)
	}
}

func and_(p *parser, _ bool) {
	endJump := p.emitJump(machine.OpJumpIfFalse)
	p.emitOp(machine.OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func or_(p *parser, _ bool) {
	elseJump := p.emitJump(machine.OpJumpIfFalse)
	endJump := p.emitJump(machine.OpJump)

	p.patchJump(elseJump)
	p.emitOp(machine.OpPop)

	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func call(p *parser, _ bool) {
	argc := p.argumentList()
	p.emitOpByte(machine.OpCall, byte(argc))
}

func (p *parser) argumentList() int {
	argc := 0
	if !p.check(token.RIGHT_PAREN) {
		for {
			p.expression()
			if argc == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			argc++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "Expect ')' after arguments.")
	return argc
}

func dot(p *parser, canAssign bool) {
	p.consume(token.IDENTIFIER, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous.Text)

	switch {
	case canAssign && p.match(token.EQUAL):
		p.expression()
		p.emitOpByte(machine.OpSetProperty, name)
	case p.match(token.LEFT_PAREN):
		argc := p.argumentList()
		p.emitOpByte(machine.OpInvoke, name)
		p.emitByte(byte(argc))
	default:
		p.emitOpByte(machine.OpGetProperty, name)
	}
}

func variable(p *parser, canAssign bool) {
	p.namedVariable(p.previous.Text, canAssign)
}

func this_(p *parser, _ bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.namedVariable("this", false)
}

func super_(p *parser, _ bool) {
	switch {
	case p.class == nil:
		p.error("Can't use 'super' outside of a class.")
	case !p.class.hasSuperclass:
		p.error("Can't use 'super' in a class with no superclass.")
	}

	p.consume(token.DOT, "Expect '.' after 'super'.")
	p.consume(token.IDENTIFIER, "Expect superclass method name.")
	name := p.identifierConstant(p.previous.Text)

	p.namedVariable("this", false)
	if p.match(token.LEFT_PAREN) {
		argc := p.argumentList()
		p.namedVariable("super", false)
		p.emitOpByte(machine.OpSuperInvoke, name)
		p.emitByte(byte(argc))
	} else {
		p.namedVariable("super", false)
		p.emitOpByte(machine.OpGetSuper, name)
	}
}

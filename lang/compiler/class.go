package compiler

import (
	"github.com/mna/loxvm/lang/machine"
	"github.com/mna/loxvm/lang/token"
)

func (p *parser) classDeclaration() {
	p.consume(token.IDENTIFIER, "Expect class name.")
	name := p.previous.Text
	nameConst := p.identifierConstant(name)
	p.declareVariable(name)

	p.emitOpByte(machine.OpClass, nameConst)
	if p.comp.scopeDepth == 0 {
		p.emitOpByte(machine.OpDefineGlobal, nameConst)
	} else {
		p.markInitialized()
	}

	cs := &classState{enclosing: p.class}
	p.class = cs

	if p.match(token.LESS) {
		p.consume(token.IDENTIFIER, "Expect superclass name.")
		superName := p.previous.Text
		if superName == name {
			p.error("A class can't inherit from itself.")
		}
		p.namedVariable(superName, false)

		p.beginScope()
		p.addLocal("super")
		p.markInitialized()

		p.namedVariable(name, false)
		p.emitOp(machine.OpInherit)
		cs.hasSuperclass = true
	}

	p.namedVariable(name, false)
	p.consume(token.LEFT_BRACE, "Expect '{' before class body.")
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RIGHT_BRACE, "Expect '}' after class body.")
	p.emitOp(machine.OpPop) // the class itself, left by namedVariable above

	if cs.hasSuperclass {
		p.endScope()
	}
	p.class = cs.enclosing
}

func (p *parser) method() {
	p.consume(token.IDENTIFIER, "Expect method name.")
	name := p.previous.Text
	nameConst := p.identifierConstant(name)

	kind := KindMethod
	if name == "init" {
		kind = KindInitializer
	}
	p.function(kind, name)
	p.emitOpByte(machine.OpMethod, nameConst)
}

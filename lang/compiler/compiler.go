// Package compiler compiles Lox source text directly to bytecode in a
// single pass: scanning, scope/upvalue resolution, and emission all happen
// together as the parser descends the grammar, with no intermediate AST.
package compiler

import (
	"fmt"

	"github.com/mna/loxvm/lang/machine"
	"github.com/mna/loxvm/lang/scanner"
	"github.com/mna/loxvm/lang/token"
)

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxParams   = 255
)

// FunctionKind distinguishes the handful of ways a Chunk gets built: the
// top-level script, a plain function, a method, and a class initializer
// (which implicitly returns the instance rather than nil).
type FunctionKind uint8

const (
	KindScript FunctionKind = iota
	KindFunction
	KindMethod
	KindInitializer
)

type local struct {
	name     string
	depth    int // -1 while the declaring initializer is still being compiled
	captured bool
}

type upvalueRef struct {
	index   int
	isLocal bool
}

// funcState is the compiler's state for one Function under construction. It
// forms a stack through enclosing, one level per nested function/method
// declaration, mirroring the lexical nesting of the source.
type funcState struct {
	enclosing *funcState

	function *machine.ObjFunction
	kind     FunctionKind

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

// classState tracks whether the parser is currently inside a class body and
// whether that class has a superclass, forming a stack across nested class
// declarations the same way funcState does for functions.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// parser holds all state for one single-pass compile: the token stream, the
// chain of function compilers, and accumulated errors. It implements
// machine.RootProvider so the GC can trace Functions still under
// construction.
type parser struct {
	scan *scanner.Scanner
	gc   *machine.GC

	current  scanner.Tok
	previous scanner.Tok

	hadError  bool
	panicking bool
	errors    []error

	comp  *funcState
	class *classState
}

// MarkRoots marks every Function under construction along the enclosing
// chain, keeping them reachable across a GC cycle triggered mid-compile.
func (p *parser) MarkRoots(gc *machine.GC) {
	for c := p.comp; c != nil; c = c.enclosing {
		gc.MarkValue(c.function)
	}
}

// Compile compiles source into a top-level Function under gc. If any syntax
// error is encountered it returns a nil Function and every error found:
// panic-mode recovery lets compilation continue after an error purely to
// surface more of them, not to produce runnable bytecode.
func Compile(source string, gc *machine.GC) (*machine.ObjFunction, []error) {
	p := &parser{
		scan: scanner.New(source),
		gc:   gc,
	}
	gc.SetCompiler(p)
	defer gc.SetCompiler(nil)

	p.pushFunc(KindScript, "")
	p.advance()

	for !p.match(token.EOF) {
		p.declaration()
	}

	fn := p.endFunc()

	if p.hadError {
		return nil, p.errors
	}
	return fn, nil
}

func (p *parser) pushFunc(kind FunctionKind, name string) {
	fn := p.gc.NewFunction()
	fs := &funcState{
		enclosing: p.comp,
		function:  fn,
		kind:      kind,
	}
	// fs becomes the current compiler before the name is allocated, so fn is
	// already a GC root if that allocation triggers a collection.
	p.comp = fs
	if name != "" {
		fn.Name = p.gc.NewString(name)
	}

	// Slot 0 is reserved. Every kind but a plain function keeps "this" as
	// its name (scripts and bare functions never resolve the identifier, so
	// only methods and initializers ever observe it).
	slotName := ""
	if kind != KindFunction {
		slotName = "this"
	}
	fs.locals = append(fs.locals, local{name: slotName, depth: 0})
}

// endFunc finalizes the current function compiler, emits its implicit
// return, and pops back to the enclosing one.
func (p *parser) endFunc() *machine.ObjFunction {
	p.emitReturn()
	fn := p.comp.function
	fn.UpvalueCount = len(p.comp.upvalues)
	p.comp = p.comp.enclosing
	return fn
}

func (p *parser) currentChunk() *machine.Chunk { return &p.comp.function.Chunk }

// --- token stream -----------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scan.Scan()
		if p.current.Kind != token.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Text)
	}
}

func (p *parser) check(kind token.Token) bool { return p.current.Kind == kind }

func (p *parser) match(kind token.Token) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(kind token.Token, message string) {
	if p.current.Kind == kind {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *parser) errorAtCurrent(message string) { p.errorAt(p.current, message) }
func (p *parser) error(message string)          { p.errorAt(p.previous, message) }

func (p *parser) errorAt(t scanner.Tok, message string) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.hadError = true

	where := ""
	switch {
	case t.Kind == token.EOF:
		where = " at end"
	case t.Kind == token.ERROR:
		// message is already the scanner's own text; no token to quote.
	default:
		where = fmt.Sprintf(" at '%s'", t.Text)
	}
	p.errors = append(p.errors, &CompileError{Line: t.Line, Where: where, Message: message})
}

// synchronize discards tokens until it finds a plausible statement
// boundary, so one error doesn't cascade into a flood of spurious ones.
func (p *parser) synchronize() {
	p.panicking = false

	for p.current.Kind != token.EOF {
		if p.previous.Kind == token.SEMICOLON {
			return
		}
		switch p.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
	}
}

// --- emission -----------------------------------------------------------

func (p *parser) emitByte(b byte) { p.currentChunk().Write(b, p.previous.Line) }

func (p *parser) emitOp(op machine.OpCode) { p.emitByte(byte(op)) }

func (p *parser) emitOpByte(op machine.OpCode, b byte) {
	p.emitByte(byte(op))
	p.emitByte(b)
}

func (p *parser) emitReturn() {
	if p.comp.kind == KindInitializer {
		p.emitOpByte(machine.OpGetLocal, 0)
	} else {
		p.emitOp(machine.OpNil)
	}
	p.emitOp(machine.OpReturn)
}

func (p *parser) emitConstant(v machine.Value) {
	idx, err := p.currentChunk().AddConstant(v)
	if err != nil {
		p.error(err.Error())
		return
	}
	p.emitOpByte(machine.OpConstant, byte(idx))
}

// emitJump emits op followed by a two-byte placeholder and returns the
// offset of the first placeholder byte, to be patched by patchJump once the
// jump target is known.
func (p *parser) emitJump(op machine.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.currentChunk().Code) - 2
}

func (p *parser) patchJump(offset int) {
	code := p.currentChunk().Code
	jump := len(code) - offset - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
		return
	}
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump)
}

func (p *parser) emitLoop(loopStart int) {
	p.emitOp(machine.OpLoop)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
		return
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

// identifierConstant interns name and adds it to the current chunk's
// constant pool, returning its index.
func (p *parser) identifierConstant(name string) byte {
	idx, err := p.currentChunk().AddConstant(p.gc.NewString(name))
	if err != nil {
		p.error(err.Error())
		return 0
	}
	return byte(idx)
}

// --- scopes and locals ---------------------------------------------------

func (p *parser) beginScope() { p.comp.scopeDepth++ }

func (p *parser) endScope() {
	p.comp.scopeDepth--
	locals := p.comp.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.comp.scopeDepth {
		if locals[len(locals)-1].captured {
			p.emitOp(machine.OpCloseUpvalue)
		} else {
			p.emitOp(machine.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.comp.locals = locals
}

func (p *parser) declareVariable(name string) {
	if p.comp.scopeDepth == 0 {
		return
	}
	for i := len(p.comp.locals) - 1; i >= 0; i-- {
		l := p.comp.locals[i]
		if l.depth != -1 && l.depth < p.comp.scopeDepth {
			break
		}
		if l.name == name {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *parser) addLocal(name string) {
	if len(p.comp.locals) >= maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	p.comp.locals = append(p.comp.locals, local{name: name, depth: -1})
}

func (p *parser) markInitialized() {
	if p.comp.scopeDepth == 0 {
		return
	}
	p.comp.locals[len(p.comp.locals)-1].depth = p.comp.scopeDepth
}

// resolveLocal looks up name in fs's own locals, newest first.
func resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return -1, false
}

// resolveUpvalue resolves name as a captured variable of some enclosing
// function, inserting upvalue entries along every intermediate function so
// each frame only ever reaches one level outward.
func resolveUpvalue(p *parser, fs *funcState, name string) (int, bool) {
	if fs.enclosing == nil {
		return -1, false
	}

	if idx, ok := resolveLocal(fs.enclosing, name); ok {
		if fs.enclosing.locals[idx].depth == -1 {
			p.error("Can't read local variable in its own initializer.")
		}
		fs.enclosing.locals[idx].captured = true
		return addUpvalue(p, fs, idx, true), true
	}

	if idx, ok := resolveUpvalue(p, fs.enclosing, name); ok {
		return addUpvalue(p, fs, idx, false), true
	}

	return -1, false
}

func addUpvalue(p *parser, fs *funcState, index int, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		p.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}

// namedVariable resolves name through the three-tier search (own locals,
// enclosing-function upvalues, globals) and emits the matching get/set pair
// depending on whether an assignment follows.
func (p *parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp machine.OpCode
	var arg int

	if idx, ok := resolveLocal(p.comp, name); ok {
		if p.comp.locals[idx].depth == -1 {
			p.error("Can't read local variable in its own initializer.")
		}
		getOp, setOp, arg = machine.OpGetLocal, machine.OpSetLocal, idx
	} else if idx, ok := resolveUpvalue(p, p.comp, name); ok {
		getOp, setOp, arg = machine.OpGetUpvalue, machine.OpSetUpvalue, idx
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = machine.OpGetGlobal, machine.OpSetGlobal
	}

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

// --- declarations and statements -----------------------------------------

func (p *parser) declaration() {
	switch {
	case p.match(token.CLASS):
		p.classDeclaration()
	case p.match(token.FUN):
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.statement()
	}

	if p.panicking {
		p.synchronize()
	}
}

func (p *parser) varDeclaration() {
	p.consume(token.IDENTIFIER, "Expect variable name.")
	name := p.previous.Text
	p.declareVariable(name)
	global := byte(0)
	isGlobal := p.comp.scopeDepth == 0
	if isGlobal {
		global = p.identifierConstant(name)
	}

	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitOp(machine.OpNil)
	}
	p.consume(token.SEMICOLON, "Expect ';' after variable declaration.")

	if isGlobal {
		p.emitOpByte(machine.OpDefineGlobal, global)
	} else {
		p.markInitialized()
	}
}

func (p *parser) funDeclaration() {
	p.consume(token.IDENTIFIER, "Expect function name.")
	name := p.previous.Text
	p.declareVariable(name)
	if p.comp.scopeDepth > 0 {
		p.markInitialized()
	}
	p.function(KindFunction, name)

	if p.comp.scopeDepth == 0 {
		p.emitOpByte(machine.OpDefineGlobal, p.identifierConstant(name))
	} else {
		p.markInitialized()
	}
}

// function compiles one function body (shared by plain functions, methods
// and initializers) and emits the OP_CLOSURE instruction capturing it into
// the enclosing function's code.
func (p *parser) function(kind FunctionKind, name string) {
	p.pushFunc(kind, name)
	p.beginScope()

	p.consume(token.LEFT_PAREN, "Expect '(' after function name.")
	if !p.check(token.RIGHT_PAREN) {
		for {
			p.comp.function.Arity++
			if p.comp.function.Arity > maxParams {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			p.consume(token.IDENTIFIER, "Expect parameter name.")
			p.declareVariable(p.previous.Text)
			p.markInitialized()
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "Expect ')' after parameters.")
	p.consume(token.LEFT_BRACE, "Expect '{' before function body.")
	p.block()

	upvalues := p.comp.upvalues
	fn := p.endFunc()

	idx, err := p.currentChunk().AddConstant(fn)
	if err != nil {
		p.error(err.Error())
		return
	}
	p.emitOpByte(machine.OpClosure, byte(idx))
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.isLocal {
			isLocal = 1
		}
		p.emitByte(isLocal)
		p.emitByte(byte(uv.index))
	}
}

func (p *parser) block() {
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RIGHT_BRACE, "Expect '}' after block.")
}

func (p *parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.LEFT_BRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) printStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after value.")
	p.emitOp(machine.OpPrint)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after expression.")
	p.emitOp(machine.OpPop)
}

func (p *parser) returnStatement() {
	if p.comp.kind == KindScript {
		p.error("Can't return from top-level code.")
	}

	if p.match(token.SEMICOLON) {
		p.emitReturn()
		return
	}

	if p.comp.kind == KindInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after return value.")
	p.emitOp(machine.OpReturn)
}

func (p *parser) ifStatement() {
	p.consume(token.LEFT_PAREN, "Expect '(' after 'if'.")
	p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	thenJump := p.emitJump(machine.OpJumpIfFalse)
	p.emitOp(machine.OpPop)
	p.statement()

	elseJump := p.emitJump(machine.OpJump)
	p.patchJump(thenJump)
	p.emitOp(machine.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := len(p.currentChunk().Code)
	p.consume(token.LEFT_PAREN, "Expect '(' after 'while'.")
	p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	exitJump := p.emitJump(machine.OpJumpIfFalse)
	p.emitOp(machine.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(machine.OpPop)
}

func (p *parser) forStatement() {
	p.beginScope()
	p.consume(token.LEFT_PAREN, "Expect '(' after 'for'.")

	switch {
	case p.match(token.SEMICOLON):
		// no initializer
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.currentChunk().Code)
	exitJump := -1
	if !p.match(token.SEMICOLON) {
		p.expression()
		p.consume(token.SEMICOLON, "Expect ';' after loop condition.")
		exitJump = p.emitJump(machine.OpJumpIfFalse)
		p.emitOp(machine.OpPop)
	}

	if !p.match(token.RIGHT_PAREN) {
		bodyJump := p.emitJump(machine.OpJump)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitOp(machine.OpPop)
		p.consume(token.RIGHT_PAREN, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(machine.OpPop)
	}

	p.endScope()
}

package compiler_test

import (
	"testing"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opcodes(t *testing.T, chunk *machine.Chunk) []machine.OpCode {
	t.Helper()

	var ops []machine.OpCode
	for offset := 0; offset < len(chunk.Code); {
		op := machine.OpCode(chunk.Code[offset])
		ops = append(ops, op)
		switch op {
		case machine.OpConstant, machine.OpGetLocal, machine.OpSetLocal,
			machine.OpGetGlobal, machine.OpDefineGlobal, machine.OpSetGlobal,
			machine.OpGetUpvalue, machine.OpSetUpvalue, machine.OpGetProperty,
			machine.OpSetProperty, machine.OpGetSuper, machine.OpCall,
			machine.OpClass, machine.OpMethod:
			offset += 2
		case machine.OpJump, machine.OpJumpIfFalse, machine.OpLoop:
			offset += 3
		case machine.OpInvoke, machine.OpSuperInvoke:
			offset += 3
		case machine.OpClosure:
			fn := chunk.Constants[chunk.Code[offset+1]].(*machine.ObjFunction)
			offset += 2 + 2*fn.UpvalueCount
		default:
			offset++
		}
	}
	return ops
}

func TestCompileArithmeticEmitsExpectedOpcodes(t *testing.T) {
	gc := machine.NewGC()
	fn, errs := compiler.Compile("print 1 + 2;", gc)
	require.Empty(t, errs)

	assert.Equal(t, []machine.OpCode{
		machine.OpConstant, machine.OpConstant, machine.OpAdd, machine.OpPrint,
		machine.OpNil, machine.OpReturn,
	}, opcodes(t, &fn.Chunk))

	require.Len(t, fn.Chunk.Constants, 2)
	assert.Equal(t, machine.Number(1), fn.Chunk.Constants[0])
	assert.Equal(t, machine.Number(2), fn.Chunk.Constants[1])
}

func TestCompileGlobalVarDeclarationAndAssignment(t *testing.T) {
	gc := machine.NewGC()
	fn, errs := compiler.Compile(`var x = 1; x = 2;`, gc)
	require.Empty(t, errs)

	assert.Equal(t, []machine.OpCode{
		machine.OpConstant, machine.OpDefineGlobal,
		machine.OpConstant, machine.OpSetGlobal, machine.OpPop,
		machine.OpNil, machine.OpReturn,
	}, opcodes(t, &fn.Chunk))
}

func TestCompileLocalScopeUsesSlotsNotGlobals(t *testing.T) {
	gc := machine.NewGC()
	fn, errs := compiler.Compile(`{ var x = 1; print x; }`, gc)
	require.Empty(t, errs)

	assert.Equal(t, []machine.OpCode{
		machine.OpConstant, machine.OpGetLocal, machine.OpPrint, machine.OpPop,
		machine.OpNil, machine.OpReturn,
	}, opcodes(t, &fn.Chunk))
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	gc := machine.NewGC()
	fn, errs := compiler.Compile(`
		fun outer() {
			var x = 1;
			fun inner() {
				return x;
			}
			return inner;
		}
	`, gc)
	require.Empty(t, errs)

	assert.Equal(t, []machine.OpCode{
		machine.OpClosure, machine.OpDefineGlobal, machine.OpNil, machine.OpReturn,
	}, opcodes(t, &fn.Chunk))

	outer := fn.Chunk.Constants[0].(*machine.ObjFunction)
	assert.Equal(t, 0, outer.UpvalueCount)
	assert.Equal(t, []machine.OpCode{
		machine.OpConstant, machine.OpClosure, machine.OpGetLocal,
		machine.OpReturn, machine.OpNil, machine.OpReturn,
	}, opcodes(t, &outer.Chunk))

	inner := outer.Chunk.Constants[1].(*machine.ObjFunction)
	assert.Equal(t, 1, inner.UpvalueCount)
	assert.Equal(t, []machine.OpCode{
		machine.OpGetUpvalue, machine.OpReturn, machine.OpNil, machine.OpReturn,
	}, opcodes(t, &inner.Chunk))
}

func TestCompileErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing semicolon",
			src:  "var x = 1",
			want: "[line 1] Error at end: Expect ';' after variable declaration.",
		},
		{
			name: "return at top level",
			src:  "return 1;",
			want: "[line 1] Error at 'return': Can't return from top-level code.",
		},
		{
			name: "this outside class",
			src:  "print this;",
			want: "[line 1] Error at 'this': Can't use 'this' outside of a class.",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gc := machine.NewGC()
			_, errs := compiler.Compile(c.src, gc)
			require.NotEmpty(t, errs)
			assert.Equal(t, c.want, errs[0].Error())
		})
	}
}

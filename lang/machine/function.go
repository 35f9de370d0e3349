package machine

import "fmt"

// ObjFunction is a compiled function: its arity, how many upvalues its
// closures capture, and the Chunk of bytecode that implements its body. The
// top-level script is itself represented as a nameless ObjFunction.
type ObjFunction struct {
	object
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString // nil for the synthetic top-level script
}

var _ heapObject = (*ObjFunction)(nil)

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.chars)
}
func (f *ObjFunction) Type() string { return "function" }
func (f *ObjFunction) Truth() bool  { return true }

// NewFunction allocates an empty ObjFunction through the GC. The compiler
// calls this up front for every function (including the top-level script)
// it is about to compile, so the object is reachable by the GC for the
// entire duration of its construction.
func (gc *GC) NewFunction() *ObjFunction {
	fn := &ObjFunction{}
	fn.typ = objFunction
	gc.track(fn, 64)
	return fn
}

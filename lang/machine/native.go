package machine

// NativeFn is the calling convention for a native (Go-implemented) function:
// it receives a contiguous slice of argument values and returns exactly one
// result value, or an error to be reported as a runtime error. This is the
// entire interface the VM requires of a native-function registry, which is
// otherwise out of scope.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a NativeFn so it can be called like any other Lox
// function.
type ObjNative struct {
	object
	Name string
	Fn   NativeFn
}

var _ heapObject = (*ObjNative)(nil)

func (n *ObjNative) String() string { return "<native fn>" }
func (n *ObjNative) Type() string   { return "native" }
func (n *ObjNative) Truth() bool    { return true }

// NewNative allocates an ObjNative wrapping fn through the GC.
func (gc *GC) NewNative(name string, fn NativeFn) *ObjNative {
	native := &ObjNative{Name: name, Fn: fn}
	native.typ = objNative
	gc.track(native, 32)
	return native
}

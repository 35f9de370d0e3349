package machine

// ObjBoundMethod pairs a receiver value with the Closure implementing the
// method looked up on it. Invoking it replaces stack slot 0 with Receiver
// before running Method.
type ObjBoundMethod struct {
	object
	Receiver Value
	Method   *ObjClosure
}

var _ heapObject = (*ObjBoundMethod)(nil)

func (b *ObjBoundMethod) String() string { return b.Method.String() }
func (b *ObjBoundMethod) Type() string   { return "bound method" }
func (b *ObjBoundMethod) Truth() bool    { return true }

// NewBoundMethod allocates an ObjBoundMethod through the GC.
func (gc *GC) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	bm := &ObjBoundMethod{Receiver: receiver, Method: method}
	bm.typ = objBoundMethod
	gc.track(bm, 32)
	return bm
}

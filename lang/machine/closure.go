package machine

// ObjClosure pairs an ObjFunction with the fixed-length array of upvalues it
// captured. Its Upvalues slice length always equals
// Function.UpvalueCount and is populated in a single pass immediately
// following the OP_CLOSURE instruction that created it.
type ObjClosure struct {
	object
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

var _ heapObject = (*ObjClosure)(nil)

func (c *ObjClosure) String() string { return c.Function.String() }
func (c *ObjClosure) Type() string   { return "function" }
func (c *ObjClosure) Truth() bool    { return true }

// NewClosure allocates an ObjClosure wrapping fn, with an empty Upvalues
// array of the size fn declares. The VM's OP_CLOSURE handler fills it in.
func (gc *GC) NewClosure(fn *ObjFunction) *ObjClosure {
	cl := &ObjClosure{
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
	cl.typ = objClosure
	gc.track(cl, 32+8*fn.UpvalueCount)
	return cl
}

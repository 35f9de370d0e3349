package machine

import "github.com/dolthub/swiss"

// ObjClass is a class: a name and a mapping from method-name String to the
// Closure implementing it. Method tables hold Closures, not bare Functions,
// so methods may capture environment state via nested declarations.
type ObjClass struct {
	object
	Name    *ObjString
	Methods *swiss.Map[*ObjString, *ObjClosure]
}

var _ heapObject = (*ObjClass)(nil)

func (c *ObjClass) String() string { return c.Name.chars }
func (c *ObjClass) Type() string   { return "class" }
func (c *ObjClass) Truth() bool    { return true }

// NewClass allocates an empty ObjClass through the GC.
func (gc *GC) NewClass(name *ObjString) *ObjClass {
	cls := &ObjClass{
		Name:    name,
		Methods: swiss.NewMap[*ObjString, *ObjClosure](4),
	}
	cls.typ = objClass
	gc.track(cls, 64)
	return cls
}

package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// ObjInstance is an instance of an ObjClass, with a mutable mapping from
// field-name String to Value.
type ObjInstance struct {
	object
	Class  *ObjClass
	Fields *swiss.Map[*ObjString, Value]
}

var _ heapObject = (*ObjInstance)(nil)

func (i *ObjInstance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.chars) }
func (i *ObjInstance) Type() string   { return "instance" }
func (i *ObjInstance) Truth() bool    { return true }

// NewInstance allocates an ObjInstance of class through the GC.
func (gc *GC) NewInstance(class *ObjClass) *ObjInstance {
	inst := &ObjInstance{
		Class:  class,
		Fields: swiss.NewMap[*ObjString, Value](4),
	}
	inst.typ = objInstance
	gc.track(inst, 64)
	return inst
}

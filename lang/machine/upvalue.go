package machine

// ObjUpvalue is an indirection that lets a closure share access to an outer
// function's local variable. While open, location points directly at the
// live stack slot; closing copies that slot's value into closed and
// redirects location to point at it, so reads and writes through the
// upvalue keep working identically before and after the local goes out of
// scope.
type ObjUpvalue struct {
	object
	location *Value
	closed   Value

	// stackSlot is the index into the VM's value stack this upvalue refers
	// to while open; it is the sort key for the VM's open-upvalue list and
	// is meaningless once the upvalue is closed.
	stackSlot int
	next      *ObjUpvalue // next-lower-slot open upvalue, or nil
}

var _ heapObject = (*ObjUpvalue)(nil)

func (u *ObjUpvalue) String() string { return "upvalue" }
func (u *ObjUpvalue) Type() string   { return "upvalue" }
func (u *ObjUpvalue) Truth() bool    { return true }

func (u *ObjUpvalue) get() Value  { return *u.location }
func (u *ObjUpvalue) set(v Value) { *u.location = v }

func (u *ObjUpvalue) isOpen() bool { return u.location != &u.closed }

// close copies the current value pointed at by location into the upvalue's
// own storage and redirects location there, detaching it from the stack
// slot it used to track.
func (u *ObjUpvalue) close() {
	u.closed = *u.location
	u.location = &u.closed
}

// newUpvalue allocates an open ObjUpvalue pointing at the given stack slot
// through the GC.
func (gc *GC) newUpvalue(slot *Value, slotIndex int) *ObjUpvalue {
	uv := &ObjUpvalue{location: slot, stackSlot: slotIndex}
	uv.typ = objUpvalue
	gc.track(uv, 32)
	return uv
}

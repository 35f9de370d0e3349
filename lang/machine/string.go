package machine

import "strconv"

// ObjString is an immutable, interned byte sequence. At most one live
// ObjString exists for any given byte content: the GC's intern table is the
// only path that creates one, so reference identity implies content
// equality (and vice versa).
type ObjString struct {
	object
	chars string
	hash  uint32
}

var _ heapObject = (*ObjString)(nil)

func (s *ObjString) String() string { return s.chars }
func (s *ObjString) Type() string   { return "string" }
func (s *ObjString) Truth() bool    { return true }

// Quoted returns the string formatted the way a value-inspecting tool (the
// disassembler, error messages referencing a literal) would show it.
func (s *ObjString) Quoted() string { return strconv.Quote(s.chars) }

// fnvHash computes the 32-bit FNV-1a hash stored on each ObjString, the same
// hash family the canonical clox implementation uses for ObjString. The
// intern table itself is keyed by the string content, not by this hash.
func fnvHash(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// NewString returns the canonical ObjString for the given content, interning
// it on first use. Every string-producing operation in the compiler and the
// VM (literals, concatenation, identifier names) must go through this
// method, never allocate an ObjString directly, or reference-equality
// semantics for strings would break.
func (gc *GC) NewString(s string) *ObjString {
	if existing, ok := gc.strings.Get(s); ok {
		return existing
	}

	str := &ObjString{chars: s, hash: fnvHash(s)}
	str.typ = objString
	gc.track(str, len(s))
	gc.strings.Put(s, str)
	return str
}

// Concat interns the concatenation of a and b without ever constructing a
// second ObjString for the same resulting content: the combined bytes are
// built once and handed to the same intern lookup every other string goes
// through.
func (gc *GC) Concat(a, b *ObjString) *ObjString {
	return gc.NewString(a.chars + b.chars)
}

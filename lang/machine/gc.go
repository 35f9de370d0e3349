package machine

import (
	"fmt"
	"io"

	"github.com/dolthub/swiss"
)

const (
	initialNextGC = 1 << 20 // 1 MiB
	gcGrowFactor  = 2
)

// RootProvider is implemented by anything the GC must treat as a source of
// roots beyond the intern table itself: the running VM, and (while a
// compile is in flight) the chain of enclosing compilers building
// not-yet-reachable-from-anywhere ObjFunctions. It is exported because the
// compiler package, which lives outside this one, must implement it.
type RootProvider interface {
	MarkRoots(gc *GC)
}

// GC is a precise, non-generational mark-sweep collector. Every heap object
// is allocated exclusively through one of its New* methods, which link the
// object into an intrusive list, account its size, and may trigger a
// collection before returning.
type GC struct {
	objects        heapObject
	bytesAllocated int
	nextGC         int

	strings *swiss.Map[string, *ObjString]

	// StressGC, when true, runs a full collection before every allocation.
	// LogWriter, when non-nil, receives a line of diagnostic text for every
	// collection cycle. Both are debugging aids, off by default.
	StressGC  bool
	LogWriter io.Writer

	vm       RootProvider
	compiler RootProvider

	gray []heapObject
}

// NewGC returns a GC ready to serve allocations, with no roots registered
// yet; call SetVM (and, during compilation, SetCompiler) before triggering a
// collection, or roots will be incomplete.
func NewGC() *GC {
	return &GC{
		nextGC:  initialNextGC,
		strings: swiss.NewMap[string, *ObjString](64),
	}
}

// SetVM registers vm as a root source. Called once by NewVM.
func (gc *GC) SetVM(vm RootProvider) { gc.vm = vm }

// SetCompiler registers (or, passed nil, unregisters) the active compiler as
// a root source, so that Function objects still under construction remain
// reachable across any allocation-triggered collection during compilation.
func (gc *GC) SetCompiler(c RootProvider) { gc.compiler = c }

// track links obj into the intrusive object list, accounts size bytes
// against the allocation budget, and collects first if the stress flag is
// set or the budget has been exceeded.
func (gc *GC) track(obj heapObject, size int) {
	gc.bytesAllocated += size
	if gc.StressGC || gc.bytesAllocated > gc.nextGC {
		gc.Collect()
	}

	h := obj.header()
	h.next = gc.objects
	gc.objects = obj
}

// Collect runs one mark-sweep cycle: mark every reachable object from the
// registered roots, purge unreachable strings from the intern table, then
// sweep the object list, freeing anything left unmarked.
func (gc *GC) Collect() {
	before := gc.bytesAllocated
	gc.gray = gc.gray[:0]

	if gc.vm != nil {
		gc.vm.MarkRoots(gc)
	}
	if gc.compiler != nil {
		gc.compiler.MarkRoots(gc)
	}

	for len(gc.gray) > 0 {
		n := len(gc.gray) - 1
		obj := gc.gray[n]
		gc.gray = gc.gray[:n]
		gc.blacken(obj)
	}

	gc.sweepStrings()
	gc.sweepObjects()

	gc.nextGC = gc.bytesAllocated * gcGrowFactor
	if gc.nextGC < initialNextGC {
		gc.nextGC = initialNextGC
	}

	if gc.LogWriter != nil {
		fmt.Fprintf(gc.LogWriter, "gc: collected %d bytes (%d -> %d), next at %d\n",
			before-gc.bytesAllocated, before, gc.bytesAllocated, gc.nextGC)
	}
}

// MarkValue marks v if it is a heap object and not already marked, pushing
// it onto the gray worklist for later blackening. External root providers
// (the compiler package) call this directly; internal blackening uses it
// too.
func (gc *GC) MarkValue(v Value) {
	if v == nil {
		return
	}
	ho, ok := v.(heapObject)
	if !ok {
		return
	}
	gc.markObject(ho)
}

func (gc *GC) markObject(ho heapObject) {
	h := ho.header()
	if h.marked {
		return
	}
	h.marked = true
	gc.gray = append(gc.gray, ho)
}

// blacken marks every value directly reachable from obj.
func (gc *GC) blacken(obj heapObject) {
	switch o := obj.(type) {
	case *ObjString, *ObjNative:
		// no outgoing references

	case *ObjUpvalue:
		gc.MarkValue(o.get())

	case *ObjFunction:
		gc.MarkValue(o.Name)
		for _, c := range o.Chunk.Constants {
			gc.MarkValue(c)
		}

	case *ObjClosure:
		gc.markObject(o.Function)
		for _, uv := range o.Upvalues {
			if uv != nil {
				gc.markObject(uv)
			}
		}

	case *ObjClass:
		gc.MarkValue(o.Name)
		o.Methods.Iter(func(name *ObjString, m *ObjClosure) bool {
			gc.MarkValue(name)
			gc.markObject(m)
			return false
		})

	case *ObjInstance:
		gc.markObject(o.Class)
		o.Fields.Iter(func(name *ObjString, v Value) bool {
			gc.MarkValue(name)
			gc.MarkValue(v)
			return false
		})

	case *ObjBoundMethod:
		gc.MarkValue(o.Receiver)
		gc.markObject(o.Method)
	}
}

// sweepStrings removes every intern-table entry whose ObjString did not
// survive marking. This must run before sweepObjects frees those same
// strings, or the table would retain dangling entries.
func (gc *GC) sweepStrings() {
	var dead []string
	gc.strings.Iter(func(content string, s *ObjString) bool {
		if !s.marked {
			dead = append(dead, content)
		}
		return false
	})
	for _, content := range dead {
		gc.strings.Delete(content)
	}
}

// sweepObjects walks the intrusive object list, freeing unmarked nodes and
// clearing the mark on survivors for the next cycle.
func (gc *GC) sweepObjects() {
	var prev heapObject
	obj := gc.objects
	for obj != nil {
		h := obj.header()
		next := h.next
		if h.marked {
			h.marked = false
			prev = obj
		} else {
			if prev == nil {
				gc.objects = next
			} else {
				prev.header().next = next
			}
		}
		obj = next
	}
}

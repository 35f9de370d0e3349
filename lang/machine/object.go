package machine

// objType tags the concrete variant of a heap object, letting the collector
// and the formatter dispatch on the object's dynamic type without resorting
// to reflection.
type objType uint8

const (
	objString objType = iota
	objFunction
	objNative
	objClosure
	objUpvalue
	objClass
	objInstance
	objBoundMethod
)

// heapObject is implemented by every Value variant that lives on the heap
// and participates in garbage collection. Its header carries the GC mark bit
// and the intrusive-list link that lets the collector walk every live
// object without a separate registry.
type heapObject interface {
	Value
	header() *object
}

// object is the common prefix embedded by every heap object. It is never
// used on its own; it exists so the intrusive object list and the mark bit
// live in a single place shared by every variant, per the tagged-sum
// re-architecture of the object model.
type object struct {
	typ    objType
	marked bool
	next   heapObject // next object in the GC's intrusive allocation list
}

func (o *object) header() *object { return o }

package machine

import (
	"fmt"
	"io"
	"time"

	"github.com/dolthub/swiss"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// RuntimeError is returned by Run when execution must halt because of a
// type mismatch, an undefined name, call-arity mismatch, or an overflowed
// stack. The VM has already written the diagnostic and stack trace to its
// configured stderr by the time Run returns one.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

// VM is a stack-based bytecode interpreter: a value stack, a call-frame
// stack, a globals table keyed by interned name, and the head of the
// open-upvalue list, sorted by descending stack slot.
type VM struct {
	gc *GC

	stack []Value
	frames []frame

	globals *swiss.Map[*ObjString, Value]

	openUpvalues *ObjUpvalue

	Stdout io.Writer
	Stderr io.Writer
}

// NewVM returns a VM ready to run compiled functions. It registers itself
// with gc as a root source and installs the single native function the core
// requires unconditionally: clock(), returning seconds since the Unix
// epoch, needed by the canonical Lox benchmark scripts and useful for any
// caller measuring wall-clock time from within a script.
func NewVM(gc *GC, stdout, stderr io.Writer) *VM {
	vm := &VM{
		gc:      gc,
		stack:   make([]Value, 0, stackMax),
		frames:  make([]frame, 0, framesMax),
		globals: swiss.NewMap[*ObjString, Value](16),
		Stdout:  stdout,
		Stderr:  stderr,
	}
	gc.SetVM(vm)

	clock := gc.NewNative("clock", func(args []Value) (Value, error) {
		return Number(float64(time.Now().UnixNano()) / 1e9), nil
	})
	vm.push(clock) // reachable while its name is interned
	vm.globals.Put(gc.NewString("clock"), clock)
	vm.pop()

	return vm
}

// MarkRoots implements RootProvider: it is called by the GC at the start of
// every collection cycle.
func (vm *VM) MarkRoots(gc *GC) {
	for _, v := range vm.stack {
		gc.MarkValue(v)
	}
	for i := range vm.frames {
		gc.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.next {
		gc.markObject(uv)
	}
	vm.globals.Iter(func(name *ObjString, v Value) bool {
		gc.markObject(name)
		gc.MarkValue(v)
		return false
	})
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distance int) Value { return vm.stack[len(vm.stack)-1-distance] }

func (vm *VM) currentFrame() *frame { return &vm.frames[len(vm.frames)-1] }

// Run installs fn inside a synthetic closure at stack slot 0, pushes the
// initial call frame, and dispatches until the outermost frame returns or a
// runtime error occurs.
func (vm *VM) Run(fn *ObjFunction) error {
	vm.push(fn) // reachable while its closure is allocated
	closure := vm.gc.NewClosure(fn)
	vm.pop()
	vm.push(closure)
	vm.frames = append(vm.frames, frame{closure: closure, base: 0})

	return vm.run()
}

func (vm *VM) run() error {
	for {
		f := vm.currentFrame()
		op := OpCode(f.readByte())

		switch op {
		case OpConstant:
			vm.push(f.readConstant())

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(Bool(true))
		case OpFalse:
			vm.push(Bool(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			slot := int(f.readByte())
			vm.push(vm.stack[f.base+slot])
		case OpSetLocal:
			slot := int(f.readByte())
			vm.stack[f.base+slot] = vm.peek(0)

		case OpGetGlobal:
			name := f.readConstant().(*ObjString)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.chars)
			}
			vm.push(v)
		case OpDefineGlobal:
			name := f.readConstant().(*ObjString)
			vm.globals.Put(name, vm.peek(0))
			vm.pop()
		case OpSetGlobal:
			name := f.readConstant().(*ObjString)
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.chars)
			}
			vm.globals.Put(name, vm.peek(0))

		case OpGetUpvalue:
			slot := int(f.readByte())
			vm.push(f.closure.Upvalues[slot].get())
		case OpSetUpvalue:
			slot := int(f.readByte())
			f.closure.Upvalues[slot].set(vm.peek(0))

		case OpGetProperty:
			inst, ok := vm.peek(0).(*ObjInstance)
			if !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			name := f.readConstant().(*ObjString)
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop() // instance
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return vm.runtimeError("Undefined property '%s'.", name.chars)
			}
		case OpSetProperty:
			inst, ok := vm.peek(1).(*ObjInstance)
			if !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			name := f.readConstant().(*ObjString)
			inst.Fields.Put(name, vm.peek(0))
			v := vm.pop()
			vm.pop() // instance
			vm.push(v)

		case OpGetSuper:
			name := f.readConstant().(*ObjString)
			super := vm.pop().(*ObjClass)
			if !vm.bindMethod(super, name) {
				return vm.runtimeError("Undefined property '%s'.", name.chars)
			}

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))
		case OpGreater:
			if err := vm.numericCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case OpLess:
			if err := vm.numericCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case OpSubtract:
			if err := vm.numericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case OpMultiply:
			if err := vm.numericBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case OpDivide:
			if err := vm.numericBinary(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case OpNot:
			vm.push(Bool(!vm.pop().Truth()))
		case OpNegate:
			n, ok := vm.peek(0).(Number)
			if !ok {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.pop()
			vm.push(-n)

		case OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case OpJump:
			off := f.readShort()
			f.ip += off
		case OpJumpIfFalse:
			off := f.readShort()
			if !vm.peek(0).Truth() {
				f.ip += off
			}
		case OpLoop:
			off := f.readShort()
			f.ip -= off

		case OpCall:
			argc := int(f.readByte())
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}

		case OpInvoke:
			name := f.readConstant().(*ObjString)
			argc := int(f.readByte())
			if err := vm.invoke(name, argc); err != nil {
				return err
			}

		case OpSuperInvoke:
			name := f.readConstant().(*ObjString)
			argc := int(f.readByte())
			super := vm.pop().(*ObjClass)
			if err := vm.invokeFromClass(super, name, argc); err != nil {
				return err
			}

		case OpClosure:
			fn := f.readConstant().(*ObjFunction)
			closure := vm.gc.NewClosure(fn)
			vm.push(closure) // reachable while its upvalues are allocated
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := f.readByte()
				index := int(f.readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(f.base + index)
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}

		case OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case OpReturn:
			result := vm.pop()
			returningFrame := f
			vm.closeUpvalues(returningFrame.base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop() // the synthetic top-level closure
				return nil
			}
			vm.stack = vm.stack[:returningFrame.base]
			vm.push(result)

		case OpClass:
			name := f.readConstant().(*ObjString)
			vm.push(vm.gc.NewClass(name))

		case OpInherit:
			super, ok := vm.peek(1).(*ObjClass)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			sub := vm.peek(0).(*ObjClass)
			super.Methods.Iter(func(name *ObjString, m *ObjClosure) bool {
				sub.Methods.Put(name, m)
				return false
			})
			vm.pop() // the subclass

		case OpMethod:
			name := f.readConstant().(*ObjString)
			method := vm.pop().(*ObjClosure)
			class := vm.peek(0).(*ObjClass)
			class.Methods.Put(name, method)

		default:
			return vm.runtimeError("Unknown opcode %s.", op)
		}
	}
}

func (vm *VM) numericBinary(apply func(a, b float64) float64) error {
	b, bok := vm.peek(0).(Number)
	a, aok := vm.peek(1).(Number)
	if !aok || !bok {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	vm.push(Number(apply(float64(a), float64(b))))
	return nil
}

func (vm *VM) numericCompare(apply func(a, b float64) bool) error {
	b, bok := vm.peek(0).(Number)
	a, aok := vm.peek(1).(Number)
	if !aok || !bok {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	vm.push(Bool(apply(float64(a), float64(b))))
	return nil
}

func (vm *VM) add() error {
	bNum, bNumOK := vm.peek(0).(Number)
	aNum, aNumOK := vm.peek(1).(Number)
	if aNumOK && bNumOK {
		vm.pop()
		vm.pop()
		vm.push(aNum + bNum)
		return nil
	}

	bStr, bStrOK := vm.peek(0).(*ObjString)
	aStr, aStrOK := vm.peek(1).(*ObjString)
	if aStrOK && bStrOK {
		vm.pop()
		vm.pop()
		vm.push(vm.gc.Concat(aStr, bStr))
		return nil
	}

	return vm.runtimeError("Operands must be two numbers or two strings.")
}

// runtimeError formats message, writes it plus a newest-first stack trace to
// Stderr, resets the value stack, call frames and open upvalues so the VM
// can run another function, and returns a *RuntimeError describing it for
// callers that need to distinguish a runtime failure from success
// programmatically.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.Stderr, msg)

	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		name := "script"
		if fn.Name != nil {
			name = fn.Name.chars
		}
		fmt.Fprintf(vm.Stderr, "[line %d] in %s\n", fr.line(), name)
	}

	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil

	return &RuntimeError{Message: msg}
}

package machine

// callValue dispatches a call to callee with argc arguments already sitting
// on top of the stack (callee itself sits at peek(argc)). A Native call, and
// a Class call without an init method, complete inline; a Closure, a
// BoundMethod, or a Class with an init method push a new frame for the main
// dispatch loop to continue into.
func (vm *VM) callValue(callee Value, argc int) error {
	switch c := callee.(type) {
	case *ObjBoundMethod:
		vm.stack[len(vm.stack)-argc-1] = c.Receiver
		return vm.callClosure(c.Method, argc)

	case *ObjClass:
		inst := vm.gc.NewInstance(c)
		vm.stack[len(vm.stack)-argc-1] = inst
		if init, ok := c.Methods.Get(vm.gc.NewString("init")); ok {
			return vm.callClosure(init, argc)
		}
		if argc != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argc)
		}
		return nil

	case *ObjClosure:
		return vm.callClosure(c, argc)

	case *ObjNative:
		args := vm.stack[len(vm.stack)-argc:]
		result, err := c.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		vm.push(result)
		return nil

	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// callClosure pushes a new call frame for closure, with its slot 0 already
// in place at the top of the current argument window.
func (vm *VM) callClosure(closure *ObjClosure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if len(vm.frames) >= framesMax {
		return vm.runtimeError("Stack overflow.")
	}

	vm.frames = append(vm.frames, frame{
		closure: closure,
		base:    len(vm.stack) - argc - 1,
	})
	return nil
}

// invoke fuses a property lookup with a call: if name resolves to a field
// on the receiving instance, the field's value is called like any other
// callee; otherwise name is looked up directly on the instance's class and
// called without allocating an intermediate BoundMethod.
func (vm *VM) invoke(name *ObjString, argc int) error {
	receiver := vm.peek(argc)
	inst, ok := receiver.(*ObjInstance)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}

	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[len(vm.stack)-argc-1] = field
		return vm.callValue(field, argc)
	}

	return vm.invokeFromClass(inst.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argc int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.chars)
	}
	return vm.callClosure(method, argc)
}

// bindMethod looks up name on class, allocates a BoundMethod pairing it
// with the instance currently on top of the stack, and replaces that
// instance with the bound method. It reports whether the method was found.
func (vm *VM) bindMethod(class *ObjClass, name *ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false
	}
	bound := vm.gc.NewBoundMethod(vm.peek(0), method)
	vm.pop()
	vm.push(bound)
	return true
}

// captureUpvalue returns the open upvalue for the given absolute stack
// slot, reusing an existing entry if one is already open there, and
// otherwise inserting a new one in descending-slot sorted position.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && uv.stackSlot > slot {
		prev = uv
		uv = uv.next
	}
	if uv != nil && uv.stackSlot == slot {
		return uv
	}

	created := vm.gc.newUpvalue(&vm.stack[slot], slot)
	created.next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.next = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose stack slot is at or above
// boundary, copying the live stack value into the upvalue's own storage so
// it survives the stack being truncated.
func (vm *VM) closeUpvalues(boundary int) {
	for vm.openUpvalues != nil && vm.openUpvalues.stackSlot >= boundary {
		uv := vm.openUpvalues
		uv.close()
		vm.openUpvalues = uv.next
	}
}

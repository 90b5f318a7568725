package core

import (
	"fmt"
	"reflect"
)

// MethodHandle is a callable capture of a subject's implementation of one
// message. The handle is resolved through the subject's type method table at
// capture time, so nothing the test does afterwards - redefining lookup
// helpers on the subject, installing further doubles - can shadow it.
// A handle whose method never existed is explicitly representable: Exists
// reports false and Call returns ErrNoOriginal.
type MethodHandle struct {
	receiver reflect.Value
	fn       reflect.Value
}

// ResolveMethodHandle resolves the subject's current implementation of
// message. Resolution goes through reflect's view of the type's method set
// rather than through anything the subject itself provides.
func ResolveMethodHandle(subject any, message string) MethodHandle {
	receiver := reflect.ValueOf(subject)
	if !receiver.IsValid() {
		return MethodHandle{}
	}

	method, ok := receiver.Type().MethodByName(message)
	if !ok {
		return MethodHandle{receiver: receiver}
	}

	return MethodHandle{receiver: receiver, fn: method.Func}
}

// Exists reports whether the subject had an implementation of the message
// when the handle was captured.
func (h MethodHandle) Exists() bool {
	return h.fn.IsValid()
}

// Call invokes the captured implementation with the given arguments.
// Arguments are passed positionally; variadic parameters receive the
// remaining arguments individually. A panic inside reflect's call machinery
// (arity or type mismatch) is converted to an ErrOriginalCall error so that
// dispatch and restoration never abort the surrounding teardown.
func (h MethodHandle) Call(args []any) (results []any, err error) {
	if !h.Exists() {
		return nil, ErrNoOriginal
	}

	funcType := h.fn.Type()

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, h.receiver)

	for i, a := range args {
		in = append(in, reflectArg(funcType, i+1, a))
	}

	if err := checkArity(funcType, len(in)); err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			results = nil
			err = fmt.Errorf("%w: %v", ErrOriginalCall, p)
		}
	}()

	out := h.fn.Call(in)

	results = make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}

	return results, nil
}

// checkArity validates the argument count (receiver included) before
// handing off to reflect, so mismatches fail with an error, not a panic.
func checkArity(funcType reflect.Type, got int) error {
	want := funcType.NumIn()

	if funcType.IsVariadic() {
		if got < want-1 {
			return fmt.Errorf("%w: need at least %d argument(s), got %d",
				ErrOriginalCall, want-2, got-1)
		}

		return nil
	}

	if got != want {
		return fmt.Errorf("%w: need %d argument(s), got %d",
			ErrOriginalCall, want-1, got-1)
	}

	return nil
}

// reflectArg converts one argument for a reflect call, substituting a typed
// zero value for untyped nils so nil interface and pointer arguments work.
func reflectArg(funcType reflect.Type, index int, arg any) reflect.Value {
	if arg != nil {
		return reflect.ValueOf(arg)
	}

	var paramType reflect.Type

	switch {
	case funcType.IsVariadic() && index >= funcType.NumIn()-1:
		paramType = funcType.In(funcType.NumIn() - 1).Elem()
	case index < funcType.NumIn():
		paramType = funcType.In(index)
	default:
		// arity error; surfaces through checkArity
		return reflect.ValueOf(&arg).Elem()
	}

	return reflect.Zero(paramType)
}

// referenceKey gives reference-kinded subjects (pointers, maps, channels,
// funcs, slices) identity semantics in registry maps.
type referenceKey struct {
	typ reflect.Type
	ptr uintptr
}

// valueKey gives non-comparable value subjects (structs or arrays carrying
// slices, maps, or funcs) value semantics in registry maps: equal values
// produce equal keys without tripping the map hash.
type valueKey struct {
	typ  reflect.Type
	dump string
}

// identityKey returns a map key with identity semantics for the subject.
// Reference kinds key by their pointer so two references to the same object
// share one Proxy; comparable values key by value, matching how they
// dispatch; non-comparable values key by a deterministic dump of their
// contents, since Go gives them no cheaper identity.
func identityKey(subject any) any {
	rv := reflect.ValueOf(subject)
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return referenceKey{typ: rv.Type(), ptr: rv.Pointer()}
	default:
		if rv.Comparable() {
			return subject
		}

		return valueKey{typ: rv.Type(), dump: argDump.Sdump(subject)}
	}
}

// classOf normalizes a class argument: callers may pass a reflect.Type
// directly or any example value of the class.
func classOf(class any) reflect.Type {
	if t, ok := class.(reflect.Type); ok {
		return t
	}

	return reflect.TypeOf(class)
}

// instanceOf reports whether a subject of type t counts as an instance of
// class: the exact type, a pointer to it, or an implementation when class
// is an interface.
func instanceOf(t, class reflect.Type) bool {
	if t == nil || class == nil {
		return false
	}

	if t == class {
		return true
	}

	if t.Kind() == reflect.Pointer && t.Elem() == class {
		return true
	}

	if class.Kind() == reflect.Interface && t.Implements(class) {
		return true
	}

	return false
}

// subjectLabel renders a subject for error messages without invoking any of
// its own methods.
func subjectLabel(subject any) string {
	if subject == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%T", subject)
}

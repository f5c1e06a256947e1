package interpreter

import (
	"github.com/mizuy/microlisp/pkg/runtime"
)

type builtin struct {
	name string
	impl runtime.NativeFunc
}

// builtins lists the primitives in the order they are bound.
var builtins = []builtin{
	{"QUOTE", builtinQuote},
	{"CAR", builtinCar},
	{"CDR", builtinCdr},
	{"CONS", builtinCons},
	{"EQUAL", builtinEqual},
	{"ATOM", builtinAtom},
	{"COND", builtinCond},
	{"LAMBDA", builtinLambda},
	{"LABEL", builtinLabel},
}

// PrimitiveNames returns the primitive names in binding order.
func PrimitiveNames() []string {
	names := make([]string, len(builtins))
	for idx, b := range builtins {
		names[idx] = b.name
	}
	return names
}

func (i *Interpreter) initBuiltins() {
	for _, b := range builtins {
		i.global.Extend(b.name, runtime.Primitive{Name: b.name, Impl: b.impl})
	}
}

func expectOperands(name string, args *runtime.Pair, want int) ([]runtime.Value, error) {
	values := args.Slice()
	if len(values) != want {
		return nil, runtime.Errorf(runtime.TypeError, "%s expects %d operand(s), got %d", name, want, len(values))
	}
	return values, nil
}

func expectList(name string, v runtime.Value) (*runtime.Pair, error) {
	list, ok := v.(*runtime.Pair)
	if !ok {
		return nil, runtime.Errorf(runtime.TypeError, "%s expects a list, got %s %s", name, v.Kind(), runtime.Render(v))
	}
	return list, nil
}

func expectAtom(name string, v runtime.Value) (runtime.Atom, error) {
	atom, ok := v.(runtime.Atom)
	if !ok {
		return runtime.Atom{}, runtime.Errorf(runtime.TypeError, "%s expects an atom, got %s %s", name, v.Kind(), runtime.Render(v))
	}
	return atom, nil
}

func builtinQuote(_ *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("QUOTE", args, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

func builtinCar(_ *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("CAR", args, 1)
	if err != nil {
		return nil, err
	}
	list, err := expectList("CAR", values[0])
	if err != nil {
		return nil, err
	}
	if list.IsEmpty() {
		return nil, runtime.Errorf(runtime.TypeError, "CAR of the empty list")
	}
	return list.Head, nil
}

func builtinCdr(_ *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("CDR", args, 1)
	if err != nil {
		return nil, err
	}
	list, err := expectList("CDR", values[0])
	if err != nil {
		return nil, err
	}
	if list.IsEmpty() {
		return nil, runtime.Errorf(runtime.TypeError, "CDR of the empty list")
	}
	return list.Rest(), nil
}

func builtinCons(_ *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("CONS", args, 2)
	if err != nil {
		return nil, err
	}
	tail, err := expectList("CONS", values[1])
	if err != nil {
		return nil, err
	}
	return runtime.Cons(values[0], tail), nil
}

func builtinEqual(_ *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("EQUAL", args, 2)
	if err != nil {
		return nil, err
	}
	first, err := expectAtom("EQUAL", values[0])
	if err != nil {
		return nil, err
	}
	second, err := expectAtom("EQUAL", values[1])
	if err != nil {
		return nil, err
	}
	return runtime.Bool(first.Name == second.Name), nil
}

func builtinAtom(_ *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("ATOM", args, 1)
	if err != nil {
		return nil, err
	}
	_, ok := values[0].(runtime.Atom)
	return runtime.Bool(ok), nil
}

// builtinCond evaluates clause predicates in order and evaluates the result
// of the first clause whose predicate is not NIL.
func builtinCond(ctx *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	for _, clause := range args.Slice() {
		list, ok := clause.(*runtime.Pair)
		if !ok || list.Len() < 2 {
			return nil, runtime.Errorf(runtime.TypeError, "COND clause must be a (predicate result) list, got %s", runtime.Render(clause))
		}
		pred, err := ctx.Eval(list.Head, ctx.Env)
		if err != nil {
			return nil, err
		}
		if runtime.Truthy(pred) {
			result, _ := list.Nth(1)
			return ctx.Eval(result, ctx.Env)
		}
	}
	return runtime.Empty(), nil
}

// builtinLambda applies its first operand, a closure, to the rest. It is
// reached only through an alias since a literal LAMBDA head builds a closure.
func builtinLambda(ctx *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	if args.IsEmpty() {
		return nil, runtime.Errorf(runtime.TypeError, "LAMBDA expects a closure operand")
	}
	fn, ok := args.Head.(*runtime.Closure)
	if !ok {
		return nil, runtime.Errorf(runtime.TypeError, "LAMBDA expects a closure, got %s %s", args.Head.Kind(), runtime.Render(args.Head))
	}
	return ctx.Apply(fn, args.Rest(), ctx.Env)
}

// builtinLabel appends name -> value to the active environment. An earlier
// binding of the same name keeps precedence over the new one.
func builtinLabel(ctx *runtime.NativeCallContext, args *runtime.Pair) (runtime.Value, error) {
	values, err := expectOperands("LABEL", args, 2)
	if err != nil {
		return nil, err
	}
	name, err := expectAtom("LABEL", values[0])
	if err != nil {
		return nil, err
	}
	ctx.Env.Extend(name.Name, values[1])
	return runtime.True, nil
}

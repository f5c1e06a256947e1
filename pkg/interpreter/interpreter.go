package interpreter

import (
	"errors"
	"strings"

	"github.com/mizuy/microlisp/pkg/parser"
	"github.com/mizuy/microlisp/pkg/runtime"
)

// DefaultMaxDepth bounds nested evaluation and substitution.
const DefaultMaxDepth = 10000

const lambdaKeyword = "LAMBDA"

// Options configures a new interpreter.
type Options struct {
	// MaxDepth bounds recursion; zero selects DefaultMaxDepth.
	MaxDepth int
}

// Interpreter drives evaluation of expressions.
type Interpreter struct {
	global   *runtime.Environment
	maxDepth int
	depth    int
}

// New returns an interpreter whose global environment holds the primitives.
func New() *Interpreter {
	return NewWithOptions(Options{})
}

// NewWithOptions returns an interpreter configured by opts.
func NewWithOptions(opts Options) *Interpreter {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	i := &Interpreter{
		global:   runtime.NewEnvironment(),
		maxDepth: maxDepth,
	}
	i.initBuiltins()
	return i
}

// GlobalEnvironment returns the interpreter's global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Environment {
	return i.global
}

// MaxDepth reports the configured recursion bound.
func (i *Interpreter) MaxDepth() int {
	return i.maxDepth
}

// Eval evaluates expr in the global environment.
func (i *Interpreter) Eval(expr runtime.Value) (runtime.Value, error) {
	return i.evaluate(expr, i.global)
}

// EvalIn evaluates expr in env.
func (i *Interpreter) EvalIn(expr runtime.Value, env *runtime.Environment) (runtime.Value, error) {
	return i.evaluate(expr, env)
}

// EvalString reads and evaluates every expression in source, returning the
// value of the last one (NIL when source is empty).
func (i *Interpreter) EvalString(source string) (runtime.Value, error) {
	r := parser.NewReader(strings.NewReader(source))
	r.SetMaxDepth(i.maxDepth)
	var last runtime.Value = runtime.Empty()
	for {
		expr, err := r.Read()
		if err != nil {
			var parseErr *parser.ParseError
			if errors.Is(err, parser.ErrEndOfInput) && !errors.As(err, &parseErr) {
				return last, nil
			}
			return nil, err
		}
		last, err = i.Eval(expr)
		if err != nil {
			return nil, err
		}
	}
}

func (i *Interpreter) enter() error {
	if i.depth >= i.maxDepth {
		return runtime.Errorf(runtime.RecursionLimit, "evaluation depth exceeded %d", i.maxDepth)
	}
	i.depth++
	return nil
}

func (i *Interpreter) leave() {
	i.depth--
}

func (i *Interpreter) evaluate(expr runtime.Value, env *runtime.Environment) (runtime.Value, error) {
	if err := i.enter(); err != nil {
		return nil, err
	}
	defer i.leave()

	switch e := expr.(type) {
	case runtime.Atom:
		return i.evaluateAtom(e, env)
	case *runtime.Pair:
		if e.IsEmpty() {
			return e, nil
		}
		if runtime.IsAtom(e.Head, lambdaKeyword) {
			return makeClosure(e)
		}
		evaluated := make([]runtime.Value, 0, e.Len())
		for cell := e; cell != nil; cell = cell.Tail {
			val, err := i.evaluate(cell.Head, env)
			if err != nil {
				return nil, err
			}
			evaluated = append(evaluated, val)
		}
		return i.apply(runtime.List(evaluated...), env)
	case nil:
		return runtime.Empty(), nil
	default:
		// primitives and closures
		return expr, nil
	}
}

// evaluateAtom resolves a symbol. NIL and #T are constants; an atom with no
// binding evaluates to itself.
func (i *Interpreter) evaluateAtom(atom runtime.Atom, env *runtime.Environment) (runtime.Value, error) {
	switch atom.Name {
	case runtime.NilName:
		return runtime.Empty(), nil
	case runtime.TrueName:
		return runtime.True, nil
	}
	val, err := env.Lookup(atom.Name)
	if err != nil {
		if runtime.IsKind(err, runtime.UnboundSymbol) {
			return atom, nil
		}
		return nil, err
	}
	return val, nil
}

// apply dispatches a fully evaluated call form on its head. A head that is
// neither a closure nor a primitive leaves the list as data.
func (i *Interpreter) apply(chain *runtime.Pair, env *runtime.Environment) (runtime.Value, error) {
	args := chain.Rest()
	switch fn := chain.Head.(type) {
	case *runtime.Closure:
		return i.applyClosure(fn, args, env)
	case runtime.Primitive:
		return fn.Impl(i.callContext(env), args)
	default:
		return chain, nil
	}
}

func (i *Interpreter) callContext(env *runtime.Environment) *runtime.NativeCallContext {
	return &runtime.NativeCallContext{
		Env:  env,
		Eval: i.evaluate,
		Apply: func(fn *runtime.Closure, args *runtime.Pair, env *runtime.Environment) (runtime.Value, error) {
			return i.applyClosure(fn, args, env)
		},
	}
}

func (i *Interpreter) applyClosure(fn *runtime.Closure, args *runtime.Pair, env *runtime.Environment) (runtime.Value, error) {
	if got := args.Len(); got != len(fn.Params) {
		return nil, runtime.Errorf(runtime.ArityError, "%s expects %d argument(s), got %d", fn, len(fn.Params), got)
	}
	replacements := make(map[string]runtime.Value, len(fn.Params))
	for idx, arg := range args.Slice() {
		name := fn.Params[idx].Name
		if _, dup := replacements[name]; !dup {
			replacements[name] = arg
		}
	}
	body, err := i.substitute(fn.Body, replacements, 0)
	if err != nil {
		return nil, err
	}
	return i.evaluate(body, env)
}

// substitute copies expr, replacing every atom named in replacements.
func (i *Interpreter) substitute(expr runtime.Value, replacements map[string]runtime.Value, level int) (runtime.Value, error) {
	if level >= i.maxDepth {
		return nil, runtime.Errorf(runtime.RecursionLimit, "substitution depth exceeded %d", i.maxDepth)
	}
	switch e := expr.(type) {
	case runtime.Atom:
		if val, ok := replacements[e.Name]; ok {
			return val, nil
		}
		return e, nil
	case *runtime.Pair:
		if e.IsEmpty() {
			return e, nil
		}
		out := make([]runtime.Value, 0, e.Len())
		for cell := e; cell != nil; cell = cell.Tail {
			val, err := i.substitute(cell.Head, replacements, level+1)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return runtime.List(out...), nil
	default:
		return expr, nil
	}
}

// makeClosure builds a closure from (LAMBDA (params...) body) without
// evaluating any operand.
func makeClosure(form *runtime.Pair) (runtime.Value, error) {
	if form.Len() != 3 {
		return nil, runtime.Errorf(runtime.TypeError, "LAMBDA expects a parameter list and one body, got %s", form)
	}
	paramsVal, _ := form.Nth(1)
	body, _ := form.Nth(2)
	paramList, ok := paramsVal.(*runtime.Pair)
	if !ok {
		return nil, runtime.Errorf(runtime.TypeError, "LAMBDA parameters must be a list, got %s", runtime.Render(paramsVal))
	}
	params := make([]runtime.Atom, 0, paramList.Len())
	for _, p := range paramList.Slice() {
		atom, ok := p.(runtime.Atom)
		if !ok {
			return nil, runtime.Errorf(runtime.TypeError, "LAMBDA parameter must be an atom, got %s", runtime.Render(p))
		}
		params = append(params, atom)
	}
	return &runtime.Closure{Params: params, Body: body}, nil
}

package runtime

import (
	"fmt"
	"strings"
)

// Kind identifies the expression category.
type Kind int

const (
	KindAtom Kind = iota
	KindPair
	KindPrimitive
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindPair:
		return "pair"
	case KindPrimitive:
		return "primitive"
	case KindClosure:
		return "closure"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all expressions. Code and data share the
// same representation: the reader produces Values and the evaluator consumes them.
type Value interface {
	Kind() Kind
	String() string
}

//-----------------------------------------------------------------------------
// Atoms
//-----------------------------------------------------------------------------

// Atom is a named symbol. Atoms compare by name.
type Atom struct {
	Name string
}

func (a Atom) Kind() Kind { return KindAtom }

func (a Atom) String() string { return a.Name }

// NewAtom returns the atom with the given name.
func NewAtom(name string) Atom {
	return Atom{Name: name}
}

const (
	TrueName = "#T"
	NilName  = "NIL"
)

// True is the canonical truth value produced by predicates.
var True = Atom{Name: TrueName}

// IsAtom reports whether v is an atom named name.
func IsAtom(v Value, name string) bool {
	a, ok := v.(Atom)
	return ok && a.Name == name
}

//-----------------------------------------------------------------------------
// Pairs
//-----------------------------------------------------------------------------

// Pair is a cons cell. Tail is either the next cell or nil, the end-of-list
// marker, so every chain is a proper list. The empty list is the cell whose
// Head and Tail are both nil.
type Pair struct {
	Head Value
	Tail *Pair
}

func (p *Pair) Kind() Kind { return KindPair }

// Empty returns a fresh empty list, which doubles as logical false.
func Empty() *Pair {
	return &Pair{}
}

// IsEmpty reports whether p is the empty list.
func (p *Pair) IsEmpty() bool {
	return p == nil || (p.Head == nil && p.Tail == nil)
}

// IsNil reports whether v is the empty list.
func IsNil(v Value) bool {
	p, ok := v.(*Pair)
	return ok && p.IsEmpty()
}

// Truthy reports whether v counts as true: everything except NIL does.
func Truthy(v Value) bool {
	return !IsNil(v)
}

// Bool converts a Go boolean into #T or NIL.
func Bool(b bool) Value {
	if b {
		return True
	}
	return Empty()
}

// Cons prepends head to the elements of tail, sharing tail's cells.
func Cons(head Value, tail *Pair) *Pair {
	if head == nil {
		head = Empty()
	}
	if tail.IsEmpty() {
		tail = nil
	}
	return &Pair{Head: head, Tail: tail}
}

// List builds a new chain holding values in order.
func List(values ...Value) *Pair {
	var chain *Pair
	for i := len(values) - 1; i >= 0; i-- {
		chain = Cons(values[i], chain)
	}
	if chain == nil {
		return Empty()
	}
	return chain
}

// Slice returns the elements of the chain in order.
func (p *Pair) Slice() []Value {
	if p.IsEmpty() {
		return nil
	}
	out := []Value{}
	for cell := p; cell != nil; cell = cell.Tail {
		out = append(out, cell.Head)
	}
	return out
}

// Len counts the elements of the chain.
func (p *Pair) Len() int {
	if p.IsEmpty() {
		return 0
	}
	n := 0
	for cell := p; cell != nil; cell = cell.Tail {
		n++
	}
	return n
}

// Rest returns the list following the first element, NIL for the last cell.
func (p *Pair) Rest() *Pair {
	if p == nil || p.Tail == nil {
		return Empty()
	}
	return p.Tail
}

// Nth returns the element at position n (0-based) and whether it exists.
func (p *Pair) Nth(n int) (Value, bool) {
	if p.IsEmpty() || n < 0 {
		return nil, false
	}
	cell := p
	for ; cell != nil && n > 0; n-- {
		cell = cell.Tail
	}
	if cell == nil {
		return nil, false
	}
	return cell.Head, true
}

// String renders the chain as (e1 e2 ... en); the empty list renders as ().
func (p *Pair) String() string {
	if p.IsEmpty() {
		return "()"
	}
	var b strings.Builder
	writeList(&b, p)
	return b.String()
}

// renderFrame is one list being written: the next cell to print and whether
// an element has been written already.
type renderFrame struct {
	next    *Pair
	started bool
}

// writeList prints nested lists with an explicit stack so that deeply nested
// data cannot exhaust the goroutine stack.
func writeList(b *strings.Builder, p *Pair) {
	stack := []renderFrame{{next: p}}
	b.WriteByte('(')
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		cell := top.next
		if cell == nil {
			b.WriteByte(')')
			stack = stack[:len(stack)-1]
			continue
		}
		if top.started {
			b.WriteByte(' ')
		}
		top.started = true
		top.next = cell.Tail
		if inner, ok := cell.Head.(*Pair); ok && !inner.IsEmpty() {
			b.WriteByte('(')
			stack = append(stack, renderFrame{next: inner})
			continue
		}
		b.WriteString(Render(cell.Head))
	}
}

//-----------------------------------------------------------------------------
// Callables
//-----------------------------------------------------------------------------

// NativeCallContext gives primitives access to the active environment and to
// the evaluator, which COND and LAMBDA need.
type NativeCallContext struct {
	Env   *Environment
	Eval  func(Value, *Environment) (Value, error)
	Apply func(*Closure, *Pair, *Environment) (Value, error)
}

// NativeFunc receives the already-evaluated operand chain.
type NativeFunc func(*NativeCallContext, *Pair) (Value, error)

// Primitive is a built-in operation identified by name.
type Primitive struct {
	Name string
	Impl NativeFunc
}

func (p Primitive) Kind() Kind { return KindPrimitive }

func (p Primitive) String() string { return "#<primitive " + p.Name + ">" }

// Closure holds formal parameters and a body. It captures no environment:
// free variables in Body resolve against the caller's environment.
type Closure struct {
	Params []Atom
	Body   Value
}

func (c *Closure) Kind() Kind { return KindClosure }

func (c *Closure) String() string {
	params := make([]Value, len(c.Params))
	for i, p := range c.Params {
		params[i] = p
	}
	return fmt.Sprintf("#<lambda %s %s>", List(params...), Render(c.Body))
}

// Render returns the canonical textual form of v.
func Render(v Value) string {
	if v == nil {
		return "()"
	}
	return v.String()
}

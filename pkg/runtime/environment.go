package runtime

// Environment is an ordered chain of binding entries, each the two-element
// list (name value). Lookup scans from the front and the first match wins;
// Extend appends at the back. A later binding of an existing name is
// therefore never visible through Lookup: the earliest binding keeps winning.
type Environment struct {
	bindings *Pair
	last     *Pair
	size     int
}

// Binding is a snapshot of one environment entry.
type Binding struct {
	Name  string
	Value Value
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{}
}

// Extend appends the binding name -> value to the end of the chain.
func (e *Environment) Extend(name string, value Value) {
	entry := List(NewAtom(name), value)
	cell := &Pair{Head: entry}
	if e.last == nil {
		e.bindings = cell
	} else {
		e.last.Tail = cell
	}
	e.last = cell
	e.size++
}

// Lookup returns the value of the first entry bound to name.
func (e *Environment) Lookup(name string) (Value, error) {
	for cell := e.bindings; cell != nil; cell = cell.Tail {
		entry := cell.Head.(*Pair)
		if entry.Head.(Atom).Name == name {
			value, _ := entry.Nth(1)
			return value, nil
		}
	}
	return nil, Errorf(UnboundSymbol, "unbound symbol %s", name)
}

// Len reports the number of entries, shadowed ones included.
func (e *Environment) Len() int {
	return e.size
}

// Chain exposes the bindings as a list of (name value) entries. The result
// shares structure with the environment and must not be modified.
func (e *Environment) Chain() *Pair {
	if e.bindings == nil {
		return Empty()
	}
	return e.bindings
}

// Snapshot returns the entries in chain order.
func (e *Environment) Snapshot() []Binding {
	out := make([]Binding, 0, e.size)
	for cell := e.bindings; cell != nil; cell = cell.Tail {
		entry := cell.Head.(*Pair)
		value, _ := entry.Nth(1)
		out = append(out, Binding{Name: entry.Head.(Atom).Name, Value: value})
	}
	return out
}

// Names returns the bound names in chain order, duplicates included.
func (e *Environment) Names() []string {
	names := make([]string, 0, e.size)
	for _, b := range e.Snapshot() {
		names = append(names, b.Name)
	}
	return names
}

package symtab

// Table is the linker's symbol table: the union of every symbol contributed
// by every input object, plus symbols the linker itself synthesizes
// (__heap_base, __wasm_call_ctors, ...). Objects are kept in discovery order
// since several invariants (first-observed feature wins, ABI merge order,
// init-function priority ties) are order-sensitive.
type Table struct {
	Objects []*Object
	byName  map[string]*Symbol
}

// NewTable returns an empty symbol table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Symbol)}
}

// AddObject registers an object's symbols into the table. A later object
// defining a symbol the table already considers defined does not override
// it; an object resolving a previously undefined reference does.
func (t *Table) AddObject(obj *Object) {
	t.Objects = append(t.Objects, obj)
	for _, list := range [][]*Symbol{obj.Functions, obj.Globals, obj.Events} {
		for _, sym := range list {
			t.insert(sym)
		}
	}
}

func (t *Table) insert(sym *Symbol) {
	existing, ok := t.byName[sym.Name]
	if !ok {
		t.byName[sym.Name] = sym
		return
	}
	if !existing.Kind.IsDefined() && sym.Kind.IsDefined() {
		t.byName[sym.Name] = sym
	}
}

// Find returns the symbol with the given name, or nil if no object
// contributed or referenced it.
func (t *Table) Find(name string) *Symbol {
	return t.byName[name]
}

// Define registers a linker-synthesized symbol (no owning Object) directly,
// used for well-known addresses and synthetic functions.
func (t *Table) Define(sym *Symbol) {
	t.byName[sym.Name] = sym
}

// EntryIsUndefined reports whether the "apply" contract entry point is
// missing or unresolved. The driver synthesizes the action/notification
// dispatcher only when this reports true; an object that defines apply
// itself gets no synthesized dispatcher.
func (t *Table) EntryIsUndefined() bool {
	sym := t.Find("apply")
	return sym == nil || !sym.Kind.IsDefined()
}

// SyncCallEntryIsUndefined is the equivalent check for the sync_call
// dispatcher entry point.
func (t *Table) SyncCallEntryIsUndefined() bool {
	sym := t.Find("sync_call")
	return sym == nil || !sym.Kind.IsDefined()
}

// Functions returns every live, defined function symbol across all objects,
// in object-then-declaration order.
func (t *Table) Functions() []*Symbol {
	var out []*Symbol
	for _, obj := range t.Objects {
		for _, sym := range obj.Functions {
			if sym.Live && sym.Kind == DefinedFunction {
				out = append(out, sym)
			}
		}
	}
	return out
}

// UndefinedFunctions returns every live undefined function symbol that must
// be imported, across all objects, in discovery order.
func (t *Table) UndefinedFunctions(relocatable bool) []*Symbol {
	var out []*Symbol
	seen := make(map[string]bool)
	for _, obj := range t.Objects {
		for _, sym := range obj.Functions {
			if sym.Importable(relocatable) && !seen[sym.Name] {
				seen[sym.Name] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

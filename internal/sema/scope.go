package sema

import "github.com/tinyrange/tacc/internal/types"

type SymbolKind int

const (
	SymGlobal SymbolKind = iota
	SymFunc
	SymParam
	SymLocal
)

type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  types.Kind
	Arity int // functions only
}

// Scope is one level of a chain of lexical scopes. Lookups walk towards
// the outermost scope.
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol)}
}

func (s *Scope) Parent() *Scope { return s.parent }

// Insert adds sym to s. It returns false, leaving s unchanged, when the
// name is already declared in this same scope.
func (s *Scope) Insert(sym *Symbol) bool {
	if _, exists := s.symbols[sym.Name]; exists {
		return false
	}
	s.symbols[sym.Name] = sym
	return true
}

// Lookup finds name in s or any enclosing scope.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal finds name in s only.
func (s *Scope) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

package sema

import (
	"errors"
	"fmt"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/types"
)

// Check validates declarations and name uses in prog. All problems found
// are returned together.
//
// A name assigned inside a function without being declared there (and
// without being a parameter) is an implicit global, visible to every
// function. The code generator gives each parameter and local exactly
// one stack slot per function, so a local may not shadow another local
// or parameter of the same function. A local may share a global's name,
// but that function can then use the name only inside the local's scope.
func Check(prog *ast.Program) error {
	c := &checker{universe: NewScope(nil)}
	c.declareFuncs(prog)
	c.collectGlobals(prog)
	for _, d := range prog.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok {
			c.checkFunc(fd)
		}
	}
	return errors.Join(c.errs...)
}

type checker struct {
	universe *Scope
	errs     []error

	fn       *ast.FuncDecl
	fnScope  *Scope
	fnLocals map[string]bool // every param and declared local of fn
}

func (c *checker) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.fn != nil {
		msg = fmt.Sprintf("function %s: %s", c.fn.Name, msg)
	}
	c.errs = append(c.errs, errors.New(msg))
}

func (c *checker) declareFuncs(prog *ast.Program) {
	for _, d := range prog.Decls {
		var name string
		var ret types.Kind
		var params []*ast.Param
		switch d := d.(type) {
		case *ast.FuncDecl:
			name, ret, params = d.Name, d.Ret, d.Params
		case *ast.ExternFuncDecl:
			name, ret, params = d.Name, d.Ret, d.Params
		default:
			continue
		}
		if !c.universe.Insert(&Symbol{Name: name, Kind: SymFunc, Type: ret, Arity: len(params)}) {
			c.errorf("function %q redeclared", name)
		}
	}
}

// localNames returns the parameters and every declared local of fd.
func localNames(fd *ast.FuncDecl) map[string]bool {
	names := map[string]bool{}
	for _, p := range fd.Params {
		names[p.Name] = true
	}
	ast.Walk(fd.Body, func(n ast.Node) bool {
		if s, ok := n.(*ast.AssignStmt); ok && s.IsDecl() && s.Left != nil {
			names[s.Left.Name] = true
		}
		return true
	})
	return names
}

func (c *checker) collectGlobals(prog *ast.Program) {
	for _, d := range prog.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		locals := localNames(fd)
		ast.Walk(fd.Body, func(n ast.Node) bool {
			s, ok := n.(*ast.AssignStmt)
			if !ok || s.IsDecl() || s.Left == nil || locals[s.Left.Name] {
				return true
			}
			name := s.Left.Name
			if sym, exists := c.universe.LookupLocal(name); exists {
				if sym.Kind == SymFunc {
					c.errorf("cannot assign to function %q", name)
				}
				return true
			}
			c.universe.Insert(&Symbol{Name: name, Kind: SymGlobal, Type: types.Int})
			return true
		})
	}
}

func (c *checker) checkFunc(fd *ast.FuncDecl) {
	c.fn = fd
	c.fnScope = NewScope(c.universe)
	c.fnLocals = localNames(fd)
	defer func() { c.fn, c.fnScope, c.fnLocals = nil, nil, nil }()

	for _, p := range fd.Params {
		if !c.fnScope.Insert(&Symbol{Name: p.Name, Kind: SymParam, Type: p.Type}) {
			c.errorf("duplicate parameter %q", p.Name)
		}
	}
	if fd.Body != nil {
		// the body shares the parameter scope
		c.checkStmts(fd.Body.Stmts, c.fnScope)
	}
}

func (c *checker) checkStmts(stmts []ast.Stmt, scope *Scope) {
	for _, s := range stmts {
		c.checkStmt(s, scope)
	}
}

func (c *checker) checkBlock(b *ast.BlockStmt, parent *Scope) {
	if b == nil {
		return
	}
	c.checkStmts(b.Stmts, NewScope(parent))
}

func (c *checker) checkStmt(s ast.Stmt, scope *Scope) {
	switch s := s.(type) {
	case *ast.BlockStmt:
		c.checkBlock(s, scope)
	case *ast.AssignStmt:
		c.checkExpr(s.Value, scope)
		if s.Left == nil {
			c.errorf("assignment without target")
			return
		}
		name := s.Left.Name
		if s.IsDecl() {
			c.declare(name, s.Type, scope)
			return
		}
		sym, ok := scope.Lookup(name)
		switch {
		case ok && sym.Kind == SymFunc:
			c.errorf("cannot assign to function %q", name)
		case !ok && c.fnLocals[name], c.hiddenGlobal(name, sym, ok):
			c.errorf("assignment to %q outside the scope of its declaration", name)
		}
	case *ast.ReturnStmt:
		if s.Value != nil {
			if c.fn.Ret == types.Void {
				c.errorf("void function returns a value")
			}
			c.checkExpr(s.Value, scope)
		}
	case *ast.IfStmt:
		c.checkExpr(s.Cond, scope)
		c.checkBlock(s.Then, scope)
		c.checkBlock(s.Else, scope)
	case *ast.WhileStmt:
		c.checkExpr(s.Cond, scope)
		c.checkBlock(s.Body, scope)
	case *ast.CallExpr:
		c.checkCall(s, scope)
	default:
		c.errorf("unsupported statement %T", s)
	}
}

func (c *checker) declare(name string, typ types.Kind, scope *Scope) {
	if _, exists := scope.LookupLocal(name); exists {
		c.errorf("%q redeclared in this block", name)
		return
	}
	if sym, ok := scope.Lookup(name); ok && (sym.Kind == SymParam || sym.Kind == SymLocal) {
		c.errorf("declaration of %q shadows an outer %s", name, kindName(sym.Kind))
		return
	}
	scope.Insert(&Symbol{Name: name, Kind: SymLocal, Type: typ})
}

// hiddenGlobal reports whether name resolved to a global that the current
// function also declares as a local. The local's slot serves the name for
// the whole function, so the global is unreachable there.
func (c *checker) hiddenGlobal(name string, sym *Symbol, ok bool) bool {
	return ok && sym.Kind == SymGlobal && c.fnLocals[name]
}

func kindName(k SymbolKind) string {
	switch k {
	case SymParam:
		return "parameter"
	case SymLocal:
		return "local"
	case SymFunc:
		return "function"
	default:
		return "global"
	}
}

func (c *checker) checkExpr(e ast.Expr, scope *Scope) {
	switch e := e.(type) {
	case nil:
		c.errorf("missing expression")
	case *ast.IntLit, *ast.BoolLit:
	case *ast.Ident:
		sym, ok := scope.Lookup(e.Name)
		switch {
		case c.hiddenGlobal(e.Name, sym, ok):
			c.errorf("use of %q outside the scope of its declaration", e.Name)
		case !ok:
			c.errorf("undefined variable %q", e.Name)
		case sym.Kind == SymFunc:
			c.errorf("function %q used as a value", e.Name)
		}
	case *ast.BinaryExpr:
		c.checkExpr(e.Left, scope)
		c.checkExpr(e.Right, scope)
	case *ast.UnaryExpr:
		c.checkExpr(e.X, scope)
	case *ast.CallExpr:
		c.checkCall(e, scope)
	default:
		c.errorf("unsupported expression %T", e)
	}
}

func (c *checker) checkCall(call *ast.CallExpr, scope *Scope) {
	for _, a := range call.Args {
		c.checkExpr(a, scope)
	}
	sym, ok := scope.Lookup(call.Name)
	if !ok {
		c.errorf("call to undefined function %q", call.Name)
		return
	}
	if sym.Kind != SymFunc {
		c.errorf("%q is not a function", call.Name)
		return
	}
	if sym.Arity != len(call.Args) {
		c.errorf("%s expects %d arguments, got %d", call.Name, sym.Arity, len(call.Args))
	}
}

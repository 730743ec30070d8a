package ast

import (
	"reflect"

	"github.com/tinyrange/tacc/internal/types"
)

// Node is any element of the syntax tree. The tree is a strict hierarchy:
// every node owns its children and nothing is shared.
type Node interface{ isNode() }

type Decl interface {
	Node
	isDecl()
}

type Stmt interface {
	Node
	isStmt()
}

type Expr interface {
	Node
	isExpr()
}

type Program struct {
	Decls []Decl
}

func (*Program) isNode() {}

// FuncDecl is a function definition. Params and Body are kept in separate
// fields; the body is never stored alongside the parameters.
type FuncDecl struct {
	Name   string
	Ret    types.Kind
	Params []*Param
	Body   *BlockStmt
}

func (*FuncDecl) isNode() {}
func (*FuncDecl) isDecl() {}

// ExternFuncDecl declares a function defined outside this unit.
type ExternFuncDecl struct {
	Name   string
	Ret    types.Kind
	Params []*Param
}

func (*ExternFuncDecl) isNode() {}
func (*ExternFuncDecl) isDecl() {}

type Param struct {
	Name string
	Type types.Kind
}

func (*Param) isNode() {}

type BlockStmt struct{ Stmts []Stmt }

func (*BlockStmt) isNode() {}
func (*BlockStmt) isStmt() {}

// AssignStmt stores Value into Left. A non-void Type marks the statement
// as a declaration of Left in the enclosing block.
type AssignStmt struct {
	Left  *Ident
	Value Expr
	Type  types.Kind
}

func (*AssignStmt) isNode() {}
func (*AssignStmt) isStmt() {}

// IsDecl reports whether the assignment also declares its target.
func (s *AssignStmt) IsDecl() bool { return s.Type != types.Void }

// ReturnStmt returns Value, or nothing when Value is nil.
type ReturnStmt struct{ Value Expr }

func (*ReturnStmt) isNode() {}
func (*ReturnStmt) isStmt() {}

// IfStmt always has Cond and Then; Else is nil when absent.
type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else *BlockStmt
}

func (*IfStmt) isNode() {}
func (*IfStmt) isStmt() {}

type WhileStmt struct {
	Cond Expr
	Body *BlockStmt
}

func (*WhileStmt) isNode() {}
func (*WhileStmt) isStmt() {}

type Ident struct{ Name string }

func (*Ident) isNode() {}
func (*Ident) isExpr() {}

type IntLit struct{ Value int64 }

func (*IntLit) isNode() {}
func (*IntLit) isExpr() {}

type BoolLit struct{ Value bool }

func (*BoolLit) isNode() {}
func (*BoolLit) isExpr() {}

// BinaryExpr applies Op ("+", "==", "&&", ...) to Left and Right.
type BinaryExpr struct {
	Op          string
	Left, Right Expr
}

func (*BinaryExpr) isNode() {}
func (*BinaryExpr) isExpr() {}

// UnaryExpr applies Op ("!" or "-") to X.
type UnaryExpr struct {
	Op string
	X  Expr
}

func (*UnaryExpr) isNode() {}
func (*UnaryExpr) isExpr() {}

// CallExpr is usable both as an expression and as a statement.
type CallExpr struct {
	Name string
	Args []Expr
}

func (*CallExpr) isNode() {}
func (*CallExpr) isExpr() {}
func (*CallExpr) isStmt() {}

// Func returns the declaration named name, or nil.
func (p *Program) Func(name string) Decl {
	for _, d := range p.Decls {
		switch d := d.(type) {
		case *FuncDecl:
			if d.Name == name {
				return d
			}
		case *ExternFuncDecl:
			if d.Name == name {
				return d
			}
		}
	}
	return nil
}

// Walk calls fn for n and every node below it in source order. Returning
// false from fn skips the node's children. Nil nodes, including typed nil
// pointers such as a missing function body, are not visited.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || reflect.ValueOf(n).IsNil() || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Program:
		for _, d := range n.Decls {
			Walk(d, fn)
		}
	case *FuncDecl:
		for _, p := range n.Params {
			Walk(p, fn)
		}
		if n.Body != nil {
			Walk(n.Body, fn)
		}
	case *ExternFuncDecl:
		for _, p := range n.Params {
			Walk(p, fn)
		}
	case *BlockStmt:
		for _, s := range n.Stmts {
			Walk(s, fn)
		}
	case *AssignStmt:
		if n.Left != nil {
			Walk(n.Left, fn)
		}
		Walk(n.Value, fn)
	case *ReturnStmt:
		if n.Value != nil {
			Walk(n.Value, fn)
		}
	case *IfStmt:
		Walk(n.Cond, fn)
		if n.Then != nil {
			Walk(n.Then, fn)
		}
		if n.Else != nil {
			Walk(n.Else, fn)
		}
	case *WhileStmt:
		Walk(n.Cond, fn)
		if n.Body != nil {
			Walk(n.Body, fn)
		}
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryExpr:
		Walk(n.X, fn)
	case *CallExpr:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}

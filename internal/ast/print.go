package ast

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes an indented dump of n, one node per line.
func Fprint(w io.Writer, n Node) error {
	p := &printer{w: w}
	p.node(n, 0)
	return p.err
}

// Sprint returns the Fprint dump of n as a string.
func Sprint(n Node) string {
	var b strings.Builder
	_ = Fprint(&b, n)
	return b.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s"+format+"\n", append([]any{strings.Repeat("  ", depth)}, args...)...)
}

func (p *printer) node(n Node, depth int) {
	switch n := n.(type) {
	case nil:
	case *Program:
		p.line(depth, "PROGRAM")
		for _, d := range n.Decls {
			p.node(d, depth+1)
		}
	case *FuncDecl:
		p.line(depth, "FUNC %s %s", n.Ret, n.Name)
		for _, prm := range n.Params {
			p.node(prm, depth+1)
		}
		if n.Body != nil {
			p.node(n.Body, depth+1)
		}
	case *ExternFuncDecl:
		p.line(depth, "EXTERN FUNC %s %s", n.Ret, n.Name)
		for _, prm := range n.Params {
			p.node(prm, depth+1)
		}
	case *Param:
		p.line(depth, "PARAM %s %s", n.Type, n.Name)
	case *BlockStmt:
		p.line(depth, "BLOCK")
		for _, s := range n.Stmts {
			p.node(s, depth+1)
		}
	case *AssignStmt:
		if n.IsDecl() {
			p.line(depth, "DECL %s", n.Type)
		} else {
			p.line(depth, "ASSIGN")
		}
		if n.Left != nil {
			p.node(n.Left, depth+1)
		}
		p.node(n.Value, depth+1)
	case *ReturnStmt:
		p.line(depth, "RETURN")
		p.node(n.Value, depth+1)
	case *IfStmt:
		p.line(depth, "IF")
		p.node(n.Cond, depth+1)
		if n.Then != nil {
			p.node(n.Then, depth+1)
		}
		if n.Else != nil {
			p.line(depth, "ELSE")
			p.node(n.Else, depth+1)
		}
	case *WhileStmt:
		p.line(depth, "WHILE")
		p.node(n.Cond, depth+1)
		if n.Body != nil {
			p.node(n.Body, depth+1)
		}
	case *Ident:
		p.line(depth, "ID %s", n.Name)
	case *IntLit:
		p.line(depth, "INT %d", n.Value)
	case *BoolLit:
		p.line(depth, "BOOL %t", n.Value)
	case *BinaryExpr:
		p.line(depth, "BINOP %s", n.Op)
		p.node(n.Left, depth+1)
		p.node(n.Right, depth+1)
	case *UnaryExpr:
		p.line(depth, "UNOP %s", n.Op)
		p.node(n.X, depth+1)
	case *CallExpr:
		p.line(depth, "FUNC_CALL %s", n.Name)
		for _, a := range n.Args {
			p.node(a, depth+1)
		}
	default:
		p.line(depth, "UNKNOWN %T", n)
	}
}

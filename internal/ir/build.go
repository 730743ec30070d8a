package ir

import (
	"fmt"
	"log"

	"github.com/tinyrange/tacc/internal/ast"
)

// Builder lowers syntax trees to three-address code. It owns the
// temporary and label counters of one compilation: every function lowered
// through the same Builder draws from the same sequence, so names never
// collide between functions.
type Builder struct {
	// Log, when non-nil, receives a trace line and tree dump per function.
	Log *log.Logger

	temps  int
	labels int
}

func NewBuilder(logger *log.Logger) *Builder { return &Builder{Log: logger} }

// Reset starts a new compilation.
func (b *Builder) Reset() { b.temps, b.labels = 0, 0 }

func (b *Builder) newTemp() Operand {
	t := Temporary(b.temps)
	b.temps++
	return t
}

func (b *Builder) newLabel() Operand {
	l := LabelRef(b.labels)
	b.labels++
	return l
}

// Lower lowers a fresh compilation of n with its own counters.
func Lower(n ast.Node) (*List, error) { return NewBuilder(nil).Lower(n) }

// Lower returns the instruction sequence for n. Any node kind is
// accepted; the tree is assumed to have passed semantic checks.
func (b *Builder) Lower(n ast.Node) (*List, error) {
	switch n := n.(type) {
	case *ast.Program:
		out := &List{}
		for _, d := range n.Decls {
			code, err := b.Lower(d)
			if err != nil {
				return nil, err
			}
			out.Concat(code)
		}
		return out, nil
	case *ast.FuncDecl:
		if b.Log != nil {
			b.Log.Printf("ir: lowering %s\n%s", n.Name, ast.Sprint(n))
		}
		out := (&List{}).Append(&Instr{Op: OpLabel, Dst: FuncRef(n.Name)})
		if n.Body != nil {
			// the body block is flattened into the function itself
			for _, s := range n.Body.Stmts {
				code, err := b.Lower(s)
				if err != nil {
					return nil, fmt.Errorf("function %s: %w", n.Name, err)
				}
				out.Concat(code)
			}
		}
		return out, nil
	case *ast.ExternFuncDecl:
		return (&List{}).Append(&Instr{Op: OpLabel, Dst: FuncRef(n.Name)}), nil
	case *ast.Param:
		return &List{}, nil
	case ast.Stmt:
		return b.stmt(n)
	case ast.Expr:
		return b.expr(n)
	case nil:
		return nil, fmt.Errorf("%w: nil node", ErrInternal)
	default:
		return nil, fmt.Errorf("%w: cannot lower %T", ErrInternal, n)
	}
}

func (b *Builder) block(blk *ast.BlockStmt) (*List, error) {
	out := &List{}
	if blk == nil {
		return out, nil
	}
	for _, s := range blk.Stmts {
		code, err := b.stmt(s)
		if err != nil {
			return nil, err
		}
		out.Concat(code)
	}
	return out, nil
}

func (b *Builder) stmt(s ast.Stmt) (*List, error) {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return b.block(s)
	case *ast.AssignStmt:
		if s.Left == nil {
			return nil, fmt.Errorf("%w: assignment without target", ErrInternal)
		}
		out, err := b.expr(s.Value)
		if err != nil {
			return nil, err
		}
		val := out.Result()
		return out.Append(&Instr{Op: OpAssign, Arg1: val, Dst: Variable(s.Left.Name)}), nil
	case *ast.ReturnStmt:
		if s.Value == nil {
			return (&List{}).Append(&Instr{Op: OpReturn}), nil
		}
		out, err := b.expr(s.Value)
		if err != nil {
			return nil, err
		}
		val := out.Result()
		return out.Append(&Instr{Op: OpReturn, Arg1: val}), nil
	case *ast.IfStmt:
		return b.ifStmt(s)
	case *ast.WhileStmt:
		return b.whileStmt(s)
	case *ast.CallExpr:
		return b.call(s)
	case nil:
		return nil, fmt.Errorf("%w: nil statement", ErrInternal)
	default:
		return nil, fmt.Errorf("%w: cannot lower statement %T", ErrInternal, s)
	}
}

// ifStmt emits
//
//	cond; ifFalse c goto Lelse; then; goto Lend; Lelse: else; Lend:
//
// The else label is emitted even when there is no else branch.
func (b *Builder) ifStmt(s *ast.IfStmt) (*List, error) {
	out, err := b.expr(s.Cond)
	if err != nil {
		return nil, err
	}
	cond := out.Result()
	elseL, endL := b.newLabel(), b.newLabel()
	out.Append(&Instr{Op: OpIfFalseGoto, Arg1: cond, Dst: elseL})
	then, err := b.block(s.Then)
	if err != nil {
		return nil, err
	}
	out.Concat(then)
	out.Append(&Instr{Op: OpGoto, Dst: endL})
	out.Append(&Instr{Op: OpLabel, Dst: elseL})
	els, err := b.block(s.Else)
	if err != nil {
		return nil, err
	}
	out.Concat(els)
	return out.Append(&Instr{Op: OpLabel, Dst: endL}), nil
}

func (b *Builder) whileStmt(s *ast.WhileStmt) (*List, error) {
	startL, endL := b.newLabel(), b.newLabel()
	out := (&List{}).Append(&Instr{Op: OpLabel, Dst: startL})
	cond, err := b.expr(s.Cond)
	if err != nil {
		return nil, err
	}
	c := cond.Result()
	out.Concat(cond)
	out.Append(&Instr{Op: OpIfFalseGoto, Arg1: c, Dst: endL})
	body, err := b.block(s.Body)
	if err != nil {
		return nil, err
	}
	out.Concat(body)
	out.Append(&Instr{Op: OpGoto, Dst: startL})
	return out.Append(&Instr{Op: OpLabel, Dst: endL}), nil
}

func (b *Builder) expr(e ast.Expr) (*List, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		return b.load(Immediate(e.Value)), nil
	case *ast.BoolLit:
		v := int64(0)
		if e.Value {
			v = 1
		}
		return b.load(Immediate(v)), nil
	case *ast.Ident:
		return b.load(Variable(e.Name)), nil
	case *ast.BinaryExpr:
		// Both sides are always evaluated, left first, even for && and ||.
		out, err := b.expr(e.Left)
		if err != nil {
			return nil, err
		}
		l := out.Result()
		right, err := b.expr(e.Right)
		if err != nil {
			return nil, err
		}
		r := right.Result()
		out.Concat(right)
		return out.Append(&Instr{Op: OpBinary, Sym: e.Op, Arg1: l, Arg2: r, Dst: b.newTemp()}), nil
	case *ast.UnaryExpr:
		out, err := b.expr(e.X)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "!", "-":
			x := out.Result()
			out.Append(&Instr{Op: OpUnary, Sym: e.Op, Arg1: x, Dst: b.newTemp()})
		}
		return out, nil
	case *ast.CallExpr:
		return b.call(e)
	case nil:
		return nil, fmt.Errorf("%w: nil expression", ErrInternal)
	default:
		return nil, fmt.Errorf("%w: cannot lower expression %T", ErrInternal, e)
	}
}

func (b *Builder) load(src Operand) *List {
	return (&List{}).Append(&Instr{Op: OpLoad, Arg1: src, Dst: b.newTemp()})
}

// call stages each argument right after the code computing it, so side
// effects and PARAMs interleave in source order.
func (b *Builder) call(c *ast.CallExpr) (*List, error) {
	out := &List{}
	for _, a := range c.Args {
		code, err := b.expr(a)
		if err != nil {
			return nil, err
		}
		v := code.Result()
		out.Concat(code)
		out.Append(&Instr{Op: OpParam, Arg1: v})
	}
	return out.Append(&Instr{
		Op:   OpCall,
		Arg1: FuncRef(c.Name),
		Arg2: Immediate(int64(len(c.Args))),
		Dst:  b.newTemp(),
	}), nil
}

package x86_64

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/ir"
)

// ErrInternal reports IR the emitter does not understand.
var ErrInternal = errors.New("internal codegen error")

// Emitter lowers three-address code to AT&T syntax x86_64 assembly. All
// values are 32-bit and live in stack slots; arguments are pushed on the
// stack and the result comes back in %eax.
type Emitter struct {
	// Jobs bounds how many functions are emitted concurrently. Values
	// below 2 emit sequentially. Output does not depend on Jobs.
	Jobs int
	Log  *log.Logger
}

// EmitProgram emits code with a sequential Emitter.
func EmitProgram(code *ir.List, prog *ast.Program) (string, error) {
	return (&Emitter{}).Emit(code, prog)
}

type region struct {
	name     string
	decl     ast.Decl
	body     []*ir.Instr // instructions after the function label
	frame    *frame
	boolBase int // first short-circuit label number
}

// Emit lowers code, consulting prog for each function's parameters and
// declared locals. prog may be nil, in which case every named variable
// is treated as global.
func (e *Emitter) Emit(code *ir.List, prog *ast.Program) (string, error) {
	regions, err := splitRegions(code, prog)
	if err != nil {
		return "", err
	}

	boolLabels := 0
	for _, r := range regions {
		var fd *ast.FuncDecl
		if d, ok := r.decl.(*ast.FuncDecl); ok {
			fd = d
		}
		r.frame = layoutFrame(fd, r.body)
		r.boolBase = boolLabels
		for _, in := range r.body {
			if in.Op == ir.OpBinary && (in.Sym == "&&" || in.Sym == "||") {
				boolLabels += 2
			}
		}
		if e.Log != nil {
			e.Log.Printf("codegen: %s: %d params, %d locals, %d temps, frame %d bytes",
				r.name, len(r.frame.params), len(r.frame.locals), len(r.frame.temps), r.frame.size)
		}
	}
	globals := collectGlobals(regions)

	out := make([]string, len(regions))
	emitOne := func(i int) error {
		var b strings.Builder
		if err := emitFunc(&b, regions[i]); err != nil {
			return fmt.Errorf("function %s: %w", regions[i].name, err)
		}
		out[i] = b.String()
		return nil
	}
	if e.Jobs > 1 {
		var g errgroup.Group
		g.SetLimit(e.Jobs)
		for i := range regions {
			i := i
			g.Go(func() error { return emitOne(i) })
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
	} else {
		for i := range regions {
			if err := emitOne(i); err != nil {
				return "", err
			}
		}
	}

	var b strings.Builder
	if len(globals.names) > 0 {
		b.WriteString(".section .data\n")
		for _, g := range globals.names {
			fmt.Fprintf(&b, "%s:\n  .long 0\n", g)
		}
	}
	b.WriteString(".section .text\n")
	for _, s := range out {
		b.WriteString(s)
	}
	return b.String(), nil
}

// splitRegions cuts code at function labels. Extern declarations own no
// code and produce no region.
func splitRegions(code *ir.List, prog *ast.Program) ([]*region, error) {
	var regions []*region
	var cur *region
	for in := code.Head(); in != nil; in = in.Next() {
		if in.IsFuncLabel() {
			cur = &region{name: in.Dst.Name}
			if prog != nil {
				cur.decl = prog.Func(cur.name)
			}
			if _, ext := cur.decl.(*ast.ExternFuncDecl); ext {
				continue
			}
			regions = append(regions, cur)
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("%w: %s outside any function", ErrInternal, in)
		}
		if _, ext := cur.decl.(*ast.ExternFuncDecl); ext {
			return nil, fmt.Errorf("%w: extern %s has code", ErrInternal, cur.name)
		}
		cur.body = append(cur.body, in)
	}
	return regions, nil
}

type globalSet struct {
	names []string
	set   map[string]bool
}

// collectGlobals finds assigned variables that are not a parameter or
// local of the function assigning them.
func collectGlobals(regions []*region) *globalSet {
	g := &globalSet{set: map[string]bool{}}
	for _, r := range regions {
		for _, in := range r.body {
			if in.Op != ir.OpAssign || in.Dst.Kind != ir.KindVar {
				continue
			}
			name := in.Dst.Name
			if _, local := r.frame.vars[name]; local || g.set[name] {
				continue
			}
			g.set[name] = true
			g.names = append(g.names, name)
		}
	}
	return g
}

type funcEmitter struct {
	b     *strings.Builder
	f     *frame
	nbool int
}

func emitFunc(b *strings.Builder, r *region) error {
	fe := &funcEmitter{b: b, f: r.frame, nbool: r.boolBase}
	fmt.Fprintf(b, ".globl %s\n%s:\n", r.name, r.name)
	b.WriteString("  pushq %rbp\n")
	b.WriteString("  movq %rsp, %rbp\n")
	if r.frame.size > 0 {
		fmt.Fprintf(b, "  subq $%d, %%rsp\n", r.frame.size)
	}
	n := len(r.frame.params)
	for i, p := range r.frame.params {
		fmt.Fprintf(b, "  movl %d(%%rbp), %%eax\n", argOffset(i, n))
		fmt.Fprintf(b, "  movl %%eax, %d(%%rbp)\n", r.frame.vars[p])
	}
	for _, in := range r.body {
		if err := fe.instr(in); err != nil {
			return err
		}
	}
	// Reached only when control falls off the end of the body.
	fe.epilogue()
	return nil
}

func (fe *funcEmitter) epilogue() {
	fe.b.WriteString("  movq %rbp, %rsp\n")
	fe.b.WriteString("  popq %rbp\n")
	fe.b.WriteString("  ret\n")
}

func (fe *funcEmitter) emit(format string, args ...any) {
	fe.b.WriteString("  ")
	fmt.Fprintf(fe.b, format, args...)
	fe.b.WriteByte('\n')
}

// loc renders o as an instruction operand.
func (fe *funcEmitter) loc(o ir.Operand) string {
	switch o.Kind {
	case ir.KindImm:
		return fmt.Sprintf("$%d", int32(o.Imm))
	case ir.KindTemp:
		if off, ok := fe.f.tempOff[o.ID]; ok {
			return fmt.Sprintf("%d(%%rbp)", off)
		}
	case ir.KindVar:
		if off, ok := fe.f.vars[o.Name]; ok {
			return fmt.Sprintf("%d(%%rbp)", off)
		}
		return o.Name + "(%rip)"
	}
	return "$0"
}

func (fe *funcEmitter) store(dst ir.Operand) {
	if dst.IsNone() {
		return
	}
	fe.emit("movl %%eax, %s", fe.loc(dst))
}

func (fe *funcEmitter) move(src, dst ir.Operand) {
	fe.emit("movl %s, %%eax", fe.loc(src))
	fe.store(dst)
}

func label(o ir.Operand) string { return fmt.Sprintf(".L%d", o.ID) }

var setcc = map[string]string{
	"==": "sete",
	"!=": "setne",
	"<":  "setl",
	"<=": "setle",
	">":  "setg",
	">=": "setge",
}

func (fe *funcEmitter) instr(in *ir.Instr) error {
	switch in.Op {
	case ir.OpLoad, ir.OpAssign:
		fe.move(in.Arg1, in.Dst)
	case ir.OpBinary:
		fe.binary(in)
	case ir.OpUnary:
		fe.emit("movl %s, %%eax", fe.loc(in.Arg1))
		switch in.Sym {
		case "!":
			fe.emit("cmpl $0, %%eax")
			fe.emit("sete %%al")
			fe.emit("movzbl %%al, %%eax")
		case "-":
			fe.emit("negl %%eax")
		}
		fe.store(in.Dst)
	case ir.OpLabel:
		if in.Dst.Kind != ir.KindLabel {
			return fmt.Errorf("%w: unexpected label %s", ErrInternal, in.Dst)
		}
		fmt.Fprintf(fe.b, "%s:\n", label(in.Dst))
	case ir.OpGoto:
		fe.emit("jmp %s", label(in.Dst))
	case ir.OpIfFalseGoto:
		fe.emit("movl %s, %%eax", fe.loc(in.Arg1))
		fe.emit("cmpl $0, %%eax")
		fe.emit("je %s", label(in.Dst))
	case ir.OpParam:
		fe.emit("movl %s, %%eax", fe.loc(in.Arg1))
		fe.emit("pushq %%rax")
	case ir.OpCall:
		fe.emit("call %s", in.Arg1.Name)
		if n := in.Arg2.Imm; n > 0 {
			fe.emit("addq $%d, %%rsp", 8*n)
		}
		fe.store(in.Dst)
	case ir.OpReturn:
		if !in.Arg1.IsNone() {
			fe.emit("movl %s, %%eax", fe.loc(in.Arg1))
		}
		fe.epilogue()
	default:
		return fmt.Errorf("%w: unknown opcode %v", ErrInternal, in.Op)
	}
	return nil
}

func (fe *funcEmitter) binary(in *ir.Instr) {
	a, c := in.Arg1, in.Arg2
	if a.IsNone() || c.IsNone() {
		fe.move(a, in.Dst)
		return
	}
	switch in.Sym {
	case "+", "-", "*":
		op := map[string]string{"+": "addl", "-": "subl", "*": "imull"}[in.Sym]
		fe.emit("movl %s, %%eax", fe.loc(a))
		fe.emit("%s %s, %%eax", op, fe.loc(c))
	case "/", "%":
		fe.emit("movl %s, %%eax", fe.loc(a))
		fe.emit("cltd")
		fe.emit("movl %s, %%ecx", fe.loc(c))
		fe.emit("idivl %%ecx")
		if in.Sym == "%" {
			fe.emit("movl %%edx, %%eax")
		}
	case "==", "!=", "<", "<=", ">", ">=":
		fe.emit("movl %s, %%eax", fe.loc(a))
		fe.emit("cmpl %s, %%eax", fe.loc(c))
		fe.emit("%s %%al", setcc[in.Sym])
		fe.emit("movzbl %%al, %%eax")
	case "&&", "||":
		// Both operands are already computed; only the 0/1 result branches.
		short, done := fe.nbool, fe.nbool+1
		fe.nbool += 2
		jump, shortVal, fallVal := "je", 0, 1
		if in.Sym == "||" {
			jump, shortVal, fallVal = "jne", 1, 0
		}
		for _, o := range [...]ir.Operand{a, c} {
			fe.emit("movl %s, %%eax", fe.loc(o))
			fe.emit("cmpl $0, %%eax")
			fe.emit("%s .Lbool%d", jump, short)
		}
		fe.emit("movl $%d, %%eax", fallVal)
		fe.emit("jmp .Lbool%d", done)
		fmt.Fprintf(fe.b, ".Lbool%d:\n", short)
		fe.emit("movl $%d, %%eax", shortVal)
		fmt.Fprintf(fe.b, ".Lbool%d:\n", done)
	default:
		fe.emit("movl %s, %%eax", fe.loc(a))
	}
	fe.store(in.Dst)
}

package x86_64

import (
	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/ir"
	"github.com/tinyrange/tacc/internal/types"
)

// Every value lives in a 4-byte stack slot below %rbp; there is no
// register allocation. Slots are handed out parameters first, then
// declared locals, then temporaries, each group in first-seen order.

type frame struct {
	name   string
	params []string
	locals []string
	temps  []int

	vars    map[string]int // offset from %rbp
	tempOff map[int]int
	size    int // bytes reserved below %rbp, multiple of 16
}

func layoutFrame(fd *ast.FuncDecl, region []*ir.Instr) *frame {
	f := &frame{vars: map[string]int{}, tempOff: map[int]int{}}
	next := 0
	claim := func() int {
		next += types.SlotSize
		return -next
	}
	if fd != nil {
		f.name = fd.Name
		for _, p := range fd.Params {
			if _, dup := f.vars[p.Name]; dup {
				continue
			}
			f.params = append(f.params, p.Name)
			f.vars[p.Name] = claim()
		}
		if fd.Body != nil {
			ast.Walk(fd.Body, func(n ast.Node) bool {
				s, ok := n.(*ast.AssignStmt)
				if !ok || !s.IsDecl() || s.Left == nil {
					return true
				}
				if _, seen := f.vars[s.Left.Name]; !seen {
					f.locals = append(f.locals, s.Left.Name)
					f.vars[s.Left.Name] = claim()
				}
				return true
			})
		}
	}
	for _, in := range region {
		for _, o := range in.Operands() {
			if !o.IsTemp() {
				continue
			}
			if _, seen := f.tempOff[o.ID]; !seen {
				f.temps = append(f.temps, o.ID)
				f.tempOff[o.ID] = claim()
			}
		}
	}
	f.size = align(next, 16)
	return f
}

func (f *frame) slots() int { return len(f.params) + len(f.locals) + len(f.temps) }

// argOffset is where parameter i of n sits in the caller's frame. The
// caller pushes arguments in source order, so the last one is nearest.
func argOffset(i, n int) int { return 16 + 8*(n-1-i) }

func align(n, a int) int {
	if n%a == 0 {
		return n
	}
	return n + a - n%a
}

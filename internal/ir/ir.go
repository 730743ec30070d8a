package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInternal marks compiler bugs: input the IR builder was never meant to see.
var ErrInternal = errors.New("internal consistency error")

type Op int

const (
	OpLoad        Op = iota // Dst = Arg1 (literal, variable or temporary)
	OpBinary                // Dst = Arg1 Sym Arg2
	OpUnary                 // Dst = Sym Arg1
	OpAssign                // variable Dst = Arg1
	OpLabel                 // Dst:
	OpGoto                  // goto Dst
	OpIfFalseGoto           // ifFalse Arg1 goto Dst
	OpParam                 // stage Arg1 as the next call argument
	OpCall                  // Dst = call Arg1, Arg2 (argument count)
	OpReturn                // return [Arg1]
)

var opNames = [...]string{
	OpLoad:        "LOAD",
	OpBinary:      "BINOP",
	OpUnary:       "UNOP",
	OpAssign:      "ASSIGN",
	OpLabel:       "LABEL",
	OpGoto:        "GOTO",
	OpIfFalseGoto: "IF_FALSE_GOTO",
	OpParam:       "PARAM",
	OpCall:        "CALL",
	OpReturn:      "RETURN",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

type OperandKind int

const (
	KindNone  OperandKind = iota
	KindImm               // integer literal
	KindTemp              // compiler-generated temporary t<ID>
	KindVar               // source-level variable
	KindLabel             // generated control-flow label L<ID>
	KindFunc              // function name
)

// Operand is one field of an instruction. Its kind is fixed when the
// builder creates it, so later passes never have to guess from spelling.
type Operand struct {
	Kind OperandKind
	Imm  int64
	ID   int
	Name string
}

func Immediate(v int64) Operand { return Operand{Kind: KindImm, Imm: v} }
func Temporary(id int) Operand { return Operand{Kind: KindTemp, ID: id} }
func Variable(name string) Operand { return Operand{Kind: KindVar, Name: name} }
func LabelRef(id int) Operand { return Operand{Kind: KindLabel, ID: id} }
func FuncRef(name string) Operand { return Operand{Kind: KindFunc, Name: name} }

func (o Operand) IsNone() bool { return o.Kind == KindNone }
func (o Operand) IsTemp() bool { return o.Kind == KindTemp }

func (o Operand) String() string {
	switch o.Kind {
	case KindImm:
		return strconv.FormatInt(o.Imm, 10)
	case KindTemp:
		return "t" + strconv.Itoa(o.ID)
	case KindLabel:
		return "L" + strconv.Itoa(o.ID)
	case KindVar, KindFunc:
		return o.Name
	default:
		return ""
	}
}

type Instr struct {
	Op   Op
	Sym  string // operator symbol for OpBinary / OpUnary
	Arg1 Operand
	Arg2 Operand
	Dst  Operand
	next *Instr
}

func (in *Instr) Next() *Instr { return in.next }

// IsFuncLabel reports whether in opens a function region.
func (in *Instr) IsFuncLabel() bool { return in.Op == OpLabel && in.Dst.Kind == KindFunc }

// Operands returns the fields of in that are present, in field order.
func (in *Instr) Operands() []Operand {
	var out []Operand
	for _, o := range [...]Operand{in.Arg1, in.Arg2, in.Dst} {
		if !o.IsNone() {
			out = append(out, o)
		}
	}
	return out
}

// String renders in in conventional three-address form.
func (in *Instr) String() string {
	switch in.Op {
	case OpLabel:
		return in.Dst.String() + ":"
	case OpGoto:
		return "goto " + in.Dst.String()
	case OpIfFalseGoto:
		return fmt.Sprintf("ifFalse %s goto %s", in.Arg1, in.Dst)
	case OpCall:
		n := in.Arg2.String()
		if n == "" {
			n = "0"
		}
		return fmt.Sprintf("%s = call %s, %s", in.Dst, in.Arg1, n)
	case OpReturn:
		if in.Arg1.IsNone() {
			return "return"
		}
		return "return " + in.Arg1.String()
	case OpParam:
		return "param " + in.Arg1.String()
	case OpLoad, OpAssign:
		return fmt.Sprintf("%s = %s", in.Dst, in.Arg1)
	case OpBinary:
		return fmt.Sprintf("%s = %s %s %s", in.Dst, in.Arg1, in.Sym, in.Arg2)
	case OpUnary:
		return fmt.Sprintf("%s = %s%s", in.Dst, in.Sym, in.Arg1)
	default:
		return fmt.Sprintf("%s %s %s %s", in.Op, in.Arg1, in.Arg2, in.Dst)
	}
}

// List is a singly linked instruction sequence with a cached tail, so
// appending and concatenation are O(1).
type List struct {
	head, tail *Instr
	n          int
}

func (l *List) Head() *Instr { return l.head }
func (l *List) Last() *Instr { return l.tail }
func (l *List) Len() int { return l.n }

// Result is the location holding the value of the expression whose code
// is l: the destination of its last instruction.
func (l *List) Result() Operand {
	if l == nil || l.tail == nil {
		return Operand{}
	}
	return l.tail.Dst
}

func (l *List) Append(in *Instr) *List {
	in.next = nil
	if l.tail == nil {
		l.head = in
	} else {
		l.tail.next = in
	}
	l.tail = in
	l.n++
	return l
}

// Concat moves every instruction of other to the end of l. other is left
// empty; instructions are never shared between lists.
func (l *List) Concat(other *List) *List {
	if other == nil || other.head == nil {
		return l
	}
	if l.tail == nil {
		l.head = other.head
	} else {
		l.tail.next = other.head
	}
	l.tail = other.tail
	l.n += other.n
	other.head, other.tail, other.n = nil, nil, 0
	return l
}

// Instrs returns the instructions of l in order.
func (l *List) Instrs() []*Instr {
	out := make([]*Instr, 0, l.n)
	for in := l.head; in != nil; in = in.next {
		out = append(out, in)
	}
	return out
}

// String renders one instruction per line. Control-flow and function
// labels sit at column zero; everything else is indented.
func (l *List) String() string {
	var b strings.Builder
	for in := l.head; in != nil; in = in.next {
		if in.Op != OpLabel {
			b.WriteString("    ")
		}
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}

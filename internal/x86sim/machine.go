package x86sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
)

const (
	// StackSize is the number of bytes reserved for the stack.
	StackSize = 1 << 20
	// DefaultMaxSteps bounds Call when MaxSteps is zero.
	DefaultMaxSteps = 10_000_000

	dataBase = 16
	sentinel = ^uint64(0) // return address that ends a Call
)

var (
	ErrStepLimit    = errors.New("step limit exceeded")
	ErrDivideByZero = errors.New("integer divide by zero")
)

// Func implements an extern function. args holds the call's arguments
// in source order.
type Func func(args []int32) int32

type extern struct {
	arity int
	fn    Func
}

type flags struct {
	eq, lt bool
}

type Machine struct {
	// MaxSteps bounds the instructions executed by one Call. Zero means
	// DefaultMaxSteps.
	MaxSteps int
	// Trace, when non-nil, logs every instruction executed.
	Trace *log.Logger

	prog    []instr
	labels  map[string]int
	globals map[string]int64
	externs map[string]extern
	mem     []byte
	dataEnd int64

	regs  [numRegs]uint64
	flags flags
	pc    int
	steps int
}

// Bind installs fn as the implementation of the extern function name.
// Calls to name read arity arguments from the stack.
func (m *Machine) Bind(name string, arity int, fn Func) {
	m.externs[name] = extern{arity: arity, fn: fn}
}

// Global returns the current value of a data-section word.
func (m *Machine) Global(name string) (int32, bool) {
	addr, ok := m.globals[name]
	if !ok {
		return 0, false
	}
	v, _ := m.read32(addr)
	return v, true
}

// Steps reports how many instructions the last Call executed.
func (m *Machine) Steps() int { return m.steps }

// Call runs the function name to completion and returns %eax. Arguments
// are pushed in order, the way compiled callers pass them. Data words
// keep their values between calls.
func (m *Machine) Call(name string, args ...int32) (int32, error) {
	if ext, ok := m.externs[name]; ok {
		if len(args) != ext.arity {
			return 0, fmt.Errorf("%s expects %d arguments, got %d", name, ext.arity, len(args))
		}
		return ext.fn(args), nil
	}
	entry, ok := m.labels[name]
	if !ok {
		return 0, fmt.Errorf("undefined function %s", name)
	}
	m.regs = [numRegs]uint64{}
	m.regs[rSP] = uint64(len(m.mem))
	for _, a := range args {
		if err := m.push(uint64(int64(a))); err != nil {
			return 0, err
		}
	}
	if err := m.push(sentinel); err != nil {
		return 0, err
	}
	m.pc = entry
	m.steps = 0
	limit := m.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	for {
		if m.steps >= limit {
			return 0, fmt.Errorf("%s: %w after %d instructions", name, ErrStepLimit, m.steps)
		}
		if m.pc < 0 || m.pc >= len(m.prog) {
			return 0, fmt.Errorf("%s: execution ran off the end of the program", name)
		}
		in := &m.prog[m.pc]
		m.steps++
		if m.Trace != nil {
			m.Trace.Printf("%6d  %s", in.line, in.text)
		}
		done, err := m.step(in)
		if err != nil {
			return 0, fmt.Errorf("line %d: %s: %w", in.line, in.text, err)
		}
		if done {
			return int32(uint32(m.regs[rAX])), nil
		}
	}
}

func (m *Machine) step(in *instr) (bool, error) {
	next := m.pc + 1
	a := in.args
	switch in.mnemonic {
	case "pushq":
		v, err := m.get64(a[0])
		if err != nil {
			return false, err
		}
		if err := m.push(v); err != nil {
			return false, err
		}
	case "popq":
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		if err := m.set64(a[0], v); err != nil {
			return false, err
		}
	case "movq", "addq", "subq":
		src, err := m.get64(a[0])
		if err != nil {
			return false, err
		}
		if in.mnemonic != "movq" {
			dst, err := m.get64(a[1])
			if err != nil {
				return false, err
			}
			if in.mnemonic == "addq" {
				src = dst + src
			} else {
				src = dst - src
			}
		}
		if err := m.set64(a[1], src); err != nil {
			return false, err
		}
	case "movl", "addl", "subl", "imull":
		src, err := m.get32(a[0])
		if err != nil {
			return false, err
		}
		if in.mnemonic != "movl" {
			dst, err := m.get32(a[1])
			if err != nil {
				return false, err
			}
			switch in.mnemonic {
			case "addl":
				src = dst + src
			case "subl":
				src = dst - src
			case "imull":
				src = dst * src
			}
		}
		if err := m.set32(a[1], src); err != nil {
			return false, err
		}
	case "cltd":
		if int32(uint32(m.regs[rAX])) < 0 {
			m.regs[rDX] = 0xffffffff
		} else {
			m.regs[rDX] = 0
		}
	case "idivl":
		d, err := m.get32(a[0])
		if err != nil {
			return false, err
		}
		if d == 0 {
			return false, ErrDivideByZero
		}
		n := int64(int32(uint32(m.regs[rDX])))<<32 | int64(uint32(m.regs[rAX]))
		q, r := n/int64(d), n%int64(d)
		if q != int64(int32(q)) {
			return false, errors.New("integer division overflow")
		}
		m.regs[rAX] = uint64(uint32(int32(q)))
		m.regs[rDX] = uint64(uint32(int32(r)))
	case "cmpl":
		src, err := m.get32(a[0])
		if err != nil {
			return false, err
		}
		dst, err := m.get32(a[1])
		if err != nil {
			return false, err
		}
		m.flags = flags{eq: dst == src, lt: dst < src}
	case "negl":
		v, err := m.get32(a[0])
		if err != nil {
			return false, err
		}
		if err := m.set32(a[0], -v); err != nil {
			return false, err
		}
	case "sete", "setne", "setl", "setle", "setg", "setge":
		var v int32
		if m.cond(in.mnemonic[3:]) {
			v = 1
		}
		if err := m.set32(a[0], v); err != nil {
			return false, err
		}
	case "movzbl":
		if a[0].kind != opReg || a[0].reg.width != 1 {
			return false, errors.New("movzbl source must be a byte register")
		}
		v := int32(uint8(m.regs[a[0].reg.reg]))
		if err := m.set32(a[1], v); err != nil {
			return false, err
		}
	case "je":
		if m.flags.eq {
			next = in.target
		}
	case "jne":
		if !m.flags.eq {
			next = in.target
		}
	case "jmp":
		next = in.target
	case "call":
		name := a[0].label
		if ext, ok := m.externs[name]; ok {
			args := make([]int32, ext.arity)
			sp := int64(m.regs[rSP])
			for i := range args {
				v, err := m.read32(sp + int64(8*(ext.arity-1-i)))
				if err != nil {
					return false, err
				}
				args[i] = v
			}
			m.regs[rAX] = uint64(uint32(ext.fn(args)))
			break
		}
		target, ok := m.labels[name]
		if !ok {
			return false, fmt.Errorf("call to undefined function %s", name)
		}
		if err := m.push(uint64(next)); err != nil {
			return false, err
		}
		next = target
	case "ret":
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		if v == sentinel {
			return true, nil
		}
		next = int(v)
	default:
		return false, fmt.Errorf("unsupported instruction %s", in.mnemonic)
	}
	m.pc = next
	return false, nil
}

func (m *Machine) cond(cc string) bool {
	f := m.flags
	switch cc {
	case "e":
		return f.eq
	case "ne":
		return !f.eq
	case "l":
		return f.lt
	case "le":
		return f.lt || f.eq
	case "g":
		return !f.lt && !f.eq
	default: // "ge"
		return !f.lt
	}
}

func (m *Machine) addr(o operand) int64 {
	if o.base < 0 {
		return o.disp
	}
	return int64(m.regs[o.base]) + o.disp
}

func (m *Machine) get64(o operand) (uint64, error) {
	switch o.kind {
	case opImm:
		return uint64(o.imm), nil
	case opReg:
		if o.reg.width != 8 {
			return 0, errors.New("64-bit operation on a narrow register")
		}
		return m.regs[o.reg.reg], nil
	case opMem:
		return m.read64(m.addr(o))
	}
	return 0, errors.New("bad operand")
}

func (m *Machine) set64(o operand, v uint64) error {
	switch o.kind {
	case opReg:
		if o.reg.width != 8 {
			return errors.New("64-bit operation on a narrow register")
		}
		m.regs[o.reg.reg] = v
		return nil
	case opMem:
		return m.write64(m.addr(o), v)
	}
	return errors.New("bad destination")
}

func (m *Machine) get32(o operand) (int32, error) {
	switch o.kind {
	case opImm:
		return int32(o.imm), nil
	case opReg:
		v := m.regs[o.reg.reg]
		if o.reg.width == 1 {
			return int32(uint8(v)), nil
		}
		return int32(uint32(v)), nil
	case opMem:
		return m.read32(m.addr(o))
	}
	return 0, errors.New("bad operand")
}

// set32 follows the hardware rule: writing a 32-bit register clears the
// upper half, writing a byte register leaves the rest untouched.
func (m *Machine) set32(o operand, v int32) error {
	switch o.kind {
	case opReg:
		r := o.reg.reg
		switch o.reg.width {
		case 1:
			m.regs[r] = m.regs[r]&^0xff | uint64(uint8(v))
		case 4:
			m.regs[r] = uint64(uint32(v))
		default:
			return errors.New("32-bit operation on a 64-bit register")
		}
		return nil
	case opMem:
		return m.write32(m.addr(o), v)
	}
	return errors.New("bad destination")
}

func (m *Machine) push(v uint64) error {
	sp := int64(m.regs[rSP]) - 8
	if sp < align16(m.dataEnd) {
		return errors.New("stack overflow")
	}
	m.regs[rSP] = uint64(sp)
	return m.write64(sp, v)
}

func (m *Machine) pop() (uint64, error) {
	sp := int64(m.regs[rSP])
	v, err := m.read64(sp)
	if err != nil {
		return 0, err
	}
	m.regs[rSP] = uint64(sp + 8)
	return v, nil
}

func (m *Machine) check(addr int64, n int) error {
	if addr < 0 || addr+int64(n) > int64(len(m.mem)) {
		return fmt.Errorf("memory access out of range at %#x", addr)
	}
	return nil
}

func (m *Machine) read32(addr int64) (int32, error) {
	if err := m.check(addr, 4); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(m.mem[addr:])), nil
}

func (m *Machine) write32(addr int64, v int32) error {
	if err := m.check(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.mem[addr:], uint32(v))
	return nil
}

func (m *Machine) read64(addr int64) (uint64, error) {
	if err := m.check(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.mem[addr:]), nil
}

func (m *Machine) write64(addr int64, v uint64) error {
	if err := m.check(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.mem[addr:], v)
	return nil
}

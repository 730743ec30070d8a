// Package x86sim executes the subset of AT&T x86_64 assembly produced by
// the code generator, so compiled programs can be run and tested without
// an assembler, linker or amd64 host.
package x86sim

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	rAX = iota
	rCX
	rDX
	rBX
	rSP
	rBP
	rSI
	rDI
	numRegs
)

type regRef struct {
	reg   int
	width int // bytes
}

var registers = map[string]regRef{
	"%rax": {rAX, 8}, "%eax": {rAX, 4}, "%al": {rAX, 1},
	"%rcx": {rCX, 8}, "%ecx": {rCX, 4}, "%cl": {rCX, 1},
	"%rdx": {rDX, 8}, "%edx": {rDX, 4}, "%dl": {rDX, 1},
	"%rbx": {rBX, 8}, "%ebx": {rBX, 4},
	"%rsp": {rSP, 8},
	"%rbp": {rBP, 8},
	"%rsi": {rSI, 8}, "%esi": {rSI, 4},
	"%rdi": {rDI, 8}, "%edi": {rDI, 4},
}

type opKind int

const (
	opImm opKind = iota
	opReg
	opMem
	opLabel
)

type operand struct {
	kind  opKind
	imm   int64
	reg   regRef
	base  int // base register for opMem, -1 for an absolute address
	disp  int64
	label string
}

type instr struct {
	mnemonic string
	args     []operand
	target   int // resolved jump target
	line     int
	text     string
}

// operand counts per mnemonic
var arity = map[string]int{
	"pushq": 1, "popq": 1, "movq": 2, "subq": 2, "addq": 2,
	"movl": 2, "addl": 2, "subl": 2, "imull": 2, "cltd": 0, "idivl": 1,
	"cmpl": 2, "negl": 1,
	"sete": 1, "setne": 1, "setl": 1, "setle": 1, "setg": 1, "setge": 1,
	"movzbl": 2,
	"je": 1, "jne": 1, "jmp": 1, "call": 1, "ret": 0,
}

var jumps = map[string]bool{"je": true, "jne": true, "jmp": true}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
	text     string
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}
	line := raw
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 || strings.ContainsAny(line[:colon], " \t,") {
			break
		}
		p.labels = append(p.labels, line[:colon])
		line = strings.TrimSpace(line[colon+1:])
	}
	if line == "" {
		return p, nil
	}
	p.text = line
	fields := strings.SplitN(line, " ", 2)
	p.mnemonic = fields[0]
	if len(fields) == 2 {
		for _, op := range strings.Split(fields[1], ",") {
			op = strings.TrimSpace(op)
			if op == "" {
				return p, fmt.Errorf("line %d: empty operand in %q", lineNo, line)
			}
			p.operands = append(p.operands, op)
		}
	}
	return p, nil
}

// Load parses asm and lays out its data section. Code labels and data
// words are collected in a first pass, instructions resolved in a second.
func Load(asm string) (*Machine, error) {
	m := &Machine{
		labels:  map[string]int{},
		globals: map[string]int64{},
		externs: map[string]extern{},
	}
	lines := strings.Split(asm, "\n")
	parsed := make([]parsedLine, 0, len(lines))
	var data []int32
	inData := false
	var pending []string

	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
		if inData {
			pending = append(pending, p.labels...)
		} else {
			for _, l := range p.labels {
				if _, dup := m.labels[l]; dup {
					return nil, fmt.Errorf("line %d: duplicate label %s", p.lineNo, l)
				}
				m.labels[l] = len(m.prog)
			}
		}
		switch p.mnemonic {
		case "":
			continue
		case ".section":
			if len(p.operands) != 1 {
				return nil, fmt.Errorf("line %d: .section expects one operand", p.lineNo)
			}
			inData = p.operands[0] == ".data"
		case ".data":
			inData = true
		case ".text":
			inData = false
		case ".globl", ".global":
		case ".long":
			if !inData {
				return nil, fmt.Errorf("line %d: .long outside .data", p.lineNo)
			}
			if len(p.operands) != 1 {
				return nil, fmt.Errorf("line %d: .long expects one operand", p.lineNo)
			}
			v, err := strconv.ParseInt(p.operands[0], 0, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad .long value %q", p.lineNo, p.operands[0])
			}
			addr := dataBase + int64(4*len(data))
			for _, l := range pending {
				if _, dup := m.globals[l]; dup {
					return nil, fmt.Errorf("line %d: duplicate data label %s", p.lineNo, l)
				}
				m.globals[l] = addr
			}
			pending = pending[:0]
			data = append(data, int32(v))
		default:
			if inData {
				return nil, fmt.Errorf("line %d: instruction %s in .data", p.lineNo, p.mnemonic)
			}
			n, ok := arity[p.mnemonic]
			if !ok {
				return nil, fmt.Errorf("line %d: unsupported instruction %s", p.lineNo, p.mnemonic)
			}
			if len(p.operands) != n {
				return nil, fmt.Errorf("line %d: %s expects %d operands, got %d", p.lineNo, p.mnemonic, n, len(p.operands))
			}
			m.prog = append(m.prog, instr{mnemonic: p.mnemonic, line: p.lineNo, text: p.text})
		}
	}

	pc := 0
	for _, p := range parsed {
		if _, ok := arity[p.mnemonic]; !ok {
			continue
		}
		in := &m.prog[pc]
		pc++
		for _, tok := range p.operands {
			op, err := m.parseOperand(tok, in.mnemonic)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", p.lineNo, err)
			}
			in.args = append(in.args, op)
		}
		if jumps[in.mnemonic] {
			target, ok := m.labels[in.args[0].label]
			if !ok {
				return nil, fmt.Errorf("line %d: undefined label %s", p.lineNo, in.args[0].label)
			}
			in.target = target
		}
	}

	m.dataEnd = dataBase + int64(4*len(data))
	m.mem = make([]byte, align16(m.dataEnd)+StackSize)
	for i, v := range data {
		m.write32(dataBase+int64(4*i), v)
	}
	return m, nil
}

func (m *Machine) parseOperand(tok, mnemonic string) (operand, error) {
	switch {
	case strings.HasPrefix(tok, "$"):
		v, err := strconv.ParseInt(tok[1:], 0, 64)
		if err != nil {
			return operand{}, fmt.Errorf("bad immediate %q", tok)
		}
		return operand{kind: opImm, imm: v}, nil
	case strings.HasPrefix(tok, "%"):
		r, ok := registers[tok]
		if !ok {
			return operand{}, fmt.Errorf("unknown register %s", tok)
		}
		return operand{kind: opReg, reg: r}, nil
	case strings.HasSuffix(tok, ")"):
		open := strings.IndexByte(tok, '(')
		if open < 0 {
			return operand{}, fmt.Errorf("bad memory operand %q", tok)
		}
		disp, baseName := tok[:open], tok[open+1:len(tok)-1]
		if baseName == "%rip" {
			addr, ok := m.globals[disp]
			if !ok {
				return operand{}, fmt.Errorf("undefined data symbol %s", disp)
			}
			return operand{kind: opMem, base: -1, disp: addr}, nil
		}
		base, ok := registers[baseName]
		if !ok || base.width != 8 {
			return operand{}, fmt.Errorf("bad base register in %q", tok)
		}
		var off int64
		if disp != "" {
			v, err := strconv.ParseInt(disp, 0, 64)
			if err != nil {
				return operand{}, fmt.Errorf("bad displacement in %q", tok)
			}
			off = v
		}
		return operand{kind: opMem, base: base.reg, disp: off}, nil
	case mnemonic == "call" || jumps[mnemonic]:
		return operand{kind: opLabel, label: tok}, nil
	}
	return operand{}, fmt.Errorf("unsupported operand %q", tok)
}

func align16(n int64) int64 { return (n + 15) &^ 15 }

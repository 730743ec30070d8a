// Package driver runs the whole pipeline: parse, check, lower to IR and
// emit assembly.
package driver

import (
	"fmt"
	"log"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/codegen/x86_64"
	"github.com/tinyrange/tacc/internal/ir"
	"github.com/tinyrange/tacc/internal/parser"
	"github.com/tinyrange/tacc/internal/sema"
)

type Phase string

const (
	PhaseParse   Phase = "parse"
	PhaseCheck   Phase = "check"
	PhaseIR      Phase = "ir"
	PhaseCodegen Phase = "codegen"
)

// Error is a failure in one phase of the pipeline.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s error: %v", e.Phase, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	Jobs int         // see x86_64.Emitter.Jobs
	Log  *log.Logger // nil disables tracing
}

type Result struct {
	Program *ast.Program
	Code    *ir.List
	Asm     string
}

// Compile compiles one translation unit. Nothing is returned on failure.
func Compile(filename, src string, opts Options) (*Result, error) {
	prog, err := parser.ParseFile(filename, src)
	if err != nil {
		return nil, &Error{PhaseParse, err}
	}
	if err := sema.Check(prog); err != nil {
		return nil, &Error{PhaseCheck, err}
	}
	if opts.Log != nil {
		opts.Log.Printf("checked %s: %d declarations", filename, len(prog.Decls))
	}
	code, err := ir.NewBuilder(opts.Log).Lower(prog)
	if err != nil {
		return nil, &Error{PhaseIR, err}
	}
	if opts.Log != nil {
		opts.Log.Printf("ir: %d instructions", code.Len())
	}
	em := &x86_64.Emitter{Jobs: opts.Jobs, Log: opts.Log}
	asm, err := em.Emit(code, prog)
	if err != nil {
		return nil, &Error{PhaseCodegen, err}
	}
	return &Result{Program: prog, Code: code, Asm: asm}, nil
}

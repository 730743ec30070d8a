package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/config"
	"github.com/tinyrange/tacc/internal/driver"
	"github.com/tinyrange/tacc/internal/x86sim"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "repl" {
		os.Exit(cmdRepl(os.Args[2:]))
	}
	os.Exit(cmdCompile(os.Args[1:]))
}

func cmdCompile(args []string) int {
	cfg := config.FromEnv()
	fs := flag.NewFlagSet("tacc", flag.ContinueOnError)
	outPath := fs.String("o", "", "output file (default: stdout)")
	fs.StringVar(&cfg.Emit, "emit", cfg.Emit, "output form: asm, ir or ast")
	runProgram := fs.Bool("run", false, "execute main in the built-in simulator; its result is the exit status")
	fs.IntVar(&cfg.Jobs, "j", cfg.Jobs, "functions to emit concurrently")
	fs.BoolVar(&cfg.Trace, "v", cfg.Trace, "log compiler phases to stderr")
	fs.IntVar(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "instruction budget for -run")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: tacc [flags] file.tc\n       tacc repl")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}
	srcPath := fs.Arg(0)
	data, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		return 1
	}

	var logger *log.Logger
	if cfg.Trace {
		logger = log.New(os.Stderr, "tacc: ", 0)
	}
	res, err := driver.Compile(srcPath, string(data), driver.Options{Jobs: cfg.Jobs, Log: logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if !*runProgram || *outPath != "" {
		var out string
		switch cfg.Emit {
		case config.EmitIR:
			out = res.Code.String()
		case config.EmitAST:
			out = ast.Sprint(res.Program)
		default:
			out = res.Asm
		}
		if *outPath == "" {
			fmt.Print(out)
		} else if err := os.WriteFile(*outPath, []byte(out), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "write error: %v\n", err)
			return 1
		}
	}
	if !*runProgram {
		return 0
	}
	v, err := execute(res.Asm, cfg, logger, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run error: %v\n", err)
		return 1
	}
	return int(uint8(v))
}

// execute runs main in the simulator with the runtime externs bound.
func execute(asm string, cfg config.Config, trace *log.Logger, stdout io.Writer) (int32, error) {
	m, err := x86sim.Load(asm)
	if err != nil {
		return 0, err
	}
	m.MaxSteps = cfg.MaxSteps
	m.Trace = trace
	bindRuntime(m, stdout)
	v, err := m.Call("main")
	if errors.Is(err, x86sim.ErrStepLimit) {
		return 0, fmt.Errorf("%w (raise -max-steps or TACC_MAX_STEPS)", err)
	}
	return v, err
}

// bindRuntime provides the externs a program may declare:
//
//	extern int putint(int x);   // prints x and a newline
//	extern int putchar(int c);
func bindRuntime(m *x86sim.Machine, w io.Writer) {
	m.Bind("putint", 1, func(args []int32) int32 {
		fmt.Fprintln(w, args[0])
		return 0
	})
	m.Bind("putchar", 1, func(args []int32) int32 {
		w.Write([]byte{byte(args[0])})
		return args[0]
	})
}

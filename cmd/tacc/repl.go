package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/config"
	"github.com/tinyrange/tacc/internal/driver"
	"github.com/tinyrange/tacc/internal/lexer"
)

const (
	promptMain = "tacc> "
	promptCont = "  ... "
	replHelp   = `enter declarations; they accumulate into one unit.
  :ir    show three-address code
  :asm   show assembly
  :ast   show the syntax tree
  :run   run main
  :reset forget all declarations
  :quit  leave`
)

// session is the unit built up at the prompt.
type session struct {
	cfg   config.Config
	decls []string
	out   io.Writer
}

func (s *session) source(extra string) string {
	return strings.Join(append(append([]string(nil), s.decls...), extra), "\n")
}

func (s *session) compile() (*driver.Result, error) {
	return driver.Compile("<repl>", s.source(""), driver.Options{Jobs: s.cfg.Jobs})
}

// add keeps decl only if the unit still compiles with it.
func (s *session) add(decl string) error {
	if _, err := driver.Compile("<repl>", s.source(decl), driver.Options{Jobs: s.cfg.Jobs}); err != nil {
		return err
	}
	s.decls = append(s.decls, decl)
	return nil
}

// command runs a :command and reports whether the REPL should exit.
func (s *session) command(cmd string) bool {
	switch cmd {
	case ":quit", ":q":
		return true
	case ":reset":
		s.decls = nil
		return false
	case ":help":
		fmt.Fprintln(s.out, replHelp)
		return false
	case ":ir", ":asm", ":ast", ":run":
	default:
		fmt.Fprintf(s.out, "unknown command %s. Type :help for a list.\n", cmd)
		return false
	}
	res, err := s.compile()
	if err != nil {
		fmt.Fprintln(s.out, err)
		return false
	}
	switch cmd {
	case ":ir":
		fmt.Fprint(s.out, res.Code.String())
	case ":asm":
		fmt.Fprint(s.out, res.Asm)
	case ":ast":
		fmt.Fprint(s.out, ast.Sprint(res.Program))
	case ":run":
		if res.Program.Func("main") == nil {
			fmt.Fprintln(s.out, "no main function")
			return false
		}
		v, err := execute(res.Asm, s.cfg, nil, s.out)
		if err != nil {
			fmt.Fprintf(s.out, "run error: %v\n", err)
			return false
		}
		fmt.Fprintf(s.out, "=> %d\n", v)
	}
	return false
}

func cmdRepl(_ []string) int {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}
	fmt.Println("tacc repl. Type :help for commands.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if cfg.History != "" {
		if f, err := os.Open(cfg.History); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(cfg.History); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	s := &session{cfg: cfg, out: os.Stdout}
	for {
		input, ok := readUnit(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if strings.HasPrefix(input, ":") {
			if s.command(strings.ToLower(input)) {
				return 0
			}
			continue
		}
		if err := s.add(input); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// readUnit keeps prompting until braces and parentheses balance.
func readUnit(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// depth is the count of unclosed { and ( in src.
func depth(src string) int {
	n := 0
	for _, tok := range lexer.All(src) {
		switch tok.Type {
		case lexer.LBRACE, lexer.LPAREN:
			n++
		case lexer.RBRACE, lexer.RPAREN:
			n--
		}
	}
	return n
}

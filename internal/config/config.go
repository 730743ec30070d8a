// Package config holds compiler settings. Defaults come from TACC_*
// environment variables; command-line flags override them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"
)

const historyFile = ".tacc_history"

// Output forms selectable with -emit.
const (
	EmitAsm = "asm"
	EmitIR  = "ir"
	EmitAST = "ast"
)

type Config struct {
	Emit     string // one of EmitAsm, EmitIR, EmitAST
	Jobs     int    // functions emitted concurrently
	Trace    bool   // log each compiler phase
	MaxSteps int    // simulator instruction budget for -run
	History  string // REPL history file, empty disables it
}

func Default() Config {
	c := Config{Emit: EmitAsm, Jobs: 1, MaxSteps: 10_000_000}
	if home, err := os.UserHomeDir(); err == nil {
		c.History = filepath.Join(home, historyFile)
	}
	return c
}

// FromEnv returns Default overridden by TACC_EMIT, TACC_JOBS, TACC_TRACE,
// TACC_MAX_STEPS and TACC_HISTORY. An empty TACC_HISTORY disables the REPL
// history file.
func FromEnv() Config {
	// env caches the environment on first use
	env.Load()
	c := Default()
	c.Emit = env.Str("TACC_EMIT", c.Emit)
	c.Jobs = env.Int("TACC_JOBS", c.Jobs)
	c.Trace = env.Bool("TACC_TRACE")
	c.MaxSteps = env.Int("TACC_MAX_STEPS", c.MaxSteps)
	if h, ok := os.LookupEnv("TACC_HISTORY"); ok {
		c.History = h
	}
	return c
}

func (c Config) Validate() error {
	switch c.Emit {
	case EmitAsm, EmitIR, EmitAST:
	default:
		return fmt.Errorf("unknown emit form %q (want asm, ir or ast)", c.Emit)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("max steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}

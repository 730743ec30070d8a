package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyrange/tacc/internal/config"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.tc")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCmdCompileEmitForms(t *testing.T) {
	src := writeSource(t, `int main() { return 1 + 2; }`)
	tests := []struct {
		emit string
		want string
	}{
		{"asm", ".globl main\nmain:\n  pushq %rbp\n"},
		{"ir", "main:\n    t0 = 1\n    t1 = 2\n    t2 = t0 + t1\n    return t2\n"},
		{"ast", "PROGRAM\n  FUNC int main\n"},
	}
	for _, tt := range tests {
		out := filepath.Join(t.TempDir(), "out")
		if code := cmdCompile([]string{"-emit", tt.emit, "-o", out, src}); code != 0 {
			t.Fatalf("-emit %s: exit %d", tt.emit, code)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), tt.want) {
			t.Errorf("-emit %s: got\n%s\nwant it to contain\n%s", tt.emit, data, tt.want)
		}
	}
}

func TestCmdCompileRun(t *testing.T) {
	src := writeSource(t, `int main() { int s = 0; int i = 0; while (i < 4) { s = s + i; i = i + 1; } return s; }`)
	if code := cmdCompile([]string{"-run", src}); code != 6 {
		t.Errorf("-run: exit %d, want 6", code)
	}
}

func TestCmdCompileFailures(t *testing.T) {
	bad := writeSource(t, `int main() { return undefined; }`)
	if code := cmdCompile([]string{bad}); code != 1 {
		t.Errorf("check failure: exit %d, want 1", code)
	}
	if code := cmdCompile([]string{"-emit", "obj", bad}); code != 2 {
		t.Errorf("bad -emit: exit %d, want 2", code)
	}
	if code := cmdCompile(nil); code != 2 {
		t.Errorf("no input: exit %d, want 2", code)
	}
	if code := cmdCompile([]string{filepath.Join(t.TempDir(), "missing.tc")}); code != 1 {
		t.Errorf("missing file: exit %d, want 1", code)
	}
	spin := writeSource(t, `int main() { while (true) {} return 0; }`)
	if code := cmdCompile([]string{"-run", "-max-steps", "1000", spin}); code != 1 {
		t.Errorf("step limit: exit %d, want 1", code)
	}
}

func TestExecuteRuntime(t *testing.T) {
	var out bytes.Buffer
	asm := `
.section .text
.globl main
main:
  pushq %rbp
  movq %rsp, %rbp
  movl $72, %eax
  pushq %rax
  call putchar
  addq $8, %rsp
  movl $-5, %eax
  pushq %rax
  call putint
  addq $8, %rsp
  movl $3, %eax
  movq %rbp, %rsp
  popq %rbp
  ret
`
	v, err := execute(asm, config.Default(), nil, &out)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 || out.String() != "H-5\n" {
		t.Errorf("got %d with output %q", v, out.String())
	}
}

func TestSession(t *testing.T) {
	var out bytes.Buffer
	s := &session{cfg: config.Default(), out: &out}
	if err := s.add(`extern int putint(int x);`); err != nil {
		t.Fatal(err)
	}
	if err := s.add(`int sq(int x) { return x * x; }`); err != nil {
		t.Fatal(err)
	}
	if err := s.add(`int main() { return nope(); }`); err == nil {
		t.Errorf("bad declaration accepted")
	}
	if len(s.decls) != 2 {
		t.Errorf("rejected declaration was kept: %v", s.decls)
	}
	if s.command(":run") {
		t.Errorf(":run asked to quit")
	}
	if !strings.Contains(out.String(), "no main function") {
		t.Errorf(":run without main: %q", out.String())
	}
	if err := s.add("int main() {\n  putint(sq(4));\n  return sq(3);\n}"); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	s.command(":run")
	if got := out.String(); got != "16\n=> 9\n" {
		t.Errorf(":run output %q", got)
	}
	out.Reset()
	s.command(":ir")
	if !strings.Contains(out.String(), "t") || !strings.Contains(out.String(), "call sq, 1") {
		t.Errorf(":ir output %q", out.String())
	}
	out.Reset()
	s.command(":bogus")
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("unknown command: %q", out.String())
	}
	s.command(":reset")
	if len(s.decls) != 0 {
		t.Errorf(":reset kept %d declarations", len(s.decls))
	}
	if !s.command(":quit") {
		t.Errorf(":quit did not quit")
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"int main() {", 1},
		{"int main() { return f(1); }", 0},
		{"while (x) { if (y) {", 2},
		{"// { not counted\n}", -1},
	}
	for _, tt := range tests {
		if got := depth(tt.src); got != tt.want {
			t.Errorf("depth(%q) = %d, want %d", tt.src, got, tt.want)
		}
	}
}

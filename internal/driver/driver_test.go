package driver

import (
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/tinyrange/tacc/internal/x86sim"
)

func build(t *testing.T, src string) *x86sim.Machine {
	t.Helper()
	res, err := Compile("test.tc", src, Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	m, err := x86sim.Load(res.Asm)
	if err != nil {
		t.Fatalf("Load failed: %v\n%s", err, res.Asm)
	}
	return m
}

func run(t *testing.T, m *x86sim.Machine) int32 {
	t.Helper()
	v, err := m.Call("main")
	if err != nil {
		t.Fatalf("main failed: %v", err)
	}
	return v
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int32
	}{
		{"add", `int add(int a, int b) { return a + b; } int main() { return add(2, 3); }`, 5},
		{"argument order", `int sub(int a, int b) { return a - b; } int main() { return sub(10, 3); }`, 7},
		{"loop", `int main() { int s = 0; int i = 1; while (i < 6) { s = s + i; i = i + 1; } return s; }`, 15},
		{"if without else", `
			int f(int x) { int r = 0; if (x > 0) { r = 1; } return r + 10; }
			int main() { return f(5) * 100 + f(-5); }`, 1110},
		{"else if chain", `
			int sign(int x) { if (x < 0) return -1; else if (x == 0) return 0; else return 1; }
			int main() { return sign(-9) * 100 + sign(0) * 10 + sign(4); }`, -99},
		{"recursion", `int fact(int n) { if (n <= 1) { return 1; } return n * fact(n - 1); } int main() { return fact(5); }`, 120},
		{"division", `int main() { return (-7 / 2) * 10 + (-7 % 2); }`, -31},
		{"logic", `int main() { bool t = true; bool f = false; return (t && !f) + (f || f) * 2 + (1 != 2) * 4 + (3 >= 3) * 8; }`, 13},
		{"void function", `void set() { g = 9; return; } int main() { set(); return g; }`, 9},
		{"three args", `int mix(int a, int b, int c) { return a * 100 + b * 10 + c; } int main() { return mix(1, 2, 3); }`, 123},
		{"nested calls", `int inc(int x) { return x + 1; } int main() { return inc(inc(inc(0))); }`, 3},
		{"int min literal", `int main() { return -2147483648; }`, math.MinInt32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, build(t, tt.src)); got != tt.want {
				t.Errorf("main() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGlobalPersistence(t *testing.T) {
	m := build(t, `void set() { g = 42; } int get() { return g; } int main() { set(); return get(); }`)
	if got := run(t, m); got != 42 {
		t.Errorf("main() = %d, want 42", got)
	}
	if g, ok := m.Global("g"); !ok || g != 42 {
		t.Errorf("global g = %d, %v", g, ok)
	}
	if got, err := m.Call("get"); err != nil || got != 42 {
		t.Errorf("value did not persist between calls: %d, %v", got, err)
	}
}

func traced(t *testing.T, src string) (int32, []int32) {
	t.Helper()
	m := build(t, src)
	var order []int32
	m.Bind("tick", 1, func(args []int32) int32 {
		order = append(order, args[0])
		return args[0]
	})
	return run(t, m), order
}

func TestEvaluationOrder(t *testing.T) {
	got, order := traced(t, `extern int tick(int id); int main() { return tick(1) * 10 + tick(2); }`)
	if got != 12 {
		t.Errorf("main() = %d, want 12", got)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("side effects ran in order %v, want [1 2]", order)
	}

	_, order = traced(t, `extern int tick(int id); int pair(int a, int b) { return a; } int main() { return pair(tick(3), tick(4)); }`)
	if len(order) != 2 || order[0] != 3 || order[1] != 4 {
		t.Errorf("arguments evaluated in order %v, want [3 4]", order)
	}
}

func TestEagerBooleanOperands(t *testing.T) {
	tests := []struct {
		expr  string
		want  int32
		calls int
	}{
		{"tick(0) && tick(1)", 0, 2},
		{"tick(1) && tick(5)", 1, 2},
		{"tick(1) || tick(0)", 1, 2},
		{"tick(0) || tick(0)", 0, 2},
	}
	for _, tt := range tests {
		got, order := traced(t, `extern int tick(int id); int main() { return `+tt.expr+`; }`)
		if got != tt.want {
			t.Errorf("%s = %d, want %d", tt.expr, got, tt.want)
		}
		if len(order) != tt.calls {
			t.Errorf("%s: %d side effects, want %d", tt.expr, len(order), tt.calls)
		}
	}
}

func TestPhaseErrors(t *testing.T) {
	tests := []struct {
		src   string
		phase Phase
	}{
		{`int main( { return 0; }`, PhaseParse},
		{`int main() { return x; }`, PhaseCheck},
		{`void set() { g = 5; } int main() { if (true) { int g = 1; } return g; }`, PhaseCheck},
	}
	for _, tt := range tests {
		res, err := Compile("bad.tc", tt.src, Options{})
		if res != nil {
			t.Errorf("%s: got a result alongside the error", tt.src)
		}
		var perr *Error
		if !errors.As(err, &perr) {
			t.Fatalf("%s: got %v, want *Error", tt.src, err)
		}
		if perr.Phase != tt.phase || !strings.HasPrefix(err.Error(), string(tt.phase)+" error: ") {
			t.Errorf("%s: got %q in phase %s, want %s", tt.src, err, perr.Phase, tt.phase)
		}
	}
}

func TestJobsDoNotChangeOutput(t *testing.T) {
	src := `
		int a(int x) { if (x && 1) { return x; } return 0; }
		int b(int x) { while (x > 0 || x < -10) { x = x - 1; } return x; }
		int c(int x) { return !x && x || x; }
		int main() { return a(1) + b(3) + c(0); }
	`
	seq, err := Compile("jobs.tc", src, Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	par, err := Compile("jobs.tc", src, Options{Jobs: 8})
	if err != nil {
		t.Fatal(err)
	}
	if seq.Asm != par.Asm {
		t.Errorf("parallel emission differs:\n%s\n---\n%s", seq.Asm, par.Asm)
	}
}

// TestHostAssembler links the output with the system toolchain and checks
// the process exit status.
func TestHostAssembler(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("needs linux/amd64")
	}
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("cc not found")
	}
	res, err := Compile("host.tc", `
		int add(int a, int b) { return a + b; }
		void set() { g = 20; }
		int main() { int s = 0; int i = 1; while (i < 6) { s = s + i; i = i + 1; } set(); return add(s, g) + 7; }
	`, Options{})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "prog.s")
	bin := filepath.Join(dir, "prog")
	if err := os.WriteFile(asmPath, []byte(res.Asm), 0644); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command(cc, "-o", bin, asmPath).CombinedOutput(); err != nil {
		t.Fatalf("cc failed: %v\n%s", err, out)
	}
	err = exec.Command(bin).Run()
	var exit *exec.ExitError
	if !errors.As(err, &exit) {
		t.Fatalf("expected a non-zero exit status, got %v", err)
	}
	if code := exit.ExitCode(); code != 42 {
		t.Errorf("exit status %d, want 42", code)
	}
}

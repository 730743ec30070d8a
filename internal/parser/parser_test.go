package parser

import (
	"strings"
	"testing"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/types"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := ParseFile("test.tc", src)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	return prog
}

func TestParseFunctions(t *testing.T) {
	prog := mustParse(t, `
		extern int putint(int x);
		int add(int a, int b) { return a + b; }
		void noop(void) { return; }
	`)
	if len(prog.Decls) != 3 {
		t.Fatalf("got %d decls, want 3", len(prog.Decls))
	}
	ext, ok := prog.Decls[0].(*ast.ExternFuncDecl)
	if !ok || ext.Name != "putint" || len(ext.Params) != 1 || ext.Ret != types.Int {
		t.Errorf("decl 0: got %#v", prog.Decls[0])
	}
	add, ok := prog.Decls[1].(*ast.FuncDecl)
	if !ok || add.Name != "add" || len(add.Params) != 2 {
		t.Fatalf("decl 1: got %#v", prog.Decls[1])
	}
	if add.Params[0].Name != "a" || add.Params[1].Name != "b" {
		t.Errorf("add params: got %s, %s", add.Params[0].Name, add.Params[1].Name)
	}
	ret, ok := add.Body.Stmts[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("add body: got %T", add.Body.Stmts[0])
	}
	if bin, ok := ret.Value.(*ast.BinaryExpr); !ok || bin.Op != "+" {
		t.Errorf("return value: got %#v", ret.Value)
	}
	noop := prog.Decls[2].(*ast.FuncDecl)
	if noop.Ret != types.Void || len(noop.Params) != 0 {
		t.Errorf("noop: got ret %s with %d params", noop.Ret, len(noop.Params))
	}
	if r := noop.Body.Stmts[0].(*ast.ReturnStmt); r.Value != nil {
		t.Errorf("bare return: got value %#v", r.Value)
	}
}

func TestParseDeclarations(t *testing.T) {
	prog := mustParse(t, `int main() { int x; bool b; int y = 3; y = x; }`)
	body := prog.Decls[0].(*ast.FuncDecl).Body.Stmts
	tests := []struct {
		name string
		typ  types.Kind
		init string
	}{
		{"x", types.Int, "INT 0"},
		{"b", types.Bool, "BOOL false"},
		{"y", types.Int, "INT 3"},
		{"y", types.Void, "ID x"},
	}
	for i, tt := range tests {
		s, ok := body[i].(*ast.AssignStmt)
		if !ok {
			t.Fatalf("stmt %d: got %T", i, body[i])
		}
		if s.Left.Name != tt.name || s.Type != tt.typ {
			t.Errorf("stmt %d: got %s %s, want %s %s", i, s.Type, s.Left.Name, tt.typ, tt.name)
		}
		if got := strings.TrimSpace(ast.Sprint(s.Value)); got != tt.init {
			t.Errorf("stmt %d value: got %q, want %q", i, got, tt.init)
		}
	}
	if body[3].(*ast.AssignStmt).IsDecl() {
		t.Errorf("plain assignment reported as declaration")
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"a < b == c > d", "((a < b) == (c > d))"},
		{"a || b && c", "(a || (b && c))"},
		{"!a && -b", "(!a && -b)"},
		{"(1 + 2) % 3", "((1 + 2) % 3)"},
		{"f(1, g(x)) != 0", "(f(1, g(x)) != 0)"},
		{"a <= b || a >= c", "((a <= b) || (a >= c))"},
		{"-2147483648", "-2147483648"},
		{"2147483647 - -2147483648", "(2147483647 - -2147483648)"},
	}
	for _, tt := range tests {
		prog := mustParse(t, "int main() { return "+tt.src+"; }")
		ret := prog.Decls[0].(*ast.FuncDecl).Body.Stmts[0].(*ast.ReturnStmt)
		if got := render(ret.Value); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.src, got, tt.want)
		}
	}
}

func render(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.IntLit:
		return strings.TrimPrefix(strings.TrimSpace(ast.Sprint(e)), "INT ")
	case *ast.Ident:
		return e.Name
	case *ast.BinaryExpr:
		return "(" + render(e.Left) + " " + e.Op + " " + render(e.Right) + ")"
	case *ast.UnaryExpr:
		return e.Op + render(e.X)
	case *ast.CallExpr:
		var args []string
		for _, a := range e.Args {
			args = append(args, render(a))
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	}
	return "?"
}

func TestParseControlFlow(t *testing.T) {
	prog := mustParse(t, `
		int main() {
			int i = 0;
			while (i < 3) i = i + 1;
			if (i == 3) { i = 0; }
			if (i) i = 1; else if (!i) i = 2; else { i = 3; }
			tick(i);
			return i;
		}
	`)
	body := prog.Decls[0].(*ast.FuncDecl).Body.Stmts
	w := body[1].(*ast.WhileStmt)
	if len(w.Body.Stmts) != 1 {
		t.Errorf("while body: got %d stmts, want 1", len(w.Body.Stmts))
	}
	if1 := body[2].(*ast.IfStmt)
	if if1.Then == nil || if1.Else != nil {
		t.Errorf("if without else: then=%v else=%v", if1.Then, if1.Else)
	}
	if2 := body[3].(*ast.IfStmt)
	if if2.Else == nil || len(if2.Else.Stmts) != 1 {
		t.Fatalf("else-if: got else %#v", if2.Else)
	}
	nested, ok := if2.Else.Stmts[0].(*ast.IfStmt)
	if !ok || nested.Else == nil {
		t.Errorf("else-if chain: got %#v", if2.Else.Stmts[0])
	}
	if call, ok := body[4].(*ast.CallExpr); !ok || call.Name != "tick" || len(call.Args) != 1 {
		t.Errorf("call statement: got %#v", body[4])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing semicolon", "int main() { return 1 }", "test.tc:1:23: expected ;"},
		{"missing type", "main() {}", "expected type"},
		{"void variable", "int main() { void x; }", "variable cannot have type void"},
		{"void param", "int f(void x) { return 0; }", "parameter cannot have type void"},
		{"bad statement", "int main() { 1 + 2; }", "unexpected \"1\" at start of statement"},
		{"bad expression", "int main() { return +; }", "in expression"},
		{"unterminated block", "int main() { return 1;", "end of file"},
		{"huge literal", "int main() { return 99999999999; }", "out of range"},
		{"literal past int max", "int main() { return 2147483648; }", "out of range"},
		{"literal past int min", "int main() { return -2147483649; }", "out of range"},
		{"extern with body", "extern int f() { return 1; }", "expected ;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile("test.tc", tt.src)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

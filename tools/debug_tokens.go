// debug_tokens prints the token stream of a source file.
//
//	go run tools/debug_tokens.go prog.tc
package main

import (
	"fmt"
	"os"

	lx "github.com/tinyrange/tacc/internal/lexer"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: debug_tokens <file>")
		os.Exit(2)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		os.Exit(1)
	}
	for _, t := range lx.All(string(data)) {
		fmt.Printf("%-8v %q at %d:%d\n", t.Type, t.Lex, t.Line, t.Col)
	}
}

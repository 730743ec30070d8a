package lexer

import "fmt"

type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL

	// Identifiers + literals
	IDENT
	INT

	// Keywords
	KW_INT
	KW_BOOL
	KW_VOID
	KW_EXTERN
	KW_RETURN
	KW_IF
	KW_ELSE
	KW_WHILE
	KW_TRUE
	KW_FALSE

	// Symbols
	LPAREN // (
	RPAREN // )
	LBRACE // {
	RBRACE // }
	SEMI   // ;
	COMMA  // ,
	ASSIGN // =

	// Arithmetic
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %

	// Logical
	ANDAND // &&
	OROR   // ||
	BANG   // !

	// Comparison
	EQEQ // ==
	NEQ  // !=
	LT   // <
	LE   // <=
	GT   // >
	GE   // >=
)

var tokenNames = map[TokenType]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", IDENT: "identifier", INT: "integer",
	KW_INT: "int", KW_BOOL: "bool", KW_VOID: "void", KW_EXTERN: "extern",
	KW_RETURN: "return", KW_IF: "if", KW_ELSE: "else", KW_WHILE: "while",
	KW_TRUE: "true", KW_FALSE: "false",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}", SEMI: ";", COMMA: ",", ASSIGN: "=",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	ANDAND: "&&", OROR: "||", BANG: "!",
	EQEQ: "==", NEQ: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var keywords = map[string]TokenType{
	"int":    KW_INT,
	"bool":   KW_BOOL,
	"void":   KW_VOID,
	"extern": KW_EXTERN,
	"return": KW_RETURN,
	"if":     KW_IF,
	"else":   KW_ELSE,
	"while":  KW_WHILE,
	"true":   KW_TRUE,
	"false":  KW_FALSE,
}

type Token struct {
	Type TokenType
	Lex  string
	Line int
	Col  int
}

func (t Token) Is(op TokenType) bool { return t.Type == op }

// IsType reports whether t starts a type name.
func (t Token) IsType() bool {
	return t.Type == KW_INT || t.Type == KW_BOOL || t.Type == KW_VOID
}

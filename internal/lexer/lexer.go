package lexer

import (
	"unicode"
)

type Lexer struct {
	src  []rune
	i    int
	ch   rune
	line int
	col  int
}

func New(src string) *Lexer {
	l := &Lexer{src: []rune(src), line: 1}
	l.read()
	return l
}

func (l *Lexer) read() {
	if l.i >= len(l.src) {
		l.ch = 0
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.ch = l.src[l.i]
	l.i++
	l.col++
}

func (l *Lexer) peek() rune {
	if l.i >= len(l.src) {
		return 0
	}
	return l.src[l.i]
}

// Next returns the next token; after the end of input it keeps returning EOF.
func (l *Lexer) Next() Token {
	// skip spaces and comments
	for {
		for unicode.IsSpace(l.ch) {
			l.read()
		}
		if l.ch == '/' && l.peek() == '/' {
			for l.ch != 0 && l.ch != '\n' {
				l.read()
			}
			continue
		}
		if l.ch == '/' && l.peek() == '*' {
			l.read()
			l.read()
			for l.ch != 0 {
				if l.ch == '*' && l.peek() == '/' {
					l.read()
					l.read()
					break
				}
				l.read()
			}
			continue
		}
		break
	}
	tok := Token{Line: l.line, Col: l.col}
	switch ch := l.ch; ch {
	case 0:
		tok.Type = EOF
	case '(':
		tok.Type, tok.Lex = LPAREN, string(ch)
		l.read()
	case ')':
		tok.Type, tok.Lex = RPAREN, string(ch)
		l.read()
	case '{':
		tok.Type, tok.Lex = LBRACE, string(ch)
		l.read()
	case '}':
		tok.Type, tok.Lex = RBRACE, string(ch)
		l.read()
	case ';':
		tok.Type, tok.Lex = SEMI, string(ch)
		l.read()
	case ',':
		tok.Type, tok.Lex = COMMA, string(ch)
		l.read()
	case '+':
		tok.Type, tok.Lex = PLUS, string(ch)
		l.read()
	case '-':
		tok.Type, tok.Lex = MINUS, string(ch)
		l.read()
	case '*':
		tok.Type, tok.Lex = STAR, string(ch)
		l.read()
	case '/':
		tok.Type, tok.Lex = SLASH, string(ch)
		l.read()
	case '%':
		tok.Type, tok.Lex = PERCENT, string(ch)
		l.read()
	case '=':
		tok.Type, tok.Lex = l.pair('=', ASSIGN, EQEQ)
	case '!':
		tok.Type, tok.Lex = l.pair('=', BANG, NEQ)
	case '<':
		tok.Type, tok.Lex = l.pair('=', LT, LE)
	case '>':
		tok.Type, tok.Lex = l.pair('=', GT, GE)
	case '&':
		tok.Type, tok.Lex = l.pair('&', ILLEGAL, ANDAND)
	case '|':
		tok.Type, tok.Lex = l.pair('|', ILLEGAL, OROR)
	default:
		if unicode.IsLetter(ch) || ch == '_' {
			ident := []rune{ch}
			l.read()
			for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' {
				ident = append(ident, l.ch)
				l.read()
			}
			tok.Lex = string(ident)
			if kw, ok := keywords[tok.Lex]; ok {
				tok.Type = kw
			} else {
				tok.Type = IDENT
			}
		} else if unicode.IsDigit(ch) {
			num := []rune{ch}
			l.read()
			for unicode.IsDigit(l.ch) {
				num = append(num, l.ch)
				l.read()
			}
			tok.Type, tok.Lex = INT, string(num)
		} else {
			tok.Type, tok.Lex = ILLEGAL, string(ch)
			l.read()
		}
	}
	return tok
}

// pair scans a one- or two-character operator: single when the next rune
// is not second, double when it is.
func (l *Lexer) pair(second rune, single, double TokenType) (TokenType, string) {
	first := l.ch
	l.read()
	if l.ch == second {
		l.read()
		return double, string([]rune{first, second})
	}
	return single, string(first)
}

// All scans src to the end and returns every token including the final EOF.
func All(src string) []Token {
	l := New(src)
	var toks []Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Type == EOF {
			return toks
		}
	}
}

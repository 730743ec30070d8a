package parser

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tinyrange/tacc/internal/ast"
	"github.com/tinyrange/tacc/internal/lexer"
	"github.com/tinyrange/tacc/internal/types"
)

type Parser struct {
	filename string
	lx       *lexer.Lexer
	tok      lexer.Token
	ahead    []lexer.Token
}

// ParseFile parses a whole translation unit.
func ParseFile(filename, src string) (*ast.Program, error) {
	p := &Parser{filename: filename, lx: lexer.New(src)}
	p.next()
	prog := &ast.Program{}
	for p.tok.Type != lexer.EOF {
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, d)
	}
	return prog, nil
}

func (p *Parser) next() {
	if len(p.ahead) > 0 {
		p.tok = p.ahead[0]
		p.ahead = p.ahead[1:]
		return
	}
	p.tok = p.lx.Next()
}

// peek returns the token after the current one without consuming it.
func (p *Parser) peek() lexer.Token {
	if len(p.ahead) == 0 {
		p.ahead = append(p.ahead, p.lx.Next())
	}
	return p.ahead[0]
}

func (p *Parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.filename != "" {
		return fmt.Errorf("%s:%d:%d: %s", p.filename, p.tok.Line, p.tok.Col, msg)
	}
	return fmt.Errorf("%d:%d: %s", p.tok.Line, p.tok.Col, msg)
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.tok.Type != tt {
		return lexer.Token{}, p.errorf("expected %v, got %v", tt, p.describe())
	}
	t := p.tok
	p.next()
	return t, nil
}

func (p *Parser) describe() string {
	if p.tok.Type == lexer.EOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", p.tok.Lex)
}

func (p *Parser) parseType() (types.Kind, error) {
	if !p.tok.IsType() {
		return types.Void, p.errorf("expected type, got %v", p.describe())
	}
	k, _ := types.FromKeyword(p.tok.Lex)
	p.next()
	return k, nil
}

// decl = ["extern"] type IDENT "(" params ")" (";" | block)
func (p *Parser) parseDecl() (ast.Decl, error) {
	extern := false
	if p.tok.Type == lexer.KW_EXTERN {
		extern = true
		p.next()
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if extern {
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.ExternFuncDecl{Name: nameTok.Lex, Ret: ret, Params: params}, nil
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: nameTok.Lex, Ret: ret, Params: params, Body: body}, nil
}

func (p *Parser) parseParams() ([]*ast.Param, error) {
	var params []*ast.Param
	if p.tok.Type == lexer.RPAREN {
		return params, nil
	}
	// "(void)" is an empty list
	if p.tok.Type == lexer.KW_VOID && p.peek().Type == lexer.RPAREN {
		p.next()
		return params, nil
	}
	for {
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if !typ.IsValue() {
			return nil, p.errorf("parameter cannot have type %s", typ)
		}
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Param{Name: nameTok.Lex, Type: typ})
		if p.tok.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	return params, nil
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	stmts := []ast.Stmt{}
	for p.tok.Type != lexer.RBRACE && p.tok.Type != lexer.EOF {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.BlockStmt{Stmts: stmts}, nil
}

// parseBranch parses the body of an if/else/while, wrapping a single
// statement into a block.
func (p *Parser) parseBranch() (*ast.BlockStmt, error) {
	if p.tok.Type == lexer.LBRACE {
		return p.parseBlock()
	}
	s, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.BlockStmt{Stmts: []ast.Stmt{s}}, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.tok.Type {
	case lexer.KW_RETURN:
		p.next()
		if p.tok.Type == lexer.SEMI {
			p.next()
			return &ast.ReturnStmt{}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Value: e}, nil
	case lexer.KW_INT, lexer.KW_BOOL:
		// declaration: int x; | int x = expr;
		typ, _ := p.parseType()
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		var init ast.Expr
		if p.tok.Type == lexer.ASSIGN {
			p.next()
			init, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		} else if typ == types.Bool {
			init = &ast.BoolLit{Value: false}
		} else {
			init = &ast.IntLit{Value: 0}
		}
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Left: &ast.Ident{Name: nameTok.Lex}, Value: init, Type: typ}, nil
	case lexer.KW_VOID:
		return nil, p.errorf("variable cannot have type void")
	case lexer.KW_IF:
		return p.parseIf()
	case lexer.KW_WHILE:
		p.next()
		cond, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBranch()
		if err != nil {
			return nil, err
		}
		return &ast.WhileStmt{Cond: cond, Body: body}, nil
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.IDENT:
		switch p.peek().Type {
		case lexer.ASSIGN:
			id := p.tok
			p.next()
			p.next()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.SEMI); err != nil {
				return nil, err
			}
			return &ast.AssignStmt{Left: &ast.Ident{Name: id.Lex}, Value: v}, nil
		case lexer.LPAREN:
			call, err := p.parseCall()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.SEMI); err != nil {
				return nil, err
			}
			return call, nil
		}
	}
	return nil, p.errorf("unexpected %v at start of statement", p.describe())
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	p.next()
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBranch()
	if err != nil {
		return nil, err
	}
	s := &ast.IfStmt{Cond: cond, Then: then}
	if p.tok.Type == lexer.KW_ELSE {
		p.next()
		if s.Else, err = p.parseBranch(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *Parser) parseCond() (ast.Expr, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return e, nil
}

// Binary operator levels, lowest precedence first.
var binaryLevels = [][]lexer.TokenType{
	{lexer.OROR},
	{lexer.ANDAND},
	{lexer.EQEQ, lexer.NEQ},
	{lexer.LT, lexer.LE, lexer.GT, lexer.GE},
	{lexer.PLUS, lexer.MINUS},
	{lexer.STAR, lexer.SLASH, lexer.PERCENT},
}

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseBinary(0) }

func (p *Parser) parseBinary(level int) (ast.Expr, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for p.atAny(binaryLevels[level]) {
		op := p.tok.Lex
		p.next()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) atAny(tts []lexer.TokenType) bool {
	for _, tt := range tts {
		if p.tok.Type == tt {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.tok.Type == lexer.BANG || p.tok.Type == lexer.MINUS {
		op := p.tok.Lex
		p.next()
		if op == "-" && p.tok.Type == lexer.INT {
			// -2147483648 is representable though its magnitude is not
			lit, err := p.parseIntLit(1 << 31)
			if err != nil {
				return nil, err
			}
			return &ast.UnaryExpr{Op: op, X: lit}, nil
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.tok.Type {
	case lexer.IDENT:
		if p.peek().Type == lexer.LPAREN {
			return p.parseCall()
		}
		id := &ast.Ident{Name: p.tok.Lex}
		p.next()
		return id, nil
	case lexer.INT:
		return p.parseIntLit(math.MaxInt32)
	case lexer.KW_TRUE, lexer.KW_FALSE:
		lit := &ast.BoolLit{Value: p.tok.Type == lexer.KW_TRUE}
		p.next()
		return lit, nil
	case lexer.LPAREN:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errorf("unexpected %v in expression", p.describe())
	}
}

func (p *Parser) parseIntLit(limit int64) (*ast.IntLit, error) {
	v, err := strconv.ParseInt(p.tok.Lex, 10, 64)
	if err != nil || v > limit {
		return nil, p.errorf("integer literal %s out of range", p.tok.Lex)
	}
	p.next()
	return &ast.IntLit{Value: v}, nil
}

func (p *Parser) parseCall() (*ast.CallExpr, error) {
	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	call := &ast.CallExpr{Name: nameTok.Lex}
	if p.tok.Type != lexer.RPAREN {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.tok.Type != lexer.COMMA {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

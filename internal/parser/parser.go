// Package parser implements SpiderScript's recursive-descent parser (C4):
// source tokens to an ast.Program. Parse errors recover at the top-level
// item boundary (spec §4.2, §7): the failing item is dropped and parsing
// continues with the next one.
package parser

import (
	"github.com/spiderscript/spiderscript/internal/ast"
	scripterrors "github.com/spiderscript/spiderscript/internal/errors"
	"github.com/spiderscript/spiderscript/internal/lexer"
)

// MaxIncludeDepth bounds @include nesting (spec §4.2, B2).
const MaxIncludeDepth = 5

// IncludeLoader resolves an @include path to source text. The host
// embeds file-system access behind this interface; the parser itself
// never touches the filesystem (spec §1: file I/O is a peripheral,
// out-of-scope concern).
type IncludeLoader interface {
	Load(path string) (string, error)
}

// Parser turns a token stream (already including any @include expansion
// performed by Parse, see below) into an ast.Program.
type Parser struct {
	toks   []lexer.Token
	pos    int
	loader IncludeLoader
	Errors []*scripterrors.ScriptError
}

// Parse lexes and parses a top-level source file, following @include
// directives via loader (nil disables includes — any @include then fails
// as an unresolvable path). Parse errors are collected in the returned
// error slice and do not stop parsing of subsequent top-level items.
func Parse(file, source string, loader IncludeLoader) (*ast.Program, []*scripterrors.ScriptError) {
	p := &Parser{loader: loader}
	toks, err := p.expand(file, source, 0)
	if err != nil {
		p.Errors = append(p.Errors, toScriptError(err))
		return &ast.Program{}, p.Errors
	}
	p.toks = toks
	return p.parseProgram(), p.Errors
}

// expand lexes source and splices in @include'd token streams in place,
// enforcing MaxIncludeDepth (spec §4.2).
func (p *Parser) expand(file, source string, depth int) ([]lexer.Token, error) {
	if depth > MaxIncludeDepth {
		return nil, &lexer.LexError{File: file, Line: 0, Message: "include depth exceeded"}
	}
	toks, err := lexer.Lex(file, source)
	if err != nil {
		return nil, err
	}
	var out []lexer.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Type == lexer.TokAt && i+2 < len(toks) &&
			toks[i+1].Type == lexer.TokInclude && toks[i+2].Type == lexer.TokString {
			path := toks[i+2].Lexeme
			if p.loader == nil {
				return nil, &lexer.LexError{File: file, Line: t.Line, Message: "includes are not supported by this host"}
			}
			src, lerr := p.loader.Load(path)
			if lerr != nil {
				return nil, &lexer.LexError{File: file, Line: t.Line, Message: "cannot load include " + path + ": " + lerr.Error()}
			}
			sub, serr := p.expand(path, src, depth+1)
			if serr != nil {
				return nil, serr
			}
			// Drop the sub-stream's trailing EOF; ours follows at the end.
			if len(sub) > 0 && sub[len(sub)-1].Type == lexer.TokEOF {
				sub = sub[:len(sub)-1]
			}
			out = append(out, sub...)
			i += 2
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func toScriptError(err error) *scripterrors.ScriptError {
	if le, ok := err.(*lexer.LexError); ok {
		return scripterrors.At(scripterrors.Syntax, le.File, le.Line, "%s", le.Message)
	}
	return scripterrors.New(scripterrors.Syntax, "%s", err.Error())
}

// --- token stream helpers ---

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) atEnd() bool { return p.cur().Type == lexer.TokEOF }
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}
func (p *Parser) check(t lexer.TokenType) bool { return p.cur().Type == t }
func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}
func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.errAt("expected %s, found %s %q", t, p.cur().Type, p.cur().Lexeme)
}

func (p *Parser) errAt(format string, args ...interface{}) *scripterrors.ScriptError {
	return scripterrors.At(scripterrors.Syntax, p.cur().File, p.cur().Line, format, args...)
}

func pos(t lexer.Token) ast.Pos { return ast.Pos{File: t.File, Line: t.Line} }

// --- top level ---

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.atEnd() {
		start := p.pos
		if err := p.parseTopLevelItem(prog); err != nil {
			p.Errors = append(p.Errors, toScriptError(err))
			p.recoverTopLevel(start)
		}
	}
	return prog
}

// recoverTopLevel skips forward to the start of the next plausible
// top-level item so one bad declaration doesn't abort the whole parse
// (spec §4.2, §7).
func (p *Parser) recoverTopLevel(from int) {
	if p.pos <= from {
		p.pos = from + 1
	}
	for !p.atEnd() {
		if p.cur().Type == lexer.TokSemi || p.cur().Type == lexer.TokRBrace {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *Parser) parseTopLevelItem(prog *ast.Program) error {
	if p.check(lexer.TokAt) {
		// A bare @include that survived expansion (e.g. malformed) — skip
		// it as a no-op top-level item rather than failing the whole file.
		p.advance()
		return nil
	}
	if p.check(lexer.TokClass) {
		cd, err := p.parseClassDecl()
		if err != nil {
			return err
		}
		prog.Classes = append(prog.Classes, cd)
		return nil
	}

	ns, err := p.tryNamespacePrefix()
	if err != nil {
		return err
	}
	tn, err := p.parseTypeName()
	if err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokIdent)
	if err != nil {
		return err
	}
	if p.check(lexer.TokLParen) {
		fd, err := p.parseFuncRest(pos(nameTok), ns, tn, nameTok.Lexeme)
		if err != nil {
			return err
		}
		prog.Functions = append(prog.Functions, fd)
		return nil
	}
	gd := &ast.GlobalDecl{Base: ast.Base{Pos: pos(nameTok)}, Namespace: ns, Type: tn, Name: nameTok.Lexeme}
	if p.match(lexer.TokAssign) {
		init, err := p.parseExpr()
		if err != nil {
			return err
		}
		gd.Init = init
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return err
	}
	prog.Globals = append(prog.Globals, gd)
	return nil
}

// tryNamespacePrefix parses an optional `ns@ns@` prefix (spec §4.2).
func (p *Parser) tryNamespacePrefix() ([]string, error) {
	var ns []string
	for p.check(lexer.TokIdent) && p.peek(1).Type == lexer.TokAt {
		ns = append(ns, p.advance().Lexeme)
		p.advance() // '@'
	}
	return ns, nil
}

func (p *Parser) parseTypeName() (ast.TypeName, error) {
	ns, err := p.tryNamespacePrefix()
	if err != nil {
		return ast.TypeName{}, err
	}
	nameTok, err := p.expect(lexer.TokIdent)
	if err != nil {
		return ast.TypeName{}, err
	}
	tn := ast.TypeName{Namespace: ns, Name: nameTok.Lexeme}
	for p.check(lexer.TokLBracket) && p.peek(1).Type == lexer.TokRBracket {
		p.advance()
		p.advance()
		tn.ArrayDepth++
	}
	return tn, nil
}

func (p *Parser) parseFuncRest(at ast.Pos, ns []string, ret ast.TypeName, name string) (*ast.FuncDecl, error) {
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.check(lexer.TokRParen) {
		if len(params) > 0 {
			if _, err := p.expect(lexer.TokComma); err != nil {
				return nil, err
			}
		}
		pt, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		pn, err := p.expect(lexer.TokIdent)
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Type: pt, Name: pn.Lexeme})
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Base: ast.Base{Pos: at}, Namespace: ns, Name: name, ReturnType: ret, Params: params, Body: body}, nil
}

func (p *Parser) parseClassDecl() (*ast.ClassDecl, error) {
	kw := p.advance() // 'class'
	ns, err := p.tryNamespacePrefix()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokLBrace); err != nil {
		return nil, err
	}
	cd := &ast.ClassDecl{Base: ast.Base{Pos: pos(kw)}, Namespace: ns, Name: nameTok.Lexeme}
	for !p.check(lexer.TokRBrace) {
		readOnly := false
		if p.check(lexer.TokIdent) && p.cur().Lexeme == "readonly" {
			readOnly = true
			p.advance()
		}
		at, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		memberName, err := p.expect(lexer.TokIdent)
		if err != nil {
			return nil, err
		}
		if p.check(lexer.TokLParen) {
			fd, err := p.parseFuncRest(pos(memberName), nil, at, memberName.Lexeme)
			if err != nil {
				return nil, err
			}
			cd.Methods = append(cd.Methods, fd)
			if memberName.Lexeme == cd.Name {
				cd.Constructor = memberName.Lexeme
			}
			continue
		}
		if _, err := p.expect(lexer.TokSemi); err != nil {
			return nil, err
		}
		cd.Attrs = append(cd.Attrs, ast.AttrDecl{Type: at, Name: memberName.Lexeme, ReadOnly: readOnly})
	}
	if _, err := p.expect(lexer.TokRBrace); err != nil {
		return nil, err
	}
	return cd, nil
}

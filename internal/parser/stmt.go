package parser

import (
	"github.com/spiderscript/spiderscript/internal/ast"
	"github.com/spiderscript/spiderscript/internal/lexer"
)

func (p *Parser) parseBlock() (*ast.Block, error) {
	open, err := p.expect(lexer.TokLBrace)
	if err != nil {
		return nil, err
	}
	b := &ast.Block{Base: ast.Base{Pos: pos(open)}}
	for !p.check(lexer.TokRBrace) {
		if p.atEnd() {
			return nil, p.errAt("unterminated block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	if _, err := p.expect(lexer.TokRBrace); err != nil {
		return nil, err
	}
	return b, nil
}

// parseStatement dispatches on the leading token. A leading bare
// identifier is ambiguous between a typed local declaration
// (`Foo x = ...;`) and an expression statement (`x = ...;`, `foo();`):
// we speculatively try the declaration form first and backtrack to the
// expression form on failure (spec §4.2 leaves this to the parser).
func (p *Parser) parseStatement() (ast.Node, error) {
	switch p.cur().Type {
	case lexer.TokSemi:
		t := p.advance()
		return &ast.NoOp{Base: ast.Base{Pos: pos(t)}}, nil
	case lexer.TokLBrace:
		return p.parseBlock()
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokWhile:
		return p.parseWhile("")
	case lexer.TokDo:
		return p.parseDoWhile("")
	case lexer.TokFor:
		return p.parseFor("")
	case lexer.TokSwitch:
		return p.parseSwitch()
	case lexer.TokReturn:
		return p.parseReturn()
	case lexer.TokBreak:
		return p.parseBreakContinue(true)
	case lexer.TokContinue:
		return p.parseBreakContinue(false)
	case lexer.TokDelete:
		return p.parseDelete()
	}

	// Labeled loop: `tag: while (...)`, `tag: for (...)`, `tag: do ...`.
	if p.check(lexer.TokIdent) && p.peek(1).Type == lexer.TokColon {
		switch p.peek(2).Type {
		case lexer.TokWhile, lexer.TokFor, lexer.TokDo:
			tag := p.advance().Lexeme
			p.advance() // ':'
			switch p.cur().Type {
			case lexer.TokWhile:
				return p.parseWhile(tag)
			case lexer.TokFor:
				return p.parseFor(tag)
			default:
				return p.parseDoWhile(tag)
			}
		}
	}

	if decl, ok, err := p.tryParseVarDecl(); ok || err != nil {
		return decl, err
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Base: ast.Base{Pos: expr.NodePos()}, Expr: expr}, nil
}

// tryParseVarDecl speculatively parses `TypeName ident (= expr)? ;`.
// Returns ok=false with the parser position restored if the lookahead
// doesn't commit to a declaration, so the caller can fall through to
// expression-statement parsing.
func (p *Parser) tryParseVarDecl() (ast.Node, bool, error) {
	if !p.check(lexer.TokIdent) {
		return nil, false, nil
	}
	start := p.pos
	tn, err := p.parseTypeName()
	if err != nil {
		p.pos = start
		return nil, false, nil
	}
	if !p.check(lexer.TokIdent) {
		p.pos = start
		return nil, false, nil
	}
	nameTok := p.advance()
	vd := &ast.VarDecl{Base: ast.Base{Pos: pos(nameTok)}, Type: tn, Name: nameTok.Lexeme}
	if p.match(lexer.TokAssign) {
		init, err := p.parseExpr()
		if err != nil {
			return nil, true, err
		}
		vd.Init = init
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, true, err
	}
	return vd, true, nil
}

func (p *Parser) parseIf() (ast.Node, error) {
	kw := p.advance()
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	node := &ast.If{Base: ast.Base{Pos: pos(kw)}, Cond: cond, Then: then}
	if p.match(lexer.TokElse) {
		els, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		node.Else = els
	}
	return node, nil
}

func (p *Parser) parseWhile(tag string) (ast.Node, error) {
	kw := p.advance()
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.Loop{Base: ast.Base{Pos: pos(kw)}, Tag: tag, Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile(tag string) (ast.Node, error) {
	kw := p.advance()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokWhile); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, err
	}
	return &ast.Loop{Base: ast.Base{Pos: pos(kw)}, Tag: tag, Cond: cond, PostCheck: true, Body: body}, nil
}

func (p *Parser) parseFor(tag string) (ast.Node, error) {
	kw := p.advance()
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	loop := &ast.Loop{Base: ast.Base{Pos: pos(kw)}, Tag: tag}
	if !p.check(lexer.TokSemi) {
		if decl, ok, err := p.tryParseVarDecl(); ok {
			if err != nil {
				return nil, err
			}
			loop.Init = decl
		} else {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokSemi); err != nil {
				return nil, err
			}
			loop.Init = &ast.ExprStmt{Base: ast.Base{Pos: expr.NodePos()}, Expr: expr}
		}
	} else {
		p.advance()
	}
	if !p.check(lexer.TokSemi) {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		loop.Cond = cond
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, err
	}
	if !p.check(lexer.TokRParen) {
		post, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		loop.Post = &ast.ExprStmt{Base: ast.Base{Pos: post.NodePos()}, Expr: post}
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	loop.Body = body
	return loop, nil
}

func (p *Parser) parseSwitch() (ast.Node, error) {
	kw := p.advance()
	if _, err := p.expect(lexer.TokLParen); err != nil {
		return nil, err
	}
	subject, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokLBrace); err != nil {
		return nil, err
	}
	sw := &ast.Switch{Base: ast.Base{Pos: pos(kw)}, Subject: subject}
	for !p.check(lexer.TokRBrace) {
		switch p.cur().Type {
		case lexer.TokCase:
			p.advance()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokColon); err != nil {
				return nil, err
			}
			body, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			sw.Cases = append(sw.Cases, ast.CaseClause{Value: val, Body: body})
		case lexer.TokDefault:
			p.advance()
			if _, err := p.expect(lexer.TokColon); err != nil {
				return nil, err
			}
			body, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			sw.Default = body
		default:
			return nil, p.errAt("expected case or default in switch body")
		}
	}
	if _, err := p.expect(lexer.TokRBrace); err != nil {
		return nil, err
	}
	return sw, nil
}

// parseCaseBody collects statements until the next case/default/closing
// brace and wraps them in a Block. The AST carries no fallthrough marker
// either way; internal/compiler's compileSwitch lowers each case body to
// jump unconditionally to the switch's end label, so there is no
// fallthrough from one case into the next (see DESIGN.md's "Open Question
// decisions" entry on switch/continue semantics).
func (p *Parser) parseCaseBody() (ast.Node, error) {
	start := p.cur()
	b := &ast.Block{Base: ast.Base{Pos: pos(start)}}
	for !p.check(lexer.TokCase) && !p.check(lexer.TokDefault) && !p.check(lexer.TokRBrace) {
		if p.atEnd() {
			return nil, p.errAt("unterminated switch body")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	return b, nil
}

func (p *Parser) parseReturn() (ast.Node, error) {
	kw := p.advance()
	ret := &ast.Return{Base: ast.Base{Pos: pos(kw)}}
	if !p.check(lexer.TokSemi) {
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ret.Value = val
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p *Parser) parseBreakContinue(isBreak bool) (ast.Node, error) {
	kw := p.advance()
	tag := ""
	if p.check(lexer.TokIdent) {
		tag = p.advance().Lexeme
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, err
	}
	if isBreak {
		return &ast.Break{Base: ast.Base{Pos: pos(kw)}, Tag: tag}, nil
	}
	return &ast.Continue{Base: ast.Base{Pos: pos(kw)}, Tag: tag}, nil
}

func (p *Parser) parseDelete() (ast.Node, error) {
	kw := p.advance()
	target, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokSemi); err != nil {
		return nil, err
	}
	return &ast.Delete{Base: ast.Base{Pos: pos(kw)}, Target: target}, nil
}

// Copyright (c) 2024 The ccgo Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package parse

import (
	"ccgo/internal/ast"
	"ccgo/internal/lex"
)

// parseBlock parses a `{ ... }` compound statement, opening a fresh
// child scope for the declarations it may contain (spec.md §3: block
// scopes nest under their enclosing scope).
func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	if _, err := p.expect(lex.LBRACE); err != nil {
		return nil, err
	}
	blk := &ast.BlockStmt{Scope: ast.NewScope(p.scope)}

	saved := p.scope
	p.scope = blk.Scope
	for p.tok.Kind != lex.RBRACE {
		st, err := p.parseStmt()
		if err != nil {
			p.scope = saved
			return nil, err
		}
		if st != nil {
			blk.Stmts = append(blk.Stmts, st)
		}
	}
	p.scope = saved

	if _, err := p.expect(lex.RBRACE); err != nil {
		return nil, err
	}
	return blk, nil
}

// parseStmt dispatches on the current token. A label (`ident ':'`) needs
// one token of lookahead past IDENT to tell it apart from an
// expression-statement starting with an identifier.
func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.tok.Kind {
	case lex.LBRACE:
		return p.parseBlock()
	case lex.KW_IF:
		return p.parseIf()
	case lex.KW_WHILE:
		return p.parseWhile()
	case lex.KW_DO:
		return p.parseDoWhile()
	case lex.KW_FOR:
		return p.parseFor()
	case lex.KW_SWITCH:
		return p.parseSwitch()
	case lex.KW_BREAK:
		if err := p.advance(); err != nil {
			return nil, err
		}
		_, err := p.expect(lex.SEMI)
		return &ast.BreakStmt{}, err
	case lex.KW_CONTINUE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		_, err := p.expect(lex.SEMI)
		return &ast.ContinueStmt{}, err
	case lex.KW_RETURN:
		return p.parseReturn()
	case lex.KW_GOTO:
		return p.parseGoto()
	case lex.KW_ASM:
		return p.parseAsm()
	case lex.SEMI:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return nil, nil
	case lex.IDENT:
		nxt, err := p.peek()
		if err != nil {
			return nil, err
		}
		if nxt.Kind == lex.COLON {
			return p.parseLabel()
		}
		return p.parseExprStmt()
	default:
		if p.isTypeStart() {
			return p.parseLocalDecl()
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x}, nil
}

func (p *Parser) parseLabel() (ast.Stmt, error) {
	name := p.tok.Name
	if err := p.advance(); err != nil { // consume ident
		return nil, err
	}
	if _, err := p.expect(lex.COLON); err != nil {
		return nil, err
	}
	inner, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if inner == nil {
		inner = &ast.BlockStmt{Scope: p.scope}
	}
	return &ast.LabelStmt{Label: name, Stmt: inner}, nil
}

func (p *Parser) parseGoto() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lex.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		return nil, err
	}
	return &ast.GotoStmt{Label: nameTok.Name}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind == lex.SEMI {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{}, nil
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	retType := p.curFunc.Type.Of
	if retType.IsStruct() || retType.IsArray() {
		if !isLvalue(x) {
			return nil, p.semaErrorf("aggregate return value must be an lvalue")
		}
	} else {
		x, err = p.coerceAssign(retType, x)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{X: x}, nil
}

// parseAsm accepts `asm ( "text" ) ;` and its GNU `__asm__` spelling,
// passed through verbatim to the emitter (spec.md §6).
func (p *Parser) parseAsm() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}
	strTok, err := p.expect(lex.STRLIT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		return nil, err
	}
	return &ast.AsmStmt{Text: string(strTok.StrVal)}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !isScalar(cond.GetType()) {
		return nil, p.semaErrorf("if condition must be scalar")
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.tok.Kind == lex.KW_ELSE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.KW_WHILE); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		return nil, err
	}
	return &ast.DoWhileStmt{Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}

	forScope := ast.NewScope(p.scope)
	saved := p.scope
	p.scope = forScope

	var init ast.Stmt
	var err error
	switch {
	case p.tok.Kind == lex.SEMI:
		if err = p.advance(); err != nil {
			p.scope = saved
			return nil, err
		}
	case p.isTypeStart():
		init, err = p.parseLocalDecl()
		if err != nil {
			p.scope = saved
			return nil, err
		}
	default:
		x, err2 := p.parseExpr()
		if err2 != nil {
			p.scope = saved
			return nil, err2
		}
		if _, err2 = p.expect(lex.SEMI); err2 != nil {
			p.scope = saved
			return nil, err2
		}
		init = &ast.ExprStmt{X: x}
	}

	var cond ast.Expr
	if p.tok.Kind != lex.SEMI {
		cond, err = p.parseExpr()
		if err != nil {
			p.scope = saved
			return nil, err
		}
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		p.scope = saved
		return nil, err
	}

	var post ast.Expr
	if p.tok.Kind != lex.RPAREN {
		post, err = p.parseExpr()
		if err != nil {
			p.scope = saved
			return nil, err
		}
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		p.scope = saved
		return nil, err
	}

	body, err := p.parseStmt()
	p.scope = saved
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Scope: forScope, Init: init, Cond: cond, Post: post, Body: body}, nil
}

// parseSwitch parses a `switch` body directly into SwitchStmt's flattened
// shape: each `case`/`default` label owns the run of statements up to the
// next label (spec.md §3 models a switch as case-labeled statement runs,
// not individually-nested CASE nodes).
func (p *Parser) parseSwitch() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}
	tag, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !tag.GetType().IsFixnum() {
		return nil, p.semaErrorf("switch tag must have integer type")
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.LBRACE); err != nil {
		return nil, err
	}

	sw := &ast.SwitchStmt{Tag: tag}
	var cur *ast.SwitchCase
	seenDefault := false
	seenCases := map[int64]bool{}
	for p.tok.Kind != lex.RBRACE {
		switch p.tok.Kind {
		case lex.KW_CASE:
			if err := p.advance(); err != nil {
				return nil, err
			}
			v, err := p.constIntExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.COLON); err != nil {
				return nil, err
			}
			if seenCases[v] {
				return nil, p.semaErrorf("duplicate case value %d", v)
			}
			seenCases[v] = true
			cur = &ast.SwitchCase{Value: v}
			sw.Cases = append(sw.Cases, cur)
		case lex.KW_DEFAULT:
			if seenDefault {
				return nil, p.semaErrorf("multiple default labels in one switch")
			}
			seenDefault = true
			if err := p.advance(); err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.COLON); err != nil {
				return nil, err
			}
			cur = &ast.SwitchCase{IsDefault: true}
			sw.Cases = append(sw.Cases, cur)
		default:
			if cur == nil {
				return nil, p.errorf("statement outside any case/default label in switch body")
			}
			st, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			if st != nil {
				cur.Body = append(cur.Body, st)
			}
		}
	}
	if _, err := p.expect(lex.RBRACE); err != nil {
		return nil, err
	}
	return sw, nil
}

// parseLocalDecl parses a function-scope declaration: a plain local, a
// block-scope typedef, or a `static` local materialized as a
// freshly-named global (spec.md §3 invariant: the synthesized name is
// fresh). Several comma-separated declarators collapse into a BlockStmt
// so parseStmt's single-Stmt contract still holds.
func (p *Parser) parseLocalDecl() (ast.Stmt, error) {
	base, storage, err := p.declSpecs()
	if err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for {
		name, typ, err := p.declarator(base)
		if err != nil {
			return nil, err
		}

		if storage.Has(ast.StorageTypedef) {
			p.ctx.DeclareTypedef(name, typ)
			if p.tok.Kind != lex.COMMA {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}

		if storage.Has(ast.StorageStatic) {
			staticName := p.freshStaticName(name)
			gv := &ast.VarInfo{Name: staticName, Type: typ, Storage: ast.StorageStatic, Variant: ast.VarGlobal}
			if p.tok.Kind == lex.ASSIGN {
				if err := p.advance(); err != nil {
					return nil, err
				}
				raw, err := p.parseInitializer(typ)
				if err != nil {
					return nil, err
				}
				newT, norm, err := p.normalizeInit(typ, raw)
				if err != nil {
					return nil, err
				}
				typ = newT
				gv.Type = newT
				gv.GlobalInit = norm
			}
			p.global.Declare(gv)
			lv := &ast.VarInfo{Name: name, Type: typ, Storage: ast.StorageStatic, Variant: ast.VarStaticLocal, StaticGlobal: gv}
			p.scope.Declare(lv)
			if p.tok.Kind != lex.COMMA {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}

		v := &ast.VarInfo{Name: name, Type: typ, Storage: storage, Variant: ast.VarLocal}
		var init ast.Initializer
		if p.tok.Kind == lex.ASSIGN {
			if err := p.advance(); err != nil {
				return nil, err
			}
			raw, err := p.parseInitializer(typ)
			if err != nil {
				return nil, err
			}
			newT, norm, err := p.normalizeInit(typ, raw)
			if err != nil {
				return nil, err
			}
			typ, v.Type = newT, newT
			init = norm
		}
		p.scope.Declare(v)
		stmts = append(stmts, &ast.DeclStmt{Decl: &ast.VarDecl{Var: v, Init: init}})

		if p.tok.Kind != lex.COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lex.SEMI); err != nil {
		return nil, err
	}
	return stmtsToStmt(p.scope, stmts), nil
}

// stmtsToStmt collapses zero, one, or many statements into the single
// Stmt parseStmt's callers expect.
func stmtsToStmt(scope *ast.Scope, stmts []ast.Stmt) ast.Stmt {
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	default:
		return &ast.BlockStmt{Scope: scope, Stmts: stmts}
	}
}

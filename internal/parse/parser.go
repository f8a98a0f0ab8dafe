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

// Package parse implements spec.md §4.3: the recursive-descent
// parser/sema pass that turns a token stream into a Root, with type
// checking, constant folding, implicit-cast insertion and
// pointer-arithmetic rewriting performed inline as each node is built.
package parse

import (
	"fmt"
	"io"

	"ccgo/internal/ast"
	"ccgo/internal/diag"
	"ccgo/internal/lex"
	"ccgo/internal/typesys"
)

// Parser drives one translation unit. One Parser per file, discarded
// once Parse returns (spec.md §5).
type Parser struct {
	lx  *lex.Lexer
	ctx *typesys.Context

	tok lex.Token

	global *ast.Scope
	scope  *ast.Scope

	curFunc *ast.FuncDecl

	staticCounter int
}

// Parse tokenizes and parses r as a single translation unit named file,
// threading ctx through so callers can parse several files against one
// shared type/typedef table if they choose (spec.md §5 does not require
// this, but does not forbid it either).
func Parse(ctx *typesys.Context, file string, r io.Reader) (*ast.Root, error) {
	p := &Parser{
		lx:     lex.New(file, r),
		ctx:    ctx,
		global: ast.NewScope(nil),
	}
	p.scope = p.global
	if err := p.advance(); err != nil {
		return nil, err
	}

	root := &ast.Root{Source: file}
	for p.tok.Kind != lex.EOF {
		decls, err := p.topLevelDecl()
		if err != nil {
			return nil, err
		}
		root.Decls = append(root.Decls, decls...)
	}
	return root, nil
}

func (p *Parser) advance() error {
	tok, err := p.lx.FetchToken()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// peek reports the token after the current one, without consuming it.
// Safe any time p.tok itself already holds a fetched token, since the
// lexer's single putback slot is then free (spec.md §4.1: "grammar is
// LL(1) after tokenization so one slot suffices" — this gives the
// parser a second slot on top of that one, used only transiently).
func (p *Parser) peek() (lex.Token, error) {
	t, err := p.lx.FetchToken()
	if err != nil {
		return lex.Token{}, err
	}
	p.lx.UngetToken(t)
	return t, nil
}

func (p *Parser) expect(k lex.Kind) (lex.Token, error) {
	if p.tok.Kind != k {
		return lex.Token{}, p.errorf("expected %s, found %s", describeKind(k), p.tok.String())
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return lex.Token{}, err
	}
	return t, nil
}

func (p *Parser) errorf(format string, args ...interface{}) *diag.Error {
	return diag.New(diag.Parse, p.tok.Pos, format, args...)
}

func (p *Parser) semaErrorf(format string, args ...interface{}) *diag.Error {
	return diag.New(diag.Sema, p.tok.Pos, format, args...)
}

func describeKind(k lex.Kind) string {
	return fmt.Sprintf("%v", k)
}

// looksLikeType reports whether tok can start a declaration-specifier
// sequence: a builtin type keyword, a qualifier/storage-class keyword,
// struct/union/enum, or an identifier already bound as a typedef name
// (spec.md §4.3: typedef lookup happens during parsing, not as a
// separate pre-pass).
func (p *Parser) looksLikeType(tok lex.Token) bool {
	switch tok.Kind {
	case lex.KW_VOID, lex.KW_CHAR, lex.KW_SHORT, lex.KW_INT, lex.KW_LONG, lex.KW_FLOAT, lex.KW_DOUBLE,
		lex.KW_SIGNED, lex.KW_UNSIGNED, lex.KW_STRUCT, lex.KW_UNION, lex.KW_ENUM, lex.KW_CONST,
		lex.KW_STATIC, lex.KW_EXTERN, lex.KW_TYPEDEF:
		return true
	case lex.IDENT:
		_, ok := p.ctx.LookupTypedef(tok.Name)
		return ok
	default:
		return false
	}
}

func (p *Parser) isTypeStart() bool { return p.looksLikeType(p.tok) }

// freshStaticName synthesizes a fresh linkage name for a function-scope
// `static` variable materialized as a global (spec.md §3 invariant:
// "the synthesized name is fresh").
func (p *Parser) freshStaticName(name string) string {
	p.staticCounter++
	fn := "file"
	if p.curFunc != nil {
		fn = p.curFunc.Name
	}
	return fmt.Sprintf("__static_%s_%s_%d", fn, name, p.staticCounter)
}

// topLevelDecl parses one declaration-specifier-led top-level
// declaration, which may declare several comma-separated names, end in
// a function body, or (struct/union/enum tag only) declare nothing.
func (p *Parser) topLevelDecl() ([]ast.Decl, error) {
	base, storage, err := p.declSpecs()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == lex.SEMI {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var decls []ast.Decl
	for {
		name, typ, err := p.declarator(base)
		if err != nil {
			return nil, err
		}

		if typ.IsFunc() {
			if p.tok.Kind == lex.LBRACE {
				fn, err := p.parseFuncBody(name, typ, storage)
				if err != nil {
					return nil, err
				}
				return append(decls, fn), nil
			}
			p.global.Declare(&ast.VarInfo{Name: name, Type: typ, Storage: storage, Variant: ast.VarGlobal})
			decls = append(decls, &ast.FuncDecl{Name: name, Type: typ, Storage: storage})
			if p.tok.Kind != lex.COMMA {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
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

		v := &ast.VarInfo{Name: name, Type: typ, Storage: storage, Variant: ast.VarGlobal}
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
			v.GlobalInit = init
		}
		p.global.Declare(v)
		decls = append(decls, &ast.VarDecl{Var: v, Init: init})

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
	return decls, nil
}

func (p *Parser) parseFuncBody(name string, fnType *typesys.Type, storage ast.Storage) (*ast.FuncDecl, error) {
	fn := &ast.FuncDecl{Name: name, Type: fnType, Storage: storage}
	fn.Scope = ast.NewFuncScope(p.global, fn)

	savedScope, savedFunc := p.scope, p.curFunc
	p.scope, p.curFunc = fn.Scope, fn

	if fnType.Of.IsStruct() {
		fn.HiddenRetName = "__ret"
		fn.Scope.Declare(&ast.VarInfo{
			Name: fn.HiddenRetName, Type: typesys.PtrOf(fnType.Of),
			Storage: ast.StorageParam, Variant: ast.VarLocal,
		})
	}
	for _, prm := range fnType.Params {
		fn.Scope.Declare(&ast.VarInfo{Name: prm.Name, Type: prm.Type, Storage: ast.StorageParam, Variant: ast.VarLocal})
		fn.ParamNames = append(fn.ParamNames, prm.Name)
	}

	// The function's own name must be visible (for recursive calls)
	// before its body is parsed.
	p.global.Declare(&ast.VarInfo{Name: name, Type: fnType, Storage: storage, Variant: ast.VarGlobal})

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body

	p.scope, p.curFunc = savedScope, savedFunc
	return fn, nil
}

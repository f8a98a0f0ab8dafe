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
	"ccgo/internal/typesys"
)

func isCharType(t *typesys.Type) bool { return t.IsFixnum() && t.Fixnum == typesys.FChar }

// parseInitializer parses one initializer for a value of type t: a brace
// list, a bare string literal against a char array, or a plain
// assignment-expression (spec.md §4.3's initializer grammar). The
// designator/shape resolution against t's actual layout happens
// afterward, in normalizeInit.
func (p *Parser) parseInitializer(t *typesys.Type) (ast.Initializer, error) {
	if p.tok.Kind == lex.STRLIT && t.IsArray() && isCharType(t.Of) {
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		str := &ast.StrLit{ExprBase: ast.ExprBase{Type: typesys.ArrayOf(t.Of, len(tok.StrVal)+1)}, Value: tok.StrVal}
		return &ast.SingleInit{X: str}, nil
	}
	if p.tok.Kind == lex.LBRACE {
		return p.parseBracedInitializer(t)
	}
	x, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &ast.SingleInit{X: x}, nil
}

// parseBracedInitializer parses `{ ... }`, tracking the implicit running
// position so plain (non-designated) entries land where C says they
// should and a `.member =` / `[index] =` designator resets it (spec.md
// §4.3: designated initializers). The per-entry target type is already
// known here (from t's layout), so nested braces recurse with the right
// type instead of deferring everything to normalizeInit.
func (p *Parser) parseBracedInitializer(t *typesys.Type) (ast.Initializer, error) {
	if _, err := p.expect(lex.LBRACE); err != nil {
		return nil, err
	}
	var elems []ast.Initializer
	pos := 0
	for p.tok.Kind != lex.RBRACE {
		var sub ast.Initializer
		switch {
		case p.tok.Kind == lex.DOT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			nameTok, err := p.expect(lex.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.ASSIGN); err != nil {
				return nil, err
			}
			memberType, idx, err := p.memberTypeAt(t, nameTok.Name)
			if err != nil {
				return nil, err
			}
			inner, err := p.parseInitializer(memberType)
			if err != nil {
				return nil, err
			}
			sub = &ast.DotInit{Member: nameTok.Name, Sub: inner}
			pos = idx + 1
		case p.tok.Kind == lex.LBRACKET:
			if err := p.advance(); err != nil {
				return nil, err
			}
			idxVal, err := p.constIntExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.RBRACKET); err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.ASSIGN); err != nil {
				return nil, err
			}
			elemType := elemTypeAt(t, int(idxVal))
			inner, err := p.parseInitializer(elemType)
			if err != nil {
				return nil, err
			}
			sub = &ast.ArrInit{Index: int(idxVal), Sub: inner}
			pos = int(idxVal) + 1
		default:
			elemType := elemTypeAt(t, pos)
			inner, err := p.parseInitializer(elemType)
			if err != nil {
				return nil, err
			}
			sub = inner
			pos++
		}
		elems = append(elems, sub)
		if p.tok.Kind != lex.COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == lex.RBRACE {
			break // trailing comma before the closing brace
		}
	}
	if _, err := p.expect(lex.RBRACE); err != nil {
		return nil, err
	}
	return &ast.MultiInit{Elems: elems}, nil
}

func (p *Parser) memberTypeAt(t *typesys.Type, name string) (*typesys.Type, int, error) {
	if !t.IsStruct() || t.Struct == nil {
		return nil, 0, p.semaErrorf("designated initializer on non-struct type %s", t)
	}
	for i, m := range t.Struct.Members {
		if m.Name == name {
			return m.Type, i, nil
		}
	}
	return nil, 0, p.semaErrorf("no member named %q in %s", name, t)
}

// elemTypeAt is the best-effort element type for positional entry idx,
// used only to pick a target type while parsing nested braces; the
// authoritative shape check happens in normalizeInit.
func elemTypeAt(t *typesys.Type, idx int) *typesys.Type {
	switch {
	case t.IsArray():
		return t.Of
	case t.IsStruct() && t.Struct != nil:
		if t.Struct.IsUnion {
			if len(t.Struct.Members) > 0 {
				return t.Struct.Members[0].Type
			}
			return typesys.TInt
		}
		if idx >= 0 && idx < len(t.Struct.Members) {
			return t.Struct.Members[idx].Type
		}
		return typesys.TInt
	default:
		return t
	}
}

// normalizeInit resolves a raw, designator-bearing initializer tree into
// a dense positional form the IR builder can lower directly: every
// DotInit/ArrInit is gone, every aggregate's MultiInit.Elems has exactly
// one entry per member/array-element, and un-designated tail
// members/elements are filled in via zeroInit (spec.md §4.3: "normalized
// to a dense positional form before the IR builder ever sees it"). It
// also infers an unspecified array's length from its initializer, which
// is why normalizeInit returns the (possibly updated) Type alongside the
// Initializer.
func (p *Parser) normalizeInit(t *typesys.Type, init ast.Initializer) (*typesys.Type, ast.Initializer, error) {
	if single, ok := init.(*ast.SingleInit); ok {
		if t.IsArray() && isCharType(t.Of) {
			if str, ok := single.X.(*ast.StrLit); ok {
				return p.normalizeStringInit(t, str)
			}
		}
		if t.IsStruct() || t.IsArray() {
			return nil, nil, p.semaErrorf("scalar initializer for aggregate type %s", t)
		}
		casted, err := p.coerceAssign(t, single.X)
		if err != nil {
			return nil, nil, err
		}
		return t, &ast.SingleInit{X: casted}, nil
	}

	multi, ok := init.(*ast.MultiInit)
	if !ok {
		return nil, nil, p.semaErrorf("unsupported initializer shape for %s", t)
	}

	switch {
	case t.IsArray():
		return p.normalizeArray(t, multi)
	case t.IsStruct():
		return p.normalizeStruct(t, multi)
	default:
		// A degenerate brace-enclosed scalar initializer, e.g. `int x = {5};`.
		if len(multi.Elems) != 1 {
			return nil, nil, p.semaErrorf("too many initializers for scalar type %s", t)
		}
		return p.normalizeInit(t, multi.Elems[0])
	}
}

// normalizeStringInit keeps the StrLit/SingleInit shape the IR builder
// already knows how to lower (via lowerLvalue+copyAggregate), adjusting
// Value so it is always exactly (declared length - 1) bytes: the
// remaining byte is the implicit terminating NUL that string-literal
// emission always appends (mirroring the convention parsePrimary sets
// up for every other string literal: Type.ElemLen == len(Value)+1).
func (p *Parser) normalizeStringInit(t *typesys.Type, str *ast.StrLit) (*typesys.Type, ast.Initializer, error) {
	n := t.ElemLen
	if n < 0 {
		n = len(str.Value) + 1
	}
	content := n - 1
	if content < 0 || len(str.Value) > content {
		return nil, nil, p.semaErrorf("initializer string too long for array of %d bytes", n)
	}
	padded := make([]byte, content)
	copy(padded, str.Value)
	resultT := typesys.ArrayOf(t.Of, n)
	newStr := &ast.StrLit{ExprBase: ast.ExprBase{Type: resultT}, Value: padded}
	return resultT, &ast.SingleInit{X: newStr}, nil
}

func (p *Parser) normalizeArray(t *typesys.Type, multi *ast.MultiInit) (*typesys.Type, ast.Initializer, error) {
	type slot struct {
		has bool
		val ast.Initializer
	}
	var slots []slot
	ensure := func(n int) {
		for len(slots) <= n {
			slots = append(slots, slot{})
		}
	}

	pos := 0
	for _, e := range multi.Elems {
		switch v := e.(type) {
		case *ast.ArrInit:
			pos = v.Index
			ensure(pos)
			_, norm, err := p.normalizeInit(t.Of, v.Sub)
			if err != nil {
				return nil, nil, err
			}
			slots[pos] = slot{true, norm}
			pos++
		case *ast.DotInit:
			return nil, nil, p.semaErrorf("member designator used in array initializer")
		default:
			ensure(pos)
			_, norm, err := p.normalizeInit(t.Of, e)
			if err != nil {
				return nil, nil, err
			}
			slots[pos] = slot{true, norm}
			pos++
		}
	}

	n := t.ElemLen
	if n < 0 {
		n = len(slots)
	}
	if n > 0 {
		ensure(n - 1)
	}
	elems := make([]ast.Initializer, n)
	for i := 0; i < n; i++ {
		if i < len(slots) && slots[i].has {
			elems[i] = slots[i].val
		} else {
			elems[i] = p.zeroInit(t.Of)
		}
	}
	return typesys.ArrayOf(t.Of, n), &ast.MultiInit{Elems: elems}, nil
}

// normalizeStruct resolves a braced struct/union initializer. Unions are
// a deliberate simplification: only the first
// declared member may be targeted, since every member shares byte offset
// 0 and the IR builder's aggregate lowering has no concept of "the
// currently-active member" — it just writes at that member's own width,
// so a designator naming any member but the first would have to reach
// into the IR layer to be honored correctly.
func (p *Parser) normalizeStruct(t *typesys.Type, multi *ast.MultiInit) (*typesys.Type, ast.Initializer, error) {
	if t.Struct == nil || !t.Struct.Sized() {
		return nil, nil, p.semaErrorf("initializer for incomplete struct type %s", t)
	}
	members := t.Struct.Members

	if t.Struct.IsUnion {
		if len(members) == 0 {
			return t, &ast.MultiInit{}, nil
		}
		if len(multi.Elems) == 0 {
			return t, &ast.MultiInit{Elems: []ast.Initializer{p.zeroInit(members[0].Type)}}, nil
		}
		if len(multi.Elems) != 1 {
			return nil, nil, p.semaErrorf("too many initializers for union %s", t)
		}
		e := multi.Elems[0]
		if dot, ok := e.(*ast.DotInit); ok {
			if dot.Member != members[0].Name {
				return nil, nil, p.semaErrorf("union initializers may only designate the first member %q", members[0].Name)
			}
			e = dot.Sub
		}
		_, norm, err := p.normalizeInit(members[0].Type, e)
		if err != nil {
			return nil, nil, err
		}
		return t, &ast.MultiInit{Elems: []ast.Initializer{norm}}, nil
	}

	slots := make([]ast.Initializer, len(members))
	has := make([]bool, len(members))
	pos := 0
	for _, e := range multi.Elems {
		switch v := e.(type) {
		case *ast.DotInit:
			idx := -1
			for i, m := range members {
				if m.Name == v.Member {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, nil, p.semaErrorf("no member named %q in %s", v.Member, t)
			}
			_, norm, err := p.normalizeInit(members[idx].Type, v.Sub)
			if err != nil {
				return nil, nil, err
			}
			slots[idx], has[idx] = norm, true
			pos = idx + 1
		case *ast.ArrInit:
			return nil, nil, p.semaErrorf("array designator used in struct initializer")
		default:
			if pos >= len(members) {
				return nil, nil, p.semaErrorf("too many initializers for %s", t)
			}
			_, norm, err := p.normalizeInit(members[pos].Type, e)
			if err != nil {
				return nil, nil, err
			}
			slots[pos], has[pos] = norm, true
			pos++
		}
	}
	for i, m := range members {
		if !has[i] {
			slots[i] = p.zeroInit(m.Type)
		}
	}
	return t, &ast.MultiInit{Elems: slots}, nil
}

// zeroInit builds the implicit-zero Initializer for an un-designated
// member/element, recursing into nested aggregates (spec.md §4.3).
func (p *Parser) zeroInit(t *typesys.Type) ast.Initializer {
	switch {
	case t.IsArray():
		n := t.ElemLen
		if n < 0 {
			n = 0
		}
		elems := make([]ast.Initializer, n)
		for i := range elems {
			elems[i] = p.zeroInit(t.Of)
		}
		return &ast.MultiInit{Elems: elems}
	case t.IsStruct() && t.Struct != nil:
		if t.Struct.IsUnion {
			if len(t.Struct.Members) == 0 {
				return &ast.MultiInit{}
			}
			return &ast.MultiInit{Elems: []ast.Initializer{p.zeroInit(t.Struct.Members[0].Type)}}
		}
		elems := make([]ast.Initializer, len(t.Struct.Members))
		for i, m := range t.Struct.Members {
			elems[i] = p.zeroInit(m.Type)
		}
		return &ast.MultiInit{Elems: elems}
	case t.IsFlonum():
		return &ast.SingleInit{X: &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: 0}}
	default:
		return &ast.SingleInit{X: intLit(0, t)}
	}
}

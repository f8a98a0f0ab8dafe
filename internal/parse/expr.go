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
	"ccgo/internal/diag"
	"ccgo/internal/lex"
	"ccgo/internal/typesys"
)

// The expression grammar cascades through the usual C precedence
// levels (spec.md §4.3 step 3: "recursive-descent ... inserts implicit
// casts, folds constant arithmetic eagerly, and rewrites pointer
// arithmetic"). Each level below binds one precedence tier; sema runs
// inline as each node is built rather than as a separate pass.

func (p *Parser) parseExpr() (ast.Expr, error) {
	left, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lex.COMMA {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		left = &ast.CommaExpr{ExprBase: ast.ExprBase{Type: right.GetType()}, Left: left, Right: right}
	}
	return left, nil
}

var assignOps = map[lex.Kind]ast.AssignOp{
	lex.ASSIGN:         ast.AAssign,
	lex.PLUS_ASSIGN:    ast.AAddAssign,
	lex.MINUS_ASSIGN:   ast.ASubAssign,
	lex.STAR_ASSIGN:    ast.AMulAssign,
	lex.SLASH_ASSIGN:   ast.ADivAssign,
	lex.PERCENT_ASSIGN: ast.AModAssign,
	lex.AMP_ASSIGN:     ast.AAndAssign,
	lex.PIPE_ASSIGN:    ast.AOrAssign,
	lex.CARET_ASSIGN:   ast.AXorAssign,
	lex.SHL_ASSIGN:     ast.AShlAssign,
	lex.SHR_ASSIGN:     ast.AShrAssign,
}

func (p *Parser) parseAssign() (ast.Expr, error) {
	left, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	op, ok := assignOps[p.tok.Kind]
	if !ok {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return p.buildAssign(left, op, right)
}

func (p *Parser) parseTernary() (ast.Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lex.QUESTION {
		return cond, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.COLON); err != nil {
		return nil, err
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return p.buildTernary(cond, then, els)
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lex.OROR {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left, err = p.buildLogical(ast.BLogOr, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lex.ANDAND {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		left, err = p.buildLogical(ast.BLogAnd, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseBitOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitXor, map[lex.Kind]ast.BinOp{lex.PIPE: ast.BOr})
}
func (p *Parser) parseBitXor() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitAnd, map[lex.Kind]ast.BinOp{lex.CARET: ast.BXor})
}
func (p *Parser) parseBitAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseEquality, map[lex.Kind]ast.BinOp{lex.AMP: ast.BAnd})
}
func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseRelational, map[lex.Kind]ast.BinOp{lex.EQ: ast.BEq, lex.NE: ast.BNe})
}
func (p *Parser) parseRelational() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseShift, map[lex.Kind]ast.BinOp{
		lex.LT: ast.BLt, lex.LE: ast.BLe, lex.GT: ast.BGt, lex.GE: ast.BGe,
	})
}
func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseAdditive, map[lex.Kind]ast.BinOp{lex.SHL: ast.BShl, lex.SHR: ast.BShr})
}
func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, map[lex.Kind]ast.BinOp{lex.PLUS: ast.BAdd, lex.MINUS: ast.BSub})
}
func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseCast, map[lex.Kind]ast.BinOp{lex.STAR: ast.BMul, lex.SLASH: ast.BDiv, lex.PERCENT: ast.BMod})
}

// parseBinaryLevel folds every strictly-left-associative binary tier
// into one helper, parameterized by the next-tighter level and the
// token->operator table for this level.
func (p *Parser) parseBinaryLevel(next func() (ast.Expr, error), ops map[lex.Kind]ast.BinOp) (ast.Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.tok.Kind]
		if !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left, err = p.buildBinary(op, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseCast() (ast.Expr, error) {
	if p.tok.Kind == lex.LPAREN {
		nxt, err := p.peek()
		if err != nil {
			return nil, err
		}
		if p.looksLikeType(nxt) {
			if err := p.advance(); err != nil { // consume '('
				return nil, err
			}
			t, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.RPAREN); err != nil {
				return nil, err
			}
			x, err := p.parseCast()
			if err != nil {
				return nil, err
			}
			return p.buildCast(t, x)
		}
	}
	return p.parseUnary()
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.tok.Kind {
	case lex.PLUS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseCast()
	case lex.MINUS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return p.buildNeg(x)
	case lex.BANG:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return p.buildLogNot(x)
	case lex.TILDE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		if !x.GetType().IsFixnum() {
			return nil, p.semaErrorf("operand of ~ must be an integer")
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: x.GetType()}, Op: ast.UBitNot, Operand: x}, nil
	case lex.AMP:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		if !isLvalue(x) {
			return nil, p.semaErrorf("cannot take address of non-lvalue")
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: typesys.PtrOf(x.GetType())}, Op: ast.URef, Operand: x}, nil
	case lex.STAR:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		xt := x.GetType()
		if !xt.IsPtr() && !xt.IsArray() {
			return nil, p.semaErrorf("cannot dereference non-pointer type %s", xt)
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: xt.Of}, Op: ast.UDeref, Operand: x}, nil
	case lex.INC, lex.DEC:
		op := ast.UPreInc
		if p.tok.Kind == lex.DEC {
			op = ast.UPreDec
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !isLvalue(x) {
			return nil, p.semaErrorf("operand of ++/-- must be assignable")
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: x.GetType()}, Op: op, Operand: x}, nil
	case lex.KW_SIZEOF:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseSizeof()
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseSizeof() (ast.Expr, error) {
	if p.tok.Kind == lex.LPAREN {
		nxt, err := p.peek()
		if err != nil {
			return nil, err
		}
		if p.looksLikeType(nxt) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			t, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.RPAREN); err != nil {
				return nil, err
			}
			sz, err := typesys.Sizeof(t)
			if err != nil {
				return nil, p.semaErrorf("%v", err)
			}
			return intLit(int64(sz), typesys.TULong), nil
		}
	}
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	sz, err := typesys.Sizeof(x.GetType())
	if err != nil {
		return nil, p.semaErrorf("%v", err)
	}
	return intLit(int64(sz), typesys.TULong), nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Kind {
		case lex.LBRACKET:
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.RBRACKET); err != nil {
				return nil, err
			}
			x, err = p.buildIndex(x, idx)
			if err != nil {
				return nil, err
			}
		case lex.LPAREN:
			x, err = p.parseCall(x)
			if err != nil {
				return nil, err
			}
		case lex.DOT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			nameTok, err := p.expect(lex.IDENT)
			if err != nil {
				return nil, err
			}
			x, err = p.buildMember(x, nameTok.Name, false)
			if err != nil {
				return nil, err
			}
		case lex.ARROW:
			if err := p.advance(); err != nil {
				return nil, err
			}
			nameTok, err := p.expect(lex.IDENT)
			if err != nil {
				return nil, err
			}
			x, err = p.buildMember(x, nameTok.Name, true)
			if err != nil {
				return nil, err
			}
		case lex.INC, lex.DEC:
			op := ast.UPostInc
			if p.tok.Kind == lex.DEC {
				op = ast.UPostDec
			}
			if !isLvalue(x) {
				return nil, p.semaErrorf("operand of ++/-- must be assignable")
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			x = &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: x.GetType()}, Op: op, Operand: x}
		default:
			return x, nil
		}
	}
}

func intLitType(tok lex.Token) *typesys.Type {
	switch {
	case tok.Suffix.LongCount >= 2:
		if tok.Suffix.Unsigned {
			return typesys.TULLong
		}
		return typesys.TLLong
	case tok.Suffix.LongCount == 1:
		if tok.Suffix.Unsigned {
			return typesys.TULong
		}
		return typesys.TLong
	case tok.Suffix.Unsigned:
		return typesys.TUInt
	default:
		return typesys.TInt
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.tok.Kind {
	case lex.INTLIT:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IntLit{ExprBase: ast.ExprBase{Type: intLitType(tok)}, Value: tok.IntVal}, nil
	case lex.CHARLIT:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IntLit{ExprBase: ast.ExprBase{Type: typesys.TChar}, Value: tok.IntVal}, nil
	case lex.FLOATLIT:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		t := typesys.TDouble
		if tok.IsFloat {
			t = typesys.TFloat
		}
		return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: tok.FloatVal}, nil
	case lex.STRLIT:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StrLit{ExprBase: ast.ExprBase{Type: typesys.ArrayOf(typesys.TChar, len(tok.StrVal)+1)}, Value: tok.StrVal}, nil
	case lex.IDENT:
		name := p.tok.Name
		if err := p.advance(); err != nil {
			return nil, err
		}
		if v, sc := p.scope.Lookup(name); v != nil {
			return &ast.VarExpr{ExprBase: ast.ExprBase{Type: v.Type}, Name: name, Var: v, Scope: sc}, nil
		}
		if val, ok := p.ctx.LookupEnumConst(name); ok {
			return intLit(val, typesys.TInt), nil
		}
		return nil, p.semaErrorf("undeclared identifier %q", name)
	case lex.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.RPAREN); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, p.errorf("expected expression, found %s", p.tok.String())
	}
}

// constIntExpr parses a constant-expression (conditional-expression,
// per C grammar — no assignment or comma) and requires it to have
// folded down to a literal integer, for array bounds, enum values, and
// case labels (spec.md §4.3: "a dedicated evaluator that accepts only
// FIXNUM/FLONUM literals, sizeof, casts ..., and pure
// arithmetic/comparison operators" — folding happens eagerly as the
// expression is built, so by the time we get here the check is just
// "did it fold").
func (p *Parser) constIntExpr() (int64, error) {
	e, err := p.parseTernary()
	if err != nil {
		return 0, err
	}
	lit, ok := e.(*ast.IntLit)
	if !ok {
		return 0, diag.New(diag.ConstEval, p.tok.Pos, "expected a constant integer expression")
	}
	return lit.Value, nil
}

// --- call / index / member building -----------------------------------

func funcTypeOf(t *typesys.Type) (*typesys.Type, bool) {
	if t.IsFunc() {
		return t, true
	}
	if t.IsPtr() && t.Of.IsFunc() {
		return t.Of, true
	}
	return nil, false
}

func (p *Parser) parseCall(callee ast.Expr) (ast.Expr, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []ast.Expr
	if p.tok.Kind != lex.RPAREN {
		for {
			a, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.tok.Kind != lex.COMMA {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}

	ft, ok := funcTypeOf(callee.GetType())
	if !ok {
		return nil, p.semaErrorf("called object is not a function")
	}
	if ft.Params != nil {
		if len(args) < len(ft.Params) || (!ft.VaArgs && len(args) > len(ft.Params)) {
			return nil, p.semaErrorf("wrong number of arguments in call")
		}
		for i, prm := range ft.Params {
			casted, err := p.coerceAssign(prm.Type, args[i])
			if err != nil {
				return nil, err
			}
			args[i] = casted
		}
		for i := len(ft.Params); i < len(args); i++ {
			args[i] = p.defaultPromote(args[i])
		}
	} else {
		for i := range args {
			args[i] = p.defaultPromote(args[i])
		}
	}
	return &ast.CallExpr{ExprBase: ast.ExprBase{Type: ft.Of}, Callee: callee, Args: args, HiddenRet: ft.Of.IsStruct()}, nil
}

// defaultPromote applies C's default argument promotions to a variadic
// tail argument: narrower-than-int integers promote to int, float
// promotes to double.
func (p *Parser) defaultPromote(e ast.Expr) ast.Expr {
	t := e.GetType()
	if t.IsFixnum() && t.Fixnum < typesys.FInt {
		return p.implicitCast(e, typesys.TInt)
	}
	if t.IsFlonum() && t.Flonum == typesys.FFloat {
		return p.implicitCast(e, typesys.TDouble)
	}
	return e
}

func (p *Parser) buildIndex(base, idx ast.Expr) (ast.Expr, error) {
	bt := base.GetType()
	var elem *typesys.Type
	switch {
	case bt.IsArray(), bt.IsPtr():
		elem = bt.Of
	default:
		it := idx.GetType()
		if it.IsArray() || it.IsPtr() {
			base, idx = idx, base
			elem = it.Of
		} else {
			return nil, p.semaErrorf("subscripted value is not an array or pointer")
		}
	}
	return &ast.IndexExpr{ExprBase: ast.ExprBase{Type: elem}, Base: base, Index: idx}, nil
}

func (p *Parser) buildMember(base ast.Expr, name string, arrow bool) (ast.Expr, error) {
	bt := base.GetType()
	st := bt
	if arrow {
		if !bt.IsPtr() {
			return nil, p.semaErrorf("-> on non-pointer type %s", bt)
		}
		st = bt.Of
	}
	if !st.IsStruct() || st.Struct == nil {
		return nil, p.semaErrorf("member reference on non-struct type %s", st)
	}
	idx := -1
	var mtype *typesys.Type
	for i, m := range st.Struct.Members {
		if m.Name == name {
			idx = i
			mtype = m.Type
			break
		}
	}
	if idx < 0 {
		return nil, p.semaErrorf("no member named %q in %s", name, st)
	}
	return &ast.MemberExpr{ExprBase: ast.ExprBase{Type: mtype}, Base: base, Name: name, Index: idx, Arrow: arrow}, nil
}

// --- unary builders ------------------------------------------------------

func isLvalue(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.VarExpr:
		return true
	case *ast.UnaryExpr:
		return v.Op == ast.UDeref
	case *ast.MemberExpr:
		return true
	case *ast.IndexExpr:
		return true
	case *ast.CallExpr:
		return v.HiddenRet
	default:
		return false
	}
}

func isScalar(t *typesys.Type) bool { return t.IsArith() || t.IsPtr() || t.IsArray() }

func (p *Parser) buildNeg(x ast.Expr) (ast.Expr, error) {
	if !x.GetType().IsArith() {
		return nil, p.semaErrorf("operand of unary - must be arithmetic")
	}
	if lit, ok := x.(*ast.IntLit); ok {
		return intLit(-lit.Value, lit.Type), nil
	}
	if lit, ok := x.(*ast.FloatLit); ok {
		return &ast.FloatLit{ExprBase: ast.ExprBase{Type: lit.Type}, Value: -lit.Value}, nil
	}
	return &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: x.GetType()}, Op: ast.UNeg, Operand: x}, nil
}

func (p *Parser) negateInt(x ast.Expr) (ast.Expr, error) { return p.buildNeg(x) }

func (p *Parser) buildLogNot(x ast.Expr) (ast.Expr, error) {
	if !isScalar(x.GetType()) {
		return nil, p.semaErrorf("operand of ! must be scalar")
	}
	if lit, ok := x.(*ast.IntLit); ok {
		return boolLit(lit.Value == 0), nil
	}
	return &ast.UnaryExpr{ExprBase: ast.ExprBase{Type: typesys.TInt}, Op: ast.ULogNot, Operand: x}, nil
}

func (p *Parser) buildCast(t *typesys.Type, x ast.Expr) (ast.Expr, error) {
	if !typesys.CanCast(x.GetType(), t, isNullConst(x), true) {
		return nil, p.semaErrorf("invalid cast from %s to %s", x.GetType(), t)
	}
	if lit, ok := x.(*ast.IntLit); ok && t.IsArith() {
		if t.IsFlonum() {
			return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: float64(lit.Value)}, nil
		}
		return intLit(lit.Value, t), nil
	}
	if lit, ok := x.(*ast.FloatLit); ok && t.IsArith() {
		if t.IsFlonum() {
			return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: lit.Value}, nil
		}
		return intLit(int64(lit.Value), t), nil
	}
	return &ast.CastExpr{ExprBase: ast.ExprBase{Type: t}, Operand: x}, nil
}

func (p *Parser) buildTernary(cond, then, els ast.Expr) (ast.Expr, error) {
	if !isScalar(cond.GetType()) {
		return nil, p.semaErrorf("ternary condition must be scalar")
	}
	tt, et := then.GetType(), els.GetType()
	var result *typesys.Type
	switch {
	case tt.IsArith() && et.IsArith():
		result = typesys.UsualArith(tt, et)
		then = p.implicitCast(then, result)
		els = p.implicitCast(els, result)
	case (tt.IsPtr() || tt.IsArray()) && isNullConst(els):
		result = tt
	case (et.IsPtr() || et.IsArray()) && isNullConst(then):
		result = et
	case (tt.IsPtr() || tt.IsArray()) && (et.IsPtr() || et.IsArray()):
		result = tt
	default:
		if !typesys.Same(tt.Unqualified(), et.Unqualified()) {
			return nil, p.semaErrorf("incompatible types in ternary operator")
		}
		result = tt
	}
	if lit, ok := cond.(*ast.IntLit); ok {
		if lit.Value != 0 {
			return then, nil
		}
		return els, nil
	}
	return &ast.TernaryExpr{ExprBase: ast.ExprBase{Type: result}, Cond: cond, Then: then, Else: els}, nil
}

// --- assignment ------------------------------------------------------------

func (p *Parser) buildAssign(left ast.Expr, op ast.AssignOp, right ast.Expr) (ast.Expr, error) {
	if !isLvalue(left) {
		return nil, p.semaErrorf("left-hand side of assignment is not assignable")
	}
	t := left.GetType()

	if op == ast.AAssign {
		if t.IsStruct() || t.IsArray() {
			if !typesys.Same(t.Unqualified(), right.GetType().Unqualified()) {
				return nil, p.semaErrorf("incompatible types in aggregate assignment")
			}
			return &ast.AssignExpr{ExprBase: ast.ExprBase{Type: t}, Op: op, Left: left, Right: right}, nil
		}
		right2, err := p.coerceAssign(t, right)
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{ExprBase: ast.ExprBase{Type: t}, Op: op, Left: left, Right: right2}, nil
	}

	if (op == ast.AAddAssign || op == ast.ASubAssign) && (t.IsPtr() || t.IsArray()) {
		var combined ast.Expr
		var err error
		if op == ast.AAddAssign {
			combined, err = p.ptrAdd(left, right)
		} else {
			var neg ast.Expr
			neg, err = p.negateInt(right)
			if err == nil {
				combined, err = p.ptrAdd(left, neg)
			}
		}
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{ExprBase: ast.ExprBase{Type: t}, Op: ast.AAssign, Left: left, Right: combined}, nil
	}

	if !t.IsArith() {
		return nil, p.semaErrorf("invalid operand to compound assignment")
	}
	right2 := p.implicitCast(right, t)
	return &ast.AssignExpr{ExprBase: ast.ExprBase{Type: t}, Op: op, Left: left, Right: right2}, nil
}

func (p *Parser) coerceAssign(target *typesys.Type, expr ast.Expr) (ast.Expr, error) {
	st := expr.GetType()
	if typesys.Same(st.Unqualified(), target.Unqualified()) {
		return expr, nil
	}
	if !typesys.CanCast(st, target, isNullConst(expr), false) {
		return nil, p.semaErrorf("cannot assign %s to %s", st, target)
	}
	return p.implicitCast(expr, target), nil
}

func isNullConst(e ast.Expr) bool {
	lit, ok := e.(*ast.IntLit)
	return ok && lit.Value == 0
}

// implicitCast wraps e in a cast to target, folding the cast away
// immediately when e is already a literal (spec.md §4.2: "producing
// explicit CAST nodes whenever a conversion is introduced").
func (p *Parser) implicitCast(e ast.Expr, target *typesys.Type) ast.Expr {
	if typesys.Same(e.GetType().Unqualified(), target.Unqualified()) {
		return e
	}
	if lit, ok := e.(*ast.IntLit); ok && target.IsArith() {
		if target.IsFlonum() {
			return &ast.FloatLit{ExprBase: ast.ExprBase{Type: target}, Value: float64(lit.Value)}
		}
		return intLit(lit.Value, target)
	}
	if lit, ok := e.(*ast.FloatLit); ok && target.IsArith() {
		if target.IsFlonum() {
			return &ast.FloatLit{ExprBase: ast.ExprBase{Type: target}, Value: lit.Value}
		}
		return intLit(int64(lit.Value), target)
	}
	return &ast.CastExpr{ExprBase: ast.ExprBase{Type: target}, Operand: e, Implicit: true}
}

// --- binary operators, pointer arithmetic rewriting, constant folding ------

func isCmpOp(op ast.BinOp) bool {
	switch op {
	case ast.BEq, ast.BNe, ast.BLt, ast.BLe, ast.BGt, ast.BGe:
		return true
	default:
		return false
	}
}

// ptrAdd builds the PTRADD rewrite spec.md §4.3 step 5 requires for
// `ptr + int` (the IR builder applies the pointee-size scale at build
// time, spec.md §4.4).
func (p *Parser) ptrAdd(ptrE, intE ast.Expr) (ast.Expr, error) {
	elem := ptrE.GetType().Of
	sz, err := typesys.Sizeof(elem)
	if err != nil {
		return nil, p.semaErrorf("%v", err)
	}
	return &ast.BinaryExpr{ExprBase: ast.ExprBase{Type: typesys.PtrOf(elem)}, Op: ast.BPtrAdd, Left: ptrE, Right: intE, ElemSize: sz}, nil
}

func (p *Parser) ptrDiff(l, r ast.Expr) (ast.Expr, error) {
	elem := l.GetType().Of
	if !typesys.Same(elem.Unqualified(), r.GetType().Of.Unqualified()) {
		return nil, p.semaErrorf("incompatible pointer types in subtraction")
	}
	sz, err := typesys.Sizeof(elem)
	if err != nil {
		return nil, p.semaErrorf("%v", err)
	}
	return &ast.BinaryExpr{ExprBase: ast.ExprBase{Type: typesys.TLong}, Op: ast.BPtrDiff, Left: l, Right: r, ElemSize: sz}, nil
}

func (p *Parser) buildBinary(op ast.BinOp, left, right ast.Expr) (ast.Expr, error) {
	lt, rt := left.GetType(), right.GetType()

	if op == ast.BAdd {
		if lt.IsPtr() || lt.IsArray() {
			return p.ptrAdd(left, right)
		}
		if rt.IsPtr() || rt.IsArray() {
			return p.ptrAdd(right, left)
		}
	}
	if op == ast.BSub {
		if (lt.IsPtr() || lt.IsArray()) && (rt.IsPtr() || rt.IsArray()) {
			return p.ptrDiff(left, right)
		}
		if lt.IsPtr() || lt.IsArray() {
			neg, err := p.negateInt(right)
			if err != nil {
				return nil, err
			}
			return p.ptrAdd(left, neg)
		}
	}
	if isCmpOp(op) && ((lt.IsPtr() || lt.IsArray()) || (rt.IsPtr() || rt.IsArray())) {
		return &ast.BinaryExpr{ExprBase: ast.ExprBase{Type: typesys.TInt}, Op: op, Left: left, Right: right}, nil
	}

	if !lt.IsArith() || !rt.IsArith() {
		return nil, p.semaErrorf("invalid operands to binary operator")
	}
	ct := typesys.UsualArith(lt, rt)
	left2 := p.implicitCast(left, ct)
	right2 := p.implicitCast(right, ct)
	resultType := ct
	if isCmpOp(op) {
		resultType = typesys.TInt
	}

	if lf, ok := left2.(*ast.IntLit); ok {
		if rf, ok2 := right2.(*ast.IntLit); ok2 {
			if folded, ok3 := tryFoldInt(op, lf, rf, resultType); ok3 {
				return folded, nil
			}
		}
	}
	if lf, ok := left2.(*ast.FloatLit); ok {
		if rf, ok2 := right2.(*ast.FloatLit); ok2 {
			if folded, ok3 := tryFoldFloat(op, lf, rf, resultType); ok3 {
				return folded, nil
			}
		}
	}
	return &ast.BinaryExpr{ExprBase: ast.ExprBase{Type: resultType}, Op: op, Left: left2, Right: right2}, nil
}

func (p *Parser) buildLogical(op ast.BinOp, left, right ast.Expr) (ast.Expr, error) {
	if !isScalar(left.GetType()) || !isScalar(right.GetType()) {
		return nil, p.semaErrorf("operands of && / || must be scalar")
	}
	if lf, ok := left.(*ast.IntLit); ok {
		if rf, ok2 := right.(*ast.IntLit); ok2 {
			if folded, ok3 := tryFoldInt(op, lf, rf, typesys.TInt); ok3 {
				return folded, nil
			}
		}
	}
	return &ast.BinaryExpr{ExprBase: ast.ExprBase{Type: typesys.TInt}, Op: op, Left: left, Right: right}, nil
}

func intLit(v int64, t *typesys.Type) *ast.IntLit {
	return &ast.IntLit{ExprBase: ast.ExprBase{Type: t}, Value: v}
}

func boolLit(b bool) *ast.IntLit {
	if b {
		return intLit(1, typesys.TInt)
	}
	return intLit(0, typesys.TInt)
}

func tryFoldInt(op ast.BinOp, l, r *ast.IntLit, t *typesys.Type) (ast.Expr, bool) {
	a, b := l.Value, r.Value
	switch op {
	case ast.BAdd:
		return intLit(a+b, t), true
	case ast.BSub:
		return intLit(a-b, t), true
	case ast.BMul:
		return intLit(a*b, t), true
	case ast.BDiv:
		if b == 0 {
			return nil, false
		}
		return intLit(a/b, t), true
	case ast.BMod:
		if b == 0 {
			return nil, false
		}
		return intLit(a%b, t), true
	case ast.BAnd:
		return intLit(a&b, t), true
	case ast.BOr:
		return intLit(a|b, t), true
	case ast.BXor:
		return intLit(a^b, t), true
	case ast.BShl:
		return intLit(a<<uint(b), t), true
	case ast.BShr:
		return intLit(a>>uint(b), t), true
	case ast.BEq:
		return boolLit(a == b), true
	case ast.BNe:
		return boolLit(a != b), true
	case ast.BLt:
		return boolLit(a < b), true
	case ast.BLe:
		return boolLit(a <= b), true
	case ast.BGt:
		return boolLit(a > b), true
	case ast.BGe:
		return boolLit(a >= b), true
	case ast.BLogAnd:
		return boolLit(a != 0 && b != 0), true
	case ast.BLogOr:
		return boolLit(a != 0 || b != 0), true
	default:
		return nil, false
	}
}

func tryFoldFloat(op ast.BinOp, l, r *ast.FloatLit, t *typesys.Type) (ast.Expr, bool) {
	a, b := l.Value, r.Value
	switch op {
	case ast.BAdd:
		return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: a + b}, true
	case ast.BSub:
		return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: a - b}, true
	case ast.BMul:
		return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: a * b}, true
	case ast.BDiv:
		if b == 0 {
			return nil, false
		}
		return &ast.FloatLit{ExprBase: ast.ExprBase{Type: t}, Value: a / b}, true
	case ast.BEq:
		return boolLit(a == b), true
	case ast.BNe:
		return boolLit(a != b), true
	case ast.BLt:
		return boolLit(a < b), true
	case ast.BLe:
		return boolLit(a <= b), true
	case ast.BGt:
		return boolLit(a > b), true
	case ast.BGe:
		return boolLit(a >= b), true
	default:
		return nil, false
	}
}

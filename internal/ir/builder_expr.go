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

package ir

import (
	"ccgo/internal/ast"
	"ccgo/internal/diag"
	"ccgo/internal/typesys"
)

// allocTemp reserves a nameless frame slot (for ternary/&&/|| join values
// and aggregate call-return staging), the same frame region locals use.
func (b *Builder) allocTemp(size, align int) int {
	b.frameCursor -= size
	b.frameCursor = -alignUpNeg(-b.frameCursor, align)
	return b.frameCursor
}

func (b *Builder) loadFrame(offset int, t *typesys.Type) Operand {
	width, _ := typesys.Sizeof(t)
	dst := b.container.Regs.New(width, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
	b.cur.Emit(&Op{Op: OpLoad, Dst: dst, Width: width, Float: t.IsFlonum(), Extra: Extra{IsFrame: true, Offset: offset}})
	return Reg(dst)
}

func (b *Builder) leaFrame(offset int) Operand {
	dst := b.container.Regs.New(typesys.PtrSize, false, false)
	b.cur.Emit(&Op{Op: OpLea, Dst: dst, Width: typesys.PtrSize, Extra: Extra{IsFrame: true, Offset: offset}})
	return Reg(dst)
}

func (b *Builder) leaSym(sym string) Operand {
	dst := b.container.Regs.New(typesys.PtrSize, false, false)
	b.cur.Emit(&Op{Op: OpLea, Dst: dst, Width: typesys.PtrSize, Extra: Extra{Sym: sym}})
	return Reg(dst)
}

// materialize reifies o into a VReg. o is only ever an unmaterialized
// immediate here for integer operands (Imm int64); every float/double
// r-value is already a Reg by the time it reaches this function, since
// *ast.FloatLit lowers straight to a pooled, register-holding OpMovImm
// (see lowerExpr).
func (b *Builder) materialize(o Operand, isFloat, isDouble bool, width int) *VReg {
	if o.Reg != nil {
		return o.Reg
	}
	dst := b.container.Regs.New(width, isFloat, isDouble)
	b.cur.Emit(&Op{Op: OpMovImm, Dst: dst, Width: width, Float: isFloat, Extra: Extra{Imm: o.Imm}})
	return dst
}

// load reads *addr (Operand must wrap a VReg) at the given type.
func (b *Builder) load(addr Operand, t *typesys.Type) Operand {
	width, _ := typesys.Sizeof(t)
	dst := b.container.Regs.New(width, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
	b.cur.Emit(&Op{Op: OpLoad, Dst: dst, Src1: addr, Width: width, Float: t.IsFlonum()})
	return Reg(dst)
}

func (b *Builder) store(addr Operand, t *typesys.Type, val Operand) {
	width, _ := typesys.Sizeof(t)
	b.cur.Emit(&Op{Op: OpStore, Src1: addr, Src2: val, Width: width, Float: t.IsFlonum()})
}

func (b *Builder) addOffset(addr Operand, off int) Operand {
	if off == 0 {
		return addr
	}
	base := b.materialize(addr, false, false, typesys.PtrSize)
	dst := b.container.Regs.New(typesys.PtrSize, false, false)
	b.cur.Emit(&Op{Op: OpAdd, Dst: dst, Src1: Reg(base), Src2: Imm(int64(off)), Width: typesys.PtrSize})
	return Reg(dst)
}

// copyAggregate copies sizeof(t) bytes member-by-member from *src to *dst,
// recursing into nested structs/arrays, matching the original compiler's
// member-wise struct-assignment lowering (struct assignment has no single
// IR op; it is always expanded to scalar loads/stores).
func (b *Builder) copyAggregate(dst, src Operand, t *typesys.Type) error {
	switch {
	case t.IsStruct():
		if t.Struct == nil || !t.Struct.Sized() {
			return diag.New(diag.IR, diag.Pos{}, "copy of incomplete struct type %s", t)
		}
		for _, m := range t.Struct.Members {
			md, ms := b.addOffset(dst, m.Offset), b.addOffset(src, m.Offset)
			if err := b.copyAggregate(md, ms, m.Type); err != nil {
				return err
			}
		}
		return nil
	case t.IsArray():
		elemSize, err := typesys.Sizeof(t.Of)
		if err != nil {
			return err
		}
		for i := 0; i < t.ElemLen; i++ {
			off := i * elemSize
			if err := b.copyAggregate(b.addOffset(dst, off), b.addOffset(src, off), t.Of); err != nil {
				return err
			}
		}
		return nil
	default:
		val := b.load(src, t)
		b.store(dst, t, val)
		return nil
	}
}

// lowerLvalue evaluates expr for its address (spec.md §4.4: "A left-value
// evaluation yields a VReg holding an address").
func (b *Builder) lowerLvalue(expr ast.Expr) (Operand, error) {
	switch e := expr.(type) {
	case *ast.VarExpr:
		return b.varAddr(e.Var), nil
	case *ast.UnaryExpr:
		if e.Op == ast.UDeref {
			return b.lowerExpr(e.Operand)
		}
	case *ast.MemberExpr:
		var base Operand
		var err error
		if e.Arrow {
			base, err = b.lowerExpr(e.Base)
		} else {
			base, err = b.lowerLvalue(e.Base)
		}
		if err != nil {
			return Operand{}, err
		}
		bt := e.Base.GetType()
		if e.Arrow {
			bt = bt.Of
		}
		if bt.Struct == nil || e.Index >= len(bt.Struct.Members) {
			return Operand{}, diag.New(diag.IR, diag.Pos{}, "member %q has no resolved offset", e.Name)
		}
		return b.addOffset(base, bt.Struct.Members[e.Index].Offset), nil
	case *ast.IndexExpr:
		return b.indexAddr(e)
	case *ast.CallExpr:
		if e.HiddenRet {
			return b.lowerAggregateCall(e)
		}
	case *ast.StrLit:
		return b.leaSym(b.strings.Label(e)), nil
	}
	return Operand{}, diag.New(diag.IR, diag.Pos{}, "expression %T is not an lvalue", expr)
}

func (b *Builder) varAddr(v *ast.VarInfo) Operand {
	switch v.Variant {
	case ast.VarLocal:
		return b.leaFrame(v.Frame.Offset)
	case ast.VarStaticLocal:
		return b.leaSym(v.StaticGlobal.Name)
	default:
		return b.leaSym(v.Name)
	}
}

func (b *Builder) indexAddr(e *ast.IndexExpr) (Operand, error) {
	bt := e.Base.GetType()
	var base Operand
	var err error
	var elemType *typesys.Type
	if bt.IsArray() {
		base, err = b.lowerLvalue(e.Base)
		elemType = bt.Of
	} else {
		base, err = b.lowerExpr(e.Base)
		elemType = bt.Of
	}
	if err != nil {
		return Operand{}, err
	}
	idx, err := b.lowerExpr(e.Index)
	if err != nil {
		return Operand{}, err
	}
	elemSize, err := typesys.Sizeof(elemType)
	if err != nil {
		return Operand{}, err
	}
	idxReg := b.materialize(idx, false, false, 8)
	scaled := idxReg
	if elemSize != 1 {
		scaled = b.container.Regs.New(8, false, false)
		b.cur.Emit(&Op{Op: OpMul, Dst: scaled, Src1: Reg(idxReg), Src2: Imm(int64(elemSize)), Width: 8})
	}
	baseReg := b.materialize(base, false, false, typesys.PtrSize)
	dst := b.container.Regs.New(typesys.PtrSize, false, false)
	b.cur.Emit(&Op{Op: OpAdd, Dst: dst, Src1: Reg(baseReg), Src2: Reg(scaled), Width: typesys.PtrSize})
	return Reg(dst), nil
}

// lowerExpr evaluates expr for its value (spec.md §4.4: "a right-value
// yields a VReg holding the value").
func (b *Builder) lowerExpr(expr ast.Expr) (Operand, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return Imm(e.Value), nil
	case *ast.FloatLit:
		t := e.GetType()
		width, _ := typesys.Sizeof(t)
		isDouble := t.Flonum == typesys.FDouble
		label := b.floats.Label(e.Value, isDouble)
		dst := b.container.Regs.New(width, true, isDouble)
		b.cur.Emit(&Op{Op: OpMovImm, Dst: dst, Width: width, Float: true, Extra: Extra{Sym: label}})
		return Reg(dst), nil
	case *ast.StrLit:
		return b.leaSym(b.strings.Label(e)), nil
	case *ast.VarExpr:
		t := e.GetType()
		if t.IsArray() || t.IsFunc() {
			return b.varAddr(e.Var), nil
		}
		return b.load(b.varAddr(e.Var), t), nil
	case *ast.UnaryExpr:
		return b.lowerUnary(e)
	case *ast.CastExpr:
		return b.lowerCast(e)
	case *ast.BinaryExpr:
		return b.lowerBinary(e)
	case *ast.AssignExpr:
		return b.lowerAssign(e)
	case *ast.CommaExpr:
		if _, err := b.lowerExpr(e.Left); err != nil {
			return Operand{}, err
		}
		return b.lowerExpr(e.Right)
	case *ast.TernaryExpr:
		return b.lowerTernary(e)
	case *ast.MemberExpr:
		addr, err := b.lowerLvalue(e)
		if err != nil {
			return Operand{}, err
		}
		t := e.GetType()
		if t.IsStruct() || t.IsArray() {
			return addr, nil
		}
		return b.load(addr, t), nil
	case *ast.IndexExpr:
		addr, err := b.lowerLvalue(e)
		if err != nil {
			return Operand{}, err
		}
		t := e.GetType()
		if t.IsStruct() || t.IsArray() {
			return addr, nil
		}
		return b.load(addr, t), nil
	case *ast.CallExpr:
		return b.lowerCall(e)
	default:
		return Operand{}, diag.New(diag.IR, diag.Pos{}, "unhandled expression node %T", expr)
	}
}

func (b *Builder) lowerUnary(e *ast.UnaryExpr) (Operand, error) {
	t := e.GetType()
	width, _ := typesys.Sizeof(t)
	switch e.Op {
	case ast.URef:
		return b.lowerLvalue(e.Operand)
	case ast.UDeref:
		addr, err := b.lowerExpr(e.Operand)
		if err != nil {
			return Operand{}, err
		}
		if t.IsStruct() || t.IsArray() {
			return addr, nil
		}
		return b.load(addr, t), nil
	case ast.UNeg:
		v, err := b.lowerExpr(e.Operand)
		if err != nil {
			return Operand{}, err
		}
		reg := b.materialize(v, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble, width)
		dst := b.container.Regs.New(width, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
		b.cur.Emit(&Op{Op: OpNeg, Dst: dst, Src1: Reg(reg), Width: width, Float: t.IsFlonum()})
		return Reg(dst), nil
	case ast.ULogNot:
		v, err := b.lowerExpr(e.Operand)
		if err != nil {
			return Operand{}, err
		}
		dst := b.container.Regs.New(4, false, false)
		b.cur.Emit(&Op{Op: OpLogNot, Dst: dst, Src1: v, Width: 4})
		return Reg(dst), nil
	case ast.UBitNot:
		v, err := b.lowerExpr(e.Operand)
		if err != nil {
			return Operand{}, err
		}
		dst := b.container.Regs.New(width, false, false)
		b.cur.Emit(&Op{Op: OpNot, Dst: dst, Src1: v, Width: width})
		return Reg(dst), nil
	case ast.UPreInc, ast.UPreDec, ast.UPostInc, ast.UPostDec:
		addr, err := b.lowerLvalue(e.Operand)
		if err != nil {
			return Operand{}, err
		}
		old := b.load(addr, t)
		step := int64(1)
		if pt := e.Operand.GetType(); pt.IsPtr() {
			sz, _ := typesys.Sizeof(pt.Of)
			step = int64(sz)
		}
		if e.Op == ast.UPreDec || e.Op == ast.UPostDec {
			step = -step
		}
		oldReg := b.materialize(old, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble, width)
		newReg := b.container.Regs.New(width, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
		b.cur.Emit(&Op{Op: OpAdd, Dst: newReg, Src1: Reg(oldReg), Src2: Imm(step), Width: width, Float: t.IsFlonum()})
		b.store(addr, t, Reg(newReg))
		if e.Op == ast.UPreInc || e.Op == ast.UPreDec {
			return Reg(newReg), nil
		}
		return Reg(oldReg), nil
	default:
		return Operand{}, diag.New(diag.IR, diag.Pos{}, "unhandled unary op %d", e.Op)
	}
}

func (b *Builder) lowerCast(e *ast.CastExpr) (Operand, error) {
	from := e.Operand.GetType()
	to := e.GetType()
	v, err := b.lowerExpr(e.Operand)
	if err != nil {
		return Operand{}, err
	}
	fw, _ := typesys.Sizeof(from)
	tw, _ := typesys.Sizeof(to)
	if from.IsFlonum() == to.IsFlonum() && fw == tw && from.IsUnsigned() == to.IsUnsigned() {
		return v, nil // identical machine representation; no-op cast
	}
	src := b.materialize(v, from.IsFlonum(), from.IsFlonum() && from.Flonum == typesys.FDouble, fw)
	dst := b.container.Regs.New(tw, to.IsFlonum(), to.IsFlonum() && to.Flonum == typesys.FDouble)
	b.cur.Emit(&Op{
		Op: OpCast, Dst: dst, Src1: Reg(src), Width: tw,
		Extra: Extra{FromWidth: fw, ToWidth: tw, FromFloat: from.IsFlonum(), ToFloat: to.IsFlonum(), Unsigned: from.IsUnsigned()},
	})
	return Reg(dst), nil
}

var binOpMap = map[ast.BinOp]Opcode{
	ast.BAdd: OpAdd, ast.BSub: OpSub, ast.BMul: OpMul, ast.BDiv: OpDiv, ast.BMod: OpMod,
	ast.BAnd: OpAnd, ast.BOr: OpOr, ast.BXor: OpXor, ast.BShl: OpShl, ast.BShr: OpShr,
}

var cmpOpMap = map[ast.BinOp]Cond{
	ast.BEq: CondEQ, ast.BNe: CondNE, ast.BLt: CondLT, ast.BLe: CondLE, ast.BGt: CondGT, ast.BGe: CondGE,
}

func (b *Builder) lowerBinary(e *ast.BinaryExpr) (Operand, error) {
	switch e.Op {
	case ast.BLogAnd, ast.BLogOr:
		return b.lowerLogical(e)
	case ast.BPtrAdd:
		left, err := b.lowerExpr(e.Left)
		if err != nil {
			return Operand{}, err
		}
		right, err := b.lowerExpr(e.Right)
		if err != nil {
			return Operand{}, err
		}
		rightReg := b.materialize(right, false, false, 8)
		scaled := rightReg
		if e.ElemSize != 1 {
			scaled = b.container.Regs.New(8, false, false)
			b.cur.Emit(&Op{Op: OpMul, Dst: scaled, Src1: Reg(rightReg), Src2: Imm(int64(e.ElemSize)), Width: 8})
		}
		leftReg := b.materialize(left, false, false, typesys.PtrSize)
		dst := b.container.Regs.New(typesys.PtrSize, false, false)
		b.cur.Emit(&Op{Op: OpAdd, Dst: dst, Src1: Reg(leftReg), Src2: Reg(scaled), Width: typesys.PtrSize})
		return Reg(dst), nil
	case ast.BPtrDiff:
		left, err := b.lowerExpr(e.Left)
		if err != nil {
			return Operand{}, err
		}
		right, err := b.lowerExpr(e.Right)
		if err != nil {
			return Operand{}, err
		}
		diffReg := b.container.Regs.New(8, false, false)
		b.cur.Emit(&Op{Op: OpSub, Dst: diffReg, Src1: left, Src2: right, Width: 8})
		dst := b.container.Regs.New(8, false, false)
		b.cur.Emit(&Op{Op: OpDiv, Dst: dst, Src1: Reg(diffReg), Src2: Imm(int64(e.ElemSize)), Width: 8})
		return Reg(dst), nil
	}

	left, err := b.lowerExpr(e.Left)
	if err != nil {
		return Operand{}, err
	}
	right, err := b.lowerExpr(e.Right)
	if err != nil {
		return Operand{}, err
	}
	t := e.GetType()
	width, _ := typesys.Sizeof(e.Left.GetType())
	if cond, ok := cmpOpMap[e.Op]; ok {
		dst := b.container.Regs.New(4, false, false)
		b.cur.Emit(&Op{Op: OpCmpSet, Dst: dst, Src1: left, Src2: right, Width: width, Float: e.Left.GetType().IsFlonum(), Extra: Extra{Cond: cond, Unsigned: e.Left.GetType().IsUnsigned()}})
		return Reg(dst), nil
	}
	opc, ok := binOpMap[e.Op]
	if !ok {
		return Operand{}, diag.New(diag.IR, diag.Pos{}, "unhandled binary op %d", e.Op)
	}
	outWidth, _ := typesys.Sizeof(t)
	dst := b.container.Regs.New(outWidth, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
	b.cur.Emit(&Op{Op: opc, Dst: dst, Src1: left, Src2: right, Width: outWidth, Float: t.IsFlonum(), Extra: Extra{Unsigned: t.IsUnsigned()}})
	return Reg(dst), nil
}

// lowerLogical lowers && and || without a phi node: a frame temp holds the
// 0/1 result, set by whichever branch actually runs, then reloaded at the
// join point (spec.md §4.4: "Short-circuit operators ... lower to
// branching between synthesized blocks").
func (b *Builder) lowerLogical(e *ast.BinaryExpr) (Operand, error) {
	slot := b.allocTemp(4, 4)
	rhsBlk := b.container.NewBlock(b.freshLabel("logic_rhs"))
	shortBlk := b.container.NewBlock(b.freshLabel("logic_short"))
	joinBlk := b.container.NewBlock(b.freshLabel("logic_join"))

	if e.Op == ast.BLogAnd {
		if err := b.lowerCond(e.Left, rhsBlk, shortBlk); err != nil {
			return Operand{}, err
		}
	} else {
		if err := b.lowerCond(e.Left, shortBlk, rhsBlk); err != nil {
			return Operand{}, err
		}
	}

	b.cur = shortBlk
	shortVal := int64(0)
	if e.Op == ast.BLogOr {
		shortVal = 1
	}
	b.storeFrame(slot, typesys.TInt, Imm(shortVal))
	b.jump(joinBlk)

	b.cur = rhsBlk
	rv, err := b.lowerExpr(e.Right)
	if err != nil {
		return Operand{}, err
	}
	nz := b.container.Regs.New(4, false, false)
	b.cur.Emit(&Op{Op: OpCmpSet, Dst: nz, Src1: rv, Src2: Imm(0), Width: 4, Extra: Extra{Cond: CondNE}})
	b.storeFrame(slot, typesys.TInt, Reg(nz))
	b.jump(joinBlk)

	b.cur = joinBlk
	return b.loadFrame(slot, typesys.TInt), nil
}

func (b *Builder) lowerTernary(e *ast.TernaryExpr) (Operand, error) {
	t := e.GetType()
	width, _ := typesys.Sizeof(t)
	slot := b.allocTemp(width, width)

	thenBlk := b.container.NewBlock(b.freshLabel("tern_then"))
	elseBlk := b.container.NewBlock(b.freshLabel("tern_else"))
	joinBlk := b.container.NewBlock(b.freshLabel("tern_join"))

	if err := b.lowerCond(e.Cond, thenBlk, elseBlk); err != nil {
		return Operand{}, err
	}

	b.cur = thenBlk
	tv, err := b.lowerExpr(e.Then)
	if err != nil {
		return Operand{}, err
	}
	b.storeFrame(slot, t, tv)
	b.jump(joinBlk)

	b.cur = elseBlk
	ev, err := b.lowerExpr(e.Else)
	if err != nil {
		return Operand{}, err
	}
	b.storeFrame(slot, t, ev)
	b.jump(joinBlk)

	b.cur = joinBlk
	return b.loadFrame(slot, t), nil
}

func (b *Builder) lowerAssign(e *ast.AssignExpr) (Operand, error) {
	addr, err := b.lowerLvalue(e.Left)
	if err != nil {
		return Operand{}, err
	}
	t := e.Left.GetType()
	if e.Op == ast.AAssign {
		if t.IsStruct() || t.IsArray() {
			src, err := b.lowerLvalue(e.Right)
			if err != nil {
				return Operand{}, err
			}
			if err := b.copyAggregate(addr, src, t); err != nil {
				return Operand{}, err
			}
			return addr, nil
		}
		val, err := b.lowerExpr(e.Right)
		if err != nil {
			return Operand{}, err
		}
		b.store(addr, t, val)
		return val, nil
	}

	old := b.load(addr, t)
	rhs, err := b.lowerExpr(e.Right)
	if err != nil {
		return Operand{}, err
	}
	opc, ok := map[ast.AssignOp]Opcode{
		ast.AAddAssign: OpAdd, ast.ASubAssign: OpSub, ast.AMulAssign: OpMul, ast.ADivAssign: OpDiv,
		ast.AModAssign: OpMod, ast.AAndAssign: OpAnd, ast.AOrAssign: OpOr, ast.AXorAssign: OpXor,
		ast.AShlAssign: OpShl, ast.AShrAssign: OpShr,
	}[e.Op]
	if !ok {
		return Operand{}, diag.New(diag.IR, diag.Pos{}, "unhandled compound assignment op %d", e.Op)
	}
	width, _ := typesys.Sizeof(t)
	dst := b.container.Regs.New(width, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
	b.cur.Emit(&Op{Op: opc, Dst: dst, Src1: old, Src2: rhs, Width: width, Float: t.IsFlonum(), Extra: Extra{Unsigned: t.IsUnsigned()}})
	b.store(addr, t, Reg(dst))
	return Reg(dst), nil
}

// lowerCond lowers expr as a branch condition directly into trueBlk/
// falseBlk, short-circuiting &&/|| and ! without ever materializing an
// intermediate 0/1 value, matching spec.md §4.4.
func (b *Builder) lowerCond(expr ast.Expr, trueBlk, falseBlk *BasicBlock) error {
	switch e := expr.(type) {
	case *ast.BinaryExpr:
		if e.Op == ast.BLogAnd {
			mid := b.container.NewBlock(b.freshLabel("and_mid"))
			if err := b.lowerCond(e.Left, mid, falseBlk); err != nil {
				return err
			}
			b.cur = mid
			return b.lowerCond(e.Right, trueBlk, falseBlk)
		}
		if e.Op == ast.BLogOr {
			mid := b.container.NewBlock(b.freshLabel("or_mid"))
			if err := b.lowerCond(e.Left, trueBlk, mid); err != nil {
				return err
			}
			b.cur = mid
			return b.lowerCond(e.Right, trueBlk, falseBlk)
		}
	case *ast.UnaryExpr:
		if e.Op == ast.ULogNot {
			return b.lowerCond(e.Operand, falseBlk, trueBlk)
		}
	}
	val, err := b.lowerExpr(expr)
	if err != nil {
		return err
	}
	b.cur.AddSucc(trueBlk)
	b.cur.AddSucc(falseBlk)
	b.cur.Emit(&Op{Op: OpJcc, Src1: val, Extra: Extra{Target: trueBlk}})
	b.cur.Emit(&Op{Op: OpJmp, Extra: Extra{Target: falseBlk}})
	return nil
}

// lowerAggregateCall evaluates a struct/union-returning call by staging a
// temp frame slot, passing its address as the hidden first argument, and
// returning that slot's address as the call's aggregate "value" (spec.md
// §4.4).
func (b *Builder) lowerAggregateCall(e *ast.CallExpr) (Operand, error) {
	t := e.GetType()
	size, err := typesys.Sizeof(t)
	if err != nil {
		return Operand{}, err
	}
	align, _ := typesys.Alignof(t)
	slot := b.allocTemp(size, align)
	hiddenAddr := b.leaFrame(slot)

	args := []*VReg{b.materialize(hiddenAddr, false, false, typesys.PtrSize)}
	for _, a := range e.Args {
		v, err := b.lowerExpr(a)
		if err != nil {
			return Operand{}, err
		}
		at := a.GetType()
		aw, _ := typesys.Sizeof(at)
		args = append(args, b.materialize(v, at.IsFlonum(), at.IsFlonum() && at.Flonum == typesys.FDouble, aw))
	}

	call := &Op{Op: OpCall, Width: size}
	if err := b.setCallee(call, e.Callee); err != nil {
		return Operand{}, err
	}
	call.Extra.Args = args
	b.cur.Emit(call)
	return b.leaFrame(slot), nil
}

func (b *Builder) setCallee(call *Op, callee ast.Expr) error {
	if v, ok := callee.(*ast.VarExpr); ok && v.GetType().IsFunc() {
		call.Extra.Sym = v.Name
		return nil
	}
	reg, err := b.lowerExpr(callee)
	if err != nil {
		return err
	}
	call.Extra.Callee = b.materialize(reg, false, false, typesys.PtrSize)
	return nil
}

func (b *Builder) lowerCall(e *ast.CallExpr) (Operand, error) {
	if e.HiddenRet {
		addr, err := b.lowerAggregateCall(e)
		if err != nil {
			return Operand{}, err
		}
		return addr, nil
	}

	args := make([]*VReg, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := b.lowerExpr(a)
		if err != nil {
			return Operand{}, err
		}
		at := a.GetType()
		aw, _ := typesys.Sizeof(at)
		args = append(args, b.materialize(v, at.IsFlonum(), at.IsFlonum() && at.Flonum == typesys.FDouble, aw))
	}

	t := e.GetType()
	call := &Op{Op: OpCall}
	if err := b.setCallee(call, e.Callee); err != nil {
		return Operand{}, err
	}
	call.Extra.Args = args
	if !t.IsVoid() {
		width, _ := typesys.Sizeof(t)
		call.Dst = b.container.Regs.New(width, t.IsFlonum(), t.IsFlonum() && t.Flonum == typesys.FDouble)
		call.Width = width
		call.Float = t.IsFlonum()
	}
	b.cur.Emit(call)
	if call.Dst == nil {
		return Operand{}, nil
	}
	return Reg(call.Dst), nil
}

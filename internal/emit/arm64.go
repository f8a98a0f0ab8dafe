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

package emit

import (
	"fmt"
	"strings"

	"ccgo/internal/diag"
	"ccgo/internal/ir"
	"ccgo/internal/target"
)

// arm64Func emits one function's body in AAPCS64 assembler syntax,
// mirroring amd64Func's structure: walk blocks in layout order, reload
// spilled operands through the two reserved scratch registers (X16/X17,
// D30/D31), re-spill a spilled destination immediately after each op.
type arm64Func struct {
	tgt *target.Target
	c   *ir.BBContainer
	w   *strings.Builder
}

func emitARM64Func(w *strings.Builder, tgt *target.Target, c *ir.BBContainer) error {
	f := &arm64Func{tgt: tgt, c: c, w: w}
	return f.run()
}

func (f *arm64Func) printf(format string, args ...any) {
	fmt.Fprintf(f.w, format, args...)
}

func (f *arm64Func) run() error {
	name := f.tgt.Mangle(f.c.FuncName)
	f.printf(".globl %s\n", name)
	f.printf("%s:\n", name)
	f.prologue()
	for _, b := range f.c.Blocks {
		f.printf("%s:\n", b.Label)
		for _, op := range b.Ops {
			if err := f.op(op); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *arm64Func) prologue() {
	total := f.c.FrameSize + 16 // frame record (fp,lr)
	total = (total + 15) &^ 15
	f.printf("\tstp x29, x30, [sp, #-%d]!\n", total)
	f.printf("\tmov x29, sp\n")
	off := 16
	for _, r := range f.c.UsedCalleeSaved[0] {
		f.printf("\tstr %s, [sp, #%d]\n", f.tgt.IntRegName(r, 8), off)
		off += 8
	}
	for _, r := range f.c.UsedCalleeSaved[1] {
		f.printf("\tstr d%d, [sp, #%d]\n", r, off)
		off += 8
	}
}

func (f *arm64Func) epilogue() {
	total := f.c.FrameSize + 16
	total = (total + 15) &^ 15
	off := 16
	for _, r := range f.c.UsedCalleeSaved[0] {
		f.printf("\tldr %s, [sp, #%d]\n", f.tgt.IntRegName(r, 8), off)
		off += 8
	}
	for _, r := range f.c.UsedCalleeSaved[1] {
		f.printf("\tldr d%d, [sp, #%d]\n", r, off)
		off += 8
	}
	f.printf("\tldp x29, x30, [sp], #%d\n", total)
	f.printf("\tret\n")
}

func (f *arm64Func) intScratch(i, width int) string {
	if width == 8 {
		return f.tgt.ScratchInt[i]
	}
	return "w" + strings.TrimPrefix(f.tgt.ScratchInt[i], "x")
}

func (f *arm64Func) floatScratch(i int) string { return f.tgt.ScratchFloat[i] }

func (f *arm64Func) load(v *ir.VReg, scratch int) string {
	if v.IsFloat {
		s := f.floatScratch(scratch)
		if v.Spilled {
			f.printf("\tldr %s, [x29, #%d]\n", s, v.FrameOffset)
			return s
		}
		return f.tgt.FloatRegName(v.PhysReg, v.IsDouble)
	}
	if v.Spilled {
		s := f.intScratch(scratch, v.Width)
		f.printf("\tldr %s, [x29, #%d]\n", s, v.FrameOffset)
		return s
	}
	return f.tgt.IntRegName(v.PhysReg, v.Width)
}

func (f *arm64Func) store(v *ir.VReg, scratch int) {
	if !v.Spilled {
		return
	}
	if v.IsFloat {
		f.printf("\tstr %s, [x29, #%d]\n", f.floatScratch(scratch), v.FrameOffset)
		return
	}
	f.printf("\tstr %s, [x29, #%d]\n", f.intScratch(scratch, v.Width), v.FrameOffset)
}

func (f *arm64Func) dstReg(v *ir.VReg) string {
	if v.Spilled {
		if v.IsFloat {
			return f.floatScratch(0)
		}
		return f.intScratch(0, v.Width)
	}
	if v.IsFloat {
		return f.tgt.FloatRegName(v.PhysReg, v.IsDouble)
	}
	return f.tgt.IntRegName(v.PhysReg, v.Width)
}

func (f *arm64Func) operand(o ir.Operand, scratch int) string {
	if o.IsImm {
		return fmt.Sprintf("#%d", o.Imm)
	}
	return f.load(o.Reg, scratch)
}

func (f *arm64Func) op(op *ir.Op) error {
	switch op.Op {
	case ir.OpLabel, ir.OpAsm:
		if op.Op == ir.OpAsm {
			f.printf("# ASM {{\n%s\n# }}\n", op.Extra.Text)
		}
		return nil
	case ir.OpLoad:
		base := "x29"
		if !op.Extra.IsFrame {
			base = f.load(op.Src1.Reg, 1)
		}
		dst := f.dstReg(op.Dst)
		f.printf("\t%s %s, [%s, #%d]\n", loadMnem(op.Width, op.Float, op.Extra.Unsigned), dst, base, op.Extra.Offset)
		f.store(op.Dst, 0)
	case ir.OpStore:
		base := "x29"
		if !op.Extra.IsFrame {
			base = f.load(op.Src1.Reg, 1)
		}
		val := f.operand(op.Src2, 0)
		f.printf("\t%s %s, [%s, #%d]\n", storeMnem(op.Width, op.Float), val, base, op.Extra.Offset)
	case ir.OpLea:
		dst := f.dstReg(op.Dst)
		if op.Extra.IsFrame {
			f.printf("\tadd %s, x29, #%d\n", dst, op.Extra.Offset)
		} else {
			sym := f.tgt.Mangle(op.Extra.Sym)
			f.printf("\tadrp %s, %s\n", dst, sym)
			f.printf("\tadd %s, %s, #:lo12:%s\n", dst, dst, sym)
		}
		f.store(op.Dst, 0)
	case ir.OpMovImm:
		dst := f.dstReg(op.Dst)
		if op.Float {
			sym := f.tgt.Mangle(op.Extra.Sym)
			addr := f.intScratch(0, 8)
			f.printf("\tadrp %s, %s\n", addr, sym)
			f.printf("\tldr %s, [%s, #:lo12:%s]\n", dst, addr, sym)
		} else {
			f.printf("\tmov %s, #%d\n", dst, op.Extra.Imm)
		}
		f.store(op.Dst, 0)
	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpMul:
		f.binArith(op)
	case ir.OpDiv:
		f.div(op)
	case ir.OpMod:
		f.mod(op)
	case ir.OpShl, ir.OpShr:
		f.shift(op)
	case ir.OpNeg:
		a := f.operand(op.Src1, 0)
		dst := f.dstReg(op.Dst)
		if op.Float {
			f.printf("\tfneg %s, %s\n", dst, a)
		} else {
			f.printf("\tneg %s, %s\n", dst, stripHash(a))
		}
		f.store(op.Dst, 0)
	case ir.OpNot:
		a := f.operand(op.Src1, 0)
		dst := f.dstReg(op.Dst)
		f.printf("\tmvn %s, %s\n", dst, stripHash(a))
		f.store(op.Dst, 0)
	case ir.OpLogNot:
		f.logNot(op)
	case ir.OpCmpSet:
		f.cmpSet(op)
	case ir.OpCast:
		f.cast(op)
	case ir.OpJmp:
		f.printf("\tb %s\n", op.Extra.Target.Label)
	case ir.OpJcc:
		r := f.load(op.Src1.Reg, 1)
		f.printf("\tcbnz %s, %s\n", r, op.Extra.Target.Label)
	case ir.OpCall:
		f.call(op)
	case ir.OpRet:
		if op.Src1.Reg != nil || op.Src1.IsImm {
			f.moveToReturn(op)
		}
		f.epilogue()
	default:
		return diag.New(diag.Emit, diag.Pos{}, "unhandled opcode %s reached the arm64 backend", op.Op)
	}
	return nil
}

func stripHash(s string) string { return strings.TrimPrefix(s, "#") }

func loadMnem(width int, isFloat, unsigned bool) string {
	if isFloat {
		return "ldr"
	}
	switch width {
	case 1:
		if unsigned {
			return "ldrb"
		}
		return "ldrsb"
	case 2:
		if unsigned {
			return "ldrh"
		}
		return "ldrsh"
	default:
		return "ldr"
	}
}

func storeMnem(width int, isFloat bool) string {
	if isFloat {
		return "str"
	}
	switch width {
	case 1:
		return "strb"
	case 2:
		return "strh"
	default:
		return "str"
	}
}

func (f *arm64Func) binArith(op *ir.Op) {
	a := f.operand(op.Src1, 0)
	b := f.operand(op.Src2, 1)
	dst := f.dstReg(op.Dst)
	if op.Float {
		mnem := map[ir.Opcode]string{ir.OpAdd: "fadd", ir.OpSub: "fsub", ir.OpMul: "fmul"}[op.Op]
		f.printf("\t%s %s, %s, %s\n", mnem, dst, a, b)
		f.store(op.Dst, 0)
		return
	}
	mnem := map[ir.Opcode]string{ir.OpAdd: "add", ir.OpSub: "sub", ir.OpAnd: "and", ir.OpOr: "orr", ir.OpXor: "eor", ir.OpMul: "mul"}[op.Op]
	if op.Op == ir.OpMul && (op.Src1.IsImm || op.Src2.IsImm) {
		// mul has no immediate form; stage the constant through scratch.
		imm := b
		reg := a
		if op.Src1.IsImm {
			imm, reg = a, b
		}
		f.printf("\tmov %s, %s\n", f.intScratch(1, op.Dst.Width), imm)
		f.printf("\tmul %s, %s, %s\n", dst, reg, f.intScratch(1, op.Dst.Width))
		f.store(op.Dst, 0)
		return
	}
	f.printf("\t%s %s, %s, %s\n", mnem, dst, a, b)
	f.store(op.Dst, 0)
}

func (f *arm64Func) div(op *ir.Op) {
	a := f.operand(op.Src1, 0)
	b := f.operand(op.Src2, 1)
	dst := f.dstReg(op.Dst)
	if op.Float {
		f.printf("\tfdiv %s, %s, %s\n", dst, a, b)
		f.store(op.Dst, 0)
		return
	}
	mnem := "sdiv"
	if op.Extra.Unsigned {
		mnem = "udiv"
	}
	f.printf("\t%s %s, %s, %s\n", mnem, dst, a, b)
	f.store(op.Dst, 0)
}

// mod has no native instruction: q = a/b; r = a - q*b (msub).
func (f *arm64Func) mod(op *ir.Op) {
	a := f.operand(op.Src1, 0)
	b := f.operand(op.Src2, 1)
	scratch := f.intScratch(0, op.Dst.Width)
	mnem := "sdiv"
	if op.Extra.Unsigned {
		mnem = "udiv"
	}
	f.printf("\t%s %s, %s, %s\n", mnem, scratch, a, b)
	dst := f.dstReg(op.Dst)
	f.printf("\tmsub %s, %s, %s, %s\n", dst, scratch, b, a)
	f.store(op.Dst, 0)
}

func (f *arm64Func) shift(op *ir.Op) {
	a := f.operand(op.Src1, 0)
	b := f.operand(op.Src2, 1)
	dst := f.dstReg(op.Dst)
	mnem := "lsl"
	if op.Op == ir.OpShr {
		mnem = "asr"
		if op.Extra.Unsigned {
			mnem = "lsr"
		}
	}
	f.printf("\t%s %s, %s, %s\n", mnem, dst, a, b)
	f.store(op.Dst, 0)
}

func (f *arm64Func) logNot(op *ir.Op) {
	a := f.load(op.Src1.Reg, 0)
	f.printf("\tcmp %s, #0\n", a)
	dst := f.dstReg(op.Dst)
	f.printf("\tcset %s, eq\n", dst)
	f.store(op.Dst, 0)
}

var arm64Cond = map[ir.Cond]string{
	ir.CondEQ: "eq", ir.CondNE: "ne",
	ir.CondLT: "lt", ir.CondLE: "le", ir.CondGT: "gt", ir.CondGE: "ge",
}
var arm64CondU = map[ir.Cond]string{
	ir.CondEQ: "eq", ir.CondNE: "ne",
	ir.CondLT: "lo", ir.CondLE: "ls", ir.CondGT: "hi", ir.CondGE: "hs",
}

func (f *arm64Func) cmpSet(op *ir.Op) {
	a := f.operand(op.Src1, 0)
	b := f.operand(op.Src2, 1)
	if op.Float {
		f.printf("\tfcmp %s, %s\n", a, b)
	} else {
		f.printf("\tcmp %s, %s\n", a, b)
	}
	tbl := arm64Cond
	if op.Extra.Unsigned || op.Float {
		tbl = arm64CondU
	}
	dst := f.dstReg(op.Dst)
	f.printf("\tcset %s, %s\n", dst, tbl[op.Extra.Cond])
	f.store(op.Dst, 0)
}

func (f *arm64Func) cast(op *ir.Op) {
	x := op.Extra
	dst := f.dstReg(op.Dst)
	src := f.load(op.Src1.Reg, 0)
	switch {
	case x.FromFloat && x.ToFloat:
		if x.FromWidth == x.ToWidth {
			if dst != src {
				f.printf("\tfmov %s, %s\n", dst, src)
			}
		} else if x.ToWidth == 8 {
			f.printf("\tfcvt %s, %s\n", dst, src)
		} else {
			f.printf("\tfcvt %s, %s\n", dst, src)
		}
	case x.FromFloat && !x.ToFloat:
		cvt := "fcvtzs"
		if x.Unsigned {
			cvt = "fcvtzu"
		}
		f.printf("\t%s %s, %s\n", cvt, f.tgt.IntRegName(op.Dst.PhysReg, x.ToWidth), src)
	case !x.FromFloat && x.ToFloat:
		cvt := "scvtf"
		if x.Unsigned {
			cvt = "ucvtf"
		}
		f.printf("\t%s %s, %s\n", cvt, dst, src)
	default:
		if x.ToWidth <= x.FromWidth {
			if dst != src {
				f.printf("\tmov %s, %s\n", dst, src)
			}
		} else if x.Unsigned {
			mnem := map[int]string{1: "uxtb", 2: "uxth"}[x.FromWidth]
			if mnem == "" {
				f.printf("\tmov %s, %s\n", dst, src)
			} else {
				f.printf("\t%s %s, %s\n", mnem, dst, src)
			}
		} else {
			mnem := map[int]string{1: "sxtb", 2: "sxth", 4: "sxtw"}[x.FromWidth]
			f.printf("\t%s %s, %s\n", mnem, dst, src)
		}
	}
	f.store(op.Dst, 0)
}

func (f *arm64Func) moveToReturn(op *ir.Op) {
	if op.Float {
		v := op.Src1.Reg
		src := f.load(v, 0)
		if src != "d0" && src != "s0" {
			f.printf("\tfmov d0, %s\n", src)
		}
		return
	}
	if op.Src1.IsImm {
		f.printf("\tmov x0, #%d\n", op.Src1.Imm)
		return
	}
	src := f.load(op.Src1.Reg, 0)
	want := f.tgt.IntRegName(0, op.Src1.Reg.Width)
	if src != want {
		f.printf("\tmov %s, %s\n", want, src)
	}
}

// call marshals Extra.Args into X0-X7/D0-D7 in AAPCS order. Arguments past
// the eighth of either class are not passed: no stack-argument area is
// set up.
func (f *arm64Func) call(op *ir.Op) {
	intArg, floatArg := 0, 0
	for _, a := range op.Extra.Args {
		if a.IsFloat && floatArg < len(f.tgt.FloatArgRegs) {
			src := f.load(a, 0)
			want := f.tgt.FloatRegName(f.tgt.FloatArgRegs[floatArg], a.IsDouble)
			if src != want {
				f.printf("\tfmov %s, %s\n", want, src)
			}
			floatArg++
		} else if !a.IsFloat && intArg < len(f.tgt.IntArgRegs) {
			src := f.load(a, 0)
			want := f.tgt.IntRegName(f.tgt.IntArgRegs[intArg], a.Width)
			if src != want {
				f.printf("\tmov %s, %s\n", want, src)
			}
			intArg++
		}
	}
	if op.Extra.Sym != "" {
		f.printf("\tbl %s\n", f.tgt.Mangle(op.Extra.Sym))
	} else {
		f.printf("\tblr %s\n", f.load(op.Extra.Callee, 0))
	}
	if op.Dst != nil {
		dst := f.dstReg(op.Dst)
		if op.Float {
			want := f.tgt.FloatRegName(0, op.Dst.IsDouble)
			if dst != want {
				f.printf("\tfmov %s, %s\n", dst, want)
			}
		} else {
			want := f.tgt.IntRegName(0, op.Dst.Width)
			if dst != want {
				f.printf("\tmov %s, %s\n", dst, want)
			}
		}
		f.store(op.Dst, 0)
	}
}

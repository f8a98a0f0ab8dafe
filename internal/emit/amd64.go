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

// amd64Func emits one function's body in AT&T (GNU-as) syntax for the
// x86-64 SysV/Darwin targets (spec.md §4.6). It walks c.Blocks in layout
// order, translating every *ir.Op with a table-driven switch, reloading
// spilled operands through the two scratch registers target.Target
// reserves and re-spilling a spilled destination immediately after.
type amd64Func struct {
	tgt *target.Target
	c   *ir.BBContainer
	w   *strings.Builder
}

func emitAMD64Func(w *strings.Builder, tgt *target.Target, c *ir.BBContainer) error {
	f := &amd64Func{tgt: tgt, c: c, w: w}
	return f.run()
}

func (f *amd64Func) printf(format string, args ...any) {
	fmt.Fprintf(f.w, format, args...)
}

func (f *amd64Func) run() error {
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

// frame layout: [rbp-8 .. rbp-FrameSize] locals+spills, growing down from
// rbp; callee-saved pushes happen after the sub so their offsets from rsp
// don't disturb the frame-relative offsets IR locals/spills already used.
func (f *amd64Func) prologue() {
	f.printf("\tpush %%rbp\n")
	f.printf("\tmov %%rsp, %%rbp\n")
	if f.c.FrameSize > 0 {
		f.printf("\tsub $%d, %%rsp\n", f.c.FrameSize)
	}
	for _, r := range f.c.UsedCalleeSaved[0] {
		f.printf("\tpush %%%s\n", f.tgt.IntRegName(r, 8))
	}
	if f.c.VaArgs {
		f.spillVaShadow()
	}
}

func (f *amd64Func) spillVaShadow() {
	intArg := f.tgt.IntArgRegs
	off := 0
	for i := len(f.c.Params); i < len(intArg); i++ {
		off -= 8
		f.printf("\tmov %%%s, %d(%%rbp)\n", f.tgt.IntRegName(intArg[i], 8), off)
	}
	for i := 0; i < 8; i++ {
		off -= 16
		f.printf("\tmovdqu %%xmm%d, %d(%%rbp)\n", i, off)
	}
}

func (f *amd64Func) epilogue() {
	for i := len(f.c.UsedCalleeSaved[0]) - 1; i >= 0; i-- {
		f.printf("\tpop %%%s\n", f.tgt.IntRegName(f.c.UsedCalleeSaved[0][i], 8))
	}
	f.printf("\tleave\n\tret\n")
}

// suffix returns the AT&T size suffix for a byte width.
func suffix(width int) string {
	switch width {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	default:
		return "q"
	}
}

func (f *amd64Func) intScratch(i, width int) string {
	full := f.tgt.ScratchInt[i]
	switch width {
	case 1:
		return full + "b"
	case 2:
		return full + "w"
	case 4:
		return full + "d"
	default:
		return full
	}
}

func (f *amd64Func) floatScratch(i int) string { return f.tgt.ScratchFloat[i] }

// load renders a VReg's current location (register or, via the reload
// scratch, memory) as an operand string, emitting a reload instruction to
// w first if the VReg is spilled.
func (f *amd64Func) load(v *ir.VReg, scratch int) string {
	if v.IsFloat {
		s := f.floatScratch(scratch)
		if v.Spilled {
			mov := "movsd"
			if !v.IsDouble {
				mov = "movss"
			}
			f.printf("\t%s %d(%%rbp), %%%s\n", mov, v.FrameOffset, s)
			return s
		}
		return f.tgt.FloatRegName(v.PhysReg, v.IsDouble)
	}
	if v.Spilled {
		s := f.intScratch(scratch, v.Width)
		f.printf("\tmov%s %d(%%rbp), %%%s\n", suffix(v.Width), v.FrameOffset, s)
		return s
	}
	return f.tgt.IntRegName(v.PhysReg, v.Width)
}

// store writes a scratch register back to v's spill slot; a no-op when v
// lives in a physical register (the op already wrote there directly).
func (f *amd64Func) store(v *ir.VReg, scratch int) {
	if !v.Spilled {
		return
	}
	if v.IsFloat {
		mov := "movsd"
		if !v.IsDouble {
			mov = "movss"
		}
		f.printf("\t%s %%%s, %d(%%rbp)\n", mov, f.floatScratch(scratch), v.FrameOffset)
		return
	}
	f.printf("\tmov%s %%%s, %d(%%rbp)\n", suffix(v.Width), f.intScratch(scratch, v.Width), v.FrameOffset)
}

// dstReg returns the register the op should compute its destination
// into: the VReg's own physical register if allocated, otherwise scratch
// slot 0 (the caller must then call store(dst, 0)).
func (f *amd64Func) dstReg(v *ir.VReg) string {
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

func (f *amd64Func) operand(o ir.Operand, scratch int, width int, isFloat bool) string {
	if o.IsImm {
		return fmt.Sprintf("$%d", o.Imm)
	}
	return f.load(o.Reg, scratch)
}

func (f *amd64Func) op(op *ir.Op) error {
	switch op.Op {
	case ir.OpLabel, ir.OpAsm:
		if op.Op == ir.OpAsm {
			f.printf("# ASM {{\n%s\n# }}\n", op.Extra.Text)
		}
		return nil
	case ir.OpLoad:
		base := "rbp"
		if !op.Extra.IsFrame {
			base = f.load(op.Src1.Reg, 1)
		}
		dst := f.dstReg(op.Dst)
		if op.Float {
			mov := "movsd"
			if !op.Dst.IsDouble {
				mov = "movss"
			}
			f.printf("\t%s %d(%%%s), %%%s\n", mov, op.Extra.Offset, base, dst)
		} else {
			f.printf("\tmov%s %d(%%%s), %%%s\n", suffix(op.Width), op.Extra.Offset, base, dst)
		}
		f.store(op.Dst, 0)
	case ir.OpStore:
		base := "rbp"
		if !op.Extra.IsFrame {
			base = f.load(op.Src1.Reg, 1)
		}
		val := f.operand(op.Src2, 0, op.Width, op.Float)
		if op.Float {
			mov := "movsd"
			if op.Src2.Reg != nil && !op.Src2.Reg.IsDouble {
				mov = "movss"
			}
			f.printf("\t%s %%%s, %d(%%%s)\n", mov, val, op.Extra.Offset, base)
		} else {
			f.printf("\tmov%s %s, %d(%%%s)\n", suffix(op.Width), atOrImm(val), op.Extra.Offset, base)
		}
	case ir.OpLea:
		dst := f.dstReg(op.Dst)
		if op.Extra.IsFrame {
			f.printf("\tlea %d(%%rbp), %%%s\n", op.Extra.Offset, dst)
		} else {
			f.printf("\tlea %s(%%rip), %%%s\n", f.tgt.Mangle(op.Extra.Sym), dst)
		}
		f.store(op.Dst, 0)
	case ir.OpMovImm:
		dst := f.dstReg(op.Dst)
		if op.Float {
			mov := "movsd"
			if !op.Dst.IsDouble {
				mov = "movss"
			}
			f.printf("\t%s %s(%%rip), %%%s\n", mov, f.tgt.Mangle(op.Extra.Sym), dst)
		} else {
			f.printf("\tmov%s $%d, %%%s\n", suffix(op.Width), op.Extra.Imm, dst)
		}
		f.store(op.Dst, 0)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor:
		f.binArith(op)
	case ir.OpDiv, ir.OpMod:
		f.divmod(op)
	case ir.OpShl, ir.OpShr:
		f.shift(op)
	case ir.OpNeg:
		f.unary(op, "neg", "")
	case ir.OpNot:
		f.unary(op, "not", "")
	case ir.OpLogNot:
		f.logNot(op)
	case ir.OpCmpSet:
		f.cmpSet(op)
	case ir.OpCast:
		f.cast(op)
	case ir.OpJmp:
		f.printf("\tjmp %s\n", op.Extra.Target.Label)
	case ir.OpJcc:
		r := f.load(op.Src1.Reg, 1)
		f.printf("\ttest%s %%%s, %%%s\n", suffix(op.Src1.Reg.Width), r, r)
		f.printf("\tjne %s\n", op.Extra.Target.Label)
	case ir.OpCall:
		f.call(op)
	case ir.OpRet:
		if op.Src1.Reg != nil || op.Src1.IsImm {
			f.moveToReturn(op)
		}
		f.epilogue()
	default:
		return diag.New(diag.Emit, diag.Pos{}, "unhandled opcode %s reached the amd64 backend", op.Op)
	}
	return nil
}

func atOrImm(s string) string {
	if strings.HasPrefix(s, "$") {
		return s
	}
	return "%" + s
}

func (f *amd64Func) binArith(op *ir.Op) {
	dst := f.dstReg(op.Dst)
	a := f.operand(op.Src1, 0, op.Width, op.Float)
	if !op.Src1.IsImm {
		if op.Float {
			mov := "movsd"
			if !op.Dst.IsDouble {
				mov = "movss"
			}
			f.printf("\t%s %%%s, %%%s\n", mov, a, dst)
		} else {
			f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Width), a, dst)
		}
	} else if op.Float {
		f.printf("\t# float immediates are materialized via .rodata by the builder\n")
	} else {
		f.printf("\tmov%s %s, %%%s\n", suffix(op.Width), a, dst)
	}
	b := f.operand(op.Src2, 1, op.Width, op.Float)
	mnem := map[ir.Opcode]string{ir.OpAdd: "add", ir.OpSub: "sub", ir.OpAnd: "and", ir.OpOr: "or", ir.OpXor: "xor"}[op.Op]
	if op.Op == ir.OpMul {
		if op.Float {
			mnem = "mul"
		} else {
			mnem = "imul"
		}
	}
	if op.Float {
		fm := mnem + "sd"
		if !op.Dst.IsDouble {
			fm = mnem + "ss"
		}
		f.printf("\t%s %s, %%%s\n", fm, atOrImm(b), dst)
	} else {
		f.printf("\t%s%s %s, %%%s\n", mnem, suffix(op.Width), atOrImm(b), dst)
	}
	f.store(op.Dst, 0)
}

// divmod routes integer division through rax:rdx, per the ABI's integer
// division convention: cqo/cdq + idiv when signed, a zeroed edx + div when
// unsigned. A float OpDiv is handed to binArithFloatDiv (spec.md's subset
// has no float mod).
func (f *amd64Func) divmod(op *ir.Op) {
	if op.Float {
		f.binArithFloatDiv(op)
		return
	}
	a := f.operand(op.Src1, 0, op.Width, false)
	f.printf("\tmov%s %s, %%%s\n", suffix(op.Width), atOrImm(a), f.tgt.IntRegName(0, op.Width))
	if op.Extra.Unsigned {
		f.printf("\txor %%edx, %%edx\n")
	} else if op.Width == 8 {
		f.printf("\tcqo\n")
	} else {
		f.printf("\tcdq\n")
	}
	b := f.operand(op.Src2, 1, op.Width, false)
	divInstr := "idiv"
	if op.Extra.Unsigned {
		divInstr = "div"
	}
	if strings.HasPrefix(b, "$") {
		f.printf("\tmov%s %s, %%%s\n", suffix(op.Width), b, f.intScratch(1, op.Width))
		b = f.intScratch(1, op.Width)
	}
	f.printf("\t%s%s %%%s\n", divInstr, suffix(op.Width), b)
	result := "rax"
	if op.Op == ir.OpMod {
		result = "rdx"
	}
	dst := f.dstReg(op.Dst)
	f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Width), resultReg(result, op.Width), dst)
	f.store(op.Dst, 0)
}

func resultReg(which string, width int) string {
	names := map[string][4]string{
		"rax": {"al", "ax", "eax", "rax"},
		"rdx": {"dl", "dx", "edx", "rdx"},
	}
	idx := map[int]int{1: 0, 2: 1, 4: 2, 8: 3}[width]
	return names[which][idx]
}

func (f *amd64Func) binArithFloatDiv(op *ir.Op) {
	dst := f.dstReg(op.Dst)
	a := f.load(op.Src1.Reg, 0)
	mov := "movsd"
	if !op.Dst.IsDouble {
		mov = "movss"
	}
	f.printf("\t%s %%%s, %%%s\n", mov, a, dst)
	b := f.load(op.Src2.Reg, 1)
	d := "divsd"
	if !op.Dst.IsDouble {
		d = "divss"
	}
	f.printf("\t%s %%%s, %%%s\n", d, b, dst)
	f.store(op.Dst, 0)
}

func (f *amd64Func) shift(op *ir.Op) {
	dst := f.dstReg(op.Dst)
	a := f.operand(op.Src1, 0, op.Width, false)
	f.printf("\tmov%s %s, %%%s\n", suffix(op.Width), atOrImm(a), dst)
	if op.Src2.IsImm {
		mnem := "shl"
		if op.Op == ir.OpShr {
			mnem = "sar"
			if op.Extra.Unsigned {
				mnem = "shr"
			}
		}
		f.printf("\t%s%s $%d, %%%s\n", mnem, suffix(op.Width), op.Src2.Imm, dst)
	} else {
		b := f.load(op.Src2.Reg, 1)
		if b != "cl" {
			f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Src2.Reg.Width), b, f.tgt.IntRegName(amd64RCXLogical, op.Src2.Reg.Width))
		}
		mnem := "shl"
		if op.Op == ir.OpShr {
			mnem = "sar"
			if op.Extra.Unsigned {
				mnem = "shr"
			}
		}
		f.printf("\t%s%s %%cl, %%%s\n", mnem, suffix(op.Width), dst)
	}
	f.store(op.Dst, 0)
}

// amd64RCXLogical is RCX's logical (allocatable) index in the integer
// file (see newAMD64's IntArgRegs/CalleeSavedInt ordering): shift counts
// are hardwired to %cl by the ISA, so a variable shift count must always
// be staged there regardless of where regalloc put it.
const amd64RCXLogical = 2

func (f *amd64Func) unary(op *ir.Op, mnem, _ string) {
	dst := f.dstReg(op.Dst)
	a := f.operand(op.Src1, 0, op.Width, op.Float)
	f.printf("\tmov%s %s, %%%s\n", suffix(op.Width), atOrImm(a), dst)
	f.printf("\t%s%s %%%s\n", mnem, suffix(op.Width), dst)
	f.store(op.Dst, 0)
}

func (f *amd64Func) logNot(op *ir.Op) {
	a := f.load(op.Src1.Reg, 0)
	f.printf("\ttest%s %%%s, %%%s\n", suffix(op.Src1.Reg.Width), a, a)
	dst := f.dstReg(op.Dst)
	f.printf("\tsete %%al\n")
	f.printf("\tmovzbl %%al, %%%s\n", f.tgt.IntRegName(0, 4))
	if dst != f.tgt.IntRegName(0, op.Width) {
		f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Width), f.tgt.IntRegName(0, op.Width), dst)
	}
	f.store(op.Dst, 0)
}

var condSetcc = map[ir.Cond]string{
	ir.CondEQ: "sete", ir.CondNE: "setne",
	ir.CondLT: "setl", ir.CondLE: "setle", ir.CondGT: "setg", ir.CondGE: "setge",
}
var condSetccU = map[ir.Cond]string{
	ir.CondEQ: "sete", ir.CondNE: "setne",
	ir.CondLT: "setb", ir.CondLE: "setbe", ir.CondGT: "seta", ir.CondGE: "setae",
}

func (f *amd64Func) cmpSet(op *ir.Op) {
	if op.Float {
		a := f.load(op.Src1.Reg, 0)
		b := f.load(op.Src2.Reg, 1)
		ucomis := "ucomisd"
		if op.Src1.Reg != nil && !op.Src1.Reg.IsDouble {
			ucomis = "ucomiss"
		}
		f.printf("\t%s %%%s, %%%s\n", ucomis, b, a)
	} else {
		a := f.operand(op.Src1, 0, op.Width, false)
		b := f.operand(op.Src2, 1, op.Width, false)
		f.printf("\tcmp%s %s, %s\n", suffix(op.Width), atOrImm(b), atOrImm(a))
	}
	tbl := condSetcc
	if op.Extra.Unsigned || op.Float {
		tbl = condSetccU
	}
	f.printf("\t%s %%al\n", tbl[op.Extra.Cond])
	dst := f.dstReg(op.Dst)
	f.printf("\tmovzbl %%al, %%%s\n", f.tgt.IntRegName(0, 4))
	if dst != f.tgt.IntRegName(0, op.Width) {
		f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Width), f.tgt.IntRegName(0, op.Width), dst)
	}
	f.store(op.Dst, 0)
}

func (f *amd64Func) cast(op *ir.Op) {
	x := op.Extra
	dst := f.dstReg(op.Dst)
	src := f.load(op.Src1.Reg, 0)
	switch {
	case x.FromFloat && x.ToFloat:
		if x.FromWidth == x.ToWidth {
			f.printf("\tmovaps %%%s, %%%s\n", src, dst)
		} else if x.ToWidth == 8 {
			f.printf("\tcvtss2sd %%%s, %%%s\n", src, dst)
		} else {
			f.printf("\tcvtsd2ss %%%s, %%%s\n", src, dst)
		}
	case x.FromFloat && !x.ToFloat:
		cvt := "cvttsd2si"
		if x.FromWidth == 4 {
			cvt = "cvttss2si"
		}
		f.printf("\t%s %%%s, %%%s\n", cvt, src, f.tgt.IntRegName(op.Dst.PhysReg, x.ToWidth))
	case !x.FromFloat && x.ToFloat:
		cvt := "cvtsi2sd"
		if x.ToWidth == 4 {
			cvt = "cvtsi2ss"
		}
		f.printf("\t%s %%%s, %%%s\n", cvt, src, dst)
	default:
		if x.ToWidth <= x.FromWidth {
			if dst != src {
				f.printf("\tmov%s %%%s, %%%s\n", suffix(x.ToWidth), truncReg(src, x.ToWidth), dst)
			}
		} else if x.Unsigned {
			if x.FromWidth == 4 {
				f.printf("\tmov %%%s, %%%s\n", src, f.tgt.IntRegName(op.Dst.PhysReg, 4))
			} else {
				f.printf("\tmovz%s%s %%%s, %%%s\n", suffix(x.FromWidth), suffix(x.ToWidth), src, dst)
			}
		} else {
			f.printf("\tmovs%s%s %%%s, %%%s\n", suffix(x.FromWidth), suffix(x.ToWidth), src, dst)
		}
	}
	f.store(op.Dst, 0)
}

// truncReg has no real effect beyond documenting intent: AT&T mov already
// only reads the low bytes of the source register name we pass in.
func truncReg(s string, _ int) string { return s }

func (f *amd64Func) moveToReturn(op *ir.Op) {
	if op.Float {
		v := op.Src1.Reg
		src := f.load(v, 0)
		mov := "movsd"
		if !v.IsDouble {
			mov = "movss"
		}
		if src != "xmm0" {
			f.printf("\t%s %%%s, %%xmm0\n", mov, src)
		}
		return
	}
	if op.Src1.IsImm {
		f.printf("\tmov $%d, %%rax\n", op.Src1.Imm)
		return
	}
	src := f.load(op.Src1.Reg, 0)
	if src != f.tgt.IntRegName(0, op.Src1.Reg.Width) {
		f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Src1.Reg.Width), src, f.tgt.IntRegName(0, op.Src1.Reg.Width))
	}
}

// call marshals Extra.Args into the integer/float argument registers in
// ABI order, realigns the stack to 16 bytes for any overflow args, issues
// the call, and copies a non-void result out of rax/xmm0 (spec.md §4.6).
func (f *amd64Func) call(op *ir.Op) {
	intArg, floatArg := 0, 0
	var stackArgs []*ir.VReg
	for _, a := range op.Extra.Args {
		if a.IsFloat {
			if floatArg < len(f.tgt.FloatArgRegs) {
				src := f.load(a, 0)
				mov := "movsd"
				if !a.IsDouble {
					mov = "movss"
				}
				want := f.tgt.FloatRegName(f.tgt.FloatArgRegs[floatArg], a.IsDouble)
				if src != want {
					f.printf("\t%s %%%s, %%%s\n", mov, src, want)
				}
				floatArg++
				continue
			}
		} else if intArg < len(f.tgt.IntArgRegs) {
			src := f.load(a, 0)
			want := f.tgt.IntRegName(f.tgt.IntArgRegs[intArg], a.Width)
			if src != want {
				f.printf("\tmov%s %%%s, %%%s\n", suffix(a.Width), src, want)
			}
			intArg++
			continue
		}
		stackArgs = append(stackArgs, a)
	}
	if n := len(stackArgs); n > 0 {
		if n%2 != 0 {
			f.printf("\tsub $8, %%rsp\n")
		}
		for i := n - 1; i >= 0; i-- {
			v := stackArgs[i]
			src := f.load(v, 0)
			if v.IsFloat {
				f.printf("\tsub $8, %%rsp\n\tmovsd %%%s, (%%rsp)\n", src)
			} else {
				f.printf("\tpush %%%s\n", src)
			}
		}
	}
	if floatArg > 0 {
		f.printf("\tmov $%d, %%al\n", floatArg)
	}
	if op.Extra.Sym != "" {
		f.printf("\tcall %s\n", f.tgt.Mangle(op.Extra.Sym))
	} else {
		f.printf("\tcall *%%%s\n", f.load(op.Extra.Callee, 0))
	}
	if len(stackArgs) > 0 {
		f.printf("\tadd $%d, %%rsp\n", 8*(len(stackArgs)+len(stackArgs)%2))
	}
	if op.Dst != nil {
		dst := f.dstReg(op.Dst)
		if op.Float {
			mov := "movsd"
			if !op.Dst.IsDouble {
				mov = "movss"
			}
			if dst != "xmm0" {
				f.printf("\t%s %%xmm0, %%%s\n", mov, dst)
			}
		} else if dst != f.tgt.IntRegName(0, op.Dst.Width) {
			f.printf("\tmov%s %%%s, %%%s\n", suffix(op.Dst.Width), f.tgt.IntRegName(0, op.Dst.Width), dst)
		}
		f.store(op.Dst, 0)
	}
}

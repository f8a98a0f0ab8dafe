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

import "fmt"

// Opcode enumerates spec.md §3's IR operation set: "load/store of sized
// memory, integer/float arithmetic, compare+set, conditional/
// unconditional jump to basic block, call with arg-VReg list, return,
// cast with source/dest size."
type Opcode int

const (
	OpLoad  Opcode = iota // dst = *(src1 + Extra.Offset)
	OpStore               // *(src1 + Extra.Offset) = src2
	OpLea                 // dst = address of Extra.Sym/Extra.Frame

	OpMovImm // dst = Extra.Imm

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNeg
	OpNot    // bitwise complement
	OpLogNot // 0/1 boolean complement

	// Cmp sets dst to 0/1; Extra.Cond selects the comparison.
	OpCmpSet

	OpCast // dst = convert(src1); Extra.{FromWidth,ToWidth,FromFloat,ToFloat,Unsigned}

	OpJmp    // unconditional to Extra.Target
	OpJcc    // conditional: if src1 != 0 goto Extra.Target else fall through
	OpCall   // dst (optional) = call Extra.Sym or Extra.Callee with Extra.Args
	OpRet    // return src1 (or void)
	OpAsm    // Extra.Text emitted verbatim between fences
	OpLabel  // marks a synthesized sub-block boundary inline (used only pre-split)
)

func (op Opcode) String() string {
	names := [...]string{
		"load", "store", "lea", "movimm", "add", "sub", "mul", "div", "mod",
		"and", "or", "xor", "shl", "shr", "neg", "not", "lognot", "cmpset",
		"cast", "jmp", "jcc", "call", "ret", "asm", "label",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "op?"
}

// Cond enumerates the compare kinds OpCmpSet and OpJcc use.
type Cond int

const (
	CondEQ Cond = iota
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
)

// Operand is either a VReg or an immediate; exactly one of Reg/IsImm is
// meaningful.
type Operand struct {
	Reg   *VReg
	IsImm bool
	Imm   int64
}

func Reg(v *VReg) Operand        { return Operand{Reg: v} }
func Imm(v int64) Operand        { return Operand{IsImm: true, Imm: v} }
func (o Operand) String() string {
	if o.IsImm {
		return fmt.Sprintf("$%d", o.Imm)
	}
	if o.Reg == nil {
		return "-"
	}
	return o.Reg.String()
}

// Extra bundles the opcode-specific fields spec.md §3 folds into "extra".
type Extra struct {
	Offset  int    // OpLoad/OpStore: byte offset added to the base address; OpLea: frame offset when IsFrame
	IsFrame bool   // OpLea/OpLoad/OpStore: true => Offset is frame-relative (no base register); OpLea false => Sym is a global/function symbol
	Imm     int64  // OpMovImm (integer) / OpCast immediate helpers
	Sym     string // OpLea/OpMovImm(float)/OpCall: symbol name (pooled .rodata constant or call target)
	Target  *BasicBlock
	Cond    Cond
	Args    []*VReg // OpCall
	Callee  *VReg   // OpCall: indirect callee (nil when Sym is set)

	FromWidth, ToWidth int
	FromFloat, ToFloat bool
	Unsigned           bool

	Text string // OpAsm
}

// Op is spec.md §3's IR operation: (opcode, dst, src1, src2, extra), with
// a recorded bit width (Width) spec.md §4.4 requires every op to carry so
// the builder "never emits implicit widening or narrowing".
type Op struct {
	Op    Opcode
	Dst   *VReg
	Src1  Operand
	Src2  Operand
	Width int
	Float bool
	Extra Extra

	Comment string
}

func (o *Op) String() string {
	return fmt.Sprintf("%s.%d %s, %s, %s", o.Op, o.Width, o.Dst, o.Src1, o.Src2)
}

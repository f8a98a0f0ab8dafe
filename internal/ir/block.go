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

// BasicBlock is spec.md's GLOSSARY entry: "a maximal straight-line IR
// sequence ending in a jump, conditional jump, return, or
// call-with-no-continuation."
type BasicBlock struct {
	Label string
	Ops   []*Op
	Succs []*BasicBlock

	// Filled in by internal/regalloc's reverse-post-order pass. Typed as
	// interface{} (rather than importing internal/regalloc's bitmap type
	// here) to avoid a package cycle between ir and regalloc.
	LiveIn, LiveOut interface{}
}

func (b *BasicBlock) Emit(op *Op) {
	b.Ops = append(b.Ops, op)
}

func (b *BasicBlock) AddSucc(t *BasicBlock) {
	b.Succs = append(b.Succs, t)
}

// Terminated reports whether the block already ends in a control-transfer
// op, so the builder knows not to append a fallthrough jump twice.
func (b *BasicBlock) Terminated() bool {
	if len(b.Ops) == 0 {
		return false
	}
	switch b.Ops[len(b.Ops)-1].Op {
	case OpJmp, OpJcc, OpRet:
		return true
	default:
		return false
	}
}

func (b *BasicBlock) String() string {
	s := b.Label + ":\n"
	for _, op := range b.Ops {
		s += "  " + op.String() + "\n"
	}
	return s
}

// BBContainer is the ordered block list for one function (spec.md §3).
type BBContainer struct {
	FuncName string
	Blocks   []*BasicBlock
	Regs     VRegAllocator

	// Params, in declaration order, each already bound to a VReg holding
	// the incoming value (spec.md §4.6: ABI marshaling happens at
	// emission, so the IR here just records which VReg is which param).
	Params []*VReg

	// VaArgs marks a variadic function, so the emitter spills the ABI
	// registers into the shadow save area on entry (spec.md §4.6).
	VaArgs bool

	// HiddenRetReg holds the caller-supplied aggregate-return pointer,
	// non-nil only when the function returns a struct/union by value
	// (spec.md §4.4).
	HiddenRetReg *VReg

	// FrameSize is the aligned byte size of the local-variable region,
	// set by Build; internal/regalloc extends it with spill slots and
	// re-aligns to 16 bytes (spec.md §4.5 step 5).
	FrameSize int

	// UsedCalleeSaved holds, per VReg.Class(), the physical register
	// indices internal/regalloc actually assigned at least once, so the
	// emitter's prologue/epilogue save only the callee-saves that are
	// live, not the whole set (spec.md §4.5 step 4).
	UsedCalleeSaved [2][]int
}

func NewBBContainer(name string) *BBContainer {
	return &BBContainer{FuncName: name}
}

func (c *BBContainer) NewBlock(label string) *BasicBlock {
	b := &BasicBlock{Label: label}
	c.Blocks = append(c.Blocks, b)
	return b
}

func (c *BBContainer) String() string {
	s := fmt.Sprintf("func %s:\n", c.FuncName)
	for _, b := range c.Blocks {
		s += b.String()
	}
	return s
}

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

package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccgo/internal/ir"
	"ccgo/internal/target"
)

// straightLine builds `entry: v0 = 1; v1 = 2; v2 = v0+v1; ret v2` as a
// single basic block, the simplest shape Allocate must handle.
func straightLine() (*ir.BBContainer, *ir.VReg, *ir.VReg, *ir.VReg) {
	c := ir.NewBBContainer("f")
	b := c.NewBlock("entry")
	v0 := c.Regs.New(8, false, false)
	v1 := c.Regs.New(8, false, false)
	v2 := c.Regs.New(8, false, false)
	b.Emit(&ir.Op{Op: ir.OpMovImm, Dst: v0, Width: 8, Extra: ir.Extra{Imm: 1}})
	b.Emit(&ir.Op{Op: ir.OpMovImm, Dst: v1, Width: 8, Extra: ir.Extra{Imm: 2}})
	b.Emit(&ir.Op{Op: ir.OpAdd, Dst: v2, Src1: ir.Reg(v0), Src2: ir.Reg(v1), Width: 8})
	b.Emit(&ir.Op{Op: ir.OpRet, Src1: ir.Reg(v2), Width: 8})
	return c, v0, v1, v2
}

func TestAllocateAssignsDistinctRegistersWhenPlentiful(t *testing.T) {
	c, v0, v1, v2 := straightLine()
	Allocate(c, target.AMD64SysV())

	assert.False(t, v0.Spilled)
	assert.False(t, v1.Spilled)
	assert.False(t, v2.Spilled)
	assert.NotEqual(t, v0.PhysReg, v1.PhysReg)
	assert.Equal(t, 0, c.FrameSize) // no locals, no spills => nothing to allocate
}

// starveRegisters forces every VReg to be simultaneously live so a target
// with only 1 allocatable integer register must spill all but one.
func starveRegisters() (*ir.BBContainer, []*ir.VReg) {
	c := ir.NewBBContainer("f")
	b := c.NewBlock("entry")
	const n = 4
	regs := make([]*ir.VReg, n)
	for i := range regs {
		regs[i] = c.Regs.New(8, false, false)
		b.Emit(&ir.Op{Op: ir.OpMovImm, Dst: regs[i], Width: 8, Extra: ir.Extra{Imm: int64(i)}})
	}
	cur := regs[0]
	for i := 1; i < n; i++ {
		next := c.Regs.New(8, false, false)
		b.Emit(&ir.Op{Op: ir.OpAdd, Dst: next, Src1: ir.Reg(cur), Src2: ir.Reg(regs[i]), Width: 8})
		cur = next
	}
	b.Emit(&ir.Op{Op: ir.OpRet, Src1: ir.Reg(cur), Width: 8})
	return c, regs
}

func TestAllocateSpillsUnderRegisterPressure(t *testing.T) {
	c, regs := starveRegisters()
	tiny := target.AMD64SysV()
	tiny.IntRegs = 1 // force contention

	Allocate(c, tiny)

	spilled := 0
	for _, r := range regs {
		if r.Spilled {
			spilled++
			assert.Less(t, r.FrameOffset, 0, "a spill slot is a negative frame-relative offset")
		}
	}
	assert.Greater(t, spilled, 0, "at least one VReg must spill with only one register available")
	require.True(t, c.FrameSize >= 0)
	assert.Equal(t, 0, c.FrameSize%16, "frame size must be 16-byte aligned")
}

func TestAllocateExtendsExistingFrameSize(t *testing.T) {
	c, _, _, _ := straightLine()
	c.FrameSize = 24 // a local-variable region the IR builder already sized
	Allocate(c, target.AMD64SysV())
	assert.Equal(t, 0, c.FrameSize%16)
	assert.GreaterOrEqual(t, c.FrameSize, 24)
}

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
	"ccgo/internal/ir"
	"ccgo/internal/util"
)

// linearize numbers every op across c's blocks in layout order and records
// each block's [start,end] position range, so "first-def/last-use" (spec.md
// §4.5 step 1) has a single total order to work over.
type linear struct {
	order      []*ir.BasicBlock
	blockStart map[*ir.BasicBlock]int
	blockEnd   map[*ir.BasicBlock]int
	ops        []*ir.Op // ops[pos] is the op defined/used at position pos
}

func linearize(c *ir.BBContainer) *linear {
	l := &linear{
		order:      c.Blocks,
		blockStart: make(map[*ir.BasicBlock]int),
		blockEnd:   make(map[*ir.BasicBlock]int),
	}
	pos := 0
	for _, b := range l.order {
		l.blockStart[b] = pos
		for _, op := range b.Ops {
			l.ops = append(l.ops, op)
			pos++
		}
		l.blockEnd[b] = pos - 1
		if len(b.Ops) == 0 {
			l.blockEnd[b] = pos - 1 // empty block: end < start, never covers a position
		}
	}
	return l
}

// computeLiveness runs the reverse-post-order fixed point spec.md §4.5
// step 1 describes, filling each block's live-in/live-out VReg-id bitmaps.
// nVRegs sizes the bitmaps.
func computeLiveness(c *ir.BBContainer, nVRegs int) {
	rpo := reversePostOrder(c)

	use := make(map[*ir.BasicBlock]*util.BitMap, len(rpo))
	def := make(map[*ir.BasicBlock]*util.BitMap, len(rpo))
	for _, b := range rpo {
		u, d := util.NewBitMap(nVRegs), util.NewBitMap(nVRegs)
		for _, op := range b.Ops {
			forEachUse(op, func(v *ir.VReg) {
				if !d.IsSet(v.ID) {
					u.Set(v.ID)
				}
			})
			if op.Dst != nil {
				d.Set(op.Dst.ID)
			}
		}
		use[b], def[b] = u, d
		b.LiveIn = util.NewBitMap(nVRegs)
		b.LiveOut = util.NewBitMap(nVRegs)
	}

	changed := true
	for changed {
		changed = false
		for i := len(rpo) - 1; i >= 0; i-- {
			b := rpo[i]
			out := b.LiveOut.(*util.BitMap)
			for _, s := range b.Succs {
				if out.Unite(s.LiveIn.(*util.BitMap)) {
					changed = true
				}
			}
			in := b.LiveIn.(*util.BitMap)
			want := out.Copy()
			want.Remove(def[b])
			want.Unite(use[b])
			if in.SetFrom(want) {
				changed = true
			}
		}
	}
}

func reversePostOrder(c *ir.BBContainer) []*ir.BasicBlock {
	visited := make(map[*ir.BasicBlock]bool, len(c.Blocks))
	var post []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	if len(c.Blocks) > 0 {
		visit(c.Blocks[0])
	}
	// Blocks unreachable from the entry (shouldn't occur for a
	// correctly-lowered function, but a dangling label costs nothing to
	// tolerate) still need liveness entries.
	for _, b := range c.Blocks {
		visit(b)
	}
	rpo := make([]*ir.BasicBlock, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

func forEachUse(op *ir.Op, f func(v *ir.VReg)) {
	if op.Src1.Reg != nil {
		f(op.Src1.Reg)
	}
	if op.Src2.Reg != nil {
		f(op.Src2.Reg)
	}
	for _, a := range op.Extra.Args {
		f(a)
	}
	if op.Extra.Callee != nil {
		f(op.Extra.Callee)
	}
}
